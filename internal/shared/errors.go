package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrSongNotFound       = fmt.Errorf("song not found")

	// Payment and premium errors
	ErrPaymentNotFound = fmt.Errorf("payment not found")
	ErrInvalidAmount   = fmt.Errorf("invalid payment amount")
	ErrAmountMismatch  = fmt.Errorf("payment amount mismatch")
	ErrUnknownFeature  = fmt.Errorf("unknown premium feature")
	ErrFeatureLocked   = fmt.Errorf("premium feature locked")
	ErrLimitReached    = fmt.Errorf("daily analysis limit reached")

	// Audio errors
	ErrUnsupportedFormat = fmt.Errorf("unsupported audio format")
	ErrFileTooLarge      = fmt.Errorf("file too large")
	ErrNoChords          = fmt.Errorf("no chords detected")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
