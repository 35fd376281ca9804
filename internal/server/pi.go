package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/premium"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

// PiPlatform is the part of the Pi platform API the handlers call directly.
//
// Implemented by [services.PiService].
type PiPlatform interface {
	PiStatus
	ApprovePayment(ctx context.Context, paymentID string) (*services.PiPayment, error)
}

// PiHandler serves the Pi payment lifecycle and per-user premium endpoints.
type PiHandler struct {
	payments *premium.PaymentService
	manager  *premium.Manager
	pi       PiPlatform
	logger   *log.Logger
}

// NewPiHandler creates a [PiHandler].
func NewPiHandler(payments *premium.PaymentService, manager *premium.Manager, pi PiPlatform, logger *log.Logger) *PiHandler {
	return &PiHandler{payments: payments, manager: manager, pi: pi, logger: logger}
}

func (h *PiHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/pi/payments/approve", Handler: h.Approve},
		{Method: http.MethodPost, Path: "/api/pi/payments/complete", Handler: h.Complete},
		{Method: http.MethodPost, Path: "/api/pi/payments/verify", Handler: h.Verify},
		{Method: http.MethodPost, Path: "/api/pi/payments/webhook", Handler: h.Webhook},
		{Method: http.MethodGet, Path: "/api/pi/users/{id}/premium-features", Handler: h.Features},
		{Method: http.MethodPost, Path: "/api/pi/users/{id}/premium-features", Handler: h.Unlock},
		{Method: http.MethodGet, Path: "/api/pi/users/{id}/payments", Handler: h.History},
		{Method: http.MethodGet, Path: "/api/pi/users/{id}/analytics", Handler: h.Analytics},
		{Method: http.MethodGet, Path: "/api/pi/config", Handler: h.Config},
	}
}

// paymentRef accepts either the paymentId the Pi SDK callbacks send or the identifier used by the platform.
type paymentRef struct {
	PaymentID  string `json:"paymentId"`
	Identifier string `json:"identifier"`
}

func (p paymentRef) id() string {
	return strings.TrimSpace(orDefault(p.PaymentID, p.Identifier))
}

// piUserRef decodes "user" given either as {"uid", "username"} or as a bare uid string.
type piUserRef struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

func (u *piUserRef) UnmarshalJSON(data []byte) error {
	var uid string
	if err := json.Unmarshal(data, &uid); err == nil {
		u.UID = uid
		return nil
	}
	type plain piUserRef
	return json.Unmarshal(data, (*plain)(u))
}

// Approve handles POST /api/pi/payments/approve
//
// Called from the Pi SDK's onReadyForServerApproval callback before the payment dialog is shown.
func (h *PiHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		paymentRef
		Amount   float64                `json:"amount"`
		Memo     string                 `json:"memo"`
		Metadata models.PaymentMetadata `json:"metadata"`
		User     piUserRef              `json:"user"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"approved": false, "error": err.Error()})
		return
	}

	if err := premium.ValidateAmount(body.Amount); err != nil {
		h.logger.Error("rejected payment amount", "payment", body.id(), "amount", body.Amount)
		msg := "Invalid payment amount"
		if body.Amount > premium.MaxPaymentAmount {
			msg = fmt.Sprintf("Amount exceeds maximum of %v Pi", premium.MaxPaymentAmount)
		}
		respondJSON(w, http.StatusBadRequest, map[string]any{"approved": false, "error": msg})
		return
	}
	if body.id() == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"approved": false, "error": "Missing payment ID"})
		return
	}

	_, err := h.payments.Approve(r.Context(), premium.ApproveRequest{
		PaymentID: body.id(),
		Amount:    body.Amount,
		Memo:      body.Memo,
		Metadata:  body.Metadata,
		UserUID:   body.User.UID,
		Username:  body.User.Username,
	})
	if err != nil {
		h.logger.Warn("failed to store pending payment", "payment", body.id(), "error", err)
	}

	if h.pi.Configured() {
		if _, err := h.pi.ApprovePayment(r.Context(), body.id()); err != nil {
			h.logger.Warn("pi platform approval failed", "payment", body.id(), "error", err)
		}
	}

	h.logger.Info("payment approved", "payment", body.id(), "amount", body.Amount, "user", body.User.UID)
	respondJSON(w, http.StatusOK, map[string]any{
		"approved":  true,
		"message":   "Payment approved for ChordyPi premium features",
		"paymentId": body.id(),
	})
}

// Complete handles POST /api/pi/payments/complete
//
// Payments the server never saw are still acknowledged so the Pi SDK flow can finish.
func (h *PiHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		paymentRef
		TxID string `json:"txid"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if body.id() == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Missing payment ID"})
		return
	}

	_, err := h.payments.Complete(r.Context(), body.id(), body.TxID)
	switch {
	case errors.Is(err, shared.ErrPaymentNotFound):
		h.logger.Warn("completing unknown payment", "payment", body.id(), "txid", body.TxID)
	case err != nil:
		h.logger.Error("failed to complete payment", "payment", body.id(), "error", err)
		respondJSON(w, statusFor(err), map[string]any{"success": false, "error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Payment completed successfully",
		"paymentId": body.id(),
		"txid":      body.TxID,
	})
}

// Verify handles POST /api/pi/payments/verify
func (h *PiHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		PaymentID *string                `json:"payment_id"`
		Amount    *float64               `json:"amount"`
		Memo      *string                `json:"memo"`
		Metadata  models.PaymentMetadata `json:"metadata"`
		TxID      string                 `json:"txid"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, err)
		return
	}
	for _, f := range []struct {
		name    string
		present bool
	}{
		{"payment_id", body.PaymentID != nil},
		{"amount", body.Amount != nil},
		{"memo", body.Memo != nil},
	} {
		if !f.present {
			respondError(w, http.StatusBadRequest, "Missing required field: "+f.name)
			return
		}
	}

	res, err := h.payments.Verify(r.Context(), premium.VerifyRequest{
		UserID:    user.ID(),
		PaymentID: *body.PaymentID,
		Amount:    *body.Amount,
		Memo:      *body.Memo,
		Metadata:  body.Metadata,
		TxID:      body.TxID,
	})
	switch {
	case errors.Is(err, shared.ErrAmountMismatch):
		respondError(w, http.StatusBadRequest, "Payment amount mismatch")
		return
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrMissingArgument):
		respondErr(w, err)
		return
	case err != nil:
		h.logger.Error("payment verification failed", "payment", *body.PaymentID, "error", err)
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "error",
			"error":   "Payment verification failed",
			"details": err.Error(),
		})
		return
	}

	msg := "Payment verified successfully"
	if res.AlreadyProcessed {
		msg = "Payment already processed"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":          msg,
		"payment":          res.Payment,
		"feature_unlocked": res.FeatureUnlocked,
	})
}

// Webhook handles POST /api/pi/payments/webhook
func (h *PiHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payment *struct {
			Identifier string               `json:"identifier"`
			Status     models.PaymentStatus `json:"status"`
		} `json:"payment"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Payment == nil {
		respondError(w, http.StatusBadRequest, "Invalid webhook data")
		return
	}

	_, err := h.payments.Webhook(r.Context(), body.Payment.Identifier, body.Payment.Status)
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "Invalid webhook data")
		return
	case errors.Is(err, shared.ErrPaymentNotFound):
		respondError(w, http.StatusNotFound, "Payment not found")
		return
	case err != nil:
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Webhook processed successfully"})
}

type featuresResponse struct {
	premium.Status
	Features models.PremiumFeatureSet `json:"features"`
	Unlocks  []models.FeatureUnlock   `json:"unlocks"`
}

// Features handles GET /api/pi/users/{id}/premium-features
func (h *PiHandler) Features(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSelf(w, r)
	if !ok {
		return
	}

	set, err := h.manager.Features(user.ID())
	if err != nil {
		respondErr(w, err)
		return
	}
	unlocks, err := h.manager.Unlocks(user.ID())
	if err != nil {
		respondErr(w, err)
		return
	}
	if unlocks == nil {
		unlocks = []models.FeatureUnlock{}
	}
	respondJSON(w, http.StatusOK, featuresResponse{Status: premium.StatusOf(set), Features: set, Unlocks: unlocks})
}

// Unlock handles POST /api/pi/users/{id}/premium-features
func (h *PiHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSelf(w, r)
	if !ok {
		return
	}

	var body struct {
		Feature   models.Feature `json:"feature"`
		PaymentID string         `json:"payment_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, err)
		return
	}
	if body.Feature == "" {
		respondError(w, http.StatusBadRequest, "Feature name required")
		return
	}

	if err := h.manager.Unlock(user.ID(), body.Feature, body.PaymentID); err != nil {
		respondErr(w, err)
		return
	}

	out := map[string]any{
		"message":  fmt.Sprintf("Feature %s unlocked successfully", body.Feature),
		"feature":  body.Feature,
		"unlocked": true,
	}
	if unlocks, err := h.manager.Unlocks(user.ID()); err == nil {
		for _, u := range unlocks {
			if u.Feature == body.Feature {
				out["unlocked_at"] = u.UnlockedAt
			}
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// History handles GET /api/pi/users/{id}/payments?limit=&page=
func (h *PiHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSelf(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	history, err := h.payments.History(user.ID(), page, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	if history.Payments == nil {
		history.Payments = []*models.Payment{}
	}
	respondJSON(w, http.StatusOK, history)
}

// Analytics handles GET /api/pi/users/{id}/analytics
func (h *PiHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	user, ok := requireSelf(w, r)
	if !ok {
		return
	}
	a, err := h.payments.Analytics(user.ID())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Config handles GET /api/pi/config
func (h *PiHandler) Config(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sandbox_mode":       h.pi.Sandbox(),
		"api_available":      true,
		"supported_features": models.Features,
		"feature_prices":     premium.Prices(),
	})
}
