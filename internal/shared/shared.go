// Package shared holds configuration, database setup, sentinel errors and logging helpers used across chordypi.
package shared

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger returns a [log.Logger] on w (default [os.Stderr]) that reports timestamps and callers.
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that appends to the file at path, creating parent directories as needed.
//
// Used by the TUI so log output does not corrupt the rendered screen.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f), nil
}

// SetLogLevel parses a level name such as "debug" or "warn" and applies it to l.
func SetLogLevel(l *log.Logger, name string) error {
	level, err := log.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidArgument, name)
	}
	l.SetLevel(level)
	return nil
}

// GenerateID returns a random v4 [uuid.UUID] string.
func GenerateID() string {
	return uuid.New().String()
}

// FormatSeconds renders a duration in seconds as m:ss.
func FormatSeconds(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// NormalizeSongKey lowercases and collapses whitespace in a title/artist pair for matching.
func NormalizeSongKey(title, artist string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ") + "|" +
		strings.Join(strings.Fields(strings.ToLower(artist)), " ")
}
