package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PaymentStatus is the lifecycle state of a Pi payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentCompleted, PaymentCancelled, PaymentFailed:
		return true
	}
	return false
}

// PaymentMetadata is the free-form metadata attached to a payment by the client SDK.
type PaymentMetadata map[string]any

// Feature returns the premium feature the payment unlocks, if any.
func (m PaymentMetadata) Feature() Feature {
	if m == nil {
		return ""
	}
	if f, ok := m["feature"].(string); ok {
		return Feature(f)
	}
	return ""
}

// Payment is a Pi Network payment tracked by the server.
type Payment struct {
	record
	PaymentID   string
	UserID      string
	PiUserID    string
	Amount      float64
	Memo        string
	Metadata    PaymentMetadata
	Status      PaymentStatus
	TxID        string
	VerifiedAt  *time.Time
	CompletedAt *time.Time
}

// NewPayment creates a pending [Payment].
func NewPayment(sequence int, paymentID, userID string, amount float64, memo string, metadata PaymentMetadata) *Payment {
	if metadata == nil {
		metadata = PaymentMetadata{}
	}
	return &Payment{
		record:    newRecord(sequence),
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Memo:      memo,
		Metadata:  metadata,
		Status:    PaymentPending,
	}
}

// Validate checks identifiers, amount and status.
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.PaymentID) == "" {
		return fmt.Errorf("payment id is required")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	return nil
}

// Complete marks the payment completed with the given blockchain transaction id.
func (p *Payment) Complete(txid string, at time.Time) {
	p.Status = PaymentCompleted
	p.TxID = txid
	p.CompletedAt = &at
}

// MarshalJSON renders the payment in the shape returned by the payments API.
func (p *Payment) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":           p.ID(),
		"payment_id":   p.PaymentID,
		"user_id":      p.UserID,
		"pi_user_id":   p.PiUserID,
		"amount":       p.Amount,
		"memo":         p.Memo,
		"metadata":     p.Metadata,
		"status":       p.Status,
		"txid":         p.TxID,
		"created_at":   p.CreatedAt(),
		"verified_at":  p.VerifiedAt,
		"completed_at": p.CompletedAt,
	})
}
