package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

const paymentColumns = `id, sequence, payment_id, user_id, pi_user_id, amount, memo, metadata, status, txid,
	created_at, updated_at, verified_at, completed_at, deleted_at`

// PaymentRepository implements [models.Repository] for [models.Payment] persistence.
//
// Payments are addressable both by their internal ID and by the Pi platform payment identifier.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new [PaymentRepository] with the given database connection
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment with generated ID and sequence.
func (r *PaymentRepository) Create(p *models.Payment) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	sequence, err := NextSequence(r.db, "payments")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	p.SetID(shared.GenerateID())
	p.SetSequence(sequence)

	_, err = r.db.Exec(`
		INSERT INTO payments (
			id, sequence, payment_id, user_id, pi_user_id, amount, memo, metadata, status, txid,
			created_at, updated_at, verified_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID(), sequence, p.PaymentID, p.UserID, p.PiUserID, p.Amount, p.Memo, string(metadata), string(p.Status), p.TxID,
		p.CreatedAt(), p.UpdatedAt(), timePtrValue(p.VerifiedAt), timePtrValue(p.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// Get retrieves a payment by internal ID.
func (r *PaymentRepository) Get(id string) (*models.Payment, error) {
	return r.getOne(`id = ?`, id)
}

// GetByPaymentID retrieves a payment by the Pi platform identifier.
func (r *PaymentRepository) GetByPaymentID(paymentID string) (*models.Payment, error) {
	return r.getOne(`payment_id = ?`, paymentID)
}

func (r *PaymentRepository) getOne(where string, arg any) (*models.Payment, error) {
	row := r.db.QueryRow(`SELECT `+paymentColumns+` FROM payments WHERE `+where+` AND deleted_at IS NULL`, arg)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", shared.ErrPaymentNotFound, arg)
	}
	return p, err
}

// Update persists the mutable payment fields.
func (r *PaymentRepository) Update(p *models.Payment) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	now := time.Now().UTC()
	p.SetUpdatedAt(now)

	result, err := r.db.Exec(`
		UPDATE payments
		SET pi_user_id = ?, amount = ?, memo = ?, metadata = ?, status = ?, txid = ?,
			updated_at = ?, verified_at = ?, completed_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		p.PiUserID, p.Amount, p.Memo, string(metadata), string(p.Status), p.TxID,
		now, timePtrValue(p.VerifiedAt), timePtrValue(p.CompletedAt), p.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: %s", shared.ErrPaymentNotFound, p.PaymentID))
}

// Delete soft-deletes a payment by internal ID.
func (r *PaymentRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE payments SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: %s", shared.ErrPaymentNotFound, id))
}

// List retrieves payments matching the criteria, newest first.
//
// Supported criteria: "user_id", "status".
func (r *PaymentRepository) List(criteria map[string]any) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if status, ok := criteria["status"].(models.PaymentStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"
	return r.query(query, args...)
}

// ListByUser returns one page of a user's payments, newest first, along with the total count.
func (r *PaymentRepository) ListByUser(userID string, limit, offset int) ([]*models.Payment, int, error) {
	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM payments WHERE user_id = ? AND deleted_at IS NULL`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	payments, err := r.query(
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ? AND deleted_at IS NULL ORDER BY sequence DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// TotalSpent sums the amounts of a user's completed payments.
func (r *PaymentRepository) TotalSpent(userID string) (float64, error) {
	var total float64
	err := r.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE user_id = ? AND status = ? AND deleted_at IS NULL`,
		userID, string(models.PaymentCompleted),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return total, nil
}

func (r *PaymentRepository) query(query string, args ...any) ([]*models.Payment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

func scanPayment(s scanner) (*models.Payment, error) {
	var (
		id, paymentID, userID, piUserID string
		memo, metadata, status, txid    string
		sequence                        int
		amount                          float64
		createdAt, updatedAt            time.Time
		verifiedAt, completedAt, delAt  sql.NullTime
	)

	err := s.Scan(&id, &sequence, &paymentID, &userID, &piUserID, &amount, &memo, &metadata, &status, &txid,
		&createdAt, &updatedAt, &verifiedAt, &completedAt, &delAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	meta := models.PaymentMetadata{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for payment %s: %w", paymentID, err)
		}
	}

	p := models.NewPayment(sequence, paymentID, userID, amount, memo, meta)
	p.SetID(id)
	p.SetCreatedAt(createdAt)
	p.SetUpdatedAt(updatedAt)
	p.SetDeletedAt(nullTimePtr(delAt))
	p.PiUserID = piUserID
	p.Status = models.PaymentStatus(status)
	p.TxID = txid
	p.VerifiedAt = nullTimePtr(verifiedAt)
	p.CompletedAt = nullTimePtr(completedAt)
	return p, nil
}
