package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chordypi/internal/models"
)

// PremiumRepository persists unlocked premium features and per-day analysis counters.
//
// Rows are keyed by (user_id, feature) and (user_id, usage_key) so repeated writes are idempotent.
type PremiumRepository struct {
	db *sql.DB
}

// NewPremiumRepository creates a new [PremiumRepository] with the given database connection
func NewPremiumRepository(db *sql.DB) *PremiumRepository {
	return &PremiumRepository{db: db}
}

// Unlock records feature as unlocked for userID. Unlocking an already unlocked feature keeps the original record.
//
// Returns true when the row was newly inserted.
func (r *PremiumRepository) Unlock(userID string, feature models.Feature, paymentID string) (bool, error) {
	result, err := r.db.Exec(
		`INSERT INTO premium_features (user_id, feature, payment_id, unlocked_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, feature) DO NOTHING`,
		userID, string(feature), paymentID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to unlock feature: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Revoke removes a feature unlock.
func (r *PremiumRepository) Revoke(userID string, feature models.Feature) error {
	if _, err := r.db.Exec(`DELETE FROM premium_features WHERE user_id = ? AND feature = ?`, userID, string(feature)); err != nil {
		return fmt.Errorf("failed to revoke feature: %w", err)
	}
	return nil
}

// Unlocks returns every unlock record for userID ordered by unlock time.
func (r *PremiumRepository) Unlocks(userID string) ([]models.FeatureUnlock, error) {
	rows, err := r.db.Query(
		`SELECT feature, payment_id, unlocked_at FROM premium_features WHERE user_id = ? ORDER BY unlocked_at ASC, feature ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	unlocks := []models.FeatureUnlock{}
	for rows.Next() {
		var (
			u       models.FeatureUnlock
			feature string
		)
		if err := rows.Scan(&feature, &u.PaymentID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		u.Feature = models.Feature(feature)
		unlocks = append(unlocks, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return unlocks, nil
}

// Features returns the full feature set for userID with every known feature present.
func (r *PremiumRepository) Features(userID string) (models.PremiumFeatureSet, error) {
	unlocks, err := r.Unlocks(userID)
	if err != nil {
		return nil, err
	}

	set := models.NewPremiumFeatureSet()
	for _, u := range unlocks {
		if u.Feature.Valid() {
			set[u.Feature] = true
		}
	}
	return set, nil
}

// Usage returns the counter stored under key for userID, or zero.
func (r *PremiumRepository) Usage(userID, key string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT count FROM analysis_usage WHERE user_id = ? AND usage_key = ?`, userID, key).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query usage: %w", err)
	}
	return count, nil
}

// ReserveUsage adds one to the counter under key unless it has already reached limit.
//
// The check and the increment are a single upsert, so concurrent callers can never push the counter past limit.
// ok is false when no slot was left. limit must be positive.
func (r *PremiumRepository) ReserveUsage(userID, key string, limit int) (count int, ok bool, err error) {
	err = r.db.QueryRow(
		`INSERT INTO analysis_usage (user_id, usage_key, count, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id, usage_key) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		WHERE count < ?
		RETURNING count`,
		userID, key, time.Now().UTC(), limit,
	).Scan(&count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return limit, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("failed to reserve usage: %w", err)
	}
	return count, true, nil
}

// ReleaseUsage gives back one reserved slot under key. The counter never drops below zero.
func (r *PremiumRepository) ReleaseUsage(userID, key string) error {
	_, err := r.db.Exec(
		`UPDATE analysis_usage SET count = count - 1, updated_at = ? WHERE user_id = ? AND usage_key = ? AND count > 0`,
		time.Now().UTC(), userID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to release usage: %w", err)
	}
	return nil
}
