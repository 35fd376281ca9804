package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

const userColumns = `id, sequence, pi_uid, username, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetID(shared.GenerateID())
	user.SetSequence(sequence)

	_, err = r.db.Exec(
		`INSERT INTO users (id, sequence, pi_uid, username, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID(), sequence, user.PiUID, user.Username, user.CreatedAt(), user.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	return user, err
}

// GetByPiUID retrieves a user by Pi Network uid.
func (r *UserRepository) GetByPiUID(uid string) (*models.User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE pi_uid = ? AND deleted_at IS NULL`, uid)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pi user %s", shared.ErrNotFound, uid)
	}
	return user, err
}

// Upsert returns the user with the given Pi uid, creating it or refreshing its username.
func (r *UserRepository) Upsert(uid, username string) (*models.User, error) {
	existing, err := r.GetByPiUID(uid)
	switch {
	case err == nil:
		if username != "" && existing.Username != username {
			existing.Username = username
			if err := r.Update(existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	case errors.Is(err, shared.ErrNotFound):
		user := models.NewUser(0, uid, username)
		if err := r.Create(user); err != nil {
			// A concurrent first request may have created the row since the lookup.
			if winner, getErr := r.GetByPiUID(uid); getErr == nil {
				return winner, nil
			}
			return nil, err
		}
		return user, nil
	default:
		return nil, err
	}
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	user.SetUpdatedAt(now)

	result, err := r.db.Exec(
		`UPDATE users SET pi_uid = ?, username = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		user.PiUID, user.Username, now, user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: user %s", shared.ErrNotFound, user.ID()))
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: user %s", shared.ErrNotFound, id))
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
//
// Supported criteria: "username" (exact match).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if username, ok := criteria["username"].(string); ok && username != "" {
		query += " AND username = ?"
		args = append(args, username)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		id, piUID, username  string
		sequence             int
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)

	if err := s.Scan(&id, &sequence, &piUID, &username, &createdAt, &updatedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, piUID, username)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	user.SetDeletedAt(nullTimePtr(deletedAt))
	return user, nil
}
