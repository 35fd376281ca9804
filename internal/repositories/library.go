package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

const libraryColumns = `id, sequence, user_id, title, artist, youtube_url, genre, is_favorite, is_saved,
	search_count, last_searched, created_at, updated_at, deleted_at`

// LibraryRepository implements [models.Repository] for [models.LibraryEntry] persistence.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new [LibraryRepository] with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Create inserts a new library entry with generated ID and sequence.
func (r *LibraryRepository) Create(e *models.LibraryEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "library_entries")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	e.SetID(shared.GenerateID())
	e.SetSequence(sequence)

	_, err = r.db.Exec(`
		INSERT INTO library_entries (
			id, sequence, user_id, title, artist, youtube_url, genre, is_favorite, is_saved,
			search_count, last_searched, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID(), sequence, e.UserID, e.Title, e.Artist, e.YouTubeURL, e.Genre, e.IsFavorite, e.IsSaved,
		e.SearchCount, e.LastSearched, e.CreatedAt(), e.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert library entry: %w", err)
	}
	return nil
}

// Get retrieves a library entry by ID.
func (r *LibraryRepository) Get(id string) (*models.LibraryEntry, error) {
	row := r.db.QueryRow(`SELECT `+libraryColumns+` FROM library_entries WHERE id = ? AND deleted_at IS NULL`, id)
	e, err := scanLibraryEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %s", shared.ErrNotFound, id)
	}
	return e, err
}

// Find retrieves the entry for a title/artist pair in a user's library.
func (r *LibraryRepository) Find(userID, title, artist string) (*models.LibraryEntry, error) {
	row := r.db.QueryRow(
		`SELECT `+libraryColumns+` FROM library_entries WHERE user_id = ? AND title = ? AND artist = ? AND deleted_at IS NULL`,
		userID, title, artist,
	)
	e, err := scanLibraryEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %s by %s", shared.ErrNotFound, title, artist)
	}
	return e, err
}

// LibraryAdd describes a song being added to or searched from a user's library.
type LibraryAdd struct {
	UserID     string
	Title      string
	Artist     string
	YouTubeURL string
	Genre      string
	IsFavorite bool
	IsSaved    bool
}

// Record adds a song to a user's library. A song already present has its search count bumped and
// last_searched refreshed; saved/favorite flags are only ever switched on here.
//
// The insert and the bump are one statement, so concurrent records of the same song never lose a count.
func (r *LibraryRepository) Record(in LibraryAdd) (*models.LibraryEntry, error) {
	e := models.NewLibraryEntry(0, in.UserID, in.Title, in.Artist)
	e.YouTubeURL = in.YouTubeURL
	e.Genre = in.Genre
	e.IsSaved = in.IsSaved
	e.IsFavorite = in.IsFavorite
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "library_entries")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.Exec(`
		INSERT INTO library_entries (
			id, sequence, user_id, title, artist, youtube_url, genre, is_favorite, is_saved,
			search_count, last_searched, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (user_id, title, artist) WHERE deleted_at IS NULL DO UPDATE SET
			search_count = search_count + 1,
			last_searched = excluded.last_searched,
			is_saved = is_saved OR excluded.is_saved,
			is_favorite = is_favorite OR excluded.is_favorite,
			updated_at = excluded.updated_at`,
		shared.GenerateID(), sequence, e.UserID, e.Title, e.Artist, e.YouTubeURL, e.Genre, e.IsFavorite, e.IsSaved,
		now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record library entry: %w", err)
	}
	return r.Find(in.UserID, in.Title, in.Artist)
}

// ToggleFavorite flips the favorite flag of an entry and returns the updated entry.
func (r *LibraryRepository) ToggleFavorite(id string) (*models.LibraryEntry, error) {
	e, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	e.IsFavorite = !e.IsFavorite
	if err := r.Update(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update persists the mutable library fields.
func (r *LibraryRepository) Update(e *models.LibraryEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	e.SetUpdatedAt(now)

	result, err := r.db.Exec(`
		UPDATE library_entries
		SET youtube_url = ?, genre = ?, is_favorite = ?, is_saved = ?, search_count = ?, last_searched = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		e.YouTubeURL, e.Genre, e.IsFavorite, e.IsSaved, e.SearchCount, e.LastSearched, now, e.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library entry: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: song %s", shared.ErrNotFound, e.ID()))
}

// Delete soft-deletes a library entry by ID.
func (r *LibraryRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE library_entries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete library entry: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: song %s", shared.ErrNotFound, id))
}

// List retrieves entries matching the criteria ordered by sequence.
//
// Supported criteria: "user_id", "is_saved" (bool), "is_favorite" (bool).
func (r *LibraryRepository) List(criteria map[string]any) ([]*models.LibraryEntry, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_entries WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if saved, ok := criteria["is_saved"].(bool); ok {
		query += " AND is_saved = ?"
		args = append(args, saved)
	}
	if fav, ok := criteria["is_favorite"].(bool); ok {
		query += " AND is_favorite = ?"
		args = append(args, fav)
	}

	query += " ORDER BY sequence ASC"
	return r.query(query, args...)
}

// Recent returns a user's entries ordered by last search, newest first.
func (r *LibraryRepository) Recent(userID string, limit int) ([]*models.LibraryEntry, error) {
	return r.query(
		`SELECT `+libraryColumns+` FROM library_entries WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY last_searched DESC, sequence DESC LIMIT ?`,
		userID, limit,
	)
}

// Saved returns a user's saved entries, most recently updated first.
func (r *LibraryRepository) Saved(userID string) ([]*models.LibraryEntry, error) {
	return r.query(
		`SELECT `+libraryColumns+` FROM library_entries WHERE user_id = ? AND is_saved = 1 AND deleted_at IS NULL
		ORDER BY updated_at DESC, sequence DESC`,
		userID,
	)
}

// Favorites returns a user's favorite entries, most recently updated first.
func (r *LibraryRepository) Favorites(userID string) ([]*models.LibraryEntry, error) {
	return r.query(
		`SELECT `+libraryColumns+` FROM library_entries WHERE user_id = ? AND is_favorite = 1 AND deleted_at IS NULL
		ORDER BY updated_at DESC, sequence DESC`,
		userID,
	)
}

func (r *LibraryRepository) query(query string, args ...any) ([]*models.LibraryEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library: %w", err)
	}
	defer rows.Close()

	entries := []*models.LibraryEntry{}
	for rows.Next() {
		e, err := scanLibraryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func scanLibraryEntry(s scanner) (*models.LibraryEntry, error) {
	var (
		id, userID, title, artist, youtubeURL, genre string
		sequence, searchCount                        int
		isFavorite, isSaved                          bool
		lastSearched, createdAt, updatedAt           time.Time
		deletedAt                                    sql.NullTime
	)

	err := s.Scan(&id, &sequence, &userID, &title, &artist, &youtubeURL, &genre, &isFavorite, &isSaved,
		&searchCount, &lastSearched, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan library entry: %w", err)
	}

	e := models.NewLibraryEntry(sequence, userID, title, artist)
	e.SetID(id)
	e.SetCreatedAt(createdAt)
	e.SetUpdatedAt(updatedAt)
	e.SetDeletedAt(nullTimePtr(deletedAt))
	e.YouTubeURL = youtubeURL
	e.Genre = genre
	e.IsFavorite = isFavorite
	e.IsSaved = isSaved
	e.SearchCount = searchCount
	e.LastSearched = lastSearched
	return e, nil
}
