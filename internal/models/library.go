package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LibraryEntry is a song in a user's library: searched, saved or marked favorite.
type LibraryEntry struct {
	record
	UserID       string
	Title        string
	Artist       string
	YouTubeURL   string
	Genre        string
	IsFavorite   bool
	IsSaved      bool
	SearchCount  int
	LastSearched time.Time
}

// NewLibraryEntry creates a [LibraryEntry] that has been searched once.
func NewLibraryEntry(sequence int, userID, title, artist string) *LibraryEntry {
	r := newRecord(sequence)
	return &LibraryEntry{
		record:       r,
		UserID:       userID,
		Title:        title,
		Artist:       artist,
		SearchCount:  1,
		LastSearched: r.createdAt,
	}
}

// Validate requires a user, title and artist.
func (e *LibraryEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Artist) == "" {
		return fmt.Errorf("title and artist are required")
	}
	return nil
}

func (e *LibraryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":            e.ID(),
		"user_id":       e.UserID,
		"song_title":    e.Title,
		"song_artist":   e.Artist,
		"youtube_url":   e.YouTubeURL,
		"genre":         e.Genre,
		"is_favorite":   e.IsFavorite,
		"is_saved":      e.IsSaved,
		"search_count":  e.SearchCount,
		"last_searched": e.LastSearched,
		"created_at":    e.CreatedAt(),
		"updated_at":    e.UpdatedAt(),
	})
}
