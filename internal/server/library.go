package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/shared"
)

const defaultRecentLimit = 10

// LibraryHandler serves the signed-in user's song library.
type LibraryHandler struct {
	library *repositories.LibraryRepository
	logger  *log.Logger
}

// NewLibraryHandler creates a [LibraryHandler].
func NewLibraryHandler(library *repositories.LibraryRepository, logger *log.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, logger: logger}
}

func (h *LibraryHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/library/add", Handler: h.Add},
		{Method: http.MethodGet, Path: "/api/library/recent", Handler: h.Recent},
		{Method: http.MethodGet, Path: "/api/library/saved", Handler: h.Saved},
		{Method: http.MethodGet, Path: "/api/library/favorites", Handler: h.Favorites},
		{Method: http.MethodPost, Path: "/api/library/toggle-favorite", Handler: h.ToggleFavorite},
		{Method: http.MethodDelete, Path: "/api/library/remove", Handler: h.Remove},
	}
}

func libraryError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"status": "error", "message": msg})
}

// Add handles POST /api/library/add
func (h *LibraryHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Title      string `json:"title"`
		Artist     string `json:"artist"`
		YouTubeURL string `json:"youtube_url"`
		Genre      string `json:"genre"`
		IsFavorite bool   `json:"is_favorite"`
		IsSaved    *bool  `json:"is_saved"`
	}
	if err := decodeJSON(r, &body); err != nil {
		libraryError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.Artist) == "" {
		libraryError(w, http.StatusBadRequest, "Title and artist are required")
		return
	}

	saved := body.IsSaved == nil || *body.IsSaved
	entry, err := h.library.Record(repositories.LibraryAdd{
		UserID:     user.ID(),
		Title:      strings.TrimSpace(body.Title),
		Artist:     strings.TrimSpace(body.Artist),
		YouTubeURL: body.YouTubeURL,
		Genre:      body.Genre,
		IsFavorite: body.IsFavorite,
		IsSaved:    saved,
	})
	if err != nil {
		h.logger.Error("failed to add song to library", "user", user.ID(), "error", err)
		libraryError(w, statusFor(err), "Failed to add song to library")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Song added to library successfully",
		"song":    entry,
	})
}

// Recent handles GET /api/library/recent?limit=
func (h *LibraryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultRecentLimit
	}
	songs, err := h.library.Recent(user.ID(), limit)
	h.songs(w, songs, err)
}

// Saved handles GET /api/library/saved
func (h *LibraryHandler) Saved(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	songs, err := h.library.Saved(user.ID())
	h.songs(w, songs, err)
}

// Favorites handles GET /api/library/favorites
func (h *LibraryHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	songs, err := h.library.Favorites(user.ID())
	h.songs(w, songs, err)
}

func (h *LibraryHandler) songs(w http.ResponseWriter, songs []*models.LibraryEntry, err error) {
	if err != nil {
		h.logger.Error("failed to list library", "error", err)
		libraryError(w, statusFor(err), "Failed to load library")
		return
	}
	if songs == nil {
		songs = []*models.LibraryEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "success", "songs": songs})
}

type songRef struct {
	SongID string `json:"song_id"`
}

// owned looks up the entry named in the body and checks that it belongs to user.
// Entries owned by someone else are reported as missing.
func (h *LibraryHandler) owned(w http.ResponseWriter, r *http.Request, user *models.User) (*models.LibraryEntry, bool) {
	var body songRef
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.SongID) == "" {
		libraryError(w, http.StatusBadRequest, "Song ID is required")
		return nil, false
	}

	entry, err := h.library.Get(strings.TrimSpace(body.SongID))
	switch {
	case errors.Is(err, shared.ErrNotFound), err == nil && entry.UserID != user.ID():
		libraryError(w, http.StatusNotFound, "Song not found")
		return nil, false
	case err != nil:
		libraryError(w, statusFor(err), err.Error())
		return nil, false
	}
	return entry, true
}

// ToggleFavorite handles POST /api/library/toggle-favorite
func (h *LibraryHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	entry, ok := h.owned(w, r, user)
	if !ok {
		return
	}

	updated, err := h.library.ToggleFavorite(entry.ID())
	if err != nil {
		libraryError(w, statusFor(err), "Failed to update favorite status")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"is_favorite": updated.IsFavorite,
		"message":     "Favorite status updated",
	})
}

// Remove handles DELETE /api/library/remove
func (h *LibraryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	entry, ok := h.owned(w, r, user)
	if !ok {
		return
	}

	if err := h.library.Delete(entry.ID()); err != nil {
		libraryError(w, statusFor(err), "Failed to remove song")
		return
	}
	h.logger.Info("removed song from library", "user", user.ID(), "song", entry.ID())
	respondJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "Song removed from library"})
}
