package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

// VideoSearcher finds music videos for a query.
//
// Implemented by [services.YouTubeService].
type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]models.Video, error)
}

// SearchHandler serves song search backed by YouTube.
type SearchHandler struct {
	youtube VideoSearcher
	logger  *log.Logger
}

// NewSearchHandler creates a [SearchHandler].
func NewSearchHandler(youtube VideoSearcher, logger *log.Logger) *SearchHandler {
	return &SearchHandler{youtube: youtube, logger: logger}
}

func (h *SearchHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/search-songs", Handler: h.Search},
	}
}

// Search handles POST /api/search-songs
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, err)
		return
	}
	query := strings.TrimSpace(body.Query)
	if query == "" {
		respondError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	videos, err := h.youtube.Search(r.Context(), query)
	switch {
	case errors.Is(err, shared.ErrSongNotFound):
		videos = []models.Video{}
	case err != nil:
		h.logger.Error("youtube search failed", "query", query, "error", err)
		respondErr(w, err)
		return
	}

	h.logger.Debug("search", "query", query, "results", len(videos))
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"songs":  videos,
		"query":  query,
	})
}
