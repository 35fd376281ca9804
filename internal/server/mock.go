package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/services"
)

// FeaturedSongs is the curated landing page list.
var FeaturedSongs = []models.FeaturedSong{
	featured(1, "Wonderwall", "Oasis", "Beginner", "bx1Bh8ZvH84", "Pop Rock", "G", "D", "Em", "C"),
	featured(2, "Hotel California", "Eagles", "Intermediate", "BciS5krYL80", "Classic Rock", "Am", "E", "G", "D", "F", "C", "Dm"),
	featured(3, "Shape of You", "Ed Sheeran", "Beginner", "JGwWNGJdvx8", "Pop", "Am", "F", "C", "G"),
	featured(4, "Stairway to Heaven", "Led Zeppelin", "Advanced", "QkF3oxziUI4", "Classic Rock", "Am", "C", "D", "F", "G", "Em"),
	featured(5, "Perfect", "Ed Sheeran", "Beginner", "2Vv-BfVoq4g", "Pop", "G", "Em", "C", "D"),
}

func featured(id int, title, artist, difficulty, youtubeID, category string, chords ...string) models.FeaturedSong {
	return models.FeaturedSong{
		ID:         id,
		Title:      title,
		Artist:     artist,
		Difficulty: difficulty,
		Chords:     chords,
		Thumbnail:  fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", youtubeID),
		YouTubeID:  youtubeID,
		Category:   category,
	}
}

// MockHandler serves the demo endpoints the web client uses outside the Pi Browser.
type MockHandler struct {
	logger *log.Logger
	now    func() time.Time
}

// NewMockHandler creates a [MockHandler].
func NewMockHandler(logger *log.Logger) *MockHandler {
	return &MockHandler{logger: logger, now: time.Now}
}

func (h *MockHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/pi/authenticate", Handler: h.Authenticate},
		{Method: http.MethodPost, Path: "/api/pi/payment", Handler: h.Payment},
		{Method: http.MethodGet, Path: "/api/youtube/search", Handler: h.YouTubeSearch},
		{Method: http.MethodGet, Path: "/api/featured-songs", Handler: h.Featured},
	}
}

// Authenticate handles POST /api/pi/authenticate
func (h *MockHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
		User        *struct {
			UID      string `json:"uid"`
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := decodeJSON(r, &body); err != nil || body.AccessToken == "" || body.User == nil {
		respondError(w, http.StatusBadRequest, "Missing access token or user data")
		return
	}

	h.logger.Info("pi authentication", "user", body.User.Username, "uid", body.User.UID)
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":        body.User.UID,
			"username":  body.User.Username,
			"piBalance": 100,
		},
	})
}

// Payment handles POST /api/pi/payment
func (h *MockHandler) Payment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount   any            `json:"amount"`
		Memo     string         `json:"memo"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, err)
		return
	}

	h.logger.Info("pi payment request", "amount", body.Amount, "memo", body.Memo, "metadata", body.Metadata)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"paymentId": fmt.Sprintf("mock_payment_%d", h.now().UnixMilli()),
		"amount":    body.Amount,
		"memo":      body.Memo,
	})
}

// YouTubeSearch handles GET /api/youtube/search?q=
func (h *MockHandler) YouTubeSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "Query parameter required")
		return
	}
	respondJSON(w, http.StatusOK, services.MockSearch(q))
}

// Featured handles GET /api/featured-songs
func (h *MockHandler) Featured(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, FeaturedSongs)
}
