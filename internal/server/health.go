package server

import (
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/chordypi/internal/audio"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ChordyPi - AI Chord Detection API with Pi Network"

// Version is the server version reported by the health endpoint. Overridden at build time.
var Version = "dev"

// PiStatus reports the Pi platform configuration.
//
// Implemented by [services.PiService].
type PiStatus interface {
	Sandbox() bool
	Configured() bool
}

// HealthHandler serves liveness endpoints for the API and the Pi integration.
type HealthHandler struct {
	webBuildPath string
	ffmpegPath   string
	pi           PiStatus
	now          func() time.Time
}

// NewHealthHandler creates a [HealthHandler].
func NewHealthHandler(webBuildPath, ffmpegPath string, pi PiStatus) *HealthHandler {
	return &HealthHandler{
		webBuildPath: webBuildPath,
		ffmpegPath:   ffmpegPath,
		pi:           pi,
		now:          time.Now,
	}
}

func (h *HealthHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/api/health", Handler: h.Health},
		{Method: http.MethodGet, Path: "/api/pi/health", Handler: h.PiHealth},
	}
}

// Health handles GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	_, err := os.Stat(h.webBuildPath)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"service":          ServiceName,
		"version":          Version,
		"timestamp":        h.now().UTC().Format(time.RFC3339),
		"web_build_exists": h.webBuildPath != "" && err == nil,
		"ffmpeg_available": audio.FFmpegAvailable(h.ffmpegPath),
	})
}

// PiHealth handles GET /api/pi/health
func (h *HealthHandler) PiHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"sandbox_mode":       h.pi.Sandbox(),
		"api_key_configured": h.pi.Configured(),
		"timestamp":          h.now().UTC().Format(time.RFC3339),
	})
}
