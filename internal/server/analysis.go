package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/audio"
	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/premium"
	"github.com/desertthunder/chordypi/internal/shared"
)

// AllowedExtensions are the upload file types accepted by the analysis endpoint.
var AllowedExtensions = []string{".wav", ".mp3", ".m4a", ".webm", ".ogg"}

const (
	defaultSongDuration = 240.0
	uploadAccuracy      = 70
)

// AnalysisHandler serves chord analysis of uploaded audio and chord chart lookups.
type AnalysisHandler struct {
	analyzer   *audio.Analyzer
	manager    *premium.Manager
	maxBytes   int64
	ffmpegPath string
	logger     *log.Logger
	now        func() time.Time
}

// NewAnalysisHandler creates an [AnalysisHandler]. Uploads above maxBytes are rejected.
func NewAnalysisHandler(analyzer *audio.Analyzer, manager *premium.Manager, maxBytes int64, ffmpegPath string, logger *log.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer:   analyzer,
		manager:    manager,
		maxBytes:   maxBytes,
		ffmpegPath: ffmpegPath,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *AnalysisHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/analyze-audio-upload", Handler: h.Upload},
		{Method: http.MethodPost, Path: "/api/analyze-audio-upload", Handler: h.Upload},
		{Method: http.MethodPost, Path: "/api/analyze-song", Handler: h.AnalyzeSong},
		{Method: http.MethodPost, Path: "/api/test-upload", Handler: h.TestUpload},
		{Method: http.MethodGet, Path: "/api/chords", Handler: h.Chords},
		{Method: http.MethodGet, Path: "/api/chords/{title}/midi", Handler: h.MIDI},
		{Method: http.MethodGet, Path: "/api/usage", Handler: h.Usage},
	}
}

type uploadResponse struct {
	*models.AnalysisResult
	Usage *premium.Usage `json:"usage,omitempty"`
}

// Upload handles POST /analyze-audio-upload
//
// Accepts a multipart form with an "audio" file and an optional "song_name" field. A signed-in
// caller's daily slot is reserved up front and handed back when the upload is rejected.
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var (
		usage    *premium.Usage
		analyzed bool
	)
	day := h.now()
	if user, ok := UserFrom(r.Context()); ok {
		u, err := h.manager.ReserveAnalysis(user.ID(), day)
		if errors.Is(err, shared.ErrLimitReached) {
			respondJSON(w, http.StatusTooManyRequests, map[string]any{
				"status": "error",
				"error":  "Daily analysis limit reached. Unlock Unlimited Song Analysis to keep going.",
				"usage":  u,
			})
			return
		}
		if err != nil {
			respondErr(w, err)
			return
		}
		usage = &u

		if !u.Unlimited {
			defer func() {
				if analyzed {
					return
				}
				if err := h.manager.ReleaseAnalysis(user.ID(), day); err != nil {
					h.logger.Warn("failed to release analysis slot", "user", user.ID(), "error", err)
				}
			}()
		}
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. Maximum: %d MB", h.maxBytes>>20))
			return
		}
		respondError(w, http.StatusBadRequest, "No audio file provided. Please upload an audio file.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No audio file provided. Please upload an audio file.")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		respondError(w, http.StatusBadRequest, "Empty filename. Please select a valid audio file.")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(AllowedExtensions, ext) {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported file type: %s. Allowed: %s", ext, strings.Join(AllowedExtensions, ", ")))
		return
	}

	if header.Size > h.maxBytes {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("File too large (%.1f MB). Maximum: %d MB", float64(header.Size)/(1<<20), h.maxBytes>>20))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	songName := orDefault(r.FormValue("song_name"), "Unknown Song")
	h.logger.Info("audio upload", "file", header.Filename, "song", songName, "bytes", len(data))

	if !audio.IsWAV(data) {
		if !audio.FFmpegAvailable(h.ffmpegPath) {
			respondErr(w, fmt.Errorf("%w: %s uploads need ffmpeg on the server, send WAV instead", shared.ErrUnsupportedFormat, ext))
			return
		}
		data, err = audio.ConvertToWAV(r.Context(), h.ffmpegPath, data, ext, h.analyzer.Options().AnalysisRate)
		if err != nil {
			h.logger.Error("ffmpeg conversion failed", "error", err)
			respondError(w, http.StatusBadRequest, "Could not decode audio file")
			return
		}
	}

	res, err := h.analyzer.AnalyzeWAV(data)
	if err != nil {
		h.logger.Warn("failed to decode upload", "error", err)
		respondError(w, http.StatusBadRequest, "Could not decode audio file")
		return
	}
	if len(res.Chords) == 0 {
		respondError(w, http.StatusBadRequest,
			"Could not detect chord progression in this audio file. Try a song with clearer chords.")
		return
	}

	analyzed = true
	out := uploadResponse{AnalysisResult: uploadResult(songName, res), Usage: usage}

	h.logger.Info("analysis complete", "song", songName, "chords", len(res.Chords), "key", res.Key)
	respondJSON(w, http.StatusOK, out)
}

func uploadResult(songName string, res *audio.Result) *models.AnalysisResult {
	return &models.AnalysisResult{
		Status:       "success",
		SongName:     songName,
		Title:        songName,
		Chords:       res.Chords,
		Duration:     res.Duration,
		Key:          res.Key,
		AnalysisType: "Audio Analysis (Chroma)",
		Accuracy:     uploadAccuracy,
		Source:       "Client-Side Upload",
		AnalysisMetadata: models.AnalysisMetadata{
			Method:             "chroma",
			TotalChordSegments: len(res.Chords),
			UniqueChords:       len(chords.UniqueChords(res.Chords)),
			Accuracy:           uploadAccuracy,
			DetectionEngine:    "Chroma Template Matching",
			Note:               "Client-side extraction + chroma analysis",
			ExtractionMethod:   "browser",
		},
	}
}

// AnalyzeSong handles POST /api/analyze-song
//
// Body: {"song_name" or "query", "url", "duration"}. Known songs are expanded to duration seconds.
func (h *AnalysisHandler) AnalyzeSong(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SongName string  `json:"song_name"`
		Query    string  `json:"query"`
		URL      string  `json:"url"`
		Duration float64 `json:"duration"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondErr(w, err)
		return
	}

	songName := strings.TrimSpace(orDefault(body.SongName, body.Query))
	if songName == "" && strings.TrimSpace(body.URL) == "" {
		respondError(w, http.StatusBadRequest, "Song name or URL is required for analysis")
		return
	}

	p, ok := chords.Lookup(songName)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"status":    "error",
			"error":     fmt.Sprintf("No chord chart found for %q", orDefault(songName, body.URL)),
			"song_name": songName,
			"hint":      "Upload the audio to /analyze-audio-upload for chord detection",
		})
		return
	}

	total := body.Duration
	if total <= 0 {
		total = defaultSongDuration
	}
	full := chords.GenerateFullProgression(p.Chords, total)

	respondJSON(w, http.StatusOK, &models.AnalysisResult{
		Status:        "success",
		SongName:      songName,
		Title:         p.Title,
		Artist:        p.Artist,
		URL:           body.URL,
		Chords:        full,
		Duration:      total,
		Key:           p.Key,
		BPM:           p.BPM,
		TimeSignature: p.TimeSignature,
		AnalysisType:  "chord_database",
		Accuracy:      p.Accuracy,
		Source:        p.Source,
		AnalysisMetadata: models.AnalysisMetadata{
			Method:             "lookup",
			TotalChordSegments: len(full),
			UniqueChords:       len(chords.UniqueChords(full)),
			Accuracy:           p.Accuracy,
			DetectionEngine:    "Chord Database",
			Note:               "Verified chord chart expanded to the song length",
			ExtractionMethod:   "none",
		},
	})
}

// TestUpload handles POST /api/test-upload
func (h *AnalysisHandler) TestUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondErr(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	fields := []string{}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
		for name := range r.MultipartForm.File {
			fields = append(fields, name)
		}
		slices.Sort(fields)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"status":           "error",
			"message":          "No 'audio' field found",
			"available_fields": fields,
		})
		return
	}
	file.Close()

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "File received!",
		"filename":     header.Filename,
		"content_type": header.Header.Get("Content-Type"),
	})
}

// Chords handles GET /api/chords?title=&duration=
func (h *AnalysisHandler) Chords(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r, r.URL.Query().Get("title"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// MIDI handles GET /api/chords/{title}/midi
//
// Requires the advancedAnalysis feature.
func (h *AnalysisHandler) MIDI(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.manager.Require(user.ID(), models.AdvancedAnalysis); err != nil {
		respondErr(w, err)
		return
	}

	p, ok := h.lookup(w, r, Vars(r)["title"])
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := chords.ExportMIDI(*p, &buf); err != nil {
		respondErr(w, err)
		return
	}

	filename := strings.ReplaceAll(strings.ToLower(p.Title), " ", "-") + ".mid"
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Usage handles GET /api/usage
func (h *AnalysisHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	usage, err := h.manager.Usage(user.ID(), h.now())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, usage)
}

// lookup resolves title from the chord table, expanding to the optional ?duration= seconds.
func (h *AnalysisHandler) lookup(w http.ResponseWriter, r *http.Request, title string) (*models.SongProgression, bool) {
	if strings.TrimSpace(title) == "" {
		respondError(w, http.StatusBadRequest, "Song title is required")
		return nil, false
	}

	p, ok := chords.Lookup(title)
	if !ok {
		respondErr(w, fmt.Errorf("%w: %s", shared.ErrSongNotFound, title))
		return nil, false
	}

	if raw := r.URL.Query().Get("duration"); raw != "" {
		total, err := strconv.ParseFloat(raw, 64)
		if err != nil || total <= 0 {
			respondError(w, http.StatusBadRequest, "duration must be a positive number of seconds")
			return nil, false
		}
		p.Chords = chords.GenerateFullProgression(p.Chords, total)
	}
	return p, true
}
