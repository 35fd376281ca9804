// Upload client for the /analyze-audio-upload endpoint
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

// UploadTimeout bounds a single upload and analysis round trip.
const UploadTimeout = 120 * time.Second

// Uploader posts WAV audio to a ChordyPi server for chord analysis.
type Uploader struct {
	baseURL    string
	user       string
	httpClient *http.Client
}

// NewUploader creates an [Uploader] against baseURL. A nil client gets a [shared.NewLocalClient] with [UploadTimeout].
func NewUploader(baseURL string, client *http.Client) *Uploader {
	if baseURL == "" {
		baseURL = "https://localhost:5000"
	}
	if client == nil {
		client = shared.NewLocalClient(UploadTimeout)
	}
	return &Uploader{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

// WithUser sets the Pi uid sent in the X-Pi-User header so uploads count against that user's daily limit.
func (u *Uploader) WithUser(uid string) *Uploader {
	u.user = uid
	return u
}

// Upload sends wav as the "audio" form file (audio.wav) with the song name and decodes the analysis.
//
// Progress runs from 0 to 90 while the body is sent and reaches 100 when the response is decoded.
func (u *Uploader) Upload(ctx context.Context, wav []byte, songName string, progress ProgressFunc) (*models.AnalysisResult, error) {
	if len(wav) == 0 {
		return nil, fmt.Errorf("%w: empty audio", shared.ErrInvalidInput)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.WriteField("song_name", songName); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	size := int64(body.Len())
	reader := &countingReader{r: &body, total: size, to: 90, progress: progress}

	ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/analyze-audio-upload", reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.user != "" {
		req.Header.Set("X-Pi-User", u.user)
	}

	progress.report(0, "Uploading audio")
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: upload failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%w: analysis server error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("%w: analysis server error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	progress.report(100, fmt.Sprintf("Detected %d chords", len(result.Chords)))
	return &result, nil
}

type countingReader struct {
	r        io.Reader
	n        int64
	total    int64
	to       int
	last     int
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.total > 0 && n > 0 {
		pct := int(float64(c.to) * min(1, float64(c.n)/float64(c.total)))
		if pct != c.last {
			c.last = pct
			c.progress.report(pct, "Uploading audio")
		}
	}
	return n, err
}
