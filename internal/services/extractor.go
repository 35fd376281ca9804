// yt-dlp audio extraction
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/desertthunder/chordypi/internal/shared"
)

const defaultYTDLP string = "yt-dlp"

// ProgressFunc receives a completion percentage (0-100) and a short status message.
type ProgressFunc func(percent int, message string)

func (fn ProgressFunc) report(percent int, message string) {
	if fn != nil {
		fn(percent, message)
	}
}

// MediaFormat is one downloadable stream reported by yt-dlp.
type MediaFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	ACodec         string  `json:"acodec"`
	VCodec         string  `json:"vcodec"`
	ABR            float64 `json:"abr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	URL            string  `json:"url"`
}

// AudioOnly reports whether the format carries audio without video.
func (f MediaFormat) AudioOnly() bool {
	return f.VCodec == "none" && f.ACodec != "" && f.ACodec != "none"
}

// Size returns the exact or approximate size in bytes, or zero when unknown.
func (f MediaFormat) Size() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// VideoInfo is the subset of yt-dlp's -J metadata used for extraction.
type VideoInfo struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Uploader string        `json:"uploader"`
	Channel  string        `json:"channel"`
	Artist   string        `json:"artist"`
	Track    string        `json:"track"`
	Duration float64       `json:"duration"`
	Formats  []MediaFormat `json:"formats"`
}

// SongName returns "Artist - Track" when yt-dlp recognized the song, else the video title.
func (v *VideoInfo) SongName() string {
	if v.Artist != "" && v.Track != "" {
		return v.Artist + " - " + v.Track
	}
	return v.Title
}

// Extractor downloads audio streams with the yt-dlp binary.
type Extractor struct {
	bin string
}

// NewExtractor creates an [Extractor]. An empty bin selects "yt-dlp" from PATH.
func NewExtractor(bin string) *Extractor {
	if bin == "" {
		bin = defaultYTDLP
	}
	return &Extractor{bin: bin}
}

// Available reports whether the yt-dlp binary can be found.
func (e *Extractor) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// command runs yt-dlp with args followed by url. The url comes after "--" so it is never parsed as an option.
func (e *Extractor) command(ctx context.Context, url string, args ...string) *exec.Cmd {
	argv := append([]string{"--no-warnings", "--no-playlist"}, args...)
	argv = append(argv, "--", url)
	return exec.CommandContext(ctx, e.bin, argv...)
}

// Info reads the metadata and format list of url.
func (e *Extractor) Info(ctx context.Context, url string) (*VideoInfo, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	var stdout, stderr bytes.Buffer
	cmd := e.command(ctx, url, "-J")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: yt-dlp metadata extraction failed: %v: %s", shared.ErrServiceUnavailable, err, strings.TrimSpace(stderr.String()))
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
	}
	if strings.TrimSpace(info.ID) == "" {
		return nil, fmt.Errorf("missing video ID in yt-dlp output")
	}
	return &info, nil
}

// PickFormat chooses the audio-only stream to download: m4a first, then webm, then any other audio-only format.
func PickFormat(formats []MediaFormat) (MediaFormat, error) {
	var audio []MediaFormat
	for _, f := range formats {
		if f.AudioOnly() {
			audio = append(audio, f)
		}
	}
	if len(audio) == 0 {
		return MediaFormat{}, fmt.Errorf("%w: no audio-only stream available", shared.ErrUnsupportedFormat)
	}

	for _, ext := range []string{"m4a", "webm"} {
		for _, f := range audio {
			if f.Ext == ext {
				return f, nil
			}
		}
	}
	return audio[0], nil
}

// Download streams format of url into memory.
//
// Progress runs from 20 to 80 as bytes arrive when the stream size is known, and reaches 100 once buffered.
func (e *Extractor) Download(ctx context.Context, url string, format MediaFormat, progress ProgressFunc) ([]byte, error) {
	progress.report(20, "Downloading audio stream")

	var stderr bytes.Buffer
	cmd := e.command(ctx, url, "-f", format.FormatID, "-o", "-")
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open yt-dlp output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start yt-dlp: %v", shared.ErrServiceUnavailable, err)
	}

	var buf bytes.Buffer
	w := &countingWriter{w: &buf, total: format.Size(), from: 20, to: 80, progress: progress}
	if _, err := io.Copy(w, stdout); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: yt-dlp download failed: %v: %s", shared.ErrServiceUnavailable, err, strings.TrimSpace(stderr.String()))
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty audio stream", shared.ErrUnsupportedFormat)
	}

	progress.report(100, fmt.Sprintf("Downloaded %d bytes", buf.Len()))
	return buf.Bytes(), nil
}

// countingWriter reports progress between from and to as bytes pass through, emitting only when the percentage changes.
type countingWriter struct {
	w        io.Writer
	n        int64
	total    int64
	from, to int
	last     int
	progress ProgressFunc
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	if c.total > 0 {
		pct := c.from + int(float64(c.to-c.from)*min(1, float64(c.n)/float64(c.total)))
		if pct != c.last {
			c.last = pct
			c.progress.report(pct, fmt.Sprintf("%d of %d bytes", c.n, c.total))
		}
	}
	return n, err
}
