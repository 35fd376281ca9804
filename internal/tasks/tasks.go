package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/desertthunder/chordypi/internal/audio"
	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

const (
	defaultMaxSeconds  = 300
	defaultSampleRate  = 22050
	defaultConcurrency = 2
)

// Downloader fetches metadata and audio bytes for a video URL.
//
// Implemented by [services.Extractor].
type Downloader interface {
	Info(ctx context.Context, url string) (*services.VideoInfo, error)
	Download(ctx context.Context, url string, format services.MediaFormat, progress services.ProgressFunc) ([]byte, error)
}

// Analyzer sends WAV audio to a chord analysis endpoint.
//
// Implemented by [services.Uploader].
type Analyzer interface {
	Upload(ctx context.Context, wav []byte, songName string, progress services.ProgressFunc) (*models.AnalysisResult, error)
}

// ExtractResult contains all data from a single extract-and-analyze run.
type ExtractResult struct {
	Info            *services.VideoInfo    // yt-dlp metadata
	Format          services.MediaFormat   // Stream that was downloaded
	SongName        string                 // Name sent with the upload
	DownloadedBytes int                    // Size of the raw download
	UploadedBytes   int                    // Size of the uploaded WAV
	Converted       bool                   // Transcoded to WAV with ffmpeg
	Compressed      bool                   // Trimmed and resampled before upload
	Analysis        *models.AnalysisResult // Server analysis
}

// BatchOptions bounds a batch run. Zero values fall back to defaults.
type BatchOptions struct {
	Concurrency int     // Workers running at once
	Rate        float64 // Extractions started per second; zero disables limiting
	Burst       int
}

// BatchItem is the outcome of one URL in a batch.
type BatchItem struct {
	Index    int
	URL      string
	SongName string
	Result   *ExtractResult
	Err      error
}

// BatchResult collects per-item outcomes in input order.
type BatchResult struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
}

// Pipeline downloads audio with yt-dlp, shrinks it to a small WAV and uploads it for chord analysis.
type Pipeline struct {
	downloader Downloader
	analyzer   Analyzer
	maxSeconds float64
	sampleRate int
	logger     *log.Logger

	ffmpegAvailable func() bool
	convert         func(ctx context.Context, data []byte, ext string) ([]byte, error)
}

// NewPipeline creates a [Pipeline] using the duration, sample rate and ffmpeg settings in cfg.
func NewPipeline(d Downloader, a Analyzer, cfg shared.AnalysisConfig, logger *log.Logger) *Pipeline {
	p := &Pipeline{
		downloader: d,
		analyzer:   a,
		maxSeconds: float64(cfg.MaxDurationSeconds),
		sampleRate: cfg.TargetSampleRate,
		logger:     logger,
	}
	if p.maxSeconds <= 0 {
		p.maxSeconds = defaultMaxSeconds
	}
	if p.sampleRate <= 0 {
		p.sampleRate = defaultSampleRate
	}

	bin := cfg.FFmpegPath
	p.ffmpegAvailable = func() bool { return audio.FFmpegAvailable(bin) }
	p.convert = func(ctx context.Context, data []byte, ext string) ([]byte, error) {
		return audio.ConvertToWAV(ctx, bin, data, ext, p.sampleRate)
	}
	return p
}

// ExtractAndAnalyze runs the download (0-40), compress (40-50) and upload (50-100) phases for one URL.
//
// An empty songName falls back to the artist and track reported by yt-dlp.
func (p *Pipeline) ExtractAndAnalyze(ctx context.Context, progress chan<- ProgressUpdate, url, songName string) (*ExtractResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: video URL", shared.ErrMissingArgument)
	}

	sendProgress(progress, downloadUpdate(0, "Fetching video info..."))
	info, err := p.downloader.Info(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video info: %w", err)
	}

	format, err := services.PickFormat(info.Formats)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, foundVideoUpdate(info, format))

	if songName == "" {
		songName = info.SongName()
	}

	data, err := p.downloader.Download(ctx, url, format, func(percent int, message string) {
		sendProgress(progress, downloadUpdate(percent, message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}

	result := &ExtractResult{
		Info:            info,
		Format:          format,
		SongName:        songName,
		DownloadedBytes: len(data),
	}

	wav := p.prepare(ctx, progress, data, format, result)
	result.UploadedBytes = len(wav)

	analysis, err := p.analyzer.Upload(ctx, wav, songName, func(percent int, message string) {
		sendProgress(progress, uploadUpdate(percent, message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze audio: %w", err)
	}
	result.Analysis = analysis

	if p.logger != nil {
		p.logger.Info("analysis complete",
			"song", songName,
			"chords", len(analysis.Chords),
			"key", analysis.Key,
			"downloaded", len(data),
			"uploaded", len(wav),
		)
	}

	sendProgress(progress, doneUpdate(result))
	return result, nil
}

// prepare converts data to WAV when possible and compresses it.
//
// Every failure here degrades to uploading what we already have.
func (p *Pipeline) prepare(ctx context.Context, progress chan<- ProgressUpdate, data []byte, format services.MediaFormat, result *ExtractResult) []byte {
	sendProgress(progress, compressUpdate(0, "Preparing audio..."))

	if !audio.IsWAV(data) {
		if !p.ffmpegAvailable() {
			p.warn("ffmpeg not available, uploading original audio", "ext", format.Ext)
			sendProgress(progress, compressUpdate(100, "Uploading original audio"))
			return data
		}

		sendProgress(progress, compressUpdate(20, "Converting to WAV..."))
		converted, err := p.convert(ctx, data, "."+format.Ext)
		if err != nil {
			p.warn("ffmpeg conversion failed, uploading original audio", "error", err)
			sendProgress(progress, compressUpdate(100, "Uploading original audio"))
			return data
		}
		data = converted
		result.Converted = true
	}

	sendProgress(progress, compressUpdate(60, "Compressing audio..."))
	compressed := audio.Compress(data, p.maxSeconds, p.sampleRate)
	result.Compressed = compressed.Compressed

	msg := "Compression skipped"
	if compressed.Compressed {
		msg = fmt.Sprintf("Compressed %s to %s (%d Hz)",
			formatBytes(compressed.OriginalSize), formatBytes(len(compressed.Data)), compressed.SampleRate)
	}
	sendProgress(progress, compressUpdate(100, msg))
	return compressed.Data
}

// AnalyzeBatch runs [Pipeline.ExtractAndAnalyze] over urls with bounded concurrency.
//
// Failures are recorded per item and never stop the other items. The returned error is
// non-nil only when ctx is done before every item has been attempted.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, progress chan<- ProgressUpdate, urls []string, opts BatchOptions) (*BatchResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no URLs to analyze", shared.ErrMissingArgument)
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	limiter := rate.NewLimiter(limit, max(1, opts.Burst))

	total := len(urls)
	items := make([]BatchItem, total)
	var completed atomic.Int32

	var g errgroup.Group
	g.SetLimit(workers)

	for i, url := range urls {
		items[i] = BatchItem{Index: i, URL: url}

		g.Go(func() error {
			item := &items[i]
			if err := limiter.Wait(ctx); err != nil {
				item.Err = err
				return nil
			}

			sendProgress(progress, batchStartedUpdate(i+1, total, url))
			start := time.Now()
			res, err := p.ExtractAndAnalyze(ctx, nil, url, "")
			step := int(completed.Add(1))

			if err != nil {
				item.Err = err
				p.warn("batch item failed", "url", url, "error", err)
				sendProgress(progress, batchFailedUpdate(step, total, *item))
				return nil
			}

			item.Result = res
			item.SongName = res.SongName
			if p.logger != nil {
				p.logger.Debug("batch item analyzed", "url", url, "elapsed", time.Since(start))
			}
			sendProgress(progress, batchCompletedUpdate(step, total, *item))
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Items: items}
	for _, item := range items {
		if item.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}
	return result, ctx.Err()
}

func (p *Pipeline) warn(msg string, kv ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, kv...)
	}
}

// sendProgress sends a progress update without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
