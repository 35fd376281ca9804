package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/audio"
	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/shared"
)

// wavInfo is the JSON shape of `audio info`.
type wavInfo struct {
	Path     string       `json:"path"`
	Bytes    int          `json:"bytes"`
	Format   audio.Format `json:"format"`
	Frames   int          `json:"frames"`
	Duration float64      `json:"duration"`
	Peak     float32      `json:"peak"`
}

// AudioEncode converts a file to a trimmed, resampled 16-bit WAV.
//
// Files that are not WAV are transcoded with ffmpeg first.
func (r *Runner) AudioEncode(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.StringArg("path")
	data, err := readAudio(path)
	if err != nil {
		return err
	}

	maxSeconds := cmd.Float("max-seconds")
	if maxSeconds <= 0 {
		maxSeconds = float64(config.Analysis.MaxDurationSeconds)
	}
	rate := int(cmd.Int("rate"))
	if rate <= 0 {
		rate = config.Analysis.TargetSampleRate
	}

	if !audio.IsWAV(data) {
		if !audio.FFmpegAvailable(config.Analysis.FFmpegPath) {
			return fmt.Errorf("%w: %s is not WAV and ffmpeg is unavailable", shared.ErrUnsupportedFormat, path)
		}
		r.logger.Info("transcoding with ffmpeg", "path", path)
		if data, err = audio.ConvertToWAV(ctx, config.Analysis.FFmpegPath, data, filepath.Ext(path), rate); err != nil {
			return err
		}
	}

	res := audio.Compress(data, maxSeconds, rate)
	if !res.Compressed {
		return fmt.Errorf("%w: could not re-encode %s", shared.ErrUnsupportedFormat, path)
	}

	out := cmd.String("output")
	if err := os.WriteFile(out, res.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	r.writePlain("%s Wrote %s\n", green("✓"), out)
	r.writePlain("  %s → %s\n", formatSize(res.OriginalSize), formatSize(len(res.Data)))
	r.writePlain("  %s at %d Hz (source %s)\n", chords.FormatTime(res.Duration), res.SampleRate, chords.FormatTime(res.SourceDuration))
	return nil
}

// AudioInfo prints the format of a WAV file.
func (r *Runner) AudioInfo(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	data, err := readAudio(path)
	if err != nil {
		return err
	}

	buf, format, err := audio.DecodeWAVBytes(data)
	if err != nil {
		return err
	}

	info := wavInfo{
		Path:     path,
		Bytes:    len(data),
		Format:   format,
		Frames:   buf.Frames(),
		Duration: buf.Duration(),
		Peak:     audio.Peak(buf),
	}
	if cmd.Bool("json") {
		return r.writeJSON(info, true)
	}

	r.writePlainHeader(filepath.Base(path))
	r.writePlain("Size:        %s\n", formatSize(info.Bytes))
	r.writePlain("Sample rate: %d Hz\n", format.SampleRate)
	r.writePlain("Channels:    %d\n", format.Channels)
	r.writePlain("Bit depth:   %d\n", format.BitDepth)
	r.writePlain("Duration:    %s (%d frames)\n", chords.FormatTime(info.Duration), info.Frames)
	r.writePlain("Peak:        %.3f\n", info.Peak)
	return nil
}

// AudioAnalyze detects chords in a WAV file with the same analyzer the upload endpoint uses.
func (r *Runner) AudioAnalyze(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.StringArg("path")
	data, err := readAudio(path)
	if err != nil {
		return err
	}

	analyzer := audio.NewAnalyzer(audio.AnalyzerOptions{MaxSeconds: float64(config.Analysis.MaxDurationSeconds)})
	res, err := analyzer.AnalyzeWAV(data)
	if err != nil {
		return err
	}
	r.logger.Debug("analysis complete", "path", path, "chords", len(res.Chords), "key", res.Key)

	if cmd.Bool("json") {
		return r.writeJSON(res, true)
	}
	if len(res.Chords) == 0 {
		return fmt.Errorf("%w in %s", shared.ErrNoChords, path)
	}

	bold := color.New(color.Bold).SprintFunc()
	chord := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	r.writePlain("%s %s\n", bold("Key:"), res.Key)
	r.writePlain("%s %s analyzed\n", bold("Duration:"), chords.FormatTime(res.Duration))
	r.writePlain("%s %s\n\n", bold("Unique:"), strings.Join(chords.UniqueChords(res.Chords), ", "))
	for _, c := range res.Chords {
		r.writePlain("  %s  %-6s %s\n", dim(chords.FormatTime(c.Time)), chord(c.Chord), dim(fmt.Sprintf("%.0f%%", c.Confidence*100)))
	}
	return nil
}

func readAudio(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: audio file path", shared.ErrMissingArgument)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
