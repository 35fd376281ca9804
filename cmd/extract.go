package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
	"github.com/desertthunder/chordypi/internal/tasks"
)

// batchSummary is the JSON shape of a batch extraction.
type batchSummary struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []batchLine `json:"items"`
}

type batchLine struct {
	URL      string `json:"url"`
	SongName string `json:"song_name,omitempty"`
	Key      string `json:"key,omitempty"`
	Chords   int    `json:"chords"`
	Error    string `json:"error,omitempty"`
}

// Extract downloads audio with yt-dlp, shrinks it and uploads it to a ChordyPi server for analysis.
//
// One URL runs a single extraction with phase progress; several run as a bounded batch.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one video URL", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	serverURL := cmd.String("server")
	if serverURL == "" {
		serverURL = config.Analysis.ServerURL
	}

	extractor := services.NewExtractor(config.Analysis.YTDLPPath)
	if !extractor.Available() {
		return fmt.Errorf("%w: yt-dlp not found", shared.ErrServiceUnavailable)
	}
	uploader := services.NewUploader(serverURL, r.httpClient).WithUser(cmd.String("user"))
	pipeline := tasks.NewPipeline(extractor, uploader, config.Analysis, r.logger)

	r.logger.Info("starting extraction", "urls", len(urls), "server", serverURL)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.Batch:
				r.writePlain("%s\n", update.Message)
			case tasks.Done:
			default:
				r.writePlain("[%3d%%] %-8s %s\n", update.Step, update.Phase, update.Message)
			}
		}
	}()

	if len(urls) == 1 {
		result, err := pipeline.ExtractAndAnalyze(ctx, progressCh, urls[0], cmd.String("song"))
		close(progressCh)
		<-done
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(result.Analysis, true)
		}
		r.printExtractResult(result)
		return nil
	}

	batch, err := pipeline.AnalyzeBatch(ctx, progressCh, urls, tasks.BatchOptions{
		Concurrency: int(cmd.Int("concurrency")),
		Rate:        cmd.Float("rate"),
	})
	close(progressCh)
	<-done
	if err != nil && batch == nil {
		return err
	}

	summary := summarizeBatch(batch)
	if cmd.Bool("json") {
		return r.writeJSON(summary, true)
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	r.writePlain("Succeeded: %s  Failed: %s\n\n", green(summary.Succeeded), red(summary.Failed))
	for _, line := range summary.Items {
		if line.Error != "" {
			r.writePlain("  %s %s: %s\n", red("✗"), line.URL, line.Error)
			continue
		}
		r.writePlain("  %s %s (%s, %d chords)\n", green("✓"), line.SongName, line.Key, line.Chords)
	}
	return err
}

func (r *Runner) printExtractResult(res *tasks.ExtractResult) {
	bold := color.New(color.Bold).SprintFunc()
	chord := color.New(color.FgCyan, color.Bold).SprintFunc()

	r.writePlain("\n")
	r.writePlainHeader("Analysis Complete")
	r.writePlain("%s %s\n", bold("Song:"), res.SongName)
	r.writePlain("%s %s • %s\n", bold("Key:"), res.Analysis.Key, chords.FormatTime(res.Analysis.Duration))
	r.writePlain("%s %s downloaded, %s uploaded", bold("Audio:"), formatSize(res.DownloadedBytes), formatSize(res.UploadedBytes))
	if res.Converted {
		r.writePlain(" (converted)")
	}
	r.writePlain("\n\n")

	names := make([]string, 0, len(res.Analysis.Chords))
	for _, name := range chords.UniqueChords(res.Analysis.Chords) {
		names = append(names, chord(name))
	}
	r.writePlain("Chords: %s\n", strings.Join(names, " "))
}

func summarizeBatch(batch *tasks.BatchResult) batchSummary {
	summary := batchSummary{Succeeded: batch.Succeeded, Failed: batch.Failed}
	for _, item := range batch.Items {
		line := batchLine{URL: item.URL, SongName: item.SongName}
		if item.Err != nil {
			line.Error = item.Err.Error()
		} else if item.Result != nil && item.Result.Analysis != nil {
			line.Key = item.Result.Analysis.Key
			line.Chords = len(item.Result.Analysis.Chords)
		}
		summary.Items = append(summary.Items, line)
	}
	return summary
}
