package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/formatter"
	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

// ChordsList prints every song in the chord table.
func (r *Runner) ChordsList(ctx context.Context, cmd *cli.Command) error {
	songs := chords.All()
	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}

	bold := color.New(color.Bold).SprintFunc()
	r.writePlain("Found %d songs:\n\n", len(songs))
	for i, s := range songs {
		r.writePlain("%d. %s - %s\n", i+1, bold(s.Title), s.Artist)
		r.writePlain("   Key: %s • %d bpm • %s\n", s.Key, s.BPM, chords.FormatTime(s.PatternDuration()))
		r.writePlain("   Chords: %s\n", strings.Join(chords.UniqueChords(s.Chords), ", "))
	}
	return nil
}

// ChordsLookup renders a song's chord sheet, optionally repeated to --duration seconds.
func (r *Runner) ChordsLookup(ctx context.Context, cmd *cli.Command) error {
	song, err := lookupSong(cmd.StringArg("title"))
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if d := cmd.Float("duration"); d > 0 {
		song.Chords = chords.GenerateFullProgression(song.Chords, d)
	}
	r.logger.Debug("chord lookup", "title", song.Title, "chords", len(song.Chords), "format", format)

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteExport(song, format, out)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", path)
	}

	data, err := formatter.Export(song, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// ChordsMIDI writes a song's progression to a Standard MIDI File.
func (r *Runner) ChordsMIDI(ctx context.Context, cmd *cli.Command) error {
	song, err := lookupSong(cmd.StringArg("title"))
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		path = strings.TrimSuffix(formatter.DefaultFilename(song, formatter.FormatText), ".txt") + ".mid"
	}

	var buf bytes.Buffer
	if err := chords.ExportMIDI(*song, &buf); err != nil {
		return fmt.Errorf("failed to export MIDI: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write MIDI file: %w", err)
	}

	r.logger.Info("midi exported", "title", song.Title, "path", path, "bytes", buf.Len())
	return r.writePlain("✓ Wrote %s (%d chords)\n", path, len(song.Chords))
}

func lookupSong(title string) (*models.SongProgression, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: song title", shared.ErrMissingArgument)
	}
	song, ok := chords.Lookup(title)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the chord table", shared.ErrSongNotFound, title)
	}
	return song, nil
}
