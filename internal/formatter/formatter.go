// package formatter renders chord progressions as chord sheets (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

// Format names an output format for [Export].
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat validates a user supplied format name. "md" is accepted for markdown and "txt" for text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// Export renders p in the given format.
func Export(p *models.SongProgression, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return ExportToText(p)
	case FormatMarkdown:
		return ExportToMarkdown(p)
	case FormatCSV:
		return ExportToCSV(p)
	case FormatJSON:
		return ExportToJSON(p)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
}

// ExportToCSV converts a progression to CSV with columns: Measure, Beat, Time, Duration, Chord
func ExportToCSV(p *models.SongProgression) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Measure", "Beat", "Time", "Duration", "Chord"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range p.Chords {
		record := []string{
			strconv.Itoa(c.Measure),
			strconv.Itoa(c.Beat),
			strconv.FormatFloat(c.Time, 'f', -1, 64),
			strconv.FormatFloat(c.Duration, 'f', -1, 64),
			c.Chord,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a progression to a Markdown chord sheet grouped by measure
func ExportToMarkdown(p *models.SongProgression) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", heading(p)))
	buf.WriteString(fmt.Sprintf("**Key**: %s\n", p.Key))
	buf.WriteString(fmt.Sprintf("**Tempo**: %d bpm (%s)\n", p.BPM, p.TimeSignature))
	if p.Source != "" {
		buf.WriteString(fmt.Sprintf("**Source**: %s (%d%%)\n", p.Source, p.Accuracy))
	}
	buf.WriteString(fmt.Sprintf("**Chords**: %s\n\n", strings.Join(chords.UniqueChords(p.Chords), ", ")))

	buf.WriteString("## Progression\n\n")
	buf.WriteString("| Measure | Time | Chords |\n|---|---|---|\n")
	for _, m := range byMeasure(p.Chords) {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s |\n", m.measure, shared.FormatSeconds(m.start), strings.Join(m.names, " ")))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a progression to a plain text chord sheet, four measures per line
func ExportToText(p *models.SongProgression) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Song: %s\n", heading(p)))
	buf.WriteString(fmt.Sprintf("Key: %s  Tempo: %d bpm  Time: %s\n", p.Key, p.BPM, p.TimeSignature))
	buf.WriteString(fmt.Sprintf("Chords: %d\n\n", len(p.Chords)))

	measures := byMeasure(p.Chords)
	for i := 0; i < len(measures); i += 4 {
		end := min(i+4, len(measures))
		bars := make([]string, 0, 4)
		for _, m := range measures[i:end] {
			bars = append(bars, strings.Join(m.names, " "))
		}
		buf.WriteString(fmt.Sprintf("%5s | %s |\n", shared.FormatSeconds(measures[i].start), strings.Join(bars, " | ")))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the progression as indented JSON
func ExportToJSON(p *models.SongProgression) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progression: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders p and writes it to path.
//
// Defaults to {normalized title}.{ext} when path is empty.
func WriteExport(p *models.SongProgression, f Format, path string) (string, error) {
	if path == "" {
		path = DefaultFilename(p, f)
	}

	data, err := Export(p, f)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}

// DefaultFilename derives a file name from the song title.
func DefaultFilename(p *models.SongProgression, f Format) string {
	base := strings.ReplaceAll(chords.Normalize(p.Title), " ", "_")
	if base == "" {
		base = "progression"
	}

	ext := map[Format]string{FormatText: "txt", FormatMarkdown: "md", FormatCSV: "csv", FormatJSON: "json"}[f]
	return base + "." + ext
}

type measure struct {
	measure int
	start   float64
	names   []string
}

func byMeasure(events []models.ChordEvent) []measure {
	var out []measure
	for _, c := range events {
		if n := len(out); n > 0 && out[n-1].measure == c.Measure {
			out[n-1].names = append(out[n-1].names, c.Chord)
			continue
		}
		out = append(out, measure{measure: c.Measure, start: c.Time, names: []string{c.Chord}})
	}
	return out
}

func heading(p *models.SongProgression) string {
	switch {
	case p.Title != "" && p.Artist != "":
		return p.Artist + " - " + p.Title
	case p.Title != "":
		return p.Title
	}
	return "Untitled"
}
