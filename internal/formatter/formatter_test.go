package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
	th "github.com/desertthunder/chordypi/internal/testing"
)

func testProgression() *models.SongProgression {
	return &models.SongProgression{
		Title:         "Let It Be",
		Artist:        "The Beatles",
		Key:           "C",
		BPM:           76,
		TimeSignature: "4/4",
		Source:        "Official Beatles Songbook",
		Accuracy:      100,
		Chords: []models.ChordEvent{
			{Chord: "C", Time: 0, Duration: 4, Measure: 1, Beat: 1},
			{Chord: "G", Time: 4, Duration: 4, Measure: 2, Beat: 1},
			{Chord: "Am", Time: 8, Duration: 4, Measure: 3, Beat: 1},
			{Chord: "F", Time: 12, Duration: 4, Measure: 4, Beat: 1},
			{Chord: "F", Time: 24, Duration: 2, Measure: 7, Beat: 1},
			{Chord: "C", Time: 26, Duration: 2, Measure: 7, Beat: 3},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testProgression())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Measure,Beat,Time,Duration,Chord\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "7,3,26,2,C") {
			t.Errorf("CSV missing half-measure chord, got: %s", output)
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 7 {
			t.Errorf("expected 7 lines (header + 6 chords), got %d", len(lines))
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testProgression())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# The Beatles - Let It Be",
			"**Key**: C",
			"**Tempo**: 76 bpm (4/4)",
			"**Chords**: C, G, Am, F",
			"| 7 | 0:24 | F C |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testProgression())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Song: The Beatles - Let It Be") {
			t.Errorf("Text missing heading, got: %s", output)
		}
		if !strings.Contains(output, " 0:00 | C | G | Am | F |") {
			t.Errorf("Text missing first line of bars, got: %s", output)
		}
		if !strings.Contains(output, " 0:24 | F C |") {
			t.Errorf("Text missing second line of bars, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(testProgression())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded models.SongProgression
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Key != "C" || len(decoded.Chords) != 6 {
			t.Errorf("unexpected decoded progression: %+v", decoded)
		}
		if strings.Contains(string(data), "confidence") {
			t.Error("static chart should omit confidence")
		}
	})

	t.Run("Untitled", func(t *testing.T) {
		data, err := ExportToText(&models.SongProgression{})
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		if !strings.Contains(string(data), "Song: Untitled") {
			t.Errorf("expected untitled heading, got: %s", data)
		}
	})
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatText, "txt": FormatText, "MD": FormatMarkdown, "csv": FormatCSV, "json": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestWriteExport(t *testing.T) {
	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteExport(testProgression(), FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}

		if path != "let_it_be.md" {
			t.Errorf("expected default filename let_it_be.md, got %s", path)
		}
		th.AssertFileExists(t, path)

		content := th.MustReadFile(t, path)
		if !strings.Contains(content, "## Progression") {
			t.Errorf("written file missing progression section")
		}
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sheet.csv")

		got, err := WriteExport(testProgression(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("InvalidDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "sheet.txt")
		if _, err := WriteExport(testProgression(), FormatText, path); err == nil {
			t.Error("expected error writing into a missing directory")
		}
	})
}
