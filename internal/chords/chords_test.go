package chords

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/desertthunder/chordypi/internal/models"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Hotel California":            "hotel california",
		"  LET   IT BE ":              "let it be",
		"Eagles - Hotel California":   "hotel california",
		"Bob Marley No Woman No Cry":  "no woman no cry",
		"beatles let it be":           "let it be",
		"Luis Fonsi Despacito":        "despacito",
		"Oasis - Wonderwall (Remast)": "wonderwall (remast)",
		"":                            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestLookup(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		p, ok := Lookup("hotel california")
		require.True(t, ok)
		assert.Equal(t, "Bm", p.Key)
		assert.Equal(t, 74, p.BPM)
		assert.Equal(t, "4/4", p.TimeSignature)
		assert.Equal(t, 100, p.Accuracy)
		require.Len(t, p.Chords, 40)
		assert.Equal(t, models.ChordEvent{Chord: "F#", Time: 124, Duration: 4, Measure: 32, Beat: 1}, p.Chords[39])
	})

	t.Run("substring match", func(t *testing.T) {
		p, ok := Lookup("Wonderwall Official Video")
		require.True(t, ok)
		assert.Equal(t, "F#m", p.Key)

		p, ok = Lookup("gangnam")
		require.True(t, ok)
		assert.Equal(t, 132, p.BPM)
	})

	t.Run("artist prefix", func(t *testing.T) {
		p, ok := Lookup("The Beatles - Let It Be")
		require.True(t, ok)
		assert.Equal(t, "Official Beatles Songbook", p.Source)
		assert.Len(t, p.Chords, 24)
	})

	t.Run("miss", func(t *testing.T) {
		_, ok := Lookup("bohemian rhapsody")
		assert.False(t, ok)

		_, ok = Lookup("   ")
		assert.False(t, ok)
	})

	t.Run("returns a copy", func(t *testing.T) {
		p, ok := Lookup("despacito")
		require.True(t, ok)
		p.Chords[0].Chord = "X"

		again, _ := Lookup("despacito")
		assert.Equal(t, "Bm", again.Chords[0].Chord)
	})
}

func TestTable(t *testing.T) {
	assert.Len(t, Titles(), 7)
	assert.Equal(t, "despacito", Titles()[0])

	for _, p := range All() {
		require.NotEmpty(t, p.Chords, p.Title)
		for i := 1; i < len(p.Chords); i++ {
			assert.GreaterOrEqual(t, p.Chords[i].Time, p.Chords[i-1].Time, "%s chord %d out of order", p.Title, i)
		}
		for _, c := range p.Chords {
			_, err := ParseChord(c.Chord)
			assert.NoError(t, err, "%s: %s", p.Title, c.Chord)
		}
	}
}

func TestGenerateFullProgression(t *testing.T) {
	base := []models.ChordEvent{
		{Chord: "C", Time: 0, Duration: 2, Measure: 1, Beat: 1},
		{Chord: "G", Time: 2, Duration: 2, Measure: 1, Beat: 3},
	}

	t.Run("repeats to cover duration", func(t *testing.T) {
		out := GenerateFullProgression(base, 9)
		require.Len(t, out, 5)

		assert.Equal(t, []float64{0, 2, 4, 6, 8}, []float64{out[0].Time, out[1].Time, out[2].Time, out[3].Time, out[4].Time})
		assert.Equal(t, "C", out[4].Chord)

		last := out[4]
		assert.Equal(t, 5, last.Beat)
		assert.Equal(t, 2, last.Measure)
		assert.Equal(t, 1, last.BeatInMeasure)
		assert.Equal(t, 1.0, last.Confidence)
		assert.Equal(t, 4, out[3].BeatInMeasure)
	})

	t.Run("exact multiple stops at total", func(t *testing.T) {
		out := GenerateFullProgression(base, 8)
		assert.Len(t, out, 4)
	})

	t.Run("does not modify base", func(t *testing.T) {
		GenerateFullProgression(base, 20)
		assert.Equal(t, 1, base[1].Measure)
		assert.Zero(t, base[1].Confidence)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, GenerateFullProgression(nil, 10))
		assert.Empty(t, GenerateFullProgression(base, 0))
	})

	t.Run("song length", func(t *testing.T) {
		p, _ := Lookup("hotel california")
		out := GenerateFullProgression(p.Chords, 390)
		assert.Less(t, out[len(out)-1].Time, 390.0)
		assert.Equal(t, "Bm", out[40].Chord)
		assert.Equal(t, 128.0, out[40].Time)
	})
}

func TestProgressionHelpers(t *testing.T) {
	p, ok := Lookup("no woman no cry")
	require.True(t, ok)

	t.Run("Highlighted", func(t *testing.T) {
		got := Highlighted(p.Chords, 5)
		require.Len(t, got, 1)
		assert.Equal(t, "G", got[0].Chord)

		assert.Empty(t, Highlighted(p.Chords, 64))
	})

	t.Run("Current & Upcoming", func(t *testing.T) {
		assert.Equal(t, 2, Current(p.Chords, 8))
		assert.Equal(t, -1, Current(p.Chords, 100))

		next := Upcoming(p.Chords, 8, 2)
		require.Len(t, next, 2)
		assert.Equal(t, "F", next[0].Chord)
		assert.Equal(t, "C", next[1].Chord)
	})

	t.Run("ProgressionString", func(t *testing.T) {
		assert.Equal(t, "C - G - Am - F", ProgressionString(p.Chords[:4]))
		assert.Equal(t, "", ProgressionString(nil))
	})

	t.Run("UniqueChords", func(t *testing.T) {
		assert.Equal(t, []string{"C", "G", "Am", "F"}, UniqueChords(p.Chords))
	})

	t.Run("Duration & FormatTime", func(t *testing.T) {
		assert.Equal(t, 64.0, Duration(p.Chords))
		assert.Equal(t, "1:04", FormatTime(Duration(p.Chords)))
		assert.Equal(t, "0:00", FormatTime(-3))
	})
}

func TestParseChord(t *testing.T) {
	cases := []struct {
		symbol string
		root   string
		notes  []uint8
	}{
		{"C", "C", []uint8{48, 52, 55}},
		{"Am", "A", []uint8{57, 60, 64}},
		{"F#m", "F#", []uint8{54, 57, 61}},
		{"Em7", "E", []uint8{52, 55, 59, 62}},
		{"Dsus4", "D", []uint8{50, 55, 57}},
		{"A7sus4", "A", []uint8{57, 62, 64, 67}},
		{"Cadd9", "C", []uint8{48, 52, 55, 62}},
		{"Bb", "Bb", []uint8{58, 62, 65}},
		{"C/G", "C", []uint8{43, 48, 52, 55}},
	}

	for _, tc := range cases {
		t.Run(tc.symbol, func(t *testing.T) {
			c, err := ParseChord(tc.symbol)
			require.NoError(t, err)
			assert.Equal(t, tc.root, c.Root)
			assert.Equal(t, tc.notes, c.Notes)
		})
	}

	t.Run("minor detection", func(t *testing.T) {
		c, _ := ParseChord("Bm")
		assert.True(t, c.IsMinor())
		c, _ = ParseChord("Bmaj7")
		assert.False(t, c.IsMinor())
	})

	for _, bad := range []string{"", "H", "Cxyz", "C/Q"} {
		_, err := ParseChord(bad)
		assert.Error(t, err, "ParseChord(%q)", bad)
	}
}

func TestExportMIDI(t *testing.T) {
	p, ok := Lookup("despacito")
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, ExportMIDI(*p, &buf))
	assert.Equal(t, "MThd", buf.String()[:4])

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)

	var ch, key, vel uint8
	var noteOns int
	for _, ev := range s.Tracks[0] {
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			noteOns++
		}
	}
	assert.Equal(t, len(p.Chords)*3, noteOns)
}
