package chords

import (
	"fmt"
	"strings"

	"github.com/desertthunder/chordypi/internal/shared"
)

// Chord is a parsed chord symbol.
type Chord struct {
	Symbol  string
	Root    string
	Quality string
	Bass    string
	Notes   []uint8 // MIDI note numbers voiced from C3
}

var pitchClasses = map[string]int{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3, "E": 4, "F": 5,
	"F#": 6, "Gb": 6, "G": 7, "G#": 8, "Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

// NoteNames are the pitch class names used for chroma bins and key estimation.
var NoteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// intervals in semitones above the root for each recognized quality.
var qualities = map[string][]int{
	"":      {0, 4, 7},
	"maj":   {0, 4, 7},
	"m":     {0, 3, 7},
	"min":   {0, 3, 7},
	"7":     {0, 4, 7, 10},
	"m7":    {0, 3, 7, 10},
	"maj7":  {0, 4, 7, 11},
	"sus2":  {0, 2, 7},
	"sus4":  {0, 5, 7},
	"sus":   {0, 5, 7},
	"7sus4": {0, 5, 7, 10},
	"add9":  {0, 4, 7, 14},
	"dim":   {0, 3, 6},
	"aug":   {0, 4, 8},
	"5":     {0, 7},
}

const baseNote = 48 // C3

// PitchClass returns the 0-11 pitch class of a note name such as "F#" or "Bb".
func PitchClass(name string) (int, bool) {
	pc, ok := pitchClasses[name]
	return pc, ok
}

// ParseChord parses symbols like "Am", "F#m7", "Dsus4", "Cadd9" or "C/G".
func ParseChord(symbol string) (Chord, error) {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return Chord{}, fmt.Errorf("%w: empty chord", shared.ErrInvalidInput)
	}

	body, bass, _ := strings.Cut(s, "/")
	root, rest := splitRoot(body)
	pc, ok := pitchClasses[root]
	if !ok {
		return Chord{}, fmt.Errorf("%w: unknown root in %q", shared.ErrInvalidInput, symbol)
	}

	ivs, ok := qualities[rest]
	if !ok {
		return Chord{}, fmt.Errorf("%w: unknown quality %q in %q", shared.ErrInvalidInput, rest, symbol)
	}

	c := Chord{Symbol: s, Root: root, Quality: rest}
	if bass != "" {
		bpc, ok := pitchClasses[bass]
		if !ok {
			return Chord{}, fmt.Errorf("%w: unknown bass in %q", shared.ErrInvalidInput, symbol)
		}
		c.Bass = bass
		c.Notes = append(c.Notes, uint8(baseNote-12+bpc))
	}
	for _, iv := range ivs {
		c.Notes = append(c.Notes, uint8(baseNote+pc+iv))
	}
	return c, nil
}

// IsMinor reports whether the chord has a minor third and no major third.
func (c Chord) IsMinor() bool {
	return c.Quality == "m" || c.Quality == "min" || c.Quality == "m7"
}

func splitRoot(s string) (string, string) {
	if len(s) >= 2 && (s[1] == '#' || s[1] == 'b') {
		return s[:2], s[2:]
	}
	if len(s) >= 1 {
		return s[:1], s[1:]
	}
	return "", ""
}
