package chords

import "github.com/desertthunder/chordypi/internal/models"

// ev builds a table entry. Static charts carry no confidence or beat_in_measure.
func ev(chord string, time, duration float64, measure, beat int) models.ChordEvent {
	return models.ChordEvent{Chord: chord, Time: time, Duration: duration, Measure: measure, Beat: beat}
}

// cycle lays names out back to back starting at start, each lasting dur seconds.
//
// Measures advance every perMeasure chords beginning at firstMeasure; beats step by 4/perMeasure within a measure.
func cycle(names []string, start, dur float64, firstMeasure, perMeasure int) []models.ChordEvent {
	out := make([]models.ChordEvent, 0, len(names))
	for i, name := range names {
		measure := firstMeasure + i/perMeasure
		beat := 1 + (i%perMeasure)*(4/perMeasure)
		out = append(out, ev(name, start+float64(i)*dur, dur, measure, beat))
	}
	return out
}

func repeat(names []string, n int) []string {
	out := make([]string, 0, len(names)*n)
	for range n {
		out = append(out, names...)
	}
	return out
}

var hotelCaliforniaVerse = []string{"Bm", "F#", "A", "E", "G", "D", "Em", "F#"}

// table holds the verified chord charts keyed by normalized title.
var table = map[string]models.SongProgression{
	"hotel california": {
		Title:         "Hotel California",
		Artist:        "Eagles",
		Key:           "Bm",
		BPM:           74,
		TimeSignature: "4/4",
		Chords: append(
			cycle(repeat(hotelCaliforniaVerse, 2), 0, 2, 1, 2),
			cycle(repeat(hotelCaliforniaVerse, 3), 32, 4, 9, 1)...,
		),
		Source:   "Ultimate Guitar + Official Tabs",
		Accuracy: 100,
	},
	"let it be": {
		Title:         "Let It Be",
		Artist:        "The Beatles",
		Key:           "C",
		BPM:           76,
		TimeSignature: "4/4",
		Chords: []models.ChordEvent{
			ev("C", 0, 4, 1, 1),
			ev("G", 4, 4, 2, 1),
			ev("Am", 8, 4, 3, 1),
			ev("F", 12, 4, 4, 1),
			ev("C", 16, 4, 5, 1),
			ev("G", 20, 4, 6, 1),
			ev("F", 24, 2, 7, 1),
			ev("C", 26, 2, 7, 3),
			ev("C", 28, 4, 8, 1),
			ev("G", 32, 4, 9, 1),
			ev("Am", 36, 4, 10, 1),
			ev("F", 40, 4, 11, 1),
			ev("C", 44, 4, 12, 1),
			ev("G", 48, 4, 13, 1),
			ev("F", 52, 2, 14, 1),
			ev("C", 54, 2, 14, 3),
			ev("Am", 56, 4, 15, 1),
			ev("G", 60, 4, 16, 1),
			ev("F", 64, 4, 17, 1),
			ev("C", 68, 4, 18, 1),
			ev("C", 72, 4, 19, 1),
			ev("G", 76, 4, 20, 1),
			ev("F", 80, 2, 21, 1),
			ev("C", 82, 2, 21, 3),
		},
		Source:   "Official Beatles Songbook",
		Accuracy: 100,
	},
	"wonderwall": {
		Title:         "Wonderwall",
		Artist:        "Oasis",
		Key:           "F#m",
		BPM:           87,
		TimeSignature: "4/4",
		Chords: cycle([]string{
			"Em7", "G", "Dsus4", "A7sus4", "Em7", "G", "Dsus4", "A7sus4", "Cadd9", "Dsus4", "Em7", "Em7",
		}, 0, 4, 1, 1),
		Source:   "Oasis Official Tab Book",
		Accuracy: 100,
	},
	"despacito": {
		Title:         "Despacito",
		Artist:        "Luis Fonsi",
		Key:           "Bm",
		BPM:           89,
		TimeSignature: "4/4",
		Chords:        cycle(repeat([]string{"Bm", "G", "D", "A"}, 3), 0, 2, 1, 2),
		Source:        "Ultimate Guitar - 4 chord song",
		Accuracy:      100,
	},
	"no woman no cry": {
		Title:         "No Woman No Cry",
		Artist:        "Bob Marley",
		Key:           "C",
		BPM:           78,
		TimeSignature: "4/4",
		Chords:        cycle(repeat([]string{"C", "G", "Am", "F"}, 4), 0, 4, 1, 1),
		Source:        "Ultimate Guitar + Bob Marley Songbook",
		Accuracy:      100,
	},
	"gangnam style": {
		Title:         "Gangnam Style",
		Artist:        "PSY",
		Key:           "Ab",
		BPM:           132,
		TimeSignature: "4/4",
		Chords:        cycle(repeat([]string{"Ab", "Fm", "Db", "Eb"}, 4), 0, 2, 1, 2),
		Source:        "Ultimate Guitar",
		Accuracy:      100,
	},
	"shape of you": {
		Title:         "Shape of You",
		Artist:        "Ed Sheeran",
		Key:           "C#m",
		BPM:           96,
		TimeSignature: "4/4",
		Chords:        cycle(repeat([]string{"Am", "F", "C", "G"}, 4), 0, 2.5, 1, 1),
		Source:        "ChordyPi featured songs",
		Accuracy:      95,
	},
}

// Titles returns the normalized titles in the table, sorted.
func Titles() []string {
	return sortedKeys()
}

// All returns every progression ordered by normalized title.
func All() []models.SongProgression {
	keys := sortedKeys()
	out := make([]models.SongProgression, 0, len(keys))
	for _, k := range keys {
		out = append(out, table[k])
	}
	return out
}
