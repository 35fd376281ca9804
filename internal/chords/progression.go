package chords

import (
	"math"
	"strings"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/shared"
)

// GenerateFullProgression repeats base until it covers total seconds.
//
// Every emitted event is renumbered sequentially: beat counts chords from 1, measure groups them
// four at a time, and confidence is 1.0 since the source chart is known.
func GenerateFullProgression(base []models.ChordEvent, total float64) []models.ChordEvent {
	if len(base) == 0 || total <= 0 {
		return []models.ChordEvent{}
	}

	last := base[len(base)-1]
	pattern := last.Time + last.Duration
	if pattern <= 0 {
		return []models.ChordEvent{}
	}

	reps := int(math.Ceil(total / pattern))
	out := make([]models.ChordEvent, 0, reps*len(base))

	n := 0
	for rep := range reps {
		offset := float64(rep) * pattern
		for _, c := range base {
			t := c.Time + offset
			if t >= total {
				break
			}

			c.Time = t
			c.Beat = n + 1
			c.Measure = n/4 + 1
			c.BeatInMeasure = n%4 + 1
			c.Confidence = 1.0
			out = append(out, c)
			n++
		}
	}
	return out
}

// Highlighted returns the chords sounding at time t.
func Highlighted(chords []models.ChordEvent, t float64) []models.ChordEvent {
	var out []models.ChordEvent
	for _, c := range chords {
		if c.Time <= t && t < c.End() {
			out = append(out, c)
		}
	}
	return out
}

// Current returns the index of the chord sounding at t, or -1.
func Current(chords []models.ChordEvent, t float64) int {
	for i, c := range chords {
		if c.Time <= t && t < c.End() {
			return i
		}
	}
	return -1
}

// Upcoming returns up to n chords starting after t.
func Upcoming(chords []models.ChordEvent, t float64, n int) []models.ChordEvent {
	out := make([]models.ChordEvent, 0, n)
	for _, c := range chords {
		if len(out) == n {
			break
		}
		if c.Time > t {
			out = append(out, c)
		}
	}
	return out
}

// ProgressionString joins chord names with " - ".
func ProgressionString(chords []models.ChordEvent) string {
	names := make([]string, len(chords))
	for i, c := range chords {
		names[i] = c.Chord
	}
	return strings.Join(names, " - ")
}

// UniqueChords returns chord names in first-seen order.
func UniqueChords(chords []models.ChordEvent) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range chords {
		if !seen[c.Chord] {
			seen[c.Chord] = true
			out = append(out, c.Chord)
		}
	}
	return out
}

// Duration returns the end time of the last chord.
func Duration(chords []models.ChordEvent) float64 {
	var end float64
	for _, c := range chords {
		end = math.Max(end, c.End())
	}
	return end
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	return shared.FormatSeconds(seconds)
}
