package audio

import (
	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/models"
)

// EstimateKey names the key implied by the chord weighted with the most total duration,
// e.g. "C Major" or "A Minor". Ties go to the chord heard first. Returns "Unknown" when nothing parses.
func EstimateKey(events []models.ChordEvent) string {
	weights := map[string]float64{}
	var order []string
	for _, e := range events {
		if _, seen := weights[e.Chord]; !seen {
			order = append(order, e.Chord)
		}
		weights[e.Chord] += e.Duration
	}

	best := ""
	for _, name := range order {
		if best == "" || weights[name] > weights[best] {
			best = name
		}
	}

	c, err := chords.ParseChord(best)
	if err != nil {
		return "Unknown"
	}
	if c.IsMinor() {
		return c.Root + " Minor"
	}
	return c.Root + " Major"
}
