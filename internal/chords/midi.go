package chords

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/desertthunder/chordypi/internal/models"
)

const (
	midiResolution = 960
	midiChannel    = 0
	midiVelocity   = 80
)

// ExportMIDI writes p as a single-track Standard MIDI File.
//
// Each chord becomes a block of simultaneous notes held for its duration. Unparseable chords are
// skipped as rests.
func ExportMIDI(p models.SongProgression, w io.Writer) error {
	bpm := float64(p.BPM)
	if bpm <= 0 {
		bpm = 120
	}

	clock := smf.MetricTicks(midiResolution)
	toTicks := func(seconds float64) uint32 {
		return uint32(math.Round(seconds * bpm / 60 * float64(clock.Ticks4th())))
	}

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(p.Title))
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(bpm))

	var cursor uint32
	for _, ev := range p.Chords {
		c, err := ParseChord(ev.Chord)
		if err != nil {
			continue
		}

		start, end := toTicks(ev.Time), toTicks(ev.End())
		if end <= start || start < cursor {
			continue
		}

		for i, n := range c.Notes {
			delta := uint32(0)
			if i == 0 {
				delta = start - cursor
			}
			tr.Add(delta, midi.NoteOn(midiChannel, n, midiVelocity))
		}
		for i, n := range c.Notes {
			delta := uint32(0)
			if i == 0 {
				delta = end - start
			}
			tr.Add(delta, midi.NoteOff(midiChannel, n))
		}
		cursor = end
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write midi: %w", err)
	}
	return nil
}
