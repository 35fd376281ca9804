package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/models"
)

var (
	_ list.Item = songItem{}
)

// songItem wraps [models.SongProgression] to implement [list.Item].
type songItem struct {
	song models.SongProgression
}

func (i songItem) FilterValue() string { return i.song.Title + " " + i.song.Artist }
func (i songItem) Title() string       { return i.song.Title }
func (i songItem) Description() string {
	desc := fmt.Sprintf("%s • key of %s", i.song.Artist, i.song.Key)
	if i.song.BPM > 0 {
		desc = fmt.Sprintf("%s • %d bpm", desc, i.song.BPM)
	}
	return fmt.Sprintf("%s • %s", desc, chords.ProgressionString(firstPass(i.song.Chords)))
}

// firstPass returns the chords up to the first repeat of the opening chord.
func firstPass(events []models.ChordEvent) []models.ChordEvent {
	for i := 1; i < len(events); i++ {
		if events[i].Chord == events[0].Chord {
			return events[:i]
		}
	}
	return events
}
