package models

// ChordEvent is a single chord occurrence within a song's timeline.
//
// Time and Duration are in seconds. BeatInMeasure and Confidence are only set on generated or detected progressions.
type ChordEvent struct {
	Chord         string  `json:"chord"`
	Time          float64 `json:"time"`
	Duration      float64 `json:"duration"`
	Measure       int     `json:"measure"`
	Beat          int     `json:"beat"`
	BeatInMeasure int     `json:"beat_in_measure,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// End returns the time at which the chord stops sounding.
func (c ChordEvent) End() float64 { return c.Time + c.Duration }

// SongProgression is a static chord chart for one song.
type SongProgression struct {
	Title         string       `json:"title"`
	Artist        string       `json:"artist"`
	Key           string       `json:"key"`
	BPM           int          `json:"bpm"`
	TimeSignature string       `json:"time_signature"`
	Chords        []ChordEvent `json:"chords"`
	Source        string       `json:"source"`
	Accuracy      int          `json:"accuracy"`
}

// PatternDuration returns the length in seconds of one pass through the chord list.
func (p SongProgression) PatternDuration() float64 {
	if len(p.Chords) == 0 {
		return 0
	}
	return p.Chords[len(p.Chords)-1].End()
}
