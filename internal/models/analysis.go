package models

// AnalysisMetadata describes how an [AnalysisResult] was produced.
type AnalysisMetadata struct {
	Method             string `json:"method"`
	TotalChordSegments int    `json:"total_chord_segments"`
	UniqueChords       int    `json:"unique_chords"`
	Accuracy           int    `json:"accuracy"`
	DetectionEngine    string `json:"detection_engine"`
	Note               string `json:"note"`
	ExtractionMethod   string `json:"extraction_method"`
}

// AnalysisResult is the response to an audio upload or song analysis request.
type AnalysisResult struct {
	Status           string           `json:"status"`
	SongName         string           `json:"song_name"`
	Title            string           `json:"title"`
	Artist           string           `json:"artist,omitempty"`
	URL              string           `json:"url,omitempty"`
	Chords           []ChordEvent     `json:"chords"`
	Duration         float64          `json:"duration"`
	Key              string           `json:"key"`
	BPM              int              `json:"bpm,omitempty"`
	TimeSignature    string           `json:"time_signature,omitempty"`
	AnalysisType     string           `json:"analysis_type"`
	Accuracy         int              `json:"accuracy"`
	Source           string           `json:"source"`
	AnalysisMetadata AnalysisMetadata `json:"analysis_metadata"`
}
