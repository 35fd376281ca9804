package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/models"
)

// AnalyzerOptions tunes chroma chord detection.
type AnalyzerOptions struct {
	WindowSize   int     // FFT frame length in samples
	HopSeconds   float64 // frame step
	MaxSeconds   float64 // analysis cap
	AnalysisRate int     // input is resampled down to this rate
	MinScore     float64 // cosine similarity needed to detect any chord
	ChangeScore  float64 // similarity needed to switch away from the current chord
	SilenceRMS   float64 // frames quieter than this carry no chord
	MinFrequency float64
	MaxFrequency float64
}

// DefaultAnalyzerOptions returns the tuning used by the upload endpoint.
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{
		WindowSize:   4096,
		HopSeconds:   0.25,
		MaxSeconds:   300,
		AnalysisRate: 22050,
		MinScore:     0.08,
		ChangeScore:  0.12,
		SilenceRMS:   0.005,
		MinFrequency: 55,
		MaxFrequency: 2000,
	}
}

type template struct {
	name   string
	vector [12]float64
}

// Analyzer detects chords from PCM audio by matching 12-bin chroma vectors against
// major and minor triad templates.
type Analyzer struct {
	opts      AnalyzerOptions
	window    []float64
	templates []template
}

// NewAnalyzer creates an [Analyzer]; zero-valued options take their defaults.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	def := DefaultAnalyzerOptions()
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.HopSeconds <= 0 {
		opts.HopSeconds = def.HopSeconds
	}
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = def.MaxSeconds
	}
	if opts.AnalysisRate <= 0 {
		opts.AnalysisRate = def.AnalysisRate
	}
	if opts.MinScore <= 0 {
		opts.MinScore = def.MinScore
	}
	if opts.ChangeScore <= 0 {
		opts.ChangeScore = def.ChangeScore
	}
	if opts.SilenceRMS <= 0 {
		opts.SilenceRMS = def.SilenceRMS
	}
	if opts.MinFrequency <= 0 {
		opts.MinFrequency = def.MinFrequency
	}
	if opts.MaxFrequency <= 0 {
		opts.MaxFrequency = def.MaxFrequency
	}

	return &Analyzer{opts: opts, window: Hamming(opts.WindowSize), templates: triadTemplates()}
}

// Options returns the effective options.
func (a *Analyzer) Options() AnalyzerOptions { return a.opts }

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func triadTemplates() []template {
	out := make([]template, 0, 24)
	for root, name := range chords.NoteNames {
		var major, minor [12]float64
		for _, iv := range []int{0, 4, 7} {
			major[(root+iv)%12] = 1
		}
		for _, iv := range []int{0, 3, 7} {
			minor[(root+iv)%12] = 1
		}
		out = append(out, template{name: name, vector: major}, template{name: name + "m", vector: minor})
	}
	return out
}

// Chroma folds the magnitude spectrum of one windowed frame into 12 pitch classes, normalized to unit length.
func (a *Analyzer) Chroma(frame []float64, sampleRate int) [12]float64 {
	var chroma [12]float64

	n := len(frame)
	windowed := make([]float64, n)
	for i := range frame {
		windowed[i] = frame[i] * a.window[i]
	}

	spectrum := fft.FFTReal(windowed)
	binHz := float64(sampleRate) / float64(n)
	for k := 1; k < n/2; k++ {
		f := float64(k) * binHz
		if f < a.opts.MinFrequency || f > a.opts.MaxFrequency {
			continue
		}
		mag := cmplx.Abs(spectrum[k])
		midi := 69 + 12*math.Log2(f/440)
		pc := ((int(math.Round(midi)) % 12) + 12) % 12
		chroma[pc] += mag * mag
	}

	var norm float64
	for _, v := range chroma {
		norm += v * v
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range chroma {
			chroma[i] /= norm
		}
	}
	return chroma
}

// Match returns the best matching triad and its cosine similarity.
func (a *Analyzer) Match(chroma [12]float64) (string, float64) {
	best, bestScore := "", 0.0
	for _, t := range a.templates {
		if s := cosine(chroma, t.vector); s > bestScore {
			best, bestScore = t.name, s
		}
	}
	return best, bestScore
}

func cosine(a, b [12]float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type segment struct {
	chord string
	start float64
	score float64
}

// Analyze detects the chord timeline of b.
//
// Input is mixed to mono, capped at MaxSeconds and resampled down to AnalysisRate. When no chord
// clears MinScore the previous chord is held. Switching chords needs ChangeScore. Identical
// neighbours are merged and the result is numbered four beats to a measure.
func (a *Analyzer) Analyze(b *Buffer) []models.ChordEvent {
	if b == nil || b.Frames() == 0 || b.SampleRate <= 0 {
		return []models.ChordEvent{}
	}

	trimmed := Trim(b, a.opts.MaxSeconds)
	mono := &Buffer{SampleRate: trimmed.SampleRate, Channels: [][]float32{Mixdown(trimmed)}}
	if mono.SampleRate > a.opts.AnalysisRate {
		mono = Resample(mono, a.opts.AnalysisRate)
	}

	samples := mono.Channels[0]
	rate := mono.SampleRate
	size := a.opts.WindowSize
	hop := max(1, int(a.opts.HopSeconds*float64(rate)))
	total := float64(len(samples)) / float64(rate)

	var (
		segments []segment
		active   *segment
	)
	frame := make([]float64, size)
	for start := 0; start < len(samples); start += hop {
		end := min(start+size, len(samples))
		clear(frame)
		var energy float64
		for i, s := range samples[start:end] {
			frame[i] = float64(s)
			energy += frame[i] * frame[i]
		}
		t := float64(start) / float64(rate)

		name, score := "", 0.0
		if math.Sqrt(energy/float64(size)) >= a.opts.SilenceRMS {
			name, score = a.Match(a.Chroma(frame, rate))
			if score < a.opts.MinScore {
				name = ""
			}
		}

		switch {
		case name == "":
		case active == nil:
			active = &segment{chord: name, start: t, score: score}
		case name == active.chord:
			active.score = max(active.score, score)
		case score >= a.opts.ChangeScore:
			segments = append(segments, *active)
			active = &segment{chord: name, start: t, score: score}
		}

		if end == len(samples) {
			break
		}
	}
	if active != nil {
		segments = append(segments, *active)
	}

	events := make([]models.ChordEvent, 0, len(segments))
	for i, s := range segments {
		stop := total
		if i+1 < len(segments) {
			stop = segments[i+1].start
		}
		events = append(events, models.ChordEvent{
			Chord:      s.chord,
			Time:       round(s.start, 2),
			Duration:   round(stop-s.start, 2),
			Confidence: round(math.Min(0.95, s.score+0.2), 2),
		})
	}
	return Number(MergeConsecutive(events))
}

// MergeConsecutive folds neighbouring events with the same chord into one, keeping the higher confidence.
func MergeConsecutive(events []models.ChordEvent) []models.ChordEvent {
	out := make([]models.ChordEvent, 0, len(events))
	for _, e := range events {
		if n := len(out); n > 0 && out[n-1].Chord == e.Chord {
			out[n-1].Duration = round(e.End()-out[n-1].Time, 2)
			out[n-1].Confidence = math.Max(out[n-1].Confidence, e.Confidence)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Number assigns sequential beat, measure and beat_in_measure values.
func Number(events []models.ChordEvent) []models.ChordEvent {
	for i := range events {
		events[i].Beat = i + 1
		events[i].Measure = i/4 + 1
		events[i].BeatInMeasure = i%4 + 1
	}
	return events
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Result is the outcome of analyzing one audio file.
type Result struct {
	Chords   []models.ChordEvent `json:"chords"`
	Duration float64             `json:"duration"` // seconds actually analyzed
	Key      string              `json:"key"`
	Format   Format              `json:"format"`
}

// AnalyzeWAV decodes WAV bytes and runs [Analyzer.Analyze] on them.
func (a *Analyzer) AnalyzeWAV(data []byte) (*Result, error) {
	buf, format, err := DecodeWAVBytes(data)
	if err != nil {
		return nil, err
	}

	events := a.Analyze(buf)
	return &Result{
		Chords:   events,
		Duration: round(math.Min(buf.Duration(), a.opts.MaxSeconds), 2),
		Key:      EstimateKey(events),
		Format:   format,
	}, nil
}
