package audio

import "math"

// Buffer holds planar float PCM samples.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a silent buffer.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	b := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for i := range b.Channels {
		b.Channels[i] = make([]float32, frames)
	}
	return b
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return len(b.Channels) }

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Trim returns a buffer holding at most maxSeconds of audio. The samples are shared with b.
func Trim(b *Buffer, maxSeconds float64) *Buffer {
	limit := int(maxSeconds * float64(b.SampleRate))
	if maxSeconds <= 0 || limit >= b.Frames() {
		return b
	}

	out := &Buffer{SampleRate: b.SampleRate, Channels: make([][]float32, len(b.Channels))}
	for i, ch := range b.Channels {
		out.Channels[i] = ch[:limit]
	}
	return out
}

// Mixdown averages every channel into a single mono channel.
func Mixdown(b *Buffer) []float32 {
	n := b.Frames()
	mono := make([]float32, n)
	if len(b.Channels) == 0 {
		return mono
	}
	if len(b.Channels) == 1 {
		copy(mono, b.Channels[0])
		return mono
	}

	scale := 1 / float32(len(b.Channels))
	for _, ch := range b.Channels {
		for i := range n {
			mono[i] += ch[i] * scale
		}
	}
	return mono
}

// Resample converts b to rate using linear interpolation per channel.
func Resample(b *Buffer, rate int) *Buffer {
	if rate <= 0 || rate == b.SampleRate || b.SampleRate <= 0 {
		return b
	}

	out := &Buffer{SampleRate: rate, Channels: make([][]float32, len(b.Channels))}
	for i, ch := range b.Channels {
		out.Channels[i] = resampleLinear(ch, b.SampleRate, rate)
	}
	return out
}

func resampleLinear(samples []float32, fromRate, toRate int) []float32 {
	if len(samples) == 0 {
		return []float32{}
	}

	ratio := float64(fromRate) / float64(toRate)
	n := int(math.Floor(float64(len(samples)) / ratio))
	out := make([]float32, n)

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		switch {
		case idx+1 < len(samples):
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		case idx < len(samples):
			out[i] = samples[idx]
		default:
			out[i] = samples[len(samples)-1]
		}
	}
	return out
}

// Peak returns the largest absolute sample value.
func Peak(b *Buffer) float32 {
	var peak float32
	for _, ch := range b.Channels {
		for _, s := range ch {
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
	}
	return peak
}
