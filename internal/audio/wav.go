package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/desertthunder/chordypi/internal/shared"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// Format describes a decoded WAV stream.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

// EncodeWAV writes b as 16-bit PCM WAV.
//
// Samples are clamped to [-1, 1]; negative values scale by 0x8000 and positive values by 0x7FFF.
func EncodeWAV(w io.WriteSeeker, b *Buffer) error {
	if b.SampleRate <= 0 || b.NumChannels() == 0 {
		return fmt.Errorf("%w: buffer needs a sample rate and at least one channel", shared.ErrInvalidInput)
	}

	channels := b.NumChannels()
	frames := b.Frames()
	data := make([]int, frames*channels)
	for i := range frames {
		for c, ch := range b.Channels {
			data[i*channels+c] = toInt16(ch[i])
		}
	}

	enc := wav.NewEncoder(w, b.SampleRate, wavBitDepth, channels, wavPCMFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}

// EncodeWAVBytes encodes b in memory by way of a temporary file, since the encoder needs to seek.
func EncodeWAVBytes(b *Buffer) ([]byte, error) {
	f, err := os.CreateTemp("", "chordypi-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := EncodeWAV(f, b); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind temp file: %w", err)
	}
	return io.ReadAll(f)
}

// DecodeWAV reads a PCM WAV stream into a [Buffer].
func DecodeWAV(r io.ReadSeeker) (*Buffer, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("%w: not a valid wav file", shared.ErrUnsupportedFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("failed to read pcm data: %w", err)
	}

	format := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), BitDepth: int(dec.BitDepth)}
	if format.Channels == 0 || format.BitDepth == 0 {
		return nil, Format{}, fmt.Errorf("%w: wav header has no channels or bit depth", shared.ErrUnsupportedFormat)
	}
	frames := len(pcm.Data) / format.Channels
	b := NewBuffer(format.SampleRate, format.Channels, frames)

	scale := float32(int(1) << (format.BitDepth - 1))
	for i := range frames {
		for c := range format.Channels {
			v := pcm.Data[i*format.Channels+c]
			if format.BitDepth == 8 {
				v -= 128
			}
			b.Channels[c][i] = float32(v) / scale
		}
	}
	return b, format, nil
}

// DecodeWAVBytes decodes an in-memory WAV file.
func DecodeWAVBytes(data []byte) (*Buffer, Format, error) {
	return DecodeWAV(bytes.NewReader(data))
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func toInt16(s float32) int {
	s = max(-1, min(1, s))
	if s < 0 {
		return int(s * 0x8000)
	}
	return int(s * 0x7FFF)
}
