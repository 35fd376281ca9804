package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// CompressResult reports what [Compress] did.
type CompressResult struct {
	Data           []byte
	Compressed     bool
	OriginalSize   int
	Duration       float64
	SampleRate     int
	SourceDuration float64
}

// Compress trims a WAV file to maxSeconds, resamples it to targetRate and re-encodes it.
//
// On any decode or encode failure the original bytes are returned unchanged with Compressed false.
func Compress(data []byte, maxSeconds float64, targetRate int) CompressResult {
	res := CompressResult{Data: data, OriginalSize: len(data)}

	buf, _, err := DecodeWAVBytes(data)
	if err != nil {
		return res
	}
	res.SourceDuration = buf.Duration()

	out := Resample(Trim(buf, maxSeconds), targetRate)
	encoded, err := EncodeWAVBytes(out)
	if err != nil {
		return res
	}

	res.Data = encoded
	res.Compressed = true
	res.Duration = out.Duration()
	res.SampleRate = out.SampleRate
	return res
}

// FFmpegAvailable reports whether the ffmpeg binary can be found.
func FFmpegAvailable(bin string) bool {
	if bin == "" {
		bin = "ffmpeg"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

// ConvertToWAV transcodes arbitrary audio bytes to mono 16-bit PCM WAV at sampleRate with ffmpeg.
//
// ext is the source container extension (e.g. ".m4a") and is used as the input file suffix.
func ConvertToWAV(ctx context.Context, bin string, data []byte, ext string, sampleRate int) ([]byte, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 22050
	}

	dir, err := os.MkdirTemp("", "chordypi-ffmpeg-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write ffmpeg input: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-v", "quiet",
		"-i", in,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %v (%s)", err, stderr.String())
	}

	return os.ReadFile(out)
}
