// Package testing holds helpers shared by the package tests: failing
// readers and writers, a canned HTTP transport, synthetic audio and file
// assertions.
package testing

import (
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"testing"
)

var (
	errWrite = errors.New("write failed")
	errRead  = errors.New("read failed")
)

// FWriter fails every write.
type FWriter struct{}

func (*FWriter) Write([]byte) (int, error) { return 0, errWrite }

// FCloser is a response body whose reads always fail.
type FCloser struct{}

func (*FCloser) Read([]byte) (int, error) { return 0, errRead }
func (*FCloser) Close() error             { return nil }

// LimitedWriter forwards to target until maxWrites calls have been made, then fails.
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

// MockRoundTripper answers every request with the same response and error.
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// JSONResponse builds an [http.Response] with a JSON body for use with [MockRoundTripper].
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// Tone synthesizes a mono signal summing equal-amplitude sines at freqs.
//
// The result is scaled so peaks stay within [-0.9, 0.9].
func Tone(freqs []float64, sampleRate int, seconds float64) []float32 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float32, n)
	if len(freqs) == 0 {
		return out
	}
	amp := 0.9 / float64(len(freqs))
	for i := range out {
		t := float64(i) / float64(sampleRate)
		var v float64
		for _, f := range freqs {
			v += amp * math.Sin(2*math.Pi*f*t)
		}
		out[i] = float32(v)
	}
	return out
}

// AssertFileExists reports a test error when nothing exists at path.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file at %s", path)
	}
}

// MustReadFile returns the contents of path or stops the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
