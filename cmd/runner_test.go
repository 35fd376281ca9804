package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/desertthunder/chordypi/internal/audio"
	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
	"github.com/desertthunder/chordypi/internal/tasks"
	tu "github.com/desertthunder/chordypi/internal/testing"
)

func init() {
	color.NoColor = true
}

func quietRunner(output io.Writer) *Runner {
	return NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(io.Discard)})
}

// run executes args against a root command built from the runner's registered commands.
func run(r *Runner, args ...string) error {
	app := newApp(r)
	app.Writer = io.Discard
	return app.Run(context.Background(), append([]string{appName}, args...))
}

// writeConfig writes a config file pointing the database into dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("[database]\npath = %q\n\n[analysis]\ndaily_limit = 2\n", filepath.Join(dir, "chordypi.db"))
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func toneFile(t *testing.T, dir string) string {
	t.Helper()
	const rate = 22050
	samples := tu.Tone([]float64{261.63, 329.63, 392.00}, rate, 3)
	buf := audio.NewBuffer(rate, 1, len(samples))
	copy(buf.Channels[0], samples)

	data, err := audio.EncodeWAVBytes(buf)
	if err != nil {
		t.Fatalf("failed to encode wav: %v", err)
	}
	path := filepath.Join(dir, "tone.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	return path
}

func batchFixture() *tasks.BatchResult {
	ok := &tasks.ExtractResult{
		SongName: "Oasis - Wonderwall",
		Analysis: &models.AnalysisResult{
			Key:    "C",
			Chords: []models.ChordEvent{{Chord: "C"}, {Chord: "G"}},
		},
	}
	return &tasks.BatchResult{
		Items: []tasks.BatchItem{
			{Index: 0, URL: "https://youtu.be/a", SongName: ok.SongName, Result: ok},
			{Index: 1, URL: "https://youtu.be/b", Err: shared.ErrServiceUnavailable},
		},
		Succeeded: 1,
		Failed:    1,
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := services.NewAPIService("http://example.test", httpClient)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient == nil || runner.httpClient == http.DefaultClient {
				t.Error("expected httpClient to default to a local client")
			}
		})

		t.Run("with nil api builds one", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{API: nil})
			if runner.api == nil {
				t.Error("expected api client to be created")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "serve", "chords", "audio", "extract", "premium", "api", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if cmd.Name != want[i] {
				t.Errorf("expected command %q at index %d, got %q", want[i], i, cmd.Name)
			}
		}
	})
}

func TestChordsCommands(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "chords", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, title := range []string{"Let It Be", "Wonderwall", "Hotel California"} {
			if !strings.Contains(output.String(), title) {
				t.Errorf("expected %q in list output", title)
			}
		}
	})

	t.Run("list json", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "chords", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var songs []map[string]any
		if err := json.Unmarshal(output.Bytes(), &songs); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(songs) != 7 {
			t.Errorf("expected 7 songs, got %d", len(songs))
		}
	})

	t.Run("lookup csv", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "chords", "lookup", "--format", "csv", "Let It Be"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(output.String(), "Measure,Beat,Time,Duration,Chord") {
			t.Errorf("expected CSV header, got %q", output.String())
		}
	})

	t.Run("lookup with duration", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "chords", "lookup", "--format", "csv", "--duration", "8", "Let It Be"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 3 {
			t.Errorf("expected header plus 2 chords, got %d lines", len(lines))
		}
	})

	t.Run("lookup writes file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sheet.md")
		output := &bytes.Buffer{}

		if err := run(quietRunner(output), "chords", "lookup", "--format", "markdown", "-o", path, "wonderwall"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "# Oasis - Wonderwall") {
			t.Errorf("expected markdown heading, got %q", content)
		}
	})

	t.Run("lookup unknown song", func(t *testing.T) {
		err := run(quietRunner(&bytes.Buffer{}), "chords", "lookup", "Not A Real Song Title")
		if !errors.Is(err, shared.ErrSongNotFound) {
			t.Errorf("expected ErrSongNotFound, got %v", err)
		}
	})

	t.Run("lookup bad format", func(t *testing.T) {
		err := run(quietRunner(&bytes.Buffer{}), "chords", "lookup", "--format", "pdf", "Let It Be")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("midi", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "let_it_be.mid")
		if err := run(quietRunner(&bytes.Buffer{}), "chords", "midi", "-o", path, "Let It Be"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "MThd") {
			t.Error("expected a Standard MIDI File header")
		}
	})
}

func TestAudioCommands(t *testing.T) {
	dir := t.TempDir()
	wav := toneFile(t, dir)

	t.Run("info", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "audio", "info", "--json", wav); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var info wavInfo
		if err := json.Unmarshal(output.Bytes(), &info); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if info.Format.SampleRate != 22050 || info.Format.Channels != 1 || info.Format.BitDepth != 16 {
			t.Errorf("unexpected format %+v", info.Format)
		}
		if info.Duration < 2.9 || info.Duration > 3.1 {
			t.Errorf("expected ~3s, got %v", info.Duration)
		}
	})

	t.Run("encode", func(t *testing.T) {
		out := filepath.Join(dir, "small.wav")
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "audio", "encode", "-o", out, "--max-seconds", "1", "--rate", "11025", wav); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		buf, format, err := audio.DecodeWAVBytes([]byte(tu.MustReadFile(t, out)))
		if err != nil {
			t.Fatalf("expected valid wav, got %v", err)
		}
		if format.SampleRate != 11025 {
			t.Errorf("expected 11025 Hz, got %d", format.SampleRate)
		}
		if d := buf.Duration(); d < 0.99 || d > 1.01 {
			t.Errorf("expected 1s, got %v", d)
		}
		if !strings.Contains(output.String(), "Wrote") {
			t.Errorf("expected summary, got %q", output.String())
		}
	})

	t.Run("analyze", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "audio", "analyze", wav); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Key:") {
			t.Errorf("expected key in output, got %q", output.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := run(quietRunner(&bytes.Buffer{}), "audio", "info", filepath.Join(dir, "nope.wav"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("not a wav", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		os.WriteFile(path, []byte("not audio"), 0644)

		err := run(quietRunner(&bytes.Buffer{}), "audio", "info", path)
		if !errors.Is(err, shared.ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestPremiumCommands(t *testing.T) {
	dir := t.TempDir()
	config := writeConfig(t, dir)

	t.Run("unlock then status", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := quietRunner(output)
		if err := run(runner, "premium", "unlock", "--config", config, "--user", "pi-1", "--feature", "adFree"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "unlocked for pi-1") {
			t.Errorf("unexpected unlock output %q", output.String())
		}

		output.Reset()
		if err := run(runner, "premium", "status", "--config", config, "--user", "pi-1", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var report struct {
			User   string `json:"user"`
			Status struct {
				UnlockedCount int  `json:"unlockedCount"`
				ShowAds       bool `json:"showAds"`
			} `json:"status"`
			Usage struct {
				Limit int `json:"limit"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(output.Bytes(), &report); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if report.User != "pi-1" {
			t.Errorf("expected user pi-1, got %q", report.User)
		}
		if report.Status.UnlockedCount != 1 {
			t.Errorf("expected 1 unlocked feature, got %d", report.Status.UnlockedCount)
		}
		if report.Status.ShowAds {
			t.Error("expected adFree to hide ads")
		}
		if report.Usage.Limit != 2 {
			t.Errorf("expected configured daily limit 2, got %d", report.Usage.Limit)
		}
	})

	t.Run("status text", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "premium", "status", "--config", config, "--user", "pi-2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Unlocked 0/6") {
			t.Errorf("unexpected status output %q", output.String())
		}
	})

	t.Run("unknown feature", func(t *testing.T) {
		err := run(quietRunner(&bytes.Buffer{}), "premium", "unlock", "--config", config, "--user", "pi-1", "--feature", "teleport")
		if !errors.Is(err, shared.ErrUnknownFeature) {
			t.Errorf("expected ErrUnknownFeature, got %v", err)
		}
	})

	t.Run("catalog", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(quietRunner(output), "premium", "catalog"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Advanced Song Analysis") {
			t.Errorf("expected catalog entries, got %q", output.String())
		}
	})
}

func TestSetupCommands(t *testing.T) {
	dir := t.TempDir()
	config := writeConfig(t, dir)

	output := &bytes.Buffer{}
	runner := quietRunner(output)
	if err := run(runner, "setup", "database", "--config", config); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	tu.AssertFileExists(t, filepath.Join(dir, "chordypi.db"))

	output.Reset()
	if err := run(runner, "setup", "status", "--config", config); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(output.String(), "applied") || strings.Contains(output.String(), "pending") {
		t.Errorf("expected every migration applied, got %q", output.String())
	}
}

func TestAPICommands(t *testing.T) {
	var gotUser, gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-Pi-User")
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	newRunner := func(output io.Writer) *Runner {
		return NewRunner(RunnerOpts{
			Output: output,
			Logger: shared.NewLogger(io.Discard),
			API:    services.NewAPIService(srv.URL, nil),
		})
	}

	t.Run("get", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(newRunner(output), "api", "get", "--user", "pi-1", "/api/health"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotUser != "pi-1" {
			t.Errorf("expected X-Pi-User pi-1, got %q", gotUser)
		}
		if !strings.Contains(output.String(), `"status": "ok"`) {
			t.Errorf("expected pretty JSON, got %q", output.String())
		}
	})

	t.Run("post", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(newRunner(output), "api", "post", "-d", `{"query":"oasis"}`, "/api/search-songs"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotMethod != http.MethodPost || gotBody != `{"query":"oasis"}` {
			t.Errorf("unexpected request %s %q", gotMethod, gotBody)
		}
	})

	t.Run("post invalid json", func(t *testing.T) {
		err := run(newRunner(&bytes.Buffer{}), "api", "post", "-d", `{nope`, "/api/search-songs")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := run(newRunner(&bytes.Buffer{}), "api", "delete", "-d", `{"song_id":"x"}`, "/api/library/remove"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotMethod != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", gotMethod)
		}
	})

	t.Run("error status", func(t *testing.T) {
		err := run(newRunner(&bytes.Buffer{}), "api", "get", "/missing")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestExtractCommand(t *testing.T) {
	t.Run("requires a url", func(t *testing.T) {
		err := run(quietRunner(&bytes.Buffer{}), "extract")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("missing yt-dlp", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		body := fmt.Sprintf("[analysis]\nytdlp_path = %q\n", filepath.Join(dir, "no-such-yt-dlp"))
		os.WriteFile(path, []byte(body), 0644)

		err := run(quietRunner(&bytes.Buffer{}), "extract", "--config", path, "https://youtu.be/abc")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("summarizeBatch", func(t *testing.T) {
		summary := summarizeBatch(batchFixture())
		if summary.Succeeded != 1 || summary.Failed != 1 {
			t.Errorf("unexpected counts %+v", summary)
		}
		if summary.Items[1].Error == "" {
			t.Error("expected failed item to carry its error")
		}
		if summary.Items[0].Chords != 2 || summary.Items[0].Key != "C" {
			t.Errorf("unexpected success line %+v", summary.Items[0])
		}
	})
}

func TestBrowserURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  shared.ServerConfig
		want string
	}{
		{"loopback", shared.ServerConfig{Host: "127.0.0.1", Port: 5000}, "http://127.0.0.1:5000"},
		{"wildcard", shared.ServerConfig{Host: "0.0.0.0", Port: 8080}, "http://localhost:8080"},
		{"tls", shared.ServerConfig{Host: "", Port: 3443, TLSCert: "c.pem", TLSKey: "k.pem"}, "https://localhost:3443"},
		{"self signed", shared.ServerConfig{Host: "127.0.0.1", Port: 5000, SelfSigned: true}, "https://127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := browserURL(tt.cfg); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	for n, want := range map[int]string{512: "512 B", 2048: "2.0 KB", 3 << 20: "3.0 MB"} {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestLogLevelFlag(t *testing.T) {
	if err := run(quietRunner(&bytes.Buffer{}), "--log-level", "debug", "chords", "list"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := run(quietRunner(&bytes.Buffer{}), "--log-level", "chatty", "chords", "list"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
