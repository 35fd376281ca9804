package shared

import (
	"errors"
	"slices"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	const url = "http://localhost:5000"
	tc := []struct {
		goos string
		want []string
	}{
		{goos: "darwin", want: []string{"open", url}},
		{goos: "linux", want: []string{"xdg-open", url}},
		{goos: "windows", want: []string{"rundll32", "url.dll,FileProtocolHandler", url}},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := browserCommand(tt.goos, url)
			if err != nil {
				t.Fatalf("browserCommand() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("browserCommand() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("does not alias launcher table", func(t *testing.T) {
		first, _ := browserCommand("windows", "a")
		second, _ := browserCommand("windows", "b")
		if first[2] != "a" || second[2] != "b" {
			t.Errorf("expected independent argv slices, got %v and %v", first, second)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		if _, err := browserCommand("plan9", url); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
