package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserLaunchers maps GOOS to the command that hands a URL to the desktop.
var browserLaunchers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// browserCommand returns the argv that opens url on goos.
func browserCommand(goos, url string) ([]string, error) {
	launcher, ok := browserLaunchers[goos]
	if !ok {
		return nil, fmt.Errorf("%w: cannot open a browser on %s", ErrInvalidArgument, goos)
	}
	return append(append([]string{}, launcher...), url), nil
}

// OpenBrowser starts the system browser on url without waiting for it to exit.
func OpenBrowser(url string) error {
	argv, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := exec.Command(argv[0], argv[1:]...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
