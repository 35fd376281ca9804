package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/shared"
)

const (
	appName           = "chordypi"
	appVersion        = "0.1.0"
	defaultConfigPath = "config.toml"
)

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    appName,
		Usage:   "Chord lookup, audio analysis and Pi Network premium backend",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, shared.SetLogLevel(r.logger, cmd.String("log-level"))
		},
		Commands: r.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)

	config, err := shared.LoadOrDefault(defaultConfigPath)
	if err != nil {
		logger.Warn("unreadable config, continuing with defaults", "path", defaultConfigPath, "error", err)
		config = shared.DefaultConfig()
	}

	runner := NewRunner(RunnerOpts{Config: config, ConfigPath: defaultConfigPath, Logger: logger})
	err = newApp(runner).Run(context.Background(), os.Args)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("command not implemented yet")
	default:
		logger.Fatal("chordypi failed", "error", err)
	}
}
