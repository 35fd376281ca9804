package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/server"
	"github.com/desertthunder/chordypi/internal/shared"
)

// Serve runs migrations and starts the HTTP server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = int(port)
	}

	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.NewApp(config, db, r.logger)

	if cmd.Bool("open") {
		url := browserURL(config.Server)
		r.logger.Info("opening browser", "url", url)
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return app.Serve(ctx)
}

// browserURL returns the address a local browser should use to reach the server.
func browserURL(cfg shared.ServerConfig) string {
	scheme := "http"
	if cfg.TLSEnabled() {
		scheme = "https"
	}

	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, cfg.Port)
}
