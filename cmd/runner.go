package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

// Runner carries the shared state behind every chordypi subcommand: config, logger, HTTP clients and the output stream.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts overrides Runner dependencies. Zero fields fall back to defaults.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner fills unset options and returns a Runner. The API client targets the configured analysis server.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = shared.NewLocalClient(0)
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.Analysis.ServerURL, opts.HTTPClient)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// register builds the top-level commands in help order.
func (r *Runner) register() []*cli.Command {
	builders := []func(*Runner) *cli.Command{
		setupCommand, serveCommand, chordsCommand, audioCommand,
		extractCommand, premiumCommand, apiCommand, tuiCommand,
	}
	commands := make([]*cli.Command, len(builders))
	for i, build := range builders {
		commands[i] = build(r)
	}
	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadConfig reads the config named by the command's --config flag, keeping the runner's config
// when the flag is unset or points at the path it was loaded from.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")
	if path == "" || path == r.configPath {
		return r.config, nil
	}

	config, err := shared.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	r.config = config
	r.configPath = path
	return config, nil
}

// openDatabase opens the configured database and applies pending migrations.
func (r *Runner) openDatabase(cmd *cli.Command) (*sql.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("opening database", "path", config.Database.Path)
	db, err := shared.OpenMigrated(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// writeJSON prints data followed by a newline, indented when pretty is set.
func (r *Runner) writeJSON(data any, pretty bool) error {
	marshal := json.Marshal
	if pretty {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}

	body, err := marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := r.emit(string(body)); err != nil {
		return err
	}
	if _, err := io.WriteString(r.output, "\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

func (r *Runner) emit(text string) error {
	if _, err := io.WriteString(r.output, text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.emit(fmt.Sprintf(format, args...))
}

// writePlainln surrounds the formatted line with blank lines.
func (r *Runner) writePlainln(format string, args ...any) error {
	return r.emit("\n" + fmt.Sprintf(format, args...) + "\n")
}

func (r *Runner) writePlainHeader(title string) {
	rule := strings.Repeat("═", 39)
	r.emit(rule + "\n" + title + "\n" + rule + "\n")
}
