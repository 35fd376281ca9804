package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/shared"
	"github.com/desertthunder/chordypi/internal/ui"
)

const tuiLogPath = "./tmp/chordypi-tui.log"

// TUI runs the chord player over the built-in songs. Logs go to [tuiLogPath] while the alt screen is up.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	duration := cmd.Float("duration")
	if duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", shared.ErrInvalidArgument)
	}

	logger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(logger)
	r.logger.Info("starting player", "songs", len(chords.All()), "duration", duration)

	program := tea.NewProgram(ui.NewModel(chords.All(), duration), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("player exited: %w", err)
	}
	return nil
}
