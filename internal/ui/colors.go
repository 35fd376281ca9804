package ui

import "github.com/charmbracelet/lipgloss"

// Player colors. Muted text adapts to light and dark terminals.
var (
	accent  = lipgloss.Color("#6C5CE7")
	success = lipgloss.Color("#04B575")
	danger  = lipgloss.Color("#FF5F5F")
	caution = lipgloss.Color("#FFA500")
	muted   = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
)

var styles = newPalette()

// palette holds the player's named styles. chord draws the current chord as a badge.
type palette struct {
	title lipgloss.Style
	chord lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette() palette {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return palette{
		title: fg(accent).Bold(true).MarginBottom(1),
		chord: fg(lipgloss.Color("#FFFFFF")).Background(accent).Bold(true).Padding(0, 2),
		ok:    fg(success).Bold(true),
		err:   fg(danger).Bold(true),
		warn:  fg(caution),
		help:  fg(muted).Italic(true),
	}
}
