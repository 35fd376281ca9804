package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/chordypi/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSongsLoaded MsgKind = iota
	MsgTick
)

type tick struct {
	at  time.Time
	gen int
}

// songsLoadedMsg is the constructor for [MsgSongsLoaded]
func songsLoadedMsg(songs []models.SongProgression) Msg {
	return Msg{kind: MsgSongsLoaded, data: songs}
}

// tickMsg is the constructor for [MsgTick]. gen ties the tick to the playback session that scheduled it.
func tickMsg(at time.Time, gen int) Msg {
	return Msg{kind: MsgTick, data: tick{at: at, gen: gen}}
}
