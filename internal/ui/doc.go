// Package ui implements an interactive terminal chord player using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [SongListView] : Browse and filter the built-in chord table
//  2. [PlayerView] : Follow a song's chords against a running clock
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Playback is driven by tick messages; every tick carries the generation of the session that scheduled it so that
// pausing or restarting drops ticks already in flight.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, space, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
