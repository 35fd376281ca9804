package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap groups the list and player bindings.
type keyMap struct {
	up, down, enter  key.Binding
	pause, restart   key.Binding
	seekFwd, seekBck key.Binding
	back, quit       key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func newKeyMap() keyMap {
	return keyMap{
		up:      bind("↑/k", "up", "up", "k"),
		down:    bind("↓/j", "down", "down", "j"),
		enter:   bind("enter", "play", "enter"),
		pause:   bind("space", "pause", " ", "space"),
		restart: bind("r", "restart", "r"),
		seekFwd: bind("→/l", "+5s", "right", "l"),
		seekBck: bind("←/h", "-5s", "left", "h"),
		back:    bind("esc", "back", "esc"),
		quit:    bind("q", "quit", "q", "ctrl+c"),
	}
}

// player lists the bindings shown under the player view.
func (k keyMap) player() []key.Binding {
	return []key.Binding{k.pause, k.restart, k.seekBck, k.seekFwd, k.back, k.quit}
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.enter, k.quit} }

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.up, k.down, k.enter}, k.player()}
}
