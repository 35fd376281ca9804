package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/chordypi/internal/chords"
	"github.com/desertthunder/chordypi/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SongListView ViewState = iota
	PlayerView
)

const (
	tickInterval = 100 * time.Millisecond
	seekStep     = 5.0
	upcomingN    = 4
	barWidth     = 40
)

// Model represents the TUI application state.
type Model struct {
	view     ViewState
	songs    []models.SongProgression
	duration float64
	width    int
	height   int
	songList list.Model
	song     *models.SongProgression
	timeline []models.ChordEvent
	elapsed  float64
	playing  bool
	last     time.Time
	gen      int
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI over songs. Each song plays for duration seconds, its chart repeated to fill it.
func NewModel(songs []models.SongProgression, duration float64) *Model {
	return &Model{
		view:     SongListView,
		songs:    songs,
		duration: duration,
		songList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the song list.
func (m *Model) Init() tea.Cmd {
	songs := m.songs
	return func() tea.Msg { return songsLoadedMsg(songs) }
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.songList.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SongListView:
			return m.handleSongListKeys(msg)
		case PlayerView:
			return m.handlePlayerKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgSongsLoaded:
			songs, _ := msg.data.([]models.SongProgression)
			items := make([]list.Item, len(songs))
			for i, s := range songs {
				items[i] = songItem{song: s}
			}
			m.songList = list.New(items, list.NewDefaultDelegate(), 0, 0)
			m.songList.Title = "ChordyPi Songs"
			m.songList.SetSize(m.width-4, m.height-4)
			return m, nil

		case MsgTick:
			t, _ := msg.data.(tick)
			return m, m.advance(t)
		}
	}

	var cmd tea.Cmd
	if m.view == SongListView {
		m.songList, cmd = m.songList.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SongListView:
		helpView := m.help.ShortHelpView(m.keys.ShortHelp())
		return fmt.Sprintf("%s\n\n%s", m.songList.View(), helpView)
	case PlayerView:
		return m.renderPlayer()
	default:
		return ""
	}
}

func (m *Model) handleSongListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.songList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.songList.SelectedItem().(songItem); ok {
			return m, m.play(item.song)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.stop()
		m.view = SongListView
		return m, nil
	case key.Matches(msg, m.keys.pause):
		if m.playing {
			m.stop()
			return m, nil
		}
		if m.elapsed >= m.length() {
			m.elapsed = 0
		}
		return m, m.start()
	case key.Matches(msg, m.keys.restart):
		m.elapsed = 0
		return m, m.start()
	case key.Matches(msg, m.keys.seekFwd):
		m.elapsed = min(m.length(), m.elapsed+seekStep)
	case key.Matches(msg, m.keys.seekBck):
		m.elapsed = max(0, m.elapsed-seekStep)
	}
	return m, nil
}

// play opens the player on song and starts the clock.
func (m *Model) play(song models.SongProgression) tea.Cmd {
	m.song = &song
	total := m.duration
	if total <= 0 {
		total = song.PatternDuration()
	}
	m.timeline = chords.GenerateFullProgression(song.Chords, total)
	m.elapsed = 0
	m.view = PlayerView
	return m.start()
}

// start begins a new playback session. Ticks from earlier sessions are ignored.
func (m *Model) start() tea.Cmd {
	m.gen++
	m.playing = true
	m.last = time.Now()
	return m.scheduleTick()
}

func (m *Model) stop() {
	m.playing = false
	m.gen++
}

func (m *Model) scheduleTick() tea.Cmd {
	gen := m.gen
	return tea.Tick(tickInterval, func(at time.Time) tea.Msg { return tickMsg(at, gen) })
}

// advance moves the clock by the wall time since the previous tick and stops at the end of the song.
func (m *Model) advance(t tick) tea.Cmd {
	if !m.playing || t.gen != m.gen {
		return nil
	}

	m.elapsed += t.at.Sub(m.last).Seconds()
	m.last = t.at
	if m.elapsed >= m.length() {
		m.elapsed = m.length()
		m.stop()
		return nil
	}
	return m.scheduleTick()
}

func (m *Model) length() float64 {
	return chords.Duration(m.timeline)
}

func (m *Model) renderPlayer() string {
	if m.song == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%s - %s", m.song.Title, m.song.Artist)))
	b.WriteString("\n")
	b.WriteString(styles.help.Render(fmt.Sprintf("Key %s • %d bpm • %s", m.song.Key, m.song.BPM, m.song.TimeSignature)))
	b.WriteString("\n\n")

	current := chords.Current(m.timeline, m.elapsed)
	if current >= 0 {
		c := m.timeline[current]
		b.WriteString(styles.chord.Render(c.Chord))
		b.WriteString(fmt.Sprintf("  measure %d, beat %d", c.Measure, c.Beat))
	} else if len(m.timeline) == 0 {
		b.WriteString(styles.err.Render("no chords"))
	} else {
		b.WriteString(styles.chord.Render("-"))
	}
	b.WriteString("\n\n")

	upcoming := chords.Upcoming(m.timeline, m.elapsed, upcomingN)
	if len(upcoming) > 0 {
		b.WriteString("Next: ")
		b.WriteString(styles.ok.Render(chords.ProgressionString(upcoming)))
		b.WriteString("\n")
	}
	b.WriteString("Progression: ")
	b.WriteString(chords.ProgressionString(firstPass(m.song.Chords)))
	b.WriteString("\n\n")

	b.WriteString(progressBar(m.elapsed, m.length(), barWidth))
	b.WriteString(fmt.Sprintf(" %s / %s", chords.FormatTime(m.elapsed), chords.FormatTime(m.length())))
	if !m.playing {
		b.WriteString(styles.warn.Render("  paused"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.help.ShortHelpView(m.keys.player()))
	return b.String()
}

// progressBar renders elapsed/total as a bar width cells wide.
func progressBar(elapsed, total float64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(float64(width) * min(1, elapsed/total))
	}
	return styles.ok.Render(strings.Repeat("█", filled)) + styles.help.Render(strings.Repeat("░", width-filled))
}
