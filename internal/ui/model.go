// ABOUTME: Bubbletea model for the deck TUI
// ABOUTME: Polls the engine at 20 Hz and maps keys onto transport commands
package ui

import (
	"math"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/spectrum"
	"github.com/Resonate-Protocol/resonate-deck/pkg/deck"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	refreshInterval = 50 * time.Millisecond
	seekStep        = 5 * time.Second
	volumeStep      = 0.05
	rateStep        = 0.1
	gainStep        = 1.0
)

// Controller is the engine surface the TUI drives
type Controller interface {
	PlaybackState() deck.PlaybackState
	PositionDuration() time.Duration
	Duration() time.Duration
	Info() audio.StreamInfo
	Index() int
	Playlist() *playlist.Playlist
	SpectrumSnapshot() spectrum.Frame
	BandConfig() equalizer.Config
	Err() error

	TogglePause() error
	Stop() error
	Next() error
	Previous() error
	SeekDuration(d time.Duration) error
	SetVolume(v float64)
	SetRate(rate float64) error
	ToggleMute() bool
	SetBandGain(band int, db float64) error
}

// Model represents the TUI state
type Model struct {
	ctrl Controller

	// Transport
	state    deck.PlaybackState
	info     audio.StreamInfo
	position time.Duration
	duration time.Duration

	// Playlist
	track   playlist.Track
	index   int
	total   int
	repeat  playlist.RepeatMode
	shuffle bool

	// Sound
	bands    equalizer.Config
	spectrum spectrum.Frame
	eqFocus  bool
	eqCursor int

	err      error
	quitting bool

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// errMsg carries the result of an engine command run off the UI goroutine
type errMsg struct{ err error }

// NewModel creates a TUI model over ctrl
func NewModel(ctrl Controller) Model {
	m := Model{ctrl: ctrl, index: -1}
	m.refresh()
	return m
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, tick()
	case errMsg:
		m.err = msg.err
	}

	return m, nil
}

// refresh pulls a fresh snapshot from the engine
func (m *Model) refresh() {
	m.state = m.ctrl.PlaybackState()
	m.info = m.ctrl.Info()
	m.position = m.ctrl.PositionDuration()
	m.duration = m.ctrl.Duration()
	m.bands = m.ctrl.BandConfig()
	m.spectrum = m.ctrl.SpectrumSnapshot()
	m.index = m.ctrl.Index()

	if m.eqCursor >= len(m.bands.Bands) {
		m.eqCursor = 0
	}

	if pl := m.ctrl.Playlist(); pl != nil {
		m.total = pl.Len()
		m.repeat = pl.Repeat()
		m.shuffle = pl.Shuffle()
		if t, ok := pl.Track(m.index); ok {
			m.track = t
		} else {
			m.track = playlist.Track{}
		}
	}

	if m.state.State == deck.Idle && m.err == nil {
		m.err = m.ctrl.Err()
	}
}

// run executes an engine command asynchronously; loading a track blocks
// on file I/O
func (m Model) run(f func() error) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: f()}
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case " ":
		m.err = nil
		return m, m.run(m.ctrl.TogglePause)
	case "s":
		return m, m.run(m.ctrl.Stop)
	case "n":
		m.err = nil
		return m, m.run(m.ctrl.Next)
	case "p":
		m.err = nil
		return m, m.run(m.ctrl.Previous)
	case "+", "=":
		m.ctrl.SetVolume(m.state.Volume + volumeStep)
	case "-", "_":
		m.ctrl.SetVolume(m.state.Volume - volumeStep)
	case "]":
		return m, m.run(func() error { return m.ctrl.SetRate(stepRate(m.state.Rate, rateStep)) })
	case "[":
		return m, m.run(func() error { return m.ctrl.SetRate(stepRate(m.state.Rate, -rateStep)) })
	case "m":
		m.state.Muted = m.ctrl.ToggleMute()
	case "r":
		if pl := m.ctrl.Playlist(); pl != nil {
			m.repeat = pl.CycleRepeat()
		}
	case "z":
		if pl := m.ctrl.Playlist(); pl != nil {
			m.shuffle = pl.ToggleShuffle()
		}
	case "e":
		m.eqFocus = !m.eqFocus
	}

	if m.eqFocus {
		return m.handleEQKey(key)
	}

	switch key {
	case "left":
		return m, m.seekBy(-seekStep)
	case "right":
		return m, m.seekBy(seekStep)
	case "up":
		m.ctrl.SetVolume(m.state.Volume + volumeStep)
	case "down":
		m.ctrl.SetVolume(m.state.Volume - volumeStep)
	}

	m.refresh()
	return m, nil
}

// handleEQKey moves the band cursor and changes band gains
func (m Model) handleEQKey(key string) (tea.Model, tea.Cmd) {
	n := len(m.bands.Bands)
	if n == 0 {
		return m, nil
	}

	switch key {
	case "left":
		m.eqCursor = (m.eqCursor + n - 1) % n
	case "right":
		m.eqCursor = (m.eqCursor + 1) % n
	case "up", "down":
		delta := gainStep
		if key == "down" {
			delta = -gainStep
		}
		gain := m.bands.Bands[m.eqCursor].GainDB + delta
		if err := m.ctrl.SetBandGain(m.eqCursor, gain); err != nil {
			m.err = err
		}
		m.bands = m.ctrl.BandConfig()
	}

	return m, nil
}

// seekBy seeks relative to the displayed position, clamped to the track
func (m Model) seekBy(d time.Duration) tea.Cmd {
	if m.info.Format.SampleRate == 0 {
		return nil
	}

	target := m.position + d
	if target < 0 {
		target = 0
	}
	if m.duration > 0 && target >= m.duration {
		target = m.duration - time.Millisecond
	}
	return m.run(func() error { return m.ctrl.SeekDuration(target) })
}

// stepRate moves rate by delta, snapped to a 0.05 grid and clamped
func stepRate(rate, delta float64) float64 {
	r := math.Round((rate+delta)*20) / 20
	return math.Max(deck.MinRate, math.Min(deck.MaxRate, r))
}
