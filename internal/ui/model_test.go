// ABOUTME: Tests for the TUI model key handling and rendering
// ABOUTME: Drives the model against a fake controller that records calls
package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/spectrum"
	"github.com/Resonate-Protocol/resonate-deck/pkg/deck"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeController struct {
	state    deck.PlaybackState
	info     audio.StreamInfo
	position time.Duration
	index    int
	pl       *playlist.Playlist
	bands    equalizer.Config
	frame    spectrum.Frame
	err      error

	calls   []string
	seekTo  time.Duration
	rateTo  float64
	failCmd error
}

func newFakeController() *fakeController {
	pl := playlist.New()
	pl.Add(
		playlist.Track{Path: "/music/a.mp3", Title: "Alpha", Artist: "Band"},
		playlist.Track{Path: "/music/b.mp3", Title: "Beta"},
	)
	pl.Select(0)

	return &fakeController{
		state: deck.PlaybackState{State: deck.Playing, Rate: 1.0, Volume: 0.7},
		info: audio.StreamInfo{
			Path:        "/music/a.mp3",
			Format:      audio.Format{Codec: "mp3", SampleRate: 44100, Channels: 2},
			TotalFrames: 44100 * 60,
		},
		position: 30 * time.Second,
		index:    0,
		pl:       pl,
		bands:    equalizer.DefaultConfig(),
		frame:    spectrum.Frame{0, 50, 100},
	}
}

func (f *fakeController) PlaybackState() deck.PlaybackState { return f.state }
func (f *fakeController) PositionDuration() time.Duration   { return f.position }
func (f *fakeController) Duration() time.Duration           { return f.info.Duration() }
func (f *fakeController) Info() audio.StreamInfo            { return f.info }
func (f *fakeController) Index() int                        { return f.index }
func (f *fakeController) Playlist() *playlist.Playlist      { return f.pl }
func (f *fakeController) SpectrumSnapshot() spectrum.Frame  { return f.frame }
func (f *fakeController) BandConfig() equalizer.Config      { return f.bands }
func (f *fakeController) Err() error                        { return f.err }

func (f *fakeController) record(name string) error {
	f.calls = append(f.calls, name)
	return f.failCmd
}

func (f *fakeController) TogglePause() error { return f.record("toggle") }
func (f *fakeController) Stop() error        { return f.record("stop") }
func (f *fakeController) Next() error        { return f.record("next") }
func (f *fakeController) Previous() error    { return f.record("previous") }

func (f *fakeController) SeekDuration(d time.Duration) error {
	f.seekTo = d
	return f.record("seek")
}

func (f *fakeController) SetVolume(v float64) {
	f.state.Volume = max(0, min(1, v))
	f.state.Muted = false
	f.record("volume")
}

func (f *fakeController) SetRate(rate float64) error {
	f.rateTo = rate
	return f.record("rate")
}

func (f *fakeController) ToggleMute() bool {
	f.state.Muted = !f.state.Muted
	f.record("mute")
	return f.state.Muted
}

func (f *fakeController) SetBandGain(band int, db float64) error {
	cfg, err := f.bands.WithGain(band, db)
	if err != nil {
		return err
	}
	f.bands = cfg
	return f.record("gain")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs any command it returns, feeding the result back
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(key(s))
	m = next.(Model)
	if cmd != nil {
		if msg, ok := cmd().(errMsg); ok {
			next, _ = m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func TestNewModelSnapshotsEngine(t *testing.T) {
	f := newFakeController()
	m := NewModel(f)

	if m.state.State != deck.Playing {
		t.Errorf("expected playing, got %v", m.state.State)
	}
	if m.track.Title != "Alpha" {
		t.Errorf("expected track Alpha, got %q", m.track.Title)
	}
	if m.total != 2 {
		t.Errorf("expected 2 tracks, got %d", m.total)
	}
	if m.duration != time.Minute {
		t.Errorf("expected 1m duration, got %v", m.duration)
	}
}

func TestTransportKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{" ", "toggle"},
		{"s", "stop"},
		{"n", "next"},
		{"p", "previous"},
		{"m", "mute"},
		{"+", "volume"},
		{"-", "volume"},
		{"up", "volume"},
		{"]", "rate"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := newFakeController()
			press(t, NewModel(f), tt.key)

			if len(f.calls) != 1 || f.calls[0] != tt.want {
				t.Errorf("expected [%s], got %v", tt.want, f.calls)
			}
		})
	}
}

func TestSeekKeysClampToTrack(t *testing.T) {
	tests := []struct {
		name     string
		position time.Duration
		key      string
		want     time.Duration
	}{
		{"forward", 30 * time.Second, "right", 35 * time.Second},
		{"back", 30 * time.Second, "left", 25 * time.Second},
		{"back past start", 2 * time.Second, "left", 0},
		{"forward past end", 58 * time.Second, "right", time.Minute - time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeController()
			f.position = tt.position
			press(t, NewModel(f), tt.key)

			if f.seekTo != tt.want {
				t.Errorf("expected seek to %v, got %v", tt.want, f.seekTo)
			}
		})
	}
}

func TestSeekWithoutTrackDoesNothing(t *testing.T) {
	f := newFakeController()
	f.info = audio.StreamInfo{}
	press(t, NewModel(f), "right")

	if len(f.calls) != 0 {
		t.Errorf("expected no calls, got %v", f.calls)
	}
}

func TestRateStepsAndClamps(t *testing.T) {
	tests := []struct {
		rate  float64
		delta float64
		want  float64
	}{
		{1.0, 0.1, 1.1},
		{1.0, -0.1, 0.9},
		{0.5, -0.1, 0.5},
		{2.0, 0.1, 2.0},
		{1.94, 0.1, 2.0},
	}

	for _, tt := range tests {
		if got := stepRate(tt.rate, tt.delta); got != tt.want {
			t.Errorf("stepRate(%v, %v): expected %v, got %v", tt.rate, tt.delta, tt.want, got)
		}
	}
}

func TestRepeatAndShuffleKeys(t *testing.T) {
	f := newFakeController()
	m := NewModel(f)

	m = press(t, m, "r")
	if m.repeat != playlist.RepeatOne || f.pl.Repeat() != playlist.RepeatOne {
		t.Errorf("expected repeat one, got %v", m.repeat)
	}

	m = press(t, m, "z")
	if !m.shuffle || !f.pl.Shuffle() {
		t.Error("expected shuffle on")
	}
}

func TestEqualizerFocus(t *testing.T) {
	f := newFakeController()
	m := NewModel(f)

	m = press(t, m, "e")
	if !m.eqFocus {
		t.Fatal("expected eq focus")
	}

	m = press(t, m, "right")
	m = press(t, m, "right")
	m = press(t, m, "up")
	m = press(t, m, "up")
	m = press(t, m, "down")

	if m.eqCursor != 2 {
		t.Errorf("expected cursor on band 2, got %d", m.eqCursor)
	}
	if got := f.bands.Bands[2].GainDB; got != 1 {
		t.Errorf("expected band 2 at +1dB, got %v", got)
	}
	if f.seekTo != 0 {
		t.Errorf("expected arrows not to seek while eq focused, got %v", f.seekTo)
	}

	m = press(t, m, "left")
	m = press(t, m, "left")
	m = press(t, m, "left")
	if m.eqCursor != len(f.bands.Bands)-1 {
		t.Errorf("expected cursor to wrap to last band, got %d", m.eqCursor)
	}

	m = press(t, m, "e")
	if m.eqFocus {
		t.Error("expected eq focus off")
	}
}

func TestCommandErrorShown(t *testing.T) {
	f := newFakeController()
	f.failCmd = errors.New("boom")
	m := press(t, NewModel(f), "n")

	if m.err == nil || m.err.Error() != "boom" {
		t.Errorf("expected error boom, got %v", m.err)
	}
	if !strings.Contains(m.View(), "boom") {
		t.Error("expected error in view")
	}
}

func TestIdleShowsEngineError(t *testing.T) {
	f := newFakeController()
	f.state.State = deck.Idle
	f.err = errors.New("device gone")

	m := NewModel(f)
	if m.err == nil {
		t.Error("expected engine error surfaced while idle")
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(newFakeController())
	next, cmd := m.Update(key("q"))

	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
	if next.(Model).View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestTickRefreshes(t *testing.T) {
	f := newFakeController()
	m := NewModel(f)

	f.position = 45 * time.Second
	f.index = 1
	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)

	if cmd == nil {
		t.Error("expected next tick scheduled")
	}
	if m.position != 45*time.Second {
		t.Errorf("expected position 45s, got %v", m.position)
	}
	if m.track.Title != "Beta" {
		t.Errorf("expected track Beta, got %q", m.track.Title)
	}
}

func TestViewContents(t *testing.T) {
	m := NewModel(newFakeController())
	view := m.View()

	for _, want := range []string{"Alpha", "00:30 / 01:00", "Playing", "1/2", "70%", "1.00x", "repeat:off"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	f := newFakeController()
	f.bands, _ = f.bands.WithGain(5, 3)

	line := StatusLine(f)
	for _, want := range []string{"playing", "Alpha", "00:30/01:00", "vol=70%", "eq=1k:+3"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

func TestHelpers(t *testing.T) {
	if got := renderBar(50, 100, 10); got != "█████░░░░░" {
		t.Errorf("expected half bar, got %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("expected abc..., got %q", got)
	}
	if got := bandLabel(2400); got != "2.4k" {
		t.Errorf("expected 2.4k, got %q", got)
	}
	if got := bandLabel(31.25); got != "31" {
		t.Errorf("expected 31, got %q", got)
	}
	if got := formatDuration(125 * time.Second); got != "02:05" {
		t.Errorf("expected 02:05, got %q", got)
	}
}
