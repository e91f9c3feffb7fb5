// ABOUTME: TUI initialization and the headless status line
// ABOUTME: Wraps the bubbletea program for the deck UI
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run creates the TUI program; the caller starts it with p.Run()
func Run(ctrl Controller) (*tea.Program, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("tui needs an engine")
	}
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}

// StatusLine summarizes the engine in one line for headless logging
func StatusLine(ctrl Controller) string {
	m := NewModel(ctrl)

	name := m.track.DisplayName()
	if name == "" {
		name = m.info.Path
	}
	if name == "" {
		name = "-"
	}

	mute := ""
	if m.state.Muted {
		mute = " muted"
	}

	return fmt.Sprintf("%s %s %s/%s vol=%.0f%%%s rate=%.2fx repeat=%s shuffle=%v eq=%s",
		m.state.State, name,
		formatDuration(m.position), formatDuration(m.duration),
		m.state.Volume*100, mute, m.state.Rate,
		m.repeat, m.shuffle, equalizerSummary(m.bands))
}
