// ABOUTME: Rendering for the deck TUI
// ABOUTME: Now-playing, progress, volume, equalizer bands and spectrum bars
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/internal/version"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/spectrum"
	"github.com/Resonate-Protocol/resonate-deck/pkg/deck"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
	"github.com/charmbracelet/lipgloss"
)

const panelWidth = 60

var (
	colorBorder = lipgloss.ANSIColor(8)
	colorTitle  = lipgloss.ANSIColor(10)
	colorText   = lipgloss.ANSIColor(7)
	colorDim    = lipgloss.ANSIColor(8)
	colorAccent = lipgloss.ANSIColor(11)
	colorError  = lipgloss.ANSIColor(9)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(panelWidth + 2)

	titleStyle  = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
	trackStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	labelStyle  = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	activeStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)

	specLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(10))
	specMidStyle  = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(11))
	specHighStyle = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(9))
)

// Block elements from empty to full
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		m.renderTrack(),
		m.renderTime(),
		"",
		m.renderSpectrum(),
		m.renderProgress(),
		"",
		m.renderControls(),
		m.renderEQ(),
		"",
		m.renderHelp(),
	}

	if m.err != nil {
		sections = append(sections, errorStyle.Render(truncate("Error: "+m.err.Error(), panelWidth)))
	}

	return frameStyle.Render(strings.Join(sections, "\n"))
}

// renderHeader renders the title and playlist position
func (m Model) renderHeader() string {
	title := titleStyle.Render(version.String())
	if m.total == 0 {
		return title
	}
	pos := dimStyle.Render(fmt.Sprintf("%d/%d", m.index+1, m.total))
	return spread(title, pos)
}

// renderTrack renders the current track's metadata
func (m Model) renderTrack() string {
	name := m.track.DisplayName()
	if name == "" && m.info.Path != "" {
		name = filepath.Base(m.info.Path)
	}
	if name == "" {
		return dimStyle.Render("No track loaded")
	}

	s := trackStyle.Render(truncate(name, panelWidth))
	if m.track.Album != "" {
		s += "\n" + dimStyle.Render(truncate(m.track.Album, panelWidth))
	}
	if f := m.info.Format; f.SampleRate > 0 {
		s += "\n" + dimStyle.Render(fmt.Sprintf("%s %dHz %s", f.Codec, f.SampleRate, channelName(f.Channels)))
	}
	return s
}

// renderTime renders position, duration and transport state
func (m Model) renderTime() string {
	t := fmt.Sprintf("%s / %s", formatDuration(m.position), formatDuration(m.duration))
	return spread(labelStyle.Render(t), stateLabel(m.state.State))
}

// renderSpectrum renders one bar per analyzer bin
func (m Model) renderSpectrum() string {
	if len(m.spectrum) == 0 {
		return strings.Repeat(" ", panelWidth)
	}
	return renderSpectrum(m.spectrum, panelWidth)
}

// renderProgress renders the seek bar
func (m Model) renderProgress() string {
	var progress float64
	if m.duration > 0 {
		progress = float64(m.position) / float64(m.duration)
	}
	progress = max(0, min(1, progress))

	filled := int(progress * float64(panelWidth-1))
	return activeStyle.Render(strings.Repeat("━", filled)+"●") +
		dimStyle.Render(strings.Repeat("━", max(0, panelWidth-filled-1)))
}

// renderControls renders volume, rate and playlist modes
func (m Model) renderControls() string {
	vol := int(m.state.Volume*100 + 0.5)
	volume := fmt.Sprintf("VOL [%s] %3d%%", renderBar(vol, 100, 10), vol)
	if m.state.Muted {
		volume = fmt.Sprintf("VOL [%s] muted", renderBar(0, 100, 10))
	}

	shuffle := dimStyle.Render("shuffle")
	if m.shuffle {
		shuffle = activeStyle.Render("shuffle")
	}
	repeat := dimStyle.Render("repeat:" + m.repeat.String())
	if m.repeat != playlist.RepeatOff {
		repeat = activeStyle.Render("repeat:" + m.repeat.String())
	}

	left := labelStyle.Render(volume) + "  " + labelStyle.Render(fmt.Sprintf("%.2fx", m.state.Rate))
	return spread(left, repeat+" "+shuffle)
}

// renderEQ renders band gains, highlighting the focused band
func (m Model) renderEQ() string {
	parts := make([]string, len(m.bands.Bands))
	for i, b := range m.bands.Bands {
		label := bandLabel(b.CenterHz)
		if m.eqFocus && i == m.eqCursor {
			parts[i] = activeStyle.Render(fmt.Sprintf("%+.0f", b.GainDB))
			continue
		}
		if b.GainDB != 0 {
			parts[i] = labelStyle.Render(label)
		} else {
			parts[i] = dimStyle.Render(label)
		}
	}

	prefix := labelStyle.Render("EQ  ")
	if m.eqFocus {
		prefix = activeStyle.Render("EQ▸ ")
	}
	return prefix + strings.Join(parts, " ")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	if m.eqFocus {
		return dimStyle.Render("←/→ band  ↑/↓ gain  e done  q quit")
	}
	return dimStyle.Render("spc play  s stop  n/p next/prev  ←/→ seek  +/- vol  [/] rate\nm mute  r repeat  z shuffle  e eq  q quit")
}

// renderSpectrum scales a frame into width columns of block characters
func renderSpectrum(frame spectrum.Frame, width int) string {
	n := len(frame)
	bw := max(1, (width-(n-1))/n)

	var sb strings.Builder
	for i, v := range frame {
		level := max(0, min(1, v/spectrum.MaxLevel))
		idx := int(level * float64(len(barBlocks)-1))

		style := specLowStyle
		switch {
		case level > 0.75:
			style = specHighStyle
		case level > 0.45:
			style = specMidStyle
		}

		sb.WriteString(style.Render(strings.Repeat(barBlocks[idx], bw)))
		if i < n-1 {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func stateLabel(s deck.State) string {
	switch s {
	case deck.Playing:
		return activeStyle.Render("▶ Playing")
	case deck.Paused:
		return labelStyle.Render("⏸ Paused")
	case deck.Loading:
		return dimStyle.Render("… Loading")
	case deck.TrackEnded:
		return dimStyle.Render("■ Ended")
	case deck.Stopped:
		return dimStyle.Render("■ Stopped")
	default:
		return dimStyle.Render("Idle")
	}
}

func bandLabel(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%gk", float64(int(hz/100))/10)
	}
	return fmt.Sprintf("%d", int(hz))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// spread pads between left and right to fill the panel
func spread(left, right string) string {
	gap := max(1, panelWidth-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// equalizerSummary lists non-flat band gains for the headless log
func equalizerSummary(cfg equalizer.Config) string {
	var parts []string
	for _, b := range cfg.Bands {
		if b.GainDB != 0 {
			parts = append(parts, fmt.Sprintf("%s:%+.0f", bandLabel(b.CenterHz), b.GainDB))
		}
	}
	if len(parts) == 0 {
		return "flat"
	}
	return strings.Join(parts, " ")
}
