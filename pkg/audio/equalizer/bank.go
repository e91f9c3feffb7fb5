// ABOUTME: Parallel band-pass filter bank applying equalizer gains
// ABOUTME: Config is published atomically and picked up at the next block
package equalizer

import (
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

// Bands at or above this fraction of the sample rate are left flat
const maxCenterRatio = 0.45

// section holds one band's band-pass coefficients, normalised by a0.
// The filter has a 0 dB peak at its centre so mix = gain-1 scales the
// band's contribution onto the dry signal.
type section struct {
	b0, b2 float64
	a1, a2 float64
	mix    float64
	active bool
}

// state is one band's direct-form-I memory for one channel
type state struct {
	x1, x2 float64
	y1, y2 float64
}

// Bank filters blocks through the configured bands.
// Configure may be called from any goroutine; Process is called from the
// audio goroutine only.
type Bank struct {
	cfg   atomic.Pointer[Config]
	reset atomic.Bool

	// owned by the audio goroutine
	applied    *Config
	sampleRate int
	channels   int
	sections   []section
	states     [][]state // [band][channel]
}

// NewBank creates a filter bank with the given config
func NewBank(cfg Config) *Bank {
	b := &Bank{}
	b.Configure(cfg)
	return b
}

// Configure replaces the band config; it applies from the next block
func (b *Bank) Configure(cfg Config) {
	n := cfg.normalized()
	b.cfg.Store(&n)
}

// Config returns a copy of the current config
func (b *Bank) Config() Config {
	return b.cfg.Load().Clone()
}

// Reset clears filter memory before the next block
func (b *Bank) Reset() {
	b.reset.Store(true)
}

// Process filters block in place
func (b *Bank) Process(block *audio.Block) {
	cfg := b.cfg.Load()
	if cfg != b.applied || block.SampleRate != b.sampleRate || block.Channels != b.channels {
		b.rebuild(cfg, block.SampleRate, block.Channels)
	}
	if b.reset.Swap(false) {
		b.clearState()
	}

	ch := block.Channels
	if ch == 0 || len(b.sections) == 0 {
		return
	}

	s := block.Samples
	for i := 0; i+ch <= len(s); i += ch {
		for c := 0; c < ch; c++ {
			x := s[i+c]
			acc := 0.0
			touched := false
			for k := range b.sections {
				sec := &b.sections[k]
				if !sec.active {
					continue
				}
				st := &b.states[k][c]
				y := sec.b0*x + sec.b2*st.x2 - sec.a1*st.y1 - sec.a2*st.y2
				st.x2, st.x1 = st.x1, x
				st.y2, st.y1 = st.y1, y
				if sec.mix != 0 {
					acc += sec.mix * y
					touched = true
				}
			}
			// Flat bands leave the sample untouched bit for bit
			if touched {
				s[i+c] = x + acc
			}
		}
	}
}

// rebuild recomputes coefficients. Filter memory survives unless the
// band count, channel count or sample rate changed.
func (b *Bank) rebuild(cfg *Config, sampleRate, channels int) {
	keep := b.applied != nil &&
		len(b.applied.Bands) == len(cfg.Bands) &&
		b.sampleRate == sampleRate &&
		b.channels == channels

	b.sections = make([]section, len(cfg.Bands))
	for i, band := range cfg.Bands {
		b.sections[i] = design(band, sampleRate)
	}

	if !keep {
		b.states = make([][]state, len(cfg.Bands))
		for i := range b.states {
			b.states[i] = make([]state, channels)
		}
	}

	b.applied = cfg
	b.sampleRate = sampleRate
	b.channels = channels
}

func (b *Bank) clearState() {
	for i := range b.states {
		for c := range b.states[i] {
			b.states[i][c] = state{}
		}
	}
}

// design computes a constant 0 dB peak band-pass (RBJ cookbook)
func design(band Band, sampleRate int) section {
	if sampleRate <= 0 || band.CenterHz <= 0 || band.CenterHz >= maxCenterRatio*float64(sampleRate) {
		return section{}
	}

	q := band.Q
	if q <= 0 {
		q = DefaultQ
	}

	w0 := 2 * math.Pi * band.CenterHz / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha

	return section{
		b0:     alpha / a0,
		b2:     -alpha / a0,
		a1:     -2 * math.Cos(w0) / a0,
		a2:     (1 - alpha) / a0,
		mix:    Gain(band.GainDB) - 1,
		active: true,
	}
}
