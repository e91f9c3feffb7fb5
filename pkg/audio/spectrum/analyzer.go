// ABOUTME: Magnitude spectrum analyzer for visualization
// ABOUTME: Hann-windowed real FFT bucketed into log-spaced bins scaled to 0-100
package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/madelynnblue/go-dsp/fft"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

const (
	// DefaultBins is the number of visualization bins
	DefaultBins = 32
	// DefaultSize is the FFT length in frames
	DefaultSize = 2048

	minHz   = 20.0
	maxHz   = 20000.0
	floorDB = -80.0

	// MaxLevel is the top of the display range
	MaxLevel = 100.0
)

// Frame is one spectrum snapshot, one value per bin in [0, MaxLevel]
type Frame []float64

// Clone returns a copy of the frame
func (f Frame) Clone() Frame {
	return append(Frame(nil), f...)
}

// Analyzer computes spectrum frames from PCM blocks.
// It keeps the most recent Size mono samples, so blocks shorter than the
// FFT still produce a full window. Not safe for concurrent use.
type Analyzer struct {
	bins    int
	size    int
	window  []float64
	history []float64
	buf     []float64

	// bucket layout cached per sample rate
	layoutRate int
	lo, hi     []int
}

// NewAnalyzer creates an analyzer with the given bin count and FFT size
func NewAnalyzer(bins, size int) *Analyzer {
	if bins <= 0 {
		bins = DefaultBins
	}
	if size <= 0 {
		size = DefaultSize
	}

	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	return &Analyzer{
		bins:    bins,
		size:    size,
		window:  window,
		history: make([]float64, size),
		buf:     make([]float64, size),
	}
}

// Bins returns the number of output bins
func (a *Analyzer) Bins() int {
	return a.bins
}

// Reset forgets previously analysed samples
func (a *Analyzer) Reset() {
	clear(a.history)
}

// Analyze folds block into the sample history and returns its spectrum
func (a *Analyzer) Analyze(block audio.Block) Frame {
	a.push(block)
	if block.SampleRate <= 0 {
		return make(Frame, a.bins)
	}
	if block.SampleRate != a.layoutRate {
		a.layout(block.SampleRate)
	}

	for i := range a.buf {
		a.buf[i] = a.history[i] * a.window[i]
	}
	spectrum := fft.FFTReal(a.buf)

	// A full-scale sine peaks at size/4 under a Hann window
	norm := 4.0 / float64(a.size)

	frame := make(Frame, a.bins)
	for b := 0; b < a.bins; b++ {
		peak := 0.0
		for k := a.lo[b]; k <= a.hi[b]; k++ {
			if m := cmplx.Abs(spectrum[k]) * norm; m > peak {
				peak = m
			}
		}
		frame[b] = level(peak)
	}
	return frame
}

// push downmixes block to mono and appends it to the history
func (a *Analyzer) push(block audio.Block) {
	ch := block.Channels
	frames := block.Frames()
	if frames == 0 {
		return
	}

	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < ch; c++ {
			sum += block.Samples[i*ch+c]
		}
		mono[i] = sum / float64(ch)
	}

	if frames >= a.size {
		copy(a.history, mono[frames-a.size:])
		return
	}
	copy(a.history, a.history[frames:])
	copy(a.history[a.size-frames:], mono)
}

// layout computes the FFT bin range of every log-spaced bucket
func (a *Analyzer) layout(sampleRate int) {
	nyquist := float64(sampleRate) / 2
	top := math.Min(maxHz, nyquist)
	binHz := float64(sampleRate) / float64(a.size)
	last := a.size / 2

	a.lo = make([]int, a.bins)
	a.hi = make([]int, a.bins)
	for b := 0; b < a.bins; b++ {
		f0 := minHz * math.Pow(top/minHz, float64(b)/float64(a.bins))
		f1 := minHz * math.Pow(top/minHz, float64(b+1)/float64(a.bins))

		lo := int(math.Ceil(f0 / binHz))
		hi := int(math.Floor(f1 / binHz))
		if lo > hi {
			// Bucket narrower than one FFT bin: use the nearest bin
			c := int(math.Round(math.Sqrt(f0*f1) / binHz))
			lo, hi = c, c
		}
		if lo < 1 {
			lo = 1
		}
		if hi > last {
			hi = last
		}
		if lo > hi {
			lo = hi
		}
		a.lo[b] = lo
		a.hi[b] = hi
	}
	a.layoutRate = sampleRate
}

// level maps a linear magnitude to the display range via dBFS
func level(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	if db <= floorDB {
		return 0
	}
	if db >= 0 {
		return MaxLevel
	}
	return (db - floorDB) / -floorDB * MaxLevel
}
