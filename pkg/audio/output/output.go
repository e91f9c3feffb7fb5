// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends plus shared helpers
package output

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when no playback device can be opened
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrNotOpen is returned by Write before Open or after Close
	ErrNotOpen = errors.New("output not initialized")
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device. A backend may keep an earlier
	// format; SampleRate and Channels report what it actually plays.
	Open(sampleRate, channels int) error

	// Write queues interleaved float samples, blocking while the device queue is full
	Write(samples []float64) error

	// Buffered returns the frames queued but not yet played
	Buffered() int

	// Pause halts playback, keeping queued audio
	Pause() error

	// Resume continues playback after Pause
	Resume() error

	// Reset discards queued audio and unblocks a pending Write
	Reset() error

	// SampleRate returns the device sample rate
	SampleRate() int

	// Channels returns the device channel count
	Channels() int

	// Close releases output resources
	Close() error
}

// Backends lists the names accepted by New
var Backends = []string{"oto", "malgo", "null", "wav"}

// New creates an output backend by name
func New(name string) (Output, error) {
	switch name {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "null":
		return NewNull(true), nil
	case "wav":
		return NewWAV(DefaultWAVPath, 16)
	default:
		return nil, fmt.Errorf("unknown output backend: %s (supported: oto, malgo, null, wav)", name)
	}
}

// ApplyVolume returns a scaled copy of samples with clipping protection
func ApplyVolume(samples []float64, volume float64) []float64 {
	multiplier := volumeMultiplier(volume)

	result := make([]float64, len(samples))
	for i, sample := range samples {
		scaled := sample * multiplier
		if scaled > 1 {
			scaled = 1
		} else if scaled < -1 {
			scaled = -1
		}
		result[i] = scaled
	}
	return result
}

// volumeMultiplier maps a 0-1 volume onto a perceptual gain curve
func volumeMultiplier(volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	if volume >= 1 {
		return 1
	}
	// gain = volume²
	return volume * volume
}
