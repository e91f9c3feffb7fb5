// ABOUTME: Output that renders playback into a PCM WAV file
// ABOUTME: Encodes float samples to 16 or 24-bit integers with go-audio/wav
package output

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

// DefaultWAVPath is where New("wav") renders
const DefaultWAVPath = "resonate-deck.wav"

// WAV writes everything played into one file, as fast as it is produced.
// The first Open fixes the file format; later opens reuse it the way oto
// keeps its context, so a whole playlist lands in one file. Finish
// writes the header and must be called once rendering is done.
type WAV struct {
	mu         sync.Mutex
	path       string
	bitDepth   int
	file       *os.File
	enc        *wav.Encoder
	buf        *goaudio.IntBuffer
	sampleRate int
	channels   int
	frames     int64
	ready      bool
	finished   bool
}

// NewWAV creates a WAV output writing bitDepth (16 or 24) samples to path
func NewWAV(path string, bitDepth int) (*WAV, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}
	return &WAV{path: path, bitDepth: bitDepth}, nil
}

// Open creates the file on first use
func (w *WAV) Open(sampleRate, channels int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return fmt.Errorf("%w: %s already finished", ErrDeviceUnavailable, w.path)
	}

	if w.enc == nil {
		f, err := os.Create(w.path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		w.file = f
		w.sampleRate = sampleRate
		w.channels = channels
		w.enc = wav.NewEncoder(f, sampleRate, w.bitDepth, channels, 1)
		w.buf = &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: w.bitDepth,
		}
		log.Printf("Rendering to %s: %dHz %dch %d-bit", w.path, sampleRate, channels, w.bitDepth)
	}

	w.ready = true
	return nil
}

// Write encodes samples straight to the file
func (w *WAV) Write(samples []float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.ready {
		return ErrNotOpen
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]

	scale := float64(math.MaxInt16)
	if w.bitDepth == 24 {
		scale = audio.Max24Bit
	}
	for i, s := range samples {
		w.buf.Data[i] = int(math.Round(audio.Clamp(s) * scale))
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	w.frames += int64(len(samples) / w.channels)
	return nil
}

// Buffered is always 0; samples are on disk once Write returns
func (w *WAV) Buffered() int {
	return 0
}

// Frames returns the frames written so far
func (w *WAV) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func (w *WAV) Pause() error  { return nil }
func (w *WAV) Resume() error { return nil }
func (w *WAV) Reset() error  { return nil }

func (w *WAV) SampleRate() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sampleRate
}

func (w *WAV) Channels() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channels
}

// Close stops accepting writes; the file stays open for the next Open
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = false
	return nil
}

// Finish completes the WAV header and closes the file
func (w *WAV) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ready = false
	if w.finished || w.enc == nil {
		w.finished = true
		return nil
	}
	w.finished = true

	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize %s: %w", w.path, err)
	}
	return w.file.Close()
}
