// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 PCM through a pipe into a persistent oto player
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows only one context per process
var (
	otoMu         sync.Mutex
	otoShared     *oto.Context
	otoSharedRate int
	otoSharedCh   int
)

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	paused     bool
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}

	ctx, rate, ch, err := sharedContext(sampleRate, channels)
	if err != nil {
		return err
	}

	o.otoCtx = ctx
	o.sampleRate = rate
	o.channels = ch
	o.newPlayer()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", rate, ch)
	return nil
}

// sharedContext returns the process-wide oto context, creating it on first use
func sharedContext(sampleRate, channels int) (*oto.Context, int, int, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoShared != nil {
		if otoSharedRate != sampleRate || otoSharedCh != channels {
			log.Printf("Warning: oto context fixed at %dHz %dch, stream is %dHz %dch; converting in software",
				otoSharedRate, otoSharedCh, sampleRate, channels)
		}
		otoShared.Resume()
		return otoShared, otoSharedRate, otoSharedCh, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   50 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: failed to create oto context: %v", ErrDeviceUnavailable, err)
	}
	<-readyChan

	otoShared = ctx
	otoSharedRate = sampleRate
	otoSharedCh = channels
	return ctx, sampleRate, channels, nil
}

// newPlayer creates a pipe and a player reading from it (must hold o.mu)
func (o *Oto) newPlayer() {
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	// 100ms of float32 frames
	o.player.SetBufferSize(o.sampleRate * o.channels * 4 / 10)
	if !o.paused {
		o.player.Play()
	}
}

// closePlayer tears down the pipe and player (must hold o.mu)
func (o *Oto) closePlayer() {
	if o.pipeWriter != nil {
		o.pipeWriter.CloseWithError(io.ErrClosedPipe)
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
}

// Write outputs audio samples (blocks until the player has taken them)
func (o *Oto) Write(samples []float64) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return ErrNotOpen
	}
	w := o.pipeWriter
	o.mu.Unlock()

	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(s)))
	}

	// Outside the lock: Reset closes the pipe to unblock this write
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Buffered returns frames held by the player
func (o *Oto) Buffered() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil || o.channels == 0 {
		return 0
	}
	return o.player.BufferedSize() / (4 * o.channels)
}

func (o *Oto) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
	if o.player != nil {
		o.player.Pause()
	}
	return nil
}

func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
	if o.player != nil {
		o.player.Play()
	}
	return nil
}

// Reset drops queued audio by replacing the player
func (o *Oto) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.ready {
		return nil
	}
	o.closePlayer()
	o.newPlayer()
	return nil
}

func (o *Oto) SampleRate() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sampleRate
}

func (o *Oto) Channels() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.channels
}

// Close releases the player; the shared context is suspended, not destroyed
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closePlayer()
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	o.ready = false
	return nil
}
