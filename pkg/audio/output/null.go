// ABOUTME: Output that plays to nowhere, optionally at real-time pace
// ABOUTME: Used for headless runs and when no sound device is present
package output

import (
	"sync"
	"time"
)

// Null discards audio. In real-time mode queued frames drain at the
// sample rate so position tracking behaves like a real device.
type Null struct {
	mu         sync.Mutex
	realtime   bool
	sampleRate int
	channels   int
	capacity   int // frames
	queued     int64
	played     int64
	paused     bool
	ready      bool
	lastDrain  time.Time
}

// NewNull creates a null output
func NewNull(realtime bool) *Null {
	return &Null{realtime: realtime}
}

// Open sets the format; the null device accepts any format
func (n *Null) Open(sampleRate, channels int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sampleRate = sampleRate
	n.channels = channels
	n.capacity = sampleRate / 5 // 200ms
	n.queued = 0
	n.ready = true
	n.lastDrain = time.Now()
	return nil
}

// Write queues samples, sleeping while more than capacity frames are queued
func (n *Null) Write(samples []float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.ready {
		return ErrNotOpen
	}

	frames := int64(len(samples) / n.channels)
	if !n.realtime {
		n.played += frames
		return nil
	}

	n.drain()
	n.queued += frames

	for n.ready && n.queued > int64(n.capacity) {
		excess := n.queued - int64(n.capacity)
		wait := time.Duration(float64(excess) / float64(n.sampleRate) * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		if wait > 20*time.Millisecond {
			wait = 20 * time.Millisecond
		}

		n.mu.Unlock()
		time.Sleep(wait)
		n.mu.Lock()

		n.drain()
	}

	if !n.ready {
		return ErrNotOpen
	}
	return nil
}

// drain moves elapsed frames from queued to played (must hold n.mu)
func (n *Null) drain() {
	now := time.Now()
	if !n.paused && n.queued > 0 {
		frames := int64(now.Sub(n.lastDrain).Seconds() * float64(n.sampleRate))
		if frames > n.queued {
			frames = n.queued
		}
		n.queued -= frames
		n.played += frames
	}
	n.lastDrain = now
}

// Buffered returns frames not yet played
func (n *Null) Buffered() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drain()
	return int(n.queued)
}

// Played returns the total frames consumed
func (n *Null) Played() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drain()
	return n.played
}

func (n *Null) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drain()
	n.paused = true
	return nil
}

func (n *Null) Resume() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drain()
	n.paused = false
	return nil
}

func (n *Null) Reset() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queued = 0
	n.lastDrain = time.Now()
	return nil
}

func (n *Null) SampleRate() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sampleRate
}

func (n *Null) Channels() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channels
}

func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = false
	n.queued = 0
	return nil
}
