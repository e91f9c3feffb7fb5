// ABOUTME: Test output device that plays faster than real time
// ABOUTME: Lets engine tests drive whole tracks in milliseconds and inject failures
package deck

import (
	"errors"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
)

var errDeviceLost = errors.New("device lost")

type fakeOutput struct {
	mu        sync.Mutex
	speed     float64
	rate      int
	ch        int
	capacity  float64
	queued    float64
	frames    int64
	last      time.Time
	paused    bool
	open      bool
	openErr   error
	writeErrs int // writes left to fail, -1 fails every write
	opens     int
	resets    int
}

func newFakeOutput(speed float64) *fakeOutput {
	return &fakeOutput{speed: speed}
}

func (f *fakeOutput) drain() {
	now := time.Now()
	if !f.paused && f.queued > 0 {
		f.queued -= now.Sub(f.last).Seconds() * float64(f.rate) * f.speed
		if f.queued < 0 {
			f.queued = 0
		}
	}
	f.last = now
}

func (f *fakeOutput) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.rate = sampleRate
	f.ch = channels
	f.capacity = float64(sampleRate) / 10
	f.queued = 0
	f.last = time.Now()
	f.open = true
	f.opens++
	return nil
}

func (f *fakeOutput) Write(samples []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return output.ErrNotOpen
	}
	if f.writeErrs != 0 {
		if f.writeErrs > 0 {
			f.writeErrs--
		}
		return errDeviceLost
	}

	n := len(samples) / f.ch
	f.drain()
	f.queued += float64(n)
	f.frames += int64(n)

	for f.open && f.queued > f.capacity {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		f.drain()
	}
	return nil
}

func (f *fakeOutput) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drain()
	return int(f.queued)
}

func (f *fakeOutput) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drain()
	f.paused = true
	return nil
}

func (f *fakeOutput) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drain()
	f.paused = false
	return nil
}

func (f *fakeOutput) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = 0
	f.resets++
	return nil
}

func (f *fakeOutput) SampleRate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeOutput) Channels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.queued = 0
	return nil
}

func (f *fakeOutput) framesWritten() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *fakeOutput) setWriteErrs(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrs = n
}
