// ABOUTME: Playback clock mapping device frames back to source frames
// ABOUTME: Keeps a short segment history so rate changes and resampling stay exact
package deck

import (
	"sort"
	"sync/atomic"
)

// maxSegments bounds the per-block mapping history
const maxSegments = 64

// segment maps one written block onto the device timeline
type segment struct {
	device int64   // first device frame of the block
	source int64   // source frame at that device frame
	frames int64   // source frames in the block
	ratio  float64 // source frames per device frame
}

// timeline is replaced wholesale after every block
type timeline struct {
	epoch    uint64
	base     int64 // source frame the epoch started at
	written  int64 // device frames written this epoch
	segments []segment
}

// source returns the source frame being heard once played device frames are out
func (t *timeline) source(played int64) int64 {
	if len(t.segments) == 0 {
		return t.base
	}

	i := sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].device > played
	}) - 1
	if i < 0 {
		return t.segments[0].source
	}

	s := t.segments[i]
	pos := s.source + int64(float64(played-s.device)*s.ratio)
	if end := s.source + s.frames; pos > end {
		pos = end
	}
	return pos
}

type mark struct {
	epoch uint64
	pos   int64
}

// Clock converts the output queue depth into a source position. One
// goroutine writes (Rebase, Advance); any goroutine may call Position.
type Clock struct {
	current atomic.Pointer[timeline]
	floor   atomic.Pointer[mark]
}

// NewClock creates a clock at frame 0
func NewClock() *Clock {
	c := &Clock{}
	c.Rebase(0)
	return c
}

// Rebase starts a new epoch at source, after a seek or a fresh start
func (c *Clock) Rebase(source int64) {
	var epoch uint64 = 1
	if prev := c.current.Load(); prev != nil {
		epoch = prev.epoch + 1
	}
	c.current.Store(&timeline{epoch: epoch, base: source})
}

// Advance records a block of sourceFrames starting at source that was
// written to the device as deviceFrames
func (c *Clock) Advance(source, sourceFrames, deviceFrames int64) {
	t := c.current.Load()

	ratio := 1.0
	if deviceFrames > 0 {
		ratio = float64(sourceFrames) / float64(deviceFrames)
	}

	start := len(t.segments) + 1 - maxSegments
	if start < 0 {
		start = 0
	}
	segs := make([]segment, 0, len(t.segments)-start+1)
	segs = append(segs, t.segments[start:]...)
	segs = append(segs, segment{
		device: t.written,
		source: source,
		frames: sourceFrames,
		ratio:  ratio,
	})

	c.current.Store(&timeline{
		epoch:    t.epoch,
		base:     t.base,
		written:  t.written + deviceFrames,
		segments: segs,
	})
}

// Written returns device frames written this epoch
func (c *Clock) Written() int64 {
	return c.current.Load().written
}

// Position returns the source frame being heard given the frames still
// queued in the device. It never decreases within an epoch.
func (c *Clock) Position(buffered int) int64 {
	t := c.current.Load()
	pos := t.source(t.written - int64(buffered))

	for {
		m := c.floor.Load()
		if m != nil && m.epoch == t.epoch && m.pos >= pos {
			return m.pos
		}
		if m != nil && m.epoch > t.epoch {
			return pos
		}
		if c.floor.CompareAndSwap(m, &mark{epoch: t.epoch, pos: pos}) {
			return pos
		}
	}
}
