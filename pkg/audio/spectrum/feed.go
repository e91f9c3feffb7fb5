// ABOUTME: Asynchronous spectrum feed decoupled from the audio path
// ABOUTME: Offer never blocks; Run analyses the newest block and publishes a smoothed snapshot
package spectrum

import (
	"context"
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

// DefaultHistory is the number of frames averaged into a snapshot
const DefaultHistory = 4

// Feed runs an Analyzer on its own goroutine.
// The audio goroutine calls Offer; UI code calls Snapshot.
type Feed struct {
	analyzer *Analyzer
	mailbox  chan offer

	// ring of recent frames, owned by Run
	ring    []Frame
	ringPos int
	ringLen int

	snapshot atomic.Pointer[Frame]
	resetReq atomic.Bool
	gen      atomic.Uint64 // bumped by Reset
	offered  atomic.Int64
	dropped  atomic.Int64
	analyzed atomic.Int64
}

// FeedStats counts blocks through the feed
type FeedStats struct {
	Offered  int64
	Dropped  int64
	Analyzed int64
}

// offer is a block tagged with the reset generation it was offered in
type offer struct {
	block audio.Block
	gen   uint64
}

// NewFeed creates a feed with bins output bins averaging the last history frames
func NewFeed(bins, history int) *Feed {
	if history <= 0 {
		history = DefaultHistory
	}
	f := &Feed{
		analyzer: NewAnalyzer(bins, DefaultSize),
		mailbox:  make(chan offer, 1),
		ring:     make([]Frame, history),
	}
	empty := make(Frame, f.analyzer.Bins())
	f.snapshot.Store(&empty)
	return f
}

// Bins returns the snapshot length
func (f *Feed) Bins() int {
	return f.analyzer.Bins()
}

// Offer hands a block to the analyzer without blocking. A block still
// waiting from an earlier Offer is replaced.
func (f *Feed) Offer(block audio.Block) {
	f.offered.Add(1)
	item := offer{block: block, gen: f.gen.Load()}
	select {
	case f.mailbox <- item:
		return
	default:
	}

	// Drop the stale block and retry once
	select {
	case <-f.mailbox:
		f.dropped.Add(1)
	default:
	}
	select {
	case f.mailbox <- item:
	default:
		f.dropped.Add(1)
	}
}

// Run analyses offered blocks until ctx is cancelled
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-f.mailbox:
			f.process(item)
		}
	}
}

// process analyses one block. Blocks offered before the last Reset are
// dropped, and a Reset landing during analysis wins over the result.
func (f *Feed) process(item offer) {
	prev := f.snapshot.Load()
	if f.resetReq.Swap(false) {
		f.clear()
	}
	if item.gen != f.gen.Load() {
		f.dropped.Add(1)
		return
	}

	avg := f.publish(f.analyzer.Analyze(item.block))
	if !f.snapshot.CompareAndSwap(prev, &avg) {
		f.dropped.Add(1)
		return
	}
	f.analyzed.Add(1)
}

// Snapshot returns a copy of the latest smoothed frame
func (f *Feed) Snapshot() Frame {
	return f.snapshot.Load().Clone()
}

// Reset clears the snapshot and smoothing history
func (f *Feed) Reset() {
	select {
	case <-f.mailbox:
	default:
	}
	f.gen.Add(1)
	f.resetReq.Store(true)
	empty := make(Frame, f.analyzer.Bins())
	f.snapshot.Store(&empty)
}

// Stats returns block counters
func (f *Feed) Stats() FeedStats {
	return FeedStats{
		Offered:  f.offered.Load(),
		Dropped:  f.dropped.Load(),
		Analyzed: f.analyzed.Load(),
	}
}

func (f *Feed) clear() {
	f.analyzer.Reset()
	f.ringPos = 0
	f.ringLen = 0
}

// publish adds frame to the ring and returns the ring average
func (f *Feed) publish(frame Frame) Frame {
	f.ring[f.ringPos] = frame
	f.ringPos = (f.ringPos + 1) % len(f.ring)
	if f.ringLen < len(f.ring) {
		f.ringLen++
	}

	avg := make(Frame, len(frame))
	for i := 0; i < f.ringLen; i++ {
		for b, v := range f.ring[i] {
			avg[b] += v
		}
	}
	for b := range avg {
		avg[b] /= float64(f.ringLen)
	}
	return avg
}
