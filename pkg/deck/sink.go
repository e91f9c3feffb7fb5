// ABOUTME: Mixer sink running the per-stream audio goroutine
// ABOUTME: Decodes, equalizes, feeds the analyzer, converts and writes to the device
package deck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/spectrum"
)

const (
	MinRate = 0.5
	MaxRate = 2.0

	drainPoll = 5 * time.Millisecond
	pausePoll = 20 * time.Millisecond
)

// Completion reports how a sink session ended on its own
type Completion struct {
	Gen    uint64
	Reason EndReason
	Blocks int64 // blocks decoded and written
	Err    error
	Fatal  bool
}

// SinkStats counts audio goroutine activity
type SinkStats struct {
	Blocks  int64
	Retries int64
}

// Sink owns one output device and plays one stream at a time
type Sink struct {
	out   output.Output
	bank  *equalizer.Bank
	feed  *spectrum.Feed
	clock *Clock

	mu      sync.Mutex
	stream  decode.Stream
	cancel  context.CancelFunc
	done    chan struct{}
	opened  bool
	devRate int
	devCh   int

	gen      atomic.Uint64
	active   atomic.Bool
	paused   atomic.Bool
	pausedAt atomic.Int64
	pending  atomic.Int64
	startAt  atomic.Int64 // seek target for the next Start, -1 for none
	endAt    atomic.Int64 // where the last session stopped
	total    atomic.Int64
	rate     atomic.Uint64
	volume   atomic.Uint64
	blocks   atomic.Int64
	retries  atomic.Int64

	wake        chan struct{}
	completions chan Completion
}

// NewSink creates a sink writing to out
func NewSink(out output.Output, bank *equalizer.Bank, feed *spectrum.Feed) *Sink {
	s := &Sink{
		out:         out,
		bank:        bank,
		feed:        feed,
		clock:       NewClock(),
		wake:        make(chan struct{}, 1),
		completions: make(chan Completion, 16),
	}
	s.pending.Store(-1)
	s.startAt.Store(-1)
	s.rate.Store(math.Float64bits(1.0))
	s.volume.Store(math.Float64bits(1.0))
	return s
}

// Completions delivers natural ends, track errors and fatal failures
func (s *Sink) Completions() <-chan Completion {
	return s.completions
}

// Generation identifies the current session; Start and Stop bump it
func (s *Sink) Generation() uint64 {
	return s.gen.Load()
}

// Start releases any previous session and device binding, then plays
// stream. A seek recorded while stopped applies when stream is the one
// that was stopped.
func (s *Sink) Start(stream decode.Stream, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	info := stream.Info()
	if err := s.bind(info); err != nil {
		return err
	}

	target := max(s.startAt.Swap(-1), 0)
	if stream == s.stream {
		if err := stream.SeekFrame(target); err != nil {
			return &TrackError{Path: info.Path, Err: err}
		}
	} else {
		target = 0
	}

	s.stream = stream
	s.total.Store(info.TotalFrames)
	s.pending.Store(-1)
	s.pausedAt.Store(target)
	s.endAt.Store(target)
	s.clock.Rebase(target)
	s.bank.Reset()
	s.feed.Reset()

	s.paused.Store(paused)
	if paused {
		s.out.Pause()
	} else {
		s.out.Resume()
	}

	gen := s.gen.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.active.Store(true)

	log.Printf("Sink started: %s (%dHz %dch -> device %dHz %dch, from frame %d)",
		info.Path, info.Format.SampleRate, info.Format.Channels, s.devRate, s.devCh, target)

	go s.run(ctx, gen, stream, info, done)
	return nil
}

// bind opens the device for info's format (must hold s.mu)
func (s *Sink) bind(info audio.StreamInfo) error {
	s.release()

	if err := s.out.Open(info.Format.SampleRate, info.Format.Channels); err != nil {
		if !errors.Is(err, output.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", output.ErrDeviceUnavailable, err)
		}
		return err
	}
	s.opened = true

	s.devRate = s.out.SampleRate()
	s.devCh = s.out.Channels()
	if s.devRate <= 0 {
		s.devRate = info.Format.SampleRate
	}
	if s.devCh <= 0 {
		s.devCh = info.Format.Channels
	}
	return nil
}

// release closes the device binding (must hold s.mu)
func (s *Sink) release() {
	if !s.opened {
		return
	}
	if err := s.out.Close(); err != nil {
		log.Printf("Warning: output close error: %v", err)
	}
	s.opened = false
}

// Stop ends the session; completions already in flight become stale
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen.Add(1)
	s.stopLocked()
	s.startAt.Store(-1)
	s.endAt.Store(0)
	s.release()
}

// stopLocked cancels the audio goroutine and waits for it (must hold s.mu)
func (s *Sink) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.out.Reset()
	<-s.done

	s.cancel = nil
	s.done = nil
	s.active.Store(false)
	s.pending.Store(-1)
	s.feed.Reset()
}

// Close stops playback and releases the device
func (s *Sink) Close() error {
	s.Stop()
	return nil
}

// Pause freezes the position and halts the device
func (s *Sink) Pause() {
	if !s.active.Load() || s.paused.Load() {
		return
	}
	s.pausedAt.Store(s.Position())
	s.paused.Store(true)
	s.out.Pause()
}

// Resume continues after Pause
func (s *Sink) Resume() {
	if !s.paused.Load() {
		return
	}
	s.out.Resume()
	s.paused.Store(false)
	s.poke()
}

func (s *Sink) Paused() bool {
	return s.paused.Load()
}

// Active reports whether a session is running
func (s *Sink) Active() bool {
	return s.active.Load()
}

// SeekFrame moves playback to frame at the next block boundary. While no
// session runs it records the target for the next Start.
func (s *Sink) SeekFrame(frame int64) error {
	total := s.total.Load()
	if frame < 0 || (total > 0 && frame >= total) {
		return fmt.Errorf("%w: frame %d of %d", ErrSeekOutOfRange, frame, total)
	}

	if !s.active.Load() {
		s.startAt.Store(frame)
		return nil
	}
	s.pending.Store(frame)
	s.poke()
	return nil
}

// Position returns the source frame currently audible
func (s *Sink) Position() int64 {
	if p := s.pending.Load(); p >= 0 {
		return p
	}
	if !s.active.Load() {
		if target := s.startAt.Load(); target >= 0 {
			return target
		}
		return s.endAt.Load()
	}
	if s.paused.Load() {
		return s.pausedAt.Load()
	}
	return s.clock.Position(s.out.Buffered())
}

// SetRate changes playback speed from the next block
func (s *Sink) SetRate(rate float64) error {
	if math.IsNaN(rate) || rate < MinRate || rate > MaxRate {
		return fmt.Errorf("%w: %.2f (allowed %.1f-%.1f)", ErrInvalidRate, rate, MinRate, MaxRate)
	}
	s.rate.Store(math.Float64bits(rate))
	return nil
}

func (s *Sink) Rate() float64 {
	return math.Float64frombits(s.rate.Load())
}

// SetVolume sets linear volume in [0, 1]
func (s *Sink) SetVolume(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume.Store(math.Float64bits(v))
}

func (s *Sink) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// Stats returns counters since creation
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Blocks:  s.blocks.Load(),
		Retries: s.retries.Load(),
	}
}

func (s *Sink) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the audio goroutine for one session
func (s *Sink) run(ctx context.Context, gen uint64, stream decode.Stream, info audio.StreamInfo, done chan struct{}) {
	defer close(done)

	res := resample.New(info.Format.SampleRate, s.devRate, s.devCh)
	var (
		blocks int64
		eof    bool
	)

	finish := func(c Completion) {
		c.Gen = gen
		s.active.Store(false)
		select {
		case s.completions <- c:
		default:
			log.Printf("Dropped sink completion: %+v", c)
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		if s.pending.Load() >= 0 {
			if err := s.applySeek(stream, res); err != nil {
				finish(Completion{Reason: ErrorEnd, Blocks: blocks, Err: &TrackError{Path: info.Path, Err: err}})
				return
			}
			eof = false
			continue
		}

		if s.paused.Load() {
			s.sleep(ctx, pausePoll)
			continue
		}

		if eof {
			if s.out.Buffered() == 0 {
				end := s.clock.Position(0)
				if info.TotalFrames > 0 {
					end = info.TotalFrames
				}
				s.endAt.Store(end)
				log.Printf("Track drained: %s after %d blocks", info.Path, blocks)
				finish(Completion{Reason: NaturalEnd, Blocks: blocks})
				return
			}
			s.sleep(ctx, drainPoll)
			continue
		}

		block, err := stream.ReadBlock()
		if err == io.EOF {
			eof = true
			continue
		}
		if err != nil {
			log.Printf("Decode error in %s: %v", info.Path, err)
			finish(Completion{Reason: ErrorEnd, Blocks: blocks, Err: &TrackError{Path: info.Path, Err: err}})
			return
		}
		blocks++
		s.blocks.Add(1)

		s.bank.Process(&block)
		s.feed.Offer(block)

		samples := s.render(block, res)
		if err := s.write(ctx, samples, block.Offset); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Output failed: %v", err)
			finish(Completion{Reason: ErrorEnd, Blocks: blocks, Err: err, Fatal: true})
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.clock.Advance(block.Offset, int64(block.Frames()), int64(len(samples)/s.devCh))
	}
}

// applySeek flushes the device and repositions the decoder
func (s *Sink) applySeek(stream decode.Stream, res *resample.Resampler) error {
	target := s.pending.Load()

	s.out.Reset()
	if err := stream.SeekFrame(target); err != nil {
		return err
	}
	res.Reset()
	s.bank.Reset()
	s.feed.Reset()
	s.clock.Rebase(target)
	s.pausedAt.Store(target)

	// A newer request stays pending
	s.pending.CompareAndSwap(target, -1)

	log.Printf("Seeked to frame %d", target)
	return nil
}

// render converts an equalized block to device samples. The block
// itself is shared with the analyzer and is not modified.
func (s *Sink) render(block audio.Block, res *resample.Resampler) []float64 {
	samples := remix(block.Samples, block.Channels, s.devCh)

	res.SetRatio(float64(block.SampleRate) * s.Rate() / float64(s.devRate))
	if !res.Passthrough() {
		samples = res.Resample(samples)
	}

	return output.ApplyVolume(samples, s.Volume())
}

// write sends samples to the device, reopening it once on failure
func (s *Sink) write(ctx context.Context, samples []float64, offset int64) error {
	err := s.out.Write(samples)
	if err == nil || ctx.Err() != nil {
		return nil
	}

	log.Printf("Output write failed, reopening device: %v", err)
	s.retries.Add(1)

	s.out.Close()
	if err := s.out.Open(s.devRate, s.devCh); err != nil {
		return fmt.Errorf("%w: reopen failed: %v", ErrFatal, err)
	}
	if s.paused.Load() {
		s.out.Pause()
	}
	s.clock.Rebase(offset)

	if err := s.out.Write(samples); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
	return nil
}

func (s *Sink) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-t.C:
	}
}

// remix maps interleaved samples from one channel count to another
func remix(samples []float64, from, to int) []float64 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}

	frames := len(samples) / from
	out := make([]float64, frames*to)
	for f := 0; f < frames; f++ {
		in := samples[f*from : (f+1)*from]
		dst := out[f*to : (f+1)*to]

		if to == 1 {
			sum := 0.0
			for _, v := range in {
				sum += v
			}
			dst[0] = sum / float64(from)
			continue
		}
		for c := range dst {
			dst[c] = in[c%from]
		}
	}
	return out
}
