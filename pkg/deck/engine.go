// ABOUTME: Transport controller driving the sink from user commands and track ends
// ABOUTME: Owns the state machine, the loaded stream and playlist advance
package deck

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/spectrum"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
)

// DefaultVolume is the initial volume when none is configured
const DefaultVolume = 0.7

// errSuperseded means a newer command replaced the one in progress
var errSuperseded = errors.New("superseded by a newer command")

// Opener opens a file as a block stream
type Opener func(path string, blockFrames int) (decode.Stream, error)

func openFile(path string, blockFrames int) (decode.Stream, error) {
	return decode.Open(path, decode.WithBlockFrames(blockFrames))
}

// Config holds engine configuration
type Config struct {
	// BlockFrames is the decode block size (default: 4096)
	BlockFrames int

	// Volume is the initial volume 0-1 (default: 0.7)
	Volume float64

	// Rate is the initial playback rate (default: 1.0)
	Rate float64

	// Bands is the initial equalizer configuration (default: 10 flat bands)
	Bands equalizer.Config

	// SpectrumBins is the analyzer bin count (default: 32)
	SpectrumBins int

	// SpectrumHistory is how many frames are averaged (default: 4)
	SpectrumHistory int

	// Output is the playback device (default: oto)
	Output output.Output

	// Open replaces file decoding, mainly for tests
	Open Opener

	// Playlist supplies tracks for Next, Previous and auto-advance
	Playlist *playlist.Playlist
}

// Engine is the playback engine. All methods are safe for concurrent use.
type Engine struct {
	config   Config
	sink     *Sink
	bank     *equalizer.Bank
	feed     *spectrum.Feed
	playlist *playlist.Playlist

	openMu sync.Mutex

	mu       sync.Mutex
	state    State
	stream   decode.Stream
	info     audio.StreamInfo
	index    int
	err      error
	failures int
	epoch    uint64
	volume   float64
	muted    bool
	closed   bool

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine and starts its background goroutines
func New(config Config) (*Engine, error) {
	// Set defaults
	if config.BlockFrames == 0 {
		config.BlockFrames = audio.DefaultBlockFrames
	}
	if config.Volume == 0 {
		config.Volume = DefaultVolume
	}
	if config.Rate == 0 {
		config.Rate = 1.0
	}
	if len(config.Bands.Bands) == 0 {
		config.Bands = equalizer.DefaultConfig()
	}
	if config.SpectrumBins == 0 {
		config.SpectrumBins = spectrum.DefaultBins
	}
	if config.SpectrumHistory == 0 {
		config.SpectrumHistory = spectrum.DefaultHistory
	}
	if config.Output == nil {
		config.Output = output.NewOto()
	}
	if config.Open == nil {
		config.Open = openFile
	}
	if config.BlockFrames < 0 {
		return nil, fmt.Errorf("invalid block size: %d", config.BlockFrames)
	}

	bank := equalizer.NewBank(config.Bands)
	feed := spectrum.NewFeed(config.SpectrumBins, config.SpectrumHistory)
	sink := NewSink(config.Output, bank, feed)
	if err := sink.SetRate(config.Rate); err != nil {
		return nil, err
	}
	sink.SetVolume(config.Volume)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		config:   config,
		sink:     sink,
		bank:     bank,
		feed:     feed,
		playlist: config.Playlist,
		index:    -1,
		volume:   sink.Volume(),
		events:   make(chan Event, 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		feed.Run(ctx)
	}()
	go e.watch()

	return e, nil
}

// Events delivers state changes, loads, track ends and errors. Events
// are dropped when the channel is full.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Playlist returns the configured playlist, possibly nil
func (e *Engine) Playlist() *playlist.Playlist {
	return e.playlist
}

// Open loads path and leaves it paused at frame 0
func (e *Engine) Open(ctx context.Context, path string) error {
	epoch := e.bump()
	err := e.load(ctx, path, -1, epoch)
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}

// load tears down the current stream, opens path and starts the sink paused
func (e *Engine) load(ctx context.Context, path string, index int, epoch uint64) error {
	e.openMu.Lock()
	defer e.openMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.epoch != epoch {
		e.mu.Unlock()
		return errSuperseded
	}
	e.releaseLocked()
	e.index = index
	e.setStateLocked(Loading)
	e.mu.Unlock()

	log.Printf("Loading %s", path)
	stream, err := e.openStream(ctx, path)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch || e.closed {
		if stream != nil {
			stream.Close()
		}
		return errSuperseded
	}

	if err != nil {
		log.Printf("Failed to open %s: %v", path, err)
		e.err = err
		e.index = -1
		e.setStateLocked(Idle)
		return err
	}

	if err := e.sink.Start(stream, true); err != nil {
		log.Printf("Failed to start playback of %s: %v", path, err)
		stream.Close()
		e.err = err
		e.index = -1
		e.setStateLocked(Idle)
		return err
	}

	e.stream = stream
	e.info = stream.Info()
	e.err = nil
	e.setStateLocked(Paused)
	e.emitLocked(Event{Type: EventTrackLoaded, State: Paused, Index: index, Path: path})
	return nil
}

// openStream runs the opener, giving up when ctx is done
func (e *Engine) openStream(ctx context.Context, path string) (decode.Stream, error) {
	type result struct {
		stream decode.Stream
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := e.config.Open(path, e.config.BlockFrames)
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &TrackError{Path: path, Err: r.err}
		}
		return r.stream, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.stream != nil {
				r.stream.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Play starts or resumes playback. From Idle it plays the playlist's
// current track, or the first one.
func (e *Engine) Play() error {
	e.mu.Lock()
	switch e.state {
	case Playing, Loading:
		e.mu.Unlock()
		return nil

	case Paused:
		e.sink.Resume()
		e.setStateLocked(Playing)
		e.mu.Unlock()
		return nil

	case Stopped, TrackEnded:
		if e.stream != nil {
			defer e.mu.Unlock()
			if err := e.sink.Start(e.stream, false); err != nil {
				return e.failLocked(err)
			}
			e.setStateLocked(Playing)
			return nil
		}
	}
	e.mu.Unlock()

	if e.playlist == nil || e.playlist.Len() == 0 {
		return ErrNoTrack
	}
	idx := e.playlist.Index()
	if idx < 0 {
		idx = 0
	}
	return e.PlayIndex(idx)
}

// Pause halts playback, keeping the position
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Playing {
		return nil
	}
	e.sink.Pause()
	e.setStateLocked(Paused)
	return nil
}

// TogglePause switches between Playing and Paused
func (e *Engine) TogglePause() error {
	if e.State() == Playing {
		return e.Pause()
	}
	return e.Play()
}

// Stop ends playback; a track end racing with Stop is ignored
func (e *Engine) Stop() error {
	e.bump()

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Playing, Paused, TrackEnded, Loading:
		e.sink.Stop()
		e.feed.Reset()
		e.setStateLocked(Stopped)
	}
	return nil
}

// SeekFrame moves to a source frame. While stopped or after a track ended it
// sets where Play starts.
func (e *Engine) SeekFrame(frame int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return ErrNoTrack
	}
	return e.sink.SeekFrame(frame)
}

// SeekDuration seeks to a time offset
func (e *Engine) SeekDuration(d time.Duration) error {
	rate := e.Info().Format.SampleRate
	if rate == 0 {
		return ErrNoTrack
	}
	return e.SeekFrame(audio.DurationToFrames(d, rate))
}

// SeekFraction seeks to a fraction of the track length, 0 to 1
func (e *Engine) SeekFraction(f float64) error {
	info := e.Info()
	if info.Format.SampleRate == 0 {
		return ErrNoTrack
	}
	if math.IsNaN(f) || f < 0 || f > 1 || info.TotalFrames == 0 {
		return fmt.Errorf("%w: fraction %.3f of %d frames", ErrSeekOutOfRange, f, info.TotalFrames)
	}

	frame := int64(f * float64(info.TotalFrames))
	if frame >= info.TotalFrames {
		frame = info.TotalFrames - 1
	}
	return e.SeekFrame(frame)
}

// SetRate sets playback speed in [MinRate, MaxRate]
func (e *Engine) SetRate(rate float64) error {
	return e.sink.SetRate(rate)
}

// SetVolume sets volume 0-1 and clears mute
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sink.SetVolume(v)
	e.volume = e.sink.Volume()
	e.muted = false
}

// ToggleMute silences output, remembering the volume
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = !e.muted
	if e.muted {
		e.sink.SetVolume(0)
	} else {
		e.sink.SetVolume(e.volume)
	}
	return e.muted
}

// SetBandConfig replaces the equalizer configuration from the next block
func (e *Engine) SetBandConfig(cfg equalizer.Config) {
	e.bank.Configure(cfg)
}

// SetBandGain changes one band's gain in dB
func (e *Engine) SetBandGain(band int, db float64) error {
	cfg, err := e.bank.Config().WithGain(band, db)
	if err != nil {
		return err
	}
	e.bank.Configure(cfg)
	return nil
}

// SetPreset applies a named equalizer preset
func (e *Engine) SetPreset(name string) error {
	cfg, err := equalizer.Preset(name)
	if err != nil {
		return err
	}
	e.bank.Configure(cfg)
	return nil
}

// PlayIndex plays the playlist track at i
func (e *Engine) PlayIndex(i int) error {
	if e.playlist == nil {
		return ErrNoTrack
	}
	if err := e.playlist.Select(i); err != nil {
		return err
	}
	return e.playFrom(i, e.bump())
}

// Next skips to the following track; past the end it stops
func (e *Engine) Next() error {
	if e.playlist == nil {
		return ErrNoTrack
	}
	epoch := e.bump()
	idx, ok := e.playlist.Next()
	if !ok {
		return e.Stop()
	}
	return e.playFrom(idx, epoch)
}

// Previous goes back through the history or one track
func (e *Engine) Previous() error {
	if e.playlist == nil {
		return ErrNoTrack
	}
	epoch := e.bump()
	idx, ok := e.playlist.Previous()
	if !ok {
		return e.Stop()
	}
	return e.playFrom(idx, epoch)
}

// playFrom loads and plays idx, skipping tracks that fail to open
func (e *Engine) playFrom(idx int, epoch uint64) error {
	for {
		track, ok := e.playlist.Track(idx)
		if !ok {
			return fmt.Errorf("%w: %d", playlist.ErrIndexOutOfRange, idx)
		}

		err := e.load(e.ctx, track.Path, idx, epoch)
		if err == nil {
			if d := e.Duration(); d > 0 {
				e.playlist.SetLength(idx, d)
			}
			return e.resume(epoch)
		}
		if errors.Is(err, errSuperseded) {
			return nil
		}
		if !IsTrackError(err) {
			return err
		}

		e.mu.Lock()
		if e.epoch == epoch {
			e.emitLocked(Event{Type: EventTrackEnded, State: e.state, Index: idx, Path: track.Path, Reason: ErrorEnd, Err: err})
		}
		e.mu.Unlock()

		next, ok := e.trackFailed(err, epoch)
		if !ok {
			return err
		}
		idx = next
	}
}

// resume starts a freshly loaded track unless a newer command intervened
func (e *Engine) resume(epoch uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch || e.state != Paused {
		return nil
	}
	e.sink.Resume()
	e.setStateLocked(Playing)
	return nil
}

// trackFailed counts a failed track and picks the next one. Once every
// track in a row has failed the engine goes Idle.
func (e *Engine) trackFailed(err error, epoch uint64) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		return -1, false
	}

	e.failures++
	if e.failures >= e.playlist.Len() {
		log.Printf("All %d tracks failed, giving up: %v", e.failures, err)
		e.err = err
		e.releaseLocked()
		e.setStateLocked(Idle)
		e.emitLocked(Event{Type: EventError, State: Idle, Index: -1, Err: err})
		return -1, false
	}

	next, ok := e.playlist.TrackEnded(ErrorEnd)
	if !ok {
		e.releaseLocked()
		e.setStateLocked(Stopped)
		return -1, false
	}
	return next, true
}

// trackDrained advances the playlist after a natural end. A Stop or a new
// load since the end (epoch moved) leaves the cursor alone.
func (e *Engine) trackDrained(epoch uint64) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.epoch != epoch {
		return -1, false
	}

	next, ok := e.playlist.TrackEnded(NaturalEnd)
	if !ok {
		log.Printf("End of playlist")
		e.sink.Stop()
		e.setStateLocked(Stopped)
		return -1, false
	}
	return next, true
}

// watch resolves sink completions into transport transitions
func (e *Engine) watch() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case c := <-e.sink.Completions():
			e.complete(c)
		}
	}
}

func (e *Engine) complete(c Completion) {
	e.mu.Lock()
	if c.Gen != e.sink.Generation() || (e.state != Playing && e.state != Paused) {
		e.mu.Unlock()
		log.Printf("Ignoring stale completion (gen %d)", c.Gen)
		return
	}

	epoch := e.epoch
	idx := e.index
	path := e.info.Path

	if c.Fatal {
		log.Printf("Fatal output error, releasing device: %v", c.Err)
		e.err = c.Err
		e.releaseLocked()
		e.setStateLocked(Idle)
		e.emitLocked(Event{Type: EventError, State: Idle, Index: -1, Path: path, Err: c.Err})
		e.mu.Unlock()
		return
	}

	e.setStateLocked(TrackEnded)
	e.emitLocked(Event{
		Type:   EventTrackEnded,
		State:  TrackEnded,
		Index:  idx,
		Path:   path,
		Reason: c.Reason,
		Blocks: c.Blocks,
		Err:    c.Err,
	})
	if c.Reason == NaturalEnd {
		e.failures = 0
	} else {
		e.err = c.Err
	}
	e.mu.Unlock()

	if e.playlist == nil || idx < 0 {
		return
	}

	var (
		next int
		ok   bool
	)
	if c.Reason == ErrorEnd {
		next, ok = e.trackFailed(c.Err, epoch)
		if !ok {
			return
		}
	} else {
		next, ok = e.trackDrained(epoch)
		if !ok {
			return
		}
	}

	if err := e.playFrom(next, epoch); err != nil {
		log.Printf("Advance to track %d failed: %v", next, err)
	}
}

// Close stops playback and releases the device
func (e *Engine) Close() error {
	e.bump()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.releaseLocked()
	e.state = Idle
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	close(e.events)
	e.mu.Unlock()
	return nil
}

// State returns the transport state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PlaybackState returns a snapshot of the transport
func (e *Engine) PlaybackState() PlaybackState {
	e.mu.Lock()
	state := e.state
	volume := e.volume
	muted := e.muted
	e.mu.Unlock()

	return PlaybackState{
		State:    state,
		Position: e.sink.Position(),
		Paused:   state == Paused,
		Stopped:  state == Stopped || state == Idle,
		Rate:     e.sink.Rate(),
		Volume:   volume,
		Muted:    muted,
	}
}

// Position returns the audible source frame
func (e *Engine) Position() int64 {
	return e.sink.Position()
}

// PositionDuration returns the audible position as time
func (e *Engine) PositionDuration() time.Duration {
	return audio.FramesToDuration(e.sink.Position(), e.Info().Format.SampleRate)
}

// Duration returns the loaded track length, 0 when unknown
func (e *Engine) Duration() time.Duration {
	return e.Info().Duration()
}

// Info describes the loaded stream
func (e *Engine) Info() audio.StreamInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// Index returns the playlist index of the loaded track, -1 when none
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Volume returns the unmuted volume
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Engine) Rate() float64 {
	return e.sink.Rate()
}

// BandConfig returns the current equalizer configuration
func (e *Engine) BandConfig() equalizer.Config {
	return e.bank.Config()
}

// SpectrumSnapshot returns the latest smoothed spectrum
func (e *Engine) SpectrumSnapshot() spectrum.Frame {
	return e.feed.Snapshot()
}

// SpectrumStats returns analyzer counters
func (e *Engine) SpectrumStats() spectrum.FeedStats {
	return e.feed.Stats()
}

// SinkStats returns audio goroutine counters
func (e *Engine) SinkStats() SinkStats {
	return e.sink.Stats()
}

// Err returns the last error that moved the engine to Idle or skipped a track
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// bump invalidates in-flight automatic transitions. A user command also
// restarts the count of consecutive failed tracks.
func (e *Engine) bump() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.failures = 0
	return e.epoch
}

// failLocked handles a sink start failure (must hold e.mu)
func (e *Engine) failLocked(err error) error {
	log.Printf("Playback start failed: %v", err)
	e.err = err
	e.releaseLocked()
	e.setStateLocked(Idle)
	e.emitLocked(Event{Type: EventError, State: Idle, Index: -1, Err: err})
	return err
}

// releaseLocked stops the sink and closes the stream (must hold e.mu)
func (e *Engine) releaseLocked() {
	e.sink.Stop()
	if e.stream != nil {
		if err := e.stream.Close(); err != nil {
			log.Printf("Warning: stream close error: %v", err)
		}
		e.stream = nil
	}
	e.info = audio.StreamInfo{}
	e.feed.Reset()
}

// setStateLocked records a transition and announces it (must hold e.mu)
func (e *Engine) setStateLocked(s State) {
	if e.state == s {
		return
	}
	log.Printf("State: %s -> %s", e.state, s)
	e.state = s
	e.emitLocked(Event{Type: EventStateChanged, State: s, Index: e.index})
}

// emitLocked queues an event without blocking (must hold e.mu)
func (e *Engine) emitLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		log.Printf("Event queue full, dropping %s event", ev.Type)
	}
}
