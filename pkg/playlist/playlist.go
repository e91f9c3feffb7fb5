// ABOUTME: Ordered track list with repeat, shuffle and play history
// ABOUTME: Decides which track follows when one ends or the user skips
package playlist

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/decode"
	"github.com/google/uuid"
)

// HistorySize bounds the selections remembered for Previous
const HistorySize = 20

// ErrIndexOutOfRange is returned for an index outside the list
var ErrIndexOutOfRange = errors.New("playlist index out of range")

// Track is one playlist entry
type Track struct {
	ID     string
	Path   string
	Title  string
	Artist string
	Album  string
	Length time.Duration
}

// TrackFromPath builds a track with metadata read from the file
func TrackFromPath(path string) Track {
	tags := decode.ReadTags(path)
	t := Track{
		ID:     uuid.New().String(),
		Path:   path,
		Title:  tags.Title,
		Artist: tags.Artist,
		Album:  tags.Album,
	}
	if t.Title == "" {
		t.Title = filepath.Base(path)
	}
	return t
}

// DisplayName returns "Artist - Title" or just the title
func (t Track) DisplayName() string {
	if t.Artist == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// RepeatMode controls what follows the last track
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// EndReason tells the playlist why the current track stopped
type EndReason int

const (
	EndNatural EndReason = iota
	EndError
)

func (r EndReason) String() string {
	if r == EndError {
		return "error"
	}
	return "natural"
}

// Option configures a Playlist
type Option func(*Playlist)

// WithRand sets the shuffle source, for reproducible order
func WithRand(r *rand.Rand) Option {
	return func(p *Playlist) {
		p.rng = r
	}
}

// Playlist is safe for concurrent use
type Playlist struct {
	mu      sync.Mutex
	tracks  []Track
	index   int
	repeat  RepeatMode
	shuffle bool
	history []int
	rng     *rand.Rand
}

// New creates an empty playlist
func New(opts ...Option) *Playlist {
	p := &Playlist{index: -1}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return p
}

// Add appends tracks
func (p *Playlist) Add(tracks ...Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tracks {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		p.tracks = append(p.tracks, t)
	}
}

// Remove deletes the track at i
func (p *Playlist) Remove(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.tracks) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)

	switch {
	case p.index == i:
		p.index = -1
	case p.index > i:
		p.index--
	}

	kept := p.history[:0]
	for _, h := range p.history {
		switch {
		case h == i:
			continue
		case h > i:
			h--
		}
		kept = append(kept, h)
	}
	p.history = kept
	return nil
}

// Move relocates the track at from to position to
func (p *Playlist) Move(from, to int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: %d -> %d", ErrIndexOutOfRange, from, to)
	}
	if from == to {
		return nil
	}

	t := p.tracks[from]
	p.tracks = append(p.tracks[:from], p.tracks[from+1:]...)
	p.tracks = append(p.tracks[:to], append([]Track{t}, p.tracks[to:]...)...)

	remap := func(i int) int {
		switch {
		case i == from:
			return to
		case from < to && i > from && i <= to:
			return i - 1
		case from > to && i >= to && i < from:
			return i + 1
		}
		return i
	}
	if p.index >= 0 {
		p.index = remap(p.index)
	}
	for k, h := range p.history {
		p.history[k] = remap(h)
	}
	return nil
}

// Clear removes every track
func (p *Playlist) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = nil
	p.index = -1
	p.history = nil
}

func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

// Tracks returns a copy of the list
func (p *Playlist) Tracks() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Track(nil), p.tracks...)
}

// Track returns the track at i
func (p *Playlist) Track(i int) (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.tracks) {
		return Track{}, false
	}
	return p.tracks[i], true
}

// SetLength records a decoded duration for the track at i
func (p *Playlist) SetLength(i int, length time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= 0 && i < len(p.tracks) {
		p.tracks[i].Length = length
	}
}

// Select makes i the current track and records it in the history
func (p *Playlist) Select(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.tracks) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	p.selectLocked(i)
	return nil
}

func (p *Playlist) selectLocked(i int) {
	p.index = i
	p.history = append(p.history, i)
	if len(p.history) > HistorySize {
		p.history = p.history[len(p.history)-HistorySize:]
	}
}

// Current returns the selected track
func (p *Playlist) Current() (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index < 0 || p.index >= len(p.tracks) {
		return Track{}, false
	}
	return p.tracks[p.index], true
}

// Index returns the selected position or -1
func (p *Playlist) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// History returns the remembered selections, oldest first
func (p *Playlist) History() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.history...)
}

func (p *Playlist) Repeat() RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeat
}

func (p *Playlist) SetRepeat(m RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m < RepeatOff || m > RepeatAll {
		m = RepeatOff
	}
	p.repeat = m
}

// CycleRepeat steps off -> one -> all -> off
func (p *Playlist) CycleRepeat() RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = (p.repeat + 1) % 3
	return p.repeat
}

func (p *Playlist) Shuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuffle
}

func (p *Playlist) SetShuffle(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = on
}

func (p *Playlist) ToggleShuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = !p.shuffle
	return p.shuffle
}

// Next selects the track after the current one. It reports false when
// the list is exhausted and repeat-all is off.
func (p *Playlist) Next() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.advanceLocked()
}

// Previous retraces the shuffle history, or steps back one track
func (p *Playlist) Previous() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tracks) == 0 {
		return -1, false
	}

	if p.shuffle && len(p.history) > 1 {
		prev := p.history[len(p.history)-2]
		p.history = p.history[:len(p.history)-2]
		p.selectLocked(prev)
		return prev, true
	}

	prev := p.index - 1
	if prev < 0 {
		if p.repeat != RepeatAll {
			return -1, false
		}
		prev = len(p.tracks) - 1
	}
	p.selectLocked(prev)
	return prev, true
}

// TrackEnded picks the track that follows the current one. A natural
// end under repeat-one replays it; an error never does.
func (p *Playlist) TrackEnded(reason EndReason) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tracks) == 0 {
		return -1, false
	}
	if reason == EndNatural && p.repeat == RepeatOne && p.index >= 0 && p.index < len(p.tracks) {
		p.selectLocked(p.index)
		return p.index, true
	}
	return p.advanceLocked()
}

// advanceLocked applies the shuffle and repeat-all rules (must hold p.mu)
func (p *Playlist) advanceLocked() (int, bool) {
	n := len(p.tracks)
	if n == 0 {
		return -1, false
	}

	if p.shuffle {
		if n == 1 {
			if p.repeat != RepeatAll && p.index == 0 {
				return -1, false
			}
			p.selectLocked(0)
			return 0, true
		}
		var next int
		if p.index < 0 || p.index >= n {
			next = p.rng.IntN(n)
		} else {
			// Draw from the n-1 other tracks
			next = p.rng.IntN(n - 1)
			if next >= p.index {
				next++
			}
		}
		p.selectLocked(next)
		return next, true
	}

	next := p.index + 1
	if next >= n {
		if p.repeat != RepeatAll {
			return -1, false
		}
		next = 0
	}
	p.selectLocked(next)
	return next, true
}
