// ABOUTME: Transport states, playback snapshots and engine events
// ABOUTME: Values the engine publishes for UIs and other observers
package deck

import (
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
)

// State is the transport state
type State int

const (
	Idle State = iota
	Loading
	Playing
	Paused
	Stopped
	TrackEnded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case TrackEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason is why a track stopped on its own
type EndReason = playlist.EndReason

const (
	NaturalEnd = playlist.EndNatural
	ErrorEnd   = playlist.EndError
)

// PlaybackState is a point-in-time view of the transport
type PlaybackState struct {
	State    State
	Position int64 // source frames
	Paused   bool
	Stopped  bool
	Rate     float64
	Volume   float64
	Muted    bool
}

// EventType identifies an engine event
type EventType int

const (
	EventStateChanged EventType = iota
	EventTrackLoaded
	EventTrackEnded
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state"
	case EventTrackLoaded:
		return "loaded"
	case EventTrackEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is pushed on the engine's event channel
type Event struct {
	Type   EventType
	State  State
	Index  int // playlist index, -1 when none
	Path   string
	Reason EndReason
	Blocks int64 // blocks decoded and drained, for EventTrackEnded
	Err    error
}
