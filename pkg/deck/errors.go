// ABOUTME: Error values reported by the playback engine
// ABOUTME: Re-exports decoder and device sentinels so callers need one import
package deck

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
)

var (
	// ErrInvalidRate is returned by SetRate outside [MinRate, MaxRate]
	ErrInvalidRate = errors.New("playback rate out of range")
	// ErrFatal marks an unrecoverable output failure
	ErrFatal = errors.New("fatal playback error")
	// ErrNoTrack is returned when a command needs a loaded stream
	ErrNoTrack = errors.New("no track loaded")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("engine closed")

	ErrUnsupportedFormat = decode.ErrUnsupportedFormat
	ErrCorruptFile       = decode.ErrCorruptFile
	ErrSeekOutOfRange    = decode.ErrSeekOutOfRange
	ErrDeviceUnavailable = output.ErrDeviceUnavailable
)

// TrackError is a failure local to one file
type TrackError struct {
	Path string
	Err  error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %s: %v", e.Path, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// IsTrackError reports whether err only affects the current file, so
// playback can move on to the next one
func IsTrackError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptFile) ||
		errors.Is(err, fs.ErrNotExist)
}
