// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface with oto, malgo, null and wav backends
// Package output provides audio playback backends.
//
// Samples are interleaved float64 in [-1, 1]. Backends convert to the
// device format and report how many frames are still queued so callers
// can derive the audible position.
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(48000, 2)
//	err = out.Write(samples)
package output
