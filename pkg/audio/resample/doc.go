// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between sample rates and playback speeds
// Package resample provides streaming sample rate conversion.
//
// Uses linear interpolation between consecutive frames. The ratio can
// change between calls, which the playback sink uses for variable
// playback rate.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Resample(block.Samples)
package resample
