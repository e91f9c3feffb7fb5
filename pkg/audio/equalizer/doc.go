// ABOUTME: Audio equalizer package with a parallel band-pass filter bank
// ABOUTME: Applies per-band dB gains to float blocks in place
// Package equalizer provides a frequency-selective gain stage.
//
// Each band is a constant-peak band-pass section run in parallel with the
// dry signal, scaled by the band's linear gain minus one. With every band
// at 0 dB the output equals the input exactly. Configure may be called
// from any goroutine; Process picks the new config up at the next block.
//
// Example:
//
//	cfg, _ := equalizer.Preset("rock")
//	bank := equalizer.NewBank(cfg)
//	bank.Process(&block)
package equalizer
