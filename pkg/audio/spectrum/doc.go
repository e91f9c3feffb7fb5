// ABOUTME: Spectrum analysis package for level meters and visualizers
// ABOUTME: Turns audio blocks into log-spaced bins scaled 0 to 100
// Package spectrum provides an FFT analyzer and an asynchronous feed.
//
// Analyzer windows the most recent frames, runs a real FFT and groups
// the magnitudes into log-spaced bins. Feed runs an Analyzer on its own
// goroutine so the audio path only ever makes a non-blocking Offer.
//
// Example:
//
//	feed := spectrum.NewFeed(spectrum.DefaultBins, spectrum.DefaultHistory)
//	go feed.Run(ctx)
//	feed.Offer(block)
//	bars := feed.Snapshot()
package spectrum
