// ABOUTME: Deck package documentation
// ABOUTME: Describes the engine, its audio goroutine and the playback clock
// Package deck is the playback engine.
//
// An Engine owns one Sink, which runs a goroutine per stream that decodes,
// equalizes, resamples and writes blocks to an output.Output. Commands are
// safe from any goroutine. The audible position comes from a Clock that
// maps device frames back to source frames, so it stays exact across rate
// changes and never moves backwards between seeks.
//
// Track ends, loads, state changes and errors arrive on Events. With a
// playlist attached the engine advances on its own according to the
// playlist's repeat and shuffle settings.
//
// Example:
//
//	pl := playlist.New()
//	pl.Add(playlist.TrackFromPath("a.flac"))
//	e, err := deck.New(deck.Config{Playlist: pl})
//	err = e.Play()
//	err = e.SetRate(1.5)
//	pos := e.PositionDuration()
package deck
