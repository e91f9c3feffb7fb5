// ABOUTME: Playlist package documentation
// ABOUTME: Describes the track list and its advance policy
// Package playlist keeps the ordered track list for the deck.
//
// The playlist owns the repeat and shuffle policy. When a track ends the
// engine calls TrackEnded with the reason and plays whatever index comes
// back; a false result means playback should stop.
//
// Example:
//
//	pl := playlist.New()
//	pl.Add(playlist.TrackFromPath("a.flac"), playlist.TrackFromPath("b.mp3"))
//	pl.SetRepeat(playlist.RepeatAll)
//	next, ok := pl.TrackEnded(playlist.EndNatural)
package playlist
