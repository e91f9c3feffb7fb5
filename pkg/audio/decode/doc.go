// ABOUTME: Audio decoder package for multiple file formats
// ABOUTME: Provides the Stream interface over MP3, WAV, FLAC, Ogg, Opus and AAC
// Package decode turns audio files into fixed-size PCM blocks.
//
// Supports: MP3, WAV (integer PCM), FLAC, Ogg Vorbis, Ogg Opus, and
// AAC/M4A through an ffmpeg subprocess.
//
// Every block but the last holds exactly the configured number of
// frames (4096 by default). Samples are float64 in [-1, 1].
//
// Example:
//
//	stream, err := decode.Open("song.flac")
//	for {
//	    block, err := stream.ReadBlock()
//	    if err == io.EOF {
//	        break
//	    }
//	}
package decode
