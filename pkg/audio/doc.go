// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, StreamInfo, Block and sample conversion functions
// Package audio provides the core types shared by the playback engine.
//
// This package defines:
//   - Format: the source frame format (codec, sample rate, channels, bit depth)
//   - StreamInfo: the immutable description of an opened stream
//   - Block: a fixed-length run of interleaved float64 samples
//
// Samples travel through the engine as float64 normalised to [-1, 1].
// Conversion helpers move between that range and 16/24-bit integers.
//
// Example:
//
//	info := audio.StreamInfo{
//	    Path:        "song.flac",
//	    Format:      audio.Format{Codec: "flac", SampleRate: 44100, Channels: 2, BitDepth: 16},
//	    TotalFrames: 441000,
//	}
//	fmt.Println(info.Duration()) // 10s
package audio
