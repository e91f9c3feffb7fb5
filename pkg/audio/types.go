// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, PCM blocks and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// DefaultBlockFrames is the fixed decode block length
	DefaultBlockFrames = 4096
)

// Format describes the source frame format of a stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
	Float      bool // IEEE float samples instead of signed integers
}

// StreamInfo is the immutable description of an opened audio stream
type StreamInfo struct {
	Path        string
	Format      Format
	TotalFrames int64 // 0 when the length is unknown
}

// Duration returns the stream length
func (i StreamInfo) Duration() time.Duration {
	return FramesToDuration(i.TotalFrames, i.Format.SampleRate)
}

// Block is a run of interleaved float samples normalised to [-1, 1]
type Block struct {
	Index      int64 // increases by one per block read from a stream
	Offset     int64 // frame position of the first sample within the stream
	SampleRate int
	Channels   int
	Samples    []float64
}

// Frames returns the number of frames in the block
func (b Block) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Clone returns a deep copy of the block
func (b Block) Clone() Block {
	c := b
	c.Samples = append([]float64(nil), b.Samples...)
	return c
}

// FramesToDuration converts a frame count at the given rate to a duration
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

// DurationToFrames converts a duration to a frame count at the given rate
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return int64(math.Round(d.Seconds() * float64(sampleRate)))
}

// SampleFromInt16 converts a 16-bit sample to float
func SampleFromInt16(sample int16) float64 {
	return float64(sample) / 32768.0
}

// SampleFromInt converts a signed integer sample of the given bit depth to float
func SampleFromInt(sample int64, bitDepth int) float64 {
	if bitDepth <= 0 {
		return 0
	}
	return float64(sample) / float64(int64(1)<<(bitDepth-1))
}

// SampleToInt16 converts a float sample to 16-bit with clipping
func SampleToInt16(sample float64) int16 {
	v := math.Round(sample * 32767.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// SampleTo24Bit converts a float sample to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample float64) [3]byte {
	v := int32(math.Round(Clamp(sample) * Max24Bit))
	return [3]byte{
		byte(v),
		byte(v >> 8),
		byte(v >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes (little-endian) to float
func SampleFrom24Bit(b [3]byte) float64 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return float64(val) / float64(-Min24Bit)
}

// Clamp limits a sample to [-1, 1]
func Clamp(sample float64) float64 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}
