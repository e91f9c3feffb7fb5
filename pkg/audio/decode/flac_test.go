// ABOUTME: Tests for the FLAC backend
// ABOUTME: Encodes fixtures with mewkiz/flac and checks blocks and seeks sample by sample
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	flacTestRate   = 8000
	flacTestFrames = 10000
	flacTestBlock  = 1024
)

// flacSample is the value stored at frame i of channel ch
func flacSample(i, ch int) int32 {
	return int32((i*7+ch*5000)%20000 - 10000)
}

// writeFLAC encodes a stereo 16-bit file with fixed-size FLAC frames of
// blockSize; the last frame holds the remainder
func writeFLAC(t *testing.T, frames, blockSize int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ramp.flac")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    flacTestRate,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      uint64(frames),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		t.Fatalf("failed to create encoder: %v", err)
	}
	enc.EnablePredictionAnalysis(false)

	for start := 0; start < frames; start += blockSize {
		n := min(blockSize, frames-start)
		subframes := make([]*frame.Subframe, 2)
		for ch := range subframes {
			samples := make([]int32, n)
			for i := range samples {
				samples[i] = flacSample(start+i, ch)
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        flacTestRate,
				Channels:          frame.ChannelsLR,
				BitsPerSample:     16,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(fr); err != nil {
			t.Fatalf("failed to write frame at %d: %v", start, err)
		}
	}

	// Close rewrites the stream info and closes the file
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	return path
}

// checkSamples compares a block against the fixture values from its offset
func checkSamples(t *testing.T, block audio.Block) {
	t.Helper()
	frames := len(block.Samples) / 2
	for i := 0; i < frames; i++ {
		for ch := 0; ch < 2; ch++ {
			want := audio.SampleFromInt(int64(flacSample(int(block.Offset)+i, ch)), 16)
			if got := block.Samples[i*2+ch]; got != want {
				t.Fatalf("frame %d ch %d: expected %v, got %v", block.Offset+int64(i), ch, want, got)
			}
		}
	}
}

func TestOpenFLACBlocks(t *testing.T) {
	path := writeFLAC(t, flacTestFrames, flacTestBlock)

	stream, err := Open(path, WithBlockFrames(1000))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer stream.Close()

	info := stream.Info()
	if info.Format.Codec != "flac" || info.Format.SampleRate != flacTestRate || info.Format.Channels != 2 || info.Format.BitDepth != 16 {
		t.Errorf("unexpected format %+v", info.Format)
	}
	if info.TotalFrames != flacTestFrames {
		t.Errorf("expected %d frames, got %d", flacTestFrames, info.TotalFrames)
	}

	var blocks, frames int64
	for {
		block, err := stream.ReadBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if block.Index != blocks {
			t.Errorf("expected index %d, got %d", blocks, block.Index)
		}
		if block.Offset != frames {
			t.Errorf("expected offset %d, got %d", frames, block.Offset)
		}
		if n := len(block.Samples) / 2; n != 1000 {
			t.Errorf("block %d: expected 1000 frames, got %d", blocks, n)
		}
		checkSamples(t, block)
		blocks++
		frames += int64(len(block.Samples) / 2)
	}

	if blocks != 10 {
		t.Errorf("expected 10 blocks, got %d", blocks)
	}
	if frames != flacTestFrames {
		t.Errorf("expected %d frames decoded, got %d", flacTestFrames, frames)
	}
}

func TestFLACSeek(t *testing.T) {
	path := writeFLAC(t, flacTestFrames, flacTestBlock)
	lastFrameStart := int64(flacTestFrames / flacTestBlock * flacTestBlock)

	targets := []int64{
		0, 1, flacTestBlock - 1, flacTestBlock, 5000,
		lastFrameStart - 1, lastFrameStart, lastFrameStart + 1,
		flacTestFrames - 100, flacTestFrames - 1,
	}

	for _, target := range targets {
		t.Run(fmt.Sprintf("%d", target), func(t *testing.T) {
			stream, err := Open(path, WithBlockFrames(512))
			if err != nil {
				t.Fatalf("failed to open: %v", err)
			}
			defer stream.Close()

			// Move away from the start so the seek has real work to do
			if _, err := stream.ReadBlock(); err != nil {
				t.Fatalf("read failed: %v", err)
			}

			if err := stream.SeekFrame(target); err != nil {
				t.Fatalf("seek failed: %v", err)
			}

			var decoded int64
			for {
				block, err := stream.ReadBlock()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("read after seek failed: %v", err)
				}
				if decoded == 0 && block.Offset != target {
					t.Errorf("expected first block at %d, got %d", target, block.Offset)
				}
				checkSamples(t, block)
				decoded += int64(len(block.Samples) / 2)
			}

			if want := flacTestFrames - target; decoded != want {
				t.Errorf("expected %d frames after seek, got %d", want, decoded)
			}
		})
	}
}
