// ABOUTME: Tests for the block stream and file opener
// ABOUTME: Uses generated WAV files and tone streams as fixtures
package decode

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes interleaved integer samples as a PCM WAV file
func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
}

// rampWAV writes a stereo 16-bit file where frame i holds sample i%30000 on both channels
func rampWAV(t *testing.T, frames int) string {
	t.Helper()
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[i*2] = i % 30000
		data[i*2+1] = -(i % 30000)
	}
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeWAV(t, path, 44100, 16, 2, data)
	return path
}

func TestOpenWAVBlocks(t *testing.T) {
	path := rampWAV(t, 10000)

	stream, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer stream.Close()

	info := stream.Info()
	if info.Format.SampleRate != 44100 || info.Format.Channels != 2 || info.Format.BitDepth != 16 {
		t.Errorf("unexpected format: %+v", info.Format)
	}
	if info.TotalFrames != 10000 {
		t.Errorf("expected 10000 frames, got %d", info.TotalFrames)
	}

	expected := []int{4096, 4096, 1808}
	var offset int64
	for i, want := range expected {
		block, err := stream.ReadBlock()
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		if block.Frames() != want {
			t.Errorf("block %d: expected %d frames, got %d", i, want, block.Frames())
		}
		if block.Index != int64(i) {
			t.Errorf("block %d: expected index %d, got %d", i, i, block.Index)
		}
		if block.Offset != offset {
			t.Errorf("block %d: expected offset %d, got %d", i, offset, block.Offset)
		}
		offset += int64(block.Frames())
	}

	if _, err := stream.ReadBlock(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWAVSampleValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.wav")
	writeWAV(t, path, 8000, 16, 1, []int{0, 16384, -16384, -32768})

	stream, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer stream.Close()

	block, err := stream.ReadBlock()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	expected := []float64{0, 0.5, -0.5, -1}
	if len(block.Samples) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(block.Samples))
	}
	for i, want := range expected {
		if block.Samples[i] != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, block.Samples[i])
		}
	}
}

func TestWAVSeek(t *testing.T) {
	path := rampWAV(t, 10000)

	stream, err := Open(path, WithBlockFrames(1000))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer stream.Close()

	// Read past the target first so the seek has to go backwards
	for i := 0; i < 7; i++ {
		if _, err := stream.ReadBlock(); err != nil {
			t.Fatalf("read failed: %v", err)
		}
	}

	if err := stream.SeekFrame(5123); err != nil {
		t.Fatalf("seek failed: %v", err)
	}

	block, err := stream.ReadBlock()
	if err != nil {
		t.Fatalf("read after seek failed: %v", err)
	}
	if block.Offset != 5123 {
		t.Errorf("expected offset 5123, got %d", block.Offset)
	}
	if block.Index != 7 {
		t.Errorf("expected index to keep increasing (7), got %d", block.Index)
	}
	want := float64(5123) / 32768.0
	if math.Abs(block.Samples[0]-want) > 1e-9 {
		t.Errorf("expected first sample %v, got %v", want, block.Samples[0])
	}
}

func TestSeekOutOfRange(t *testing.T) {
	path := rampWAV(t, 1000)

	stream, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer stream.Close()

	for _, frame := range []int64{-1, 1000, 5000} {
		if err := stream.SeekFrame(frame); !errors.Is(err, ErrSeekOutOfRange) {
			t.Errorf("seek %d: expected ErrSeekOutOfRange, got %v", frame, err)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	unsupported := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unsupported, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	corrupt := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(corrupt, []byte("this is not a riff file at all"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"unsupported extension", unsupported, ErrUnsupportedFormat},
		{"corrupt wav", corrupt, ErrCorruptFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := Open(filepath.Join(dir, "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestToneBlockCount(t *testing.T) {
	tests := []struct {
		total  int64
		block  int
		blocks int
	}{
		{10000, 4096, 3},
		{8192, 4096, 2},
		{1, 4096, 1},
		{300, 100, 3},
	}

	for _, tt := range tests {
		stream := NewTone(440, 44100, 2, tt.total, WithBlockFrames(tt.block))
		count := 0
		var frames int64
		for {
			block, err := stream.ReadBlock()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			count++
			frames += int64(block.Frames())
		}
		if count != tt.blocks {
			t.Errorf("total=%d block=%d: expected %d blocks, got %d", tt.total, tt.block, tt.blocks, count)
		}
		if frames != tt.total {
			t.Errorf("total=%d: read %d frames", tt.total, frames)
		}
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.mp3", true},
		{"b.FLAC", true},
		{"c.ogg", true},
		{"d.m4a", true},
		{"e.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
