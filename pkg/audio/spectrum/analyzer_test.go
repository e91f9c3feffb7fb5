// ABOUTME: Tests for the spectrum analyzer and feed
// ABOUTME: Checks tone localisation, silence, history, non-blocking offers and resets
package spectrum

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

func tone(freq, amp float64, rate, channels, frames int) audio.Block {
	s := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		for c := 0; c < channels; c++ {
			s[i*channels+c] = v
		}
	}
	return audio.Block{SampleRate: rate, Channels: channels, Samples: s}
}

// bucketOf returns the log-spaced bucket whose range contains freq
func bucketOf(freq float64, bins, rate int) int {
	top := math.Min(maxHz, float64(rate)/2)
	for b := 0; b < bins; b++ {
		f1 := minHz * math.Pow(top/minHz, float64(b+1)/float64(bins))
		if freq < f1 {
			return b
		}
	}
	return bins - 1
}

func TestToneLandsInItsBin(t *testing.T) {
	a := NewAnalyzer(DefaultBins, DefaultSize)
	frame := a.Analyze(tone(1000, 0.5, 48000, 2, 4096))

	if len(frame) != DefaultBins {
		t.Fatalf("expected %d bins, got %d", DefaultBins, len(frame))
	}

	peak := 0
	for b := range frame {
		if frame[b] > frame[peak] {
			peak = b
		}
	}

	want := bucketOf(1000, DefaultBins, 48000)
	if peak != want {
		t.Errorf("expected peak in bin %d, got %d (%v)", want, peak, frame)
	}

	// -6 dBFS maps to about 92.5
	if frame[peak] < 85 || frame[peak] > MaxLevel {
		t.Errorf("unexpected peak level %v", frame[peak])
	}
}

func TestSilenceIsZero(t *testing.T) {
	a := NewAnalyzer(16, 1024)
	frame := a.Analyze(audio.Block{SampleRate: 44100, Channels: 2, Samples: make([]float64, 2048)})
	for b, v := range frame {
		if v != 0 {
			t.Errorf("bin %d: expected 0, got %v", b, v)
		}
	}
}

func TestDownmixMatchesMono(t *testing.T) {
	mono := NewAnalyzer(24, 2048).Analyze(tone(440, 0.3, 44100, 1, 2048))
	stereo := NewAnalyzer(24, 2048).Analyze(tone(440, 0.3, 44100, 2, 2048))

	for b := range mono {
		if math.Abs(mono[b]-stereo[b]) > 1e-9 {
			t.Errorf("bin %d: mono %v stereo %v", b, mono[b], stereo[b])
		}
	}
}

func TestShortBlocksAccumulate(t *testing.T) {
	full := tone(2500, 0.4, 48000, 1, 2048)

	whole := NewAnalyzer(20, 2048).Analyze(full)

	pieces := NewAnalyzer(20, 2048)
	var last Frame
	for off := 0; off < 2048; off += 256 {
		part := audio.Block{SampleRate: 48000, Channels: 1, Samples: full.Samples[off : off+256]}
		last = pieces.Analyze(part)
	}

	for b := range whole {
		if math.Abs(whole[b]-last[b]) > 1e-9 {
			t.Errorf("bin %d: whole %v pieces %v", b, whole[b], last[b])
		}
	}
}

func TestLowSampleRateLayout(t *testing.T) {
	a := NewAnalyzer(32, 2048)
	frame := a.Analyze(tone(3000, 0.5, 8000, 1, 2048))
	if len(frame) != 32 {
		t.Fatalf("expected 32 bins, got %d", len(frame))
	}
	for b := 0; b < 32; b++ {
		if a.lo[b] < 1 || a.hi[b] > 1024 || a.lo[b] > a.hi[b] {
			t.Errorf("bin %d has invalid range %d-%d", b, a.lo[b], a.hi[b])
		}
	}
}

func TestLevelMapping(t *testing.T) {
	tests := []struct {
		mag  float64
		want float64
	}{
		{0, 0},
		{1, 100},
		{2, 100},
		{1e-5, 0},
		{0.01, 50}, // -40 dB
	}
	for _, tt := range tests {
		if got := level(tt.mag); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("level(%v) = %v, want %v", tt.mag, got, tt.want)
		}
	}
}

func TestOfferNeverBlocks(t *testing.T) {
	f := NewFeed(16, 4)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.Offer(tone(440, 0.5, 44100, 2, 512))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Offer blocked without a running analyzer")
	}

	stats := f.Stats()
	if stats.Offered != 100 || stats.Dropped != 99 {
		t.Errorf("expected 100 offered / 99 dropped, got %+v", stats)
	}
}

func TestFeedPublishesAndResets(t *testing.T) {
	f := NewFeed(DefaultBins, DefaultHistory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	f.Offer(tone(1000, 0.5, 48000, 2, 4096))

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := f.Snapshot()
		nonZero := false
		for _, v := range snap {
			if v > 0 {
				nonZero = true
			}
		}
		if nonZero {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never updated")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.Reset()
	for b, v := range f.Snapshot() {
		if v != 0 {
			t.Fatalf("bin %d not cleared by reset: %v", b, v)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	f := NewFeed(8, 2)
	snap := f.Snapshot()
	snap[0] = 42
	if f.Snapshot()[0] != 0 {
		t.Error("snapshot shares storage with the feed")
	}
}

func TestBlockTakenBeforeResetIsNotPublished(t *testing.T) {
	f := NewFeed(DefaultBins, DefaultHistory)

	// Run already holds a block from the previous track when Reset lands
	stale := offer{block: tone(1000, 0.5, 48000, 2, 4096), gen: f.gen.Load()}
	f.Reset()
	f.process(stale)

	for b, v := range f.Snapshot() {
		if v != 0 {
			t.Fatalf("bin %d published from a block before reset: %v", b, v)
		}
	}
	if got := f.Stats().Analyzed; got != 0 {
		t.Errorf("expected nothing analyzed, got %d", got)
	}

	f.process(offer{block: tone(1000, 0.5, 48000, 2, 4096), gen: f.gen.Load()})
	nonZero := false
	for _, v := range f.Snapshot() {
		if v > 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("expected a block offered after reset to publish")
	}
	if got := f.Stats().Analyzed; got != 1 {
		t.Errorf("expected 1 analyzed, got %d", got)
	}
}
