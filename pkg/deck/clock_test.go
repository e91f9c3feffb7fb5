// ABOUTME: Tests for the playback clock and channel remixing
// ABOUTME: Checks frame mapping across rate changes, epochs and the monotonic floor
package deck

import (
	"testing"
)

func TestClockStartsAtBase(t *testing.T) {
	c := NewClock()
	if got := c.Position(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}

	c.Rebase(5000)
	if got := c.Position(0); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}

func TestClockMapsPlayedFrames(t *testing.T) {
	tests := []struct {
		buffered int
		want     int64
	}{
		{2000, 0},
		{1500, 500},
		{1000, 1000},
		{250, 1750},
		{0, 2000},
	}

	for _, tt := range tests {
		c := NewClock()
		c.Advance(0, 1000, 1000)
		c.Advance(1000, 1000, 1000)
		if got := c.Position(tt.buffered); got != tt.want {
			t.Errorf("buffered %d: expected %d, got %d", tt.buffered, tt.want, got)
		}
	}
}

func TestClockHandlesRateChange(t *testing.T) {
	c := NewClock()
	// 1000 source frames at normal speed, then 1000 at double speed
	c.Advance(0, 1000, 1000)
	c.Advance(1000, 1000, 500)

	// 250 device frames into the fast block is 500 source frames
	if got := c.Position(250); got != 1500 {
		t.Errorf("expected 1500, got %d", got)
	}
	if c.Written() != 1500 {
		t.Errorf("expected 1500 device frames written, got %d", c.Written())
	}
}

func TestClockNeverGoesBackwardsWithinEpoch(t *testing.T) {
	c := NewClock()
	c.Advance(0, 1000, 1000)

	first := c.Position(200)
	if first != 800 {
		t.Fatalf("expected 800, got %d", first)
	}

	// A device reporting more queued audio must not pull the position back
	if got := c.Position(600); got != first {
		t.Errorf("expected floor %d, got %d", first, got)
	}

	c.Rebase(100)
	if got := c.Position(0); got != 100 {
		t.Errorf("expected new epoch at 100, got %d", got)
	}
}

func TestClockSegmentsBounded(t *testing.T) {
	c := NewClock()
	for i := int64(0); i < 500; i++ {
		c.Advance(i*100, 100, 100)
	}

	tl := c.current.Load()
	if len(tl.segments) != maxSegments {
		t.Errorf("expected %d segments, got %d", maxSegments, len(tl.segments))
	}
	if got := c.Position(0); got != 50000 {
		t.Errorf("expected 50000, got %d", got)
	}
}

func TestRemix(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		from int
		to   int
		want []float64
	}{
		{"same", []float64{0.1, 0.2}, 2, 2, []float64{0.1, 0.2}},
		{"mono to stereo", []float64{0.1, 0.3}, 1, 2, []float64{0.1, 0.1, 0.3, 0.3}},
		{"stereo to mono", []float64{0.2, 0.4, -1, 1}, 2, 1, []float64{0.3, 0}},
		{"stereo to quad", []float64{0.1, 0.2}, 2, 4, []float64{0.1, 0.2, 0.1, 0.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := remix(tt.in, tt.from, tt.to)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d samples, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if diff := got[i] - tt.want[i]; diff > 1e-12 || diff < -1e-12 {
					t.Errorf("sample %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}
