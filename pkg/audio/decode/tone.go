// ABOUTME: Test tone generator stream
// ABOUTME: Generates a fixed-length sine wave as a seekable block stream
package decode

import (
	"fmt"
	"io"
	"math"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

// toneReader generates a sine wave of fixed length
type toneReader struct {
	frequency  float64
	amplitude  float64
	sampleRate int
	channels   int
	total      int64
	pos        int64
}

// NewTone creates a sine stream at freq Hz lasting totalFrames frames
func NewTone(freq float64, sampleRate, channels int, totalFrames int64, opts ...Option) Stream {
	o := buildOptions(opts)
	r := &toneReader{
		frequency:  freq,
		amplitude:  0.5,
		sampleRate: sampleRate,
		channels:   channels,
		total:      totalFrames,
	}
	info := audio.StreamInfo{
		Path: fmt.Sprintf("tone:%gHz", freq),
		Format: audio.Format{
			Codec:      "tone",
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   64,
			Float:      true,
		},
		TotalFrames: totalFrames,
	}
	return newBlockStream(info, r, o.blockFrames)
}

func (r *toneReader) readFrames(dst []float64) (int, error) {
	want := int64(len(dst) / r.channels)
	if remaining := r.total - r.pos; want > remaining {
		want = remaining
	}

	for i := int64(0); i < want; i++ {
		t := float64(r.pos+i) / float64(r.sampleRate)
		v := r.amplitude * math.Sin(2*math.Pi*r.frequency*t)
		for ch := 0; ch < r.channels; ch++ {
			dst[int(i)*r.channels+ch] = v
		}
	}
	r.pos += want

	if r.pos >= r.total {
		return int(want), io.EOF
	}
	return int(want), nil
}

func (r *toneReader) seekFrame(frame int64) error {
	r.pos = frame
	return nil
}

func (r *toneReader) close() error {
	return nil
}
