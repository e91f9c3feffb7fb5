// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Carries the last frame across calls and supports changing the ratio mid-stream
package resample

// Resampler performs linear interpolation between consecutive frames.
// It is not safe for concurrent use.
type Resampler struct {
	channels int
	ratio    float64   // input frames consumed per output frame
	position float64   // read position relative to the carried frame
	last     []float64 // last input frame of the previous call
	primed   bool
}

// New creates a resampler converting inputRate to outputRate
func New(inputRate, outputRate, channels int) *Resampler {
	r := &Resampler{
		channels: channels,
		last:     make([]float64, channels),
	}
	r.SetRates(inputRate, outputRate)
	return r
}

// SetRates changes the conversion ratio; the read position is kept
func (r *Resampler) SetRates(inputRate, outputRate int) {
	if inputRate <= 0 || outputRate <= 0 {
		r.ratio = 1
		return
	}
	r.ratio = float64(inputRate) / float64(outputRate)
}

// SetRatio sets input frames consumed per output frame directly
func (r *Resampler) SetRatio(ratio float64) {
	if ratio <= 0 {
		ratio = 1
	}
	r.ratio = ratio
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Passthrough reports whether the resampler would copy input unchanged
func (r *Resampler) Passthrough() bool {
	return r.ratio == 1 && !r.primed
}

// Resample converts interleaved input and returns interleaved output.
// The final input frame is held back as the left neighbour for the
// next call, so output for one call may lag input by one frame.
func (r *Resampler) Resample(input []float64) []float64 {
	ch := r.channels
	inFrames := len(input) / ch
	if inFrames == 0 {
		return nil
	}

	// Virtual input is the carried frame followed by this call's frames
	offset := 0
	if r.primed {
		offset = 1
	}
	total := inFrames + offset

	frame := func(i int) []float64 {
		if i < offset {
			return r.last
		}
		j := (i - offset) * ch
		return input[j : j+ch]
	}

	out := make([]float64, 0, (int(float64(total)/r.ratio)+2)*ch)
	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}
		frac := r.position - float64(idx)
		a, b := frame(idx), frame(idx+1)
		for c := 0; c < ch; c++ {
			out = append(out, a[c]*(1-frac)+b[c]*frac)
		}
		r.position += r.ratio
	}

	// Rebase so the last frame becomes index 0 of the next call
	r.position -= float64(total - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.last, frame(total-1))
	r.primed = true

	return out
}

// Reset clears carried state, used after seeks
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.last {
		r.last[i] = 0
	}
}

// OutputFrames estimates how many frames inputFrames will produce
func (r *Resampler) OutputFrames(inputFrames int) int {
	return int(float64(inputFrames) / r.ratio)
}

// InputFrames estimates how many input frames produce outputFrames
func (r *Resampler) InputFrames(outputFrames int) int {
	return int(float64(outputFrames) * r.ratio)
}
