// ABOUTME: Equalizer band configuration and presets
// ABOUTME: Defines Band/Config types, gain clamping and named gain presets
package equalizer

import (
	"fmt"
	"math"
	"sort"
)

const (
	// MinGainDB and MaxGainDB bound every band gain
	MinGainDB = -12.0
	MaxGainDB = 12.0

	// DefaultQ gives roughly one-octave bands
	DefaultQ = 1.41
)

// Band is one equalizer band
type Band struct {
	CenterHz float64 `json:"center_hz" validate:"gt=0"`
	GainDB   float64 `json:"gain_db" validate:"gte=-12,lte=12"`
	Q        float64 `json:"q" validate:"gte=0"`
}

// Config is an ordered set of bands
type Config struct {
	Bands []Band `json:"bands"`
}

// ISO octave centres used by the default 10-band layout
var tenBandCenters = []float64{31.25, 62.5, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// Slider centres of the classic 7-band layout
var sevenBandCenters = []float64{60, 150, 400, 1000, 2400, 6000, 15000}

// DefaultConfig returns a flat 10-band config
func DefaultConfig() Config {
	return flat(tenBandCenters)
}

// SevenBandConfig returns a flat 7-band config
func SevenBandConfig() Config {
	return flat(sevenBandCenters)
}

func flat(centers []float64) Config {
	bands := make([]Band, len(centers))
	for i, c := range centers {
		bands[i] = Band{CenterHz: c, Q: DefaultQ}
	}
	return Config{Bands: bands}
}

var presets = map[string][]float64{
	"flat":         {0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	"rock":         {5, 4, 3, 1, -1, -1, 1, 3, 4, 5},
	"pop":          {-2, -1, 0, 2, 4, 4, 2, 0, -1, -2},
	"jazz":         {0, 0, 0, 2, 4, 4, 2, 0, 0, 0},
	"classical":    {0, 0, 0, 0, 0, 0, -2, -2, -2, -3},
	"dance":        {6, 5, 2, 0, 0, -2, -2, -2, 0, 0},
	"bass_boost":   {8, 6, 4, 2, 0, 0, 0, 0, 0, 0},
	"treble_boost": {0, 0, 0, 0, 0, 0, 2, 4, 6, 8},
	"vocal":        {-2, -3, -3, 1, 4, 4, 3, 1, 0, -1},
}

// Presets returns the available preset names in sorted order
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the 10-band config for a named preset
func Preset(name string) (Config, error) {
	gains, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown equalizer preset: %s", name)
	}
	return DefaultConfig().WithGains(gains), nil
}

// ClampGain limits a gain to [MinGainDB, MaxGainDB]
func ClampGain(db float64) float64 {
	if math.IsNaN(db) {
		return 0
	}
	return math.Max(MinGainDB, math.Min(MaxGainDB, db))
}

// Gain converts a dB gain to a linear multiplier after clamping
func Gain(db float64) float64 {
	return math.Pow(10, ClampGain(db)/20)
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	return Config{Bands: append([]Band(nil), c.Bands...)}
}

// Gains returns the band gains in order
func (c Config) Gains() []float64 {
	gains := make([]float64, len(c.Bands))
	for i, b := range c.Bands {
		gains[i] = b.GainDB
	}
	return gains
}

// WithGains returns a copy with gains applied in order. Extra gains are
// ignored; bands without a gain keep theirs.
func (c Config) WithGains(gains []float64) Config {
	out := c.Clone()
	for i := range out.Bands {
		if i < len(gains) {
			out.Bands[i].GainDB = ClampGain(gains[i])
		}
	}
	return out
}

// WithGain returns a copy with band i set to db
func (c Config) WithGain(i int, db float64) (Config, error) {
	if i < 0 || i >= len(c.Bands) {
		return Config{}, fmt.Errorf("band %d out of range (0-%d)", i, len(c.Bands)-1)
	}
	out := c.Clone()
	out.Bands[i].GainDB = ClampGain(db)
	return out, nil
}

// normalized clamps gains and fills in a missing Q
func (c Config) normalized() Config {
	out := c.Clone()
	for i := range out.Bands {
		out.Bands[i].GainDB = ClampGain(out.Bands[i].GainDB)
		if out.Bands[i].Q <= 0 {
			out.Bands[i].Q = DefaultQ
		}
	}
	return out
}
