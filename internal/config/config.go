// ABOUTME: Persistent player settings stored as a JSON file
// ABOUTME: Loads with defaults, validates with struct tags and captures engine state on exit
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/spectrum"
	"github.com/Resonate-Protocol/resonate-deck/pkg/deck"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
	"github.com/go-playground/validator/v10"
)

// DefaultFile is the settings file name used when none is given
const DefaultFile = "deck-config.json"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings is the on-disk player configuration
type Settings struct {
	Volume          float64   `json:"volume" validate:"gte=0,lte=1"`
	Rate            float64   `json:"rate" validate:"gte=0.5,lte=2"`
	RepeatMode      int       `json:"repeat_mode" validate:"gte=0,lte=2"`
	ShuffleMode     bool      `json:"shuffle_mode"`
	EqualizerBands  []float64 `json:"equalizer_bands" validate:"omitempty,max=31,dive,gte=-12,lte=12"`
	EqualizerPreset string    `json:"equalizer_preset,omitempty"`
	BlockSize       int       `json:"block_size" validate:"gte=256,lte=65536"`
	Output          string    `json:"output" validate:"required"`
	SpectrumBins    int       `json:"spectrum_bins" validate:"gte=4,lte=256"`

	// Equalizer holds the full band layout. equalizer_bands stays for
	// files that only carry gains for the default 10 bands.
	Equalizer []equalizer.Band `json:"equalizer,omitempty" validate:"omitempty,max=31,dive"`
}

// Default returns the settings used when no file exists
func Default() Settings {
	return Settings{
		Volume:       deck.DefaultVolume,
		Rate:         1.0,
		RepeatMode:   int(playlist.RepeatOff),
		BlockSize:    audio.DefaultBlockFrames,
		Output:       "oto",
		SpectrumBins: spectrum.DefaultBins,
	}
}

// Load reads settings from path. A missing file yields the defaults; keys
// absent from the file keep their default value.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No config at %s, using defaults", path)
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("failed to parse config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Default(), err
	}

	return s, nil
}

// Save writes settings to path as indented JSON
func (s Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks every field against its bounds
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s %s", e.Field(), formatValidationMessage(e)))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	if !slices.Contains(output.Backends, s.Output) {
		return fmt.Errorf("invalid config: Output must be one of: %s", strings.Join(output.Backends, " "))
	}
	if s.EqualizerPreset != "" && !slices.Contains(equalizer.Presets(), s.EqualizerPreset) {
		return fmt.Errorf("invalid config: unknown equalizer preset %q", s.EqualizerPreset)
	}
	return nil
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must have at most %s entries", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// Repeat returns the stored repeat mode
func (s Settings) Repeat() playlist.RepeatMode {
	return playlist.RepeatMode(s.RepeatMode)
}

// Bands returns the equalizer configuration. A stored band layout wins,
// then explicit gains, then the preset; with none the bands are flat.
func (s Settings) Bands() equalizer.Config {
	if len(s.Equalizer) > 0 {
		return equalizer.Config{Bands: s.Equalizer}.Clone()
	}
	if len(s.EqualizerBands) > 0 {
		return equalizer.DefaultConfig().WithGains(s.EqualizerBands)
	}
	if s.EqualizerPreset != "" {
		if cfg, err := equalizer.Preset(s.EqualizerPreset); err == nil {
			return cfg
		}
	}
	return equalizer.DefaultConfig()
}

// EngineConfig builds the engine configuration for these settings
func (s Settings) EngineConfig(out output.Output, pl *playlist.Playlist) deck.Config {
	if pl != nil {
		pl.SetRepeat(s.Repeat())
		pl.SetShuffle(s.ShuffleMode)
	}
	return deck.Config{
		BlockFrames:  s.BlockSize,
		Volume:       s.Volume,
		Rate:         s.Rate,
		Bands:        s.Bands(),
		SpectrumBins: s.SpectrumBins,
		Output:       out,
		Playlist:     pl,
	}
}

// Capture copies the engine's current volume, rate, equalizer bands and
// playlist modes into the settings
func (s *Settings) Capture(e *deck.Engine) {
	s.Volume = e.Volume()
	s.Rate = e.Rate()
	bands := e.BandConfig()
	s.Equalizer = bands.Clone().Bands
	s.EqualizerBands = bands.Gains()
	if pl := e.Playlist(); pl != nil {
		s.RepeatMode = int(pl.Repeat())
		s.ShuffleMode = pl.Shuffle()
	}
}
