// ABOUTME: Tests for settings load, save and validation
// ABOUTME: Uses temp dirs for on-disk round trips
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/equalizer"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-deck/pkg/deck"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if s.Volume != 0.7 {
		t.Errorf("expected volume 0.7, got %f", s.Volume)
	}
	if s.Rate != 1.0 {
		t.Errorf("expected rate 1.0, got %f", s.Rate)
	}
	if s.Output != "oto" {
		t.Errorf("expected output oto, got %s", s.Output)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFile)

	s := Default()
	s.Volume = 0.25
	s.Rate = 1.5
	s.RepeatMode = int(playlist.RepeatAll)
	s.ShuffleMode = true
	s.EqualizerBands = []float64{3, 0, 0, 0, 0, 0, 0, 0, 0, -3}
	s.Output = "null"

	if err := s.Save(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if loaded.Volume != 0.25 || loaded.Rate != 1.5 {
		t.Errorf("expected volume 0.25 rate 1.5, got %f %f", loaded.Volume, loaded.Rate)
	}
	if loaded.Repeat() != playlist.RepeatAll {
		t.Errorf("expected repeat all, got %v", loaded.Repeat())
	}
	if !loaded.ShuffleMode {
		t.Error("expected shuffle on")
	}
	if len(loaded.EqualizerBands) != 10 || loaded.EqualizerBands[9] != -3 {
		t.Errorf("expected 10 gains ending in -3, got %v", loaded.EqualizerBands)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(`{"volume": 0.4}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if s.Volume != 0.4 {
		t.Errorf("expected volume 0.4, got %f", s.Volume)
	}
	if s.BlockSize != Default().BlockSize {
		t.Errorf("expected default block size, got %d", s.BlockSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"volume too high", `{"volume": 1.5}`, "Volume"},
		{"rate too low", `{"rate": 0.1}`, "Rate"},
		{"repeat mode", `{"repeat_mode": 3}`, "RepeatMode"},
		{"band gain", `{"equalizer_bands": [0, 20]}`, "EqualizerBands"},
		{"band layout gain", `{"equalizer": [{"center_hz": 1000, "gain_db": 15, "q": 1}]}`, "GainDB"},
		{"band layout centre", `{"equalizer": [{"center_hz": 0, "gain_db": 0, "q": 1}]}`, "CenterHz"},
		{"output backend", `{"output": "portaudio"}`, "Output"},
		{"preset", `{"equalizer_preset": "nope"}`, "preset"},
		{"block size", `{"block_size": 10}`, "BlockSize"},
		{"malformed", `{"volume": `, "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFile)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			s, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
			if s.Volume != Default().Volume {
				t.Errorf("expected defaults on error, got volume %f", s.Volume)
			}
		})
	}
}

func TestBands(t *testing.T) {
	s := Default()
	if gains := s.Bands().Gains(); gains[0] != 0 {
		t.Errorf("expected flat bands, got %v", gains)
	}

	s.EqualizerPreset = "bass_boost"
	if gains := s.Bands().Gains(); gains[0] != 8 {
		t.Errorf("expected preset gain 8, got %v", gains[0])
	}

	s.EqualizerBands = []float64{-4}
	if gains := s.Bands().Gains(); gains[0] != -4 {
		t.Errorf("expected explicit gain to win, got %v", gains[0])
	}
}

func TestCaptureFromEngine(t *testing.T) {
	pl := playlist.New()
	s := Default()
	s.RepeatMode = int(playlist.RepeatOne)

	e, err := deck.New(s.EngineConfig(output.NewNull(false), pl))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer e.Close()

	if pl.Repeat() != playlist.RepeatOne {
		t.Errorf("expected repeat one applied to playlist, got %v", pl.Repeat())
	}

	e.SetVolume(0.3)
	if err := e.SetRate(0.75); err != nil {
		t.Fatal(err)
	}
	if err := e.SetBandGain(2, 6); err != nil {
		t.Fatal(err)
	}
	pl.SetShuffle(true)

	s.Capture(e)

	if s.Volume != 0.3 || s.Rate != 0.75 {
		t.Errorf("expected volume 0.3 rate 0.75, got %f %f", s.Volume, s.Rate)
	}
	if s.EqualizerBands[2] != 6 {
		t.Errorf("expected band 2 at 6dB, got %v", s.EqualizerBands)
	}
	if !s.ShuffleMode || s.RepeatMode != int(playlist.RepeatOne) {
		t.Errorf("expected shuffle on and repeat one, got %v %d", s.ShuffleMode, s.RepeatMode)
	}
}

func TestSevenBandLayoutSurvivesSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	s := Default()
	s.Output = "null"
	bands, err := equalizer.SevenBandConfig().WithGain(6, 12)
	if err != nil {
		t.Fatal(err)
	}

	e, err := deck.New(deck.Config{Output: output.NewNull(false), Bands: bands})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer e.Close()

	s.Capture(e)
	if err := s.Save(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	got := loaded.Bands()
	if len(got.Bands) != 7 {
		t.Fatalf("expected 7 bands, got %d", len(got.Bands))
	}
	for i, b := range got.Bands {
		want := bands.Bands[i]
		if b.CenterHz != want.CenterHz || b.GainDB != want.GainDB || b.Q != want.Q {
			t.Errorf("band %d: expected %+v, got %+v", i, want, b)
		}
	}
	if got.Bands[6].CenterHz != 15000 || got.Bands[6].GainDB != 12 {
		t.Errorf("expected +12dB at 15kHz, got %+v", got.Bands[6])
	}
}

func TestBandLayoutWinsOverGains(t *testing.T) {
	s := Default()
	s.EqualizerBands = []float64{-4}
	s.Equalizer = []equalizer.Band{{CenterHz: 100, GainDB: 2, Q: 1}}

	got := s.Bands()
	if len(got.Bands) != 1 || got.Bands[0].GainDB != 2 {
		t.Errorf("expected stored layout, got %+v", got.Bands)
	}

	got.Bands[0].GainDB = 9
	if s.Equalizer[0].GainDB != 2 {
		t.Error("expected Bands to return a copy")
	}
}
