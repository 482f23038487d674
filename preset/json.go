package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/synth"
)

// File is the JSON schema for intone presets. All fields are optional;
// absent fields keep their defaults.
type File struct {
	ReferenceMode       string   `json:"reference_mode"`
	RetuneMode          string   `json:"retune_mode"`
	GlideSeconds        *float64 `json:"glide_seconds"`
	ReleaseSeconds      *float64 `json:"release_seconds"`
	PitchBendRangeCents *float64 `json:"pitch_bend_range_cents"`
	MaxVoices           *int     `json:"max_voices"`

	OutputGain        *float32  `json:"output_gain"`
	Partials          []float32 `json:"partials"`
	AttackSeconds     *float64  `json:"attack_seconds"`
	VibratoDepthCents *float64  `json:"vibrato_depth_cents"`
	VibratoRateHz     *float64  `json:"vibrato_rate_hz"`
	RoomWetMix        *float32  `json:"room_wet_mix"`
	RoomIRWavPath     string    `json:"room_ir_wav_path"`
}

// LoadJSON loads a preset file and applies it on top of the default
// engine configuration and render parameters. A relative room IR path is
// resolved against the preset file's directory.
func LoadJSON(path string) (synth.Config, *audio.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return synth.Config{}, nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return synth.Config{}, nil, fmt.Errorf("parse preset %s: %w", path, err)
	}

	cfg := synth.DefaultConfig()
	params := audio.NewDefaultParams()
	if err := Apply(&cfg, params, &f); err != nil {
		return synth.Config{}, nil, fmt.Errorf("preset %s: %w", path, err)
	}

	if params.RoomIRWavPath != "" && !filepath.IsAbs(params.RoomIRWavPath) {
		base := filepath.Dir(path)
		params.RoomIRWavPath = filepath.Clean(filepath.Join(base, params.RoomIRWavPath))
	}
	return cfg, params, nil
}

// Apply applies a parsed preset onto existing configuration and render
// parameters. Unlike the live event path, which clamps, preset values are
// rejected when out of range.
func Apply(cfg *synth.Config, params *audio.Params, f *File) error {
	if cfg == nil || params == nil {
		return fmt.Errorf("nil destination")
	}
	if f == nil {
		return nil
	}

	if f.ReferenceMode != "" {
		mode, err := synth.ParseReferenceMode(f.ReferenceMode)
		if err != nil {
			return err
		}
		cfg.ReferenceMode = mode
	}
	if f.RetuneMode != "" {
		mode, err := synth.ParseRetuneMode(f.RetuneMode)
		if err != nil {
			return err
		}
		cfg.RetuneMode = mode
	}
	if f.GlideSeconds != nil {
		if *f.GlideSeconds < 0 {
			return fmt.Errorf("glide_seconds must be >= 0")
		}
		cfg.GlideSeconds = *f.GlideSeconds
	}
	if f.ReleaseSeconds != nil {
		if *f.ReleaseSeconds < 0 {
			return fmt.Errorf("release_seconds must be >= 0")
		}
		cfg.ReleaseSeconds = *f.ReleaseSeconds
	}
	if f.PitchBendRangeCents != nil {
		if *f.PitchBendRangeCents <= 0 {
			return fmt.Errorf("pitch_bend_range_cents must be > 0")
		}
		cfg.PitchBendRangeCents = *f.PitchBendRangeCents
	}
	if f.MaxVoices != nil {
		if *f.MaxVoices < 1 {
			return fmt.Errorf("max_voices must be >= 1")
		}
		cfg.MaxVoices = *f.MaxVoices
	}

	if f.OutputGain != nil {
		if *f.OutputGain <= 0 {
			return fmt.Errorf("output_gain must be > 0")
		}
		params.OutputGain = *f.OutputGain
	}
	if len(f.Partials) > 0 {
		sum := float32(0)
		for i, a := range f.Partials {
			if a < 0 {
				return fmt.Errorf("partials[%d] must be >= 0", i)
			}
			sum += a
		}
		if sum <= 0 {
			return fmt.Errorf("partials must not be all zero")
		}
		params.Partials = append([]float32(nil), f.Partials...)
	}
	if f.AttackSeconds != nil {
		if *f.AttackSeconds < 0 {
			return fmt.Errorf("attack_seconds must be >= 0")
		}
		params.AttackSeconds = *f.AttackSeconds
	}
	if f.VibratoDepthCents != nil {
		if *f.VibratoDepthCents < 0 {
			return fmt.Errorf("vibrato_depth_cents must be >= 0")
		}
		params.VibratoDepthCents = *f.VibratoDepthCents
	}
	if f.VibratoRateHz != nil {
		if *f.VibratoRateHz < 0 {
			return fmt.Errorf("vibrato_rate_hz must be >= 0")
		}
		params.VibratoRateHz = *f.VibratoRateHz
	}
	if f.RoomWetMix != nil {
		if *f.RoomWetMix < 0 || *f.RoomWetMix > 1 {
			return fmt.Errorf("room_wet_mix must be in [0,1]")
		}
		params.RoomWetMix = *f.RoomWetMix
	}
	if f.RoomIRWavPath != "" {
		params.RoomIRWavPath = strings.TrimSpace(f.RoomIRWavPath)
	}
	return nil
}
