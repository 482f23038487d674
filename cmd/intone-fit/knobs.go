package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/room"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

// renderPlan carries the per-candidate note event: when the note is
// released, how long the release tail runs, and a global tuning offset
// that absorbs a reference recording that sits off equal temperament.
type renderPlan struct {
	note           int
	velocity       int
	holdSeconds    float64
	releaseSeconds float64
	tuneCents      float64
}

const fitPartials = 8

// parseFitGroups parses a comma-separated string of group names.
// Valid groups: tone, vibrato, room.
func parseFitGroups(raw string) (map[string]bool, error) {
	valid := map[string]bool{"tone": true, "vibrato": true, "room": true}
	groups := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !valid[s] {
			return nil, fmt.Errorf("unknown fit group %q (valid: tone, vibrato, room)", s)
		}
		groups[s] = true
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no fit groups specified")
	}
	return groups, nil
}

func initCandidate(base *audio.Params, baseHold, baseRelease float64, groups map[string]bool) ([]knobDef, candidate) {
	roomCfg := room.DefaultConfig()

	defs := make([]knobDef, 0, 24)
	vals := make([]float64, 0, 24)
	addKnob := func(def knobDef, val float64) {
		defs = append(defs, def)
		vals = append(vals, val)
	}

	if groups["tone"] {
		addKnob(knobDef{Name: "output_gain", Min: 0.05, Max: 0.6}, float64(base.OutputGain))
		addKnob(knobDef{Name: "attack_seconds", Min: 0.001, Max: 0.05}, base.AttackSeconds)
		addKnob(knobDef{Name: "tune_cents", Min: -50, Max: 50}, 0)
		addKnob(knobDef{Name: "release_seconds", Min: 0.05, Max: 2.0}, baseRelease)
		addKnob(knobDef{Name: "render.hold_seconds", Min: 0.2, Max: 3.5}, baseHold)
		for i := 0; i < fitPartials; i++ {
			v := 0.0
			if i < len(base.Partials) {
				v = float64(base.Partials[i])
			}
			addKnob(knobDef{Name: "partial_" + strconv.Itoa(i+1), Min: 0, Max: 1}, v)
		}
	}

	if groups["vibrato"] {
		addKnob(knobDef{Name: "vibrato_depth_cents", Min: 0, Max: 50}, base.VibratoDepthCents)
		addKnob(knobDef{Name: "vibrato_rate_hz", Min: 0.5, Max: 8.0}, base.VibratoRateHz)
	}

	if groups["room"] {
		addKnob(knobDef{Name: "room_wet", Min: 0, Max: 1}, float64(base.RoomWetMix))
		addKnob(knobDef{Name: "room_brightness", Min: 0.3, Max: 2.0}, roomCfg.Brightness)
		addKnob(knobDef{Name: "room_density", Min: 0.5, Max: 4.0}, roomCfg.Density)
		addKnob(knobDef{Name: "room_early", Min: 0, Max: 64, IsInt: true}, float64(roomCfg.EarlyCount))
		addKnob(knobDef{Name: "room_late", Min: 0, Max: 0.15}, roomCfg.LateLevel)
		addKnob(knobDef{Name: "room_low_decay", Min: 0.3, Max: 3.0}, roomCfg.LowDecayS)
		addKnob(knobDef{Name: "room_high_decay", Min: 0.05, Max: 0.8}, roomCfg.HighDecayS)
		addKnob(knobDef{Name: "room_duration", Min: 0.3, Max: 2.0}, roomCfg.DurationS)
	}

	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
		if defs[i].IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return defs, candidate{Vals: vals}
}

func applyCandidate(
	base *audio.Params,
	sampleRate int,
	note int,
	velocity int,
	baseHold float64,
	baseRelease float64,
	defs []knobDef,
	c candidate,
) (*audio.Params, room.Config, renderPlan) {
	params := cloneAudioParams(base)
	roomCfg := room.DefaultConfig()
	roomCfg.SampleRate = sampleRate
	plan := renderPlan{
		note:           note,
		velocity:       velocity,
		holdSeconds:    baseHold,
		releaseSeconds: baseRelease,
	}
	partials := append([]float32(nil), params.Partials...)

	for i, def := range defs {
		v := c.Vals[i]
		switch {
		case def.Name == "output_gain":
			params.OutputGain = float32(v)
		case def.Name == "attack_seconds":
			params.AttackSeconds = v
		case def.Name == "tune_cents":
			plan.tuneCents = v
		case def.Name == "release_seconds":
			plan.releaseSeconds = v
		case def.Name == "render.hold_seconds":
			plan.holdSeconds = v
		case strings.HasPrefix(def.Name, "partial_"):
			n, err := strconv.Atoi(strings.TrimPrefix(def.Name, "partial_"))
			if err == nil && n >= 1 {
				for len(partials) < n {
					partials = append(partials, 0)
				}
				partials[n-1] = float32(v)
			}
		case def.Name == "vibrato_depth_cents":
			params.VibratoDepthCents = v
		case def.Name == "vibrato_rate_hz":
			params.VibratoRateHz = v
		case def.Name == "room_wet":
			params.RoomWetMix = float32(v)
		case def.Name == "room_brightness":
			roomCfg.Brightness = v
		case def.Name == "room_density":
			roomCfg.Density = v
		case def.Name == "room_early":
			roomCfg.EarlyCount = int(math.Round(v))
		case def.Name == "room_late":
			roomCfg.LateLevel = v
		case def.Name == "room_low_decay":
			roomCfg.LowDecayS = v
		case def.Name == "room_high_decay":
			roomCfg.HighDecayS = v
		case def.Name == "room_duration":
			roomCfg.DurationS = v
		}
	}
	params.Partials = partials

	if roomCfg.EarlyCount < 0 {
		roomCfg.EarlyCount = 0
	}
	if plan.holdSeconds < 0.05 {
		plan.holdSeconds = 0.05
	}
	if plan.releaseSeconds < 0.01 {
		plan.releaseSeconds = 0.01
	}
	return params, roomCfg, plan
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
