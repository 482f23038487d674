package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukeburns/intone/analysis"
	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/internal/wavio"
	"github.com/lukeburns/intone/preset"
	"github.com/lukeburns/intone/synth"
)

type runReport struct {
	ReferencePath   string             `json:"reference_path"`
	PresetPath      string             `json:"preset_path,omitempty"`
	OutputPreset    string             `json:"output_preset"`
	OutputIR        string             `json:"output_ir,omitempty"`
	SampleRate      int                `json:"sample_rate"`
	Note            int                `json:"note"`
	Velocity        int                `json:"velocity"`
	HoldSeconds     float64            `json:"hold_seconds"`
	ElapsedSeconds  float64            `json:"elapsed_seconds"`
	Evaluations     int                `json:"evaluations"`
	MayflyVariant   string             `json:"mayfly_variant"`
	BestScore       float64            `json:"best_score"`
	BestSimilarity  float64            `json:"best_similarity"`
	BestMetrics     analysis.Metrics   `json:"best_metrics"`
	BestKnobs       map[string]float64 `json:"best_knobs"`
	CheckpointCount int                `json:"checkpoint_count"`
	TopCandidates   []topCandidate     `json:"top_candidates,omitempty"`
}

func writeOutputs(cfg *optimizationConfig, best candidate, eval optimizationEval, elapsed float64, evals, checkpoints int, top []topCandidate) error {
	params := cloneAudioParams(eval.params)

	// A base preset's IR survives a fit that does not touch the room group.
	irPath := params.RoomIRWavPath
	if cfg.outputIR != "" && len(eval.roomL) > 0 && len(eval.roomR) > 0 {
		if err := wavio.WriteStereoLR(cfg.outputIR, eval.roomL, eval.roomR, cfg.sampleRate); err != nil {
			return err
		}
		irPath = presetIRPath(cfg.outputPreset, cfg.outputIR)
	}

	f := fittedPresetFile(cfg.baseSynth, params, eval.plan, irPath)
	if err := writeJSON(cfg.outputPreset, f); err != nil {
		return err
	}

	knobs := make(map[string]float64, len(cfg.defs))
	for i, d := range cfg.defs {
		knobs[d.Name] = best.Vals[i]
	}

	rep := runReport{
		ReferencePath:   cfg.referencePath,
		PresetPath:      cfg.presetPath,
		OutputPreset:    cfg.outputPreset,
		OutputIR:        cfg.outputIR,
		SampleRate:      cfg.sampleRate,
		Note:            cfg.note,
		Velocity:        eval.plan.velocity,
		HoldSeconds:     eval.plan.holdSeconds,
		ElapsedSeconds:  elapsed,
		Evaluations:     evals,
		MayflyVariant:   strings.ToLower(cfg.mayflyVariant),
		BestScore:       eval.metrics.Score,
		BestSimilarity:  eval.metrics.Similarity,
		BestMetrics:     eval.metrics,
		BestKnobs:       knobs,
		CheckpointCount: checkpoints,
		TopCandidates:   top,
	}

	reportPath := cfg.reportPath
	if reportPath == "" {
		reportPath = cfg.outputPreset + ".report.json"
	}
	return writeJSON(reportPath, rep)
}

// fittedPresetFile folds the fitted render parameters into a loadable
// preset, carrying the tuning-side settings through from the base preset.
func fittedPresetFile(base synth.Config, params *audio.Params, plan renderPlan, irPath string) preset.File {
	partials := append([]float32(nil), params.Partials...)
	sum := float32(0)
	for _, a := range partials {
		sum += a
	}
	if sum <= 0 {
		// An all-zero partial set would be rejected on reload.
		partials = []float32{1}
	}

	return preset.File{
		ReferenceMode:       base.ReferenceMode.String(),
		RetuneMode:          base.RetuneMode.String(),
		GlideSeconds:        f64ptr(base.GlideSeconds),
		ReleaseSeconds:      f64ptr(plan.releaseSeconds),
		PitchBendRangeCents: f64ptr(base.PitchBendRangeCents),
		MaxVoices:           intPtr(base.MaxVoices),
		OutputGain:          f32ptr(params.OutputGain),
		Partials:            partials,
		AttackSeconds:       f64ptr(params.AttackSeconds),
		VibratoDepthCents:   f64ptr(params.VibratoDepthCents),
		VibratoRateHz:       f64ptr(params.VibratoRateHz),
		RoomWetMix:          f32ptr(params.RoomWetMix),
		RoomIRWavPath:       irPath,
	}
}

// presetIRPath rewrites irPath relative to the preset's directory so the
// pair stays portable when both files move together. Paths that cannot
// be relativized are kept as given.
func presetIRPath(presetPath, irPath string) string {
	irPath = strings.TrimSpace(irPath)
	if irPath == "" {
		return ""
	}
	if filepath.IsAbs(irPath) != filepath.IsAbs(presetPath) {
		return irPath
	}
	rel, err := filepath.Rel(filepath.Dir(presetPath), irPath)
	if err != nil {
		return irPath
	}
	return filepath.ToSlash(rel)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func f64ptr(v float64) *float64 { return &v }
func f32ptr(v float32) *float32 { return &v }
func intPtr(v int) *int         { return &v }
