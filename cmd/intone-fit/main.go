package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/internal/wavio"
	"github.com/lukeburns/intone/preset"
	"github.com/lukeburns/intone/synth"
)

func main() {
	referencePath := flag.String("reference", "", "Reference WAV path (required)")
	presetPath := flag.String("preset", "", "Base preset JSON path")
	outputPreset := flag.String("output-preset", "fitted.json", "Path to write the best fitted preset JSON")
	outputIR := flag.String("output-ir", "", "Path to write the best room IR WAV (required when the room group is active)")
	reportPath := flag.String("report", "", "Report JSON path (default: <output-preset>.report.json)")
	optimize := flag.String("optimize", "tone,vibrato", "Comma-separated knob groups to optimize: tone, vibrato, room")
	note := flag.Int("note", 60, "MIDI note to fit")
	velocity := flag.Int("velocity", 100, "MIDI velocity for evaluation renders")
	hold := flag.Float64("hold", 1.5, "Seconds before NoteOff in evaluation renders")
	sampleRate := flag.Int("sample-rate", 48000, "Render/analysis sample rate")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 4000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 25, "Print progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write outputs every N best-score improvements")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks before a render stops")
	minDuration := flag.Float64("min-duration", 1.0, "Minimum render duration in seconds")
	maxDuration := flag.Float64("max-duration", 12.0, "Maximum render duration in seconds")
	renderBlockSize := flag.Int("render-block-size", 128, "Render block size for candidate evaluation")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in the report")
	resume := flag.Bool("resume", true, "Resume from the previous report's best_knobs when available")
	workers := flag.String("workers", "1", "Parallel workers running independent Mayfly rounds (number or 'auto')")
	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	groups, err := parseFitGroups(*optimize)
	if err != nil {
		die("invalid -optimize: %v", err)
	}
	if *referencePath == "" {
		die("missing -reference")
	}
	if groups["room"] && *outputIR == "" {
		die("-output-ir is required when the room group is active")
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *note < 0 || *note > 127 {
		die("note must be 0..127")
	}
	if *velocity < 1 {
		*velocity = 1
	}
	if *velocity > 127 {
		*velocity = 127
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *hold < 0.05 {
		*hold = 0.05
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *checkpointEvery < 1 {
		*checkpointEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	if *renderBlockSize < 16 {
		*renderBlockSize = 16
	}
	parsedWorkers, err := parseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	baseSynth := synth.DefaultConfig()
	baseParams := audio.NewDefaultParams()
	if *presetPath != "" {
		baseSynth, baseParams, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
	}

	refRaw, refRate, err := wavio.ReadMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err := wavio.Resample(refRaw, refRate, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}

	defs, initCand := initCandidate(baseParams, *hold, baseSynth.ReleaseSeconds, groups)
	if *resume {
		resumePath := *reportPath
		if resumePath == "" {
			resumePath = *outputPreset + ".report.json"
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", resumePath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	cfg := &optimizationConfig{
		reference:        ref,
		baseSynth:        baseSynth,
		baseParams:       baseParams,
		defs:             defs,
		initCandidate:    initCand,
		groups:           groups,
		note:             *note,
		velocity:         *velocity,
		baseHold:         *hold,
		baseRelease:      baseSynth.ReleaseSeconds,
		sampleRate:       *sampleRate,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		checkpointEvery:  *checkpointEvery,
		decayDBFS:        *decayDBFS,
		decayHoldBlocks:  *decayHoldBlocks,
		minDuration:      *minDuration,
		maxDuration:      *maxDuration,
		renderBlockSize:  *renderBlockSize,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
		outputIR:         *outputIR,
		outputPreset:     *outputPreset,
		reportPath:       *reportPath,
		referencePath:    *referencePath,
		presetPath:       *presetPath,
	}

	result, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	if err := writeOutputs(cfg, result.best, result.bestEval, result.elapsed, result.evals, result.checkpoints, result.top); err != nil {
		die("failed to write outputs: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f best_similarity=%.2f%% variant=%s\n",
		result.evals, result.elapsed, result.bestEval.metrics.Score, result.bestEval.metrics.Similarity*100.0, strings.ToLower(*mayflyVariant))
}

func parseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}

	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := append([]float64(nil), fallback.Vals...)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = clamp(v, d.Min, d.Max)
			if d.IsInt {
				vals[i] = math.Round(vals[i])
			}
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
