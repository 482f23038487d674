package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/mayfly"
	"github.com/lukeburns/intone/analysis"
	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/internal/wavio"
	"github.com/lukeburns/intone/room"
	"github.com/lukeburns/intone/synth"
	"github.com/lukeburns/intone/tuning"
)

type topCandidate struct {
	Eval       int                `json:"eval"`
	Score      float64            `json:"score"`
	Similarity float64            `json:"similarity"`
	Knobs      map[string]float64 `json:"knobs"`
}

type optimizationConfig struct {
	reference     []float64
	baseSynth     synth.Config
	baseParams    *audio.Params
	defs          []knobDef
	initCandidate candidate
	groups        map[string]bool

	note        int
	velocity    int
	baseHold    float64
	baseRelease float64
	sampleRate  int

	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	checkpointEvery  int
	decayDBFS        float64
	decayHoldBlocks  int
	minDuration      float64
	maxDuration      float64
	renderBlockSize  int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	topK             int

	outputIR      string
	outputPreset  string
	reportPath    string
	referencePath string
	presetPath    string
}

type optimizationEval struct {
	metrics analysis.Metrics
	params  *audio.Params
	plan    renderPlan
	roomL   []float32
	roomR   []float32
}

type optimizationResult struct {
	best        candidate
	bestEval    optimizationEval
	top         []topCandidate
	evals       int
	elapsed     float64
	checkpoints int
}

type optimizationState struct {
	mu          sync.Mutex
	best        candidate
	bestEval    optimizationEval
	top         []topCandidate
	checkpoints int
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	start := time.Now()
	deadline := start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))
	variant := strings.ToLower(cfg.mayflyVariant)

	best := cloneCandidate(cfg.initCandidate)
	initialEval, err := evaluateCandidate(cfg, best)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	fmt.Printf("Start score=%.4f similarity=%.2f%%\n", initialEval.metrics.Score, initialEval.metrics.Similarity*100.0)

	state := &optimizationState{
		best:     best,
		bestEval: cloneOptimizationEval(initialEval),
		top:      updateTopCandidates(nil, cfg.topK, 1, initialEval.metrics, cfg.defs, best),
	}

	if _, err := os.Stat(cfg.outputPreset); err != nil && errors.Is(err, os.ErrNotExist) {
		if err := writeOutputs(cfg, best, initialEval, time.Since(start).Seconds(), 1, 0, state.top); err != nil {
			fmt.Fprintf(os.Stderr, "initial write failed: %v\n", err)
		}
	}

	var evals int64 = 1
	var rounds int64
	var improves int64
	var outputMu sync.Mutex
	var latestPersistedImprove int64

	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if time.Now().After(deadline) {
					return
				}
				if atomic.LoadInt64(&evals) >= int64(cfg.maxEvals) {
					return
				}

				round := int(atomic.AddInt64(&rounds, 1))
				remaining := cfg.maxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				budget := minInt(cfg.mayflyRoundEvals, remaining)
				iters := maxInt(1, budget/(2*cfg.mayflyPop))

				mayflyConfig, err := newMayflyConfig(variant, cfg.mayflyPop, len(cfg.defs), iters)
				if err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d setup failed: %v\n", round, err)
					return
				}
				mayflyConfig.Rand = rand.New(rand.NewSource(cfg.seed + int64(round)*7919))
				mayflyConfig.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return currentBestScore(state) + 1.0
					}
					evalNum, ok := reserveEval(&evals, cfg.maxEvals)
					if !ok {
						return currentBestScore(state) + 1.0
					}

					cand := fromNormalized(pos, cfg.defs)
					evalRes, err := evaluateCandidate(cfg, cand)
					if err != nil {
						return currentBestScore(state) + 0.8
					}

					improved := false
					var improveNum int64
					checkpointDue := false
					var bestSnapshot candidate
					var bestEvalSnapshot optimizationEval
					var topSnapshot []topCandidate
					bestScore := 0.0

					state.mu.Lock()
					state.top = updateTopCandidates(state.top, cfg.topK, int(evalNum), evalRes.metrics, cfg.defs, cand)
					if evalRes.metrics.Score < state.bestEval.metrics.Score {
						state.best = cloneCandidate(cand)
						state.bestEval = cloneOptimizationEval(evalRes)
						improved = true
						improveNum = atomic.AddInt64(&improves, 1)
						if cfg.checkpointEvery > 0 && improveNum%int64(cfg.checkpointEvery) == 0 {
							checkpointDue = true
						}
						bestSnapshot = cloneCandidate(state.best)
						bestEvalSnapshot = cloneOptimizationEval(state.bestEval)
						topSnapshot = cloneTopCandidates(state.top)
					}
					bestScore = state.bestEval.metrics.Score
					state.mu.Unlock()

					if improved {
						fmt.Printf("Improved #%d eval=%d score=%.4f sim=%.2f%%\n", improveNum, evalNum, bestEvalSnapshot.metrics.Score, bestEvalSnapshot.metrics.Similarity*100.0)
						outputMu.Lock()
						if improveNum > latestPersistedImprove {
							latestPersistedImprove = improveNum
							if checkpointDue {
								state.mu.Lock()
								checkpointNum := state.checkpoints + 1
								state.mu.Unlock()
								if err := writeOutputs(cfg, bestSnapshot, bestEvalSnapshot, time.Since(start).Seconds(), int(atomic.LoadInt64(&evals)), checkpointNum, topSnapshot); err != nil {
									fmt.Fprintf(os.Stderr, "checkpoint write failed: %v\n", err)
								} else {
									state.mu.Lock()
									if checkpointNum > state.checkpoints {
										state.checkpoints = checkpointNum
									}
									state.mu.Unlock()
								}
							}
						}
						outputMu.Unlock()
					}

					if cfg.reportEvery > 0 && evalNum%int64(cfg.reportEvery) == 0 {
						fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n", evalNum, cfg.maxEvals, time.Since(start).Seconds(), bestScore)
					}
					return evalRes.metrics.Score
				}

				if _, err := runMayfly(mayflyConfig); err != nil {
					fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
				}
			}
		}()
	}
	wg.Wait()

	state.mu.Lock()
	result := &optimizationResult{
		best:        cloneCandidate(state.best),
		bestEval:    cloneOptimizationEval(state.bestEval),
		top:         cloneTopCandidates(state.top),
		evals:       int(atomic.LoadInt64(&evals)),
		elapsed:     time.Since(start).Seconds(),
		checkpoints: state.checkpoints,
	}
	state.mu.Unlock()
	return result, nil
}

func evaluateCandidate(cfg *optimizationConfig, cand candidate) (optimizationEval, error) {
	params, roomCfg, plan := applyCandidate(
		cfg.baseParams,
		cfg.sampleRate,
		cfg.note,
		cfg.velocity,
		cfg.baseHold,
		cfg.baseRelease,
		cfg.defs,
		cand,
	)

	var roomL, roomR []float32
	if cfg.groups["room"] {
		l, r, err := room.GenerateStereo(roomCfg)
		if err != nil {
			return optimizationEval{}, fmt.Errorf("room IR: %w", err)
		}
		roomL, roomR = l, r
	}

	mono, err := renderCandidate(
		params,
		roomL, roomR,
		plan,
		cfg.sampleRate,
		cfg.decayDBFS,
		cfg.decayHoldBlocks,
		cfg.minDuration,
		cfg.maxDuration,
		cfg.renderBlockSize,
	)
	if err != nil {
		return optimizationEval{}, err
	}
	return optimizationEval{
		metrics: analysis.Compare(cfg.reference, mono, cfg.sampleRate),
		params:  params,
		plan:    plan,
		roomL:   roomL,
		roomR:   roomR,
	}, nil
}

func renderCandidate(
	params *audio.Params,
	roomL []float32,
	roomR []float32,
	plan renderPlan,
	sampleRate int,
	decayDBFS float64,
	decayHoldBlocks int,
	minDuration float64,
	maxDuration float64,
	blockSize int,
) ([]float64, error) {
	ae := audio.NewEngine(sampleRate, 1, params)
	if len(roomL) > 0 && len(roomR) > 0 {
		if err := ae.SetRoomIR(roomL, roomR); err != nil {
			return nil, err
		}
	}
	if plan.tuneCents != 0 {
		ae.SetPitchBend(plan.tuneCents)
	}

	if decayHoldBlocks < 1 {
		decayHoldBlocks = 1
	}
	if minDuration < 0 {
		minDuration = 0
	}
	if maxDuration < minDuration {
		maxDuration = minDuration
	}
	if blockSize < 16 {
		blockSize = 16
	}
	minFrames := int(float64(sampleRate) * minDuration)
	maxFrames := int(float64(sampleRate) * maxDuration)
	holdFrames := int(float64(sampleRate) * plan.holdSeconds)
	if maxFrames < 1 {
		return nil, errors.New("max duration too small")
	}

	ae.Start(0, tuning.EqualTemperament(plan.note), plan.velocity)

	threshold := math.Pow(10.0, decayDBFS/20.0)
	released := false
	belowCount := 0
	rendered := 0
	stereo := make([]float32, 0, maxFrames*2)

	for rendered < maxFrames {
		n := blockSize
		if rendered+n > maxFrames {
			n = maxFrames - rendered
		}
		if !released && rendered >= holdFrames {
			ae.Release(0, plan.releaseSeconds)
			released = true
		}
		block := ae.Process(n)
		stereo = append(stereo, block...)
		rendered += n

		if rendered >= minFrames {
			if wavio.RMS32(block) < threshold {
				belowCount++
				if belowCount >= decayHoldBlocks {
					break
				}
			} else {
				belowCount = 0
			}
		}
	}

	return wavio.StereoToMono(stereo), nil
}

func cloneCandidate(c candidate) candidate {
	vals := make([]float64, len(c.Vals))
	copy(vals, c.Vals)
	return candidate{Vals: vals}
}

func cloneAudioParams(src *audio.Params) *audio.Params {
	if src == nil {
		return audio.NewDefaultParams()
	}
	d := *src
	d.Partials = append([]float32(nil), src.Partials...)
	return &d
}

func cloneOptimizationEval(in optimizationEval) optimizationEval {
	out := optimizationEval{
		metrics: in.metrics,
		params:  cloneAudioParams(in.params),
		plan:    in.plan,
	}
	if len(in.roomL) > 0 {
		out.roomL = append([]float32(nil), in.roomL...)
	}
	if len(in.roomR) > 0 {
		out.roomR = append([]float32(nil), in.roomR...)
	}
	return out
}

func cloneTopCandidates(in []topCandidate) []topCandidate {
	out := make([]topCandidate, len(in))
	for i := range in {
		entry := topCandidate{
			Eval:       in[i].Eval,
			Score:      in[i].Score,
			Similarity: in[i].Similarity,
			Knobs:      make(map[string]float64, len(in[i].Knobs)),
		}
		for k, v := range in[i].Knobs {
			entry.Knobs[k] = v
		}
		out[i] = entry
	}
	return out
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = maxInt(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}

func currentBestScore(state *optimizationState) float64 {
	state.mu.Lock()
	score := state.bestEval.metrics.Score
	state.mu.Unlock()
	return score
}

func updateTopCandidates(top []topCandidate, topK int, eval int, metrics analysis.Metrics, defs []knobDef, cand candidate) []topCandidate {
	entry := topCandidate{
		Eval:       eval,
		Score:      metrics.Score,
		Similarity: metrics.Similarity,
		Knobs:      make(map[string]float64, len(defs)),
	}
	for i, d := range defs {
		entry.Knobs[d.Name] = cand.Vals[i]
	}
	top = append(top, entry)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Score == top[j].Score {
			return top[i].Eval < top[j].Eval
		}
		return top[i].Score < top[j].Score
	})
	if len(top) > topK {
		top = top[:topK]
	}
	return top
}
