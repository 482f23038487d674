package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/lukeburns/intone/internal/wavio"
	"github.com/lukeburns/intone/room"
)

func main() {
	cfg := room.DefaultConfig()

	output := flag.String("output", "room.wav", "Output WAV path")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds")
	flag.IntVar(&cfg.Modes, "modes", cfg.Modes, "Number of damped room modes")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.Float64Var(&cfg.Brightness, "brightness", cfg.Brightness, "Spectral brightness control (>0)")
	flag.Float64Var(&cfg.Density, "density", cfg.Density, "Mode clustering exponent (>1 favors low frequencies)")
	flag.Float64Var(&cfg.StereoWidth, "stereo-width", cfg.StereoWidth, "Stereo decorrelation width")
	flag.Float64Var(&cfg.DirectLevel, "direct", cfg.DirectLevel, "Direct impulse level")
	flag.IntVar(&cfg.EarlyCount, "early", cfg.EarlyCount, "Number of early reflections")
	flag.Float64Var(&cfg.LateLevel, "late", cfg.LateLevel, "Diffuse late-tail level")
	flag.Float64Var(&cfg.LowDecayS, "low-decay", cfg.LowDecayS, "Low-frequency decay time (s)")
	flag.Float64Var(&cfg.HighDecayS, "high-decay", cfg.HighDecayS, "High-frequency decay time (s)")
	flag.Float64Var(&cfg.FadeOutS, "fade", cfg.FadeOutS, "Fade-out length at the tail end (s)")
	flag.Float64Var(&cfg.NormalizePeak, "normalize", cfg.NormalizePeak, "Peak normalization target")
	flag.Parse()

	left, right, err := room.GenerateStereo(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "intone-irgen error: %v\n", err)
		os.Exit(1)
	}

	if err := wavio.WriteStereoLR(*output, left, right, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	peak, rms := stats(left, right)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, cfg.DurationS, len(left))
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", peak, rms)
}

func stats(left []float32, right []float32) (peak float64, rms float64) {
	if len(left) == 0 || len(right) == 0 {
		return 0, 0
	}
	var sum float64
	n := len(left) * 2
	for i := 0; i < len(left); i++ {
		lv := float64(left[i])
		rv := float64(right[i])
		a := math.Abs(lv)
		if b := math.Abs(rv); b > a {
			a = b
		}
		if a > peak {
			peak = a
		}
		sum += lv*lv + rv*rv
	}
	return peak, math.Sqrt(sum / float64(n))
}
