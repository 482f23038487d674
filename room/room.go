package room

import (
	"fmt"
	"math"
	"math/rand"
)

// Config controls synthetic room impulse response generation.
type Config struct {
	SampleRate int
	DurationS  float64
	Modes      int
	Seed       int64

	Brightness  float64
	Density     float64 // >1 clusters modes toward low frequencies, <1 toward high
	StereoWidth float64
	DirectLevel float64
	EarlyCount  int
	LateLevel   float64

	LowDecayS  float64
	HighDecayS float64
	FadeOutS   float64

	NormalizePeak float64
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		DurationS:     1.2,
		Modes:         96,
		Seed:          1,
		Brightness:    0.8,
		Density:       1.6,
		StereoWidth:   0.7,
		DirectLevel:   0.5,
		EarlyCount:    24,
		LateLevel:     0.05,
		LowDecayS:     1.4,
		HighDecayS:    0.25,
		FadeOutS:      0.01,
		NormalizePeak: 0.9,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.Modes < 1 {
		return fmt.Errorf("modes must be >= 1")
	}
	if c.Brightness <= 0 {
		return fmt.Errorf("brightness must be > 0")
	}
	if c.Density <= 0 {
		return fmt.Errorf("density must be > 0")
	}
	if c.StereoWidth < 0 {
		return fmt.Errorf("stereo width must be >= 0")
	}
	if c.DirectLevel < 0 {
		return fmt.Errorf("direct level must be >= 0")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if c.LateLevel < 0 {
		return fmt.Errorf("late level must be >= 0")
	}
	if c.LowDecayS <= 0 || c.HighDecayS <= 0 {
		return fmt.Errorf("decay seconds must be > 0")
	}
	if c.FadeOutS < 0 {
		return fmt.Errorf("fade out must be >= 0")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// GenerateStereo synthesizes a stereo room impulse response: a direct
// impulse, a bed of decaying low-mid standing-wave modes, an early
// reflection cluster and a diffuse noise tail. The same seed always
// produces the same response.
func GenerateStereo(cfg Config) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	left := make([]float64, n)
	right := make([]float64, n)

	rng := rand.New(rand.NewSource(cfg.Seed))

	left[0] += cfg.DirectLevel * (1.0 - 0.05*cfg.StereoWidth)
	right[0] += cfg.DirectLevel * (1.0 + 0.05*cfg.StereoWidth)

	// Discrete standing waves only matter below the frequency where the
	// modal overlap blurs into a diffuse field; cap the modal bed there.
	minF := 30.0
	maxF := 0.45 * float64(cfg.SampleRate)
	if maxF > 4000.0 {
		maxF = 4000.0
	}
	if maxF <= minF {
		maxF = 2.0 * minF
	}
	logSpan := math.Log(maxF / minF)

	b := cfg.Brightness
	if b > 2.0 {
		b = 2.0
	}
	rolloff := 1.8 - 0.8*b

	for m := 0; m < cfg.Modes; m++ {
		u := math.Pow((float64(m)+0.5)/float64(cfg.Modes), cfg.Density)
		f := minF * math.Exp(u*logSpan)

		amp := 0.8 / math.Pow(1.0+f/150.0, rolloff)
		amp *= 0.6 + 0.8*rng.Float64()

		// Linear blend in log frequency from the low decay time to the
		// high one; rooms absorb treble faster.
		blend := math.Log(f/minF) / logSpan
		tau := cfg.LowDecayS + (cfg.HighDecayS-cfg.LowDecayS)*blend
		r := math.Exp(-1.0 / (tau * float64(cfg.SampleRate)))

		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		skew := 0.003 * pan
		phi := rng.Float64() * 2.0 * math.Pi
		addResonance(left, amp*(1.0-0.4*pan), f*(1.0-skew), phi, r, cfg.SampleRate)
		addResonance(right, amp*(1.0+0.4*pan), f*(1.0+skew), phi+0.02*pan, r, cfg.SampleRate)
	}

	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.002 + 0.058*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		amp := (0.08 + 0.30*rng.Float64()) * math.Exp(-18.0*t)
		amp *= math.Pow(0.3+0.7*rng.Float64(), 1.0/cfg.Brightness)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}

	if cfg.LateLevel > 0 {
		lpCoeff := 0.008 + 0.02*b
		highGain := 0.25 * (cfg.Brightness - 0.4)
		if highGain < 0 {
			highGain = 0
		}
		lpL, lpR := 0.0, 0.0
		hpL, hpR := 0.0, 0.0
		for i := 0; i < n; i++ {
			t := float64(i) / float64(cfg.SampleRate)
			lowEnv := math.Exp(-t / (0.85 * cfg.LowDecayS))
			highEnv := math.Exp(-t / (0.85 * cfg.HighDecayS))

			// The diffuse field takes a few reflections to build up.
			onset := t / 0.015
			if onset > 1 {
				onset = 1
			}

			nL := rng.NormFloat64()
			nR := rng.NormFloat64()
			lpL += lpCoeff * (nL - lpL)
			lpR += lpCoeff * (nR - lpR)
			hpL = 0.2*nL - 0.2*hpL
			hpR = 0.2*nR - 0.2*hpR

			left[i] += cfg.LateLevel * onset * (lowEnv*lpL + highGain*highEnv*hpL)
			right[i] += cfg.LateLevel * onset * (lowEnv*lpR + highGain*highEnv*hpR)
		}
	}

	dcBlock(left, 0.995)
	dcBlock(right, 0.995)
	fadeTail(left, cfg.FadeOutS, cfg.SampleRate)
	fadeTail(right, cfg.FadeOutS, cfg.SampleRate)

	peak := 0.0
	for i := 0; i < n; i++ {
		if a := math.Abs(left[i]); a > peak {
			peak = a
		}
		if a := math.Abs(right[i]); a > peak {
			peak = a
		}
	}
	if peak < 1e-12 {
		peak = 1e-12
	}
	s := cfg.NormalizePeak / peak
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := 0; i < n; i++ {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

// addResonance mixes a damped cosine into dst through the two-pole
// recurrence y[n] = 2r·cos(w)·y[n-1] - r²·y[n-2].
func addResonance(dst []float64, amp, freq, phase, r float64, sampleRate int) {
	if len(dst) == 0 {
		return
	}
	w := 2.0 * math.Pi * freq / float64(sampleRate)
	a1 := 2.0 * r * math.Cos(w)
	a2 := -r * r
	y0 := math.Cos(phase)
	y1 := r * math.Cos(phase+w)

	dst[0] += amp * y0
	if len(dst) == 1 {
		return
	}
	dst[1] += amp * y1
	for i := 2; i < len(dst); i++ {
		y2 := a1*y1 + a2*y0
		y0, y1 = y1, y2
		dst[i] += amp * y2
	}
}

func dcBlock(x []float64, r float64) {
	prevIn := 0.0
	prevOut := 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func fadeTail(x []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(x) == 0 {
		return
	}
	fadeSamples := int(math.Round(fadeS * float64(sampleRate)))
	if fadeSamples > len(x) {
		fadeSamples = len(x)
	}
	start := len(x) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		x[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}
