package analysis

import (
	"math"
	"math/rand"
	"testing"
)

// synthDecayingTone renders a plucked-string-like test tone with a second
// harmonic and an exponential decay.
func synthDecayingTone(freq, seconds float64, sampleRate int) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		t0 := float64(i) / float64(sampleRate)
		env := math.Exp(-3.0 * t0)
		out[i] = 0.5 * env * (math.Sin(2*math.Pi*freq*t0) + 0.3*math.Sin(4*math.Pi*freq*t0))
	}
	return out
}

func TestCompareSelfScoresNearZero(t *testing.T) {
	const sampleRate = 48000
	tone := synthDecayingTone(261.63, 1.0, sampleRate)

	m := Compare(tone, tone, sampleRate)
	if m.LagSamples != 0 {
		t.Errorf("lag = %d, want 0", m.LagSamples)
	}
	if m.AlignedFrames < 256 {
		t.Fatalf("aligned frames = %d, want >= 256", m.AlignedFrames)
	}
	if m.Score >= 0.05 {
		t.Errorf("score = %.4f, want < 0.05", m.Score)
	}
	if m.Similarity <= 0.85 {
		t.Errorf("similarity = %.4f, want > 0.85", m.Similarity)
	}
}

func TestCompareDetunedReportsCents(t *testing.T) {
	const sampleRate = 48000
	const cents = 50.0
	ref := synthDecayingTone(261.6255653006, 1.0, sampleRate)
	cand := synthDecayingTone(261.6255653006*math.Pow(2, cents/1200.0), 1.0, sampleRate)

	m := Compare(ref, cand, sampleRate)
	if math.Abs(m.PitchOffsetCents-cents) > 2.0 {
		t.Errorf("pitch offset = %.3f cents, want %.0f within 2", m.PitchOffsetCents, cents)
	}
	if math.Abs(m.ReferenceHz-261.63) > 1.0 {
		t.Errorf("reference = %.3f Hz, want near 261.63", m.ReferenceHz)
	}
	if math.Abs(m.CandidateHz-269.29) > 1.0 {
		t.Errorf("candidate = %.3f Hz, want near 269.29", m.CandidateHz)
	}
	if m.Score <= 0.1 {
		t.Errorf("score = %.4f, want > 0.1", m.Score)
	}
	if m.Similarity >= 1.0 {
		t.Errorf("similarity = %.4f, want < 1", m.Similarity)
	}
}

func TestCompareDegenerateInputs(t *testing.T) {
	const sampleRate = 48000
	tone := synthDecayingTone(440, 0.1, sampleRate)

	cases := []struct {
		name string
		ref  []float64
		cand []float64
		rate int
	}{
		{"both empty", nil, nil, sampleRate},
		{"empty candidate", tone, nil, sampleRate},
		{"empty reference", nil, tone, sampleRate},
		{"zero rate", tone, tone, 0},
		{"silence", make([]float64, sampleRate), make([]float64, sampleRate), sampleRate},
		{"too short", tone[:100], tone[:100], sampleRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Compare(tc.ref, tc.cand, tc.rate)
			if m.Score != 1.0 {
				t.Errorf("score = %.4f, want 1", m.Score)
			}
			if m.Similarity != 0.0 {
				t.Errorf("similarity = %.4f, want 0", m.Similarity)
			}
		})
	}
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := make([]float64, 6000)
	for i := range base {
		base[i] = rng.Float64()*2 - 1
	}

	const shift = 237
	got := estimateLag(base, base[shift:], 500)
	if got != shift {
		t.Fatalf("estimateLag = %d, want %d", got, shift)
	}
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := make([]float64, 6000)
	for i := range base {
		base[i] = rng.Float64()*2 - 1
	}

	const shift = 191
	got := estimateLag(base[shift:], base, 500)
	if got != -shift {
		t.Fatalf("estimateLag = %d, want %d", got, -shift)
	}
}

func TestEstimateLagFFTMatchesExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	base := make([]float64, 5000)
	for i := range base {
		base[i] = rng.Float64()*2 - 1
	}
	const shift = 315
	cand := make([]float64, len(base)-shift)
	for i := range cand {
		cand[i] = base[shift+i] + 0.01*(rng.Float64()*2-1)
	}

	const maxLag = 400
	want := estimateLagExhaustive(base, cand, maxLag)
	got, err := estimateLagFFT(base, cand, maxLag)
	if err != nil {
		t.Fatalf("estimateLagFFT: %v", err)
	}
	if got != want {
		t.Errorf("fft lag = %d, exhaustive lag = %d", got, want)
	}
	if want != shift {
		t.Errorf("exhaustive lag = %d, want %d", want, shift)
	}
}

func TestAlignByLag(t *testing.T) {
	ref := []float64{0, 1, 2, 3, 4}
	cand := []float64{5, 6, 7}

	r, c := alignByLag(ref, cand, 2)
	if len(r) != 3 || r[0] != 2 {
		t.Errorf("positive lag: ref = %v, want [2 3 4]", r)
	}
	if len(c) != 3 || c[0] != 5 {
		t.Errorf("positive lag: cand = %v, want [5 6 7]", c)
	}

	r, c = alignByLag(ref, cand, -1)
	if len(r) != 5 {
		t.Errorf("negative lag: ref = %v, want full", r)
	}
	if len(c) != 2 || c[0] != 6 {
		t.Errorf("negative lag: cand = %v, want [6 7]", c)
	}

	r, c = alignByLag(ref, cand, 10)
	if r != nil || c != nil {
		t.Errorf("overlong lag: got %v, %v, want nil, nil", r, c)
	}
}
