package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/lukeburns/intone/tuning"
)

// Weights of the components in the combined score.
const (
	WeightTime     = 0.25
	WeightEnvelope = 0.25
	WeightSpectral = 0.30
	WeightPitch    = 0.20
)

// Metrics contains distance and similarity measurements between two audio
// signals.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`

	ReferenceHz      float64 `json:"reference_hz"`
	CandidateHz      float64 `json:"candidate_hz"`
	PitchOffsetCents float64 `json:"pitch_offset_cents"`

	TimeNorm     float64 `json:"time_norm"`
	EnvelopeNorm float64 `json:"envelope_norm"`
	SpectralNorm float64 `json:"spectral_norm"`
	PitchNorm    float64 `json:"pitch_norm"`
	// Dominant names the component contributing most to the score.
	Dominant string `json:"dominant,omitempty"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Compare returns objective distance metrics and a combined score in
// [0,1], lower meaning closer. Both signals are trimmed of leading
// silence, RMS-normalized and lag-aligned before measuring.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1.0,
	}
	if sampleRate <= 0 || len(reference) == 0 || len(candidate) == 0 {
		return m
	}

	ref := trimLeadingSilence(reference, 1e-6)
	cand := trimLeadingSilence(candidate, 1e-6)
	if len(ref) == 0 || len(cand) == 0 {
		return m
	}

	ref = normalizeRMS(ref, 0.1)
	cand = normalizeRMS(cand, 0.1)

	maxLag := sampleRate / 2
	if maxLag > len(ref)-1 {
		maxLag = len(ref) - 1
	}
	if maxLag > len(cand)-1 {
		maxLag = len(cand) - 1
	}
	if maxLag < 1 {
		maxLag = 1
	}
	lag := estimateLag(ref, cand, maxLag)
	m.LagSamples = lag

	refA, candA := alignByLag(ref, cand, lag)
	n := len(refA)
	if len(candA) < n {
		n = len(candA)
	}
	if n < 256 {
		return m
	}
	if maxFrames := sampleRate * 12; n > maxFrames {
		n = maxFrames
	}
	refA = refA[:n]
	candA = candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, 256, 128)
	candEnv := rmsEnvelope(candA, 256, 128)
	envN := len(refEnv)
	if len(candEnv) < envN {
		envN = len(candEnv)
	}
	if envN > 0 {
		var sum float64
		for i := 0; i < envN; i++ {
			d := linToDB(refEnv[i]) - linToDB(candEnv[i])
			sum += d * d
		}
		m.EnvelopeRMSEDB = math.Sqrt(sum / float64(envN))
	}

	m.SpectralRMSEDB = spectralRMSEDB(refA, candA)

	m.ReferenceHz = MeasureFrequency(refA, sampleRate)
	m.CandidateHz = MeasureFrequency(candA, sampleRate)
	if m.ReferenceHz > 0 && m.CandidateHz > 0 {
		m.PitchOffsetCents = tuning.Cents(m.CandidateHz, m.ReferenceHz)
	}

	m.TimeNorm = clamp01(m.TimeRMSE / 0.25)
	m.EnvelopeNorm = clamp01(m.EnvelopeRMSEDB / 30.0)
	m.SpectralNorm = clamp01(m.SpectralRMSEDB / 30.0)
	m.PitchNorm = clamp01(math.Abs(m.PitchOffsetCents) / 100.0)

	contributions := []struct {
		name  string
		value float64
	}{
		{"time", WeightTime * m.TimeNorm},
		{"envelope", WeightEnvelope * m.EnvelopeNorm},
		{"spectral", WeightSpectral * m.SpectralNorm},
		{"pitch", WeightPitch * m.PitchNorm},
	}
	total := 0.0
	best := -1.0
	for _, c := range contributions {
		total += c.value
		if c.value > best {
			best = c.value
			m.Dominant = c.name
		}
	}
	m.Score = clamp01(total)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))

	return m
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i := range x {
		if math.Abs(x[i]) > threshold {
			return x[i:]
		}
	}
	return nil
}

func normalizeRMS(x []float64, target float64) []float64 {
	r := rms(x)
	if r <= 1e-12 {
		return append([]float64(nil), x...)
	}
	g := target / r
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * g
	}
	return out
}

// estimateLagThreshold is the signal length above which the direct lag
// scan costs more than a full FFT cross-correlation.
const estimateLagThreshold = 4096

// estimateLag finds the shift maximizing the cross-correlation of the two
// signals. A positive lag means the reference leads.
func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	if len(ref) < estimateLagThreshold && len(cand) < estimateLagThreshold {
		return estimateLagExhaustive(ref, cand, maxLag)
	}
	lag, err := estimateLagFFT(ref, cand, maxLag)
	if err != nil {
		return estimateLagExhaustive(ref, cand, maxLag)
	}
	return lag
}

// estimateLagFFT computes the full cross-correlation through the
// convolution theorem; reversing the candidate turns correlation into
// convolution.
func estimateLagFFT(ref []float64, cand []float64, maxLag int) (int, error) {
	a := make([]float32, len(ref))
	for i, v := range ref {
		a[i] = float32(v)
	}
	b := make([]float32, len(cand))
	for i, v := range cand {
		b[len(cand)-1-i] = float32(v)
	}
	corr := make([]float32, len(a)+len(b)-1)
	if err := algofft.ConvolveReal(corr, a, b); err != nil {
		return 0, err
	}

	// corr[m] is the correlation at lag m-(len(cand)-1).
	center := len(cand) - 1
	bestLag := 0
	best := float32(math.Inf(-1))
	for lag := -maxLag; lag <= maxLag; lag++ {
		idx := center + lag
		if idx < 0 || idx >= len(corr) {
			continue
		}
		if corr[idx] > best {
			best = corr[idx]
			bestLag = lag
		}
	}
	return bestLag, nil
}

func estimateLagExhaustive(ref []float64, cand []float64, maxLag int) int {
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		if s := dotAtLag(ref, cand, lag); s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int) float64 {
	var ai, bi int
	if lag >= 0 {
		ai = lag
	} else {
		bi = -lag
	}
	n := len(a) - ai
	if len(b)-bi < n {
		n = len(b) - bi
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	if -lag >= len(cand) {
		return nil, nil
	}
	return ref, cand[-lag:]
}

func rmse(a []float64, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms(x[start : start+frame])
	}
	return out
}

func spectralRMSEDB(a []float64, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 512 {
		return 0
	}
	fftSize := 4096
	for fftSize > n {
		fftSize /= 2
	}

	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return 0
	}
	bufA := make([]float64, fftSize)
	bufB := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
		bufA[i] = a[i] * w
		bufB[i] = b[i] * w
	}
	specA := make([]complex128, fftSize/2+1)
	specB := make([]complex128, fftSize/2+1)
	plan.Forward(specA, bufA)
	plan.Forward(specB, bufB)

	bins := fftSize / 2
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(cmplx.Abs(specA[k])) - linToDB(cmplx.Abs(specB[k]))
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
