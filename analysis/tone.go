package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/lukeburns/intone/tuning"
)

// MeasureFrequency estimates the fundamental of a tone from the average
// spacing of its rising zero crossings, interpolated between samples. The
// first tenth of the buffer is skipped so attack transients do not skew
// the estimate. Returns 0 when no stable period is found.
func MeasureFrequency(samples []float64, sampleRate int) float64 {
	if sampleRate <= 0 || len(samples) < 16 {
		return 0
	}
	start := len(samples) / 10
	first, last := -1.0, -1.0
	crossings := 0
	for i := start + 1; i < len(samples); i++ {
		if samples[i-1] >= 0 || samples[i] < 0 {
			continue
		}
		at := float64(i - 1)
		if d := samples[i] - samples[i-1]; d > 0 {
			at += -samples[i-1] / d
		}
		if first < 0 {
			first = at
		}
		last = at
		crossings++
	}
	if crossings < 2 || last <= first {
		return 0
	}
	return float64(crossings-1) * float64(sampleRate) / (last - first)
}

// FrequencyTrack measures the fundamental over consecutive windows of the
// given length, skipping windows that are effectively silent.
func FrequencyTrack(samples []float64, sampleRate, window int) []float64 {
	if sampleRate <= 0 || window <= 0 {
		return nil
	}
	var track []float64
	for start := 0; start+window <= len(samples); start += window {
		seg := samples[start : start+window]
		if rms(seg) < 1e-4 {
			continue
		}
		if f := MeasureFrequency(seg, sampleRate); f > 0 {
			track = append(track, f)
		}
	}
	return track
}

// Harmonics returns the spectral magnitudes at the first count multiples
// of f0, normalized so the fundamental is 1. The analysis window starts a
// quarter into the signal to sit past the attack.
func Harmonics(samples []float64, sampleRate int, f0 float64, count int) []float64 {
	if sampleRate <= 0 || f0 <= 0 || count <= 0 {
		return nil
	}
	fftSize := 4096
	for fftSize > len(samples) {
		fftSize /= 2
	}
	if fftSize < 256 {
		return nil
	}
	start := len(samples) / 4
	if start+fftSize > len(samples) {
		start = len(samples) - fftSize
	}

	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil
	}
	buf := make([]float64, fftSize)
	for i := range buf {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
		buf[i] = samples[start+i] * w
	}
	spec := make([]complex128, fftSize/2+1)
	plan.Forward(spec, buf)

	binHz := float64(sampleRate) / float64(fftSize)
	mags := make([]float64, 0, count)
	for h := 1; h <= count; h++ {
		center := int(math.Round(f0 * float64(h) / binHz))
		if center+2 >= len(spec) {
			break
		}
		// Windowing smears energy across a few bins; take the local peak.
		best := 0.0
		for k := center - 2; k <= center+2; k++ {
			if k < 1 {
				continue
			}
			if m := cmplx.Abs(spec[k]); m > best {
				best = m
			}
		}
		mags = append(mags, best)
	}
	if len(mags) == 0 || mags[0] <= 0 {
		return mags
	}
	fund := mags[0]
	for i := range mags {
		mags[i] /= fund
	}
	return mags
}

// Report describes the tuning of a recorded tone against the
// equal-tempered grid.
type Report struct {
	Frequency   float64   `json:"frequency_hz"`
	Note        int       `json:"nearest_note"`
	NoteName    string    `json:"note_name"`
	CentsOffset float64   `json:"cents_offset"`
	Harmonics   []float64 `json:"harmonics,omitempty"`
}

// TuningReport measures a tone and relates it to the nearest MIDI note.
func TuningReport(samples []float64, sampleRate int) Report {
	f := MeasureFrequency(samples, sampleRate)
	if f <= 0 {
		return Report{Note: -1}
	}
	note := tuning.NearestNote(f)
	return Report{
		Frequency:   f,
		Note:        note,
		NoteName:    tuning.NoteName(note),
		CentsOffset: tuning.Cents(f, tuning.EqualTemperament(note)),
		Harmonics:   Harmonics(samples, sampleRate, f, 8),
	}
}
