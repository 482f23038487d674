package audio

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/lukeburns/intone/internal/wavio"
)

func measureFundamentalFreq(samples []float32, sampleRate float32) float32 {
	startIdx := len(samples) / 10
	crossings := 0
	for i := startIdx + 1; i < len(samples); i++ {
		if (samples[i-1] < 0 && samples[i] >= 0) || (samples[i-1] >= 0 && samples[i] < 0) {
			crossings++
		}
	}
	if crossings == 0 {
		return 0
	}
	duration := float32(len(samples)-startIdx) / sampleRate
	return float32(crossings) / (2.0 * duration)
}

func stereoRMS(interleaved []float32) float64 {
	if len(interleaved) == 0 {
		return 0
	}
	var sum float64
	for _, s := range interleaved {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(interleaved)))
}

func leftChannel(stereo []float32) []float32 {
	out := make([]float32, len(stereo)/2)
	for i := range out {
		out[i] = stereo[i*2]
	}
	return out
}

// renderBlocks pulls numFrames of audio in 128-frame blocks.
func renderBlocks(e *Engine, numFrames int) []float32 {
	out := make([]float32, 0, numFrames*2)
	for rendered := 0; rendered < numFrames; rendered += 128 {
		out = append(out, e.Process(128)...)
	}
	return out
}

func directConvolve(x []float32, h []float32) []float32 {
	y := make([]float32, len(x)+len(h)-1)
	for i := 0; i < len(x); i++ {
		for j := 0; j < len(h); j++ {
			y[i+j] += x[i] * h[j]
		}
	}
	return y
}

func maxAbsDiff(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	max := 0.0
	for i := 0; i < n; i++ {
		d := math.Abs(float64(a[i] - b[i]))
		if d > max {
			max = d
		}
	}
	return max
}

func writeTempIRWav(t *testing.T, left []float32, right []float32, sampleRate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ir.wav")
	var err error
	if right == nil {
		err = wavio.WriteMono(path, left, sampleRate)
	} else {
		err = wavio.WriteStereoLR(path, left, right, sampleRate)
	}
	if err != nil {
		t.Fatalf("write ir wav: %v", err)
	}
	return path
}
