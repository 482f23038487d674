package analysis

import "testing"

func benchmarkSignals(seconds float64) ([]float64, []float64, int) {
	const sampleRate = 48000
	ref := synthDecayingTone(261.6255653006, seconds, sampleRate)
	cand := synthDecayingTone(263.0, seconds, sampleRate)
	return ref, cand, sampleRate
}

func BenchmarkCompare(b *testing.B) {
	ref, cand, rate := benchmarkSignals(1.0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Compare(ref, cand, rate)
	}
}

func BenchmarkEstimateLagFFT(b *testing.B) {
	ref, cand, _ := benchmarkSignals(1.0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := estimateLagFFT(ref, cand, 24000); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEstimateLagExhaustive(b *testing.B) {
	ref, cand, _ := benchmarkSignals(0.25)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		estimateLagExhaustive(ref, cand, 6000)
	}
}
