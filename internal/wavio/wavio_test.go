package wavio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestStereoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	n := 256
	interleaved := make([]float32, n*2)
	for i := 0; i < n; i++ {
		s := float32(math.Sin(float64(i) * 0.17 * 0.9))
		interleaved[i*2] = s
		interleaved[i*2+1] = -s
	}
	if err := WriteStereo(path, interleaved, 48000); err != nil {
		t.Fatalf("WriteStereo: %v", err)
	}

	left, right, rate, err := ReadStereo(path)
	if err != nil {
		t.Fatalf("ReadStereo: %v", err)
	}
	if rate != 48000 {
		t.Fatalf("sample rate: got %d, want 48000", rate)
	}
	if len(left) != n || len(right) != n {
		t.Fatalf("frame count: got %d/%d, want %d", len(left), len(right), n)
	}
	// 16-bit quantization bounds the round-trip error.
	for i := 0; i < n; i++ {
		if d := math.Abs(float64(left[i] - interleaved[i*2])); d > 1e-3 {
			t.Fatalf("left sample %d off by %g", i, d)
		}
		if d := math.Abs(float64(right[i] - interleaved[i*2+1])); d > 1e-3 {
			t.Fatalf("right sample %d off by %g", i, d)
		}
	}
}

func TestReadMonoAveragesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avg.wav")

	left := make([]float32, 64)
	right := make([]float32, 64)
	for i := range left {
		left[i] = 0.5
		right[i] = -0.5
	}
	if err := WriteStereoLR(path, left, right, 44100); err != nil {
		t.Fatalf("WriteStereoLR: %v", err)
	}

	mono, rate, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if rate != 44100 || len(mono) != 64 {
		t.Fatalf("got rate %d, %d frames", rate, len(mono))
	}
	for i, v := range mono {
		if math.Abs(v) > 1e-3 {
			t.Fatalf("averaged sample %d: got %g, want 0", i, v)
		}
	}
}

func TestReadStereoDuplicatesMonoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	if err := WriteMono(path, []float32{1, 0.5, 0.25, 0}, 48000); err != nil {
		t.Fatalf("WriteMono: %v", err)
	}
	left, right, _, err := ReadStereo(path)
	if err != nil {
		t.Fatalf("ReadStereo: %v", err)
	}
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("mono duplication differs at %d: %g vs %g", i, left[i], right[i])
		}
	}
}

func TestWriteStereoLRRejectsLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteStereoLR(path, make([]float32, 3), make([]float32, 4), 48000); err == nil {
		t.Fatal("expected length-mismatch error")
	}
}

func TestResampleSameRateIsPassthrough(t *testing.T) {
	in := []float64{1, 2, 3}
	out, err := Resample(in, 48000, 48000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 3 || out[0] != 1 || out[2] != 3 {
		t.Fatalf("passthrough altered data: %v", out)
	}
}

func TestResampleDoublesLength(t *testing.T) {
	in := make([]float64, 4800)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
	}
	out, err := Resample(in, 48000, 96000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) < 3*len(in)/2 || len(out) > 5*len(in)/2 {
		t.Fatalf("upsampled length: got %d from %d", len(out), len(in))
	}
}

func TestStereoToMono(t *testing.T) {
	mono := StereoToMono([]float32{1, 0, 0, 1})
	if len(mono) != 2 || mono[0] != 0.5 || mono[1] != 0.5 {
		t.Fatalf("got %v, want [0.5 0.5]", mono)
	}
}

func TestRMS32(t *testing.T) {
	if got := RMS32(nil); got != 0 {
		t.Fatalf("empty rms: got %g", got)
	}
	if got := RMS32([]float32{1, -1, 1, -1}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("unit square rms: got %g", got)
	}
	if got := RMS32([]float32{3, 4}); math.Abs(got-math.Sqrt(12.5)) > 1e-6 {
		t.Fatalf("rms: got %g", got)
	}
}
