// Package wavio bundles the WAV and sample-buffer plumbing shared by the
// commands and the audio layer: decoding to float slices, sample-rate
// conversion, and 16-bit encoding.
package wavio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

func decode(path string) (*audio.Float32Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav buffer: %s", path)
	}
	return buf, nil
}

// ReadMono decodes a WAV file to float64 samples, averaging channels, and
// returns the file's sample rate.
func ReadMono(path string) ([]float64, int, error) {
	buf, err := decode(path)
	if err != nil {
		return nil, 0, err
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// ReadStereo decodes a WAV file to separate left/right channels. Mono
// files duplicate into both channels.
func ReadStereo(path string) (left, right []float32, sampleRate int, err error) {
	buf, err := decode(path)
	if err != nil {
		return nil, nil, 0, err
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, nil, 0, fmt.Errorf("empty wav data: %s", path)
	}
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = buf.Data[i*ch]
		if ch > 1 {
			right[i] = buf.Data[i*ch+1]
		} else {
			right[i] = buf.Data[i*ch]
		}
	}
	return left, right, buf.Format.SampleRate, nil
}

// Resample converts samples from one rate to another, passing through
// when the rates already match.
func Resample(in []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// Resample32 is Resample for float32 buffers.
func Resample32(in []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64, err := Resample(in64, fromRate, toRate)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}

func encode(path string, data []float32, sampleRate, channels int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// WriteMono writes float32 samples as a 16-bit mono WAV file.
func WriteMono(path string, data []float32, sampleRate int) error {
	return encode(path, data, sampleRate, 1)
}

// WriteStereo writes interleaved float32 samples as a 16-bit stereo WAV
// file.
func WriteStereo(path string, interleaved []float32, sampleRate int) error {
	return encode(path, interleaved, sampleRate, 2)
}

// WriteStereoLR interleaves split channels and writes them as stereo.
func WriteStereoLR(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch: %d vs %d", len(left), len(right))
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return WriteStereo(path, data, sampleRate)
}

// StereoToMono folds an interleaved stereo buffer to float64 mono.
func StereoToMono(interleaved []float32) []float64 {
	n := len(interleaved) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = 0.5 * (float64(interleaved[i*2]) + float64(interleaved[i*2+1]))
	}
	return out
}

// RMS32 returns the root mean square of a float32 buffer.
func RMS32(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
