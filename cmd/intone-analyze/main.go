package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/lukeburns/intone/analysis"
	"github.com/lukeburns/intone/internal/wavio"
	"github.com/lukeburns/intone/tuning"
)

type output struct {
	File            string            `json:"file"`
	SampleRate      int               `json:"sample_rate"`
	DurationSeconds float64           `json:"duration_seconds"`
	Tuning          analysis.Report   `json:"tuning"`
	ExpectedNote    *int              `json:"expected_note,omitempty"`
	CentsToExpected *float64          `json:"cents_to_expected,omitempty"`
	TrackWindows    int               `json:"track_windows"`
	MedianTrackHz   float64           `json:"median_track_hz"`
	Compare         *analysis.Metrics `json:"compare,omitempty"`
}

func main() {
	inPath := flag.String("in", "", "WAV file to analyze (required)")
	referencePath := flag.String("reference", "", "reference WAV; adds a comparison section")
	note := flag.Int("note", -1, "expected MIDI note; cents are reported against it (-1 = nearest)")
	window := flag.Float64("window", 0.1, "frequency track window in seconds")
	sampleRate := flag.Int("sample-rate", 48000, "comparison sample rate in Hz")
	jsonOut := flag.Bool("json", false, "print results as JSON")
	flag.Parse()

	if *inPath == "" {
		die("missing -in")
	}

	samples, rate, err := wavio.ReadMono(*inPath)
	if err != nil {
		die("failed to read %s: %v", *inPath, err)
	}
	if len(samples) == 0 || rate <= 0 {
		die("empty wav: %s", *inPath)
	}

	out := output{
		File:            *inPath,
		SampleRate:      rate,
		DurationSeconds: float64(len(samples)) / float64(rate),
		Tuning:          analysis.TuningReport(samples, rate),
	}

	winFrames := int(*window * float64(rate))
	track := analysis.FrequencyTrack(samples, rate, winFrames)
	out.TrackWindows = len(track)
	out.MedianTrackHz = median(track)

	if *note >= 0 && *note <= 127 && out.Tuning.Frequency > 0 {
		cents := tuning.Cents(out.Tuning.Frequency, tuning.EqualTemperament(*note))
		out.ExpectedNote = note
		out.CentsToExpected = &cents
	}

	if *referencePath != "" {
		ref, refRate, err := wavio.ReadMono(*referencePath)
		if err != nil {
			die("failed to read reference %s: %v", *referencePath, err)
		}
		ref, err = wavio.Resample(ref, refRate, *sampleRate)
		if err != nil {
			die("failed to resample reference: %v", err)
		}
		cand, err := wavio.Resample(samples, rate, *sampleRate)
		if err != nil {
			die("failed to resample candidate: %v", err)
		}
		metrics := analysis.Compare(ref, cand, *sampleRate)
		out.Compare = &metrics
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("File:        %s (%d Hz, %.3fs)\n", out.File, out.SampleRate, out.DurationSeconds)
	if out.Tuning.Frequency <= 0 {
		fmt.Println("No stable pitch found")
		return
	}
	fmt.Printf("Fundamental: %.3f Hz\n", out.Tuning.Frequency)
	fmt.Printf("Nearest:     %s (%d)  %+.1f cents\n", out.Tuning.NoteName, out.Tuning.Note, out.Tuning.CentsOffset)
	if out.CentsToExpected != nil {
		fmt.Printf("Expected:    %s (%d)  %+.1f cents\n", tuning.NoteName(*out.ExpectedNote), *out.ExpectedNote, *out.CentsToExpected)
	}
	if len(out.Tuning.Harmonics) > 0 {
		fmt.Printf("Harmonics:  ")
		for _, h := range out.Tuning.Harmonics {
			fmt.Printf(" %.2f", h)
		}
		fmt.Println()
	}
	fmt.Printf("Track:       %d windows, median %.3f Hz\n", out.TrackWindows, out.MedianTrackHz)

	if out.Compare != nil {
		printCompare(out.Compare)
	}
}

func printCompare(m *analysis.Metrics) {
	fmt.Println()
	fmt.Printf("Aligned frames:   %d (lag %d samples, %.3f ms)\n",
		m.AlignedFrames, m.LagSamples, 1000.0*float64(m.LagSamples)/float64(m.SampleRate))
	fmt.Printf("Component        Raw          Norm   Weight  Contribution\n")
	fmt.Printf("---------------------------------------------------------\n")
	printComp := func(name, raw string, norm, weight float64, dominant bool) {
		marker := ""
		if dominant {
			marker = " <-"
		}
		fmt.Printf("%-16s %-12s %5.1f%%  x%.2f   -> %.4f%s\n", name, raw, norm*100, weight, norm*weight, marker)
	}
	printComp("Time RMSE", fmt.Sprintf("%.6f", m.TimeRMSE), m.TimeNorm, analysis.WeightTime, m.Dominant == "time")
	printComp("Envelope RMSE", fmt.Sprintf("%.1f dB", m.EnvelopeRMSEDB), m.EnvelopeNorm, analysis.WeightEnvelope, m.Dominant == "envelope")
	printComp("Spectral RMSE", fmt.Sprintf("%.1f dB", m.SpectralRMSEDB), m.SpectralNorm, analysis.WeightSpectral, m.Dominant == "spectral")
	printComp("Pitch offset", fmt.Sprintf("%.1f cents", m.PitchOffsetCents), m.PitchNorm, analysis.WeightPitch, m.Dominant == "pitch")
	fmt.Printf("---------------------------------------------------------\n")
	fmt.Printf("Pitch:            ref %.3f Hz, cand %.3f Hz (%+.1f cents)\n", m.ReferenceHz, m.CandidateHz, m.PitchOffsetCents)
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", m.Score)
	fmt.Printf("Similarity:       %.2f%%\n", m.Similarity*100.0)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return 0.5 * (sorted[mid-1] + sorted[mid])
	}
	return sorted[mid]
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
