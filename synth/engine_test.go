package synth

import (
	"fmt"
	"math"
	"testing"

	"github.com/lukeburns/intone/tuning"
)

func closeTo(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestFirstNoteFallsBackToEqualTemperament(t *testing.T) {
	e, out := newTestEngine(t, nil)

	res := e.NoteOn(60, 100)
	if !closeTo(res.Frequency, 261.625565, 1e-3) {
		t.Errorf("frequency: got %.6f, want 261.625565", res.Frequency)
	}
	if res.Interval != nil {
		t.Errorf("interval on first note: got %+v, want nil", res.Interval)
	}
	if res.Slot != 0 || res.StolenNote != -1 || res.ActiveVoices != 1 {
		t.Errorf("result: got %+v", res)
	}
	call, ok := out.lastOp("start")
	if !ok || call.slot != 0 || !closeTo(call.freq, res.Frequency, 1e-9) {
		t.Errorf("start command: got %+v", call)
	}
}

func TestChordTunesAgainstLowestReference(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res60 := e.NoteOn(60, 100)
	res64 := e.NoteOn(64, 100)
	res67 := e.NoteOn(67, 100)

	if want := res60.Frequency * 1.25; !closeTo(res64.Frequency, want, 1e-9) {
		t.Errorf("64 frequency: got %.6f, want %.6f", res64.Frequency, want)
	}
	if want := res60.Frequency * 1.5; !closeTo(res67.Frequency, want, 1e-9) {
		t.Errorf("67 frequency: got %.6f, want %.6f", res67.Frequency, want)
	}

	iv := res64.Interval
	if iv == nil {
		t.Fatal("64 tuned without a reference interval")
	}
	if iv.Semitones != 4 || iv.Ratio != (tuning.Ratio{Num: 5, Den: 4}) || iv.Name != "major third" {
		t.Errorf("64 interval: got %+v", iv)
	}
	if iv.ReferenceNote != 60 || !closeTo(iv.ReferenceFrequency, res60.Frequency, 1e-9) {
		t.Errorf("64 reference: got note %d freq %.6f", iv.ReferenceNote, iv.ReferenceFrequency)
	}
	if res67.Interval == nil || res67.Interval.Name != "perfect fifth" {
		t.Errorf("67 interval: got %+v", res67.Interval)
	}
}

func TestInstantRetuneMovesCommaShiftedVoice(t *testing.T) {
	e, out := newTestEngine(t, func(cfg *Config) {
		cfg.RetuneMode = RetuneInstant
	})

	res60 := e.NoteOn(60, 100)
	res64 := e.NoteOn(64, 100)
	res70 := e.NoteOn(70, 100)
	if want := res60.Frequency * 1.8; !closeTo(res70.Frequency, want, 1e-9) {
		t.Fatalf("70 against 60: got %.6f, want %.6f", res70.Frequency, want)
	}

	retuned := e.NoteOff(60)
	if len(retuned) != 1 || retuned[0].Note != 70 {
		t.Fatalf("retuned: got %v, want just note 70", retuned)
	}
	// Rebuilt from the new reference 64, the tritone lands 128/125 away
	// from where the minor seventh over 60 put it.
	want := res64.Frequency * 45.0 / 32.0
	if !closeTo(retuned[0].Frequency, want, 1e-9) {
		t.Errorf("retuned 70: got %.6f, want %.6f", retuned[0].Frequency, want)
	}
	if math.Abs(retuned[0].Frequency-res70.Frequency) < 10 {
		t.Errorf("expected an audible shift, got %.6f -> %.6f", res70.Frequency, retuned[0].Frequency)
	}
	call, ok := out.lastOp("retune")
	if !ok || call.slot != 2 || call.value != 0 {
		t.Errorf("retune command: got %+v, want slot 2 with zero glide", call)
	}
}

func TestStaticModeKeepsFrequenciesOnReferenceRelease(t *testing.T) {
	e, out := newTestEngine(t, nil) // static is the default

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	res70 := e.NoteOn(70, 100)

	if retuned := e.NoteOff(60); retuned != nil {
		t.Fatalf("static retuned %v", retuned)
	}
	if got := out.countOp("retune"); got != 0 {
		t.Fatalf("retune commands in static mode: got %d, want 0", got)
	}
	v := e.pool.FindActive(70)
	if !closeTo(v.frequency, res70.Frequency, 1e-9) {
		t.Errorf("70 moved in static mode: %.6f -> %.6f", res70.Frequency, v.frequency)
	}
}

func TestSmoothRetuneUsesGlideTime(t *testing.T) {
	e, out := newTestEngine(t, func(cfg *Config) {
		cfg.RetuneMode = RetuneSmooth
		cfg.GlideSeconds = 0.25
	})

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	e.NoteOn(70, 100)
	e.NoteOff(60)

	call, ok := out.lastOp("retune")
	if !ok {
		t.Fatal("no retune command in smooth mode")
	}
	if call.value != 0.25 {
		t.Errorf("glide seconds: got %v, want 0.25", call.value)
	}
}

func TestReferenceMemorySurvivesSilence(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res60 := e.NoteOn(60, 100)
	e.NoteOff(60)
	if e.pool.ActiveCount() != 0 {
		t.Fatal("pool not silent")
	}

	// The next note tunes against the remembered 60, not equal
	// temperament.
	res64 := e.NoteOn(64, 100)
	if want := res60.Frequency * 1.25; !closeTo(res64.Frequency, want, 1e-9) {
		t.Errorf("64 after silence: got %.6f, want %.6f", res64.Frequency, want)
	}
	if math.Abs(res64.Frequency-tuning.EqualTemperament(64)) < 1 {
		t.Errorf("64 snapped back to equal temperament: %.6f", res64.Frequency)
	}
	if res64.Interval == nil || res64.Interval.ReferenceNote != 60 {
		t.Errorf("interval after silence: got %+v", res64.Interval)
	}

	// The chain continues: releasing 64 re-anchors memory there, and a
	// return to 60 recovers its original pitch through the inverse ratio.
	e.NoteOff(64)
	res60b := e.NoteOn(60, 100)
	if !closeTo(res60b.Frequency, res60.Frequency, 1e-9) {
		t.Errorf("60 after round trip: got %.9f, want %.9f", res60b.Frequency, res60.Frequency)
	}
}

func TestReferenceMemoryCapturesPitchBend(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res60 := e.NoteOn(60, 100)
	e.PitchBend(0.5) // 100 cents with the default 200-cent range
	e.NoteOff(60)

	want := res60.Frequency * tuning.CentsRatio(100)
	if !closeTo(e.mem.lastFreq, want, 1e-9) {
		t.Errorf("remembered frequency: got %.6f, want %.6f", e.mem.lastFreq, want)
	}

	// A retrigger after silence resumes at the bent pitch.
	res60b := e.NoteOn(60, 100)
	if !closeTo(res60b.Frequency, want, 1e-9) {
		t.Errorf("60 after bent release: got %.6f, want %.6f", res60b.Frequency, want)
	}
}

func TestPitchBendIsTransient(t *testing.T) {
	e, out := newTestEngine(t, nil)

	res60 := e.NoteOn(60, 100)
	e.PitchBend(0.25)
	e.PitchBend(0.5)

	// Bends replace each other; the voice's base frequency never moves.
	call, _ := out.lastOp("bend")
	if call.value != 100 {
		t.Errorf("bend cents: got %v, want 100", call.value)
	}
	if v := e.pool.FindActive(60); !closeTo(v.frequency, res60.Frequency, 1e-12) {
		t.Errorf("base frequency moved under bend: %.6f", v.frequency)
	}

	e.PitchBend(1.5)
	if call, _ := out.lastOp("bend"); call.value != 200 {
		t.Errorf("clamped bend: got %v, want 200", call.value)
	}
	e.PitchBend(-3)
	if call, _ := out.lastOp("bend"); call.value != -200 {
		t.Errorf("clamped bend: got %v, want -200", call.value)
	}
	if st := e.State(); st.PitchBend != -1 {
		t.Errorf("state pitch bend: got %v, want -1", st.PitchBend)
	}
}

func TestModWheelClampsToUnitRange(t *testing.T) {
	e, out := newTestEngine(t, nil)

	for _, tc := range []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{7, 1},
		{-1, 0},
	} {
		e.ModWheel(tc.in)
		if call, _ := out.lastOp("vibrato"); call.value != tc.want {
			t.Errorf("ModWheel(%v): got %v, want %v", tc.in, call.value, tc.want)
		}
	}
}

func TestVoiceStealingStopsOldest(t *testing.T) {
	e, out := newTestEngine(t, func(cfg *Config) {
		cfg.MaxVoices = 2
	})

	res60 := e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	res72 := e.NoteOn(72, 100)

	if res72.Slot != 0 || res72.StolenNote != 60 {
		t.Fatalf("steal result: got %+v", res72)
	}
	if res72.ActiveVoices != 2 {
		t.Errorf("active voices: got %d, want 2", res72.ActiveVoices)
	}
	// 60 was still sounding when the frequency was chosen, so 72 tunes
	// as its octave.
	if want := res60.Frequency * 2; !closeTo(res72.Frequency, want, 1e-9) {
		t.Errorf("72 frequency: got %.6f, want %.6f", res72.Frequency, want)
	}
	// The stolen slot is cut before it restarts.
	n := len(out.calls)
	if n < 2 || out.calls[n-2].op != "stop" || out.calls[n-2].slot != 0 ||
		out.calls[n-1].op != "start" || out.calls[n-1].slot != 0 {
		t.Errorf("steal command order: got %+v", out.calls)
	}
}

func TestRetriggerReusesVoice(t *testing.T) {
	e, out := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	res := e.NoteOn(60, 80)

	if res.Slot != 0 || res.StolenNote != -1 || res.ActiveVoices != 1 {
		t.Errorf("retrigger result: got %+v", res)
	}
	if got := out.countOp("stop"); got != 0 {
		t.Errorf("stop commands on retrigger: got %d, want 0", got)
	}
	if got := out.countOp("start"); got != 2 {
		t.Errorf("start commands: got %d, want 2", got)
	}
}

func TestParseModeNames(t *testing.T) {
	refCases := []struct {
		in      string
		want    ReferenceMode
		wantErr bool
	}{
		{"lowest", ReferenceLowestNote, false},
		{"lowest-note", ReferenceLowestNote, false},
		{" Sticky-Random ", ReferenceStickyRandom, false},
		{"random", ReferenceStickyRandom, false},
		{"harmonic-center", ReferenceHarmonicCenter, false},
		{"harmonic", ReferenceHarmonicCenter, false},
		{"bogus", ReferenceLowestNote, true},
	}
	for _, tc := range refCases {
		t.Run(fmt.Sprintf("ref_%s", tc.in), func(t *testing.T) {
			got, err := ParseReferenceMode(tc.in)
			if got != tc.want || (err != nil) != tc.wantErr {
				t.Fatalf("ParseReferenceMode(%q) = %v, %v", tc.in, got, err)
			}
		})
	}

	retCases := []struct {
		in      string
		want    RetuneMode
		wantErr bool
	}{
		{"static", RetuneStatic, false},
		{"none", RetuneStatic, false},
		{"smooth", RetuneSmooth, false},
		{"glide", RetuneSmooth, false},
		{"Instant", RetuneInstant, false},
		{"snap", RetuneInstant, false},
		{"wobble", RetuneStatic, true},
	}
	for _, tc := range retCases {
		t.Run(fmt.Sprintf("retune_%s", tc.in), func(t *testing.T) {
			got, err := ParseRetuneMode(tc.in)
			if got != tc.want || (err != nil) != tc.wantErr {
				t.Fatalf("ParseRetuneMode(%q) = %v, %v", tc.in, got, err)
			}
		})
	}
}

func TestUnknownModeNamesFallBack(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *Config) {
		cfg.ReferenceMode = ReferenceHarmonicCenter
		cfg.RetuneMode = RetuneSmooth
	})

	e.SetReferenceModeName("bogus")
	if e.refMode != ReferenceLowestNote {
		t.Errorf("reference mode: got %v, want lowest", e.refMode)
	}
	e.SetRetuneModeName("bogus", 0.1)
	if e.retuneMode != RetuneStatic {
		t.Errorf("retune mode: got %v, want static", e.retuneMode)
	}
}

func TestSwitchingReferenceModeClearsMemory(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	e.NoteOff(60)
	if e.mem.lastNote != 60 {
		t.Fatalf("memory note: got %d, want 60", e.mem.lastNote)
	}

	// Re-setting the same mode keeps the memory.
	e.SetReferenceMode(ReferenceLowestNote)
	if e.mem.lastNote != 60 {
		t.Fatal("same-mode set cleared the memory")
	}

	e.SetReferenceMode(ReferenceHarmonicCenter)
	if e.mem.lastNote != -1 {
		t.Fatalf("memory note after switch: got %d, want -1", e.mem.lastNote)
	}
	res := e.NoteOn(64, 100)
	if res.Interval != nil {
		t.Errorf("interval after mode switch: got %+v, want nil", res.Interval)
	}
	if !closeTo(res.Frequency, tuning.EqualTemperament(64), 1e-9) {
		t.Errorf("frequency after mode switch: got %.6f", res.Frequency)
	}
}

func TestResetReferenceSilencesAndForgets(t *testing.T) {
	e, out := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	e.SustainDown()
	e.NoteOff(60) // deferred
	e.PitchBend(0.25)

	e.ResetReference()
	if got := e.pool.ActiveCount(); got != 0 {
		t.Fatalf("active voices after reset: got %d, want 0", got)
	}
	if got := out.countOp("stop"); got != 2 {
		t.Errorf("stop commands: got %d, want 2", got)
	}
	if call, _ := out.lastOp("bend"); call.value != 0 {
		t.Errorf("bend after reset: got %v, want 0", call.value)
	}
	if e.mem.lastNote != -1 || e.mem.stickySlot != -1 {
		t.Errorf("memory after reset: %+v", e.mem)
	}

	// The pedal is still physically down, so fresh notes defer again.
	e.NoteOn(72, 100)
	if retuned := e.NoteOff(72); retuned != nil {
		t.Fatalf("post-reset deferred note-off retuned %v", retuned)
	}
	if v := e.pool.FindActive(72); v == nil {
		t.Fatal("pedal state lost across reset")
	}
}

func TestStateSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res60 := e.NoteOn(60, 100)
	e.NoteOn(64, 100)

	st := e.State()
	if st.ActiveVoices != 2 || st.MaxVoices != 8 {
		t.Errorf("counts: got %+v", st)
	}
	if len(st.Notes) != 2 || st.Notes[0].Note != 60 || st.Notes[1].Note != 64 {
		t.Errorf("notes: got %+v", st.Notes)
	}
	if st.ReferenceMode != "lowest" || st.RetuneMode != "static" {
		t.Errorf("modes: got %q/%q", st.ReferenceMode, st.RetuneMode)
	}
	if st.ReferenceNote != 60 || !closeTo(st.ReferenceFrequency, res60.Frequency, 1e-9) {
		t.Errorf("reference: got %d at %.6f", st.ReferenceNote, st.ReferenceFrequency)
	}

	e.NoteOff(60)
	e.NoteOff(64)
	st = e.State()
	if st.ActiveVoices != 0 || len(st.Notes) != 0 {
		t.Errorf("silent state: got %+v", st)
	}
	// Silence reports the remembered reference.
	if st.ReferenceNote != 64 {
		t.Errorf("remembered reference: got %d, want 64", st.ReferenceNote)
	}

	e.ResetReference()
	if st = e.State(); st.ReferenceNote != -1 {
		t.Errorf("reference after reset: got %d, want -1", st.ReferenceNote)
	}
}
