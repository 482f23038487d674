package synth

import "testing"

func TestPedalDefersRelease(t *testing.T) {
	e, out := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	e.SustainDown()

	if retuned := e.NoteOff(60); retuned != nil {
		t.Fatalf("deferred note-off retuned %v", retuned)
	}
	if v := e.pool.FindActive(60); v == nil {
		t.Fatal("deferred voice went inactive")
	}
	if got := out.countOp("release"); got != 0 {
		t.Fatalf("release commands while pedal down: got %d, want 0", got)
	}
}

func TestPedalUpReleasesDeferredNotes(t *testing.T) {
	e, out := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	e.SustainDown()
	e.NoteOff(60)
	e.NoteOff(64)

	e.SustainUp()
	if got := e.pool.ActiveCount(); got != 0 {
		t.Fatalf("voices after pedal up: got %d, want 0", got)
	}
	if got := out.countOp("release"); got != 2 {
		t.Fatalf("release commands: got %d, want 2", got)
	}
	// The reference memory keeps the released reference.
	if e.mem.lastNote != 60 {
		t.Errorf("remembered note: got %d, want 60", e.mem.lastNote)
	}
}

func TestRetriggerWhileSustainedSurvivesPedalUp(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	e.SustainDown()
	e.NoteOff(60)
	// Same key pressed again while the pedal still holds the old voice.
	e.NoteOn(60, 100)

	e.SustainUp()
	if v := e.pool.FindActive(60); v == nil {
		t.Fatal("held retriggered voice was released by pedal up")
	}

	// With the key lifted the note releases normally.
	e.NoteOff(60)
	if v := e.pool.FindActive(60); v != nil {
		t.Fatal("voice still active after final note-off")
	}
}

func TestPedalUpKeepsHeldKeys(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	e.SustainDown()
	e.NoteOff(60)
	// 64 stays physically held through the pedal lift.

	e.SustainUp()
	if v := e.pool.FindActive(60); v != nil {
		t.Fatal("unheld deferred note survived pedal up")
	}
	if v := e.pool.FindActive(64); v == nil {
		t.Fatal("held note was released by pedal up")
	}
}

func TestPedalUpSkipsReassignedSlot(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *Config) {
		cfg.MaxVoices = 2
	})

	e.NoteOn(60, 100)
	e.SustainDown()
	e.NoteOff(60) // deferred in slot 0
	e.NoteOn(64, 100)
	e.NoteOn(72, 100) // pool full: steals slot 0 from the deferred 60

	e.SustainUp()
	if v := e.pool.FindActive(72); v == nil {
		t.Fatal("slot reassigned to 72 was released for the old deferred 60")
	}
	if v := e.pool.FindActive(64); v == nil {
		t.Fatal("held 64 was released")
	}
}

func TestPedalUpRetunesSurvivors(t *testing.T) {
	e, _ := newTestEngine(t, func(cfg *Config) {
		cfg.RetuneMode = RetuneInstant
	})

	e.NoteOn(60, 100)
	e.NoteOn(64, 100)
	e.NoteOn(70, 100)
	e.SustainDown()
	e.NoteOff(60)

	retuned := e.SustainUp()
	if len(retuned) != 1 || retuned[0].Note != 70 {
		t.Fatalf("retuned list: got %v, want just note 70", retuned)
	}
	ref := e.pool.FindActive(64)
	if ref == nil {
		t.Fatal("64 should remain active")
	}
	want := ref.frequency * 45.0 / 32.0 // 64 to 70 is a just tritone
	got := e.pool.FindActive(70).frequency
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("70 frequency: got %.6f, want %.6f", got, want)
	}
}

func TestNoteOffWithoutVoiceIsNoop(t *testing.T) {
	e, out := newTestEngine(t, nil)

	if retuned := e.NoteOff(99); retuned != nil {
		t.Fatalf("note-off on silence retuned %v", retuned)
	}
	if len(out.calls) != 0 {
		t.Fatalf("audio commands on silent note-off: %v", out.calls)
	}

	e.SustainDown()
	if retuned := e.NoteOff(98); retuned != nil {
		t.Fatalf("deferred note-off on silence retuned %v", retuned)
	}
	e.SustainUp()
	if got := out.countOp("release"); got != 0 {
		t.Fatalf("release commands: got %d, want 0", got)
	}
}
