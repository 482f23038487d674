package synth

// Voice is one slot of the fixed polyphony pool. A voice is created once
// at pool construction and cycles between idle and active; when inactive
// its note and frequency fields are stale and must not be read.
type Voice struct {
	slot       int
	note       int
	frequency  float64
	velocity   int
	active     bool
	startOrder uint64

	// Reference the voice was last tuned against, -1/0 when it was
	// tuned to equal temperament.
	refNote int
	refFreq float64
}

// Slot returns the voice's stable pool index.
func (v *Voice) Slot() int { return v.slot }

// Note returns the sounding MIDI note. Meaningless when inactive.
func (v *Voice) Note() int { return v.note }

// Frequency returns the unbent base frequency in Hz.
func (v *Voice) Frequency() float64 { return v.frequency }

// Active reports whether the slot is sounding.
func (v *Voice) Active() bool { return v.active }

func (v *Voice) start(out Output, note int, frequency float64, velocity int, refNote int, refFreq float64, order uint64) {
	v.note = note
	v.frequency = frequency
	v.velocity = velocity
	v.refNote = refNote
	v.refFreq = refFreq
	v.startOrder = order
	v.active = true
	out.Start(v.slot, frequency, velocity)
}

func (v *Voice) retune(out Output, frequency float64, glideSeconds float64, refNote int, refFreq float64) {
	v.frequency = frequency
	v.refNote = refNote
	v.refFreq = refFreq
	out.Retune(v.slot, frequency, glideSeconds)
}

// release marks the voice idle before the audio fade runs; the slot is
// immediately reusable.
func (v *Voice) release(out Output, releaseSeconds float64) {
	v.active = false
	out.Release(v.slot, releaseSeconds)
}

// stop cuts the voice for stealing, skipping the release envelope.
func (v *Voice) stop(out Output) {
	v.active = false
	out.Stop(v.slot)
}
