package synth

// Output is the audio collaborator a synth engine drives. Every call is
// fire-and-forget: the engine never waits on fades or glides, and slot
// bookkeeping on the engine side is updated before the call returns.
type Output interface {
	// Start begins a note on the given slot at an exact frequency.
	Start(slot int, frequency float64, velocity int)
	// Retune moves a sounding slot to a new frequency, gliding over
	// glideSeconds (zero means snap immediately).
	Retune(slot int, frequency float64, glideSeconds float64)
	// Release starts the slot's release fade.
	Release(slot int, releaseSeconds float64)
	// Stop silences the slot immediately so it can be reallocated.
	Stop(slot int)
	// SetPitchBend applies a transient offset, in cents, to every
	// sounding slot. Replaces any previous bend; it is not cumulative.
	SetPitchBend(cents float64)
	// SetVibrato sets the vibrato amount, normalized 0..1.
	SetVibrato(amount float64)
}

// NopOutput discards all audio commands. It backs headless use and tests.
type NopOutput struct{}

func (NopOutput) Start(int, float64, int)      {}
func (NopOutput) Retune(int, float64, float64) {}
func (NopOutput) Release(int, float64)         {}
func (NopOutput) Stop(int)                     {}
func (NopOutput) SetPitchBend(float64)         {}
func (NopOutput) SetVibrato(float64)           {}
