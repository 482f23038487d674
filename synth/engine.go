package synth

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lukeburns/intone/tuning"
)

// Config carries the tuning policies of an engine.
type Config struct {
	MaxVoices           int
	ReferenceMode       ReferenceMode
	RetuneMode          RetuneMode
	GlideSeconds        float64
	ReleaseSeconds      float64
	PitchBendRangeCents float64

	// Output receives audio commands; nil means discard.
	Output Output
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Rand drives the sticky-random reference pick; nil seeds from the
	// clock.
	Rand *rand.Rand
}

// DefaultConfig returns the stock eight-voice configuration.
func DefaultConfig() Config {
	return Config{
		MaxVoices:           8,
		ReferenceMode:       ReferenceLowestNote,
		RetuneMode:          RetuneStatic,
		GlideSeconds:        0.08,
		ReleaseSeconds:      0.3,
		PitchBendRangeCents: 200,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxVoices < 1 {
		return fmt.Errorf("max voices must be >= 1")
	}
	if c.GlideSeconds < 0 {
		return fmt.Errorf("glide seconds must be >= 0")
	}
	if c.ReleaseSeconds < 0 {
		return fmt.Errorf("release seconds must be >= 0")
	}
	if c.PitchBendRangeCents <= 0 {
		return fmt.Errorf("pitch bend range must be > 0")
	}
	switch c.ReferenceMode {
	case ReferenceLowestNote, ReferenceStickyRandom, ReferenceHarmonicCenter:
	default:
		return fmt.Errorf("unknown reference mode %d", int(c.ReferenceMode))
	}
	switch c.RetuneMode {
	case RetuneStatic, RetuneSmooth, RetuneInstant:
	default:
		return fmt.Errorf("unknown retune mode %d", int(c.RetuneMode))
	}
	return nil
}

// Engine is the event-driven tuning core: it owns the voice pool, the
// reference memory, and the sustain state, and drives the audio
// collaborator. All methods must be called from one goroutine at a time;
// embedders that mix an audio thread with a MIDI thread synchronize
// outside.
type Engine struct {
	pool    *Pool
	mem     *referenceMemory
	sustain *sustainTracker

	refMode        ReferenceMode
	retuneMode     RetuneMode
	glideSeconds   float64
	releaseSeconds float64

	bendAmount     float64
	bendRangeCents float64

	out  Output
	log  *slog.Logger
	rand *rand.Rand
}

// NewEngine builds an engine from cfg.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = NopOutput{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		pool:           NewPool(cfg.MaxVoices),
		mem:            newReferenceMemory(),
		sustain:        newSustainTracker(),
		refMode:        cfg.ReferenceMode,
		retuneMode:     cfg.RetuneMode,
		glideSeconds:   cfg.GlideSeconds,
		releaseSeconds: cfg.ReleaseSeconds,
		bendRangeCents: cfg.PitchBendRangeCents,
		out:            out,
		log:            logger,
		rand:           rng,
	}, nil
}

// IntervalInfo describes how a note was tuned relative to its reference.
type IntervalInfo struct {
	Semitones          int
	Ratio              tuning.Ratio
	Name               string
	ReferenceNote      int
	ReferenceFrequency float64
}

// NoteOnResult reports what a note-on did.
type NoteOnResult struct {
	Note      int
	Frequency float64
	Slot      int
	// Interval is nil when the note fell back to equal temperament.
	Interval *IntervalInfo
	// StolenNote is the note displaced by voice stealing, -1 when none.
	StolenNote   int
	ActiveVoices int
}

// NoteOn starts a note. The frequency comes from the live reference when
// one sounds, from the remembered reference after silence, and from equal
// temperament only when there is no memory at all.
func (e *Engine) NoteOn(note, velocity int) NoteOnResult {
	e.sustain.keyDown(note)

	ref := e.selectReference()

	var freq float64
	var info *IntervalInfo
	switch {
	case ref != nil:
		freq = tuning.JustFrequency(ref.frequency, ref.note, note)
		info = intervalInfo(note, ref.note, ref.frequency)
	case e.mem.lastNote >= 0 && e.mem.lastFreq > 0:
		freq = tuning.JustFrequency(e.mem.lastFreq, e.mem.lastNote, note)
		info = intervalInfo(note, e.mem.lastNote, e.mem.lastFreq)
	default:
		freq = tuning.EqualTemperament(note)
	}

	v, stolenNote, stolen := e.pool.Allocate(note)
	if stolen {
		v.stop(e.out)
		e.log.Debug("voice stolen", "slot", v.slot, "stolen_note", stolenNote, "note", note)
	}

	refNote, refFreq := -1, 0.0
	if info != nil {
		refNote, refFreq = info.ReferenceNote, info.ReferenceFrequency
	}
	v.start(e.out, note, freq, velocity, refNote, refFreq, e.pool.nextStartOrder())

	if ref == nil {
		// The first voice after silence anchors the reference memory.
		e.mem.lastNote = note
		e.mem.lastFreq = freq
	}

	res := NoteOnResult{
		Note:         note,
		Frequency:    freq,
		Slot:         v.slot,
		Interval:     info,
		StolenNote:   -1,
		ActiveVoices: e.pool.ActiveCount(),
	}
	if stolen {
		res.StolenNote = stolenNote
	}
	return res
}

// NoteOff releases a note, or defers it while the pedal is down. The
// returned list holds the voices moved by a reference change, empty when
// none retuned.
func (e *Engine) NoteOff(note int) []Retuned {
	e.sustain.keyUp(note)

	v := e.pool.FindActive(note)
	if v == nil {
		return nil
	}

	if e.sustain.pedalDown {
		e.sustain.deferRelease(note, v.slot)
		return nil
	}

	return e.releaseVoices([]*Voice{v})
}

// SustainDown presses the pedal; subsequent note-offs are deferred.
func (e *Engine) SustainDown() {
	e.sustain.pedalDown = true
}

// SustainUp lifts the pedal, releasing every deferred voice whose key is
// no longer held. Deferred releases can dethrone the reference, so this
// can retune like NoteOff.
func (e *Engine) SustainUp() []Retuned {
	toRelease, slots := e.sustain.pedalUp()

	var victims []*Voice
	for _, slot := range slots {
		v := e.pool.Voice(slot)
		if !v.active {
			continue
		}
		if _, ok := toRelease[v.note]; !ok {
			continue
		}
		victims = append(victims, v)
	}
	return e.releaseVoices(victims)
}

// releaseVoices releases the given voices. When the current reference is
// among them its sounding frequency, bend included, is captured into the
// reference memory before the voice goes inactive; afterwards the
// remaining voices retune if the mode asks for it.
func (e *Engine) releaseVoices(victims []*Voice) []Retuned {
	if len(victims) == 0 {
		return nil
	}

	ref := e.selectReference()
	refReleased := false
	for _, v := range victims {
		if v == ref {
			refReleased = true
			e.captureReferenceMemory(v)
		}
		v.release(e.out, e.releaseSeconds)
	}

	if !refReleased {
		return nil
	}
	newRef := e.selectReference()
	if newRef == nil || e.retuneMode == RetuneStatic {
		return nil
	}
	return e.retuneAll(newRef)
}

func (e *Engine) captureReferenceMemory(v *Voice) {
	e.mem.lastNote = v.note
	e.mem.lastFreq = v.frequency * tuning.CentsRatio(e.bendAmount*e.bendRangeCents)
}

// PitchBend applies a bend in -1..1 across all voices. The offset is
// re-derived from the unbent base frequencies every time, never stacked.
func (e *Engine) PitchBend(amount float64) {
	if amount < -1 {
		amount = -1
	}
	if amount > 1 {
		amount = 1
	}
	e.bendAmount = amount
	e.out.SetPitchBend(amount * e.bendRangeCents)
}

// ModWheel forwards a normalized vibrato amount to the audio collaborator.
func (e *Engine) ModWheel(amount float64) {
	if amount < 0 {
		amount = 0
	}
	if amount > 1 {
		amount = 1
	}
	e.out.SetVibrato(amount)
}

// SetReferenceMode switches the reference policy. Switching clears the
// reference memory, sticky pick included.
func (e *Engine) SetReferenceMode(mode ReferenceMode) {
	if mode != e.refMode {
		e.mem.reset()
	}
	e.refMode = mode
}

// SetReferenceModeName is the clamping form for live input: unknown names
// fall back to the lowest-note mode with a warning instead of failing.
func (e *Engine) SetReferenceModeName(name string) {
	mode, err := ParseReferenceMode(name)
	if err != nil {
		e.log.Warn("unknown reference mode, using lowest", "mode", name)
	}
	e.SetReferenceMode(mode)
}

// SetRetuneMode switches the retune policy and its glide time.
func (e *Engine) SetRetuneMode(mode RetuneMode, glideSeconds float64) {
	if glideSeconds < 0 {
		glideSeconds = 0
	}
	e.retuneMode = mode
	e.glideSeconds = glideSeconds
}

// SetRetuneModeName is the clamping form for live input: unknown names
// fall back to static with a warning instead of failing.
func (e *Engine) SetRetuneModeName(name string, glideSeconds float64) {
	mode, err := ParseRetuneMode(name)
	if err != nil {
		e.log.Warn("unknown retune mode, using static", "mode", name)
	}
	e.SetRetuneMode(mode, glideSeconds)
}

// ResetReference silences everything and forgets all reference state.
func (e *Engine) ResetReference() {
	e.pool.stopAll(e.out)
	e.sustain.clearDeferred()
	e.bendAmount = 0
	e.out.SetPitchBend(0)
	e.mem.reset()
}

// ActiveNote is one sounding note in a state snapshot.
type ActiveNote struct {
	Note      int     `json:"note"`
	Frequency float64 `json:"frequency"`
}

// State is a point-in-time snapshot for display layers.
type State struct {
	ActiveVoices       int          `json:"active_voices"`
	MaxVoices          int          `json:"max_voices"`
	Notes              []ActiveNote `json:"notes,omitempty"`
	ReferenceMode      string       `json:"reference_mode"`
	RetuneMode         string       `json:"retune_mode"`
	ReferenceNote      int          `json:"reference_note"`
	ReferenceFrequency float64      `json:"reference_frequency"`
	PitchBend          float64      `json:"pitch_bend"`
}

// State reports the current engine state. With no sounding voices the
// reference fields fall back to the remembered reference; note -1 means
// no reference at all.
func (e *Engine) State() State {
	st := State{
		ActiveVoices:  e.pool.ActiveCount(),
		MaxVoices:     e.pool.Capacity(),
		ReferenceMode: e.refMode.String(),
		RetuneMode:    e.retuneMode.String(),
		ReferenceNote: -1,
		PitchBend:     e.bendAmount,
	}
	for _, v := range e.pool.Active() {
		st.Notes = append(st.Notes, ActiveNote{Note: v.note, Frequency: v.frequency})
	}
	if ref := e.selectReference(); ref != nil {
		st.ReferenceNote = ref.note
		st.ReferenceFrequency = ref.frequency
	} else if e.mem.lastNote >= 0 {
		st.ReferenceNote = e.mem.lastNote
		st.ReferenceFrequency = e.mem.lastFreq
	}
	return st
}

func (e *Engine) selectReference() *Voice {
	return selectReference(e.refMode, e.pool.Active(), e.mem, e.rand)
}

func intervalInfo(note, refNote int, refFreq float64) *IntervalInfo {
	iv := note - refNote
	return &IntervalInfo{
		Semitones:          iv,
		Ratio:              tuning.RatioFor(iv),
		Name:               tuning.IntervalName(iv),
		ReferenceNote:      refNote,
		ReferenceFrequency: refFreq,
	}
}
