package audio

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// Engine renders the voice slots the tuning core drives. It satisfies the
// core's Output contract: slot commands update oscillator state
// immediately and the embedding command pulls interleaved stereo blocks
// with Process. Commands and Process must not run concurrently; callers
// that split them across goroutines hold a lock around both.
type Engine struct {
	sampleRate    int
	voices        []*voice
	attackSeconds float64
	outputGain    float32

	roomWet float32
	room    *RoomConvolver

	bendCents     float64
	vibAmount     float64
	vibDepthCents float64
	vibRateHz     float64
	lfoPhase      float64
}

// NewEngine creates a render engine with maxVoices slots.
func NewEngine(sampleRate, maxVoices int, params *Params) *Engine {
	if params == nil {
		params = NewDefaultParams()
	}
	if maxVoices < 1 {
		maxVoices = 1
	}
	partials := normalizePartials(params.Partials)
	e := &Engine{
		sampleRate:    sampleRate,
		attackSeconds: params.AttackSeconds,
		outputGain:    params.OutputGain,
		vibDepthCents: params.VibratoDepthCents,
		vibRateHz:     params.VibratoRateHz,
		room:          NewRoomConvolver(sampleRate),
	}
	e.SetRoomWetMix(params.RoomWetMix)
	e.voices = make([]*voice, maxVoices)
	for i := range e.voices {
		e.voices[i] = newVoice(sampleRate, partials)
	}
	return e
}

func (e *Engine) voice(slot int) *voice {
	if slot < 0 || slot >= len(e.voices) {
		return nil
	}
	return e.voices[slot]
}

// Start triggers a slot at the given frequency.
func (e *Engine) Start(slot int, freq float64, velocity int) {
	if v := e.voice(slot); v != nil {
		v.start(freq, velocity, e.attackSeconds)
	}
}

// Retune moves a sounding slot to a new frequency, gliding over
// glideSeconds or snapping when it is zero.
func (e *Engine) Retune(slot int, freq float64, glideSeconds float64) {
	if v := e.voice(slot); v != nil {
		v.retune(freq, glideSeconds)
	}
}

// Release fades a slot out over releaseSeconds.
func (e *Engine) Release(slot int, releaseSeconds float64) {
	if v := e.voice(slot); v != nil {
		v.release(releaseSeconds)
	}
}

// Stop cuts a slot within one block so it can be restarted immediately.
func (e *Engine) Stop(slot int) {
	if v := e.voice(slot); v != nil {
		v.stop()
	}
}

// SetPitchBend applies a global offset in cents to all slots.
func (e *Engine) SetPitchBend(cents float64) {
	e.bendCents = cents
}

// SetVibrato scales the vibrato LFO depth, 0 to 1.
func (e *Engine) SetVibrato(amount float64) {
	if amount < 0 {
		amount = 0
	}
	if amount > 1 {
		amount = 1
	}
	e.vibAmount = amount
}

// SetRoomIR installs a stereo room impulse response.
func (e *Engine) SetRoomIR(left, right []float32) error {
	return e.room.SetIR(left, right)
}

// SetRoomIRFromWAV loads the room impulse response from a WAV file.
func (e *Engine) SetRoomIRFromWAV(path string) error {
	return e.room.SetIRFromWAV(path)
}

// SetRoomWetMix sets the room send level, 0 to 1.
func (e *Engine) SetRoomWetMix(wet float32) {
	if wet < 0 {
		wet = 0
	}
	if wet > 1 {
		wet = 1
	}
	e.roomWet = wet
}

// Silent reports whether every slot has decayed to silence. The room tail
// is not included; see TailFrames.
func (e *Engine) Silent() bool {
	for _, v := range e.voices {
		if !v.idle() {
			return false
		}
	}
	return true
}

// TailFrames returns how many frames of room reverberation remain worth
// rendering after the voices go silent.
func (e *Engine) TailFrames() int {
	if e.roomWet <= 0 {
		return 0
	}
	return e.room.IRLength()
}

// Process renders a block of audio samples, stereo interleaved.
func (e *Engine) Process(numFrames int) []float32 {
	mono := make([]float32, numFrames)

	// Bend and vibrato are block-constant; the LFO advances per block.
	cents := e.bendCents
	if e.vibAmount > 0 && e.vibDepthCents > 0 {
		cents += e.vibDepthCents * e.vibAmount * math.Sin(2*math.Pi*e.lfoPhase)
	}
	factor := 1.0
	if cents != 0 {
		factor = float64(pow2(float32(cents) / 1200.0))
	}
	_, e.lfoPhase = math.Modf(e.lfoPhase + e.vibRateHz*float64(numFrames)/float64(e.sampleRate))

	for _, v := range e.voices {
		v.renderInto(mono, factor)
	}

	out := make([]float32, numFrames*2)
	if e.roomWet > 0 {
		wet := e.room.Process(mono)
		dry := 1 - e.roomWet
		for i := 0; i < numFrames; i++ {
			out[i*2] = (dry*mono[i] + e.roomWet*wet[i*2]) * e.outputGain
			out[i*2+1] = (dry*mono[i] + e.roomWet*wet[i*2+1]) * e.outputGain
		}
		return out
	}
	for i, s := range mono {
		s *= e.outputGain
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

func pow2(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}
