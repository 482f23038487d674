package audio

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	envIdle = iota
	envAttack
	envSustain
	envRelease
	envFade
)

// idleFloor is the envelope level treated as silence, about -90 dBFS.
const idleFloor = 3.0e-5

// stopFadeSamples bounds the linear fade used when a slot is cut.
const stopFadeSamples = 32

// voice renders one slot as a bank of sine partials sharing a phase
// accumulator. Frequency and phase stay float64 so glide ratios and long
// notes do not drift; samples are float32.
type voice struct {
	sampleRate int

	freq       float64
	targetFreq float64
	glideRatio float64
	glideLeft  int

	phase float64

	gain     float32
	partials []float32

	env       float32
	envState  int
	attackInc float32
	relCoeff  float32
	fadeDec   float32
}

func newVoice(sampleRate int, partials []float32) *voice {
	return &voice{sampleRate: sampleRate, partials: partials}
}

func (v *voice) idle() bool { return v.envState == envIdle }

// start (re)triggers the slot. The attack ramps from the current envelope
// level, so a stolen slot restarts without a discontinuity.
func (v *voice) start(freq float64, velocity int, attackSeconds float64) {
	if velocity < 0 {
		velocity = 0
	}
	if velocity > 127 {
		velocity = 127
	}
	v.freq = freq
	v.targetFreq = freq
	v.glideLeft = 0
	v.gain = float32(velocity) / 127.0

	samples := attackSeconds * float64(v.sampleRate)
	if samples < 1 {
		samples = 1
	}
	v.attackInc = float32(1.0 / samples)
	v.envState = envAttack
}

func (v *voice) retune(freq float64, glideSeconds float64) {
	if v.envState == envIdle || freq <= 0 {
		return
	}
	v.targetFreq = freq
	n := int(glideSeconds*float64(v.sampleRate) + 0.5)
	if n < 1 || v.freq <= 0 {
		v.freq = freq
		v.glideLeft = 0
		return
	}
	// Equal ratio per sample keeps the sweep linear in log frequency and
	// lands exactly on the target after n samples.
	v.glideRatio = math.Pow(freq/v.freq, 1.0/float64(n))
	v.glideLeft = n
}

func (v *voice) release(releaseSeconds float64) {
	if v.envState == envIdle {
		return
	}
	samples := releaseSeconds * float64(v.sampleRate)
	if samples < 1 {
		// Zero release still fades over the stop window to avoid a click.
		v.stop()
		return
	}
	// Exponential decay hitting -60 dB at the nominal release time.
	v.relCoeff = float32(math.Exp(-6.907755 / samples))
	v.envState = envRelease
}

// stop cuts the slot inside one block with a short linear fade.
func (v *voice) stop() {
	if v.envState == envIdle {
		return
	}
	v.fadeDec = v.env / stopFadeSamples
	if v.fadeDec <= 0 {
		v.env = 0
		v.envState = envIdle
		return
	}
	v.envState = envFade
}

// renderInto accumulates numFrames==len(out) samples into out. pitchFactor
// is the block-constant bend and vibrato multiplier.
func (v *voice) renderInto(out []float32, pitchFactor float64) {
	if v.envState == envIdle {
		return
	}

	// Partials above Nyquist for this block's highest frequency are
	// skipped; the fundamental always renders.
	top := v.freq
	if v.targetFreq > top {
		top = v.targetFreq
	}
	top *= pitchFactor
	limit := 0.45 * float64(v.sampleRate)
	numPartials := len(v.partials)
	for numPartials > 1 && top*float64(numPartials) > limit {
		numPartials--
	}

	inv := 1.0 / float64(v.sampleRate)
	for i := range out {
		if v.glideLeft > 0 {
			v.freq *= v.glideRatio
			v.glideLeft--
			if v.glideLeft == 0 {
				v.freq = v.targetFreq
			}
		}

		v.phase += v.freq * pitchFactor * inv
		if v.phase >= 1 {
			v.phase -= 1
		}

		var sample float64
		for n := 0; n < numPartials; n++ {
			sample += float64(v.partials[n]) * math.Sin(2*math.Pi*float64(n+1)*v.phase)
		}

		switch v.envState {
		case envAttack:
			v.env += v.attackInc
			if v.env >= 1 {
				v.env = 1
				v.envState = envSustain
			}
		case envRelease:
			v.env = float32(dspcore.FlushDenormals(float64(v.env * v.relCoeff)))
			if v.env < idleFloor {
				v.env = 0
				v.envState = envIdle
			}
		case envFade:
			v.env -= v.fadeDec
			if v.env <= 0 {
				v.env = 0
				v.envState = envIdle
			}
		}

		out[i] += float32(sample) * v.env * v.gain
		if v.envState == envIdle {
			return
		}
	}
}
