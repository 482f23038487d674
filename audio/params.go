package audio

// Params holds the render-side timbre and mix parameters.
type Params struct {
	OutputGain float32

	// Partials are additive harmonic amplitudes, fundamental first. They
	// are normalized to unit sum when the engine is built.
	Partials []float32

	AttackSeconds float64

	// Vibrato reaches full depth at mod-wheel maximum.
	VibratoDepthCents float64
	VibratoRateHz     float64

	RoomWetMix float32
	// RoomIRWavPath is carried for the preset layer; the embedding command
	// loads it via SetRoomIRFromWAV.
	RoomIRWavPath string
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		OutputGain:        0.2,
		Partials:          DefaultPartials(),
		AttackSeconds:     0.005,
		VibratoDepthCents: 25.0,
		VibratoRateHz:     5.5,
		RoomWetMix:        0.0,
		RoomIRWavPath:     "",
	}
}

// DefaultPartials returns the stock 1/n harmonic rolloff over 8 partials.
func DefaultPartials() []float32 {
	amps := make([]float32, 8)
	for i := range amps {
		amps[i] = 1.0 / float32(i+1)
	}
	return amps
}

func normalizePartials(amps []float32) []float32 {
	if len(amps) == 0 {
		amps = DefaultPartials()
	}
	out := make([]float32, len(amps))
	sum := float32(0)
	for _, a := range amps {
		if a < 0 {
			a = 0
		}
		sum += a
	}
	if sum <= 0 {
		out[0] = 1
		return out
	}
	for i, a := range amps {
		if a < 0 {
			a = 0
		}
		out[i] = a / sum
	}
	return out
}
