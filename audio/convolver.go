package audio

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/lukeburns/intone/internal/wavio"
)

const convolverPartSize = 128

// RoomConvolver spatializes the mono voice mix through a stereo impulse
// response using partitioned overlap-add convolution. A fresh convolver
// carries a unit impulse, so processing is a passthrough until an IR is
// set.
type RoomConvolver struct {
	sampleRate int
	irLen      int

	ola     [2]*dspconv.StreamingOverlapAddT[float32, complex64]
	scratch [2][]float32
	padded  []float32
}

// NewRoomConvolver creates a convolver with a unit-impulse IR.
func NewRoomConvolver(sampleRate int) *RoomConvolver {
	c := &RoomConvolver{sampleRate: sampleRate}
	if err := c.SetIR([]float32{1}, []float32{1}); err != nil {
		// A one-tap IR at the fixed part size cannot fail to plan.
		panic(err)
	}
	return c
}

// IRLength returns the longer channel length of the current IR in samples.
func (c *RoomConvolver) IRLength() int { return c.irLen }

// SetIR installs left/right impulse responses and clears history. Empty
// channels fall back to a unit impulse.
func (c *RoomConvolver) SetIR(left, right []float32) error {
	if len(left) == 0 {
		left = []float32{1}
	}
	if len(right) == 0 {
		right = []float32{1}
	}
	for ch, ir := range [2][]float32{left, right} {
		ola, err := dspconv.NewStreamingOverlapAdd32(ir, convolverPartSize)
		if err != nil {
			return fmt.Errorf("room ir channel %d: %w", ch, err)
		}
		c.ola[ch] = ola
		c.scratch[ch] = make([]float32, convolverPartSize)
	}
	c.irLen = len(left)
	if len(right) > c.irLen {
		c.irLen = len(right)
	}
	c.padded = make([]float32, convolverPartSize)
	c.Reset()
	return nil
}

// SetIRFromWAV loads a mono or stereo IR from a WAV file, resampling to
// the convolver's rate when needed.
func (c *RoomConvolver) SetIRFromWAV(path string) error {
	left, right, rate, err := wavio.ReadStereo(path)
	if err != nil {
		return err
	}
	if left, err = wavio.Resample32(left, rate, c.sampleRate); err != nil {
		return err
	}
	if right, err = wavio.Resample32(right, rate, c.sampleRate); err != nil {
		return err
	}
	return c.SetIR(left, right)
}

// Reset clears the overlap history of both channels.
func (c *RoomConvolver) Reset() {
	for _, ola := range c.ola {
		if ola != nil {
			ola.Reset()
		}
	}
}

// Process convolves a mono input block and returns interleaved stereo.
// Arbitrary input lengths are handled by padding the trailing partial
// partition; the pad tail stays in the convolver history.
func (c *RoomConvolver) Process(input []float32) []float32 {
	output := make([]float32, len(input)*2)
	for start := 0; start < len(input); start += convolverPartSize {
		end := start + convolverPartSize
		if end > len(input) {
			end = len(input)
		}
		block := input[start:end]
		if len(block) < convolverPartSize {
			copy(c.padded, block)
			for i := len(block); i < convolverPartSize; i++ {
				c.padded[i] = 0
			}
			block = c.padded
		}

		for ch := 0; ch < 2; ch++ {
			if err := c.ola[ch].ProcessBlockTo(c.scratch[ch], block); err != nil {
				copy(c.scratch[ch], block)
			}
		}
		for i := 0; i < end-start; i++ {
			output[(start+i)*2] = c.scratch[0][i]
			output[(start+i)*2+1] = c.scratch[1][i]
		}
	}
	return output
}
