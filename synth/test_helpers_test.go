package synth

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
)

// outputCall records one command sent to the audio collaborator.
type outputCall struct {
	op    string
	slot  int
	freq  float64
	value float64
}

// recordingOutput captures the command stream for assertions.
type recordingOutput struct {
	calls []outputCall
}

func (r *recordingOutput) Start(slot int, freq float64, velocity int) {
	r.calls = append(r.calls, outputCall{op: "start", slot: slot, freq: freq, value: float64(velocity)})
}

func (r *recordingOutput) Retune(slot int, freq float64, glideSeconds float64) {
	r.calls = append(r.calls, outputCall{op: "retune", slot: slot, freq: freq, value: glideSeconds})
}

func (r *recordingOutput) Release(slot int, releaseSeconds float64) {
	r.calls = append(r.calls, outputCall{op: "release", slot: slot, value: releaseSeconds})
}

func (r *recordingOutput) Stop(slot int) {
	r.calls = append(r.calls, outputCall{op: "stop", slot: slot})
}

func (r *recordingOutput) SetPitchBend(cents float64) {
	r.calls = append(r.calls, outputCall{op: "bend", slot: -1, value: cents})
}

func (r *recordingOutput) SetVibrato(amount float64) {
	r.calls = append(r.calls, outputCall{op: "vibrato", slot: -1, value: amount})
}

func (r *recordingOutput) countOp(op string) int {
	n := 0
	for _, c := range r.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (r *recordingOutput) lastOp(op string) (outputCall, bool) {
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].op == op {
			return r.calls[i], true
		}
	}
	return outputCall{}, false
}

func (r *recordingOutput) reset() {
	r.calls = nil
}

// newTestEngine builds an engine with a recording output, a quiet logger,
// and a fixed random seed so sticky-random picks are reproducible.
func newTestEngine(t *testing.T, mod func(*Config)) (*Engine, *recordingOutput) {
	t.Helper()
	out := &recordingOutput{}
	cfg := DefaultConfig()
	cfg.Output = out
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Rand = rand.New(rand.NewSource(1))
	if mod != nil {
		mod(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, out
}
