//go:build js && wasm

package main

import (
	"encoding/json"
	"os"
	"syscall/js"
	"unsafe"

	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/synth"
)

var (
	tuner        *synth.Engine
	renderer     *audio.Engine
	outputBuffer []float32
)

func main() {
	// Keep program running
	c := make(chan struct{})

	// Export functions to JavaScript
	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	js.Global().Set("wasmNoteOn", js.FuncOf(wasmNoteOn))
	js.Global().Set("wasmNoteOff", js.FuncOf(wasmNoteOff))
	js.Global().Set("wasmSetSustain", js.FuncOf(wasmSetSustain))
	js.Global().Set("wasmPitchBend", js.FuncOf(wasmPitchBend))
	js.Global().Set("wasmModWheel", js.FuncOf(wasmModWheel))
	js.Global().Set("wasmSetReferenceMode", js.FuncOf(wasmSetReferenceMode))
	js.Global().Set("wasmSetRetuneMode", js.FuncOf(wasmSetRetuneMode))
	js.Global().Set("wasmResetReference", js.FuncOf(wasmResetReference))
	js.Global().Set("wasmState", js.FuncOf(wasmState))
	js.Global().Set("wasmSetRoomWet", js.FuncOf(wasmSetRoomWet))
	js.Global().Set("wasmLoadIR", js.FuncOf(wasmLoadIR))
	js.Global().Set("wasmProcessBlock", js.FuncOf(wasmProcessBlock))
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM intone module loaded")
	<-c
}

func wasmInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	sampleRate := args[0].Int()

	cfg := synth.DefaultConfig()
	renderer = audio.NewEngine(sampleRate, cfg.MaxVoices, audio.NewDefaultParams())
	cfg.Output = renderer

	var err error
	tuner, err = synth.NewEngine(cfg)
	if err != nil {
		println("Engine init failed:", err.Error())
		return nil
	}

	// Pre-allocate output buffer for 128 stereo frames
	outputBuffer = make([]float32, 128*2)

	println("Intone initialized at", sampleRate, "Hz")
	return nil
}

// wasmNoteOn returns the frequency the note was tuned to so the UI can
// show the just pitches as they land.
func wasmNoteOn(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || tuner == nil {
		return nil
	}
	note := args[0].Int()
	velocity := args[1].Int()
	result := tuner.NoteOn(note, velocity)
	return result.Frequency
}

func wasmNoteOff(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || tuner == nil {
		return nil
	}
	note := args[0].Int()
	tuner.NoteOff(note)
	return nil
}

func wasmSetSustain(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || tuner == nil {
		return nil
	}
	if args[0].Bool() {
		tuner.SustainDown()
	} else {
		tuner.SustainUp()
	}
	return nil
}

func wasmPitchBend(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || tuner == nil {
		return nil
	}
	tuner.PitchBend(args[0].Float())
	return nil
}

func wasmModWheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || tuner == nil {
		return nil
	}
	tuner.ModWheel(args[0].Float())
	return nil
}

func wasmSetReferenceMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || tuner == nil {
		return nil
	}
	tuner.SetReferenceModeName(args[0].String())
	return nil
}

func wasmSetRetuneMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || tuner == nil {
		return nil
	}
	glide := synth.DefaultConfig().GlideSeconds
	if len(args) >= 2 {
		glide = args[1].Float()
	}
	tuner.SetRetuneModeName(args[0].String(), glide)
	return nil
}

func wasmResetReference(this js.Value, args []js.Value) interface{} {
	if tuner == nil {
		return nil
	}
	tuner.ResetReference()
	return nil
}

// wasmState returns the engine state snapshot as a JSON string.
func wasmState(this js.Value, args []js.Value) interface{} {
	if tuner == nil {
		return "{}"
	}
	b, err := json.Marshal(tuner.State())
	if err != nil {
		return "{}"
	}
	return string(b)
}

func wasmSetRoomWet(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || renderer == nil {
		return nil
	}
	renderer.SetRoomWetMix(float32(args[0].Float()))
	return nil
}

func wasmLoadIR(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || renderer == nil {
		return nil
	}

	// Get ArrayBuffer from JavaScript
	arrayBuffer := args[0]
	length := arrayBuffer.Get("byteLength").Int()

	if length == 0 {
		println("IR data is empty")
		return nil
	}

	// Copy data from JS to Go
	irData := make([]byte, length)
	js.CopyBytesToGo(irData, arrayBuffer)

	// The WAV decoder wants a file, so stage the bytes in /tmp.
	tmpFile := "/tmp/ir.wav"
	if err := os.WriteFile(tmpFile, irData, 0644); err != nil {
		println("Failed to write IR file:", err.Error())
		return nil
	}
	if err := renderer.SetRoomIRFromWAV(tmpFile); err != nil {
		println("Failed to load IR:", err.Error())
		return nil
	}

	println("IR loaded successfully:", length, "bytes")
	return nil
}

func wasmProcessBlock(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || renderer == nil {
		return 0
	}

	numFrames := args[0].Int()
	if numFrames > 128 {
		numFrames = 128
	}

	// Process audio
	output := renderer.Process(numFrames)

	// Copy to persistent buffer
	copy(outputBuffer, output)

	// Return pointer to buffer in WASM linear memory
	ptr := &outputBuffer[0]
	return js.ValueOf(uintptr(unsafe.Pointer(ptr)))
}

func wasmGetMemoryBuffer(this js.Value, args []js.Value) interface{} {
	// Return WASM memory buffer for access from JS
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
