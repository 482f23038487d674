package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/internal/wavio"
	"github.com/lukeburns/intone/preset"
	"github.com/lukeburns/intone/synth"
	"github.com/lukeburns/intone/tuning"
)

// noteEvent is one scheduled note with on/off times in seconds.
type noteEvent struct {
	note  int
	onAt  float64
	offAt float64
}

// pedalSpan is one sustain pedal press, down..up in seconds.
type pedalSpan struct {
	downAt float64
	upAt   float64
}

// parseEvents parses "60@0,64@0.5,67@1-2.5": each entry is note@start or
// note@start-end. Without an end the note is held for hold seconds.
func parseEvents(s string, hold float64) ([]noteEvent, error) {
	var events []noteEvent
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		noteStr, times, ok := strings.Cut(entry, "@")
		if !ok {
			return nil, fmt.Errorf("event %q: expected note@start[-end]", entry)
		}
		note, err := strconv.Atoi(strings.TrimSpace(noteStr))
		if err != nil || note < 0 || note > 127 {
			return nil, fmt.Errorf("event %q: bad note %q (expected 0..127)", entry, noteStr)
		}
		startStr, endStr, hasEnd := strings.Cut(times, "-")
		start, err := strconv.ParseFloat(strings.TrimSpace(startStr), 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("event %q: bad start time %q", entry, startStr)
		}
		end := start + hold
		if hasEnd {
			end, err = strconv.ParseFloat(strings.TrimSpace(endStr), 64)
			if err != nil || end <= start {
				return nil, fmt.Errorf("event %q: bad end time %q", entry, endStr)
			}
		}
		events = append(events, noteEvent{note: note, onAt: start, offAt: end})
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no events")
	}
	return events, nil
}

// parsePedal parses "0.5-2,3-4" into sustain pedal spans.
func parsePedal(s string) ([]pedalSpan, error) {
	var spans []pedalSpan
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		downStr, upStr, ok := strings.Cut(entry, "-")
		if !ok {
			return nil, fmt.Errorf("pedal span %q: expected down-up", entry)
		}
		down, err := strconv.ParseFloat(strings.TrimSpace(downStr), 64)
		if err != nil || down < 0 {
			return nil, fmt.Errorf("pedal span %q: bad down time", entry)
		}
		up, err := strconv.ParseFloat(strings.TrimSpace(upStr), 64)
		if err != nil || up <= down {
			return nil, fmt.Errorf("pedal span %q: bad up time", entry)
		}
		spans = append(spans, pedalSpan{downAt: down, upAt: up})
	}
	return spans, nil
}

// command is a timeline entry applied at the start of the block that
// contains its frame.
type command struct {
	frame int
	run   func()
}

func main() {
	events := flag.String("events", "60@0,64@0.5,67@1", "note timeline: note@start[-end],... times in seconds")
	pedal := flag.String("sustain", "", "sustain pedal spans: down-up,... times in seconds")
	velocity := flag.Int("velocity", 100, "MIDI velocity for all notes (1-127)")
	hold := flag.Float64("hold", 2.0, "hold time in seconds for events without an end")
	presetPath := flag.String("preset", "", "preset JSON file path")
	refMode := flag.String("mode", "", "reference mode override: lowest, sticky-random, harmonic-center")
	retune := flag.String("retune", "", "retune mode override: static, smooth, instant")
	glide := flag.Float64("glide", -1, "glide time in seconds for smooth retuning")
	voices := flag.Int("voices", 0, "voice count override")
	irPath := flag.String("ir", "", "room IR WAV path override")
	wet := flag.Float64("wet", -1, "room wet mix override (0..1)")
	sampleRate := flag.Int("sample-rate", 48000, "render sample rate in Hz")
	maxDuration := flag.Float64("max-duration", 20.0, "maximum render duration in seconds")
	output := flag.String("output", "intone.wav", "output WAV file path")
	flag.Parse()

	cfg := synth.DefaultConfig()
	params := audio.NewDefaultParams()
	if *presetPath != "" {
		var err error
		cfg, params, err = preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
	}
	if *refMode != "" {
		mode, err := synth.ParseReferenceMode(*refMode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.ReferenceMode = mode
	}
	if *retune != "" {
		mode, err := synth.ParseRetuneMode(*retune)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.RetuneMode = mode
	}
	if *glide >= 0 {
		cfg.GlideSeconds = *glide
	}
	if *voices > 0 {
		cfg.MaxVoices = *voices
	}
	if *irPath != "" {
		params.RoomIRWavPath = *irPath
	}
	if *wet >= 0 {
		params.RoomWetMix = float32(*wet)
	}

	notes, err := parseEvents(*events, *hold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -events: %v\n", err)
		os.Exit(1)
	}
	spans, err := parsePedal(*pedal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -sustain: %v\n", err)
		os.Exit(1)
	}

	ae := audio.NewEngine(*sampleRate, cfg.MaxVoices, params)
	if params.RoomIRWavPath != "" {
		if err := ae.SetRoomIRFromWAV(params.RoomIRWavPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading room IR %q: %v\n", params.RoomIRWavPath, err)
			os.Exit(1)
		}
	}
	cfg.Output = ae
	tuner, err := synth.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rate := float64(*sampleRate)
	frameOf := func(t float64) int { return int(t * rate) }

	var cmds []command
	lastEventFrame := 0
	for _, ev := range notes {
		ev := ev
		cmds = append(cmds, command{frameOf(ev.onAt), func() {
			t := float64(frameOf(ev.onAt)) / rate
			res := tuner.NoteOn(ev.note, *velocity)
			if res.Interval != nil {
				fmt.Printf("%7.3fs  on  %-4s %9.3f Hz  %s of %s\n",
					t, tuning.NoteName(res.Note), res.Frequency,
					res.Interval.Name, tuning.NoteName(res.Interval.ReferenceNote))
			} else {
				fmt.Printf("%7.3fs  on  %-4s %9.3f Hz  equal temperament\n",
					t, tuning.NoteName(res.Note), res.Frequency)
			}
		}})
		cmds = append(cmds, command{frameOf(ev.offAt), func() {
			t := float64(frameOf(ev.offAt)) / rate
			fmt.Printf("%7.3fs  off %s\n", t, tuning.NoteName(ev.note))
			printRetunes(t, tuner.NoteOff(ev.note))
		}})
		if f := frameOf(ev.offAt); f > lastEventFrame {
			lastEventFrame = f
		}
	}
	for _, sp := range spans {
		sp := sp
		cmds = append(cmds, command{frameOf(sp.downAt), func() {
			fmt.Printf("%7.3fs  pedal down\n", float64(frameOf(sp.downAt))/rate)
			tuner.SustainDown()
		}})
		cmds = append(cmds, command{frameOf(sp.upAt), func() {
			t := float64(frameOf(sp.upAt)) / rate
			fmt.Printf("%7.3fs  pedal up\n", t)
			printRetunes(t, tuner.SustainUp())
		}})
		if f := frameOf(sp.upAt); f > lastEventFrame {
			lastEventFrame = f
		}
	}
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].frame < cmds[j].frame })

	blockSize := 128
	maxFrames := int(*maxDuration * rate)
	if maxFrames <= lastEventFrame {
		maxFrames = lastEventFrame + blockSize
	}
	samples := make([]float32, 0, maxFrames/4*2)

	frame := 0
	next := 0
	for frame < maxFrames {
		n := blockSize
		if frame+n > maxFrames {
			n = maxFrames - frame
		}
		for next < len(cmds) && cmds[next].frame <= frame {
			cmds[next].run()
			next++
		}
		samples = append(samples, ae.Process(n)...)
		frame += n

		if next >= len(cmds) && frame > lastEventFrame && ae.Silent() {
			if tail := ae.TailFrames(); tail > 0 {
				samples = append(samples, ae.Process(tail)...)
				frame += tail
			}
			break
		}
	}

	if err := wavio.WriteStereo(*output, samples, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d frames, %.3fs)\n", *output, frame, float64(frame)/rate)
}

func printRetunes(t float64, moved []synth.Retuned) {
	for _, m := range moved {
		fmt.Printf("%7.3fs  retune %-4s %9.3f Hz\n", t, tuning.NoteName(m.Note), m.Frequency)
	}
}
