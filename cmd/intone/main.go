package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ebitengine/oto/v3"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/lukeburns/intone/audio"
	"github.com/lukeburns/intone/preset"
	"github.com/lukeburns/intone/synth"
	"github.com/lukeburns/intone/tuning"
)

var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault
// so the stdlib log package routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// player owns both engines behind one mutex. The MIDI goroutine drives
// the tuning engine, whose output commands land in the render engine, and
// the oto goroutine pulls rendered blocks through Read. Tuning commands
// must never interleave with a render, so both paths take the lock.
type player struct {
	mu    sync.Mutex
	tuner *synth.Engine
	audio *audio.Engine
}

// Read renders interleaved stereo float32 frames as little-endian bytes.
func (p *player) Read(b []byte) (int, error) {
	frames := len(b) / 8
	if frames < 1 {
		return 0, nil
	}
	p.mu.Lock()
	out := p.audio.Process(frames)
	p.mu.Unlock()
	for i, s := range out {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(s))
	}
	return len(out) * 4, nil
}

func (p *player) handleMessage(msg midi.Message, _ int32) {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		p.mu.Lock()
		res := p.tuner.NoteOn(int(key), int(vel))
		p.mu.Unlock()
		if res.Interval != nil {
			logger.Info("note on",
				"note", tuning.NoteName(res.Note),
				"freq", fmt.Sprintf("%.2f", res.Frequency),
				"interval", res.Interval.Name,
				"reference", tuning.NoteName(res.Interval.ReferenceNote))
		} else {
			logger.Info("note on",
				"note", tuning.NoteName(res.Note),
				"freq", fmt.Sprintf("%.2f", res.Frequency),
				"interval", "equal temperament")
		}
		if res.StolenNote >= 0 {
			logger.Debug("voice stolen", "stolen", tuning.NoteName(res.StolenNote), "slot", res.Slot)
		}
	case msg.GetNoteEnd(&ch, &key):
		p.mu.Lock()
		moved := p.tuner.NoteOff(int(key))
		p.mu.Unlock()
		p.logRetunes(moved)
	case msg.GetControlChange(&ch, &cc, &val):
		p.controlChange(cc, val)
	case msg.GetPitchBend(&ch, &rel, &abs):
		p.mu.Lock()
		p.tuner.PitchBend(float64(rel) / 8192.0)
		p.mu.Unlock()
	default:
		logger.Debug("midi: unhandled message", "msg", msg.String())
	}
}

func (p *player) controlChange(cc, val uint8) {
	switch cc {
	case 64: // sustain pedal
		p.mu.Lock()
		var moved []synth.Retuned
		if val >= 64 {
			p.tuner.SustainDown()
		} else {
			moved = p.tuner.SustainUp()
		}
		p.mu.Unlock()
		p.logRetunes(moved)
	case 1: // mod wheel
		p.mu.Lock()
		p.tuner.ModWheel(float64(val) / 127.0)
		p.mu.Unlock()
	case 123: // all notes off
		p.mu.Lock()
		p.tuner.ResetReference()
		p.mu.Unlock()
		logger.Info("all notes off")
	}
}

func (p *player) logRetunes(moved []synth.Retuned) {
	for _, m := range moved {
		logger.Info("retuned",
			"note", tuning.NoteName(m.Note),
			"freq", fmt.Sprintf("%.2f", m.Frequency))
	}
}

func openInput(drv *rtmididrv.Driver, pattern string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return nil, fmt.Errorf("no MIDI input ports found")
	}
	if pattern == "" {
		return ins[0], nil
	}
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(pattern)) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input matches %q", pattern)
}

func main() {
	list := flag.Bool("list", false, "list MIDI input ports and exit")
	port := flag.String("port", "", "MIDI input port name substring (default: first port)")
	presetPath := flag.String("preset", "", "preset JSON file path")
	refMode := flag.String("mode", "", "reference mode override: lowest, sticky-random, harmonic-center")
	retune := flag.String("retune", "", "retune mode override: static, smooth, instant")
	glide := flag.Float64("glide", -1, "glide time in seconds for smooth retuning")
	voices := flag.Int("voices", 0, "voice count override")
	irPath := flag.String("ir", "", "room IR WAV path override")
	wet := flag.Float64("wet", -1, "room wet mix override (0..1)")
	sampleRate := flag.Int("sample-rate", 48000, "output sample rate in Hz")
	bufferMs := flag.Int("buffer", 20, "output buffer in milliseconds")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	initLogger(*debug)

	cfg := synth.DefaultConfig()
	params := audio.NewDefaultParams()
	if *presetPath != "" {
		var err error
		cfg, params, err = preset.LoadJSON(*presetPath)
		if err != nil {
			logger.Error("preset load failed", "path", *presetPath, "err", err)
			os.Exit(1)
		}
	}
	if *refMode != "" {
		mode, err := synth.ParseReferenceMode(*refMode)
		if err != nil {
			logger.Error("bad reference mode", "err", err)
			os.Exit(1)
		}
		cfg.ReferenceMode = mode
	}
	if *retune != "" {
		mode, err := synth.ParseRetuneMode(*retune)
		if err != nil {
			logger.Error("bad retune mode", "err", err)
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

	drv, err := rtmididrv.New()
	if err != nil {
		logger.Error("midi driver init failed", "err", err)
		os.Exit(1)
	}
	defer drv.Close()

	if *list {
		ins, err := drv.Ins()
		if err != nil {
			logger.Error("list inputs failed", "err", err)
			os.Exit(1)
		}
		for i, in := range ins {
			fmt.Printf("%d: %s\n", i, in.String())
		}
		return
	}

	ae := audio.NewEngine(*sampleRate, cfg.MaxVoices, params)
	if params.RoomIRWavPath != "" {
		if err := ae.SetRoomIRFromWAV(params.RoomIRWavPath); err != nil {
			logger.Warn("room ir load failed, continuing dry", "path", params.RoomIRWavPath, "err", err)
		}
	}

	cfg.Output = ae
	cfg.Logger = logger
	tuner, err := synth.NewEngine(cfg)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}
	p := &player{tuner: tuner, audio: ae}

	in, err := openInput(drv, *port)
	if err != nil {
		logger.Error("midi input unavailable", "err", err)
		os.Exit(1)
	}
	if err := in.Open(); err != nil {
		logger.Error("midi open failed", "port", in.String(), "err", err)
		os.Exit(1)
	}
	defer in.Close()

	stop, err := midi.ListenTo(in, p.handleMessage, midi.HandleError(func(listenErr error) {
		logger.Warn("midi listener error", "err", listenErr)
	}))
	if err != nil {
		logger.Error("midi listen failed", "port", in.String(), "err", err)
		os.Exit(1)
	}
	defer stop()

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(*bufferMs) * time.Millisecond,
	})
	if err != nil {
		logger.Error("audio context init failed", "err", err)
		os.Exit(1)
	}
	<-ready

	out := ctx.NewPlayer(p)
	out.Play()
	defer out.Close()

	st := tuner.State()
	logger.Info("intone running",
		"port", in.String(),
		"reference_mode", st.ReferenceMode,
		"retune_mode", st.RetuneMode,
		"voices", st.MaxVoices,
		"sample_rate", *sampleRate)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}
