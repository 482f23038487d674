package synth

import (
	"fmt"
	"strings"

	"github.com/lukeburns/intone/tuning"
)

// RetuneMode decides what happens to the remaining voices when the
// reference note goes away.
type RetuneMode int

const (
	// RetuneStatic leaves sounding voices at their current frequency.
	RetuneStatic RetuneMode = iota
	// RetuneSmooth glides voices to their new just frequencies.
	RetuneSmooth
	// RetuneInstant snaps voices to their new just frequencies.
	RetuneInstant
)

func (m RetuneMode) String() string {
	switch m {
	case RetuneSmooth:
		return "smooth"
	case RetuneInstant:
		return "instant"
	default:
		return "static"
	}
}

// ParseRetuneMode maps a mode name to its value. Unknown names return an
// error; the live event path clamps instead (see SetRetuneModeName).
func ParseRetuneMode(s string) (RetuneMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "none":
		return RetuneStatic, nil
	case "smooth", "glide":
		return RetuneSmooth, nil
	case "instant", "snap":
		return RetuneInstant, nil
	}
	return RetuneStatic, fmt.Errorf("unknown retune mode %q", s)
}

// Retuned reports one voice moved by a reference change.
type Retuned struct {
	Note      int     `json:"note"`
	Frequency float64 `json:"frequency"`
}

// retuneAll moves every other active voice to its just frequency relative
// to the new reference and returns what moved, in slot order. Static mode
// never reaches here.
func (e *Engine) retuneAll(newRef *Voice) []Retuned {
	glide := 0.0
	if e.retuneMode == RetuneSmooth {
		glide = e.glideSeconds
	}

	var moved []Retuned
	for _, v := range e.pool.Active() {
		if v == newRef {
			continue
		}
		freq := tuning.JustFrequency(newRef.frequency, newRef.note, v.note)
		v.retune(e.out, freq, glide, newRef.note, newRef.frequency)
		moved = append(moved, Retuned{Note: v.note, Frequency: freq})
	}
	return moved
}
