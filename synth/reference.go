package synth

import (
	"fmt"
	"math/rand"
	"strings"
)

// ReferenceMode selects how the engine chooses the note everything else
// tunes against.
type ReferenceMode int

const (
	// ReferenceLowestNote pins the reference to the lowest sounding note.
	ReferenceLowestNote ReferenceMode = iota
	// ReferenceStickyRandom picks a random sounding note and keeps it
	// until that voice goes silent.
	ReferenceStickyRandom
	// ReferenceHarmonicCenter scores every sounding note for consonance
	// against the others and keeps the winner until it goes silent.
	ReferenceHarmonicCenter
)

func (m ReferenceMode) String() string {
	switch m {
	case ReferenceStickyRandom:
		return "sticky-random"
	case ReferenceHarmonicCenter:
		return "harmonic-center"
	default:
		return "lowest"
	}
}

// ParseReferenceMode maps a mode name to its value. Unknown names return
// an error; the live event path clamps instead (see SetReferenceModeName).
func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowest", "lowest-note":
		return ReferenceLowestNote, nil
	case "sticky-random", "random":
		return ReferenceStickyRandom, nil
	case "harmonic-center", "harmonic":
		return ReferenceHarmonicCenter, nil
	}
	return ReferenceLowestNote, fmt.Errorf("unknown reference mode %q", s)
}

// consonanceWeights rates a semitone class by how strongly it binds two
// notes: unison and fifth highest, tritone and minor second lowest.
var consonanceWeights = [12]int{10, 1, 3, 7, 7, 8, 1, 9, 6, 6, 3, 2}

// referenceMemory persists reference state across silent gaps. stickySlot
// is the pinned slot for the sticky modes (-1 when unset); the last
// reference fields let the first note after silence resume the previous
// harmony instead of snapping back to equal temperament.
type referenceMemory struct {
	stickySlot int
	lastNote   int
	lastFreq   float64
}

func newReferenceMemory() *referenceMemory {
	return &referenceMemory{stickySlot: -1, lastNote: -1}
}

func (m *referenceMemory) reset() {
	m.stickySlot = -1
	m.lastNote = -1
	m.lastFreq = 0
}

// selectReference returns the current reference voice among active, or nil
// when nothing sounds. The sticky modes record their pick in mem as an
// intentional side effect.
func selectReference(mode ReferenceMode, active []*Voice, mem *referenceMemory, rng *rand.Rand) *Voice {
	switch mode {
	case ReferenceStickyRandom:
		if v := stickyVoice(active, mem); v != nil {
			return v
		}
		if len(active) == 0 {
			mem.stickySlot = -1
			return nil
		}
		v := active[rng.Intn(len(active))]
		mem.stickySlot = v.slot
		return v

	case ReferenceHarmonicCenter:
		if v := stickyVoice(active, mem); v != nil {
			return v
		}
		if len(active) == 0 {
			mem.stickySlot = -1
			return nil
		}
		v := harmonicCenter(active)
		mem.stickySlot = v.slot
		return v

	default: // lowest note
		var lowest *Voice
		for _, v := range active {
			if lowest == nil || v.note < lowest.note {
				lowest = v
			}
		}
		return lowest
	}
}

func stickyVoice(active []*Voice, mem *referenceMemory) *Voice {
	if mem.stickySlot < 0 {
		return nil
	}
	for _, v := range active {
		if v.slot == mem.stickySlot {
			return v
		}
	}
	return nil
}

// harmonicCenter picks the voice most consonant with all others. Scores
// tie toward the lowest slot index because active is in slot order.
func harmonicCenter(active []*Voice) *Voice {
	if len(active) == 1 {
		return active[0]
	}
	best := active[0]
	bestScore := -1
	for _, v := range active {
		score := 0
		for _, u := range active {
			if u == v {
				continue
			}
			score += consonanceWeights[semitoneClass(u.note-v.note)]
		}
		if score > bestScore {
			best = v
			bestScore = score
		}
	}
	return best
}

func semitoneClass(interval int) int {
	c := interval % 12
	if c < 0 {
		c += 12
	}
	return c
}
