package synth

import "sort"

// sustainTracker separates three things the pedal logic must not conflate:
// which physical keys are down, which note numbers had their release
// deferred, and which voice slots those deferrals belong to. Slots rather
// than note numbers identify what a pedal-up releases, because a note
// number can pass through several voice instances while the pedal is held.
type sustainTracker struct {
	pedalDown      bool
	keysHeld       map[int]struct{}
	sustainedNotes map[int]struct{}
	sustainedSlots map[int]struct{}
}

func newSustainTracker() *sustainTracker {
	return &sustainTracker{
		keysHeld:       make(map[int]struct{}),
		sustainedNotes: make(map[int]struct{}),
		sustainedSlots: make(map[int]struct{}),
	}
}

func (s *sustainTracker) keyDown(note int) {
	s.keysHeld[note] = struct{}{}
}

func (s *sustainTracker) keyUp(note int) {
	delete(s.keysHeld, note)
}

func (s *sustainTracker) held(note int) bool {
	_, ok := s.keysHeld[note]
	return ok
}

// deferRelease records a note-off swallowed by the pedal.
func (s *sustainTracker) deferRelease(note, slot int) {
	s.sustainedNotes[note] = struct{}{}
	s.sustainedSlots[slot] = struct{}{}
}

// pedalUp clears the pedal and returns the notes due for release (deferred
// and no longer physically held) plus the deferred slots, in ascending
// order. Both sustained sets are cleared; held keys keep sounding.
func (s *sustainTracker) pedalUp() (toRelease map[int]struct{}, slots []int) {
	s.pedalDown = false

	toRelease = make(map[int]struct{}, len(s.sustainedNotes))
	for note := range s.sustainedNotes {
		if !s.held(note) {
			toRelease[note] = struct{}{}
		}
	}

	slots = make([]int, 0, len(s.sustainedSlots))
	for slot := range s.sustainedSlots {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	s.sustainedNotes = make(map[int]struct{})
	s.sustainedSlots = make(map[int]struct{})
	return toRelease, slots
}

// clearDeferred drops pending deferrals without touching the pedal flag or
// physically held keys; used when every voice has been force-stopped.
func (s *sustainTracker) clearDeferred() {
	s.sustainedNotes = make(map[int]struct{})
	s.sustainedSlots = make(map[int]struct{})
}
