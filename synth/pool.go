package synth

// Pool is the fixed-capacity voice allocator. Slots are created once and
// reused; startOrder increases monotonically across allocations so the
// oldest sounding voice is always well defined.
type Pool struct {
	voices    []*Voice
	nextOrder uint64
}

// NewPool creates a pool with the given number of voice slots.
func NewPool(capacity int) *Pool {
	p := &Pool{voices: make([]*Voice, capacity)}
	for i := range p.voices {
		p.voices[i] = &Voice{slot: i, refNote: -1}
	}
	return p
}

// Capacity returns the number of slots.
func (p *Pool) Capacity() int { return len(p.voices) }

// Voice returns the voice at a slot index.
func (p *Pool) Voice(slot int) *Voice { return p.voices[slot] }

// Active returns the sounding voices in ascending slot order.
func (p *Pool) Active() []*Voice {
	out := make([]*Voice, 0, len(p.voices))
	for _, v := range p.voices {
		if v.active {
			out = append(out, v)
		}
	}
	return out
}

// ActiveCount returns the number of sounding voices.
func (p *Pool) ActiveCount() int {
	n := 0
	for _, v := range p.voices {
		if v.active {
			n++
		}
	}
	return n
}

// FindActive returns the sounding voice holding note, or nil. Note numbers
// are unique among active voices because Allocate retriggers them.
func (p *Pool) FindActive(note int) *Voice {
	for _, v := range p.voices {
		if v.active && v.note == note {
			return v
		}
	}
	return nil
}

// Allocate picks the slot for a new note: an active voice holding the same
// note is retriggered, otherwise the first idle slot is used, otherwise the
// oldest active voice is stolen and its note reported.
func (p *Pool) Allocate(note int) (v *Voice, stolenNote int, stolen bool) {
	if v := p.FindActive(note); v != nil {
		return v, 0, false
	}
	for _, cand := range p.voices {
		if !cand.active {
			return cand, 0, false
		}
	}

	oldest := p.voices[0]
	for _, cand := range p.voices[1:] {
		if cand.startOrder < oldest.startOrder {
			oldest = cand
		}
	}
	return oldest, oldest.note, true
}

func (p *Pool) nextStartOrder() uint64 {
	p.nextOrder++
	return p.nextOrder
}

func (p *Pool) stopAll(out Output) {
	for _, v := range p.voices {
		if v.active {
			v.stop(out)
		}
	}
}
