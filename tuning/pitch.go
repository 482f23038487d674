package tuning

import (
	"math"
	"strconv"
)

// A4 (MIDI note 69) anchors equal temperament at 440 Hz.
const (
	ReferenceNote      = 69
	ReferenceFrequency = 440.0
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// EqualTemperament returns the 12-TET frequency of a MIDI note.
func EqualTemperament(note int) float64 {
	return ReferenceFrequency * math.Pow(2, float64(note-ReferenceNote)/12)
}

// JustFrequency tunes targetNote as a just ratio from a reference pitch.
func JustFrequency(refFreq float64, refNote, targetNote int) float64 {
	return refFreq * RatioFor(targetNote-refNote).Float()
}

// Cents measures the signed offset of actual from reference in cents.
func Cents(actual, reference float64) float64 {
	return 1200 * math.Log2(actual/reference)
}

// CentsRatio converts a cents offset to a frequency multiplier.
func CentsRatio(cents float64) float64 {
	return math.Pow(2, cents/1200)
}

// NearestNote returns the MIDI note closest to freq in equal temperament.
func NearestNote(freq float64) int {
	if freq <= 0 {
		return 0
	}
	return int(math.Round(float64(ReferenceNote) + 12*math.Log2(freq/ReferenceFrequency)))
}

// NoteName renders a MIDI note as pitch class plus octave, e.g. "C4".
func NoteName(note int) string {
	pc := note % 12
	if pc < 0 {
		pc += 12
	}
	octave := note/12 - 1
	if note < 0 && note%12 != 0 {
		octave--
	}
	return noteNames[pc] + strconv.Itoa(octave)
}
