package tuning

import "strconv"

// Ratio is an exact frequency ratio between two pitches.
type Ratio struct {
	Num int
	Den int
}

// Float returns the ratio as a float64 multiplier.
func (r Ratio) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

// String renders the ratio as "num/den".
func (r Ratio) String() string {
	return strconv.Itoa(r.Num) + "/" + strconv.Itoa(r.Den)
}

// degreeRatios holds the five-limit just ratios for semitone degrees 0..12.
var degreeRatios = [13]Ratio{
	{1, 1},   // unison
	{16, 15}, // minor second
	{9, 8},   // major second
	{6, 5},   // minor third
	{5, 4},   // major third
	{4, 3},   // perfect fourth
	{45, 32}, // tritone
	{3, 2},   // perfect fifth
	{8, 5},   // minor sixth
	{5, 3},   // major sixth
	{9, 5},   // minor seventh
	{15, 8},  // major seventh
	{2, 1},   // octave
}

var degreeNames = [13]string{
	"unison",
	"minor second",
	"major second",
	"minor third",
	"major third",
	"perfect fourth",
	"tritone",
	"perfect fifth",
	"minor sixth",
	"major sixth",
	"minor seventh",
	"major seventh",
	"octave",
}

// RatioFor maps a signed semitone interval to its just-intonation ratio.
// Intervals wider than an octave fold: the degree ratio is multiplied by
// 2 per whole octave. Negative intervals return the inverted ratio.
func RatioFor(semitones int) Ratio {
	neg := semitones < 0
	if neg {
		semitones = -semitones
	}
	octaves := semitones / 12
	degree := semitones % 12

	r := degreeRatios[degree]
	num, den := r.Num, r.Den
	for i := 0; i < octaves; i++ {
		num *= 2
	}
	g := gcd(num, den)
	num /= g
	den /= g
	if neg {
		num, den = den, num
	}
	return Ratio{Num: num, Den: den}
}

// IntervalName names a signed semitone interval. Compound intervals carry
// an octave count, descending intervals a "down" suffix.
func IntervalName(semitones int) string {
	if semitones == 0 {
		return degreeNames[0]
	}
	neg := semitones < 0
	if neg {
		semitones = -semitones
	}
	octaves := semitones / 12
	degree := semitones % 12

	name := degreeNames[degree]
	if degree == 0 {
		// Whole octaves only.
		name = degreeNames[12]
		octaves--
	}
	for i := 0; i < octaves; i++ {
		name += " + octave"
	}
	if neg {
		name += " down"
	}
	return name
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
