package core

import "math"

const defaultEpsilon = 1e-12

// SilenceDB is the floor used when a level has to be expressed in dB and
// the linear value is zero.
const SilenceDB = -120.0

// Clamp limits value to the inclusive range [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}

	return math.Min(math.Max(value, lo), hi)
}

// NearlyEqual reports whether a and b are equal within eps, either
// absolutely or relative to the larger magnitude.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))

	return largest != 0 && diff/largest <= eps
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FlushDenormals converts tiny denormal-like values to exact zero.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	switch {
	case linear < 0:
		return math.NaN()
	case linear == 0:
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// LevelDB converts a non-negative envelope level to dB, floored at SilenceDB.
func LevelDB(level float64) float64 {
	if level <= 0 {
		return SilenceDB
	}

	return math.Max(20*math.Log10(level), SilenceDB)
}
