package automation

import "sort"

// Curve is a time-sorted keyframe list. A Curve taken from a Store is
// never mutated.
type Curve []Keyframe

// ValueAt evaluates the curve at time. Before the first keyframe the first
// value holds, after the last the last value holds. Between two keyframes
// the left one's interpolation mode shapes the segment. Where several
// keyframes share a time, the one added last wins.
func (c Curve) ValueAt(time, def float64) float64 {
	if len(c) == 0 {
		return def
	}

	i := c.index(time)

	switch {
	case i < 0:
		return c[0].Value
	case i == len(c)-1:
		return c[i].Value
	}

	k1, k2 := c[i], c[i+1]
	if k1.Interpolation == Step || time == k1.Time {
		return k1.Value
	}

	progress := (time - k1.Time) / (k2.Time - k1.Time)

	return k1.Value + (k2.Value-k1.Value)*k1.Interpolation.shape(progress)
}

// index returns the position of the last keyframe at or before time, or
// -1 when time precedes the curve.
func (c Curve) index(time float64) int {
	return sort.Search(len(c), func(i int) bool { return c[i].Time > time }) - 1
}

// modeAt is the interpolation of the segment containing time. Before the
// first keyframe the curve is flat, which linear reproduces.
func (c Curve) modeAt(time float64) Interpolation {
	if i := c.index(time); i >= 0 {
		return c[i].Interpolation
	}

	return Linear
}
