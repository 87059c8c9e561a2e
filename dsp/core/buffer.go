package core

import "github.com/cwbudde/algo-vecmath"

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}

	if cap(buf) >= n {
		return buf[:n]
	}

	return make([]float64, n)
}

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	clear(buf)
}

// Accumulate adds src into dst over their common length.
func Accumulate(dst, src []float64) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}

	vecmath.AddBlockInPlace(dst[:n], src[:n])
}

// Scale multiplies every element of buf by gain. A unity gain is a no-op.
func Scale(buf []float64, gain float64) {
	if gain == 1 || len(buf) == 0 {
		return
	}

	vecmath.ScaleBlockInPlace(buf, gain)
}

// Interleave writes the planar channels frame by frame into dst as float32
// and returns the number of frames written. All channels must share one
// length; dst must hold len(channels)*frames values.
func Interleave(dst []float32, channels ...[]float64) int {
	if len(channels) == 0 {
		return 0
	}

	frames := len(channels[0])
	if limit := len(dst) / len(channels); frames > limit {
		frames = limit
	}

	for i := range frames {
		for ch, data := range channels {
			dst[i*len(channels)+ch] = float32(data[i])
		}
	}

	return frames
}
