// Package window generates the tapering windows used for spectrum analysis.
package window

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris
)

var (
	hannCoeffs           = []float64{0.5, -0.5}
	hammingCoeffs        = []float64{0.54, -0.46}
	blackmanCoeffs       = []float64{0.42, -0.5, 0.08}
	blackmanHarrisCoeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
)

func (t Type) String() string {
	switch t {
	case TypeRectangular:
		return "rectangular"
	case TypeHann:
		return "hann"
	case TypeHamming:
		return "hamming"
	case TypeBlackman:
		return "blackman"
	case TypeBlackmanHarris:
		return "blackman-harris"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

type config struct {
	periodic bool
}

// Option configures window generation.
type Option func(*config)

// WithPeriodic selects the periodic form used for FFT framing instead of
// the symmetric form.
func WithPeriodic() Option {
	return func(c *config) { c.periodic = true }
}

// Generate returns window coefficients of the given length, or nil for a
// non-positive length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	den := float64(length - 1)
	if cfg.periodic {
		den = float64(length)
	}

	out := make([]float64, length)
	for i := range out {
		x := 0.0
		if den > 0 {
			x = float64(i) / den
		}

		out[i] = eval(t, x)
	}

	return out
}

// Apply multiplies buf in place by coeffs. The lengths must match.
func Apply(buf, coeffs []float64) error {
	if len(buf) != len(coeffs) {
		return fmt.Errorf("window: length mismatch: %d samples, %d coefficients", len(buf), len(coeffs))
	}

	vecmath.MulBlockInPlace(buf, coeffs)

	return nil
}

// CoherentGain returns the mean of the coefficients, the amplitude a
// full-scale bin-centred sine is scaled by.
func CoherentGain(coeffs []float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}

	return sum / float64(len(coeffs))
}

func eval(t Type, x float64) float64 {
	switch t {
	case TypeHann:
		return cosineSum(x, hannCoeffs)
	case TypeHamming:
		return cosineSum(x, hammingCoeffs)
	case TypeBlackman:
		return cosineSum(x, blackmanCoeffs)
	case TypeBlackmanHarris:
		return cosineSum(x, blackmanHarrisCoeffs)
	default:
		return 1
	}
}

func cosineSum(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}

	return sum
}
