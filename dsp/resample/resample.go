// Package resample converts whole buffers between sample rates with a
// Kaiser-windowed sinc interpolator.
//
// The prototype filter is linear phase with an integer group delay at the
// upsampled rate, which the converter removes, so output sample m lines up
// exactly with input time m / outRate.
package resample

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRate is returned for non-positive or non-finite rates.
var ErrInvalidRate = errors.New("resample: invalid sample rate")

// Quality trades CPU for stopband attenuation.
type Quality int

const (
	QualityFast Quality = iota
	QualityBalanced
	QualityBest
)

type profile struct {
	halfTaps int // input samples on each side of the centre
	cutoff   float64
	beta     float64
}

func (q Quality) profile() profile {
	switch q {
	case QualityFast:
		return profile{halfTaps: 8, cutoff: 0.88, beta: 5}
	case QualityBest:
		return profile{halfTaps: 32, cutoff: 0.96, beta: 9}
	default:
		return profile{halfTaps: 16, cutoff: 0.92, beta: 7.5}
	}
}

// Converter holds a designed filter for one rate pair. It is immutable
// and safe for concurrent use.
type Converter struct {
	up, down int
	delay    int
	taps     []float64
}

// New designs a converter from inRate to outRate. The rate ratio is
// approximated by a fraction with a denominator of at most 4096.
func New(inRate, outRate float64, q Quality) (*Converter, error) {
	for _, r := range []float64{inRate, outRate} {
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRate, r)
		}
	}

	up, down := ratio(outRate/inRate, 4096)
	p := q.profile()

	c := &Converter{up: up, down: down, delay: p.halfTaps * up}
	c.taps = design(2*c.delay+1, float64(max(up, down)), p)

	// Unity gain through every polyphase branch.
	sum := 0.0
	for _, h := range c.taps {
		sum += h
	}

	scale := float64(up) / sum
	for i := range c.taps {
		c.taps[i] *= scale
	}

	return c, nil
}

// Ratio returns the reduced up/down factors.
func (c *Converter) Ratio() (up, down int) { return c.up, c.down }

// OutputLen returns the number of frames Convert produces for n input
// frames.
func (c *Converter) OutputLen(n int) int {
	if n <= 0 {
		return 0
	}

	return (n-1)*c.up/c.down + 1
}

// Convert resamples in and returns a new slice. Samples outside the input
// are treated as silence.
func (c *Converter) Convert(in []float64) []float64 {
	if c.up == c.down {
		return append([]float64(nil), in...)
	}

	out := make([]float64, c.OutputLen(len(in)))
	n := len(c.taps)

	for m := range out {
		base := m*c.down + c.delay

		// Input frames j whose zero-stuffed position j*up falls under the
		// filter: 0 <= base - j*up < n.
		lo := max(0, ceilDiv(base-n+1, c.up))
		hi := min(len(in)-1, base/c.up)

		y := 0.0
		for j := lo; j <= hi; j++ {
			y += c.taps[base-j*c.up] * in[j]
		}

		out[m] = y
	}

	return out
}

// Convert is a one-shot helper around New and Converter.Convert.
func Convert(in []float64, inRate, outRate float64, q Quality) ([]float64, error) {
	c, err := New(inRate, outRate, q)
	if err != nil {
		return nil, err
	}

	return c.Convert(in), nil
}

func design(n int, factor float64, p profile) []float64 {
	fc := 0.5 / factor * p.cutoff
	centre := float64(n-1) / 2
	i0beta := besselI0(p.beta)

	taps := make([]float64, n)
	for i := range taps {
		t := float64(i) - centre
		r := 2*float64(i)/float64(n-1) - 1
		w := besselI0(p.beta*math.Sqrt(math.Max(0, 1-r*r))) / i0beta
		taps[i] = 2 * fc * sinc(2*fc*t) * w
	}

	return taps
}

// ratio approximates v by a continued fraction with denominator <= maxDen.
func ratio(v float64, maxDen int) (num, den int) {
	p0, q0 := 1.0, 0.0
	p1, q1 := math.Floor(v), 1.0
	x := v

	for {
		frac := x - math.Floor(x)
		if frac < 1e-12 {
			break
		}

		x = 1 / frac
		a := math.Floor(x)

		p2, q2 := a*p1+p0, a*q1+q0
		if q2 > float64(maxDen) {
			break
		}

		p0, q0, p1, q1 = p1, q1, p2, q2
	}

	num, den = int(math.Round(p1)), int(math.Round(q1))
	if num <= 0 || den <= 0 {
		return 1, 1
	}

	g := gcd(num, den)

	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return -((-a) / b)
	}

	return (a + b - 1) / b
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	x2 := x * x / 4

	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)
		sum += term

		if term < 1e-16*sum {
			break
		}
	}

	return sum
}
