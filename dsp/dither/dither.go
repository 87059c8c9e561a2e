// Package dither reduces floating point samples to integer PCM with
// optional dither noise and first-order noise shaping.
package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Type selects the probability distribution of the dither noise.
type Type int

const (
	// None rounds without noise.
	None Type = iota
	// Rectangular adds uniform noise of one LSB peak to peak.
	Rectangular
	// Triangular adds TPDF noise of two LSB peak to peak.
	Triangular
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Rectangular:
		return "rectangular"
	case Triangular:
		return "triangular"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

const (
	minBitDepth = 2
	maxBitDepth = 32
)

type config struct {
	typ    Type
	shaped bool
	rng    *rand.Rand
}

// Option configures a Quantizer.
type Option func(*config) error

// WithType selects the dither noise. The default is Triangular.
func WithType(t Type) Option {
	return func(c *config) error {
		if t < None || t > Triangular {
			return fmt.Errorf("dither: invalid type: %d", int(t))
		}

		c.typ = t

		return nil
	}
}

// WithNoiseShaping feeds the previous quantisation error back with
// first-order high-pass weighting, moving noise away from low
// frequencies.
func WithNoiseShaping(enabled bool) Option {
	return func(c *config) error {
		c.shaped = enabled
		return nil
	}
}

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(c *config) error {
		c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		return nil
	}
}

// Quantizer converts samples in [-1, 1] to signed integers of a fixed bit
// depth. It keeps error state and is not safe for concurrent use.
type Quantizer struct {
	bits   int
	typ    Type
	shaped bool
	rng    *rand.Rand

	scale  float64
	lo, hi int
	err    float64
}

// NewQuantizer creates a quantizer for bits-bit output.
func NewQuantizer(bits int, opts ...Option) (*Quantizer, error) {
	if bits < minBitDepth || bits > maxBitDepth {
		return nil, fmt.Errorf("dither: bit depth must be in [%d, %d]: %d", minBitDepth, maxBitDepth, bits)
	}

	cfg := config{typ: Triangular}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	full := math.Exp2(float64(bits - 1))

	return &Quantizer{
		bits:   bits,
		typ:    cfg.typ,
		shaped: cfg.shaped,
		rng:    cfg.rng,
		scale:  full,
		lo:     -int(full),
		hi:     int(full) - 1,
	}, nil
}

// BitDepth returns the output bit depth.
func (q *Quantizer) BitDepth() int { return q.bits }

// Quantize converts one sample. Values beyond full scale clip.
func (q *Quantizer) Quantize(x float64) int {
	if math.IsNaN(x) {
		x = 0
	}

	target := x * q.scale
	if q.shaped {
		target -= q.err
	}

	v := int(math.Round(target + q.noise()))
	v = max(q.lo, min(q.hi, v))

	if q.shaped {
		q.err = float64(v) - target
	}

	return v
}

// QuantizeBlock converts src into dst, which must be at least as long.
func (q *Quantizer) QuantizeBlock(dst []int, src []float64) {
	for i, x := range src {
		dst[i] = q.Quantize(x)
	}
}

// Reset clears the noise shaping state.
func (q *Quantizer) Reset() { q.err = 0 }

func (q *Quantizer) noise() float64 {
	switch q.typ {
	case Rectangular:
		return q.rng.Float64() - 0.5
	case Triangular:
		return q.rng.Float64() - q.rng.Float64()
	default:
		return 0
	}
}
