// Package node implements the signal nodes a mixer graph is built from:
// gain, stereo pan, shelving and peaking EQ, high/low-pass filters and
// dynamics processors.
//
// Parameters are written from the control goroutine with atomic stores and
// picked up by the render goroutine at the next block boundary, so a
// parameter change never blocks audio processing.
package node

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/effects/dynamics"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
	"github.com/cwbudde/algo-mixer/dsp/filter/design"
)

// ErrUnsupportedParam is returned when a parameter does not apply to a
// node kind.
var ErrUnsupportedParam = errors.New("node: parameter not supported by kind")

// Kind identifies the DSP primitive a node runs.
type Kind int

const (
	KindGain Kind = iota
	KindPan
	KindLowShelf
	KindHighShelf
	KindPeaking
	KindCompressor
	KindExpander
	KindHighPass
	KindLowPass
)

var kindNames = [...]string{
	KindGain:       "gain",
	KindPan:        "pan",
	KindLowShelf:   "shelf-low",
	KindHighShelf:  "shelf-high",
	KindPeaking:    "peaking",
	KindCompressor: "dynamics-compressor",
	KindExpander:   "dynamics-expander",
	KindHighPass:   "high-pass",
	KindLowPass:    "low-pass",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

func (k Kind) isFilter() bool {
	switch k {
	case KindLowShelf, KindHighShelf, KindPeaking, KindHighPass, KindLowPass:
		return true
	default:
		return false
	}
}

// Value is a float64 that can be replaced atomically.
type Value struct {
	bits atomic.Uint64
}

// Load returns the current value.
func (v *Value) Load() float64 {
	return math.Float64frombits(v.bits.Load())
}

// Store replaces the current value.
func (v *Value) Store(x float64) {
	v.bits.Store(math.Float64bits(x))
}

// Node is one DSP primitive owned by a single track or the master bus.
type Node struct {
	kind       Kind
	sampleRate float64
	params     [numParams]Value
	version    atomic.Uint64

	// Render state. Only the goroutine calling Process touches these.
	applied     uint64
	left, right biquad.Section
	comp        *dynamics.Compressor
	exp         *dynamics.Expander
}

// New creates a node of the given kind with that kind's default parameters.
func New(kind Kind, sampleRate float64) (*Node, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("node %s: sample rate must be positive and finite: %f", kind, sampleRate)
	}

	if kind < KindGain || kind > KindLowPass {
		return nil, fmt.Errorf("node: unknown kind %d", int(kind))
	}

	n := &Node{kind: kind, sampleRate: sampleRate}

	var err error

	switch kind {
	case KindCompressor:
		n.comp, err = dynamics.NewCompressor(sampleRate)
	case KindExpander:
		n.exp, err = dynamics.NewExpander(sampleRate)
	}

	if err != nil {
		return nil, fmt.Errorf("node %s: %w", kind, err)
	}

	for p, v := range defaults[kind] {
		n.params[p].Store(v)
	}

	n.version.Store(1)

	return n, nil
}

// MustNew is New for kinds and sample rates known to be valid.
func MustNew(kind Kind, sampleRate float64) *Node {
	n, err := New(kind, sampleRate)
	if err != nil {
		panic(err)
	}

	return n
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Supports reports whether p applies to this node's kind.
func (n *Node) Supports(p Param) bool {
	_, ok := defaults[n.kind][p]
	return ok
}

// Set stores a parameter value, clamped to the parameter's range.
// It is safe to call while another goroutine is in Process.
func (n *Node) Set(p Param, v float64) error {
	if !n.Supports(p) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedParam, p, n.kind)
	}

	if !core.IsFinite(v) {
		return fmt.Errorf("node %s: %s must be finite: %v", n.kind, p, v)
	}

	lo, hi := n.bounds(p)
	n.params[p].Store(core.Clamp(v, lo, hi))
	n.version.Add(1)

	return nil
}

// Get returns the stored value of p, or zero if p does not apply.
func (n *Node) Get(p Param) float64 {
	if !n.Supports(p) {
		return 0
	}

	return n.params[p].Load()
}

// Process runs one stereo block in place. left and right must have equal
// length.
func (n *Node) Process(left, right []float64) {
	if v := n.version.Load(); v != n.applied {
		n.apply()
		n.applied = v
	}

	switch {
	case n.kind == KindGain:
		g := n.params[ParamGain].Load()
		core.Scale(left, g)
		core.Scale(right, g)
	case n.kind == KindPan:
		Pan(left, right, n.params[ParamPan].Load())
	case n.kind.isFilter():
		n.left.ProcessBlock(left)
		n.right.ProcessBlock(right)
	case n.kind == KindCompressor:
		n.comp.ProcessStereo(left, right)
	case n.kind == KindExpander:
		n.exp.ProcessStereo(left, right)
	}
}

// Reset clears filter and detector state.
func (n *Node) Reset() {
	n.left.Reset()
	n.right.Reset()

	if n.comp != nil {
		n.comp.Reset()
	}

	if n.exp != nil {
		n.exp.Reset()
	}
}

// Coefficients returns the biquad coefficients the node's current
// parameters resolve to. Non-filter kinds return a passthrough.
func (n *Node) Coefficients() biquad.Coefficients {
	if !n.kind.isFilter() {
		return biquad.Passthrough()
	}

	freq := n.params[ParamFrequency].Load()
	q := n.params[ParamQ].Load()
	gain := n.params[ParamGainDB].Load()

	var c biquad.Coefficients

	switch n.kind {
	case KindLowShelf:
		c = design.LowShelf(freq, gain, design.DefaultQ, n.sampleRate)
	case KindHighShelf:
		c = design.HighShelf(freq, gain, design.DefaultQ, n.sampleRate)
	case KindPeaking:
		c = design.Peak(freq, gain, q, n.sampleRate)
	case KindHighPass:
		c = design.Highpass(freq, q, n.sampleRate)
	case KindLowPass:
		c = design.Lowpass(freq, q, n.sampleRate)
	}

	if c.IsZero() {
		return biquad.Passthrough()
	}

	return c
}

func (n *Node) apply() {
	switch {
	case n.kind.isFilter():
		c := n.Coefficients()
		n.left.SetCoefficients(c)
		n.right.SetCoefficients(c)
	case n.kind == KindCompressor:
		// Values are clamped on Set, so the setters cannot fail here.
		_ = n.comp.SetThreshold(n.params[ParamThreshold].Load())
		_ = n.comp.SetKnee(n.params[ParamKnee].Load())
		_ = n.comp.SetRatio(n.params[ParamRatio].Load())
		_ = n.comp.SetAttack(n.params[ParamAttack].Load())
		_ = n.comp.SetRelease(n.params[ParamRelease].Load())
	case n.kind == KindExpander:
		_ = n.exp.SetThreshold(n.params[ParamThreshold].Load())
		_ = n.exp.SetKnee(n.params[ParamKnee].Load())
		_ = n.exp.SetRatio(n.params[ParamRatio].Load())
		_ = n.exp.SetAttack(n.params[ParamAttack].Load())
		_ = n.exp.SetRelease(n.params[ParamRelease].Load())
	}
}

// Pan applies an equal-power stereo balance in place. Negative positions
// fold the right channel into the left, positive positions the left into
// the right. Position 0 leaves the block untouched.
func Pan(left, right []float64, position float64) {
	if position == 0 {
		return
	}

	if position < 0 {
		x := (position + 1) * math.Pi / 2
		gl, gr := math.Cos(x), math.Sin(x)

		for i := range left {
			l, r := left[i], right[i]
			left[i] = l + r*gl
			right[i] = r * gr
		}

		return
	}

	x := position * math.Pi / 2
	gl, gr := math.Cos(x), math.Sin(x)

	for i := range left {
		l, r := left[i], right[i]
		left[i] = l * gl
		right[i] = r + l*gr
	}
}
