// Package spectrum provides a running FFT analyser for metering a stereo
// output stream.
package spectrum

import (
	"fmt"
	"math"
	"sync/atomic"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/window"
)

// FloorDB is reported for bins below the analyser's range and before the
// first frame is complete.
const FloorDB = -130.0

type config struct {
	fftSize   int
	overlap   float64
	smoothing float64
	window    window.Type
}

// Option configures an Analyzer.
type Option func(*config)

// WithFFTSize sets the frame length. Only powers of two between 256 and
// 8192 are accepted; anything else keeps the default of 2048.
func WithFFTSize(n int) Option {
	return func(c *config) {
		switch n {
		case 256, 512, 1024, 2048, 4096, 8192:
			c.fftSize = n
		}
	}
}

// WithOverlap sets the frame overlap, clamped to [0.25, 0.95].
func WithOverlap(v float64) Option {
	return func(c *config) { c.overlap = core.Clamp(v, 0.25, 0.95) }
}

// WithSmoothing sets the exponential smoothing between frames, clamped to
// [0, 0.95].
func WithSmoothing(v float64) Option {
	return func(c *config) { c.smoothing = core.Clamp(v, 0, 0.95) }
}

// WithWindow selects the analysis window.
func WithWindow(t window.Type) Option {
	return func(c *config) { c.window = t }
}

// Analyzer accumulates a mono downmix into a ring buffer and computes a
// smoothed magnitude spectrum every hop. Push must be called from a single
// goroutine. CurveDB may be called from any goroutine.
type Analyzer struct {
	cfg        config
	sampleRate float64

	plan       *algofft.Plan[complex128]
	win        []float64
	windowGain float64
	hop        int

	ring        []float64
	write       int
	filled      int
	samplesToGo int

	in, out []complex128
	re, im  []float64
	mag     []float64
	db      []float64
	ready   bool

	published atomic.Pointer[[]float64]
}

// NewAnalyzer returns an analyser for the given sample rate.
func NewAnalyzer(sampleRate float64, opts ...Option) (*Analyzer, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("spectrum: sample rate must be > 0: %v", sampleRate)
	}

	cfg := config{fftSize: 2048, overlap: 0.5, smoothing: 0.6, window: window.TypeBlackmanHarris}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	plan, err := algofft.NewPlan64(cfg.fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	win := window.Generate(cfg.window, cfg.fftSize, window.WithPeriodic())
	bins := cfg.fftSize/2 + 1

	a := &Analyzer{
		cfg:        cfg,
		sampleRate: sampleRate,
		plan:       plan,
		win:        win,
		windowGain: window.CoherentGain(win),
		hop:        max(1, int(math.Round(float64(cfg.fftSize)*(1-cfg.overlap)))),
		ring:       make([]float64, cfg.fftSize),
		in:         make([]complex128, cfg.fftSize),
		out:        make([]complex128, cfg.fftSize),
		re:         make([]float64, bins),
		im:         make([]float64, bins),
		mag:        make([]float64, bins),
		db:         make([]float64, bins),
	}

	return a, nil
}

// FFTSize returns the frame length.
func (a *Analyzer) FFTSize() int { return a.cfg.fftSize }

// Push feeds one stereo block. The channels are averaged.
func (a *Analyzer) Push(left, right []float64) {
	n := min(len(left), len(right))
	for i := range n {
		a.pushSample(0.5 * (left[i] + right[i]))
	}
}

func (a *Analyzer) pushSample(x float64) {
	a.ring[a.write] = x

	a.write++
	if a.write == len(a.ring) {
		a.write = 0
	}

	if a.filled < len(a.ring) {
		a.filled++
	}

	a.samplesToGo++
	if a.filled < len(a.ring) || a.samplesToGo < a.hop {
		return
	}

	a.samplesToGo = 0
	a.frame()
}

func (a *Analyzer) frame() {
	const eps = 1e-12

	read := a.write
	for i := range a.in {
		a.in[i] = complex(a.ring[read]*a.win[i], 0)

		read++
		if read == len(a.ring) {
			read = 0
		}
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return
	}

	for k := range a.mag {
		a.re[k] = real(a.out[k])
		a.im[k] = imag(a.out[k])
	}

	vecmath.Magnitude(a.mag, a.re, a.im)

	norm := float64(a.cfg.fftSize) * math.Max(a.windowGain, eps)
	last := len(a.mag) - 1

	for k, m := range a.mag {
		m /= norm
		if k > 0 && k < last {
			m *= 2
		}

		v := math.Max(FloorDB, 20*math.Log10(math.Max(eps, m)))
		if a.ready {
			v = a.cfg.smoothing*a.db[k] + (1-a.cfg.smoothing)*v
		}

		a.db[k] = v
	}

	a.ready = true

	frame := make([]float64, len(a.db))
	copy(frame, a.db)
	a.published.Store(&frame)
}

// Ready reports whether at least one frame has been analysed.
func (a *Analyzer) Ready() bool { return a.published.Load() != nil }

// CurveDB returns the latest smoothed spectrum in dBFS at freqs, linearly
// interpolated between bins. Before the first frame every value is FloorDB.
func (a *Analyzer) CurveDB(freqs []float64) []float64 {
	out := make([]float64, len(freqs))

	p := a.published.Load()
	if p == nil {
		for i := range out {
			out[i] = FloorDB
		}

		return out
	}

	db := *p
	last := len(db) - 1
	binHz := a.sampleRate / float64(a.cfg.fftSize)

	for i, f := range freqs {
		bin := core.Clamp(f, 0, a.sampleRate/2) / binHz

		switch {
		case bin <= 0:
			out[i] = db[0]
		case bin >= float64(last):
			out[i] = db[last]
		default:
			base := int(bin)
			frac := bin - float64(base)
			out[i] = db[base] + frac*(db[base+1]-db[base])
		}
	}

	return out
}

// Reset discards buffered audio and the published spectrum.
func (a *Analyzer) Reset() {
	core.Zero(a.ring)
	a.write, a.filled, a.samplesToGo = 0, 0, 0
	a.ready = false
	a.published.Store(nil)
}
