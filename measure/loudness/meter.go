// Package loudness measures programme loudness of rendered mixes following
// ITU-R BS.1770 and EBU R128.
package loudness

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

// K-weighting stage parameters. At 48 kHz they reproduce the coefficients
// tabulated in BS.1770.
const (
	shelfFreq = 1681.974450955533
	shelfGain = 3.999843853973347
	shelfQ    = 0.7071752369554196
	// Exponent of the shelf's band gain relative to its high-frequency gain.
	shelfBandExp = 0.4996667741545416
	hpfFreq      = 38.13547087602444
	hpfQ         = 0.5003270373238773
)

const (
	momentaryWindow = 0.4
	shortTermWindow = 3.0
	// Gating blocks overlap by 75 %.
	blockStep = momentaryWindow / 4

	absoluteGate = -70.0
	relativeGate = -10.0

	// Floor reported by Momentary and ShortTerm for silence.
	Floor = -120.0
)

// MaxChannels is the number of channels a Meter weighs. BS.1770 gives the
// front pair a weight of one; further channels are ignored.
const MaxChannels = 2

// window is a running sum of squares over a fixed number of frames.
type window struct {
	buf    []float64
	pos    int
	sum    float64
	filled int
}

func newWindow(frames int) window {
	return window{buf: make([]float64, max(frames, 1))}
}

func (w *window) push(x float64) {
	w.sum += x - w.buf[w.pos]
	if w.sum < 0 {
		w.sum = 0
	}

	w.buf[w.pos] = x
	w.pos = (w.pos + 1) % len(w.buf)

	if w.filled < len(w.buf) {
		w.filled++
	}
}

func (w *window) full() bool { return w.filled == len(w.buf) }

func (w *window) meanSquare() float64 { return w.sum / float64(len(w.buf)) }

func (w *window) reset() {
	clear(w.buf)
	w.pos, w.sum, w.filled = 0, 0, 0
}

// Meter accumulates loudness over a stream of channel blocks. It is not
// safe for concurrent use.
type Meter struct {
	sampleRate float64
	shelf      [MaxChannels]*biquad.Section
	hpf        [MaxChannels]*biquad.Section

	momentary window
	shortTerm window

	step      int
	sinceStep int
	blocks    []float64

	maxMomentary float64
	maxShortTerm float64
	peak         float64
	frames       int64
}

// NewMeter returns a meter for the given sample rate.
func NewMeter(sampleRate float64) (*Meter, error) {
	if sampleRate <= 2*shelfFreq || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("loudness: sample rate too low for K-weighting: %v", sampleRate)
	}

	m := &Meter{
		sampleRate: sampleRate,
		momentary:  newWindow(core.SecondsToFrames(momentaryWindow, sampleRate)),
		shortTerm:  newWindow(core.SecondsToFrames(shortTermWindow, sampleRate)),
		step:       max(core.SecondsToFrames(blockStep, sampleRate), 1),
	}

	shelf, hpf := kWeighting(sampleRate)

	for c := range MaxChannels {
		m.shelf[c] = biquad.NewSection(shelf)
		m.hpf[c] = biquad.NewSection(hpf)
	}

	m.Reset()

	return m, nil
}

// kWeighting returns the pre-filter shelf and the RLB high-pass for the
// given rate, both derived with the bilinear transform.
func kWeighting(sampleRate float64) (shelf, hpf biquad.Coefficients) {
	k := math.Tan(math.Pi * shelfFreq / sampleRate)
	vh := math.Pow(10, shelfGain/20)
	vb := math.Pow(vh, shelfBandExp)
	a0 := 1 + k/shelfQ + k*k

	shelf = biquad.Coefficients{
		B0: (vh + vb*k/shelfQ + k*k) / a0,
		B1: 2 * (k*k - vh) / a0,
		B2: (vh - vb*k/shelfQ + k*k) / a0,
		A1: 2 * (k*k - 1) / a0,
		A2: (1 - k/shelfQ + k*k) / a0,
	}

	k = math.Tan(math.Pi * hpfFreq / sampleRate)
	a0 = 1 + k/hpfQ + k*k

	hpf = biquad.Coefficients{
		B0: 1,
		B1: -2,
		B2: 1,
		A1: 2 * (k*k - 1) / a0,
		A2: (1 - k/hpfQ + k*k) / a0,
	}

	return shelf, hpf
}

// Reset discards all measured history.
func (m *Meter) Reset() {
	for c := range MaxChannels {
		m.shelf[c].Reset()
		m.hpf[c].Reset()
	}

	m.momentary.reset()
	m.shortTerm.reset()
	m.sinceStep = 0
	m.blocks = m.blocks[:0]
	m.maxMomentary = math.Inf(-1)
	m.maxShortTerm = math.Inf(-1)
	m.peak = 0
	m.frames = 0
}

// Process feeds one block. All channels must have the same length; a single
// channel is measured as mono and channels past MaxChannels are ignored.
func (m *Meter) Process(channels ...[]float64) {
	if len(channels) == 0 {
		return
	}

	channels = channels[:min(len(channels), MaxChannels)]
	n := len(channels[0])

	for i := range n {
		power := 0.0

		for c, ch := range channels {
			x := ch[i]
			m.peak = max(m.peak, math.Abs(x))

			y := m.hpf[c].ProcessSample(m.shelf[c].ProcessSample(x))
			power += y * y
		}

		m.momentary.push(power)
		m.shortTerm.push(power)
		m.frames++

		if m.momentary.full() {
			m.maxMomentary = max(m.maxMomentary, toLUFS(m.momentary.meanSquare()))
		}

		if m.shortTerm.full() {
			m.maxShortTerm = max(m.maxShortTerm, toLUFS(m.shortTerm.meanSquare()))
		}

		m.sinceStep++
		if m.sinceStep >= m.step {
			m.sinceStep = 0

			if m.momentary.full() {
				m.blocks = append(m.blocks, m.momentary.meanSquare())
			}
		}
	}
}

// Momentary returns the loudness of the last 400 ms in LUFS.
func (m *Meter) Momentary() float64 { return toLUFS(m.momentary.meanSquare()) }

// ShortTerm returns the loudness of the last 3 s in LUFS.
func (m *Meter) ShortTerm() float64 { return toLUFS(m.shortTerm.meanSquare()) }

// MaxMomentary returns the loudest complete momentary window seen, or -Inf
// before 400 ms have been processed.
func (m *Meter) MaxMomentary() float64 { return m.maxMomentary }

// MaxShortTerm is MaxMomentary for the 3 s window.
func (m *Meter) MaxShortTerm() float64 { return m.maxShortTerm }

// SamplePeak returns the largest absolute input sample.
func (m *Meter) SamplePeak() float64 { return m.peak }

// Integrated returns the gated programme loudness in LUFS, or -Inf when no
// block passes the gates.
func (m *Meter) Integrated() float64 {
	gated, mean := gate(m.blocks, func(b float64) bool { return toLUFS(b) > absoluteGate })
	if len(gated) == 0 {
		return math.Inf(-1)
	}

	threshold := toLUFS(mean) + relativeGate

	gated, mean = gate(gated, func(b float64) bool { return toLUFS(b) > threshold })
	if len(gated) == 0 {
		return math.Inf(-1)
	}

	return toLUFS(mean)
}

// gate returns the blocks accepted by keep and their mean power.
func gate(blocks []float64, keep func(float64) bool) ([]float64, float64) {
	var (
		out []float64
		sum float64
	)

	for _, b := range blocks {
		if keep(b) {
			out = append(out, b)
			sum += b
		}
	}

	if len(out) == 0 {
		return nil, 0
	}

	return out, sum / float64(len(out))
}

func toLUFS(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return Floor
	}

	return -0.691 + 10*math.Log10(meanSquare)
}
