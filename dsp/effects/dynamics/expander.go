package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

const (
	defaultExpanderThresholdDB = -40.0
	defaultExpanderKneeDB      = 10.0
	defaultExpanderRatio       = 0.5
	defaultExpanderAttack      = 0.003
	defaultExpanderRelease     = 0.25
	defaultExpanderRangeDB     = -80.0

	minExpanderRatio   = 0.1
	maxExpanderRatio   = 1.0
	minExpanderRangeDB = -120.0
)

// Expander is a downward expander. Below the threshold every dB of input
// level drop becomes 1/ratio dB of output drop, so ratio 0.5 doubles the
// distance to the threshold and ratio 1 leaves the signal untouched.
type Expander struct {
	sampleRate  float64
	thresholdDB float64
	kneeDB      float64
	ratio       float64
	attack      float64
	release     float64
	rangeDB     float64

	env       envelope
	reduction float64
}

// NewExpander creates an expander tuned for noise suppression: threshold
// -40 dB, knee 10 dB, ratio 0.5, attack 3 ms, release 250 ms and an
// 80 dB attenuation floor.
func NewExpander(sampleRate float64) (*Expander, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, fmt.Errorf("expander %w", err)
	}

	e := &Expander{
		sampleRate:  sampleRate,
		thresholdDB: defaultExpanderThresholdDB,
		kneeDB:      defaultExpanderKneeDB,
		ratio:       defaultExpanderRatio,
		attack:      defaultExpanderAttack,
		release:     defaultExpanderRelease,
		rangeDB:     defaultExpanderRangeDB,
	}
	e.env.configure(e.attack, e.release, sampleRate)

	return e, nil
}

// SetThreshold sets the threshold in dBFS, in [-100, 0].
func (e *Expander) SetThreshold(dB float64) error {
	if err := validateRange("expander threshold", dB, minCompressorThresholdDB, maxCompressorThresholdDB); err != nil {
		return err
	}

	e.thresholdDB = dB

	return nil
}

// SetKnee sets the soft-knee width in dB, in [0, 40].
func (e *Expander) SetKnee(dB float64) error {
	if err := validateRange("expander knee", dB, minCompressorKneeDB, maxCompressorKneeDB); err != nil {
		return err
	}

	e.kneeDB = dB

	return nil
}

// SetRatio sets the expansion ratio, in [0.1, 1].
func (e *Expander) SetRatio(ratio float64) error {
	if err := validateRange("expander ratio", ratio, minExpanderRatio, maxExpanderRatio); err != nil {
		return err
	}

	e.ratio = ratio

	return nil
}

// SetAttack sets the attack time in seconds, in [0, 1].
func (e *Expander) SetAttack(seconds float64) error {
	if err := validateRange("expander attack", seconds, minTime, maxTime); err != nil {
		return err
	}

	e.attack = seconds
	e.env.configure(e.attack, e.release, e.sampleRate)

	return nil
}

// SetRelease sets the release time in seconds, in [0, 1].
func (e *Expander) SetRelease(seconds float64) error {
	if err := validateRange("expander release", seconds, minTime, maxTime); err != nil {
		return err
	}

	e.release = seconds
	e.env.configure(e.attack, e.release, e.sampleRate)

	return nil
}

// SetRange sets the maximum attenuation in dB, in [-120, 0].
func (e *Expander) SetRange(dB float64) error {
	if err := validateRange("expander range", dB, minExpanderRangeDB, 0); err != nil {
		return err
	}

	e.rangeDB = dB

	return nil
}

func (e *Expander) Threshold() float64 { return e.thresholdDB }
func (e *Expander) Ratio() float64     { return e.ratio }

// Bypassed reports whether the current ratio makes the expander an identity.
func (e *Expander) Bypassed() bool { return e.ratio >= 1 }

// GainReduction returns the gain change in dB applied to the most recent sample.
func (e *Expander) GainReduction() float64 { return e.reduction }

// GainDB returns the static gain change in dB for an input level in dBFS.
func (e *Expander) GainDB(levelDB float64) float64 {
	if e.ratio >= 1 {
		return 0
	}

	under := levelDB - e.thresholdDB
	slope := 1/e.ratio - 1

	var g float64

	switch {
	case 2*under > e.kneeDB:
		return 0
	case e.kneeDB > 0 && 2*math.Abs(under) <= e.kneeDB:
		x := under - e.kneeDB/2
		g = -slope * x * x / (2 * e.kneeDB)
	default:
		g = slope * under
	}

	return math.Max(g, e.rangeDB)
}

// ProcessSample expands one mono sample.
func (e *Expander) ProcessSample(x float64) float64 {
	return x * e.nextGain(math.Abs(x))
}

// ProcessStereo expands a stereo block in place with linked detection.
func (e *Expander) ProcessStereo(left, right []float64) {
	if e.Bypassed() {
		e.reduction = 0
		return
	}

	if len(left) == 0 {
		return
	}

	_ = right[len(left)-1]

	for i := range left {
		g := e.nextGain(math.Max(math.Abs(left[i]), math.Abs(right[i])))
		left[i] *= g
		right[i] *= g
	}
}

// Reset clears the detector state.
func (e *Expander) Reset() {
	e.env.reset()
	e.reduction = 0
}

func (e *Expander) nextGain(peak float64) float64 {
	e.reduction = e.GainDB(core.LevelDB(e.env.next(peak)))
	if e.reduction == 0 {
		return 1
	}

	return core.DBToLinear(e.reduction)
}
