package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

const (
	defaultCompressorThresholdDB = -24.0
	defaultCompressorKneeDB      = 30.0
	defaultCompressorRatio       = 12.0
	defaultCompressorAttack      = 0.003
	defaultCompressorRelease     = 0.25

	minCompressorThresholdDB = -100.0
	maxCompressorThresholdDB = 0.0
	minCompressorKneeDB      = 0.0
	maxCompressorKneeDB      = 40.0
	minCompressorRatio       = 1.0
	maxCompressorRatio       = 20.0
	minTime                  = 0.0
	maxTime                  = 1.0
)

// Compressor is a soft-knee feed-forward compressor with a peak detector.
//
// Not safe for concurrent use. Parameter changes are expected to come
// from the goroutine that calls the Process methods.
type Compressor struct {
	sampleRate  float64
	thresholdDB float64
	kneeDB      float64
	ratio       float64
	attack      float64
	release     float64

	env       envelope
	reduction float64
}

// NewCompressor creates a compressor with the defaults of a browser
// DynamicsCompressorNode: threshold -24 dB, knee 30 dB, ratio 12:1,
// attack 3 ms and release 250 ms.
func NewCompressor(sampleRate float64) (*Compressor, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, fmt.Errorf("compressor %w", err)
	}

	c := &Compressor{
		sampleRate:  sampleRate,
		thresholdDB: defaultCompressorThresholdDB,
		kneeDB:      defaultCompressorKneeDB,
		ratio:       defaultCompressorRatio,
		attack:      defaultCompressorAttack,
		release:     defaultCompressorRelease,
	}
	c.env.configure(c.attack, c.release, sampleRate)

	return c, nil
}

// SetThreshold sets the threshold in dBFS, in [-100, 0].
func (c *Compressor) SetThreshold(dB float64) error {
	if err := validateRange("compressor threshold", dB, minCompressorThresholdDB, maxCompressorThresholdDB); err != nil {
		return err
	}

	c.thresholdDB = dB

	return nil
}

// SetKnee sets the soft-knee width in dB, in [0, 40]. Zero is a hard knee.
func (c *Compressor) SetKnee(dB float64) error {
	if err := validateRange("compressor knee", dB, minCompressorKneeDB, maxCompressorKneeDB); err != nil {
		return err
	}

	c.kneeDB = dB

	return nil
}

// SetRatio sets the compression ratio, in [1, 20].
func (c *Compressor) SetRatio(ratio float64) error {
	if err := validateRange("compressor ratio", ratio, minCompressorRatio, maxCompressorRatio); err != nil {
		return err
	}

	c.ratio = ratio

	return nil
}

// SetAttack sets the attack time in seconds, in [0, 1].
func (c *Compressor) SetAttack(seconds float64) error {
	if err := validateRange("compressor attack", seconds, minTime, maxTime); err != nil {
		return err
	}

	c.attack = seconds
	c.env.configure(c.attack, c.release, c.sampleRate)

	return nil
}

// SetRelease sets the release time in seconds, in [0, 1].
func (c *Compressor) SetRelease(seconds float64) error {
	if err := validateRange("compressor release", seconds, minTime, maxTime); err != nil {
		return err
	}

	c.release = seconds
	c.env.configure(c.attack, c.release, c.sampleRate)

	return nil
}

func (c *Compressor) Threshold() float64 { return c.thresholdDB }
func (c *Compressor) Knee() float64      { return c.kneeDB }
func (c *Compressor) Ratio() float64     { return c.ratio }
func (c *Compressor) Attack() float64    { return c.attack }
func (c *Compressor) Release() float64   { return c.release }

// GainReduction returns the gain change in dB applied to the most recent
// sample. It is zero or negative.
func (c *Compressor) GainReduction() float64 { return c.reduction }

// GainDB returns the static gain change in dB for an input level in dBFS.
func (c *Compressor) GainDB(levelDB float64) float64 {
	over := levelDB - c.thresholdDB
	slope := 1/c.ratio - 1

	switch {
	case 2*over < -c.kneeDB:
		return 0
	case c.kneeDB > 0 && 2*math.Abs(over) <= c.kneeDB:
		x := over + c.kneeDB/2
		return slope * x * x / (2 * c.kneeDB)
	default:
		return slope * over
	}
}

// ProcessSample compresses one mono sample.
func (c *Compressor) ProcessSample(x float64) float64 {
	return x * c.nextGain(math.Abs(x))
}

// ProcessStereo compresses a stereo block in place with linked detection.
// Both slices must have the same length.
func (c *Compressor) ProcessStereo(left, right []float64) {
	if len(left) == 0 {
		return
	}

	_ = right[len(left)-1]

	for i := range left {
		g := c.nextGain(math.Max(math.Abs(left[i]), math.Abs(right[i])))
		left[i] *= g
		right[i] *= g
	}
}

// Reset clears the detector state.
func (c *Compressor) Reset() {
	c.env.reset()
	c.reduction = 0
}

func (c *Compressor) nextGain(peak float64) float64 {
	c.reduction = c.GainDB(core.LevelDB(c.env.next(peak)))
	if c.reduction == 0 {
		return 1
	}

	return core.DBToLinear(c.reduction)
}
