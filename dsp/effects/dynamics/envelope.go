package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// envelope is a peak follower with separate attack and release smoothing.
type envelope struct {
	level        float64
	attackCoeff  float64
	releaseCoeff float64
}

func (e *envelope) configure(attack, release, sampleRate float64) {
	e.attackCoeff = 1
	if attack > 0 {
		e.attackCoeff = 1 - math.Exp(-math.Ln2/(attack*sampleRate))
	}

	e.releaseCoeff = 0
	if release > 0 {
		e.releaseCoeff = math.Exp(-math.Ln2 / (release * sampleRate))
	}
}

func (e *envelope) next(x float64) float64 {
	if x > e.level {
		e.level += (x - e.level) * e.attackCoeff
	} else {
		e.level = x + (e.level-x)*e.releaseCoeff
	}

	e.level = core.FlushDenormals(e.level)

	return e.level
}

func (e *envelope) reset() {
	e.level = 0
}

func validateSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("sample rate must be positive and finite: %f", sampleRate)
	}

	return nil
}

func validateRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi || !core.IsFinite(v) {
		return fmt.Errorf("%s must be in [%g, %g]: %g", name, lo, hi, v)
	}

	return nil
}
