// Package design computes biquad coefficients for the RBJ audio-EQ
// cookbook filter shapes used by the mixer: low/high-pass, peaking and
// shelving.
package design

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

// DefaultQ is the Butterworth quality factor, also used as the shelf slope
// of the shelving designs.
const DefaultQ = 1 / math.Sqrt2

// Lowpass designs a second-order lowpass at freq (Hz) with quality factor q.
func Lowpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))

	b1 := 1 - cw
	b0 := b1 / 2

	return normalizeBiquad(b0, b1, b0, 1+alpha, -2*cw, 1-alpha)
}

// Highpass designs a second-order highpass at freq (Hz) with quality factor q.
func Highpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))

	b0 := (1 + cw) / 2

	return normalizeBiquad(b0, -(1 + cw), b0, 1+alpha, -2*cw, 1-alpha)
}

// Peak designs a peaking-EQ biquad with gain in dB.
func Peak(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))
	a := math.Pow(10, gainDB/40)

	return normalizeBiquad(
		1+alpha*a, -2*cw, 1-alpha*a,
		1+alpha/a, -2*cw, 1-alpha/a,
	)
}

// LowShelf designs a low-shelf biquad with gain in dB.
func LowShelf(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))
	a := math.Pow(10, gainDB/40)
	beta := 2 * math.Sqrt(a) * alpha

	return normalizeBiquad(
		a*((a+1)-(a-1)*cw+beta),
		2*a*((a-1)-(a+1)*cw),
		a*((a+1)-(a-1)*cw-beta),
		(a+1)+(a-1)*cw+beta,
		-2*((a-1)+(a+1)*cw),
		(a+1)+(a-1)*cw-beta,
	)
}

// HighShelf designs a high-shelf biquad with gain in dB.
func HighShelf(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))
	a := math.Pow(10, gainDB/40)
	beta := 2 * math.Sqrt(a) * alpha

	return normalizeBiquad(
		a*((a+1)+(a-1)*cw+beta),
		-2*a*((a-1)+(a+1)*cw),
		a*((a+1)+(a-1)*cw-beta),
		(a+1)-(a-1)*cw+beta,
		2*((a-1)-(a+1)*cw),
		(a+1)-(a-1)*cw-beta,
	)
}

func normalizedW0(freq, sampleRate float64) (float64, bool) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return 0, false
	}

	if freq <= 0 || freq >= sampleRate/2 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}

	return 2 * math.Pi * freq / sampleRate, true
}

func normalizedQ(q float64) float64 {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return DefaultQ
	}

	return q
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) biquad.Coefficients {
	if a0 == 0 || math.IsNaN(a0) || math.IsInf(a0, 0) {
		return biquad.Coefficients{}
	}

	return biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
