package biquad

import "math"

// MagnitudeSquared returns |H(f)|^2 using a closed-form expression.
func (c Coefficients) MagnitudeSquared(freqHz, sampleRate float64) float64 {
	cw := 2 * math.Cos(2*math.Pi*freqHz/sampleRate)
	b0, b1, b2 := c.B0, c.B1, c.B2
	a1, a2 := c.A1, c.A2

	num := (b0-b2)*(b0-b2) + b1*b1 + (b1*(b0+b2)+b0*b2*cw)*cw
	den := (1-a2)*(1-a2) + a1*a1 + (a1*(a2+1)+cw*a2)*cw

	return num / den
}

// MagnitudeDB returns 10*log10(|H(f)|^2).
func (c Coefficients) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return 10 * math.Log10(c.MagnitudeSquared(freqHz, sampleRate))
}

// CascadeDB returns the summed magnitude response in dB of sections
// applied in series.
func CascadeDB(freqHz, sampleRate float64, sections ...Coefficients) float64 {
	total := 0.0
	for _, c := range sections {
		total += c.MagnitudeDB(freqHz, sampleRate)
	}

	return total
}
