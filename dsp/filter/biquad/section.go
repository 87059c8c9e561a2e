// Package biquad implements second-order IIR sections in Direct Form II
// Transposed.
package biquad

// Coefficients holds the transfer function coefficients for a single
// second-order section. a0 is normalized to 1 and not stored.
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Coefficients struct {
	B0, B1, B2 float64 // feedforward
	A1, A2     float64 // feedback
}

// Passthrough returns unity-gain coefficients.
func Passthrough() Coefficients {
	return Coefficients{B0: 1}
}

// IsZero reports whether every coefficient is zero, which is what the
// design functions return for an unrealisable request.
func (c Coefficients) IsZero() bool {
	return c == Coefficients{}
}

// Section is a single biquad filter with coefficients and internal state.
type Section struct {
	Coefficients

	d0, d1 float64
}

// NewSection returns a Section initialized with the given coefficients
// and zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// SetCoefficients replaces the coefficients and keeps the delay line, so a
// parameter change while audio is running does not click.
func (s *Section) SetCoefficients(c Coefficients) {
	s.Coefficients = c
}

// ProcessSample filters one input sample and returns the output.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y

	return y
}

// ProcessBlock filters a block of samples in place. Zero-alloc.
func (s *Section) ProcessBlock(buf []float64) {
	b0, b1, b2 := s.B0, s.B1, s.B2
	a1, a2 := s.A1, s.A2
	d0, d1 := s.d0, s.d1

	for i, x := range buf {
		y := b0*x + d0
		d0 = b1*x - a1*y + d1
		d1 = b2*x - a2*y
		buf[i] = y
	}

	s.d0, s.d1 = flush(d0), flush(d1)
}

// Reset clears the delay line to zero.
func (s *Section) Reset() {
	s.d0 = 0
	s.d1 = 0
}

// State returns the current delay-line state [d0, d1].
func (s *Section) State() [2]float64 {
	return [2]float64{s.d0, s.d1}
}

func flush(x float64) float64 {
	if x > -1e-30 && x < 1e-30 {
		return 0
	}

	return x
}
