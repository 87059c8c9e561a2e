package testutil

import (
	"math"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 48000, 1.0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}

	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}

	RequireNear(t, "s[12]", s[12], 1, 1e-12)
}

func TestDeterministicNoiseReproducible(t *testing.T) {
	a := DeterministicNoise(7, 0.5, 64)
	b := DeterministicNoise(7, 0.5, 64)
	RequireSliceNearlyEqual(t, a, b, 0)

	if p := Peak(a); p > 0.5 {
		t.Fatalf("Peak = %v, want <= 0.5", p)
	}
}

func TestImpulseAndDC(t *testing.T) {
	imp := Impulse(4, 2)
	RequireSliceNearlyEqual(t, imp, []float64{0, 0, 1, 0}, 0)

	if got := Impulse(4, 9); Peak(got) != 0 {
		t.Fatal("out-of-range impulse should be silent")
	}

	RequireSliceNearlyEqual(t, DC(0.25, 3), []float64{0.25, 0.25, 0.25}, 0)
}
