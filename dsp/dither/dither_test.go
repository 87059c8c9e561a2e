package dither

import (
	"math"
	"testing"
)

func TestNewQuantizerValidates(t *testing.T) {
	for _, bits := range []int{0, 1, 33} {
		if _, err := NewQuantizer(bits); err == nil {
			t.Fatalf("NewQuantizer(%d) error = nil", bits)
		}
	}

	if _, err := NewQuantizer(16, WithType(Type(9))); err == nil {
		t.Fatal("invalid type: error = nil")
	}
}

func TestQuantizeWithoutDither(t *testing.T) {
	q, err := NewQuantizer(16, WithType(None))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in   float64
		want int
	}{
		{in: 0, want: 0},
		{in: 0.5, want: 16384},
		{in: -1, want: -32768},
		{in: 1, want: 32767},
		{in: 3, want: 32767},
		{in: -3, want: -32768},
		{in: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		if got := q.Quantize(tt.in); got != tt.want {
			t.Fatalf("Quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTriangularDitherIsUnbiasedAndBounded(t *testing.T) {
	q, err := NewQuantizer(8, WithSeed(7))
	if err != nil {
		t.Fatal(err)
	}

	const n = 20000

	x := 10.25 / 128
	sum := 0.0

	for range n {
		v := q.Quantize(x)
		if v < 9 || v > 11 {
			t.Fatalf("Quantize() = %d, outside one LSB of 10.25", v)
		}

		sum += float64(v)
	}

	if mean := sum / n; math.Abs(mean-10.25) > 0.02 {
		t.Fatalf("mean = %v, want 10.25", mean)
	}
}

func TestSeedIsReproducible(t *testing.T) {
	a, _ := NewQuantizer(16, WithSeed(3), WithNoiseShaping(true))
	b, _ := NewQuantizer(16, WithSeed(3), WithNoiseShaping(true))

	src := []float64{0.1, -0.2, 0.3, 0.001, -0.7}
	da, db := make([]int, len(src)), make([]int, len(src))

	a.QuantizeBlock(da, src)
	b.QuantizeBlock(db, src)

	for i := range da {
		if da[i] != db[i] {
			t.Fatalf("sample %d: %d != %d", i, da[i], db[i])
		}
	}
}

func TestTypeString(t *testing.T) {
	if Triangular.String() != "triangular" || Type(5).String() != "Type(5)" {
		t.Fatalf("String() = %q, %q", Triangular.String(), Type(5).String())
	}
}
