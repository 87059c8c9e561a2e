package spectrum

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/internal/testutil"
)

func TestAnalyzerBinCentredSine(t *testing.T) {
	const sr = 48000.0

	a, err := NewAnalyzer(sr, WithFFTSize(2048))
	if err != nil {
		t.Fatal(err)
	}

	if a.Ready() {
		t.Fatal("ready before any input")
	}

	freq := sr / 2048 * 64
	sig := testutil.DeterministicSine(freq, sr, 1, 8192)
	a.Push(sig, sig)

	if !a.Ready() {
		t.Fatal("not ready after 4 frames of input")
	}

	curve := a.CurveDB([]float64{freq, 10000})
	testutil.RequireNear(t, "peak dB", curve[0], 0, 0.05)

	if curve[1] > -60 {
		t.Fatalf("leakage at 10 kHz = %.1f dB", curve[1])
	}
}

func TestAnalyzerFloorBeforeFirstFrame(t *testing.T) {
	a, err := NewAnalyzer(44100)
	if err != nil {
		t.Fatal(err)
	}

	a.Push(make([]float64, 100), make([]float64, 100))

	for _, v := range a.CurveDB([]float64{0, 1000, 30000}) {
		if v != FloorDB {
			t.Fatalf("got %v, want floor", v)
		}
	}
}

func TestAnalyzerSilenceHitsFloor(t *testing.T) {
	a, err := NewAnalyzer(48000, WithFFTSize(256), WithSmoothing(0))
	if err != nil {
		t.Fatal(err)
	}

	z := make([]float64, 1024)
	a.Push(z, z)

	for _, v := range a.CurveDB([]float64{100, 5000}) {
		if v != FloorDB {
			t.Fatalf("got %v, want %v", v, FloorDB)
		}
	}

	a.Reset()

	if a.Ready() {
		t.Fatal("ready after reset")
	}
}

func TestNewAnalyzerRejectsBadRate(t *testing.T) {
	if _, err := NewAnalyzer(0); err == nil {
		t.Fatal("expected error")
	}

	if _, err := NewAnalyzer(math.NaN()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWithFFTSizeIgnoresInvalid(t *testing.T) {
	a, err := NewAnalyzer(48000, WithFFTSize(1000))
	if err != nil {
		t.Fatal(err)
	}

	if a.FFTSize() != 2048 {
		t.Fatalf("fft size = %d", a.FFTSize())
	}
}
