package sample

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-mixer/dsp/resample"
)

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		data [][]float64
	}{
		{"zero rate", 0, [][]float64{{0}}},
		{"no channels", 48000, nil},
		{"ragged", 48000, [][]float64{{0, 1}, {0}}},
	}

	for _, tt := range tests {
		if _, err := New(tt.rate, tt.data); !errors.Is(err, ErrInvalidBuffer) {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
	}
}

func TestInterleavedRoundTrip(t *testing.T) {
	b, err := FromInterleaved(8000, 2, []float32{0.5, -0.5, 0.25, -0.25, 1, -1})
	if err != nil {
		t.Fatal(err)
	}

	if b.Channels() != 2 || b.Frames() != 3 {
		t.Fatalf("channels %d frames %d", b.Channels(), b.Frames())
	}

	if got := b.Channel(1)[2]; got != -1 {
		t.Fatalf("right[2] = %v", got)
	}

	inter := b.Interleaved()
	if inter[2] != 0.25 || inter[5] != -1 {
		t.Fatalf("Interleaved() = %v", inter)
	}

	if b.Duration() != 3.0/8000 {
		t.Fatalf("Duration() = %v", b.Duration())
	}

	if b.Peak() != 1 {
		t.Fatalf("Peak() = %v", b.Peak())
	}
}

func TestStereoMonoSharesChannel(t *testing.T) {
	b, err := New(48000, [][]float64{{1, 2}})
	if err != nil {
		t.Fatal(err)
	}

	l, r := b.Stereo()
	if &l[0] != &r[0] {
		t.Fatal("mono buffer should return the same slice twice")
	}
}

func TestResample(t *testing.T) {
	b, _ := Silence(24000, 2, 100)

	same, err := b.Resample(24000, resample.QualityFast)
	if err != nil || same != b {
		t.Fatalf("same-rate resample = %p, %v", same, err)
	}

	up, err := b.Resample(48000, resample.QualityFast)
	if err != nil {
		t.Fatal(err)
	}

	if up.SampleRate() != 48000 || up.Frames() != 199 || up.Channels() != 2 {
		t.Fatalf("resampled: rate %v frames %d", up.SampleRate(), up.Frames())
	}
}
