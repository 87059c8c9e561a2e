package core

import "testing"

func TestEnsureLenReusesCapacity(t *testing.T) {
	buf := make([]float64, 2, 8)

	got := EnsureLen(buf, 6)
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}

	if &got[0] != &buf[0] {
		t.Fatal("expected backing array to be reused")
	}

	if got := EnsureLen(buf, 0); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestAccumulate(t *testing.T) {
	dst := []float64{1, 2, 3}
	Accumulate(dst, []float64{1, 1})

	want := []float64{2, 3, 3}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestScale(t *testing.T) {
	buf := []float64{1, -2, 4}
	Scale(buf, 0.5)

	want := []float64{0.5, -1, 2}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestInterleave(t *testing.T) {
	left := []float64{1, 2, 3}
	right := []float64{-1, -2, -3}
	dst := make([]float32, 4)

	frames := Interleave(dst, left, right)
	if frames != 2 {
		t.Fatalf("frames = %d, want 2", frames)
	}

	want := []float32{1, -1, 2, -2}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}
