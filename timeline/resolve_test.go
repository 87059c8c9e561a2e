package timeline

import (
	"math"
	"testing"
)

const eps = 1e-9

func clip(id string, start, offset, duration float64) *Clip {
	return &Clip{ID: id, StartTime: start, Offset: offset, Duration: duration}
}

func near(a, b float64) bool { return math.Abs(a-b) <= eps }

func TestResolveHeadTrim(t *testing.T) {
	a := clip("a", 5, 0, 10) // [5, 15)
	b := clip("b", 0, 0, 10) // moved to [0, 10)

	res := Resolve(b, []*Clip{a, b})

	if len(res) != 1 || res[0].Outcome != OutcomeHeadTrimmed {
		t.Fatalf("Resolve() = %+v", res)
	}

	if !near(a.Offset, 5) || !near(a.StartTime, 10) || !near(a.VisibleDuration(), 5) {
		t.Fatalf("a = %+v", *a)
	}

	if !near(a.End(), 15) {
		t.Fatalf("a end = %v, want unchanged 15", a.End())
	}
}

func TestResolveMovedIntoTailOfSibling(t *testing.T) {
	// B lands on [5,15) over A = [0,10): B starts inside A and ends after
	// it, so A loses its last 5 seconds.
	a := clip("a", 0, 0, 10)
	b := clip("b", 5, 0, 10)

	res := Resolve(b, []*Clip{a})

	if res[0].Outcome != OutcomeTailTrimmed || !near(res[0].Overlap, 5) {
		t.Fatalf("Resolve() = %+v", res)
	}

	if !near(a.VisibleDuration(), 5) || a.StartTime != 0 || a.Offset != 0 {
		t.Fatalf("a = %+v", *a)
	}

	if a.End() > b.StartTime+eps {
		t.Fatalf("a still overlaps b: end %v > %v", a.End(), b.StartTime)
	}
}

func TestResolveTailFloor(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		a := clip("a", 0, 0, 10)
		b := clip("b", 9.95, 0, 10.05)

		res := Resolve(b, []*Clip{a})
		if res[0].Outcome != OutcomeTailTrimmed {
			t.Fatalf("outcome = %s", res[0].Outcome)
		}

		if math.Abs(a.VisibleDuration()-9.95) > 1e-9 {
			t.Fatalf("visible = %v, want 9.95", a.VisibleDuration())
		}
	})

	t.Run("rejected", func(t *testing.T) {
		a := clip("a", 0, 0, 10)
		b := clip("b", 0.05, 0, 19.95)
		before := *a

		res := Resolve(b, []*Clip{a})
		if res[0].Outcome != OutcomeRejected {
			t.Fatalf("outcome = %s", res[0].Outcome)
		}

		if *a != before {
			t.Fatalf("a changed: %+v", *a)
		}
	})
}

func TestResolveContainmentPushes(t *testing.T) {
	a := clip("a", 3, 2, 6) // visible [3, 7)
	b := clip("b", 0, 0, 10)

	res := Resolve(b, []*Clip{a})
	if res[0].Outcome != OutcomePushed {
		t.Fatalf("outcome = %s", res[0].Outcome)
	}

	if a.StartTime != 10 || a.Offset != 0 || a.Duration != 6 {
		t.Fatalf("a = %+v", *a)
	}
}

func TestResolveNoOverlap(t *testing.T) {
	a := clip("a", 20, 0, 5)
	b := clip("b", 0, 0, 10)
	before := *a

	res := Resolve(b, []*Clip{a})
	if res[0].Outcome != OutcomeNone || res[0].Outcome.Changed() {
		t.Fatalf("outcome = %s", res[0].Outcome)
	}

	if *a != before {
		t.Fatalf("a changed: %+v", *a)
	}
}

func TestResolveSiblingsIndependent(t *testing.T) {
	// Both siblings are judged against b's position only.
	left := clip("left", 0, 0, 6)    // [0, 6)
	inside := clip("in", 7, 0, 2)    // [7, 9)
	right := clip("right", 11, 0, 8) // [11, 19)
	b := clip("b", 4, 0, 8)          // [4, 12)

	res := Resolve(b, []*Clip{left, inside, right})

	want := []Outcome{OutcomeTailTrimmed, OutcomePushed, OutcomeHeadTrimmed}
	for i, r := range res {
		if r.Outcome != want[i] {
			t.Fatalf("res[%d] = %s, want %s", i, r.Outcome, want[i])
		}
	}

	if !near(left.End(), 4) || inside.StartTime != 12 || !near(right.StartTime, 12) || !near(right.Offset, 1) {
		t.Fatalf("left %+v inside %+v right %+v", *left, *inside, *right)
	}
}

func TestResolveKeepsOffsetBelowDuration(t *testing.T) {
	siblings := []*Clip{
		clip("a", 0, 1, 4),
		clip("b", 2, 0.5, 3),
		clip("c", 5, 0, 0.2),
		clip("d", 6, 2, 9),
	}

	for start := 0.0; start < 12; start += 0.25 {
		for _, s := range siblings {
			moved := clip("m", start, 0.25, 3)
			Resolve(moved, []*Clip{s})

			if s.Offset >= s.Duration {
				t.Fatalf("start %.2f: %s offset %v >= duration %v", start, s.ID, s.Offset, s.Duration)
			}
		}
	}
}

func TestResolveClampsFades(t *testing.T) {
	a := &Clip{ID: "a", StartTime: 0, Duration: 10, FadeIn: 8, FadeOut: 8}
	b := clip("b", 5, 0, 10)

	Resolve(b, []*Clip{a})

	if a.FadeIn != 5 || a.FadeOut != 5 {
		t.Fatalf("fades = %v / %v, want 5 / 5", a.FadeIn, a.FadeOut)
	}

	if err := a.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomePushed.String() != "pushed" || Outcome(9).String() != "Outcome(9)" {
		t.Fatal("unexpected names")
	}
}
