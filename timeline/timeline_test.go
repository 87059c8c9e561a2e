package timeline

import (
	"errors"
	"testing"
)

func mustAdd(t *testing.T, tl *Timeline, c Clip) Clip {
	t.Helper()

	got, err := tl.Add(c)
	if err != nil {
		t.Fatalf("Add(%+v) error = %v", c, err)
	}

	return got
}

func TestAddAssignsIDAndValidates(t *testing.T) {
	tl := New()

	c := mustAdd(t, tl, Clip{SourceID: "src", Duration: 4})
	if c.ID == "" {
		t.Fatal("empty id")
	}

	if _, err := tl.Add(Clip{Offset: 4, Duration: 4}); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("offset == duration: error = %v", err)
	}

	if _, err := tl.Add(Clip{Duration: 2, FadeIn: 3}); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("long fade: error = %v", err)
	}

	if _, err := tl.Add(Clip{ID: c.ID, Duration: 1}); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("duplicate id: error = %v", err)
	}
}

func TestClipsSortedByStart(t *testing.T) {
	tl := New()
	mustAdd(t, tl, Clip{ID: "late", StartTime: 8, Duration: 1})
	mustAdd(t, tl, Clip{ID: "early", StartTime: 1, Duration: 1})

	clips := tl.Clips()
	if clips[0].ID != "early" || clips[1].ID != "late" {
		t.Fatalf("order = %s, %s", clips[0].ID, clips[1].ID)
	}

	// Returned values are copies.
	clips[0].StartTime = 99
	if c, _ := tl.Get("early"); c.StartTime != 1 {
		t.Fatal("Clips() leaked internal state")
	}
}

func TestDurationRecomputed(t *testing.T) {
	tl := New()
	if tl.Duration() != 0 {
		t.Fatal("empty timeline has a duration")
	}

	mustAdd(t, tl, Clip{ID: "a", StartTime: 2, Duration: 5})
	mustAdd(t, tl, Clip{ID: "b", StartTime: 20, Duration: 3})

	if got := tl.Duration(); got != 23 {
		t.Fatalf("Duration() = %v, want 23", got)
	}

	if err := tl.Remove("b"); err != nil {
		t.Fatal(err)
	}

	if got := tl.Duration(); got != 7 {
		t.Fatalf("Duration() = %v, want 7", got)
	}
}

func TestMoveResolvesCollisions(t *testing.T) {
	tl := New()
	mustAdd(t, tl, Clip{ID: "a", StartTime: 0, Duration: 10})
	mustAdd(t, tl, Clip{ID: "b", StartTime: 30, Duration: 10})

	res, err := tl.Move("b", 5)
	if err != nil {
		t.Fatal(err)
	}

	if len(res) != 1 || res[0].ClipID != "a" || res[0].Outcome != OutcomeTailTrimmed {
		t.Fatalf("Move() = %+v", res)
	}

	a, _ := tl.Get("a")
	if a.Duration != 5 {
		t.Fatalf("a = %+v", a)
	}

	if _, err := tl.Move("missing", 0); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("error = %v", err)
	}
}

func TestTrimAndFades(t *testing.T) {
	tl := New()
	mustAdd(t, tl, Clip{ID: "a", Duration: 10, FadeIn: 4})

	c, err := tl.Trim("a", 2, 5)
	if err != nil {
		t.Fatal(err)
	}

	if c.VisibleDuration() != 3 || c.FadeIn != 3 {
		t.Fatalf("trimmed = %+v", c)
	}

	if _, err := tl.Trim("a", 5, 5); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("error = %v", err)
	}

	if _, err := tl.SetFades("a", 1, 5); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("error = %v", err)
	}

	c, err = tl.SetGain("a", -6)
	if err != nil || c.Gain != -6 {
		t.Fatalf("SetGain() = %+v, %v", c, err)
	}
}

func TestSplit(t *testing.T) {
	tl := New()
	mustAdd(t, tl, Clip{ID: "a", SourceID: "s", StartTime: 10, Offset: 1, Duration: 9, FadeIn: 1, FadeOut: 2})

	left, right, err := tl.Split("a", 13)
	if err != nil {
		t.Fatal(err)
	}

	if left.ID != "a" || left.End() != 13 || left.FadeIn != 1 || left.FadeOut != 0 {
		t.Fatalf("left = %+v", left)
	}

	if right.ID == "a" || right.StartTime != 13 || right.Offset != 4 || right.Duration != 9 || right.FadeIn != 0 || right.FadeOut != 2 {
		t.Fatalf("right = %+v", right)
	}

	if right.End() != 18 || tl.Len() != 2 {
		t.Fatalf("right end = %v, len = %d", right.End(), tl.Len())
	}

	if _, _, err := tl.Split("a", 10); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("split at start: error = %v", err)
	}
}

func TestDuplicate(t *testing.T) {
	tl := New()
	mustAdd(t, tl, Clip{ID: "a", Duration: 2, Gain: 3})

	d, err := tl.Duplicate("a", 5)
	if err != nil {
		t.Fatal(err)
	}

	if d.ID == "a" || d.StartTime != 5 || d.Gain != 3 {
		t.Fatalf("duplicate = %+v", d)
	}
}

func TestRemoveUnknown(t *testing.T) {
	if err := New().Remove("x"); !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("error = %v", err)
	}
}
