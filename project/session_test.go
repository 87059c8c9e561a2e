package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/export"
	"github.com/cwbudde/algo-mixer/internal/testutil"
	"github.com/cwbudde/algo-mixer/mixer"
	"github.com/cwbudde/algo-mixer/render"
	"github.com/cwbudde/algo-mixer/sample"
	"github.com/cwbudde/algo-mixer/timeline"
)

// writeTone writes a mono 440 Hz WAV of the given length to dir/name and
// returns its bytes.
func writeTone(t *testing.T, dir, name string, rate, seconds float64) []byte {
	t.Helper()

	buf, err := sample.New(rate, [][]float64{testutil.DeterministicSine(440, rate, 0.5, int(rate*seconds))})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, name)
	if err := export.WriteFile(path, buf, 16); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	return raw
}

type fixture struct {
	s      *Session
	track  int
	source string
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	track, err := s.AddTrack("vox")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}

	src, err := s.ImportSource("", "tone.wav", writeTone(t, t.TempDir(), "tone.wav", DefaultSampleRate, 1))
	if err != nil {
		t.Fatalf("ImportSource() error = %v", err)
	}

	return fixture{s: s, track: track, source: src}
}

func (f fixture) clip(t *testing.T, start float64) timeline.Clip {
	t.Helper()

	c, err := f.s.AddClip(f.track, f.source, start)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}

	return c
}

func TestAddTrackAtUnityVolume(t *testing.T) {
	f := newFixture(t)

	settings, err := f.s.Mixer().Track(f.track)
	if err != nil {
		t.Fatal(err)
	}

	if settings.Volume != 1 || settings.Name != "vox" {
		t.Fatalf("track settings = %+v", settings)
	}
}

func TestAddClipSpansSource(t *testing.T) {
	f := newFixture(t)
	c := f.clip(t, 2)

	if c.ID == "" || c.Offset != 0 || c.StartTime != 2 {
		t.Fatalf("clip = %+v", c)
	}

	testutil.RequireNear(t, "duration", c.Duration, 1, 1e-9)
	testutil.RequireNear(t, "session duration", f.s.Duration(), 3, 1e-9)
}

func TestImportResamplesToSessionRate(t *testing.T) {
	f := newFixture(t)

	id, err := f.s.ImportSource("slow", "slow.wav", writeTone(t, t.TempDir(), "slow.wav", 24000, 0.5))
	if err != nil {
		t.Fatalf("ImportSource() error = %v", err)
	}

	buf, err := f.s.Source(id)
	if err != nil {
		t.Fatal(err)
	}

	if buf.SampleRate() != DefaultSampleRate {
		t.Fatalf("SampleRate() = %v", buf.SampleRate())
	}

	testutil.RequireNear(t, "duration", buf.Duration(), 0.5, 1e-3)
}

func TestSourceDecodesFromStoreOnce(t *testing.T) {
	f := newFixture(t)

	a, err := f.s.Source(f.source)
	if err != nil {
		t.Fatal(err)
	}

	b, _ := f.s.Source(f.source)
	if a != b {
		t.Fatal("Source() decoded twice")
	}

	if _, err := f.s.Source("missing"); err == nil {
		t.Fatal("Source(missing) error = nil")
	}
}

func TestMoveClipResolvesAndNotifies(t *testing.T) {
	var seen []string

	f := newFixture(t, WithClipObserver(func(_ int, c timeline.Clip) { seen = append(seen, c.ID) }))
	a := f.clip(t, 0)
	b := f.clip(t, 3)
	seen = nil

	res, err := f.s.MoveClip(f.track, b.ID, 0.5)
	if err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}

	if len(res) != 1 || res[0].ClipID != a.ID || res[0].Outcome != timeline.OutcomeTailTrimmed {
		t.Fatalf("resolutions = %+v", res)
	}

	tl, _ := f.s.Timeline(f.track)

	got, _ := tl.Get(a.ID)
	testutil.RequireNear(t, "trimmed end", got.End(), 0.5, 1e-9)

	if len(seen) != 2 || seen[0] != b.ID || seen[1] != a.ID {
		t.Fatalf("observer saw %v", seen)
	}
}

func TestSplitClipMovesKeyframes(t *testing.T) {
	f := newFixture(t)
	c := f.clip(t, 1)

	for _, kf := range []struct{ at, v float64 }{{0.2, 0.5}, {0.8, 1.5}} {
		if _, err := f.s.AddKeyframe(c.ID, automation.Volume, kf.at, kf.v, automation.Linear); err != nil {
			t.Fatalf("AddKeyframe() error = %v", err)
		}
	}

	left, right, err := f.s.SplitClip(f.track, c.ID, 1.5)
	if err != nil {
		t.Fatalf("SplitClip() error = %v", err)
	}

	testutil.RequireNear(t, "left end", left.End(), 1.5, 1e-9)
	testutil.RequireNear(t, "right offset", right.Offset, 0.5, 1e-9)

	lk := f.s.Keyframes().Keyframes(left.ID, automation.Volume)
	rk := f.s.Keyframes().Keyframes(right.ID, automation.Volume)

	if len(lk) != 2 || lk[0].Time != 0.2 || len(rk) != 2 || rk[1].Value != 1.5 {
		t.Fatalf("left keyframes = %+v, right keyframes = %+v", lk, rk)
	}

	testutil.RequireNear(t, "right keyframe time", rk[1].Time, 0.3, 1e-12)

	// The volume heard at each timeline position is unchanged by the split.
	for _, at := range []float64{1.1, 1.4, 1.5, 1.6, 1.75} {
		want := 0.5 + (at-1.2)/0.6
		want = min(max(want, 0.5), 1.5)

		got := f.s.Keyframes().ValueAt(left.ID, automation.Volume, at-left.StartTime, 1)
		if at >= right.StartTime {
			got = f.s.Keyframes().ValueAt(right.ID, automation.Volume, at-right.StartTime, 1)
		}

		testutil.RequireNear(t, "volume", got, want, 1e-12)
	}
}

func TestUpdateKeyframeOutsideClip(t *testing.T) {
	f := newFixture(t)
	c := f.clip(t, 0)

	kf, err := f.s.AddKeyframe(c.ID, automation.Gain, 0.5, 3, automation.Linear)
	if err != nil {
		t.Fatal(err)
	}

	late := c.VisibleDuration() + 0.5
	if _, err := f.s.UpdateKeyframe(c.ID, automation.Gain, kf.ID, automation.Patch{Time: &late}); !errors.Is(err, ErrKeyframeRange) {
		t.Fatalf("UpdateKeyframe() error = %v, want ErrKeyframeRange", err)
	}

	early := 0.25
	got, err := f.s.UpdateKeyframe(c.ID, automation.Gain, kf.ID, automation.Patch{Time: &early})
	if err != nil || got.Time != early {
		t.Fatalf("UpdateKeyframe() = %+v, %v", got, err)
	}

	if _, err := f.s.UpdateKeyframe("nope", automation.Gain, kf.ID, automation.Patch{}); !errors.Is(err, timeline.ErrUnknownClip) {
		t.Fatalf("UpdateKeyframe(unknown clip) error = %v", err)
	}
}

func TestDuplicateAndRemoveClipKeyframes(t *testing.T) {
	f := newFixture(t)
	c := f.clip(t, 0)

	if _, err := f.s.AddKeyframe(c.ID, automation.Pan, 0.5, -1, automation.Step); err != nil {
		t.Fatal(err)
	}

	dup, err := f.s.DuplicateClip(f.track, c.ID, 4)
	if err != nil {
		t.Fatalf("DuplicateClip() error = %v", err)
	}

	if dup.StartTime != 4 || !f.s.Keyframes().HasKeyframes(dup.ID, automation.Pan) {
		t.Fatalf("duplicate = %+v", dup)
	}

	if err := f.s.RemoveClip(f.track, c.ID); err != nil {
		t.Fatalf("RemoveClip() error = %v", err)
	}

	if f.s.Keyframes().HasKeyframes(c.ID, "") {
		t.Fatal("keyframes survived clip removal")
	}

	if err := f.s.RemoveTrack(f.track); err != nil {
		t.Fatal(err)
	}

	if f.s.Keyframes().HasKeyframes(dup.ID, "") || len(f.s.Clips()) != 0 {
		t.Fatal("track removal left clips or keyframes")
	}
}

func TestAddKeyframeOutsideClip(t *testing.T) {
	f := newFixture(t)
	c := f.clip(t, 0)

	if _, err := f.s.AddKeyframe(c.ID, automation.Gain, 1.5, 3, automation.Linear); !errors.Is(err, ErrKeyframeRange) {
		t.Fatalf("AddKeyframe() error = %v, want ErrKeyframeRange", err)
	}

	if _, err := f.s.AddKeyframe("nope", automation.Gain, 0, 3, automation.Linear); !errors.Is(err, timeline.ErrUnknownClip) {
		t.Fatalf("AddKeyframe(unknown clip) error = %v", err)
	}
}

func TestUnknownTrack(t *testing.T) {
	f := newFixture(t)

	if _, err := f.s.AddClip(99, f.source, 0); !errors.Is(err, mixer.ErrUnknownTrack) {
		t.Fatalf("AddClip() error = %v, want ErrUnknownTrack", err)
	}

	if _, err := f.s.MoveClip(f.track, "nope", 1); !errors.Is(err, timeline.ErrUnknownClip) {
		t.Fatalf("MoveClip() error = %v, want ErrUnknownClip", err)
	}
}

func TestSessionRenderAndPlay(t *testing.T) {
	f := newFixture(t)
	f.clip(t, 0)
	f.clip(t, 1)

	buf, err := f.s.Render(context.Background(), render.Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if buf.Frames() != 2*int(DefaultSampleRate) {
		t.Fatalf("Frames() = %d", buf.Frames())
	}

	if buf.Peak() < 0.1 {
		t.Fatalf("Peak() = %v", buf.Peak())
	}

	tr := f.s.NewTransport()
	if err := tr.Play(context.Background(), 1.5); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if tr.LiveVoices() != 1 {
		t.Fatalf("LiveVoices() = %d, want 1", tr.LiveVoices())
	}

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
}
