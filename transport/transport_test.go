package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/internal/device"
	"github.com/cwbudde/algo-mixer/internal/testutil"
	"github.com/cwbudde/algo-mixer/mixer"
	"github.com/cwbudde/algo-mixer/sample"
	"github.com/cwbudde/algo-mixer/timeline"
)

const testRate = 48000.0

type fakeArrangement struct {
	clips   []ClipRef
	sources map[string]*sample.Buffer
}

func (a *fakeArrangement) Clips() []ClipRef { return a.clips }

func (a *fakeArrangement) Source(id string) (*sample.Buffer, error) {
	b, ok := a.sources[id]
	if !ok {
		return nil, fmt.Errorf("no source %q", id)
	}

	return b, nil
}

func (a *fakeArrangement) Automation(string) map[automation.Parameter]automation.Curve {
	return nil
}

// setup builds a one-track mixer playing a 1 kHz sine clip of the given
// length in seconds.
func setup(t *testing.T, seconds float64, opts ...Option) (*Transport, *fakeArrangement) {
	t.Helper()

	m, err := mixer.New(mixer.WithSampleRate(testRate))
	if err != nil {
		t.Fatalf("mixer.New() error = %v", err)
	}

	track, err := m.AddTrack(mixer.DefaultTrackSettings("a"))
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}

	frames := int(seconds * testRate)

	src, err := sample.New(testRate, [][]float64{testutil.DeterministicSine(1000, testRate, 0.1, frames)})
	if err != nil {
		t.Fatalf("sample.New() error = %v", err)
	}

	arr := &fakeArrangement{
		clips:   []ClipRef{{Track: track, Clip: timeline.Clip{ID: "c1", SourceID: "s1", Duration: seconds}}},
		sources: map[string]*sample.Buffer{"s1": src},
	}

	return New(m, arr, opts...), arr
}

func render(tr *Transport, blocks, frames int) float64 {
	left, right := make([]float64, frames), make([]float64, frames)
	peak := 0.0

	for range blocks {
		tr.Render(left, right)
		peak = math.Max(peak, testutil.Peak(left))
	}

	return peak
}

func TestPlayPauseStop(t *testing.T) {
	tr, _ := setup(t, 1)
	ctx := context.Background()

	if err := tr.Play(ctx, 0); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if !tr.Playing() || tr.LiveVoices() != 1 {
		t.Fatalf("playing %v live %d", tr.Playing(), tr.LiveVoices())
	}

	if peak := render(tr, 4, 480); peak < 0.01 {
		t.Fatalf("peak while playing = %v", peak)
	}

	testutil.RequireNear(t, "position", tr.Position(), 0.04, 1e-12)

	if err := tr.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	if tr.Playing() || tr.LiveVoices() != 0 {
		t.Fatal("voices survived pause")
	}

	testutil.RequireNear(t, "paused position", tr.Position(), 0.04, 1e-12)

	if peak := render(tr, 1, 480); peak != 0 {
		t.Fatalf("peak while paused = %v, want 0", peak)
	}

	if err := tr.Play(ctx, tr.Position()); err != nil {
		t.Fatalf("resume error = %v", err)
	}

	render(tr, 1, 480)
	testutil.RequireNear(t, "resumed position", tr.Position(), 0.05, 1e-12)

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if tr.Position() != 0 || tr.Playing() {
		t.Fatalf("after stop position %v playing %v", tr.Position(), tr.Playing())
	}
}

func TestPlayWhilePlayingIsNoop(t *testing.T) {
	fake := &device.Fake{}
	tr, _ := setup(t, 1, WithOutput(func(io.Reader) device.Output { return fake }))

	for range 2 {
		if err := tr.Play(context.Background(), 0); err != nil {
			t.Fatalf("Play() error = %v", err)
		}
	}

	if fake.Resumes() != 1 {
		t.Fatalf("device resumed %d times, want 1", fake.Resumes())
	}
}

func TestPlayDeviceFailureIsRetryable(t *testing.T) {
	fake := &device.Fake{}
	fake.Fail(errors.New("busy"))

	tr, _ := setup(t, 1, WithOutput(func(io.Reader) device.Output { return fake }))

	err := tr.Play(context.Background(), 0.5)
	if !errors.Is(err, device.ErrUnavailable) {
		t.Fatalf("Play() error = %v, want device.ErrUnavailable", err)
	}

	if tr.Playing() || tr.Position() != 0 {
		t.Fatalf("state changed after failure: playing %v position %v", tr.Playing(), tr.Position())
	}

	fake.Fail(nil)

	if err := tr.Play(context.Background(), 0.5); err != nil {
		t.Fatalf("retry error = %v", err)
	}

	if !fake.Running() {
		t.Fatal("device not running after retry")
	}
}

func TestPlayRejectsInvalidPosition(t *testing.T) {
	tr, _ := setup(t, 1)

	for _, from := range []float64{-1, math.NaN(), math.Inf(1)} {
		if err := tr.Play(context.Background(), from); !errors.Is(err, ErrInvalidPosition) {
			t.Fatalf("Play(%v) error = %v", from, err)
		}
	}
}

func TestPlayMissingSource(t *testing.T) {
	tr, arr := setup(t, 1)
	arr.clips[0].Clip.SourceID = "gone"

	if err := tr.Play(context.Background(), 0); err == nil {
		t.Fatal("Play() with missing source: error = nil")
	}

	if tr.Playing() {
		t.Fatal("playing after schedule failure")
	}
}

func TestVoicesDisposeThemselves(t *testing.T) {
	tr, _ := setup(t, 0.01)

	if err := tr.Play(context.Background(), 0); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if tr.Finished() {
		t.Fatal("finished before rendering")
	}

	render(tr, 1, 480)

	if tr.LiveVoices() != 0 || !tr.Finished() {
		t.Fatalf("live %d finished %v", tr.LiveVoices(), tr.Finished())
	}
}

func TestUnknownTrackIsSkipped(t *testing.T) {
	tr, arr := setup(t, 1)
	arr.clips = append(arr.clips, ClipRef{Track: 99, Clip: timeline.Clip{ID: "x", SourceID: "s1", Duration: 1}})

	if err := tr.Play(context.Background(), 0); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if tr.LiveVoices() != 1 {
		t.Fatalf("LiveVoices() = %d, want 1", tr.LiveVoices())
	}
}

func TestCalculateDurationFollowsClipMoves(t *testing.T) {
	tr, arr := setup(t, 1)

	if got := tr.CalculateDuration(); got != 1 {
		t.Fatalf("CalculateDuration() = %v, want 1", got)
	}

	arr.clips[0].Clip.StartTime = 2.5

	if got := tr.CalculateDuration(); got != 3.5 {
		t.Fatalf("CalculateDuration() after move = %v, want 3.5", got)
	}
}

func TestStreamEncodesFloat32Stereo(t *testing.T) {
	var stream io.Reader

	tr, _ := setup(t, 1, WithBlockFrames(64), WithOutput(func(r io.Reader) device.Output {
		stream = r
		return &device.Fake{}
	}))

	silent := make([]byte, 16)
	if _, err := io.ReadFull(stream, silent); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	for _, b := range silent {
		if b != 0 {
			t.Fatalf("stopped stream = %v, want silence", silent)
		}
	}

	if err := tr.Play(context.Background(), 0); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	// Odd sizes must still be served in full.
	buf := make([]byte, 8*200+3)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	peak := 0.0

	for i := 0; i+4 <= len(buf); i += 4 {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d = %v", i/4, v)
		}

		peak = math.Max(peak, math.Abs(v))
	}

	if peak < 0.01 {
		t.Fatalf("stream peak = %v", peak)
	}
}

func TestStreamDropsBufferedAudioOnPause(t *testing.T) {
	var stream io.Reader

	tr, _ := setup(t, 1, WithBlockFrames(64), WithOutput(func(r io.Reader) device.Output {
		stream = r
		return &device.Fake{}
	}))

	if err := tr.Play(context.Background(), 0.01); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	// One frame leaves the rest of the block buffered.
	frame := make([]byte, 8)
	if _, err := io.ReadFull(stream, frame); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if err := tr.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	buf := make([]byte, 8*63)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d after pause = %d, want silence", i, b)
		}
	}
}
