package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/internal/device"
	"github.com/cwbudde/algo-mixer/mixer"
	"github.com/cwbudde/algo-mixer/mixer/graph"
	"github.com/cwbudde/algo-mixer/sample"
)

// ErrInvalidPosition is returned for a negative or non-finite start time.
var ErrInvalidPosition = errors.New("transport: invalid position")

// DefaultBlockFrames is the render block size.
const DefaultBlockFrames = 512

// Arrangement supplies what the transport plays.
type Arrangement interface {
	// Clips lists every clip on every track.
	Clips() []ClipRef
	// Source returns the decoded buffer for a source id.
	Source(id string) (*sample.Buffer, error)
	// Automation returns the keyframe curves of a clip.
	Automation(clipID string) map[automation.Parameter]automation.Curve
}

type config struct {
	log         *slog.Logger
	blockFrames int
	output      func(stream io.Reader) device.Output
}

// Option configures a Transport.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithBlockFrames sets the number of frames rendered per block.
func WithBlockFrames(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.blockFrames = n
		}
	}
}

// WithOutput sets how the output device is opened. open receives the
// stream the device must pull from. Without this option the transport is
// headless and only advances through Render.
func WithOutput(open func(stream io.Reader) device.Output) Option {
	return func(c *config) { c.output = open }
}

// session is one run of playback from Play until Pause or Stop. After it
// is published only the render goroutine touches voices.
type session struct {
	from   float64
	frame  atomic.Int64
	live   atomic.Int64
	last   int64 // frame after which no voice sounds
	voices map[graph.NodeID][]*Voice
}

func (s *session) feed(id graph.NodeID, left, right []float64) {
	vs := s.voices[id]
	if len(vs) == 0 {
		return
	}

	frame := s.frame.Load()
	kept := vs[:0]

	for _, v := range vs {
		if v.Mix(frame, left, right) {
			s.live.Add(-1)
			continue
		}

		kept = append(kept, v)
	}

	clear(vs[len(kept):])
	s.voices[id] = kept
}

// Transport starts, pauses and stops playback of an arrangement through a
// mixer.
type Transport struct {
	mixer *mixer.Mixer
	arr   Arrangement
	out   device.Output
	log   *slog.Logger
	block int

	mu       sync.Mutex
	position float64

	current atomic.Pointer[session]

	// Render scratch, owned by the render goroutine.
	left, right []float64
}

// New creates a stopped transport at position zero.
func New(m *mixer.Mixer, arr Arrangement, opts ...Option) *Transport {
	cfg := config{
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		blockFrames: DefaultBlockFrames,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Transport{mixer: m, arr: arr, log: cfg.log, block: cfg.blockFrames}

	if cfg.output != nil {
		t.out = cfg.output(&stream{t: t})
	} else {
		t.out = &device.Fake{}
	}

	return t
}

// Play starts playback at from seconds. It blocks only while the output
// device resumes. Calling Play while playing does nothing. If the device
// fails, the returned error wraps device.ErrUnavailable and the transport
// stays stopped, so Play can be retried.
func (t *Transport) Play(ctx context.Context, from float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.Load() != nil {
		return nil
	}

	if from < 0 || !core.IsFinite(from) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, from)
	}

	s, err := t.schedule(from)
	if err != nil {
		return err
	}

	if err := t.out.Resume(ctx); err != nil {
		t.log.Error("transport: output device failed", "err", err)
		return err
	}

	t.position = from
	t.current.Store(s)
	t.log.Info("transport: play", "from", from, "voices", s.live.Load())

	return nil
}

// Pause stops every voice and keeps the position.
func (t *Transport) Pause() error {
	return t.halt("pause", false)
}

// Stop stops every voice and rewinds to zero.
func (t *Transport) Stop() error {
	return t.halt("stop", true)
}

func (t *Transport) halt(op string, rewind bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.current.Swap(nil)

	switch {
	case rewind:
		t.position = 0
	case s != nil:
		t.position = s.position(t.mixer.SampleRate())
	}

	if s == nil {
		return nil
	}

	t.log.Info("transport: "+op, "position", t.position)

	return t.out.Suspend()
}

// Close stops playback and releases the output device.
func (t *Transport) Close() error {
	return errors.Join(t.Stop(), t.out.Close())
}

// Playing reports whether a session is running.
func (t *Transport) Playing() bool {
	return t.current.Load() != nil
}

// Position is the transport time in seconds.
func (t *Transport) Position() float64 {
	if s := t.current.Load(); s != nil {
		return s.position(t.mixer.SampleRate())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.position
}

// LiveVoices counts the voices still sounding in the running session.
func (t *Transport) LiveVoices() int {
	if s := t.current.Load(); s != nil {
		return int(s.live.Load())
	}

	return 0
}

// Finished reports whether the running session has played every voice
// to its end.
func (t *Transport) Finished() bool {
	s := t.current.Load()

	return s != nil && s.live.Load() == 0 && s.frame.Load() >= s.last
}

// CalculateDuration is the end of the arrangement in seconds, computed
// from the current clip placement.
func (t *Transport) CalculateDuration() float64 {
	return CalculateDuration(t.arr.Clips())
}

// Render produces the next block of master output into left and right.
// While stopped the block is silent. Render must only be called from one
// goroutine.
func (t *Transport) Render(left, right []float64) {
	s := t.current.Load()
	if s == nil {
		core.Zero(left)
		core.Zero(right)

		return
	}

	t.mixer.Render(left, right, s.feed)
	s.frame.Add(int64(len(left)))
}

func (t *Transport) schedule(from float64) (*session, error) {
	sr := t.mixer.SampleRate()
	s := &session{from: from, voices: make(map[graph.NodeID][]*Voice)}

	for _, p := range Plan(t.arr.Clips(), from) {
		input, err := t.mixer.Input(p.Track)
		if err != nil {
			t.log.Debug("transport: clip on unknown track", "clip", p.Clip.ID, "track", p.Track)
			continue
		}

		src, err := t.arr.Source(p.Clip.SourceID)
		if err != nil {
			return nil, fmt.Errorf("transport: clip %s: %w", p.Clip.ID, err)
		}

		v, err := NewVoice(p, src, t.arr.Automation(p.Clip.ID), sr)
		if err != nil {
			return nil, err
		}

		if v == nil {
			continue
		}

		s.voices[input] = append(s.voices[input], v)
		s.live.Add(1)
		s.last = max(s.last, v.start+int64(v.length))
	}

	return s, nil
}

func (s *session) position(sampleRate float64) float64 {
	return s.from + float64(s.frame.Load())/sampleRate
}

func (t *Transport) renderBlock() ([]float64, []float64) {
	t.left = core.EnsureLen(t.left, t.block)
	t.right = core.EnsureLen(t.right, t.block)
	t.Render(t.left, t.right)

	return t.left, t.right
}

// stream encodes rendered blocks as interleaved float32 little-endian
// stereo for a pull-based output device.
// Bytes left over from a session that has since been paused, stopped or
// replaced are dropped rather than played.
type stream struct {
	t       *Transport
	owner   *session
	pending []byte
	buf     []byte
}

func (s *stream) Read(p []byte) (int, error) {
	if cur := s.t.current.Load(); cur != s.owner {
		s.owner = cur
		s.pending = nil
	}

	n := 0

	for n < len(p) {
		if len(s.pending) == 0 {
			s.fill()
		}

		c := copy(p[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}

	return n, nil
}

func (s *stream) fill() {
	s.owner = s.t.current.Load()
	left, right := s.t.renderBlock()

	size := len(left) * 8
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}

	s.buf = s.buf[:size]

	for i := range left {
		binary.LittleEndian.PutUint32(s.buf[i*8:], math.Float32bits(float32(left[i])))
		binary.LittleEndian.PutUint32(s.buf[i*8+4:], math.Float32bits(float32(right[i])))
	}

	s.pending = s.buf
}
