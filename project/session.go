// Package project ties tracks, clips, automation and decoded sources into
// one editing session that can be played or rendered.
package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/codec"
	"github.com/cwbudde/algo-mixer/dsp/resample"
	"github.com/cwbudde/algo-mixer/mixer"
	"github.com/cwbudde/algo-mixer/render"
	"github.com/cwbudde/algo-mixer/sample"
	"github.com/cwbudde/algo-mixer/store"
	"github.com/cwbudde/algo-mixer/timeline"
	"github.com/cwbudde/algo-mixer/transport"
)

// DefaultSampleRate is the session rate when none is configured.
const DefaultSampleRate = 48000.0

// ErrKeyframeRange is returned for a keyframe time outside its clip.
var ErrKeyframeRange = errors.New("project: keyframe outside clip")

type config struct {
	sampleRate float64
	maxTracks  int
	log        *slog.Logger
	blobs      store.Store
	codecs     *codec.Registry
	observer   func(track int, c timeline.Clip)
	spectrum   bool
}

// Option configures a Session.
type Option func(*config)

// WithSampleRate sets the mixing rate. Sources at other rates are
// converted when first decoded.
func WithSampleRate(sr float64) Option {
	return func(c *config) { c.sampleRate = sr }
}

// WithMaxTracks caps the number of tracks.
func WithMaxTracks(n int) Option {
	return func(c *config) { c.maxTracks = n }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithStore keeps raw source files in s instead of memory.
func WithStore(s store.Store) Option {
	return func(c *config) { c.blobs = s }
}

// WithCodecs replaces the decoder registry.
func WithCodecs(r *codec.Registry) Option {
	return func(c *config) { c.codecs = r }
}

// WithClipObserver registers fn to be called with every clip whose
// placement changed, including siblings changed by collision resolution.
func WithClipObserver(fn func(track int, c timeline.Clip)) Option {
	return func(c *config) { c.observer = fn }
}

// WithSpectrum enables the master spectrum analyser.
func WithSpectrum() Option {
	return func(c *config) { c.spectrum = true }
}

// Session is an editable arrangement. Its methods are safe for concurrent
// use.
type Session struct {
	mixer      *mixer.Mixer
	keyframes  *automation.Store
	blobs      store.Store
	codecs     *codec.Registry
	log        *slog.Logger
	observer   func(track int, c timeline.Clip)
	sampleRate float64

	mu        sync.RWMutex
	timelines map[int]*timeline.Timeline
	names     map[string]string // source id to file name
	decoded   map[string]*sample.Buffer
}

// New creates an empty session.
func New(opts ...Option) (*Session, error) {
	cfg := config{
		sampleRate: DefaultSampleRate,
		maxTracks:  mixer.DefaultMaxTracks,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.blobs == nil {
		cfg.blobs = store.NewMemory()
	}

	if cfg.codecs == nil {
		cfg.codecs = codec.NewRegistry()
	}

	mopts := []mixer.Option{
		mixer.WithSampleRate(cfg.sampleRate),
		mixer.WithMaxTracks(cfg.maxTracks),
		mixer.WithLogger(cfg.log),
	}
	if cfg.spectrum {
		mopts = append(mopts, mixer.WithSpectrum())
	}

	m, err := mixer.New(mopts...)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	return &Session{
		mixer:      m,
		keyframes:  automation.NewStore(automation.WithLogger(cfg.log)),
		blobs:      cfg.blobs,
		codecs:     cfg.codecs,
		log:        cfg.log,
		observer:   cfg.observer,
		sampleRate: cfg.sampleRate,
		timelines:  make(map[int]*timeline.Timeline),
		names:      make(map[string]string),
		decoded:    make(map[string]*sample.Buffer),
	}, nil
}

// Mixer returns the session's mixer for strip and master controls.
func (s *Session) Mixer() *mixer.Mixer { return s.mixer }

// Keyframes returns the automation store.
func (s *Session) Keyframes() *automation.Store { return s.keyframes }

// SampleRate is the mixing rate.
func (s *Session) SampleRate() float64 { return s.sampleRate }

// AddTrack creates a track named name at unity volume.
func (s *Session) AddTrack(name string) (int, error) {
	settings := mixer.DefaultTrackSettings(name)
	settings.Volume = 1

	return s.AddTrackWithSettings(settings)
}

// AddTrackWithSettings creates a track with explicit strip settings.
func (s *Session) AddTrackWithSettings(settings mixer.TrackSettings) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.mixer.AddTrack(settings)
	if err != nil {
		return 0, err
	}

	s.timelines[id] = timeline.New()

	return id, nil
}

// RemoveTrack deletes a track with its clips and their keyframes.
func (s *Session) RemoveTrack(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mixer.RemoveTrack(id); err != nil {
		return err
	}

	for _, c := range s.timelines[id].Clips() {
		s.keyframes.ClearClip(c.ID)
	}

	delete(s.timelines, id)

	return nil
}

// Timeline returns the clip list of a track.
func (s *Session) Timeline(track int) (*timeline.Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.timeline(track)
}

func (s *Session) timeline(track int) (*timeline.Timeline, error) {
	tl, ok := s.timelines[track]
	if !ok {
		s.log.Debug("ignoring operation on unknown track", "track", track)
		return nil, fmt.Errorf("%w: %d", mixer.ErrUnknownTrack, track)
	}

	return tl, nil
}

// ImportSource stores and decodes an encoded file. name is used to pick
// the decoder by extension. An empty id is replaced by a generated one.
func (s *Session) ImportSource(id, name string, raw []byte) (string, error) {
	if id == "" {
		id = timeline.NewID() + strings.ToLower(filepath.Ext(name))
	}

	buf, err := s.decode(name, raw)
	if err != nil {
		return "", err
	}

	if err := s.blobs.Put(id, raw); err != nil {
		return "", fmt.Errorf("project: import %s: %w", name, err)
	}

	s.mu.Lock()
	s.names[id] = name
	s.decoded[id] = buf
	s.mu.Unlock()

	s.log.Debug("source imported", "id", id, "name", name, "frames", buf.Frames())

	return id, nil
}

// Source returns the decoded buffer for a source id at the session rate.
// Blobs already in the store are decoded on first use.
func (s *Session) Source(id string) (*sample.Buffer, error) {
	s.mu.RLock()
	buf, ok := s.decoded[id]
	name := s.names[id]
	s.mu.RUnlock()

	if ok {
		return buf, nil
	}

	raw, err := s.blobs.Get(id)
	if err != nil {
		return nil, fmt.Errorf("project: source %q: %w", id, err)
	}

	if name == "" {
		name = id
	}

	buf, err = s.decode(name, raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.decoded[id] = buf
	s.mu.Unlock()

	return buf, nil
}

func (s *Session) decode(name string, raw []byte) (*sample.Buffer, error) {
	buf, err := s.codecs.Decode(name, raw)
	if err != nil {
		return nil, err
	}

	if buf.SampleRate() != s.sampleRate {
		s.log.Debug("resampling source", "name", name, "from", buf.SampleRate(), "to", s.sampleRate)

		buf, err = buf.Resample(s.sampleRate, resample.QualityBalanced)
		if err != nil {
			return nil, fmt.Errorf("project: %s: %w", name, err)
		}
	}

	return buf, nil
}

// AddClip places a clip spanning the whole source at start.
func (s *Session) AddClip(track int, sourceID string, start float64) (timeline.Clip, error) {
	src, err := s.Source(sourceID)
	if err != nil {
		return timeline.Clip{}, err
	}

	return s.PlaceClip(track, timeline.Clip{SourceID: sourceID, StartTime: start, Duration: src.Duration()})
}

// PlaceClip adds a fully specified clip without collision resolution.
func (s *Session) PlaceClip(track int, c timeline.Clip) (timeline.Clip, error) {
	tl, err := s.Timeline(track)
	if err != nil {
		return timeline.Clip{}, err
	}

	c, err = tl.Add(c)
	if err != nil {
		return timeline.Clip{}, err
	}

	s.notify(track, c)

	return c, nil
}

// MoveClip relocates a clip and resolves overlaps with the other clips of
// its track. Every changed clip is reported to the observer.
func (s *Session) MoveClip(track int, clipID string, start float64) ([]timeline.Resolution, error) {
	tl, err := s.Timeline(track)
	if err != nil {
		return nil, err
	}

	res, err := tl.Move(clipID, start)
	if err != nil {
		s.log.Debug("ignoring move of unknown clip", "track", track, "clip", clipID)
		return nil, err
	}

	s.sync(track, tl, clipID)

	for _, r := range res {
		switch {
		case r.Outcome == timeline.OutcomeRejected:
			s.log.Debug("trim rejected", "clip", r.ClipID, "overlap", r.Overlap)
		case r.Outcome.Changed():
			s.log.Debug("clip resolved", "clip", r.ClipID, "outcome", r.Outcome.String())
			s.sync(track, tl, r.ClipID)
		}
	}

	return res, nil
}

// TrimClip sets a clip's source window.
func (s *Session) TrimClip(track int, clipID string, offset, duration float64) (timeline.Clip, error) {
	return s.edit(track, clipID, func(tl *timeline.Timeline) (timeline.Clip, error) {
		return tl.Trim(clipID, offset, duration)
	})
}

// SetClipFades sets a clip's fade lengths.
func (s *Session) SetClipFades(track int, clipID string, fadeIn, fadeOut float64) (timeline.Clip, error) {
	return s.edit(track, clipID, func(tl *timeline.Timeline) (timeline.Clip, error) {
		return tl.SetFades(clipID, fadeIn, fadeOut)
	})
}

// SetClipGain sets a clip's gain in dB.
func (s *Session) SetClipGain(track int, clipID string, dB float64) (timeline.Clip, error) {
	return s.edit(track, clipID, func(tl *timeline.Timeline) (timeline.Clip, error) {
		return tl.SetGain(clipID, dB)
	})
}

func (s *Session) edit(track int, clipID string, fn func(*timeline.Timeline) (timeline.Clip, error)) (timeline.Clip, error) {
	tl, err := s.Timeline(track)
	if err != nil {
		return timeline.Clip{}, err
	}

	c, err := fn(tl)
	if err != nil {
		return timeline.Clip{}, err
	}

	s.notify(track, c)

	return c, nil
}

// SplitClip cuts a clip at timeline position at. Keyframes after the cut
// move to the right part, shifted to its start, and the automation value
// at the cut is pinned on both parts.
func (s *Session) SplitClip(track int, clipID string, at float64) (left, right timeline.Clip, err error) {
	tl, err := s.Timeline(track)
	if err != nil {
		return left, right, err
	}

	left, right, err = tl.Split(clipID, at)
	if err != nil {
		return left, right, err
	}

	cut := at - left.StartTime
	s.keyframes.Split(clipID, right.ID, cut)

	s.notify(track, left)
	s.notify(track, right)

	return left, right, nil
}

// DuplicateClip copies a clip and its keyframes to start on the same
// track.
func (s *Session) DuplicateClip(track int, clipID string, start float64) (timeline.Clip, error) {
	tl, err := s.Timeline(track)
	if err != nil {
		return timeline.Clip{}, err
	}

	c, err := tl.Duplicate(clipID, start)
	if err != nil {
		return timeline.Clip{}, err
	}

	s.keyframes.CopyClip(clipID, c.ID, 0)
	s.notify(track, c)

	return c, nil
}

// RemoveClip deletes a clip and its keyframes.
func (s *Session) RemoveClip(track int, clipID string) error {
	tl, err := s.Timeline(track)
	if err != nil {
		return err
	}

	if err := tl.Remove(clipID); err != nil {
		return err
	}

	s.keyframes.ClearClip(clipID)

	return nil
}

// AddKeyframe adds a keyframe to a clip. time is relative to the clip
// start and must not exceed its visible duration.
func (s *Session) AddKeyframe(clipID string, p automation.Parameter, time, value float64, mode automation.Interpolation) (automation.Keyframe, error) {
	_, c, err := s.FindClip(clipID)
	if err != nil {
		return automation.Keyframe{}, err
	}

	if time > c.VisibleDuration() {
		return automation.Keyframe{}, fmt.Errorf("%w: %v > %v", ErrKeyframeRange, time, c.VisibleDuration())
	}

	return s.keyframes.Add(clipID, p, time, value, mode)
}

// UpdateKeyframe patches a keyframe of a clip. A new time must not exceed
// the clip's visible duration.
func (s *Session) UpdateKeyframe(clipID string, p automation.Parameter, id string, patch automation.Patch) (automation.Keyframe, error) {
	_, c, err := s.FindClip(clipID)
	if err != nil {
		return automation.Keyframe{}, err
	}

	if patch.Time != nil && *patch.Time > c.VisibleDuration() {
		return automation.Keyframe{}, fmt.Errorf("%w: %v > %v", ErrKeyframeRange, *patch.Time, c.VisibleDuration())
	}

	return s.keyframes.Update(clipID, p, id, patch)
}

// FindClip locates a clip on any track.
func (s *Session) FindClip(clipID string) (int, timeline.Clip, error) {
	for _, track := range s.mixer.TrackIDs() {
		tl, err := s.Timeline(track)
		if err != nil {
			continue
		}

		if c, err := tl.Get(clipID); err == nil {
			return track, c, nil
		}
	}

	return 0, timeline.Clip{}, fmt.Errorf("%w: %q", timeline.ErrUnknownClip, clipID)
}

// Clips lists every clip by track in track order.
func (s *Session) Clips() []transport.ClipRef {
	var refs []transport.ClipRef

	for _, track := range s.mixer.TrackIDs() {
		tl, err := s.Timeline(track)
		if err != nil {
			continue
		}

		for _, c := range tl.Clips() {
			refs = append(refs, transport.ClipRef{Track: track, Clip: c})
		}
	}

	return refs
}

// Automation returns a snapshot of a clip's keyframe curves.
func (s *Session) Automation(clipID string) map[automation.Parameter]automation.Curve {
	return s.keyframes.Snapshot(clipID)
}

// Tracks returns every track's strip settings in track order.
func (s *Session) Tracks() []render.Track {
	ids := s.mixer.TrackIDs()
	tracks := make([]render.Track, 0, len(ids))

	for _, id := range ids {
		settings, err := s.mixer.Track(id)
		if err != nil {
			continue
		}

		tracks = append(tracks, render.Track{ID: id, Settings: settings})
	}

	return tracks
}

// Master returns the master bus settings.
func (s *Session) Master() mixer.MasterSettings { return s.mixer.Master() }

// Duration is the end of the arrangement in seconds.
func (s *Session) Duration() float64 {
	return transport.CalculateDuration(s.Clips())
}

// NewTransport creates a transport that plays this session live.
func (s *Session) NewTransport(opts ...transport.Option) *transport.Transport {
	return transport.New(s.mixer, s, append([]transport.Option{transport.WithLogger(s.log)}, opts...)...)
}

// Render mixes the session offline.
func (s *Session) Render(ctx context.Context, opts render.Options) (*sample.Buffer, error) {
	if opts.Logger == nil {
		opts.Logger = s.log
	}

	return render.Offline(ctx, s, opts)
}

func (s *Session) sync(track int, tl *timeline.Timeline, clipID string) {
	if c, err := tl.Get(clipID); err == nil {
		s.notify(track, c)
	}
}

func (s *Session) notify(track int, c timeline.Clip) {
	if s.observer != nil {
		s.observer(track, c)
	}
}
