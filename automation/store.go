// Package automation stores keyframes per clip and parameter and evaluates
// the interpolated parameter curves.
//
// Keyframe lists are copy-on-write: a mutation builds a new sorted slice
// and swaps it in, so a list handed to a reader is never modified
// afterwards. ValueAt and Curve are pure lookups and may run on the render
// goroutine while the control goroutine edits.
package automation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnknownKeyframe is returned for operations on a keyframe id that
	// does not exist for the given clip and parameter.
	ErrUnknownKeyframe = errors.New("automation: unknown keyframe")
	// ErrUnknownParameter is returned for parameters without a range.
	ErrUnknownParameter = errors.New("automation: unknown parameter")
	// ErrInvalidKeyframe is returned for negative or non-finite times and
	// non-finite values.
	ErrInvalidKeyframe = errors.New("automation: invalid keyframe")
)

// DefaultNearestThreshold is the search radius Nearest uses when given a
// non-positive threshold.
const DefaultNearestThreshold = 0.1

// Keyframe is a control point. Time is relative to the clip start.
type Keyframe struct {
	ID            string        `yaml:"id"`
	Time          float64       `yaml:"time"`
	Value         float64       `yaml:"value"`
	Interpolation Interpolation `yaml:"interpolation"`

	// seq orders keyframes that share a time; the larger seq sorts later
	// and wins lookups at that time.
	seq uint64
}

// Patch holds the fields Update changes. Nil fields are left alone.
type Patch struct {
	Time          *float64
	Value         *float64
	Interpolation *Interpolation
}

// Store maps clip id to parameter to a time-sorted keyframe list.
type Store struct {
	mu    sync.RWMutex
	seq   uint64
	clips map[string]map[Parameter][]Keyframe
	log   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for ignored operations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clips: make(map[string]map[Parameter][]Keyframe),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func compareKeyframes(a, b Keyframe) int {
	switch {
	case a.Time < b.Time:
		return -1
	case a.Time > b.Time:
		return 1
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	default:
		return 0
	}
}

func validate(p Parameter, time, value float64, mode Interpolation) (float64, error) {
	r, err := RangeOf(p)
	if err != nil {
		return 0, err
	}

	if !mode.Valid() {
		return 0, fmt.Errorf("%w: interpolation %d", ErrInvalidKeyframe, int(mode))
	}

	if time < 0 || math.IsNaN(time) || math.IsInf(time, 0) {
		return 0, fmt.Errorf("%w: time %v", ErrInvalidKeyframe, time)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: value %v", ErrInvalidKeyframe, value)
	}

	return min(max(value, r.Min), r.Max), nil
}

// Add inserts a keyframe and returns it with a fresh id. The value is
// clamped to the parameter's range. A keyframe added at the same time as
// an existing one sorts after it.
func (s *Store) Add(clipID string, p Parameter, time, value float64, mode Interpolation) (Keyframe, error) {
	value, err := validate(p, time, value, mode)
	if err != nil {
		return Keyframe{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kf := s.fresh(time, value, mode)

	params := s.clips[clipID]
	if params == nil {
		params = make(map[Parameter][]Keyframe)
		s.clips[clipID] = params
	}

	list := slices.Clone(params[p])
	i, _ := slices.BinarySearchFunc(list, kf, compareKeyframes)
	params[p] = slices.Insert(list, i, kf)

	return kf, nil
}

// Update merges patch into the keyframe. Changing the time re-sorts the
// list and counts as a fresh insertion for tie-breaking.
func (s *Store) Update(clipID string, p Parameter, id string, patch Patch) (Keyframe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.clips[clipID][p]

	i := slices.IndexFunc(list, func(k Keyframe) bool { return k.ID == id })
	if i < 0 {
		return Keyframe{}, s.unknown("Update", clipID, p, id)
	}

	kf := list[i]
	if patch.Time != nil {
		kf.Time = *patch.Time
	}

	if patch.Value != nil {
		kf.Value = *patch.Value
	}

	if patch.Interpolation != nil {
		kf.Interpolation = *patch.Interpolation
	}

	value, err := validate(p, kf.Time, kf.Value, kf.Interpolation)
	if err != nil {
		return Keyframe{}, err
	}

	kf.Value = value

	next := slices.Clone(list)
	next[i] = kf

	if patch.Time != nil && *patch.Time != list[i].Time {
		s.seq++
		next[i].seq = s.seq
		slices.SortFunc(next, compareKeyframes)
	}

	s.clips[clipID][p] = next

	return kf, nil
}

// Remove deletes one keyframe.
func (s *Store) Remove(clipID string, p Parameter, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.clips[clipID][p]

	i := slices.IndexFunc(list, func(k Keyframe) bool { return k.ID == id })
	if i < 0 {
		return s.unknown("Remove", clipID, p, id)
	}

	next := slices.Delete(slices.Clone(list), i, i+1)
	if len(next) == 0 {
		delete(s.clips[clipID], p)
	} else {
		s.clips[clipID][p] = next
	}

	return nil
}

// ClearParameter deletes every keyframe of one parameter of a clip.
func (s *Store) ClearParameter(clipID string, p Parameter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if params := s.clips[clipID]; params != nil {
		delete(params, p)
	}
}

// ClearClip deletes every keyframe of a clip.
func (s *Store) ClearClip(clipID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clips, clipID)
}

// HasKeyframes reports whether the clip has any keyframe for p, or for
// any parameter when p is empty.
func (s *Store) HasKeyframes(clipID string, p Parameter) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	params := s.clips[clipID]
	if p != "" {
		return len(params[p]) > 0
	}

	for _, list := range params {
		if len(list) > 0 {
			return true
		}
	}

	return false
}

// Keyframes returns a copy of the sorted keyframe list.
func (s *Store) Keyframes(clipID string, p Parameter) []Keyframe {
	return slices.Clone(s.list(clipID, p))
}

func (s *Store) list(clipID string, p Parameter) []Keyframe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clips[clipID][p]
}

// ValueAt evaluates the parameter curve of a clip at time, or returns def
// when the clip has no keyframes for p.
func (s *Store) ValueAt(clipID string, p Parameter, time, def float64) float64 {
	return Curve(s.list(clipID, p)).ValueAt(time, def)
}

// Nearest returns the keyframe closest to time if its distance is below
// threshold. Equal distances resolve to the earlier keyframe.
func (s *Store) Nearest(clipID string, p Parameter, time, threshold float64) (Keyframe, bool) {
	if threshold <= 0 {
		threshold = DefaultNearestThreshold
	}

	var (
		best  Keyframe
		found bool
	)

	limit := threshold

	for _, kf := range s.list(clipID, p) {
		if d := math.Abs(kf.Time - time); d < limit {
			limit = d
			best = kf
			found = true
		}
	}

	return best, found
}

// CopyClip replaces dst's keyframes with copies of src's, shifted by
// offset seconds and given fresh ids. Copies that would land before zero
// are dropped, and dst is cleared when none remain. A src without
// keyframes leaves dst untouched. src is not changed.
func (s *Store) CopyClip(src, dst string, offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := s.clips[src]
	if len(params) == 0 {
		return
	}

	out := make(map[Parameter][]Keyframe, len(params))

	for p, list := range params {
		var copied []Keyframe

		for _, kf := range list {
			if kf.Time+offset < 0 {
				continue
			}

			copied = append(copied, s.fresh(kf.Time+offset, kf.Value, kf.Interpolation))
		}

		if len(copied) > 0 {
			out[p] = copied
		}
	}

	if len(out) == 0 {
		delete(s.clips, dst)
		return
	}

	s.clips[dst] = out
}

// Split divides the keyframes of src at clip time cut. src keeps those at
// or before cut; dst receives those at or after it, shifted to start at
// zero. Each parameter gets a keyframe holding its curve value at cut on
// both sides, carrying the mode of the segment that spans the cut, so both
// halves sound as the whole did. dst's previous keyframes are replaced.
func (s *Store) Split(src, dst string, cut float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := s.clips[src]
	if len(params) == 0 {
		delete(s.clips, dst)
		return
	}

	right := make(map[Parameter][]Keyframe, len(params))

	for p, list := range params {
		curve := Curve(list)
		value, mode := curve.ValueAt(cut, 0), curve.modeAt(cut)

		var l, r []Keyframe

		for _, kf := range list {
			if kf.Time <= cut {
				l = append(l, kf)
			}

			if kf.Time >= cut {
				r = append(r, s.fresh(kf.Time-cut, kf.Value, kf.Interpolation))
			}
		}

		if len(l) == 0 || l[len(l)-1].Time != cut {
			l = append(l, s.fresh(cut, value, mode))
		}

		if len(r) == 0 || r[0].Time != 0 {
			r = slices.Insert(r, 0, s.fresh(0, value, mode))
		}

		params[p] = l
		right[p] = r
	}

	s.clips[dst] = right
}

// fresh returns a keyframe with a new id that sorts after every existing
// one at the same time. The caller holds the write lock.
func (s *Store) fresh(time, value float64, mode Interpolation) Keyframe {
	s.seq++

	return Keyframe{ID: uuid.NewString(), Time: time, Value: value, Interpolation: mode, seq: s.seq}
}

// Snapshot returns the current curves of a clip. The result shares the
// immutable lists with the store and stays valid after later edits.
func (s *Store) Snapshot(clipID string) map[Parameter]Curve {
	s.mu.RLock()
	defer s.mu.RUnlock()

	params := s.clips[clipID]
	if len(params) == 0 {
		return nil
	}

	out := make(map[Parameter]Curve, len(params))
	for p, list := range params {
		out[p] = Curve(list)
	}

	return out
}

// ClipIDs returns the ids of all clips with keyframes, sorted.
func (s *Store) ClipIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clips))
	for id := range s.clips {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func (s *Store) unknown(op, clipID string, p Parameter, id string) error {
	s.log.Debug("ignoring operation on unknown keyframe", "op", op, "clip", clipID, "param", string(p), "keyframe", id)
	return fmt.Errorf("%w: %s/%s/%s", ErrUnknownKeyframe, clipID, p, id)
}
