package timeline

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Timeline is the ordered clip list of one track. It is safe for
// concurrent use; every accessor returns copies.
type Timeline struct {
	mu    sync.RWMutex
	clips []*Clip
}

// New returns an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// NewID returns a fresh clip id.
func NewID() string {
	return uuid.NewString()
}

// Add validates c, assigns an id when it has none and appends it.
func (t *Timeline) Add(c Clip) (Clip, error) {
	if c.ID == "" {
		c.ID = NewID()
	}

	if err := c.Validate(); err != nil {
		return Clip{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.index(c.ID) >= 0 {
		return Clip{}, fmt.Errorf("%w: duplicate id %q", ErrInvalidClip, c.ID)
	}

	t.clips = append(t.clips, &c)
	t.sort()

	return c, nil
}

// Get returns a copy of the clip.
func (t *Timeline) Get(id string) (Clip, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := t.index(id)
	if i < 0 {
		return Clip{}, fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}

	return *t.clips[i], nil
}

// Clips returns copies of every clip ordered by start time.
func (t *Timeline) Clips() []Clip {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Clip, len(t.clips))
	for i, c := range t.clips {
		out[i] = *c
	}

	return out
}

// Len returns the number of clips.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.clips)
}

// Duration returns the latest start + duration over all clips, recomputed
// on every call.
func (t *Timeline) Duration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	end := 0.0
	for _, c := range t.clips {
		end = max(end, c.StartTime+c.Duration)
	}

	return end
}

// Move places the clip at start and resolves collisions with every other
// clip on the timeline.
func (t *Timeline) Move(id string, start float64) ([]Resolution, error) {
	if start < 0 {
		start = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}

	moved := t.clips[i]
	moved.StartTime = start

	res := Resolve(moved, t.clips)
	t.sort()

	return res, nil
}

// Update applies fn to a copy of the clip and commits it if the result is
// valid. The id cannot be changed.
func (t *Timeline) Update(id string, fn func(*Clip)) (Clip, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return Clip{}, fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}

	c := *t.clips[i]
	fn(&c)
	c.ID = id

	if err := c.Validate(); err != nil {
		return Clip{}, err
	}

	*t.clips[i] = c
	t.sort()

	return c, nil
}

// Trim sets the source window of the clip.
func (t *Timeline) Trim(id string, offset, duration float64) (Clip, error) {
	return t.Update(id, func(c *Clip) {
		c.Offset = offset
		c.Duration = duration
		c.clampFades()
	})
}

// SetFades sets the fade lengths.
func (t *Timeline) SetFades(id string, fadeIn, fadeOut float64) (Clip, error) {
	return t.Update(id, func(c *Clip) {
		c.FadeIn = fadeIn
		c.FadeOut = fadeOut
	})
}

// SetGain sets the clip gain in dB.
func (t *Timeline) SetGain(id string, dB float64) (Clip, error) {
	return t.Update(id, func(c *Clip) { c.Gain = dB })
}

// Split cuts the clip at timeline position at. The original keeps the left
// part and its fade-in; the returned right part gets a new id and keeps
// the fade-out. at must lie strictly inside the clip.
func (t *Timeline) Split(id string, at float64) (left, right Clip, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return Clip{}, Clip{}, fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}

	c := t.clips[i]
	if at <= c.StartTime || at >= c.End() {
		return Clip{}, Clip{}, fmt.Errorf("%w: split point %.3f outside clip %q", ErrInvalidClip, at, id)
	}

	cut := c.Offset + (at - c.StartTime)

	r := *c
	r.ID = NewID()
	r.StartTime = at
	r.Offset = cut
	r.FadeIn = 0
	r.clampFades()

	c.Duration = cut
	c.FadeOut = 0
	c.clampFades()

	t.clips = append(t.clips, &r)
	t.sort()

	return *c, r, nil
}

// Duplicate copies the clip to start with a fresh id. The copy does not
// take part in collision resolution.
func (t *Timeline) Duplicate(id string, start float64) (Clip, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return Clip{}, fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}

	c := *t.clips[i]
	c.ID = NewID()
	c.StartTime = max(0, start)

	t.clips = append(t.clips, &c)
	t.sort()

	return c, nil
}

// Remove deletes the clip.
func (t *Timeline) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}

	t.clips = slices.Delete(t.clips, i, i+1)

	return nil
}

func (t *Timeline) index(id string) int {
	return slices.IndexFunc(t.clips, func(c *Clip) bool { return c.ID == id })
}

func (t *Timeline) sort() {
	slices.SortStableFunc(t.clips, func(a, b *Clip) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		default:
			return 0
		}
	})
}
