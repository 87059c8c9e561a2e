// Package timeline holds the clips placed on a track and resolves overlaps
// when a clip is moved.
package timeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownClip is returned for operations on a clip id that is not on
	// the timeline.
	ErrUnknownClip = errors.New("timeline: unknown clip")
	// ErrInvalidClip is returned when a clip's fields break its invariants.
	ErrInvalidClip = errors.New("timeline: invalid clip")
)

// Clip is a placed, time-bounded reference into a source buffer. All times
// are in seconds. Offset and Duration are positions in the source, so the
// audible part of the clip is Duration - Offset long.
type Clip struct {
	ID        string  `yaml:"id"`
	SourceID  string  `yaml:"source"`
	StartTime float64 `yaml:"start"`
	Offset    float64 `yaml:"offset"`
	Duration  float64 `yaml:"duration"`
	FadeIn    float64 `yaml:"fade_in"`
	FadeOut   float64 `yaml:"fade_out"`
	Gain      float64 `yaml:"gain_db"`
}

// VisibleDuration returns Duration - Offset.
func (c Clip) VisibleDuration() float64 { return c.Duration - c.Offset }

// End returns the timeline position where the clip stops sounding.
func (c Clip) End() float64 { return c.StartTime + c.VisibleDuration() }

// Validate checks the clip invariants.
func (c Clip) Validate() error {
	for name, v := range map[string]float64{
		"start": c.StartTime, "offset": c.Offset, "duration": c.Duration,
		"fade in": c.FadeIn, "fade out": c.FadeOut, "gain": c.Gain,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %q is not finite", ErrInvalidClip, name, c.ID)
		}
	}

	switch {
	case c.StartTime < 0:
		return fmt.Errorf("%w: clip %q starts before zero", ErrInvalidClip, c.ID)
	case c.Offset < 0:
		return fmt.Errorf("%w: clip %q has negative offset", ErrInvalidClip, c.ID)
	case c.Offset >= c.Duration:
		return fmt.Errorf("%w: clip %q offset %.3f not below duration %.3f", ErrInvalidClip, c.ID, c.Offset, c.Duration)
	case c.FadeIn < 0 || c.FadeOut < 0:
		return fmt.Errorf("%w: clip %q has a negative fade", ErrInvalidClip, c.ID)
	case c.FadeIn > c.VisibleDuration() || c.FadeOut > c.VisibleDuration():
		return fmt.Errorf("%w: clip %q fade longer than visible duration", ErrInvalidClip, c.ID)
	}

	return nil
}

// clampFades shortens fades that no longer fit after a trim.
func (c *Clip) clampFades() {
	visible := c.VisibleDuration()
	c.FadeIn = math.Min(c.FadeIn, visible)
	c.FadeOut = math.Min(c.FadeOut, visible)
}
