// Package transport schedules timeline clips as playback voices and pulls
// the mixed result block by block, either into a live output device or
// into an offline render.
package transport

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-mixer/timeline"
)

// ClipRef places a clip on a track.
type ClipRef struct {
	Track int
	Clip  timeline.Clip
}

// VoicePlan describes how one clip is played from a given transport
// position. All times are in seconds.
type VoicePlan struct {
	Track int
	Clip  timeline.Clip

	// When is the delay from the transport start to the voice start.
	When float64
	// Offset is where in the source the voice starts reading.
	Offset float64
	// Duration is the clip's nominal remaining span from the voice start.
	Duration float64
	// PlayLength is how long the voice actually sounds: the clip's
	// visible end minus the voice start.
	PlayLength float64
	// Elapsed is how far into the clip the voice starts.
	Elapsed float64
}

// Plan computes the voices for playback starting at from. Clips ending at
// or before from are skipped. The result is ordered by When, then by track
// and clip id.
func Plan(clips []ClipRef, from float64) []VoicePlan {
	plans := make([]VoicePlan, 0, len(clips))

	for _, ref := range clips {
		c := ref.Clip
		if c.End() <= from {
			continue
		}

		begin := math.Max(from, c.StartTime)
		elapsed := math.Max(0, from-c.StartTime)

		p := VoicePlan{
			Track:    ref.Track,
			Clip:     c,
			When:     begin - from,
			Offset:   c.Offset + elapsed,
			Duration: c.StartTime + c.Duration - begin,
			Elapsed:  elapsed,
		}

		if from == 0 && c.StartTime == 0 {
			p.When = 0
		}

		p.PlayLength = math.Min(p.Duration, c.Duration-p.Offset)
		if p.PlayLength <= 0 {
			continue
		}

		plans = append(plans, p)
	}

	sort.SliceStable(plans, func(i, j int) bool {
		a, b := plans[i], plans[j]
		if a.When != b.When {
			return a.When < b.When
		}

		if a.Track != b.Track {
			return a.Track < b.Track
		}

		return a.Clip.ID < b.Clip.ID
	})

	return plans
}

// Amplitude is the clip gain as a linear factor.
func (p VoicePlan) Amplitude() float64 {
	return math.Pow(10, p.Clip.Gain/20)
}

// Envelope returns the fade envelope in [0, 1] at voice time t. The fade
// in starts at the voice start. The fade out ends where the clip ends on
// the timeline, so a voice started inside the fade out begins part way
// down the ramp. Where both fades overlap the lower one applies.
func (p VoicePlan) Envelope(t float64) float64 {
	if t < 0 || t >= p.PlayLength {
		return 0
	}

	env := 1.0

	if fi := p.Clip.FadeIn; fi > 0 && t < fi {
		env = math.Min(env, t/fi)
	}

	if fo := p.Clip.FadeOut; fo > 0 {
		if rest := p.PlayLength - t; rest < fo {
			env = math.Min(env, rest/fo)
		}
	}

	return env
}

// CalculateDuration is the latest start plus duration over all clips.
func CalculateDuration(clips []ClipRef) float64 {
	d := 0.0

	for _, ref := range clips {
		d = math.Max(d, ref.Clip.StartTime+ref.Clip.Duration)
	}

	return d
}
