package transport

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-mixer/automation"
	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/mixer/node"
	"github.com/cwbudde/algo-mixer/sample"
	"github.com/cwbudde/algo-vecmath"
)

// ErrRateMismatch is returned when a source buffer is not at the mixer's
// sample rate.
var ErrRateMismatch = errors.New("transport: source sample rate differs from mixer")

// Voice plays one clip once. It reads from an immutable source buffer and
// owns only its scratch space, so many voices can share a source.
type Voice struct {
	plan       VoicePlan
	sampleRate float64
	left       []float64
	right      []float64
	curves     map[automation.Parameter]automation.Curve

	start    int64 // transport frame of the first sample
	srcStart int
	length   int

	l, r, env []float64
}

// NewVoice binds a plan to its source buffer and the automation curves
// captured at scheduling time. It returns nil without error when the
// plan covers no frame of the source.
func NewVoice(plan VoicePlan, src *sample.Buffer, curves map[automation.Parameter]automation.Curve, sampleRate float64) (*Voice, error) {
	if src.SampleRate() != sampleRate {
		return nil, fmt.Errorf("%w: clip %s at %v Hz, mixer at %v Hz",
			ErrRateMismatch, plan.Clip.ID, src.SampleRate(), sampleRate)
	}

	left, right := src.Stereo()
	srcStart := core.SecondsToFrames(plan.Offset, sampleRate)
	length := core.SecondsToFrames(plan.PlayLength, sampleRate)

	if srcStart+length > len(left) {
		length = len(left) - srcStart
	}

	if length <= 0 {
		return nil, nil
	}

	return &Voice{
		plan:       plan,
		sampleRate: sampleRate,
		left:       left,
		right:      right,
		curves:     curves,
		start:      int64(core.SecondsToFrames(plan.When, sampleRate)),
		srcStart:   srcStart,
		length:     length,
	}, nil
}

// Plan returns the schedule the voice was built from.
func (v *Voice) Plan() VoicePlan { return v.plan }

// Mix adds the voice's contribution to the block starting at transport
// frame into left and right. It reports whether the voice has finished.
func (v *Voice) Mix(frame int64, left, right []float64) bool {
	n := int64(len(left))
	if frame+n <= v.start {
		return false
	}

	// at is the first block index the voice writes, pos the voice frame
	// it writes there.
	at := max(0, v.start-frame)
	pos := int(frame + at - v.start)
	count := min(int(n-at), v.length-pos)

	if count <= 0 {
		return pos >= v.length
	}

	v.l = core.EnsureLen(v.l, count)
	v.r = core.EnsureLen(v.r, count)
	v.env = core.EnsureLen(v.env, count)

	copy(v.l, v.left[v.srcStart+pos:])
	copy(v.r, v.right[v.srcStart+pos:])

	// Automation is evaluated once per block at clip-local time.
	tau := v.plan.Elapsed + float64(pos)/v.sampleRate
	gain := v.plan.Amplitude() *
		v.curves[automation.Volume].ValueAt(tau, 1) *
		core.DBToLinear(v.curves[automation.Gain].ValueAt(tau, 0))

	for i := range v.env {
		v.env[i] = gain * v.plan.Envelope(float64(pos+i)/v.sampleRate)
	}

	vecmath.MulBlockInPlace(v.l, v.env)
	vecmath.MulBlockInPlace(v.r, v.env)
	node.Pan(v.l, v.r, v.curves[automation.Pan].ValueAt(tau, 0))

	core.Accumulate(left[at:at+int64(count)], v.l)
	core.Accumulate(right[at:at+int64(count)], v.r)

	return pos+count >= v.length
}
