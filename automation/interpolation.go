package automation

import (
	"fmt"
	"strings"
)

// Interpolation selects the curve between a keyframe and the next one.
type Interpolation int

const (
	Linear Interpolation = iota
	EaseIn
	EaseOut
	EaseInOut
	Step
)

var interpolationNames = [...]string{
	Linear:    "linear",
	EaseIn:    "ease-in",
	EaseOut:   "ease-out",
	EaseInOut: "ease-in-out",
	Step:      "step",
}

// Valid reports whether i is one of the defined modes.
func (i Interpolation) Valid() bool { return i >= Linear && i <= Step }

func (i Interpolation) String() string {
	if i < Linear || i > Step {
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}

	return interpolationNames[i]
}

// ParseInterpolation maps a name such as "ease-in" to its mode. The empty
// string is linear.
func ParseInterpolation(s string) (Interpolation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Linear, nil
	}

	for i, name := range interpolationNames {
		if name == s {
			return Interpolation(i), nil
		}
	}

	return 0, fmt.Errorf("automation: unknown interpolation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (i Interpolation) MarshalText() ([]byte, error) {
	if i < Linear || i > Step {
		return nil, fmt.Errorf("automation: invalid interpolation %d", int(i))
	}

	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interpolation) UnmarshalText(b []byte) error {
	v, err := ParseInterpolation(string(b))
	if err != nil {
		return err
	}

	*i = v

	return nil
}

// shape maps progress in [0, 1] to the blend factor of the mode.
func (i Interpolation) shape(progress float64) float64 {
	switch i {
	case EaseIn:
		return progress * progress
	case EaseOut:
		return 1 - (1-progress)*(1-progress)
	case EaseInOut:
		if progress < 0.5 {
			return 2 * progress * progress
		}

		d := -2*progress + 2

		return 1 - d*d/2
	default:
		return progress
	}
}
