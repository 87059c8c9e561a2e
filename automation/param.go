package automation

import (
	"fmt"
	"slices"
)

// Parameter names an automatable clip property.
type Parameter string

const (
	// Volume is a linear factor in [0, 2].
	Volume Parameter = "volume"
	// Pan is a stereo position in [-1, 1].
	Pan Parameter = "pan"
	// Gain is a trim in dB in [-24, 24].
	Gain Parameter = "gain"
)

// Range describes the legal values of a parameter.
type Range struct {
	Min, Max, Default float64
}

var ranges = map[Parameter]Range{
	Volume: {Min: 0, Max: 2, Default: 1},
	Pan:    {Min: -1, Max: 1, Default: 0},
	Gain:   {Min: -24, Max: 24, Default: 0},
}

// RangeOf returns the value range of p.
func RangeOf(p Parameter) (Range, error) {
	r, ok := ranges[p]
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownParameter, string(p))
	}

	return r, nil
}

// Parameters lists the automatable parameters in a stable order.
func Parameters() []Parameter {
	ps := make([]Parameter, 0, len(ranges))
	for p := range ranges {
		ps = append(ps, p)
	}

	slices.Sort(ps)

	return ps
}
