package mixer

import (
	"slices"
	"testing"
)

func TestEffectiveGains(t *testing.T) {
	tests := []struct {
		name   string
		states []GainState
		want   []float64
	}{
		{
			name:   "no flags",
			states: []GainState{{Volume: 1}, {Volume: 0.5}},
			want:   []float64{1, 0.5},
		},
		{
			name:   "mute",
			states: []GainState{{Volume: 1, Mute: true}, {Volume: 0.5}},
			want:   []float64{0, 0.5},
		},
		{
			name:   "solo silences others",
			states: []GainState{{Volume: 1}, {Volume: 1, Solo: true}, {Volume: 1}},
			want:   []float64{0, 1, 0},
		},
		{
			name:   "muted solo stays silent",
			states: []GainState{{Volume: 1, Solo: true, Mute: true}, {Volume: 1}},
			want:   []float64{0, 0},
		},
		{
			name:   "two solos",
			states: []GainState{{Volume: 0.3, Solo: true}, {Volume: 1}, {Volume: 0.7, Solo: true}},
			want:   []float64{0.3, 0, 0.7},
		},
		{
			name:   "empty",
			states: nil,
			want:   []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveGains(tt.states); !slices.Equal(got, tt.want) {
				t.Fatalf("EffectiveGains = %v, want %v", got, tt.want)
			}
		})
	}
}
