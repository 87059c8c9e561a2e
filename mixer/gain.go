package mixer

// GainState is the part of a track the mute/solo policy looks at.
type GainState struct {
	Volume float64
	Mute   bool
	Solo   bool
}

// EffectiveGains resolves mute, solo and volume for every track at once.
// When any track is soloed, only soloed tracks that are not muted play.
// Otherwise every unmuted track plays at its volume.
func EffectiveGains(states []GainState) []float64 {
	anySolo := false

	for _, s := range states {
		if s.Solo {
			anySolo = true
			break
		}
	}

	gains := make([]float64, len(states))

	for i, s := range states {
		switch {
		case anySolo && (!s.Solo || s.Mute):
			gains[i] = 0
		case !anySolo && s.Mute:
			gains[i] = 0
		default:
			gains[i] = s.Volume
		}
	}

	return gains
}
