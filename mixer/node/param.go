package node

import "fmt"

// Param names a node parameter.
type Param int

const (
	ParamGain      Param = iota // linear gain
	ParamPan                    // -1 (left) .. 1 (right)
	ParamFrequency              // Hz
	ParamQ
	ParamGainDB
	ParamThreshold // dBFS
	ParamRatio
	ParamKnee    // dB
	ParamAttack  // seconds
	ParamRelease // seconds

	numParams
)

var paramNames = [...]string{
	ParamGain:      "gain",
	ParamPan:       "pan",
	ParamFrequency: "frequency",
	ParamQ:         "q",
	ParamGainDB:    "gain-db",
	ParamThreshold: "threshold",
	ParamRatio:     "ratio",
	ParamKnee:      "knee",
	ParamAttack:    "attack",
	ParamRelease:   "release",
}

func (p Param) String() string {
	if p < 0 || p >= numParams {
		return fmt.Sprintf("Param(%d)", int(p))
	}

	return paramNames[p]
}

var dynamicsDefaults = map[Param]float64{
	ParamThreshold: -24,
	ParamKnee:      30,
	ParamRatio:     12,
	ParamAttack:    0.003,
	ParamRelease:   0.25,
}

// defaults lists, per kind, every supported parameter and its initial value.
var defaults = map[Kind]map[Param]float64{
	KindGain:       {ParamGain: 1},
	KindPan:        {ParamPan: 0},
	KindLowShelf:   {ParamFrequency: 100, ParamGainDB: 0},
	KindHighShelf:  {ParamFrequency: 10000, ParamGainDB: 0},
	KindPeaking:    {ParamFrequency: 1000, ParamQ: 1, ParamGainDB: 0},
	KindHighPass:   {ParamFrequency: 20, ParamQ: 0.7},
	KindLowPass:    {ParamFrequency: 20000, ParamQ: 0.7},
	KindCompressor: dynamicsDefaults,
	KindExpander: {
		ParamThreshold: -40,
		ParamKnee:      10,
		ParamRatio:     1,
		ParamAttack:    0.003,
		ParamRelease:   0.25,
	},
}

func (n *Node) bounds(p Param) (lo, hi float64) {
	switch p {
	case ParamGain:
		return 0, 16
	case ParamPan:
		return -1, 1
	case ParamFrequency:
		return 10, n.sampleRate * 0.49
	case ParamQ:
		return 1e-4, 1000
	case ParamGainDB:
		return -40, 40
	case ParamThreshold:
		return -100, 0
	case ParamRatio:
		if n.kind == KindExpander {
			return 0.1, 1
		}

		return 1, 20
	case ParamKnee:
		return 0, 40
	case ParamAttack, ParamRelease:
		return 0, 1
	default:
		return 0, 0
	}
}
