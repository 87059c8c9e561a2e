package graph

// scaleProc multiplies both channels by a constant.
type scaleProc struct {
	gain  float64
	calls int
}

func (p *scaleProc) Process(left, right []float64) {
	p.calls++

	for i := range left {
		left[i] *= p.gain
		right[i] *= p.gain
	}
}

func constFeeder(target NodeID, value float64) Feeder {
	return func(id NodeID, left, right []float64) {
		if id != target {
			return
		}

		for i := range left {
			left[i] += value
			right[i] += value
		}
	}
}
