package mixer

import (
	"fmt"

	"github.com/cwbudde/algo-mixer/mixer/graph"
	"github.com/cwbudde/algo-mixer/mixer/node"
)

// strip is one node of a channel strip together with its arena id.
type strip struct {
	id   graph.NodeID
	node *node.Node
}

// track is a channel strip: gain -> expander -> high-pass -> low-pass ->
// pan -> [EQ] -> [limiter] -> master.
type track struct {
	id       int
	settings TrackSettings
	topology Topology

	gain, expander, highPass, lowPass, pan strip
	low, mid, high, limiter                strip
}

func newTrack(g *graph.Graph, id int, settings TrackSettings, sampleRate float64) (*track, error) {
	t := &track{id: id, settings: settings, topology: -1}

	kinds := []struct {
		dst  *strip
		kind node.Kind
	}{
		{&t.gain, node.KindGain},
		{&t.expander, node.KindExpander},
		{&t.highPass, node.KindHighPass},
		{&t.lowPass, node.KindLowPass},
		{&t.pan, node.KindPan},
		{&t.low, node.KindLowShelf},
		{&t.mid, node.KindPeaking},
		{&t.high, node.KindHighShelf},
		{&t.limiter, node.KindCompressor},
	}

	for _, k := range kinds {
		n, err := node.New(k.kind, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("mixer: track %d: %w", id, err)
		}

		*k.dst = strip{id: g.Add(n), node: n}
	}

	// The head of the strip never changes shape.
	fixed := []graph.Edge{
		{From: t.gain.id, To: t.expander.id},
		{From: t.expander.id, To: t.highPass.id},
		{From: t.highPass.id, To: t.lowPass.id},
		{From: t.lowPass.id, To: t.pan.id},
	}
	if err := g.Rewire(nil, fixed); err != nil {
		return nil, fmt.Errorf("mixer: track %d: %w", id, err)
	}

	return t, nil
}

func (t *track) strips() []strip {
	return []strip{t.gain, t.expander, t.highPass, t.lowPass, t.pan, t.low, t.mid, t.high, t.limiter}
}

func (t *track) chainNodes(master graph.NodeID) ChainNodes {
	return ChainNodes{
		Pan:     t.pan.id,
		Low:     t.low.id,
		Mid:     t.mid.id,
		High:    t.high.id,
		Limiter: t.limiter.id,
		Master:  master,
	}
}

// applyParams pushes every setting except the effective gain into the nodes.
func (t *track) applyParams() error {
	s := t.settings
	hp, lp := s.NoiseReduction.cutoffs()

	writes := []struct {
		n *node.Node
		p node.Param
		v float64
	}{
		{t.pan.node, node.ParamPan, s.Pan},
		{t.expander.node, node.ParamThreshold, s.Expander.Threshold},
		{t.expander.node, node.ParamKnee, s.Expander.Knee},
		{t.expander.node, node.ParamRatio, s.Expander.effectiveRatio()},
		{t.expander.node, node.ParamAttack, s.Expander.Attack},
		{t.expander.node, node.ParamRelease, s.Expander.Release},
		{t.highPass.node, node.ParamFrequency, hp},
		{t.highPass.node, node.ParamQ, s.NoiseReduction.HighPassQ},
		{t.lowPass.node, node.ParamFrequency, lp},
		{t.lowPass.node, node.ParamQ, s.NoiseReduction.LowPassQ},
	}

	for _, w := range writes {
		if err := w.n.Set(w.p, w.v); err != nil {
			return fmt.Errorf("mixer: track %d: %w", t.id, err)
		}
	}

	if err := applyEQ(t.low.node, t.mid.node, t.high.node, s.EQ); err != nil {
		return fmt.Errorf("mixer: track %d: %w", t.id, err)
	}

	if err := applyLimiter(t.limiter.node, s.Limiter); err != nil {
		return fmt.Errorf("mixer: track %d: %w", t.id, err)
	}

	return nil
}

func applyEQ(low, mid, high *node.Node, eq EQ) error {
	writes := []struct {
		n *node.Node
		p node.Param
		v float64
	}{
		{low, node.ParamFrequency, eqLowHz},
		{low, node.ParamGainDB, eq.Low},
		{mid, node.ParamFrequency, eqMidHz},
		{mid, node.ParamQ, eqMidQ},
		{mid, node.ParamGainDB, eq.Mid},
		{high, node.ParamFrequency, eqHighHz},
		{high, node.ParamGainDB, eq.High},
	}

	for _, w := range writes {
		if err := w.n.Set(w.p, w.v); err != nil {
			return err
		}
	}

	return nil
}

func applyLimiter(n *node.Node, l LimiterSettings) error {
	writes := []struct {
		p node.Param
		v float64
	}{
		{node.ParamThreshold, l.Threshold},
		{node.ParamKnee, l.Knee},
		{node.ParamRatio, l.Ratio},
		{node.ParamAttack, l.Attack},
		{node.ParamRelease, l.Release},
	}

	for _, w := range writes {
		if err := n.Set(w.p, w.v); err != nil {
			return err
		}
	}

	return nil
}
