package mixer

import (
	"slices"
	"testing"

	"github.com/cwbudde/algo-mixer/mixer/graph"
)

var testChain = ChainNodes{Pan: 1, Low: 2, Mid: 3, High: 4, Limiter: 5, Master: 9}

func TestTopologyFor(t *testing.T) {
	tests := []struct {
		eq, lim bool
		want    Topology
	}{
		{false, false, TopologyDirect},
		{true, false, TopologyEQ},
		{false, true, TopologyLimiter},
		{true, true, TopologyEQLimiter},
	}

	for _, tt := range tests {
		if got := TopologyFor(tt.eq, tt.lim); got != tt.want {
			t.Fatalf("TopologyFor(%v, %v) = %s, want %s", tt.eq, tt.lim, got, tt.want)
		}
	}
}

func TestChainEdges(t *testing.T) {
	tests := []struct {
		topo Topology
		want []graph.Edge
	}{
		{TopologyDirect, []graph.Edge{{From: 1, To: 9}}},
		{TopologyEQ, []graph.Edge{{From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 4}, {From: 4, To: 9}}},
		{TopologyLimiter, []graph.Edge{{From: 1, To: 5}, {From: 5, To: 9}}},
		{TopologyEQLimiter, []graph.Edge{{From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 4}, {From: 4, To: 5}, {From: 5, To: 9}}},
	}

	for _, tt := range tests {
		t.Run(tt.topo.String(), func(t *testing.T) {
			got := ChainEdges(tt.topo, testChain)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("ChainEdges = %v, want %v", got, tt.want)
			}

			// Pure: a second call yields the same list.
			if again := ChainEdges(tt.topo, testChain); !slices.Equal(again, got) {
				t.Fatalf("second call = %v, want %v", again, got)
			}
		})
	}
}

func TestChainEdgesSingleExitToMaster(t *testing.T) {
	for topo := TopologyDirect; topo <= TopologyEQLimiter; topo++ {
		toMaster := 0

		for _, e := range ChainEdges(topo, testChain) {
			if e.To == testChain.Master {
				toMaster++
			}
		}

		if toMaster != 1 {
			t.Fatalf("%s: %d edges into master, want 1", topo, toMaster)
		}
	}
}

func TestTopologyString(t *testing.T) {
	if got := Topology(7).String(); got != "Topology(7)" {
		t.Fatalf("got %q", got)
	}
}
