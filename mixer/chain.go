package mixer

import (
	"fmt"

	"github.com/cwbudde/algo-mixer/mixer/graph"
)

// Topology is one of the four legal routings from a track's pan node to
// the master bus. Expander and noise filters sit before pan and are always
// connected, so only the EQ and limiter flags change the routing.
type Topology int

const (
	TopologyDirect Topology = iota
	TopologyEQ
	TopologyLimiter
	TopologyEQLimiter
)

var topologyNames = [...]string{
	TopologyDirect:    "direct",
	TopologyEQ:        "eq",
	TopologyLimiter:   "limiter",
	TopologyEQLimiter: "eq+limiter",
}

func (t Topology) String() string {
	if t < TopologyDirect || t > TopologyEQLimiter {
		return fmt.Sprintf("Topology(%d)", int(t))
	}

	return topologyNames[t]
}

// TopologyFor resolves the routing for a pair of enabled flags.
func TopologyFor(eqEnabled, limiterEnabled bool) Topology {
	switch {
	case eqEnabled && limiterEnabled:
		return TopologyEQLimiter
	case eqEnabled:
		return TopologyEQ
	case limiterEnabled:
		return TopologyLimiter
	default:
		return TopologyDirect
	}
}

// ChainNodes names the graph nodes a track's routing is built from.
type ChainNodes struct {
	Pan     graph.NodeID
	Low     graph.NodeID
	Mid     graph.NodeID
	High    graph.NodeID
	Limiter graph.NodeID
	Master  graph.NodeID
}

// Sources returns the nodes whose outgoing edges a rebuild replaces.
func (n ChainNodes) Sources() []graph.NodeID {
	return []graph.NodeID{n.Pan, n.Low, n.Mid, n.High, n.Limiter}
}

// ChainEdges returns the edge list that realises t. It is a pure function
// of its arguments.
func ChainEdges(t Topology, n ChainNodes) []graph.Edge {
	path := []graph.NodeID{n.Pan}

	if t == TopologyEQ || t == TopologyEQLimiter {
		path = append(path, n.Low, n.Mid, n.High)
	}

	if t == TopologyLimiter || t == TopologyEQLimiter {
		path = append(path, n.Limiter)
	}

	path = append(path, n.Master)

	edges := make([]graph.Edge, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		edges = append(edges, graph.Edge{From: path[i-1], To: path[i]})
	}

	return edges
}
