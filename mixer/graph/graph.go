// Package graph is an arena-indexed audio graph. Nodes live in a slice and
// are addressed by index; edges are index pairs.
//
// Writers build a complete new topology (edges, adjacency and processing
// order) and publish it with a single atomic pointer swap. The render
// goroutine loads the current topology once per block, so it never sees a
// half-applied rewiring and never waits on a writer.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

var (
	// ErrUnknownNode is returned for ids outside the arena or for removed nodes.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrCycle is returned when a rewiring would create a feedback loop.
	ErrCycle = errors.New("graph: contains cycle")
)

// NodeID is an index into the graph's node arena.
type NodeID int

// None marks the absence of a node, for example an unset output.
const None NodeID = -1

// Edge routes the output of From into the input of To.
type Edge struct {
	From, To NodeID
}

func (e Edge) String() string {
	return fmt.Sprintf("%d->%d", e.From, e.To)
}

// Processor transforms one stereo block in place.
type Processor interface {
	Process(left, right []float64)
}

// Feeder adds externally generated audio into the input buffers of id
// before the node processes them. It is how playback voices enter the graph.
type Feeder func(id NodeID, left, right []float64)

// Graph owns the node arena and the published topology.
type Graph struct {
	mu     sync.Mutex
	nodes  []Processor
	edges  []Edge
	output NodeID

	current atomic.Pointer[topology]

	// Render scratch, touched only by Render.
	left, right [][]float64
}

// New returns an empty graph with no output.
func New() *Graph {
	g := &Graph{output: None}
	g.current.Store(&topology{output: None})

	return g
}

// Add appends p to the arena and returns its id. The node is unconnected.
func (g *Graph) Add(p Processor) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = append(g.nodes, p)
	id := NodeID(len(g.nodes) - 1)

	// Adding an isolated node cannot create a cycle.
	_ = g.publish(g.edges)

	return id
}

// Remove disconnects id from every neighbour and tombstones its slot.
// Ids are never reused.
func (g *Graph) Remove(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}

	edges := slices.DeleteFunc(slices.Clone(g.edges), func(e Edge) bool {
		return e.From == id || e.To == id
	})

	g.nodes[id] = nil
	if g.output == id {
		g.output = None
	}

	return g.publish(edges)
}

// Node returns the processor stored at id, or nil.
func (g *Graph) Node(id NodeID) Processor {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.valid(id) {
		return nil
	}

	return g.nodes[id]
}

// Len returns the arena size, tombstones included.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.nodes)
}

// SetOutput selects the node whose buffer Render returns.
func (g *Graph) SetOutput(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.valid(id) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}

	g.output = id

	return g.publish(g.edges)
}

// Connect adds the edge from -> to. Connecting an existing edge is a no-op.
func (g *Graph) Connect(from, to NodeID) error {
	return g.Rewire(nil, []Edge{{From: from, To: to}})
}

// DisconnectOutputs removes every edge leaving from.
func (g *Graph) DisconnectOutputs(from NodeID) error {
	return g.Rewire([]NodeID{from}, nil)
}

// Rewire removes every edge leaving the nodes in sources, adds the edges in
// add, and publishes the result as one topology. On error nothing changes.
func (g *Graph) Rewire(sources []NodeID, add []Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range sources {
		if !g.valid(id) {
			return fmt.Errorf("%w: %d", ErrUnknownNode, id)
		}
	}

	for _, e := range add {
		if !g.valid(e.From) || !g.valid(e.To) {
			return fmt.Errorf("%w: edge %s", ErrUnknownNode, e)
		}

		if e.From == e.To {
			return fmt.Errorf("%w: self edge %s", ErrCycle, e)
		}
	}

	edges := slices.DeleteFunc(slices.Clone(g.edges), func(e Edge) bool {
		return slices.Contains(sources, e.From)
	})
	edges = append(edges, add...)

	return g.publish(edges)
}

// Edges returns the published edge list sorted by (From, To).
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.current.Load().edges)
}

// Outgoing returns the targets of every edge leaving id, in ascending order.
func (g *Graph) Outgoing(id NodeID) []NodeID {
	var out []NodeID

	for _, e := range g.current.Load().edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}

	return out
}

// Order returns the ids processed by Render, in processing order.
func (g *Graph) Order() []NodeID {
	return slices.Clone(g.current.Load().order)
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] != nil
}

// publish compiles edges into a topology and swaps it in. Callers hold mu.
func (g *Graph) publish(edges []Edge) error {
	t, err := compile(slices.Clone(g.nodes), edges, g.output)
	if err != nil {
		return err
	}

	g.edges = t.edges
	g.current.Store(t)

	return nil
}

// Render processes one block of len(left) frames and writes the output
// node's result into left and right. With no output the block is silent.
// Render must not be called concurrently with itself.
func (g *Graph) Render(left, right []float64, feed Feeder) {
	t := g.current.Load()
	if t.output == None {
		core.Zero(left)
		core.Zero(right)

		return
	}

	frames := len(left)
	g.ensureScratch(len(t.nodes), frames)

	for _, id := range t.order {
		l := g.left[id][:frames]
		r := g.right[id][:frames]
		core.Zero(l)
		core.Zero(r)

		for _, from := range t.incoming[id] {
			core.Accumulate(l, g.left[from][:frames])
			core.Accumulate(r, g.right[from][:frames])
		}

		if feed != nil {
			feed(id, l, r)
		}

		t.nodes[id].Process(l, r)
	}

	copy(left, g.left[t.output][:frames])
	copy(right, g.right[t.output][:frames])
}

func (g *Graph) ensureScratch(nodes, frames int) {
	for len(g.left) < nodes {
		g.left = append(g.left, nil)
		g.right = append(g.right, nil)
	}

	for i := range nodes {
		g.left[i] = core.EnsureLen(g.left[i], frames)
		g.right[i] = core.EnsureLen(g.right[i], frames)
	}
}
