package graph

import (
	"cmp"
	"slices"
)

// topology is an immutable compiled view of the graph.
type topology struct {
	nodes    []Processor
	edges    []Edge
	incoming [][]NodeID
	order    []NodeID
	output   NodeID
}

// compile deduplicates and sorts edges, checks for cycles with Kahn's
// algorithm and keeps in the processing order only the nodes that can
// reach the output.
func compile(nodes []Processor, edges []Edge, output NodeID) (*topology, error) {
	edges = slices.Clone(edges)
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}

		return cmp.Compare(a.To, b.To)
	})
	edges = slices.Compact(edges)

	incoming := make([][]NodeID, len(nodes))
	outgoing := make([][]NodeID, len(nodes))
	indegree := make([]int, len(nodes))

	for _, e := range edges {
		outgoing[e.From] = append(outgoing[e.From], e.To)
		incoming[e.To] = append(incoming[e.To], e.From)
		indegree[e.To]++
	}

	queue := make([]NodeID, 0, len(nodes))

	for id := range nodes {
		if nodes[id] != nil && indegree[id] == 0 {
			queue = append(queue, NodeID(id))
		}
	}

	sorted := make([]NodeID, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		sorted = append(sorted, id)
		for _, to := range outgoing[id] {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	live := 0

	for _, n := range nodes {
		if n != nil {
			live++
		}
	}

	if len(sorted) != live {
		return nil, ErrCycle
	}

	reach := reachesOutput(incoming, output, len(nodes))
	order := slices.DeleteFunc(sorted, func(id NodeID) bool { return !reach[id] })

	return &topology{
		nodes:    nodes,
		edges:    edges,
		incoming: incoming,
		order:    order,
		output:   output,
	}, nil
}

func reachesOutput(incoming [][]NodeID, output NodeID, n int) []bool {
	reach := make([]bool, n)
	if output == None {
		return reach
	}

	stack := []NodeID{output}
	reach[output] = true

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, from := range incoming[id] {
			if !reach[from] {
				reach[from] = true
				stack = append(stack, from)
			}
		}
	}

	return reach
}
