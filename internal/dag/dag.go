// SPDX-License-Identifier: MPL-2.0

// Package dag orders manifest dependency graphs and detects cycles.
//
// Nodes are manifest URLs. An edge from A to B means A must be ready before B,
// that is, B declared A as a dependency.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports a dependency cycle. Cycle lists the nodes along the loop,
	// with the first node repeated at the end.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph with deterministic, insertion-ordered output.
	Graph struct {
		adjacency map[string][]string
		edges     map[[2]string]bool
		nodes     []string
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		edges:     make(map[[2]string]bool),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from must come before to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]string{from, to}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.adjacency[from] = append(g.adjacency[from], to)
}

// TryAddEdge adds from -> to unless the edge would close a cycle, in which
// case the graph is left unchanged and a *CycleError is returned.
func (g *Graph) TryAddEdge(from, to string) error {
	if cycle := g.cycleThrough(from, to); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	g.AddEdge(from, to)
	return nil
}

// cycleThrough returns the loop that an edge from -> to would close: from, to,
// then the existing path back to from. It returns nil when to cannot reach from.
func (g *Graph) cycleThrough(from, to string) []string {
	if from == to {
		return []string{from, from}
	}
	prev := map[string]string{}
	seen := map[string]bool{to: true}
	queue := []string{to}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[n] {
			if seen[next] {
				continue
			}
			seen[next] = true
			prev[next] = n
			if next != from {
				queue = append(queue, next)
				continue
			}
			path := []string{from}
			for p := n; p != to; p = prev[p] {
				path = append(path, p)
			}
			path = append(path, to, from)
			slices.Reverse(path)
			return path
		}
	}
	return nil
}

// HasEdge reports whether from -> to was added.
func (g *Graph) HasEdge(from, to string) bool {
	return g.edges[[2]string{from, to}]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Successors returns the nodes that must come after name.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// TopologicalSort returns an order in which every node follows all of its
// predecessors (Kahn's algorithm). Nodes at the same level keep insertion order.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError{Cycle: g.findCycle()}
	}
	return result, nil
}

// findCycle returns one concrete loop using a colored depth-first search.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(string) []string
	visit = func(n string) []string {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range g.adjacency[n] {
			switch color[next] {
			case grey:
				start := slices.Index(stack, next)
				return append(slices.Clone(stack[start:]), next)
			case white:
				if c := visit(next); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for _, n := range g.nodes {
		if color[n] == white {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}
