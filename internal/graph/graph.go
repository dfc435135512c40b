package graph

import (
	"sort"
	"sync"
)

// Edge is a directed dependency: resolving From requires resolving To
type Edge struct {
	From string
	To   string
}

// Graph holds a directed graph of domain names in memory.
// All methods are safe for concurrent use.
type Graph struct {
	nodes map[string]struct{}            // domain -> present
	out   map[string]map[string]struct{} // from -> set of to
	in    map[string]map[string]struct{} // to -> set of from
	edges int
	mu    sync.RWMutex
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		out:   make(map[string]map[string]struct{}),
		in:    make(map[string]map[string]struct{}),
	}
}

// AddNode inserts a node. Returns false if it was already present.
func (g *Graph) AddNode(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.addNodeLocked(name)
}

func (g *Graph) addNodeLocked(name string) bool {
	if _, exists := g.nodes[name]; exists {
		return false
	}
	g.nodes[name] = struct{}{}
	return true
}

// AddEdge inserts the edge from -> to, adding missing endpoints.
// Returns false if the edge was already present.
func (g *Graph) AddEdge(from, to string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNodeLocked(from)
	g.addNodeLocked(to)

	targets := g.out[from]
	if targets == nil {
		targets = make(map[string]struct{})
		g.out[from] = targets
	}
	if _, exists := targets[to]; exists {
		return false
	}
	targets[to] = struct{}{}

	sources := g.in[to]
	if sources == nil {
		sources = make(map[string]struct{})
		g.in[to] = sources
	}
	sources[from] = struct{}{}

	g.edges++
	return true
}

// HasNode reports whether name is a node of the graph
func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.nodes[name]
	return exists
}

// HasEdge reports whether the edge from -> to exists
func (g *Graph) HasEdge(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.out[from][to]
	return exists
}

// Nodes returns all node names in sorted order
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns all edges sorted by source, then target
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := make([]Edge, 0, g.edges)
	for from, targets := range g.out {
		for to := range targets {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Successors returns the sorted targets of edges leaving name
func (g *Graph) Successors(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return sortedKeys(g.out[name])
}

// InDegree returns the number of edges entering name
func (g *Graph) InDegree(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.in[name])
}

// OutDegree returns the number of edges leaving name
func (g *Graph) OutDegree(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.out[name])
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (nodeCount, edgeCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes), g.edges
}

// Merge folds every node and edge of other into g
func (g *Graph) Merge(other *Graph) {
	if other == g {
		return
	}
	for _, name := range other.Nodes() {
		g.AddNode(name)
	}
	for _, e := range other.Edges() {
		g.AddEdge(e.From, e.To)
	}
}

// Contains reports whether every node and edge of sub is also part of g
func (g *Graph) Contains(sub *Graph) bool {
	for _, name := range sub.Nodes() {
		if !g.HasNode(name) {
			return false
		}
	}
	for _, e := range sub.Edges() {
		if !g.HasEdge(e.From, e.To) {
			return false
		}
	}
	return true
}

// Equal reports whether both graphs have identical node and edge sets
func (g *Graph) Equal(other *Graph) bool {
	gn, ge := g.GetStats()
	on, oe := other.GetStats()
	if gn != on || ge != oe {
		return false
	}
	return g.Contains(other)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
