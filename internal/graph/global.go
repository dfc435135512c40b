package graph

import (
	"github.com/cess-pro/Domain-Relation/internal/policy"
)

// Global holds one long-lived union graph per mode. Every per-domain build folds its
// nodes and edges into the graph of its mode. Each graph serialises its own writers,
// so domains may be analysed concurrently.
type Global struct {
	graphs map[policy.Mode]*Graph
}

// NewGlobal creates empty union graphs for every mode
func NewGlobal() *Global {
	gl := &Global{graphs: make(map[policy.Mode]*Graph, len(policy.All))}
	for _, m := range policy.All {
		gl.graphs[m] = New()
	}
	return gl
}

// Mode returns the union graph of a mode
func (gl *Global) Mode(m policy.Mode) *Graph {
	return gl.graphs[m]
}

// AddNode mirrors a node into the graph of mode m. Already present nodes are ignored.
// Returns true if the union graph grew.
func (gl *Global) AddNode(m policy.Mode, name string) bool {
	return gl.graphs[m].AddNode(name)
}

// AddEdge mirrors an edge into the graph of mode m. Already present edges are ignored.
// Returns true if the union graph grew.
func (gl *Global) AddEdge(m policy.Mode, from, to string) bool {
	return gl.graphs[m].AddEdge(from, to)
}
