package dependency

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cess-pro/Domain-Relation/internal/graph"
)

// ErrUnreachable means a relaxed graph holds an extra node it has no path to.
// Delegation edges only ever add to the essential graph, so this signals a bug.
var ErrUnreachable = errors.New("extra node unreachable from domain")

// Extra describes how much a relaxed graph exceeds the essential graph of the same domain
type Extra struct {
	Nodes    []string       // sorted names present in the relaxed graph only
	Depths   map[string]int // shortest distance from the domain to each extra node
	Size     int
	AvgDepth float64
	MaxDepth int
}

// ComputeExtra derives the extra-dependency set of relaxed against essential. Depths are
// directed shortest-path lengths inside relaxed, starting at domain. Both depth figures
// are zero when the set is empty.
func ComputeExtra(domain string, essential, relaxed *graph.Graph) (*Extra, error) {
	extra := &Extra{Depths: make(map[string]int)}

	for _, name := range relaxed.Nodes() {
		if !essential.HasNode(name) {
			extra.Nodes = append(extra.Nodes, name)
		}
	}
	extra.Size = len(extra.Nodes)
	if extra.Size == 0 {
		return extra, nil
	}

	dist := relaxed.Distances(domain)
	total := 0
	for _, name := range extra.Nodes {
		depth, ok := dist[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnreachable, domain, name)
		}
		extra.Depths[name] = depth
		total += depth
		if depth > extra.MaxDepth {
			extra.MaxDepth = depth
		}
	}
	extra.AvgDepth = float64(total) / float64(extra.Size)

	sort.Strings(extra.Nodes)
	return extra, nil
}
