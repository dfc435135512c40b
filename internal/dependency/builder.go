package dependency

import (
	"github.com/sirupsen/logrus"

	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/policy"
	"github.com/cess-pro/Domain-Relation/internal/zone"
)

// Lookup provides the nameserver set recorded for a zone
type Lookup interface {
	Nameservers(domain string) ([]string, bool)
}

// emptyZoneLookup is implemented by lookups that distinguish "no data" from
// "resolved to no nameservers"
type emptyZoneLookup interface {
	NoNameservers(domain string) bool
}

// Builder expands per-domain dependency graphs and folds every discovered node and edge
// into the union graph of the same mode.
type Builder struct {
	lookup          Lookup
	global          *graph.Global
	metricsCallback func(nodesAdded, edgesAdded, missingNS int)
}

// NewBuilder creates a builder reading nameservers from lookup and accumulating into global.
// metricsCallback may be nil; it receives growth of the union graphs and missing lookups.
func NewBuilder(lookup Lookup, global *graph.Global, metricsCallback func(int, int, int)) *Builder {
	return &Builder{
		lookup:          lookup,
		global:          global,
		metricsCallback: metricsCallback,
	}
}

// Global returns the union graphs this builder accumulates into
func (b *Builder) Global() *graph.Global {
	return b.global
}

// Build adds to g every zone that must be resolved before domain can be resolved in the
// given mode. g is expected to hold domain as its seed node.
//
// Nodes are expanded from an explicit work-list. A target that is already a node only
// gets the edge, so every zone is expanded at most once and cyclic nameserver references
// terminate. Missing nameserver data never fails the build: the zone just gets no
// delegation edges.
func (b *Builder) Build(domain string, g *graph.Graph, mode policy.Mode) {
	g.AddNode(domain)

	pending := []string{domain}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		targets := b.targets(current, mode)
		// Push in reverse so the first target is expanded first.
		for i := len(targets) - 1; i >= 0; i-- {
			target := targets[i]
			if b.link(g, mode, current, target) && target != zone.Root {
				pending = append(pending, target)
			}
		}
	}
}

// targets lists the dependencies of domain in mode: the parents of qualifying
// nameservers first, then the parent of domain itself.
func (b *Builder) targets(domain string, mode policy.Mode) []string {
	var targets []string
	if mode != policy.Essential {
		for _, ns := range b.nameservers(domain, mode) {
			targets = append(targets, zone.Parent(ns))
		}
	}
	return append(targets, zone.Parent(domain))
}

// nameservers returns the nameservers of domain whose reference counts in mode
func (b *Builder) nameservers(domain string, mode policy.Mode) []string {
	all, ok := b.lookup.Nameservers(domain)
	if !ok {
		entry := logrus.WithFields(logrus.Fields{"domain": domain, "mode": mode.String()})
		if el, isEmpty := b.lookup.(emptyZoneLookup); isEmpty && el.NoNameservers(domain) {
			entry.Debug("Zone resolved to no nameservers, skipping delegation edges")
		} else {
			entry.Debug("No nameserver data, skipping delegation edges")
		}
		b.report(0, 0, 1)
		return nil
	}

	var counted []string
	for _, ns := range all {
		if mode.Counts(domain, ns, all) {
			counted = append(counted, ns)
		}
	}
	return counted
}

// link records from -> to in g and mirrors it into the union graph. Returns true when to
// was not yet a node of g and therefore still needs expanding.
func (b *Builder) link(g *graph.Graph, mode policy.Mode, from, to string) bool {
	discovered := g.AddNode(to)
	g.AddEdge(from, to)

	// The seed only reaches the union graph through its first edge.
	nodesAdded := 0
	if b.global.AddNode(mode, from) {
		nodesAdded++
	}
	if b.global.AddNode(mode, to) {
		nodesAdded++
	}
	edgesAdded := 0
	if b.global.AddEdge(mode, from, to) {
		edgesAdded = 1
	}
	b.report(nodesAdded, edgesAdded, 0)

	return discovered
}

func (b *Builder) report(nodesAdded, edgesAdded, missingNS int) {
	if b.metricsCallback == nil {
		return
	}
	if nodesAdded == 0 && edgesAdded == 0 && missingNS == 0 {
		return
	}
	b.metricsCallback(nodesAdded, edgesAdded, missingNS)
}
