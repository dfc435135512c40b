package dependency

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/input"
	"github.com/cess-pro/Domain-Relation/internal/policy"
	"github.com/cess-pro/Domain-Relation/internal/zone"
)

func mappingOf(t *testing.T, entries map[string][]string) *input.Mapping {
	t.Helper()
	m := input.NewMapping()
	for domain, nameservers := range entries {
		for _, ns := range nameservers {
			m.Add(domain, ns)
		}
	}
	return m
}

func buildOne(b *Builder, domain string, mode policy.Mode) *graph.Graph {
	g := graph.New()
	g.AddNode(domain)
	b.Build(domain, g, mode)
	return g
}

func TestBuildEssentialIsParentChain(t *testing.T) {
	m := mappingOf(t, map[string][]string{"a.b.c": {"x.y.z"}})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	g := buildOne(b, "a.b.c", policy.Essential)
	assert.Equal(t, []string{".", "a.b.c", "b.c", "c"}, g.Nodes())
	assert.Equal(t, []graph.Edge{
		{From: "a.b.c", To: "b.c"},
		{From: "b.c", To: "c"},
		{From: "c", To: zone.Root},
	}, g.Edges())
}

func TestBuildOutOfBailiwickNameserver(t *testing.T) {
	m := mappingOf(t, map[string][]string{"a.b.c": {"x.y.z"}})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	essential := buildOne(b, "a.b.c", policy.Essential)
	assert.False(t, essential.HasEdge("a.b.c", "y.z"))

	for _, mode := range policy.Relaxed {
		g := buildOne(b, "a.b.c", mode)
		assert.True(t, g.HasEdge("a.b.c", "y.z"), "%s graph misses the delegation edge", mode)
		assert.True(t, g.HasEdge("y.z", "z"))
		assert.True(t, g.HasEdge("z", zone.Root))
		assert.True(t, g.HasEdge("a.b.c", "b.c"), "structural edge is always present")
	}
}

func TestBuildMixedGlue(t *testing.T) {
	m := mappingOf(t, map[string][]string{"p.q": {"ns1.p.q", "ns2.r.s"}})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	general := buildOne(b, "p.q", policy.General)
	assert.True(t, general.HasEdge("p.q", "p.q"), "in-bailiwick nameserver points back at its own zone")
	assert.True(t, general.HasEdge("p.q", "r.s"))

	explicit := buildOne(b, "p.q", policy.Explicit)
	assert.False(t, explicit.HasEdge("p.q", "p.q"), "glued nameserver is filtered out")
	assert.True(t, explicit.HasEdge("p.q", "r.s"))

	critical := buildOne(b, "p.q", policy.Critical)
	assert.False(t, critical.HasEdge("p.q", "p.q"))
	assert.False(t, critical.HasEdge("p.q", "r.s"), "one glued nameserver is an escape route")
	assert.True(t, critical.Equal(buildOne(b, "p.q", policy.Essential)))
}

func TestBuildTerminatesOnCycles(t *testing.T) {
	m := mappingOf(t, map[string][]string{
		"a.com": {"ns.b.net"},
		"b.net": {"ns.a.com", "ns.c.org"},
		"c.org": {"ns1.a.com", "ns.b.net"},
		"com":   {"x.gtld.net"},
		"net":   {"x.gtld.net"},
		"org":   {"a0.org.afilias-nst.info"},
	})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	g := buildOne(b, "a.com", policy.General)
	assert.True(t, g.HasEdge("a.com", "b.net"))
	assert.True(t, g.HasEdge("b.net", "a.com"), "back edge is recorded without re-expanding")
	assert.True(t, g.HasEdge("b.net", "c.org"))
	assert.True(t, g.HasEdge("c.org", "a.com"))
	assert.True(t, g.HasEdge("c.org", "b.net"))
	assert.True(t, g.HasEdge("org", "org.afilias-nst.info"))
	assert.True(t, g.HasEdge("org.afilias-nst.info", "afilias-nst.info"))
	assert.True(t, g.HasNode(zone.Root))
}

func TestBuildEveryNodeReachesRoot(t *testing.T) {
	m := mappingOf(t, map[string][]string{
		"www.example.com": {"ns1.cdn.example.net"},
		"example.net":     {"ns.provider.org"},
	})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	for _, mode := range policy.All {
		g := buildOne(b, "www.example.com", mode)
		for _, name := range g.Nodes() {
			if name == zone.Root {
				continue
			}
			assert.True(t, g.HasEdge(name, zone.Parent(name)), "%s: %s lacks its structural edge", mode, name)
		}
		dist := g.Distances("www.example.com")
		assert.Len(t, dist, len(g.Nodes()), "%s: every node is reachable from the seed", mode)
	}
}

func TestBuildMissingNameserverData(t *testing.T) {
	m := input.NewMapping()
	m.MarkNoNameservers("dead.com")

	missing := 0
	b := NewBuilder(m, graph.NewGlobal(), func(_, _, missingNS int) {
		missing += missingNS
	})

	g := buildOne(b, "www.dead.com", policy.General)
	assert.Equal(t, []string{".", "com", "dead.com", "www.dead.com"}, g.Nodes(), "structural expansion proceeds")
	assert.Equal(t, 3, missing, "www.dead.com, dead.com and com have no data")

	missing = 0
	buildOne(b, "www.dead.com", policy.Essential)
	assert.Zero(t, missing, "essential never consults the mapping")
}

func TestBuildFoldsIntoGlobal(t *testing.T) {
	m := mappingOf(t, map[string][]string{
		"a.example.com": {"ns.dns.net"},
		"b.example.com": {"ns.dns.net"},
	})
	global := graph.NewGlobal()

	var nodes, edges int
	b := NewBuilder(m, global, func(n, e, _ int) {
		nodes += n
		edges += e
	})

	first := buildOne(b, "a.example.com", policy.General)
	second := buildOne(b, "b.example.com", policy.General)

	union := global.Mode(policy.General)
	assert.True(t, union.Contains(first))
	assert.True(t, union.Contains(second))

	merged := graph.New()
	merged.Merge(first)
	merged.Merge(second)
	assert.True(t, union.Equal(merged), "union equals the merge of per-domain graphs")

	gotNodes, gotEdges := union.GetStats()
	assert.Equal(t, gotNodes, nodes, "callback reports every new union node once")
	assert.Equal(t, gotEdges, edges, "callback reports every new union edge once")

	empty, _ := global.Mode(policy.Essential).GetStats()
	assert.Zero(t, empty, "other modes untouched")

	buildOne(b, "a.example.com", policy.General)
	againNodes, againEdges := union.GetStats()
	assert.Equal(t, gotNodes, againNodes, "re-adding a domain is idempotent")
	assert.Equal(t, gotEdges, againEdges)
}

// randomMapping builds a namespace over few labels so zones share ancestors and
// nameservers reference each other in cycles.
func randomMapping(seed int64) (*input.Mapping, []string) {
	rng := rand.New(rand.NewSource(seed))
	tlds := []string{"com", "net", "org"}
	labels := []string{"a", "b", "c", "d", "e"}

	pick := func(depth int) string {
		name := tlds[rng.Intn(len(tlds))]
		for i := 0; i < depth; i++ {
			name = labels[rng.Intn(len(labels))] + "." + name
		}
		return name
	}

	m := input.NewMapping()
	var domains []string
	for i := 0; i < 40; i++ {
		domain := pick(1 + rng.Intn(3))
		domains = append(domains, domain)
		for _, z := range zone.Ancestors(domain) {
			if rng.Intn(5) == 0 {
				continue
			}
			for n := 0; n < 1+rng.Intn(3); n++ {
				m.Add(z, fmt.Sprintf("ns%d.%s", n, pick(1+rng.Intn(2))))
			}
		}
	}
	return m, domains
}

func TestModeGraphsAreNested(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		m, domains := randomMapping(seed)
		b := NewBuilder(m, graph.NewGlobal(), nil)

		for _, domain := range domains {
			essential := buildOne(b, domain, policy.Essential)
			critical := buildOne(b, domain, policy.Critical)
			explicit := buildOne(b, domain, policy.Explicit)
			general := buildOne(b, domain, policy.General)

			require.True(t, critical.Contains(essential), "seed %d %s: essential ⊄ critical", seed, domain)
			require.True(t, explicit.Contains(critical), "seed %d %s: critical ⊄ explicit", seed, domain)
			require.True(t, general.Contains(explicit), "seed %d %s: explicit ⊄ general", seed, domain)
		}
	}
}
