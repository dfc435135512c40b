package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/input"
	"github.com/cess-pro/Domain-Relation/internal/policy"
)

func TestComputeExtraEmpty(t *testing.T) {
	m := input.NewMapping()
	b := NewBuilder(m, graph.NewGlobal(), nil)

	essential := buildOne(b, "example.com", policy.Essential)
	general := buildOne(b, "example.com", policy.General)

	extra, err := ComputeExtra("example.com", essential, general)
	require.NoError(t, err)
	assert.Empty(t, extra.Nodes)
	assert.Zero(t, extra.Size)
	assert.Zero(t, extra.AvgDepth, "depths are zero without extra nodes")
	assert.Zero(t, extra.MaxDepth)
}

func TestComputeExtraDepths(t *testing.T) {
	m := mappingOf(t, map[string][]string{"a.b.c": {"x.y.z"}})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	essential := buildOne(b, "a.b.c", policy.Essential)
	explicit := buildOne(b, "a.b.c", policy.Explicit)

	extra, err := ComputeExtra("a.b.c", essential, explicit)
	require.NoError(t, err)
	assert.Equal(t, []string{"y.z", "z"}, extra.Nodes)
	assert.Equal(t, 2, extra.Size)
	assert.Equal(t, map[string]int{"y.z": 1, "z": 2}, extra.Depths)
	assert.InDelta(t, 1.5, extra.AvgDepth, 1e-9)
	assert.Equal(t, 2, extra.MaxDepth)
}

func TestComputeExtraUsesShortestPath(t *testing.T) {
	// cdn.net serves both www.shop.example.com and shop.example.com; it counts at depth 1
	// although the structural chain reaches it again through shop.example.com.
	m := mappingOf(t, map[string][]string{
		"www.shop.example.com": {"a.cdn.net"},
		"shop.example.com":     {"b.cdn.net"},
		"example.com":          {"ns.hoster.org"},
	})
	b := NewBuilder(m, graph.NewGlobal(), nil)

	base := buildOne(b, "www.shop.example.com", policy.Essential)
	general := buildOne(b, "www.shop.example.com", policy.General)

	extra, err := ComputeExtra("www.shop.example.com", base, general)
	require.NoError(t, err)
	assert.Equal(t, []string{"cdn.net", "hoster.org", "net", "org"}, extra.Nodes)
	assert.Equal(t, 1, extra.Depths["cdn.net"])
	assert.Equal(t, 2, extra.Depths["net"])
	assert.Equal(t, 3, extra.Depths["hoster.org"])
	assert.Equal(t, 4, extra.Depths["org"])
	assert.Equal(t, 4, extra.MaxDepth)
	assert.InDelta(t, 2.5, extra.AvgDepth, 1e-9)
}

func TestComputeExtraUnreachable(t *testing.T) {
	essential := graph.New()
	essential.AddEdge("a.com", "com")

	relaxed := graph.New()
	relaxed.AddEdge("a.com", "com")
	relaxed.AddNode("orphan.net")

	_, err := ComputeExtra("a.com", essential, relaxed)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorContains(t, err, "orphan.net")
}
