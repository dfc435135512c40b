package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/cess-pro/Domain-Relation/internal/dependency"
	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/policy"
)

const dotGraphName = "dependency"

// DOT renders a dependency graph in Graphviz syntax. The analysed domain is drawn as a box,
// extra zones (when given) are filled.
func DOT(g *graph.Graph, domain string, extra *dependency.Extra) (string, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(dotGraphName); err != nil {
		return "", err
	}
	if err := out.SetDir(true); err != nil {
		return "", err
	}
	_ = out.AddAttr(dotGraphName, "rankdir", "LR")

	for _, name := range g.Nodes() {
		attrs := map[string]string{"label": strconv.Quote(name)}
		switch {
		case name == domain:
			attrs["shape"] = "box"
		case extra != nil && extra.Depths[name] > 0:
			attrs["style"] = "filled"
			attrs["fillcolor"] = "lightgrey"
			attrs["tooltip"] = strconv.Quote(fmt.Sprintf("depth %d", extra.Depths[name]))
		}
		if err := out.AddNode(dotGraphName, strconv.Quote(name), attrs); err != nil {
			return "", fmt.Errorf("failed to add node %s: %w", name, err)
		}
	}

	for _, e := range g.Edges() {
		if err := out.AddEdge(strconv.Quote(e.From), strconv.Quote(e.To), true, nil); err != nil {
			return "", fmt.Errorf("failed to add edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	return out.String(), nil
}

// DOTFileName is the rendering file of one domain in one mode
func DOTFileName(domain string, m policy.Mode) string {
	return domain + "." + m.String() + ".dot"
}

// WriteDomainGraphs renders every mode graph of a result into dir
func WriteDomainGraphs(dir string, res *dependency.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create graph dir: %w", err)
	}

	for _, m := range policy.All {
		mr, ok := res.Modes[m]
		if !ok {
			continue
		}
		text, err := DOT(mr.Graph, res.Domain, mr.Extra)
		if err != nil {
			return fmt.Errorf("%s graph of %s: %w", m, res.Domain, err)
		}
		path := filepath.Join(dir, DOTFileName(res.Domain, m))
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
