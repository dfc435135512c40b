package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/cess-pro/Domain-Relation/internal/graph"
	"github.com/cess-pro/Domain-Relation/internal/policy"
)

// layoutPrefix is the variable the force-layout page reads its data from
const layoutPrefix = "webkitDep="

// LayoutNode is a kept zone of a force-layout export
type LayoutNode struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Value int    `json:"value"`
}

// LayoutLink connects two kept zones by id
type LayoutLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

// Layout is the node-link document consumed by the force-layout page
type Layout struct {
	Nodes []LayoutNode `json:"nodes"`
	Links []LayoutLink `json:"links"`
}

// BuildLayout keeps the zones whose in- or out-degree exceeds degreeLimit and the edges between them.
// Ids follow sorted node order.
func BuildLayout(g *graph.Graph, degreeLimit int) Layout {
	layout := Layout{Nodes: []LayoutNode{}, Links: []LayoutLink{}}
	ids := make(map[string]string)

	for _, name := range g.Nodes() {
		if g.InDegree(name) <= degreeLimit && g.OutDegree(name) <= degreeLimit {
			continue
		}
		id := strconv.Itoa(len(layout.Nodes))
		ids[name] = id
		layout.Nodes = append(layout.Nodes, LayoutNode{Name: name, ID: id, Value: 1})
	}

	for _, e := range g.Edges() {
		source, ok := ids[e.From]
		if !ok {
			continue
		}
		target, ok := ids[e.To]
		if !ok {
			continue
		}
		layout.Links = append(layout.Links, LayoutLink{Source: source, Target: target, Value: 1})
	}

	return layout
}

// WriteLayout writes the layout as a script assignment
func WriteLayout(w io.Writer, layout Layout) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(layoutPrefix); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(layout); err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}
	return bw.Flush()
}

// LayoutFileName is the export file of a mode's global graph
func LayoutFileName(m policy.Mode) string {
	return "global_graph_" + m.String() + ".js"
}

// WriteGlobalLayouts writes one force-layout file per mode into dir.
// Every mode is attempted; failures are returned together.
func WriteGlobalLayouts(dir string, global *graph.Global, degreeLimit int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	var errs *multierror.Error
	for _, m := range policy.All {
		path := filepath.Join(dir, LayoutFileName(m))
		layout := BuildLayout(global.Mode(m), degreeLimit)
		if err := writeLayoutFile(path, layout); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s layout: %w", m, err))
			continue
		}
		logrus.WithFields(logrus.Fields{
			"mode":  m.String(),
			"nodes": len(layout.Nodes),
			"links": len(layout.Links),
		}).Infof("Wrote %s", path)
	}
	return errs.ErrorOrNil()
}

func writeLayoutFile(path string, layout Layout) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create layout file: %w", err)
	}
	if err := WriteLayout(f, layout); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
