// # internal/output/dot.go
package output

import (
	"fmt"
	"sort"
	"strings"

	"pyrite/internal/depgraph"
)

// DOTGenerator renders the import graph for graphviz, highlighting
// import cycles since those are where fixpoint analysis does its work.
type DOTGenerator struct {
	graph *depgraph.Graph
}

func NewDOTGenerator(g *depgraph.Graph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

func (d *DOTGenerator) Generate() string {
	var buf strings.Builder

	buf.WriteString("digraph imports {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	// Modules in multi-element SCCs are the cyclic ones.
	cyclic := make(map[string]bool)
	for _, scc := range d.graph.SCCOrder() {
		if len(scc) > 1 {
			for _, m := range scc {
				cyclic[m] = true
			}
		}
	}

	names := d.graph.ModuleNames()
	for _, name := range names {
		mod, ok := d.graph.GetModule(name)
		if !ok {
			continue
		}
		label := fmt.Sprintf("%s\\n(%d names)", name, len(mod.Names))
		if cyclic[name] {
			buf.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"mistyrose\", style=\"rounded,filled\", color=\"red\"];\n", name, label))
		} else {
			buf.WriteString(fmt.Sprintf("  %q [label=\"%s\"];\n", name, label))
		}
	}
	buf.WriteString("\n")

	imports := d.graph.Imports()
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	external := make(map[string]bool)
	froms := make([]string, 0, len(imports))
	for from := range imports {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		targets := append([]string(nil), imports[from]...)
		sort.Strings(targets)
		for _, to := range targets {
			if !known[to] {
				external[to] = true
			}
			if cyclic[from] && cyclic[to] {
				buf.WriteString(fmt.Sprintf("  %q -> %q [color=\"red\", penwidth=2.0];\n", from, to))
			} else {
				buf.WriteString(fmt.Sprintf("  %q -> %q;\n", from, to))
			}
		}
	}

	if len(external) > 0 {
		buf.WriteString("\n  subgraph cluster_external {\n")
		buf.WriteString("    label=\"External\";\n")
		buf.WriteString("    style=dashed;\n")
		ext := make([]string, 0, len(external))
		for name := range external {
			ext = append(ext, name)
		}
		sort.Strings(ext)
		for _, name := range ext {
			buf.WriteString(fmt.Sprintf("    %q [style=dashed];\n", name))
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("}\n")
	return buf.String()
}
