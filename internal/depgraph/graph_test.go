// # internal/depgraph/graph_test.go
package depgraph

import (
	"testing"

	"pyrite/internal/syntax"
)

func moduleWithImports(name string, imports ...string) *syntax.Module {
	mod := &syntax.Module{Name: name, Path: name + ".py"}
	for _, imp := range imports {
		mod.Body = append(mod.Body, &syntax.Stmt{
			Kind:    syntax.StmtImport,
			Imports: []syntax.ImportClause{{Module: imp}},
		})
	}
	return mod
}

func TestGraph_AddRemoveModule(t *testing.T) {
	g := NewGraph()

	g.AddModule(moduleWithImports("a", "b"))

	if g.ModuleCount() != 1 {
		t.Errorf("Expected 1 module, got %d", g.ModuleCount())
	}
	if !g.imports["a"]["b"] {
		t.Error("Expected import edge from a to b")
	}
	if !g.importedBy["b"]["a"] {
		t.Error("Expected importedBy entry for b from a")
	}

	g.RemoveModule("a")
	if g.ModuleCount() != 0 {
		t.Errorf("Expected 0 modules, got %d", g.ModuleCount())
	}
	if len(g.importedBy["b"]) != 0 {
		t.Error("Expected importedBy for b to be empty")
	}
}

func TestGraph_ReAddReplacesEdges(t *testing.T) {
	g := NewGraph()

	g.AddModule(moduleWithImports("a", "b"))
	g.AddModule(moduleWithImports("a", "c"))

	if g.imports["a"]["b"] {
		t.Error("Stale edge a->b should be gone after re-add")
	}
	if !g.imports["a"]["c"] {
		t.Error("Expected edge a->c")
	}
}

func TestGraph_SCCOrder(t *testing.T) {
	g := NewGraph()

	// a -> b <-> c, b -> d. Components: {d} and {b,c} before {a}.
	g.AddModule(moduleWithImports("a", "b"))
	g.AddModule(moduleWithImports("b", "c", "d"))
	g.AddModule(moduleWithImports("c", "b"))
	g.AddModule(moduleWithImports("d"))

	sccs := g.SCCOrder()
	if len(sccs) != 3 {
		t.Fatalf("Expected 3 SCCs, got %d: %v", len(sccs), sccs)
	}

	position := make(map[string]int)
	for i, scc := range sccs {
		for _, m := range scc {
			position[m] = i
		}
	}

	if position["b"] != position["c"] {
		t.Error("b and c should share an SCC")
	}
	if !(position["d"] < position["a"] && position["b"] < position["a"]) {
		t.Errorf("Dependencies must precede dependents, got positions %v", position)
	}
}

func TestGraph_SCCOrder_IgnoresExternal(t *testing.T) {
	g := NewGraph()
	g.AddModule(moduleWithImports("a", "os", "b"))
	g.AddModule(moduleWithImports("b"))

	sccs := g.SCCOrder()
	total := 0
	for _, scc := range sccs {
		total += len(scc)
	}
	if total != 2 {
		t.Errorf("External imports must not appear as nodes, got %v", sccs)
	}
}

func TestGraph_InvalidateTransitive(t *testing.T) {
	g := NewGraph()

	// c imports b, b imports a: a change to a invalidates b and c.
	g.AddModule(moduleWithImports("a"))
	g.AddModule(moduleWithImports("b", "a"))
	g.AddModule(moduleWithImports("c", "b"))
	g.AddModule(moduleWithImports("unrelated"))

	got := g.InvalidateTransitive("a")
	want := map[string]bool{"a": true, "b": true, "c": true}
	if len(got) != len(want) {
		t.Fatalf("Expected %d modules, got %v", len(want), got)
	}
	for _, m := range got {
		if !want[m] {
			t.Errorf("Unexpected invalidated module %s", m)
		}
	}
}
