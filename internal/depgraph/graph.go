// # internal/depgraph/graph.go
package depgraph

import (
	"sort"
	"sync"

	"pyrite/internal/shared/observability"
	"pyrite/internal/syntax"
)

type SymbolKind int

const (
	KindFunction SymbolKind = iota
	KindClass
	KindVariable
	KindAlias
	KindModuleRef
)

// Symbol is a named binding owned by exactly one namespace. Expressions
// reference symbols but never own them.
type Symbol struct {
	Name     string
	FullName string
	Kind     SymbolKind
	Loc      syntax.Location
	Def      *syntax.Stmt // defining statement; nil for aliases and module refs
	// Alias targets: the module (and optional symbol) this name re-exports.
	TargetModule string
	TargetSymbol string
}

// Module is the unit of analysis: a parsed file plus its mutable symbol
// table. The table is mutated repeatedly during fixpoint analysis and
// frozen once the module's SCC converges.
type Module struct {
	Name   string
	AST    *syntax.Module
	Names  map[string]*Symbol
	Frozen bool
}

func (m *Module) Lookup(name string) (*Symbol, bool) {
	sym, ok := m.Names[name]
	return sym, ok
}

// Graph holds per-module namespaces and the import dependency structure.
type Graph struct {
	mu sync.RWMutex

	modules    map[string]*Module
	imports    map[string]map[string]bool // from -> to
	importedBy map[string]map[string]bool // to -> from
}

func NewGraph() *Graph {
	return &Graph{
		modules:    make(map[string]*Module),
		imports:    make(map[string]map[string]bool),
		importedBy: make(map[string]map[string]bool),
	}
}

// AddModule registers a parsed module and its import edges, replacing any
// prior version of the same module.
func (g *Graph) AddModule(ast *syntax.Module) *Module {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.modules[ast.Name]; exists {
		g.removeEdgesLocked(ast.Name)
	}

	mod := &Module{
		Name:  ast.Name,
		AST:   ast,
		Names: make(map[string]*Symbol),
	}
	g.modules[ast.Name] = mod

	if g.imports[ast.Name] == nil {
		g.imports[ast.Name] = make(map[string]bool)
	}
	for _, imp := range collectImports(ast) {
		g.imports[ast.Name][imp] = true
		if g.importedBy[imp] == nil {
			g.importedBy[imp] = make(map[string]bool)
		}
		g.importedBy[imp][ast.Name] = true
	}

	g.updateMetricsLocked()
	return mod
}

func (g *Graph) RemoveModule(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgesLocked(name)
	delete(g.modules, name)
	g.updateMetricsLocked()
}

func (g *Graph) removeEdgesLocked(name string) {
	for to := range g.imports[name] {
		if g.importedBy[to] != nil {
			delete(g.importedBy[to], name)
		}
	}
	delete(g.imports, name)
}

func (g *Graph) updateMetricsLocked() {
	observability.GraphModules.Set(float64(len(g.modules)))
	edges := 0
	for _, targets := range g.imports {
		edges += len(targets)
	}
	observability.GraphEdges.Set(float64(edges))
}

func collectImports(ast *syntax.Module) []string {
	seen := make(map[string]bool)
	var out []string
	syntax.Walk(ast.Body, func(s *syntax.Stmt) bool {
		if s.Kind == syntax.StmtImport || s.Kind == syntax.StmtImportFrom {
			for _, imp := range s.Imports {
				if imp.Module != "" && !seen[imp.Module] {
					seen[imp.Module] = true
					out = append(out, imp.Module)
				}
			}
		}
		// Imports inside function bodies still create module dependencies.
		return true
	})
	return out
}

func (g *Graph) GetModule(name string) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	mod, ok := g.modules[name]
	return mod, ok
}

func (g *Graph) ModuleNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) ModuleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.modules)
}

// Imports returns a copy of the import edge set.
func (g *Graph) Imports() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	res := make(map[string][]string, len(g.imports))
	for from, targets := range g.imports {
		for to := range targets {
			res[from] = append(res[from], to)
		}
		sort.Strings(res[from])
	}
	return res
}

// SCCOrder returns the strongly connected components of the import graph
// in dependency order: a component appears before every component that
// imports it, so leaves come first. Only modules known to the graph are
// considered; external imports do not form nodes.
func (g *Graph) SCCOrder() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]string, 0, len(g.modules))
	for name := range g.modules {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)

	adjacency := make(map[string][]string, len(nodes))
	for _, name := range nodes {
		var targets []string
		for to := range g.imports[name] {
			if _, ok := g.modules[to]; ok {
				targets = append(targets, to)
			}
		}
		sort.Strings(targets)
		adjacency[name] = targets
	}

	_, components := stronglyConnectedComponents(nodes, adjacency)
	return components
}

// InvalidateTransitive returns the changed module plus every module that
// transitively imports it. Used by watch mode to bound rechecking.
func (g *Graph) InvalidateTransitive(changed string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.modules[changed]; !ok {
		return nil
	}

	seen := map[string]bool{changed: true}
	order := []string{changed}
	queue := []string{changed}
	for len(queue) > 0 {
		mod := queue[0]
		queue = queue[1:]
		importers := make([]string, 0, len(g.importedBy[mod]))
		for importer := range g.importedBy[mod] {
			importers = append(importers, importer)
		}
		sort.Strings(importers)
		for _, importer := range importers {
			if seen[importer] {
				continue
			}
			if _, ok := g.modules[importer]; !ok {
				continue
			}
			seen[importer] = true
			order = append(order, importer)
			queue = append(queue, importer)
		}
	}
	return order
}

// stronglyConnectedComponents runs Tarjan's algorithm. Components come out
// in reverse topological order of the condensation, which is exactly the
// leaves-first processing order the analysis scheduler needs.
func stronglyConnectedComponents(nodes []string, adjacency map[string][]string) (map[string]int, [][]string) {
	index := 0
	stack := make([]string, 0, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	indexByNode := make(map[string]int, len(nodes))
	lowLink := make(map[string]int, len(nodes))
	componentOf := make(map[string]int, len(nodes))
	components := make([][]string, 0)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indexByNode[v] = index
		lowLink[v] = index
		index++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adjacency[v] {
			if _, seen := indexByNode[w]; !seen {
				strongConnect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexByNode[w] < lowLink[v] {
				lowLink[v] = indexByNode[w]
			}
		}

		if lowLink[v] != indexByNode[v] {
			return
		}

		component := make([]string, 0)
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			component = append(component, last)
			if last == v {
				break
			}
		}
		sort.Strings(component)
		compID := len(components)
		components = append(components, component)
		for _, n := range component {
			componentOf[n] = compID
		}
	}

	for _, node := range nodes {
		if _, seen := indexByNode[node]; !seen {
			strongConnect(node)
		}
	}

	return componentOf, components
}
