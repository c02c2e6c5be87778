package semanal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrite/internal/core/errors"
	"pyrite/internal/depgraph"
	"pyrite/internal/syntax"
)

func buildGraph(t *testing.T, sources map[string]string) *depgraph.Graph {
	t.Helper()
	p := syntax.NewParser()
	g := depgraph.NewGraph()
	for name, src := range sources {
		ast, err := p.ParseFile(name+".py", name, []byte(src))
		require.NoError(t, err)
		g.AddModule(ast)
	}
	return g
}

func analyzeAll(t *testing.T, g *depgraph.Graph) []Diagnostic {
	t.Helper()
	sched := NewScheduler(g, DefaultMaxIterations)
	var diags []Diagnostic
	for _, scc := range g.SCCOrder() {
		diags = append(diags, sched.AnalyzeSCC(context.Background(), scc)...)
	}
	return diags
}

func TestMutualImportResolves(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a": "import b\nx = 1\nz = b.y\n",
		"b": "import a\ny = 2\nw = a.x\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)

	a, ok := g.GetModule("a")
	require.True(t, ok)
	assert.Contains(t, a.Names, "x")
	assert.Contains(t, a.Names, "z")
	b, ok := g.GetModule("b")
	require.True(t, ok)
	assert.Contains(t, b.Names, "y")
	assert.True(t, a.Frozen)
	assert.True(t, b.Frozen)
}

func TestTopLevelConvergesWithinTwoIterations(t *testing.T) {
	// One round binds every definition; the second resolves the references
	// that crossed the cycle. Nothing forces a third round when there are
	// no cyclic forward references.
	g := buildGraph(t, map[string]string{
		"a": "import b\nx = 1\nz = b.y\n",
		"b": "import a\ny = 2\nw = a.x\n",
	})
	sched := NewScheduler(g, DefaultMaxIterations)
	sccs := g.SCCOrder()
	require.Len(t, sccs, 1)

	run := NewContext(DefaultMaxIterations)
	sched.processTopLevels(run, sccs[0])
	assert.Equal(t, 2, run.Iterations())
	assert.False(t, run.Forced())
	assert.Empty(t, run.Diagnostics())

	// A module with no cross-module references settles in one round.
	g2 := buildGraph(t, map[string]string{
		"m": "x = 1\ny = x\n",
	})
	run2 := NewContext(DefaultMaxIterations)
	NewScheduler(g2, DefaultMaxIterations).processTopLevels(run2, []string{"m"})
	assert.Equal(t, 1, run2.Iterations())
}

func TestFromImportAcrossCycle(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a": "from b import helper\n\ndef entry():\n    return helper()\n",
		"b": "from a import entry\n\ndef helper():\n    return 1\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)

	a, _ := g.GetModule("a")
	sym, ok := a.Lookup("helper")
	require.True(t, ok)
	assert.Equal(t, depgraph.KindAlias, sym.Kind)
	assert.Equal(t, "b", sym.TargetModule)
}

func TestUnresolvedNameReported(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "x = missing_thing\n",
	})
	diags := analyzeAll(t, g)
	require.Len(t, diags, 1)
	assert.Equal(t, errors.CodeUnresolvedName, diags[0].Code)
	assert.Contains(t, diags[0].Message, "missing_thing")
	assert.Equal(t, "m", diags[0].Target)
}

func TestMissingAttributeInCycleReportedOnce(t *testing.T) {
	// b.nothing can never resolve; the run must terminate and report
	// exactly one diagnostic, not one per iteration.
	g := buildGraph(t, map[string]string{
		"a": "import b\nv = b.nothing\n",
		"b": "import a\ny = 1\n",
	})
	diags := analyzeAll(t, g)
	require.Len(t, diags, 1)
	assert.Equal(t, errors.CodeUnresolvedName, diags[0].Code)
	assert.Contains(t, diags[0].Message, "nothing")
}

func TestExternalImportsAreOpaque(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "import os\nfrom collections import OrderedDict\np = os.path.join\nd = OrderedDict()\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)
}

func TestWildcardImportWaitsForSource(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a": "from b import *\nv = shared\n",
		"b": "import a\nshared = 3\n_private = 4\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)

	a, _ := g.GetModule("a")
	_, ok := a.Lookup("shared")
	assert.True(t, ok)
	_, ok = a.Lookup("_private")
	assert.False(t, ok, "underscore names must not propagate through wildcard imports")
}

func TestFunctionBodyUsesLateModuleNames(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "def f():\n    return later\n\nlater = 10\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)
}

func TestFunctionLocalsAndGlobals(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "counter = 0\n\ndef bump(step):\n    global counter\n    counter = counter + step\n    temp = step\n    return temp\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)
}

func TestYieldedNameResolved(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "def gen():\n    yield missing_name\n",
	})
	diags := analyzeAll(t, g)
	require.Len(t, diags, 1)
	assert.Equal(t, errors.CodeUnresolvedName, diags[0].Code)
	assert.Contains(t, diags[0].Message, "missing_name")
	assert.Equal(t, "m.gen", diags[0].Target)
}

func TestMethodTargetsCollected(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "class C:\n    def f(self):\n        return undefined_here\n",
	})
	diags := analyzeAll(t, g)
	require.Len(t, diags, 1)
	assert.Equal(t, "m.C.f", diags[0].Target)
}

func TestAnalysisIsIdempotent(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a": "import b\nv = b.nope\nx = 1\n",
		"b": "import a\ny = a.x\n",
	})
	sched := NewScheduler(g, DefaultMaxIterations)
	sccs := g.SCCOrder()
	var first, second []Diagnostic
	for _, scc := range sccs {
		first = append(first, sched.AnalyzeSCC(context.Background(), scc)...)
	}
	for _, scc := range sccs {
		second = append(second, sched.AnalyzeSCC(context.Background(), scc)...)
	}
	assert.Equal(t, first, second)
}

func TestUnreachableCodeNotAnalyzed(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"m": "if False:\n    v = totally_missing\nx = 1\n",
	})
	diags := analyzeAll(t, g)
	assert.Empty(t, diags)
}
