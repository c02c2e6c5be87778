package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrite/internal/core/errors"
	"pyrite/internal/depgraph"
	"pyrite/internal/semanal"
	"pyrite/internal/syntax"
)

func dotGraph(t *testing.T, sources map[string]string) *depgraph.Graph {
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

func TestDOTHighlightsCycles(t *testing.T) {
	g := dotGraph(t, map[string]string{
		"a": "import b\n",
		"b": "import a\n",
		"c": "import a\n",
	})
	out := NewDOTGenerator(g).Generate()

	assert.Contains(t, out, "digraph imports {")
	assert.Contains(t, out, `"a" -> "b" [color="red", penwidth=2.0];`)
	assert.Contains(t, out, `"b" -> "a" [color="red", penwidth=2.0];`)
	assert.Contains(t, out, `"c" -> "a";`)
}

func TestDOTExternalCluster(t *testing.T) {
	g := dotGraph(t, map[string]string{
		"m": "import os\n",
	})
	out := NewDOTGenerator(g).Generate()

	assert.Contains(t, out, "cluster_external")
	assert.Contains(t, out, `"os" [style=dashed];`)
}

func TestPrinterFormatsDiagnostics(t *testing.T) {
	var buf strings.Builder
	p := NewPrinter(&buf)
	p.PrintDiagnostics([]semanal.Diagnostic{
		{
			Target:  "m",
			Loc:     syntax.Location{File: "m.py", Line: 4, Column: 2},
			Code:    errors.CodeUnresolvedName,
			Message: `name "x" is not defined`,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "m.py:4:2")
	assert.Contains(t, out, `name "x" is not defined`)
	assert.Contains(t, out, "UNRESOLVED_NAME")
}

func TestPrinterSummary(t *testing.T) {
	var buf strings.Builder
	p := NewPrinter(&buf)
	p.PrintSummary(3, 0, 40*time.Millisecond)
	assert.Contains(t, buf.String(), "no issues found in 3 modules")

	buf.Reset()
	p.PrintSummary(3, 2, 40*time.Millisecond)
	assert.Contains(t, buf.String(), "Found 2 errors in 3 modules")
}
