package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrite/internal/config"
	"pyrite/internal/core/errors"
)

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, src := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func newTestChecker(t *testing.T, cfg *config.Config) *Checker {
	t.Helper()
	c, err := NewChecker(cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRunCleanProject(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"a.py": "import b\nx = 1\nz = b.y\n",
		"b.py": "import a\ny = 2\nw = a.x\n",
	})
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}

	res, err := newTestChecker(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Modules)
	assert.Empty(t, res.Diagnostics)
}

func TestRunReportsUnresolvedNames(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"m.py": "value = missing\n",
	})
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}

	res, err := newTestChecker(t, cfg).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, errors.CodeUnresolvedName, res.Diagnostics[0].Code)
}

func TestRunSkipsExcludedDirs(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"m.py":                 "x = 1\n",
		"__pycache__/junk.py":  "broken ( syntax\n",
		".pyrite/generated.py": "also = broken (\n",
	})
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}

	res, err := newTestChecker(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modules)
	assert.Empty(t, res.Diagnostics)
}

func TestRunPackages(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/util.py":     "def helper():\n    return 1\n",
		"main.py":         "from pkg.util import helper\nr = helper()\n",
	})
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}

	res, err := newTestChecker(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
}

func TestCachedRerunReturnsSameDiagnostics(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"m.py": "value = missing\nok = 1\n",
	})
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}
	cfg.Cache.Enabled = true
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	c := newTestChecker(t, cfg)
	first, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Diagnostics, 1)

	// A fresh checker over unchanged sources serves from the cache.
	c2 := newTestChecker(t, cfg)
	second, err := c2.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Diagnostics, 1)
	// Byte-for-byte the same report, location included: the cache stores
	// the source path, not just the module name.
	assert.Equal(t, first.Diagnostics[0], second.Diagnostics[0])
	assert.Equal(t, filepath.Join(dir, "m.py"), second.Diagnostics[0].Loc.File)
}

func TestCacheMissAfterEdit(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"m.py": "value = missing\n",
	})
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}
	cfg.Cache.Enabled = true
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	c := newTestChecker(t, cfg)
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)

	// fix the file; a new run must re-analyze and come back clean
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.py"), []byte("value = 1\n"), 0o644))
	c2 := newTestChecker(t, cfg)
	res, err = c2.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
}

func TestCodegenWritesLoweredModules(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"m.py": "def add(a: int, b: int) -> int:\n    return a + b\n",
	})
	outDir := t.TempDir()
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}
	cfg.Codegen.Enabled = true
	cfg.Codegen.OutDir = outDir

	_, err := newTestChecker(t, cfg).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "m.c"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Pyr_m_add")
}

func TestDOTOutput(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import a\n",
	})
	dotPath := filepath.Join(t.TempDir(), "imports.dot")
	cfg := config.Default()
	cfg.SourcePaths = []string{dir}
	cfg.Output.DOT = dotPath

	_, err := newTestChecker(t, cfg).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph imports")
}

func TestGroupByModule(t *testing.T) {
	names := []string{"pkg", "pkg.util"}
	diags := groupByModule(names, nil)
	assert.Empty(t, diags)
}
