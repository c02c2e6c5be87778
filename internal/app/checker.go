// # internal/app/checker.go

// Package app wires the pipeline: discover sources, parse, build the
// import graph, run semantic analysis SCC by SCC, then emit lowered C
// and reports.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"pyrite/internal/cache"
	"pyrite/internal/codegen"
	"pyrite/internal/config"
	"pyrite/internal/core/errors"
	"pyrite/internal/depgraph"
	"pyrite/internal/output"
	"pyrite/internal/semanal"
	"pyrite/internal/shared/observability"
	"pyrite/internal/syntax"
)

type Checker struct {
	cfg     *config.Config
	parser  *syntax.Parser
	graph   *depgraph.Graph
	store   *cache.Store
	printer *output.Printer
}

type Result struct {
	Modules     int
	Diagnostics []semanal.Diagnostic
	Elapsed     time.Duration
}

func NewChecker(cfg *config.Config, out io.Writer) (*Checker, error) {
	c := &Checker{
		cfg:     cfg,
		parser:  syntax.NewParser(),
		graph:   depgraph.NewGraph(),
		printer: output.NewPrinter(out),
	}
	if cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open analysis cache: %w", err)
		}
		c.store = store
	}
	return c, nil
}

func (c *Checker) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Run performs one full check. When every module's content digest hits
// the cache the stored diagnostics are reported without re-analysis;
// any miss re-analyzes the whole graph and refreshes the cache.
func (c *Checker) Run(ctx context.Context) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.run")
	defer span.End()

	start := time.Now()
	parseDiags, err := c.loadSources()
	if err != nil {
		return nil, err
	}

	moduleNames := c.graph.ModuleNames()
	span.SetAttributes(attribute.Int("modules", len(moduleNames)))

	if diags, ok := c.cachedRun(moduleNames); ok && len(parseDiags) == 0 {
		slog.Debug("all modules unchanged, using cached results", "modules", len(moduleNames))
		return &Result{
			Modules:     len(moduleNames),
			Diagnostics: diags,
			Elapsed:     time.Since(start),
		}, nil
	}

	diags := parseDiags
	sched := semanal.NewScheduler(c.graph, c.cfg.Check.MaxIterations)
	for _, scc := range c.graph.SCCOrder() {
		diags = append(diags, sched.AnalyzeSCC(ctx, scc)...)
	}

	c.saveResults(moduleNames, diags)

	if c.cfg.Codegen.Enabled {
		if err := c.emitLowered(moduleNames); err != nil {
			return nil, err
		}
	}
	if c.cfg.Output.DOT != "" {
		dot := output.NewDOTGenerator(c.graph).Generate()
		if err := os.WriteFile(c.cfg.Output.DOT, []byte(dot), 0o644); err != nil {
			return nil, fmt.Errorf("write DOT output: %w", err)
		}
	}

	return &Result{
		Modules:     len(moduleNames),
		Diagnostics: diags,
		Elapsed:     time.Since(start),
	}, nil
}

// Report prints diagnostics and the run summary.
func (c *Checker) Report(res *Result) {
	c.printer.PrintDiagnostics(res.Diagnostics)
	c.printer.PrintSummary(res.Modules, len(res.Diagnostics), res.Elapsed)
}

// Graph exposes the import graph for watch-mode invalidation.
func (c *Checker) Graph() *depgraph.Graph {
	return c.graph
}

// loadSources parses every discovered file into the graph, returning
// parse failures as diagnostics so a broken file does not abort the run.
func (c *Checker) loadSources() ([]semanal.Diagnostic, error) {
	var diags []semanal.Diagnostic
	for _, root := range c.cfg.SourcePaths {
		files, err := c.discover(root)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read source %q: %w", path, err)
			}
			name := syntax.ModuleNameFromPath(root, path)
			ast, err := c.parser.ParseFile(path, name, data)
			if err != nil {
				diags = append(diags, semanal.Diagnostic{
					Target:  name,
					Loc:     syntax.Location{File: path, Line: 1, Column: 1},
					Code:    errors.CodeParseError,
					Message: err.Error(),
				})
				continue
			}
			c.graph.AddModule(ast)
		}
	}
	return diags, nil
}

func (c *Checker) discover(root string) ([]string, error) {
	dirGlobs, err := compileGlobs(c.cfg.Exclude.Dirs)
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(c.cfg.Exclude.Files)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if info.IsDir() {
			for _, g := range dirGlobs {
				if g.Match(base) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if filepath.Ext(base) != ".py" {
			return nil
		}
		for _, g := range fileGlobs {
			if g.Match(base) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sources under %q: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// cachedRun reports the stored diagnostics when every module digest is
// up to date.
func (c *Checker) cachedRun(moduleNames []string) ([]semanal.Diagnostic, bool) {
	if c.store == nil || len(moduleNames) == 0 {
		return nil, false
	}
	var diags []semanal.Diagnostic
	for _, name := range moduleNames {
		mod, ok := c.graph.GetModule(name)
		if !ok || mod.AST == nil {
			return nil, false
		}
		cached, hit, err := c.store.Lookup(name, mod.AST.Digest)
		if err != nil {
			slog.Warn("cache lookup failed", "module", name, "error", err)
			return nil, false
		}
		if !hit {
			return nil, false
		}
		diags = append(diags, cached...)
	}
	observability.CacheHitsTotal.Add(float64(len(moduleNames)))
	return diags, true
}

func (c *Checker) saveResults(moduleNames []string, diags []semanal.Diagnostic) {
	if c.store == nil {
		return
	}
	runID := uuid.NewString()
	byModule := groupByModule(moduleNames, diags)
	for _, name := range moduleNames {
		mod, ok := c.graph.GetModule(name)
		if !ok || mod.AST == nil {
			continue
		}
		if err := c.store.Save(name, mod.AST.Digest, runID, byModule[name]); err != nil {
			slog.Warn("cache save failed", "module", name, "error", err)
		}
	}
}

// groupByModule attributes each diagnostic to the longest module name
// prefixing its target.
func groupByModule(moduleNames []string, diags []semanal.Diagnostic) map[string][]semanal.Diagnostic {
	sorted := append([]string(nil), moduleNames...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	out := make(map[string][]semanal.Diagnostic)
	for _, d := range diags {
		for _, name := range sorted {
			if d.Target == name || strings.HasPrefix(d.Target, name+".") {
				out[name] = append(out[name], d)
				break
			}
		}
	}
	return out
}

func (c *Checker) emitLowered(moduleNames []string) error {
	if err := os.MkdirAll(c.cfg.Codegen.OutDir, 0o755); err != nil {
		return fmt.Errorf("create codegen output dir: %w", err)
	}
	for _, name := range moduleNames {
		mod, ok := c.graph.GetModule(name)
		if !ok || mod.AST == nil {
			continue
		}
		src := codegen.LowerModule(mod)
		path := filepath.Join(c.cfg.Codegen.OutDir, strings.ReplaceAll(name, ".", "_")+".c")
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			return fmt.Errorf("write lowered module %q: %w", name, err)
		}
	}
	return nil
}
