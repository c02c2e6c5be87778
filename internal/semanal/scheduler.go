// # internal/semanal/scheduler.go
package semanal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pyrite/internal/depgraph"
	"pyrite/internal/shared/observability"
	"pyrite/internal/syntax"
)

// DefaultMaxIterations bounds the fixpoint loop over one SCC. Real-world
// import cycles converge in two or three rounds; hitting the ceiling means
// an unresolvable cycle, which the final forced round turns into errors.
const DefaultMaxIterations = 10

// Scheduler drives semantic analysis over strongly connected components
// of the import graph. Modules inside one SCC may reference each other's
// names freely, so a single pass cannot bind everything; targets that hit
// a not-yet-populated namespace are deferred and replayed until the
// component reaches a fixpoint.
type Scheduler struct {
	graph         *depgraph.Graph
	maxIterations int
}

func NewScheduler(g *depgraph.Graph, maxIterations int) *Scheduler {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Scheduler{graph: g, maxIterations: maxIterations}
}

// AnalyzeSCC analyzes one component to completion: module top levels
// first, then function bodies. Each call gets a fresh run context, so the
// operation is idempotent over an unchanged component.
func (s *Scheduler) AnalyzeSCC(ctx context.Context, scc []string) []Diagnostic {
	_, span := observability.Tracer.Start(ctx, "semanal.analyze_scc",
		trace.WithAttributes(attribute.Int("scc.size", len(scc))))
	defer span.End()

	start := time.Now()
	run := NewContext(s.maxIterations)
	s.processTopLevels(run, scc)
	observability.AnalysisDuration.WithLabelValues("top_level").Observe(time.Since(start).Seconds())

	start = time.Now()
	s.processFunctions(run, scc)
	observability.AnalysisDuration.WithLabelValues("functions").Observe(time.Since(start).Seconds())

	for _, name := range scc {
		if mod, ok := s.graph.GetModule(name); ok {
			mod.Frozen = true
		}
	}
	span.SetAttributes(attribute.Int("diagnostics", len(run.Diagnostics())))
	return run.Diagnostics()
}

// processTopLevels runs the deferral fixpoint over module top levels.
// Every module starts incomplete; a module leaves the incomplete set as
// soon as one of its passes binds all definitions, even if references in
// it are still deferred. On the final permitted iteration all
// incompleteness is cleared so every remaining miss reports as an error;
// each remaining target is still analyzed once under forced completion.
func (s *Scheduler) processTopLevels(run *Context, scc []string) {
	worklist := &Worklist{}
	for _, name := range scc {
		if mod, ok := s.graph.GetModule(name); ok {
			mod.Names = make(map[string]*depgraph.Symbol)
			mod.Frozen = false
			run.MarkIncomplete(name)
		}
		worklist.Push(name)
	}

	iteration := 0
	for worklist.Len() > 0 {
		iteration++
		if iteration == run.MaxIterations {
			run.ForceComplete()
			observability.ForcedCompletionsTotal.Inc()
		}
		deferred := &Worklist{}
		for {
			name, ok := worklist.Pop()
			if !ok {
				break
			}
			mod, ok := s.graph.GetModule(name)
			if !ok {
				continue
			}
			res := analyzeTopLevel(s.graph, run, mod)
			if res.deferred {
				observability.DeferralsTotal.Inc()
				deferred.Push(name)
				if !res.incomplete {
					run.MarkComplete(name)
				}
				continue
			}
			run.MarkComplete(name)
		}
		worklist = deferred
	}
	run.iterations = iteration
	observability.AnalysisIterations.Observe(float64(iteration))
}

// processFunctions analyzes function bodies after all top levels in the
// component have converged, using the same deferral loop. Bodies may
// reference names bound late at module scope within the same SCC; by this
// point those are in place, so in practice this phase converges in one
// round, but deferral still applies when a namespace is marked incomplete.
func (s *Scheduler) processFunctions(run *Context, scc []string) {
	type fnTarget struct {
		id  string
		mod *depgraph.Module
		fn  *syntax.Stmt
	}
	byID := make(map[string]fnTarget)
	worklist := &Worklist{}
	for _, name := range scc {
		mod, ok := s.graph.GetModule(name)
		if !ok || mod.AST == nil {
			continue
		}
		for _, t := range functionTargets(name, mod.AST.Body) {
			ft := fnTarget{id: t.id, mod: mod, fn: t.fn}
			byID[t.id] = ft
			worklist.Push(t.id)
		}
	}

	for iteration := 1; worklist.Len() > 0; iteration++ {
		if iteration == run.MaxIterations {
			run.ForceComplete()
			observability.ForcedCompletionsTotal.Inc()
		}
		deferred := &Worklist{}
		for {
			id, ok := worklist.Pop()
			if !ok {
				break
			}
			t := byID[id]
			res := analyzeFunction(s.graph, run, t.mod, t.id, t.fn)
			if res.deferred {
				observability.DeferralsTotal.Inc()
				deferred.Push(id)
			}
		}
		worklist = deferred
	}
}

type namedFn struct {
	id string
	fn *syntax.Stmt
}

// functionTargets lists module-level functions and class methods. Nested
// functions are analyzed within their enclosing target.
func functionTargets(prefix string, body []*syntax.Stmt) []namedFn {
	var out []namedFn
	for _, s := range body {
		if s.Unreachable {
			continue
		}
		switch s.Kind {
		case syntax.StmtFuncDef:
			out = append(out, namedFn{id: prefix + "." + s.Name, fn: s})
		case syntax.StmtClassDef:
			out = append(out, functionTargets(prefix+"."+s.Name, s.Body)...)
		case syntax.StmtIf, syntax.StmtWhile, syntax.StmtFor:
			out = append(out, functionTargets(prefix, s.Body)...)
			out = append(out, functionTargets(prefix, s.Else)...)
		}
	}
	return out
}
