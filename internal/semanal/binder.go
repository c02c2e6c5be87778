// # internal/semanal/binder.go
package semanal

import (
	"fmt"
	"strings"

	"pyrite/internal/core/errors"
	"pyrite/internal/depgraph"
	"pyrite/internal/syntax"
)

// builtinNames are always resolvable without a binding. Kept deliberately
// small; anything beyond this set must be imported or defined.
var builtinNames = map[string]bool{
	"print": true, "len": true, "range": true, "abs": true, "min": true,
	"max": true, "sum": true, "sorted": true, "enumerate": true, "zip": true,
	"isinstance": true, "type": true, "super": true, "iter": true, "next": true,
	"int": true, "float": true, "str": true, "bool": true, "bytes": true,
	"list": true, "dict": true, "set": true, "tuple": true, "object": true,
	"Exception": true, "BaseException": true, "ValueError": true,
	"TypeError": true, "RuntimeError": true, "StopIteration": true,
	"GeneratorExit": true, "KeyError": true, "IndexError": true,
	"AttributeError": true, "NotImplementedError": true,
}

// bindResult summarizes one analysis pass over a target.
type bindResult struct {
	// deferred: at least one lookup hit an incomplete namespace, so the
	// target must be re-analyzed in a later iteration.
	deferred bool
	// incomplete: the target's own namespace may still gain bindings
	// (for example a pending wildcard import), so failed lookups against
	// it elsewhere must not be treated as errors yet.
	incomplete bool
}

type binder struct {
	graph *depgraph.Graph
	ctx   *Context
	mod   *depgraph.Module

	target string
	res    bindResult

	// diags are buffered per pass and committed only when the target does
	// not defer; a deferred target is re-analyzed from scratch, so partial
	// findings would duplicate.
	diags []Diagnostic

	scopes []map[string]bool
	inFunc bool
}

func newBinder(g *depgraph.Graph, ctx *Context, mod *depgraph.Module, target string) *binder {
	return &binder{graph: g, ctx: ctx, mod: mod, target: target}
}

// analyzeTopLevel binds the module's top-level definitions, then resolves
// every reference the top level makes. Definitions are bound first so that
// forward references within the module never defer.
func analyzeTopLevel(g *depgraph.Graph, ctx *Context, mod *depgraph.Module) bindResult {
	b := newBinder(g, ctx, mod, mod.Name)
	if mod.AST == nil {
		b.fail(syntax.Location{File: mod.Name}, errors.CodeInternal, "module has no syntax tree")
		b.commit()
		return b.res
	}
	b.bindDefs(mod.AST.Body)
	b.resolveBody(mod.AST.Body)
	if !b.res.deferred {
		b.commit()
	}
	return b.res
}

// analyzeFunction resolves references inside one function body. The
// enclosing module's top level has already converged, so this phase only
// defers when a cross-module namespace is still marked incomplete.
func analyzeFunction(g *depgraph.Graph, ctx *Context, mod *depgraph.Module, target string, fn *syntax.Stmt) bindResult {
	b := newBinder(g, ctx, mod, target)
	if fn == nil || fn.Kind != syntax.StmtFuncDef {
		b.fail(syntax.Location{File: mod.Name}, errors.CodeInternal,
			fmt.Sprintf("target %s is not a function definition", target))
		b.commit()
		return b.res
	}
	b.resolveFunc(fn)
	if !b.res.deferred {
		b.commit()
	}
	return b.res
}

func (b *binder) commit() {
	for _, d := range b.diags {
		b.ctx.report(d)
	}
	b.diags = nil
}

func (b *binder) fail(loc syntax.Location, code errors.ErrorCode, msg string) {
	b.diags = append(b.diags, Diagnostic{Target: b.target, Loc: loc, Code: code, Message: msg})
}

func (b *binder) deferTarget() {
	b.res.deferred = true
}

// --- definition binding ---

func (b *binder) define(name string, kind depgraph.SymbolKind, loc syntax.Location, def *syntax.Stmt) *depgraph.Symbol {
	sym := &depgraph.Symbol{
		Name:     name,
		FullName: b.mod.Name + "." + name,
		Kind:     kind,
		Loc:      loc,
		Def:      def,
	}
	b.mod.Names[name] = sym
	return sym
}

// bindDefs creates module-level bindings. It recurses into conditional
// blocks but not into function or class bodies.
func (b *binder) bindDefs(body []*syntax.Stmt) {
	for _, s := range body {
		if s.Unreachable {
			continue
		}
		switch s.Kind {
		case syntax.StmtAssign:
			for _, t := range s.Targets {
				if t.Kind == syntax.ExprName {
					b.define(t.Name, depgraph.KindVariable, t.Loc, s)
				}
			}
		case syntax.StmtFuncDef:
			b.define(s.Name, depgraph.KindFunction, s.Loc, s)
		case syntax.StmtClassDef:
			b.define(s.Name, depgraph.KindClass, s.Loc, s)
		case syntax.StmtImport:
			b.bindImport(s)
		case syntax.StmtImportFrom:
			b.bindImportFrom(s)
		case syntax.StmtFor:
			for _, t := range s.Targets {
				if t.Kind == syntax.ExprName {
					b.define(t.Name, depgraph.KindVariable, t.Loc, s)
				}
			}
			b.bindDefs(s.Body)
			b.bindDefs(s.Else)
		case syntax.StmtIf, syntax.StmtWhile:
			b.bindDefs(s.Body)
			b.bindDefs(s.Else)
		}
	}
}

func (b *binder) bindImport(s *syntax.Stmt) {
	for _, cl := range s.Imports {
		if cl.Alias != "" {
			sym := b.define(cl.Alias, depgraph.KindModuleRef, cl.Loc, nil)
			sym.TargetModule = cl.Module
			continue
		}
		// "import a.b" binds the top package name; attribute access walks
		// the rest of the dotted path.
		top := cl.Module
		if i := strings.IndexByte(top, '.'); i >= 0 {
			top = top[:i]
		}
		sym := b.define(top, depgraph.KindModuleRef, cl.Loc, nil)
		sym.TargetModule = top
	}
}

func (b *binder) bindImportFrom(s *syntax.Stmt) {
	for _, cl := range s.Imports {
		if cl.Item == "*" {
			b.bindWildcard(cl)
			continue
		}
		name := cl.Item
		if cl.Alias != "" {
			name = cl.Alias
		}
		src, known := b.graph.GetModule(cl.Module)
		if !known {
			// External module: treated as opaque, the alias resolves.
			sym := b.define(name, depgraph.KindAlias, cl.Loc, nil)
			sym.TargetModule = cl.Module
			sym.TargetSymbol = cl.Item
			continue
		}
		if _, ok := src.Lookup(cl.Item); !ok {
			if b.ctx.IsIncomplete(cl.Module) {
				b.deferTarget()
				b.res.incomplete = true
				continue
			}
			b.fail(cl.Loc, errors.CodeUnresolvedName,
				fmt.Sprintf("module %q has no attribute %q", cl.Module, cl.Item))
			// Bind a variable anyway so uses do not cascade.
			b.define(name, depgraph.KindVariable, cl.Loc, nil)
			continue
		}
		sym := b.define(name, depgraph.KindAlias, cl.Loc, nil)
		sym.TargetModule = cl.Module
		sym.TargetSymbol = cl.Item
	}
}

func (b *binder) bindWildcard(cl syntax.ImportClause) {
	src, known := b.graph.GetModule(cl.Module)
	if !known {
		return // external, nothing to enumerate
	}
	if b.ctx.IsIncomplete(cl.Module) {
		// The source may still gain names; ours is incomplete too.
		b.deferTarget()
		b.res.incomplete = true
		return
	}
	for name := range src.Names {
		if strings.HasPrefix(name, "_") {
			continue
		}
		sym := b.define(name, depgraph.KindAlias, cl.Loc, nil)
		sym.TargetModule = cl.Module
		sym.TargetSymbol = name
	}
}

// --- reference resolution ---

func (b *binder) pushScope(names map[string]bool) {
	b.scopes = append(b.scopes, names)
}

func (b *binder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *binder) inScope(name string) bool {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if b.scopes[i][name] {
			return true
		}
	}
	return false
}

func (b *binder) resolveBody(body []*syntax.Stmt) {
	for _, s := range body {
		if s.Unreachable {
			continue
		}
		switch s.Kind {
		case syntax.StmtFuncDef:
			if b.inFunc {
				// Nested defs are not separate targets; they close over
				// the enclosing function's scope.
				b.resolveFunc(s)
				continue
			}
			// Top-level bodies are separate targets; only defaults and
			// annotations resolve in the enclosing scope.
			b.resolveSignature(s)
		case syntax.StmtClassDef:
			for _, base := range s.Bases {
				b.resolveExpr(base)
			}
			b.pushScope(classScopeNames(s.Body))
			b.resolveBody(s.Body)
			b.popScope()
		case syntax.StmtAssign:
			b.resolveExpr(s.Value)
			b.resolveExpr(s.Annotation)
		case syntax.StmtExpr, syntax.StmtReturn, syntax.StmtRaise:
			b.resolveExpr(s.Value)
		case syntax.StmtIf, syntax.StmtWhile:
			b.resolveExpr(s.Cond)
			b.resolveBody(s.Body)
			b.resolveBody(s.Else)
		case syntax.StmtFor:
			b.resolveExpr(s.Iter)
			b.resolveBody(s.Body)
			b.resolveBody(s.Else)
		}
	}
}

func (b *binder) resolveSignature(fn *syntax.Stmt) {
	for _, p := range fn.Params {
		b.resolveExpr(p.Annotation)
		b.resolveExpr(p.Default)
	}
	b.resolveExpr(fn.Returns)
}

func (b *binder) resolveFunc(fn *syntax.Stmt) {
	b.resolveSignature(fn)
	b.pushScope(localNames(fn))
	wasInFunc := b.inFunc
	b.inFunc = true
	b.resolveBody(fn.Body)
	b.inFunc = wasInFunc
	b.popScope()
}

func (b *binder) resolveExpr(e *syntax.Expr) {
	if e == nil {
		return
	}
	switch e.Kind {
	case syntax.ExprName:
		b.resolveName(e.Name, e.Loc)
	case syntax.ExprAttribute:
		if parts, locs := flattenDotted(e); parts != nil {
			b.resolveDotted(parts, locs)
			return
		}
		b.resolveExpr(e.Value)
	case syntax.ExprCall:
		b.resolveExpr(e.Func)
		for _, a := range e.Args {
			b.resolveExpr(a)
		}
	case syntax.ExprBinOp, syntax.ExprCompare:
		b.resolveExpr(e.Left)
		b.resolveExpr(e.Right)
	case syntax.ExprSubscript:
		b.resolveExpr(e.Value)
		for _, idx := range e.Elts {
			b.resolveExpr(idx)
		}
	case syntax.ExprTuple, syntax.ExprList:
		for _, el := range e.Elts {
			b.resolveExpr(el)
		}
	case syntax.ExprYield:
		b.resolveExpr(e.Value)
	}
}

func (b *binder) resolveName(name string, loc syntax.Location) {
	if b.inScope(name) || builtinNames[name] {
		return
	}
	if _, ok := b.mod.Lookup(name); ok {
		return
	}
	if b.ctx.IsIncomplete(b.mod.Name) {
		b.deferTarget()
		return
	}
	b.fail(loc, errors.CodeUnresolvedName, fmt.Sprintf("name %q is not defined", name))
}

// resolveDotted resolves a pure name.attr.attr chain. Attribute access on
// anything other than a module reference is left to later type analysis.
func (b *binder) resolveDotted(parts []string, locs []syntax.Location) {
	head := parts[0]
	if b.inScope(head) {
		return
	}
	sym, ok := b.mod.Lookup(head)
	if !ok {
		b.resolveName(head, locs[0])
		return
	}
	modName := moduleTarget(b.graph, sym)
	if modName == "" {
		return // plain object attribute, opaque here
	}
	for i := 1; i < len(parts); i++ {
		// Prefer extending the dotted module path: "a.b" may itself be a
		// module even when "a" carries no binding for "b".
		if _, ok := b.graph.GetModule(modName + "." + parts[i]); ok {
			modName = modName + "." + parts[i]
			continue
		}
		src, known := b.graph.GetModule(modName)
		if !known {
			return // external package, opaque
		}
		member, ok := src.Lookup(parts[i])
		if !ok {
			if b.ctx.IsIncomplete(modName) {
				b.deferTarget()
				return
			}
			b.fail(locs[i], errors.CodeUnresolvedName,
				fmt.Sprintf("module %q has no attribute %q", modName, parts[i]))
			return
		}
		next := moduleTarget(b.graph, member)
		if next == "" {
			return // reached a non-module symbol; the rest is opaque
		}
		modName = next
	}
}

// moduleTarget reports the module a symbol refers to, or "" when the
// symbol is not a module reference.
func moduleTarget(g *depgraph.Graph, sym *depgraph.Symbol) string {
	switch sym.Kind {
	case depgraph.KindModuleRef:
		return sym.TargetModule
	case depgraph.KindAlias:
		if sym.TargetSymbol == "" {
			return sym.TargetModule
		}
		full := sym.TargetModule + "." + sym.TargetSymbol
		if _, ok := g.GetModule(full); ok {
			return full
		}
	}
	return ""
}

// flattenDotted returns the parts of a pure Name/Attribute chain, or nil
// when the chain contains calls, subscripts or other expressions.
func flattenDotted(e *syntax.Expr) ([]string, []syntax.Location) {
	var parts []string
	var locs []syntax.Location
	for e != nil && e.Kind == syntax.ExprAttribute {
		parts = append([]string{e.Name}, parts...)
		locs = append([]syntax.Location{e.Loc}, locs...)
		e = e.Value
	}
	if e == nil || e.Kind != syntax.ExprName {
		return nil, nil
	}
	parts = append([]string{e.Name}, parts...)
	locs = append([]syntax.Location{e.Loc}, locs...)
	return parts, locs
}

// --- scope collection ---

func localNames(fn *syntax.Stmt) map[string]bool {
	names := make(map[string]bool)
	for _, p := range fn.Params {
		names[p.Name] = true
	}
	globals := make(map[string]bool)
	collectAssigned(fn.Body, names, globals)
	for g := range globals {
		delete(names, g)
	}
	return names
}

func collectAssigned(body []*syntax.Stmt, names, globals map[string]bool) {
	for _, s := range body {
		switch s.Kind {
		case syntax.StmtAssign:
			for _, t := range s.Targets {
				if t.Kind == syntax.ExprName {
					names[t.Name] = true
				}
			}
		case syntax.StmtFuncDef, syntax.StmtClassDef:
			names[s.Name] = true
			// nested bodies have their own scopes
		case syntax.StmtFor:
			for _, t := range s.Targets {
				if t.Kind == syntax.ExprName {
					names[t.Name] = true
				}
			}
			collectAssigned(s.Body, names, globals)
			collectAssigned(s.Else, names, globals)
		case syntax.StmtIf, syntax.StmtWhile:
			collectAssigned(s.Body, names, globals)
			collectAssigned(s.Else, names, globals)
		case syntax.StmtGlobal:
			for _, n := range s.Names {
				globals[n] = true
			}
		}
	}
}

func classScopeNames(body []*syntax.Stmt) map[string]bool {
	names := make(map[string]bool)
	for _, s := range body {
		switch s.Kind {
		case syntax.StmtAssign:
			for _, t := range s.Targets {
				if t.Kind == syntax.ExprName {
					names[t.Name] = true
				}
			}
		case syntax.StmtFuncDef, syntax.StmtClassDef:
			names[s.Name] = true
		}
	}
	return names
}
