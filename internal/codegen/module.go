// # internal/codegen/module.go
package codegen

import (
	"strings"

	"pyrite/internal/depgraph"
	"pyrite/internal/ir"
	"pyrite/internal/syntax"
)

// annotationTypes maps source annotations onto runtime representations.
// Unannotated or unknown annotations fall back to the generic object.
var annotationTypes = map[string]*ir.RType{
	"int":   ir.Int,
	"i64":   ir.I64,
	"float": ir.Float,
	"bool":  ir.Bool,
	"str":   ir.Str,
	"list":  ir.List,
	"dict":  ir.Dict,
	"None":  ir.None,
}

func annotatedType(e *syntax.Expr) *ir.RType {
	if e == nil || e.Kind != syntax.ExprName {
		return ir.Object
	}
	if t, ok := annotationTypes[e.Name]; ok {
		return t
	}
	return ir.Object
}

// BuildFuncIR lowers a function definition's signature.
func BuildFuncIR(moduleName, className string, fn *syntax.Stmt) *ir.FuncIR {
	f := &ir.FuncIR{
		Name:        fn.Name,
		Module:      moduleName,
		Class:       className,
		Ret:         annotatedType(fn.Returns),
		IsGenerator: fn.IsGenerator,
	}
	for _, p := range fn.Params {
		f.Params = append(f.Params, ir.ParamIR{Name: p.Name, Type: annotatedType(p.Annotation)})
	}
	if fn.IsGenerator {
		f.YieldTypes = yieldTypes(fn.Body)
		f.Ret = ir.Object
	}
	return f
}

// yieldTypes records one entry per suspension point in source order. The
// yielded representation is object unless later type inference narrows
// it, which keeps the environment layout stable.
func yieldTypes(body []*syntax.Stmt) []*ir.RType {
	var types []*ir.RType
	syntax.Walk(body, func(s *syntax.Stmt) bool {
		if s.Kind == syntax.StmtFuncDef {
			return false
		}
		countYields(s.Value, &types)
		countYields(s.Cond, &types)
		countYields(s.Iter, &types)
		return true
	})
	return types
}

func countYields(e *syntax.Expr, types *[]*ir.RType) {
	if e == nil {
		return
	}
	if e.Kind == syntax.ExprYield {
		*types = append(*types, ir.Object)
	}
	countYields(e.Value, types)
	countYields(e.Left, types)
	countYields(e.Right, types)
	countYields(e.Func, types)
	for _, a := range e.Args {
		countYields(a, types)
	}
	for _, el := range e.Elts {
		countYields(el, types)
	}
}

// LowerModule emits the C compilation unit skeleton for one analyzed
// module: tuple struct declarations, native function prototypes and the
// generator classes. Bodies beyond the prototype are filled in by the
// per-op emitters as lowering matures.
func LowerModule(mod *depgraph.Module) string {
	ctx := NewEmitterContext()
	e := NewEmitter(ctx)

	e.Line("// generated by pyrite, do not edit")
	e.Line("#include \"pyrite_runtime.h\"")
	e.Line("")

	var generators []string
	for _, s := range mod.AST.Body {
		if s.Unreachable {
			continue
		}
		switch s.Kind {
		case syntax.StmtFuncDef:
			fn := BuildFuncIR(mod.Name, "", s)
			emitPrototype(e, fn)
			if fn.IsGenerator {
				generators = append(generators, EmitGeneratorClass(ctx, fn, nil))
			}
		case syntax.StmtClassDef:
			for _, member := range s.Body {
				if member.Kind != syntax.StmtFuncDef {
					continue
				}
				fn := BuildFuncIR(mod.Name, s.Name, member)
				emitPrototype(e, fn)
				if fn.IsGenerator {
					generators = append(generators, EmitGeneratorClass(ctx, fn, nil))
				}
			}
		}
	}

	var out strings.Builder
	out.WriteString(ctx.TupleStructDecls())
	out.WriteString(e.Result())
	for _, g := range generators {
		out.WriteString("\n")
		out.WriteString(g)
	}
	return out.String()
}

func emitPrototype(e *Emitter, fn *ir.FuncIR) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = ctype(p.Type) + " " + p.Name
		e.Ctx.DeclareTupleStruct(p.Type)
	}
	e.Ctx.DeclareTupleStruct(fn.Ret)
	e.Line("%s %s(%s);", ctype(fn.Ret), nativeFuncName(fn), strings.Join(params, ", "))
}

func nativeFuncName(fn *ir.FuncIR) string {
	parts := []string{"Pyr", strings.ReplaceAll(fn.Module, ".", "_")}
	if fn.Class != "" {
		parts = append(parts, fn.Class)
	}
	parts = append(parts, fn.Name)
	return strings.Join(parts, "_")
}
