// # internal/syntax/ast.go
package syntax

// The AST is deliberately small: it covers the subset of Python the checker
// binds and lowers. Statements and expressions are closed tagged unions --
// a Kind discriminator plus the fields relevant for that kind.

type Location struct {
	File   string
	Line   int
	Column int
}

// Module is one parsed source file. The symbol table attached to it during
// semantic analysis lives in the depgraph package; the AST stays pure syntax.
type Module struct {
	Name   string // fully qualified, dotted
	Path   string
	Digest string // content digest, cache key
	Body   []*Stmt
}

type StmtKind int

const (
	StmtAssign StmtKind = iota
	StmtFuncDef
	StmtClassDef
	StmtImport
	StmtImportFrom
	StmtExpr
	StmtReturn
	StmtIf
	StmtWhile
	StmtFor
	StmtGlobal
	StmtRaise
	StmtPass
)

type Stmt struct {
	Kind StmtKind
	Loc  Location

	// StmtAssign
	Targets    []*Expr
	Value      *Expr
	Annotation *Expr

	// StmtFuncDef / StmtClassDef
	Name        string
	Params      []Param
	Body        []*Stmt
	Bases       []*Expr
	Returns     *Expr
	IsGenerator bool

	// StmtImport / StmtImportFrom
	Imports []ImportClause

	// StmtIf / StmtWhile / StmtFor
	Cond *Expr
	Else []*Stmt
	Iter *Expr

	// StmtGlobal
	Names []string

	// Set by reachability analysis before binding: names defined under a
	// statically false guard must not bind.
	Unreachable bool
}

type Param struct {
	Name       string
	Annotation *Expr
	Default    *Expr
	Loc        Location
}

type ImportClause struct {
	Module string // dotted module path
	Alias  string // optional
	Item   string // for "from M import Item"; empty for plain import
	Loc    Location
}

type ExprKind int

const (
	ExprName ExprKind = iota
	ExprAttribute
	ExprCall
	ExprBinOp
	ExprCompare
	ExprSubscript
	ExprTuple
	ExprList
	ExprYield
	ExprIntLit
	ExprFloatLit
	ExprStrLit
	ExprBoolLit
	ExprNoneLit
)

type Expr struct {
	Kind ExprKind
	Loc  Location

	Name  string // ExprName: identifier; ExprAttribute: attribute name; ExprBinOp/ExprCompare: operator
	Value *Expr  // ExprAttribute: object; ExprYield: yielded value (may be nil); ExprSubscript: object
	Left  *Expr
	Right *Expr
	Func  *Expr
	Args  []*Expr
	Elts  []*Expr // ExprTuple / ExprList; ExprSubscript: index expressions

	IntVal   int64
	FloatVal float64
	StrVal   string
	BoolVal  bool
}

// Walk calls fn for every statement in the body, recursing into nested
// bodies. fn returning false prunes the subtree.
func Walk(body []*Stmt, fn func(*Stmt) bool) {
	for _, s := range body {
		if !fn(s) {
			continue
		}
		Walk(s.Body, fn)
		Walk(s.Else, fn)
	}
}

// ContainsYield reports whether a function body suspends. Nested function
// bodies are not inspected: a yield inside a nested def belongs to that def.
func ContainsYield(body []*Stmt) bool {
	for _, s := range body {
		if s.Kind == StmtFuncDef {
			continue
		}
		if stmtHasYield(s) {
			return true
		}
		if ContainsYield(s.Body) || ContainsYield(s.Else) {
			return true
		}
	}
	return false
}

func stmtHasYield(s *Stmt) bool {
	for _, e := range []*Expr{s.Value, s.Cond, s.Iter, s.Annotation} {
		if exprHasYield(e) {
			return true
		}
	}
	for _, e := range s.Targets {
		if exprHasYield(e) {
			return true
		}
	}
	return false
}

func exprHasYield(e *Expr) bool {
	if e == nil {
		return false
	}
	if e.Kind == ExprYield {
		return true
	}
	for _, sub := range []*Expr{e.Value, e.Left, e.Right, e.Func} {
		if exprHasYield(sub) {
			return true
		}
	}
	for _, sub := range e.Args {
		if exprHasYield(sub) {
			return true
		}
	}
	for _, sub := range e.Elts {
		if exprHasYield(sub) {
			return true
		}
	}
	return false
}
