// # internal/syntax/parse.go
package syntax

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"pyrite/internal/core/errors"
	"pyrite/internal/shared/observability"
	"pyrite/internal/shared/util"
)

// Parser turns Python source into the checker AST. It is a thin front end:
// everything interesting happens downstream in semanal and codegen.
type Parser struct {
	language *sitter.Language
}

func NewParser() *Parser {
	return &Parser{
		language: sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

// ParseFile parses one source file into a Module. moduleName is the fully
// qualified dotted name derived by the caller from the file's path.
func (p *Parser) ParseFile(path, moduleName string, content []byte) (*Module, error) {
	start := time.Now()

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.language); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "set grammar")
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		observability.ParsingDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, errors.New(errors.CodeParseError, "parse failed: "+path)
	}
	defer tree.Close()

	mod := &Module{
		Name:   moduleName,
		Path:   path,
		Digest: util.ContentDigest(content),
	}

	cv := &converter{source: content, path: path}
	mod.Body = cv.stmts(tree.RootNode())
	markUnreachable(mod.Body)

	observability.ParsingDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return mod, nil
}

// ModuleNameFromPath maps a file path below root to a dotted module name.
// package/__init__.py names the package itself.
func ModuleNameFromPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.TrimSuffix(rel, string(filepath.Separator)+"__init__")
	if rel == "__init__" {
		rel = filepath.Base(root)
	}
	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}

type converter struct {
	source []byte
	path   string
}

func (c *converter) text(node *sitter.Node) string {
	return string(c.source[node.StartByte():node.EndByte()])
}

func (c *converter) loc(node *sitter.Node) Location {
	return Location{
		File:   c.path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

func (c *converter) stmts(node *sitter.Node) []*Stmt {
	var out []*Stmt
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if s := c.stmt(child); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *converter) stmt(node *sitter.Node) *Stmt {
	switch node.Kind() {
	case "expression_statement":
		return c.expressionStatement(node)
	case "function_definition":
		return c.functionDef(node)
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			return c.stmt(def)
		}
		return nil
	case "class_definition":
		return c.classDef(node)
	case "import_statement":
		return c.importStmt(node)
	case "import_from_statement":
		return c.importFromStmt(node)
	case "if_statement":
		return c.ifStmt(node)
	case "while_statement":
		return &Stmt{
			Kind: StmtWhile,
			Loc:  c.loc(node),
			Cond: c.expr(node.ChildByFieldName("condition")),
			Body: c.block(node.ChildByFieldName("body")),
		}
	case "for_statement":
		s := &Stmt{
			Kind: StmtFor,
			Loc:  c.loc(node),
			Iter: c.expr(node.ChildByFieldName("right")),
			Body: c.block(node.ChildByFieldName("body")),
		}
		if left := c.expr(node.ChildByFieldName("left")); left != nil {
			s.Targets = []*Expr{left}
		}
		return s
	case "return_statement":
		s := &Stmt{Kind: StmtReturn, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			if e := c.expr(node.Child(i)); e != nil {
				s.Value = e
				break
			}
		}
		return s
	case "global_statement":
		s := &Stmt{Kind: StmtGlobal, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			if node.Child(i).Kind() == "identifier" {
				s.Names = append(s.Names, c.text(node.Child(i)))
			}
		}
		return s
	case "raise_statement":
		s := &Stmt{Kind: StmtRaise, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			if e := c.expr(node.Child(i)); e != nil {
				s.Value = e
				break
			}
		}
		return s
	case "pass_statement":
		return &Stmt{Kind: StmtPass, Loc: c.loc(node)}
	default:
		return nil
	}
}

func (c *converter) block(node *sitter.Node) []*Stmt {
	if node == nil {
		return nil
	}
	return c.stmts(node)
}

func (c *converter) expressionStatement(node *sitter.Node) *Stmt {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "assignment", "augmented_assignment":
			s := &Stmt{
				Kind:  StmtAssign,
				Loc:   c.loc(child),
				Value: c.expr(child.ChildByFieldName("right")),
			}
			if ann := child.ChildByFieldName("type"); ann != nil {
				s.Annotation = c.expr(ann)
			}
			if left := c.expr(child.ChildByFieldName("left")); left != nil {
				if left.Kind == ExprTuple {
					s.Targets = left.Elts
				} else {
					s.Targets = []*Expr{left}
				}
			}
			return s
		default:
			if e := c.expr(child); e != nil {
				return &Stmt{Kind: StmtExpr, Loc: c.loc(child), Value: e}
			}
		}
	}
	return nil
}

func (c *converter) functionDef(node *sitter.Node) *Stmt {
	s := &Stmt{
		Kind: StmtFuncDef,
		Loc:  c.loc(node),
		Name: c.fieldText(node, "name"),
		Body: c.block(node.ChildByFieldName("body")),
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		s.Returns = c.expr(ret)
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.ChildCount(); i++ {
			child := params.Child(i)
			switch child.Kind() {
			case "identifier":
				s.Params = append(s.Params, Param{Name: c.text(child), Loc: c.loc(child)})
			case "typed_parameter", "default_parameter", "typed_default_parameter":
				p := Param{Loc: c.loc(child)}
				for j := uint(0); j < child.ChildCount(); j++ {
					sub := child.Child(j)
					if sub.Kind() == "identifier" && p.Name == "" {
						p.Name = c.text(sub)
					}
				}
				if t := child.ChildByFieldName("type"); t != nil {
					p.Annotation = c.expr(t)
				}
				if d := child.ChildByFieldName("value"); d != nil {
					p.Default = c.expr(d)
				}
				if p.Name != "" {
					s.Params = append(s.Params, p)
				}
			}
		}
	}
	s.IsGenerator = ContainsYield(s.Body)
	return s
}

func (c *converter) classDef(node *sitter.Node) *Stmt {
	s := &Stmt{
		Kind: StmtClassDef,
		Loc:  c.loc(node),
		Name: c.fieldText(node, "name"),
		Body: c.block(node.ChildByFieldName("body")),
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.ChildCount(); i++ {
			if e := c.expr(supers.Child(i)); e != nil {
				s.Bases = append(s.Bases, e)
			}
		}
	}
	return s
}

func (c *converter) importStmt(node *sitter.Node) *Stmt {
	s := &Stmt{Kind: StmtImport, Loc: c.loc(node)}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name", "identifier":
			s.Imports = append(s.Imports, ImportClause{Module: c.text(child), Loc: c.loc(child)})
		case "aliased_import":
			var module, alias string
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub.Kind() == "dotted_name" || sub.Kind() == "identifier" {
					if module == "" {
						module = c.text(sub)
					} else {
						alias = c.text(sub)
					}
				}
			}
			s.Imports = append(s.Imports, ImportClause{Module: module, Alias: alias, Loc: c.loc(child)})
		}
	}
	return s
}

func (c *converter) importFromStmt(node *sitter.Node) *Stmt {
	s := &Stmt{Kind: StmtImportFrom, Loc: c.loc(node)}
	var module string
	sawImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "relative_import":
			module = strings.TrimLeft(c.text(child), ".")
		case "import":
			sawImport = true
		case "dotted_name", "identifier":
			if !sawImport && module == "" {
				module = c.text(child)
			} else {
				s.Imports = append(s.Imports, ImportClause{
					Module: module,
					Item:   c.text(child),
					Loc:    c.loc(child),
				})
			}
		case "aliased_import":
			var item, alias string
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				if sub.Kind() == "dotted_name" || sub.Kind() == "identifier" {
					if item == "" {
						item = c.text(sub)
					} else {
						alias = c.text(sub)
					}
				}
			}
			s.Imports = append(s.Imports, ImportClause{Module: module, Item: item, Alias: alias, Loc: c.loc(child)})
		case "wildcard_import":
			s.Imports = append(s.Imports, ImportClause{Module: module, Item: "*", Loc: c.loc(child)})
		}
	}
	// Backfill module for items parsed before the module name was seen.
	for i := range s.Imports {
		if s.Imports[i].Module == "" {
			s.Imports[i].Module = module
		}
	}
	return s
}

func (c *converter) ifStmt(node *sitter.Node) *Stmt {
	s := &Stmt{
		Kind: StmtIf,
		Loc:  c.loc(node),
		Cond: c.expr(node.ChildByFieldName("condition")),
		Body: c.block(node.ChildByFieldName("consequence")),
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "else_clause":
			s.Else = c.block(child.ChildByFieldName("body"))
		case "elif_clause":
			elif := &Stmt{
				Kind: StmtIf,
				Loc:  c.loc(child),
				Cond: c.expr(child.ChildByFieldName("condition")),
				Body: c.block(child.ChildByFieldName("consequence")),
			}
			s.Else = []*Stmt{elif}
		}
	}
	return s
}

func (c *converter) fieldText(node *sitter.Node, field string) string {
	if f := node.ChildByFieldName(field); f != nil {
		return c.text(f)
	}
	return ""
}

func (c *converter) expr(node *sitter.Node) *Expr {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "identifier":
		return &Expr{Kind: ExprName, Loc: c.loc(node), Name: c.text(node)}
	case "attribute":
		return &Expr{
			Kind:  ExprAttribute,
			Loc:   c.loc(node),
			Name:  c.fieldText(node, "attribute"),
			Value: c.expr(node.ChildByFieldName("object")),
		}
	case "call":
		e := &Expr{
			Kind: ExprCall,
			Loc:  c.loc(node),
			Func: c.expr(node.ChildByFieldName("function")),
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := uint(0); i < args.ChildCount(); i++ {
				if a := c.expr(args.Child(i)); a != nil {
					e.Args = append(e.Args, a)
				}
			}
		}
		return e
	case "binary_operator":
		return &Expr{
			Kind:  ExprBinOp,
			Loc:   c.loc(node),
			Name:  c.fieldText(node, "operator"),
			Left:  c.expr(node.ChildByFieldName("left")),
			Right: c.expr(node.ChildByFieldName("right")),
		}
	case "comparison_operator":
		e := &Expr{Kind: ExprCompare, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if sub := c.expr(child); sub != nil {
				if e.Left == nil {
					e.Left = sub
				} else {
					e.Right = sub
				}
			} else if e.Name == "" && !child.IsNamed() {
				e.Name = c.text(child)
			}
		}
		return e
	case "subscript":
		e := &Expr{
			Kind:  ExprSubscript,
			Loc:   c.loc(node),
			Value: c.expr(node.ChildByFieldName("value")),
		}
		seenValue := false
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			sub := c.expr(child)
			if sub == nil {
				continue
			}
			if !seenValue {
				// First expression child is the subscripted object itself.
				seenValue = true
				continue
			}
			e.Elts = append(e.Elts, sub)
		}
		return e
	case "tuple", "expression_list":
		e := &Expr{Kind: ExprTuple, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			if sub := c.expr(node.Child(i)); sub != nil {
				e.Elts = append(e.Elts, sub)
			}
		}
		return e
	case "list":
		e := &Expr{Kind: ExprList, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			if sub := c.expr(node.Child(i)); sub != nil {
				e.Elts = append(e.Elts, sub)
			}
		}
		return e
	case "parenthesized_expression":
		for i := uint(0); i < node.ChildCount(); i++ {
			if sub := c.expr(node.Child(i)); sub != nil {
				return sub
			}
		}
		return nil
	case "type":
		// Annotations arrive wrapped in a type node; unwrap to the
		// underlying expression.
		for i := uint(0); i < node.ChildCount(); i++ {
			if sub := c.expr(node.Child(i)); sub != nil {
				return sub
			}
		}
		return nil
	case "yield":
		e := &Expr{Kind: ExprYield, Loc: c.loc(node)}
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			// The leading keyword token is itself kinded "yield"; only
			// named children can be the operand.
			if !child.IsNamed() {
				continue
			}
			if sub := c.expr(child); sub != nil {
				e.Value = sub
				break
			}
		}
		return e
	case "integer":
		v, _ := strconv.ParseInt(c.text(node), 0, 64)
		return &Expr{Kind: ExprIntLit, Loc: c.loc(node), IntVal: v}
	case "float":
		v, _ := strconv.ParseFloat(c.text(node), 64)
		return &Expr{Kind: ExprFloatLit, Loc: c.loc(node), FloatVal: v}
	case "string":
		return &Expr{Kind: ExprStrLit, Loc: c.loc(node), StrVal: trimQuotes(c.text(node))}
	case "true":
		return &Expr{Kind: ExprBoolLit, Loc: c.loc(node), BoolVal: true}
	case "false":
		return &Expr{Kind: ExprBoolLit, Loc: c.loc(node), BoolVal: false}
	case "none":
		return &Expr{Kind: ExprNoneLit, Loc: c.loc(node)}
	default:
		return nil
	}
}

func trimQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// markUnreachable prunes branches guarded by statically false conditions
// before binding, so names defined under dead guards never bind.
func markUnreachable(body []*Stmt) {
	for _, s := range body {
		if s.Kind == StmtIf && s.Cond != nil {
			switch truth(s.Cond) {
			case truthFalse:
				markAll(s.Body)
			case truthTrue:
				markAll(s.Else)
			}
		}
		markUnreachable(s.Body)
		markUnreachable(s.Else)
	}
}

type truthValue int

const (
	truthUnknown truthValue = iota
	truthTrue
	truthFalse
)

func truth(e *Expr) truthValue {
	switch e.Kind {
	case ExprBoolLit:
		if e.BoolVal {
			return truthTrue
		}
		return truthFalse
	case ExprIntLit:
		if e.IntVal != 0 {
			return truthTrue
		}
		return truthFalse
	default:
		return truthUnknown
	}
}

func markAll(body []*Stmt) {
	for _, s := range body {
		s.Unreachable = true
		markAll(s.Body)
		markAll(s.Else)
	}
}
