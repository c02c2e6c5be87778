// # internal/codegen/emitter.go
package codegen

import (
	"fmt"
	"strings"

	"pyrite/internal/ir"
	"pyrite/internal/shared/observability"
)

// Lowered-code naming constants. Everything the emitter produces is
// prefixed to keep generated identifiers out of the user's namespace.
const (
	// ErrFlagField carries the error sentinel of the empty tuple, which
	// has no element to overwrite.
	ErrFlagField = "empty_struct_error_flag"
	ErrFlagValue = "PYR_ERR_FLAG"

	// FastIsinstanceMaxSubclasses bounds how many concrete subclasses an
	// instance check may have before the cast falls back to the generic
	// runtime call instead of direct type-tag comparisons.
	FastIsinstanceMaxSubclasses = 2
)

// EmitterContext is shared across all emitters of one compilation unit:
// fresh-name counters and the set of tuple struct types that need a
// declaration in the module prologue.
type EmitterContext struct {
	tempCounter  int
	labelCounter int

	tupleStructs []*ir.RType
	declared     map[string]bool
}

func NewEmitterContext() *EmitterContext {
	return &EmitterContext{declared: make(map[string]bool)}
}

// Temp returns a fresh variable name.
func (c *EmitterContext) Temp() string {
	c.tempCounter++
	return fmt.Sprintf("tmp%d", c.tempCounter)
}

// Label returns a fresh jump label.
func (c *EmitterContext) Label() string {
	c.labelCounter++
	return fmt.Sprintf("PyrL%d", c.labelCounter)
}

// DeclareTupleStruct records a tuple representation so its C struct is
// declared once in the prologue, recursing into nested tuple elements
// first so declarations appear in dependency order.
func (c *EmitterContext) DeclareTupleStruct(t *ir.RType) {
	if t.Kind != ir.RKindTuple || c.declared[t.TupleStruct] {
		return
	}
	for _, e := range t.Elems {
		c.DeclareTupleStruct(e)
	}
	c.declared[t.TupleStruct] = true
	c.tupleStructs = append(c.tupleStructs, t)
}

// TupleStructDecls renders the recorded tuple struct declarations.
func (c *EmitterContext) TupleStructDecls() string {
	var b strings.Builder
	for _, t := range c.tupleStructs {
		b.WriteString("typedef struct " + t.TupleStruct + " {\n")
		if len(t.Elems) == 0 {
			b.WriteString("    int64_t " + ErrFlagField + ";\n")
		}
		for i, e := range t.Elems {
			b.WriteString(fmt.Sprintf("    %s f%d;\n", ctype(e), i))
		}
		b.WriteString("} " + t.TupleStruct + ";\n")
	}
	return b.String()
}

// Emitter accumulates lowered C for one function body.
type Emitter struct {
	Ctx *EmitterContext

	lines  []string
	indent int
}

func NewEmitter(ctx *EmitterContext) *Emitter {
	return &Emitter{Ctx: ctx}
}

func (e *Emitter) Line(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	e.lines = append(e.lines, strings.Repeat("    ", e.indent)+line)
}

func (e *Emitter) EmitLabel(label string) {
	e.lines = append(e.lines, label+":")
}

func (e *Emitter) Indent() { e.indent++ }
func (e *Emitter) Dedent() { e.indent-- }

func (e *Emitter) Result() string {
	observability.CodegenLinesTotal.Add(float64(len(e.lines)))
	return strings.Join(e.lines, "\n") + "\n"
}

// Declare emits a local variable declaration for the given
// representation.
func (e *Emitter) Declare(name string, t *ir.RType) {
	e.Ctx.DeclareTupleStruct(t)
	e.Line("%s %s;", ctype(t), name)
}

func ctype(t *ir.RType) string {
	return t.CType
}
