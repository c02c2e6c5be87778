// # internal/codegen/handlers.go
package codegen

import "pyrite/internal/ir"

// HandlerKind closes the set of failure policies an emitted check can
// apply. Exactly one policy fires per failed operation, no matter how
// many sub-checks the operation expands to.
type HandlerKind int

const (
	// HandlerAssign writes the target type's error sentinel into a
	// destination variable and falls through.
	HandlerAssign HandlerKind = iota
	// HandlerGoto jumps to an error label.
	HandlerGoto
	// HandlerTracebackGoto appends a traceback entry, then jumps.
	HandlerTracebackGoto
	// HandlerReturn returns a fixed error value from the function.
	HandlerReturn
)

// FailureHandler is one concrete policy. Fields are meaningful per kind;
// constructors keep call sites honest.
type FailureHandler struct {
	Kind HandlerKind

	Dest     string // HandlerAssign
	Label    string // HandlerGoto, HandlerTracebackGoto
	Source   string // HandlerTracebackGoto: "module:function" for the traceback entry
	RetValue string // HandlerReturn
}

func AssignTo(dest string) FailureHandler {
	return FailureHandler{Kind: HandlerAssign, Dest: dest}
}

func GotoLabel(label string) FailureHandler {
	return FailureHandler{Kind: HandlerGoto, Label: label}
}

func TracebackAndGoto(source, label string) FailureHandler {
	return FailureHandler{Kind: HandlerTracebackGoto, Source: source, Label: label}
}

func ReturnValue(value string) FailureHandler {
	return FailureHandler{Kind: HandlerReturn, RetValue: value}
}

// emitFailure writes the handler body. typ is the representation of the
// failed operation's destination, needed by the assign policy to pick
// the sentinel.
func (e *Emitter) emitFailure(h FailureHandler, typ *ir.RType) {
	switch h.Kind {
	case HandlerAssign:
		e.emitAssignError(h.Dest, typ)
	case HandlerGoto:
		e.Line("goto %s;", h.Label)
	case HandlerTracebackGoto:
		e.Line("PyrTraceback_Append(\"%s\");", h.Source)
		e.Line("goto %s;", h.Label)
	case HandlerReturn:
		e.Line("return %s;", h.RetValue)
	}
}

// emitAssignError writes the error sentinel of a representation into a
// variable. Tuples assign field by field; the empty tuple sets its flag.
func (e *Emitter) emitAssignError(dest string, typ *ir.RType) {
	if typ.Kind == ir.RKindTuple {
		if len(typ.Elems) == 0 {
			e.Line("%s.%s = %s;", dest, ErrFlagField, ErrFlagValue)
			return
		}
		for i, elem := range typ.Elems {
			e.emitAssignError(fieldRef(dest, i), elem)
		}
		return
	}
	e.Line("%s = %s;", dest, typ.ErrorValue)
}
