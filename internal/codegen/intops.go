// # internal/codegen/intops.go
package codegen

import (
	"pyrite/internal/core/errors"
	"pyrite/internal/ir"
)

// taggedBinaryOps maps source operators onto the tagged-integer runtime.
// The runtime calls handle the small/heap split internally; only the
// operations that can actually fail carry an error convention.
var taggedBinaryOps = map[string]struct {
	call    string
	canFail bool
}{
	"+":  {"PyrTagged_Add", false},
	"-":  {"PyrTagged_Subtract", false},
	"*":  {"PyrTagged_Multiply", false},
	"//": {"PyrTagged_FloorDivide", true},
	"%":  {"PyrTagged_Remainder", true},
	">>": {"PyrTagged_Rshift", true},
	"<<": {"PyrTagged_Lshift", true},
	"&":  {"PyrTagged_And", false},
	"|":  {"PyrTagged_Or", false},
	"^":  {"PyrTagged_Xor", false},
}

var taggedCompareOps = map[string]string{
	"==": "PyrTagged_IsEq",
	"!=": "PyrTagged_IsNe",
	"<":  "PyrTagged_IsLt",
	"<=": "PyrTagged_IsLe",
	">":  "PyrTagged_IsGt",
	">=": "PyrTagged_IsGe",
}

// EmitTaggedBinary lowers a tagged-integer arithmetic operation. With
// both operands in the small range the C operator runs inline; otherwise
// the runtime call takes over, promoting to heap integers as needed.
func (e *Emitter) EmitTaggedBinary(op, lhs, rhs, dest string, h FailureHandler) error {
	entry, ok := taggedBinaryOps[op]
	if !ok {
		return errors.Newf(errors.CodeInternal, "no tagged lowering for operator %q", op)
	}
	switch op {
	case "+", "-":
		cop := op
		e.Line("if (likely(PYR_IS_SHORT(%s) && PYR_IS_SHORT(%s)", lhs, rhs)
		e.Line("        && !PYR_%s_OVERFLOWS(%s, %s))) {", opMacro(op), lhs, rhs)
		e.Indent()
		e.Line("%s = %s %s %s;", dest, lhs, cop, rhs)
		e.Dedent()
		e.Line("} else {")
		e.Indent()
		e.Line("%s = %s(%s, %s);", dest, entry.call, lhs, rhs)
		e.Dedent()
		e.Line("}")
	default:
		e.Line("%s = %s(%s, %s);", dest, entry.call, lhs, rhs)
	}
	if entry.canFail {
		e.EmitErrorCheck(dest, ir.Int, h)
	}
	return nil
}

func opMacro(op string) string {
	if op == "+" {
		return "ADD"
	}
	return "SUB"
}

// EmitTaggedCompare lowers a comparison to a bool char. Short operands
// compare directly as signed integers, which is valid because the tag
// bit is the low bit and shifting preserves order.
func (e *Emitter) EmitTaggedCompare(op, lhs, rhs, dest string) error {
	call, ok := taggedCompareOps[op]
	if !ok {
		return errors.Newf(errors.CodeInternal, "no tagged lowering for comparison %q", op)
	}
	e.Line("if (likely(PYR_IS_SHORT(%s) && PYR_IS_SHORT(%s))) {", lhs, rhs)
	e.Indent()
	e.Line("%s = %s %s %s;", dest, lhs, op, rhs)
	e.Dedent()
	e.Line("} else {")
	e.Indent()
	e.Line("%s = %s(%s, %s);", dest, call, lhs, rhs)
	e.Dedent()
	e.Line("}")
	return nil
}
