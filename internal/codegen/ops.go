// # internal/codegen/ops.go
package codegen

import (
	"fmt"
	"strings"

	"pyrite/internal/ir"
)

func fieldRef(base string, i int) string {
	return fmt.Sprintf("%s.f%d", base, i)
}

// nativeClassName mangles a compiled class into its emitted type symbol.
func nativeClassName(cls *ir.ClassIR) string {
	return "Pyr_" + strings.ReplaceAll(cls.Module, ".", "_") + "_" + cls.Name
}

// EmitErrorCheck tests a just-computed value against its representation's
// error convention and applies the failure policy. Overlapping sentinels
// additionally require a pending exception, since the bit pattern alone
// is a legal value.
func (e *Emitter) EmitErrorCheck(value string, typ *ir.RType, h FailureHandler) {
	if typ.Kind == ir.RKindVoid {
		return
	}
	cond := errorCond(value, typ)
	if typ.ErrorOverlap {
		cond = fmt.Sprintf("%s && PyrErr_Occurred()", cond)
	}
	e.Line("if (unlikely(%s)) {", cond)
	e.Indent()
	e.emitFailure(h, typ)
	e.Dedent()
	e.Line("}")
}

// errorCond builds the sentinel comparison. The assign policy sets every
// tuple element to its sentinel, so any field can discriminate; the first
// member without error overlap is chosen so the comparison stands alone.
// Only when every member overlaps does element 0 serve, and the tuple
// itself then carries the overlap flag that forces the exception conjunct.
// The empty tuple tests its dedicated flag.
func errorCond(value string, typ *ir.RType) string {
	if typ.Kind == ir.RKindTuple {
		if len(typ.Elems) == 0 {
			return fmt.Sprintf("%s.%s == %s", value, ErrFlagField, ErrFlagValue)
		}
		idx := 0
		for i, elem := range typ.Elems {
			if !elem.ErrorOverlap {
				idx = i
				break
			}
		}
		return errorCond(fieldRef(value, idx), typ.Elems[idx])
	}
	return fmt.Sprintf("%s == %s", value, typ.ErrorValue)
}

// EmitBox converts an unboxed value into a fresh object reference. Boxing
// cannot fail for the representations that have an unboxed form, so no
// handler is taken.
func (e *Emitter) EmitBox(src, dest string, typ *ir.RType) {
	switch {
	case typ.IsTagged():
		e.Line("%s = PyrTagged_StealAsObject(%s);", dest, src)
	case typ == ir.Bool:
		e.Line("%s = PyrBool_FromChar(%s);", dest, src)
	case typ == ir.I64:
		e.Line("%s = PyrLong_FromInt64(%s);", dest, src)
	case typ == ir.Float:
		e.Line("%s = PyrFloat_FromDouble(%s);", dest, src)
	case typ.Kind == ir.RKindTuple:
		e.Line("%s = PyrTuple_New(%d);", dest, len(typ.Elems))
		for i, elem := range typ.Elems {
			field := fieldRef(src, i)
			if elem.Boxed {
				e.Line("PYR_INC_REF(%s);", field)
				e.Line("PyrTuple_SetItem(%s, %d, %s);", dest, i, field)
				continue
			}
			tmp := e.Ctx.Temp()
			e.Declare(tmp, ir.Object)
			e.EmitBox(field, tmp, elem)
			e.Line("PyrTuple_SetItem(%s, %d, %s);", dest, i, tmp)
		}
	default:
		e.Line("%s = %s;", dest, src)
	}
}

// EmitUnbox converts a boxed value into the requested unboxed
// representation. The conversion is strict: a wrong payload type applies
// the failure policy and produces the target's sentinel, never a
// coercion.
func (e *Emitter) EmitUnbox(src, dest string, typ *ir.RType, h FailureHandler) {
	if typ.Kind == ir.RKindTuple {
		e.emitUnboxTuple(src, dest, typ, h)
		return
	}
	e.Line("if (likely(%s)) {", boxedCheck(src, typ))
	e.Indent()
	e.Line("%s = %s;", dest, unboxExpr(src, typ))
	e.Dedent()
	e.Line("} else {")
	e.Indent()
	e.Line("PyrErr_SetTypeError(\"%s\", %s);", typ.Name, src)
	e.emitFailure(h, typ)
	e.Dedent()
	e.Line("}")
}

func (e *Emitter) emitUnboxTuple(src, dest string, typ *ir.RType, h FailureHandler) {
	e.Ctx.DeclareTupleStruct(typ)
	e.Line("if (likely(PyrTuple_Check(%s) && PyrTuple_Size(%s) == %d)) {", src, src, len(typ.Elems))
	e.Indent()
	for i, elem := range typ.Elems {
		item := fmt.Sprintf("PyrTuple_GetItem(%s, %d)", src, i)
		if elem.Boxed {
			e.Line("%s = %s;", fieldRef(dest, i), item)
			e.Line("PYR_INC_REF(%s);", fieldRef(dest, i))
			continue
		}
		tmp := e.Ctx.Temp()
		e.Declare(tmp, ir.Object)
		e.Line("%s = %s;", tmp, item)
		e.EmitUnbox(tmp, fieldRef(dest, i), elem, AssignTo(fieldRef(dest, i)))
	}
	e.Dedent()
	e.Line("} else {")
	e.Indent()
	e.Line("PyrErr_SetTypeError(\"%s\", %s);", typ.Name, src)
	e.emitFailure(h, typ)
	e.Dedent()
	e.Line("}")
}

func unboxExpr(src string, typ *ir.RType) string {
	switch {
	case typ.IsTagged():
		return fmt.Sprintf("PyrTagged_FromObject(%s)", src)
	case typ == ir.Bool:
		return fmt.Sprintf("PyrBool_AsChar(%s)", src)
	case typ == ir.I64:
		return fmt.Sprintf("PyrLong_AsInt64(%s)", src)
	case typ == ir.Float:
		return fmt.Sprintf("PyrFloat_AsDouble(%s)", src)
	}
	return src
}

// EmitCast checks that a boxed value conforms to a boxed target without
// converting its representation. Union targets try each member in order;
// exactly one failure policy fires when no member matches.
func (e *Emitter) EmitCast(src, dest string, typ *ir.RType, h FailureHandler, likely bool) {
	if typ.Kind == ir.RKindUnion {
		for i, item := range typ.Items {
			keyword := "if"
			if i > 0 {
				keyword = "} else if"
			}
			e.Line("%s (%s) {", keyword, boxedCheck(src, item))
			e.Indent()
			e.Line("%s = %s;", dest, src)
			e.Dedent()
		}
		e.Line("} else {")
		e.Indent()
		e.Line("PyrErr_SetTypeError(\"%s\", %s);", typ.Name, src)
		e.emitFailure(h, typ)
		e.Dedent()
		e.Line("}")
		return
	}
	cond := boxedCheck(src, typ)
	if likely {
		cond = fmt.Sprintf("likely(%s)", cond)
	}
	e.Line("if (%s) {", cond)
	e.Indent()
	e.Line("%s = %s;", dest, src)
	e.Dedent()
	e.Line("} else {")
	e.Indent()
	e.Line("PyrErr_SetTypeError(\"%s\", %s);", typ.Name, src)
	e.emitFailure(h, typ)
	e.Dedent()
	e.Line("}")
}

// boxedCheck builds the runtime type test for a boxed representation.
// Instance checks with a small closed set of concrete subclasses compile
// to direct type-tag comparisons instead of the generic subtype walk.
func boxedCheck(src string, typ *ir.RType) string {
	switch typ.Kind {
	case ir.RKindInstance:
		subs := typ.Class.ConcreteSubclasses()
		if len(subs) <= FastIsinstanceMaxSubclasses {
			parts := make([]string, len(subs))
			for i, cls := range subs {
				parts[i] = fmt.Sprintf("PYR_TYPE_TAG(%s) == %d", src, cls.TypeTag)
			}
			return strings.Join(parts, " || ")
		}
		return fmt.Sprintf("PyrInstance_Check(%s, &%s_type)", src, nativeClassName(typ.Class))
	case ir.RKindUnion:
		parts := make([]string, len(typ.Items))
		for i, item := range typ.Items {
			parts[i] = boxedCheck(src, item)
		}
		return strings.Join(parts, " || ")
	}
	switch typ {
	case ir.Object:
		return "1"
	case ir.Int:
		return fmt.Sprintf("PyrTagged_CheckObject(%s)", src)
	case ir.Bool:
		return fmt.Sprintf("PyrBool_Check(%s)", src)
	case ir.Float:
		return fmt.Sprintf("PyrFloat_Check(%s)", src)
	case ir.Str:
		return fmt.Sprintf("PyrStr_Check(%s)", src)
	case ir.List:
		return fmt.Sprintf("PyrList_Check(%s)", src)
	case ir.Dict:
		return fmt.Sprintf("PyrDict_Check(%s)", src)
	case ir.None:
		return fmt.Sprintf("%s == Pyr_None", src)
	}
	return fmt.Sprintf("PyrObject_TypeCheck(%s, \"%s\")", src, typ.Name)
}

// EmitIncRef takes a reference, descending structurally into tuple
// fields. Tagged integers branch on the pointer bit inside the macro;
// unboxed non-refcounted values emit nothing.
func (e *Emitter) EmitIncRef(target string, typ *ir.RType) {
	if !typ.Refcounted {
		return
	}
	switch {
	case typ.Kind == ir.RKindTuple:
		for i, elem := range typ.Elems {
			e.EmitIncRef(fieldRef(target, i), elem)
		}
	case typ.IsTagged():
		e.Line("PYR_INC_REF_TAGGED(%s);", target)
	default:
		e.Line("PYR_INC_REF(%s);", target)
	}
}

// EmitDecRef releases a reference with the same structure as EmitIncRef.
func (e *Emitter) EmitDecRef(target string, typ *ir.RType) {
	if !typ.Refcounted {
		return
	}
	switch {
	case typ.Kind == ir.RKindTuple:
		for i, elem := range typ.Elems {
			e.EmitDecRef(fieldRef(target, i), elem)
		}
	case typ.IsTagged():
		e.Line("PYR_DEC_REF_TAGGED(%s);", target)
	default:
		e.Line("PYR_DEC_REF(%s);", target)
	}
}
