// # internal/codegen/genclass.go
package codegen

import (
	"fmt"
	"strings"

	"pyrite/internal/ir"
)

// Generator functions compile to a class holding the saved environment
// and a resume label. The original function body moves into a single
// helper; __next__, send, throw and close are thin wrappers that differ
// only in the arguments they hand to the helper.

// EmitGeneratorClass writes the environment struct and the method
// wrappers for one generator function.
func EmitGeneratorClass(ctx *EmitterContext, fn *ir.FuncIR, locals []ir.ParamIR) string {
	e := NewEmitter(ctx)
	name := generatorClassName(fn)

	e.Line("typedef struct %s {", name)
	e.Indent()
	e.Line("PyrObject_HEAD")
	e.Line("int32_t label;")
	for _, p := range fn.Params {
		e.Line("%s %s;", ctype(p.Type), p.Name)
	}
	for _, l := range locals {
		e.Line("%s %s;", ctype(l.Type), l.Name)
	}
	e.Dedent()
	e.Line("} %s;", name)
	e.Line("")

	helper := name + "_helper"
	// The helper receives the exception triple: type, value and traceback
	// of a throw(), or nulls for a plain resume, plus the value sent in.
	e.Line("static PyrObject *%s(%s *self, PyrObject *type, PyrObject *value,", helper, name)
	e.Line("                     PyrObject *traceback, PyrObject *arg);")
	e.Line("")

	e.Line("static PyrObject *%s___next__(%s *self) {", name, name)
	e.Indent()
	e.Line("return %s(self, NULL, NULL, NULL, Pyr_None);", helper)
	e.Dedent()
	e.Line("}")
	e.Line("")

	e.Line("static PyrObject *%s_send(%s *self, PyrObject *arg) {", name, name)
	e.Indent()
	e.Line("return %s(self, NULL, NULL, NULL, arg);", helper)
	e.Dedent()
	e.Line("}")
	e.Line("")

	e.Line("static PyrObject *%s_throw(%s *self, PyrObject *type,", name, name)
	e.Line("                           PyrObject *value, PyrObject *traceback) {")
	e.Indent()
	e.Line("return %s(self, type, value, traceback, NULL);", helper)
	e.Dedent()
	e.Line("}")
	e.Line("")

	// close() throws GeneratorExit into the frame. A generator that
	// swallows it and yields again is a protocol violation.
	e.Line("static PyrObject *%s_close(%s *self) {", name, name)
	e.Indent()
	e.Line("PyrObject *res = %s(self, Pyr_GeneratorExit, NULL, NULL, NULL);", helper)
	e.Line("if (res != NULL) {")
	e.Indent()
	e.Line("PYR_DEC_REF(res);")
	e.Line("PyrErr_SetString(Pyr_RuntimeError, \"generator ignored GeneratorExit\");")
	e.Line("return NULL;")
	e.Dedent()
	e.Line("}")
	e.Line("if (PyrErr_Matches(Pyr_GeneratorExit) || PyrErr_Matches(Pyr_StopIteration)) {")
	e.Indent()
	e.Line("PyrErr_Clear();")
	e.Line("Pyr_RETURN_NONE;")
	e.Dedent()
	e.Line("}")
	e.Line("return NULL;")
	e.Dedent()
	e.Line("}")

	return e.Result()
}

func generatorClassName(fn *ir.FuncIR) string {
	parts := []string{"Pyr", strings.ReplaceAll(fn.Module, ".", "_")}
	if fn.Class != "" {
		parts = append(parts, fn.Class)
	}
	parts = append(parts, fn.Name+"_gen")
	return strings.Join(parts, "_")
}

// EmitResumeSwitch writes the dispatch at the top of the helper: every
// suspension point gets a label, 0 is the fresh frame and the terminal
// label raises StopIteration forever after.
func EmitResumeSwitch(e *Emitter, fn *ir.FuncIR) {
	e.Line("switch (self->label) {")
	e.Line("case 0: goto PyrG_start;")
	for i := range fn.YieldTypes {
		e.Line("case %d: goto PyrG_resume%d;", i+1, i+1)
	}
	e.Line("default:")
	e.Indent()
	e.Line("PyrErr_SetNone(Pyr_StopIteration);")
	e.Line("return NULL;")
	e.Dedent()
	e.Line("}")
}

// EmitYield writes one suspension point: store the label, box the yielded
// value if needed, return it, and place the resume label right after.
func EmitYield(e *Emitter, index int, value string, typ *ir.RType) {
	e.Line("self->label = %d;", index)
	if typ != nil && !typ.Boxed {
		tmp := e.Ctx.Temp()
		e.Declare(tmp, ir.Object)
		e.EmitBox(value, tmp, typ)
		value = tmp
	}
	e.Line("return %s;", value)
	e.EmitLabel(fmt.Sprintf("PyrG_resume%d", index))
	// A throw() resumes here with the triple set; re-raise in the frame.
	e.Line("if (type != NULL) {")
	e.Indent()
	e.Line("PyrErr_Restore(type, value, traceback);")
	e.Line("goto PyrG_error;")
	e.Dedent()
	e.Line("}")
}
