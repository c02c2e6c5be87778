package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pyrite/internal/ir"
)

func countdownFunc() *ir.FuncIR {
	return &ir.FuncIR{
		Name:        "countdown",
		Module:      "m",
		Params:      []ir.ParamIR{{Name: "n", Type: ir.Int}},
		Ret:         ir.Object,
		IsGenerator: true,
		YieldTypes:  []*ir.RType{ir.Int, ir.Int},
	}
}

func TestGeneratorClassLayout(t *testing.T) {
	fn := countdownFunc()
	out := EmitGeneratorClass(NewEmitterContext(), fn, []ir.ParamIR{{Name: "current", Type: ir.Int}})

	assert.Contains(t, out, "typedef struct Pyr_m_countdown_gen {")
	assert.Contains(t, out, "int32_t label;")
	assert.Contains(t, out, "PyrTagged n;")
	assert.Contains(t, out, "PyrTagged current;")
}

func TestGeneratorWrappersShareHelper(t *testing.T) {
	out := EmitGeneratorClass(NewEmitterContext(), countdownFunc(), nil)

	// next and send differ only in the resumed value; throw passes the
	// exception triple; close throws GeneratorExit.
	assert.Contains(t, out, "return Pyr_m_countdown_gen_helper(self, NULL, NULL, NULL, Pyr_None);")
	assert.Contains(t, out, "return Pyr_m_countdown_gen_helper(self, NULL, NULL, NULL, arg);")
	assert.Contains(t, out, "return Pyr_m_countdown_gen_helper(self, type, value, traceback, NULL);")
	assert.Contains(t, out, "Pyr_m_countdown_gen_helper(self, Pyr_GeneratorExit, NULL, NULL, NULL);")
	assert.Contains(t, out, "generator ignored GeneratorExit")
}

func TestResumeSwitchCoversAllLabels(t *testing.T) {
	e := newTestEmitter()
	EmitResumeSwitch(e, countdownFunc())
	out := e.Result()

	assert.Contains(t, out, "case 0: goto PyrG_start;")
	assert.Contains(t, out, "case 1: goto PyrG_resume1;")
	assert.Contains(t, out, "case 2: goto PyrG_resume2;")
	// labels past the last suspension point are terminal
	assert.Contains(t, out, "PyrErr_SetNone(Pyr_StopIteration);")
}

func TestEmitYieldBoxesUnboxedValues(t *testing.T) {
	e := newTestEmitter()
	EmitYield(e, 1, "current", ir.Int)
	out := e.Result()

	assert.Contains(t, out, "self->label = 1;")
	assert.Contains(t, out, "PyrTagged_StealAsObject(current)")
	assert.Contains(t, out, "PyrG_resume1:")
	assert.Contains(t, out, "PyrErr_Restore(type, value, traceback);")
}
