package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrite/internal/ir"
)

func newTestEmitter() *Emitter {
	return NewEmitter(NewEmitterContext())
}

func TestErrorCheckNonOverlapping(t *testing.T) {
	e := newTestEmitter()
	e.EmitErrorCheck("res", ir.Str, GotoLabel("PyrL1"))
	out := e.Result()

	assert.Contains(t, out, "if (unlikely(res == NULL)) {")
	assert.Contains(t, out, "goto PyrL1;")
	assert.NotContains(t, out, "PyrErr_Occurred")
}

func TestErrorCheckOverlapAddsPendingConjunct(t *testing.T) {
	e := newTestEmitter()
	e.EmitErrorCheck("res", ir.I64, ReturnValue("-113"))
	out := e.Result()

	assert.Contains(t, out, "res == -113 && PyrErr_Occurred()")
	assert.Contains(t, out, "return -113;")

	e = newTestEmitter()
	e.EmitErrorCheck("f", ir.Float, GotoLabel("PyrL2"))
	assert.Contains(t, e.Result(), "f == -113.0 && PyrErr_Occurred()")
}

func TestErrorCheckTupleDiscriminator(t *testing.T) {
	e := newTestEmitter()
	e.EmitErrorCheck("pair", ir.Tuple(ir.Int, ir.Str), GotoLabel("PyrL1"))
	assert.Contains(t, e.Result(), "pair.f0 == PYR_INT_TAG")

	// An overlapping first member cannot discriminate on its own:
	// (-113.0, x) is a legal value. The bool field has a free sentinel,
	// so the check moves there and needs no exception conjunct.
	e = newTestEmitter()
	e.EmitErrorCheck("pair", ir.Tuple(ir.Float, ir.Bool), GotoLabel("PyrL1"))
	out := e.Result()
	assert.Contains(t, out, "pair.f1 == 2")
	assert.NotContains(t, out, "pair.f0")
	assert.NotContains(t, out, "PyrErr_Occurred")

	// When every member overlaps, element 0 serves and the tuple's own
	// overlap flag forces the exception conjunct.
	e = newTestEmitter()
	e.EmitErrorCheck("pair", ir.Tuple(ir.I64, ir.Float), GotoLabel("PyrL1"))
	assert.Contains(t, e.Result(), "pair.f0 == -113 && PyrErr_Occurred()")
}

func TestErrorCheckEmptyTupleFlag(t *testing.T) {
	e := newTestEmitter()
	e.EmitErrorCheck("unit", ir.Tuple(), GotoLabel("PyrL1"))
	assert.Contains(t, e.Result(), "unit.empty_struct_error_flag == PYR_ERR_FLAG")
}

func TestErrorCheckVoidEmitsNothing(t *testing.T) {
	e := newTestEmitter()
	e.EmitErrorCheck("x", ir.Void, GotoLabel("PyrL1"))
	assert.Equal(t, "\n", e.Result())
}

func TestCastUnionTriesEachMemberOnce(t *testing.T) {
	e := newTestEmitter()
	e.EmitCast("src", "dst", ir.Union(ir.Int, ir.Str), GotoLabel("PyrErr"), false)
	out := e.Result()

	assert.Contains(t, out, "if (PyrTagged_CheckObject(src)) {")
	assert.Contains(t, out, "} else if (PyrStr_Check(src)) {")
	// the failure policy fires exactly once, after all members miss
	assert.Equal(t, 1, strings.Count(out, "goto PyrErr;"))
	assert.Equal(t, 1, strings.Count(out, "PyrErr_SetTypeError"))
}

func TestCastUnionIntFloat(t *testing.T) {
	e := newTestEmitter()
	e.EmitCast("v", "out", ir.Union(ir.Int, ir.Float), AssignTo("out"), false)
	out := e.Result()

	assert.Contains(t, out, "PyrTagged_CheckObject(v)")
	assert.Contains(t, out, "PyrFloat_Check(v)")
	assert.Contains(t, out, "out = NULL;")
}

func TestCastLikelyWrapsCondition(t *testing.T) {
	e := newTestEmitter()
	e.EmitCast("v", "s", ir.Str, GotoLabel("PyrL9"), true)
	assert.Contains(t, e.Result(), "if (likely(PyrStr_Check(v))) {")
}

func TestCastFastIsinstance(t *testing.T) {
	base := ir.NewClassIR("m", "Node", nil)
	leaf := ir.NewClassIR("m", "Leaf", base)
	base.TypeTag = 7
	leaf.TypeTag = 8

	e := newTestEmitter()
	e.EmitCast("v", "n", ir.Instance(base), GotoLabel("PyrL1"), false)
	out := e.Result()
	assert.Contains(t, out, "PYR_TYPE_TAG(v) == 7 || PYR_TYPE_TAG(v) == 8")
	assert.NotContains(t, out, "PyrInstance_Check")
}

func TestCastWideHierarchyFallsBack(t *testing.T) {
	base := ir.NewClassIR("pkg.mod", "Base", nil)
	ir.NewClassIR("pkg.mod", "A", base)
	ir.NewClassIR("pkg.mod", "B", base)

	e := newTestEmitter()
	e.EmitCast("v", "b", ir.Instance(base), GotoLabel("PyrL1"), false)
	assert.Contains(t, e.Result(), "PyrInstance_Check(v, &Pyr_pkg_mod_Base_type)")
}

func TestUnboxStrictWithAssignPolicy(t *testing.T) {
	e := newTestEmitter()
	e.EmitUnbox("obj", "n", ir.Int, AssignTo("n"))
	out := e.Result()

	assert.Contains(t, out, "if (likely(PyrTagged_CheckObject(obj))) {")
	assert.Contains(t, out, "n = PyrTagged_FromObject(obj);")
	assert.Contains(t, out, "n = PYR_INT_TAG;")
	assert.Contains(t, out, "PyrErr_SetTypeError")
}

func TestUnboxTupleFieldByField(t *testing.T) {
	e := newTestEmitter()
	tt := ir.Tuple(ir.Int, ir.Str)
	e.EmitUnbox("obj", "pair", tt, GotoLabel("PyrL3"))
	out := e.Result()

	assert.Contains(t, out, "PyrTuple_Check(obj) && PyrTuple_Size(obj) == 2")
	assert.Contains(t, out, "pair.f1 = PyrTuple_GetItem(obj, 1);")
	assert.Contains(t, out, "goto PyrL3;")
}

func TestBoxTaggedAndTuple(t *testing.T) {
	e := newTestEmitter()
	e.EmitBox("n", "obj", ir.Int)
	assert.Contains(t, e.Result(), "obj = PyrTagged_StealAsObject(n);")

	e = newTestEmitter()
	e.EmitBox("pair", "obj", ir.Tuple(ir.Bool, ir.Str))
	out := e.Result()
	assert.Contains(t, out, "obj = PyrTuple_New(2);")
	assert.Contains(t, out, "PyrBool_FromChar(pair.f0)")
	assert.Contains(t, out, "PyrTuple_SetItem(obj, 1, pair.f1);")
}

func TestIncRefStructural(t *testing.T) {
	e := newTestEmitter()
	tt := ir.Tuple(ir.Str, ir.Bool, ir.Int)
	e.EmitIncRef("v", tt)
	out := e.Result()

	assert.Contains(t, out, "PYR_INC_REF(v.f0);")
	assert.NotContains(t, out, "v.f1", "non-refcounted fields emit nothing")
	assert.Contains(t, out, "PYR_INC_REF_TAGGED(v.f2);")
}

func TestDecRefSkipsUnboxedScalars(t *testing.T) {
	e := newTestEmitter()
	e.EmitDecRef("x", ir.I64)
	e.EmitDecRef("f", ir.Float)
	assert.Equal(t, "\n", e.Result())

	e = newTestEmitter()
	e.EmitDecRef("s", ir.Str)
	assert.Contains(t, e.Result(), "PYR_DEC_REF(s);")
}

func TestTupleStructDeclarationOrder(t *testing.T) {
	ctx := NewEmitterContext()
	inner := ir.Tuple(ir.Bool, ir.Bool)
	outer := ir.Tuple(ir.Int, inner)
	ctx.DeclareTupleStruct(outer)
	ctx.DeclareTupleStruct(outer) // second registration is a no-op

	decls := ctx.TupleStructDecls()
	assert.Equal(t, 1, strings.Count(decls, "typedef struct "+outer.TupleStruct))
	require.Less(t, strings.Index(decls, inner.TupleStruct), strings.Index(decls, outer.TupleStruct),
		"nested struct must be declared before its container")
}

func TestEmptyTupleStructHasFlagField(t *testing.T) {
	ctx := NewEmitterContext()
	ctx.DeclareTupleStruct(ir.Tuple())
	assert.Contains(t, ctx.TupleStructDecls(), "int64_t empty_struct_error_flag;")
}

func TestTaggedBinaryFastPath(t *testing.T) {
	e := newTestEmitter()
	require.NoError(t, e.EmitTaggedBinary("+", "a", "b", "c", GotoLabel("PyrL1")))
	out := e.Result()

	assert.Contains(t, out, "PYR_IS_SHORT(a) && PYR_IS_SHORT(b)")
	assert.Contains(t, out, "c = a + b;")
	assert.Contains(t, out, "c = PyrTagged_Add(a, b);")
	assert.NotContains(t, out, "goto PyrL1;", "addition cannot fail")
}

func TestTaggedDivisionChecksError(t *testing.T) {
	e := newTestEmitter()
	require.NoError(t, e.EmitTaggedBinary("//", "a", "b", "q", GotoLabel("PyrL2")))
	out := e.Result()

	assert.Contains(t, out, "q = PyrTagged_FloorDivide(a, b);")
	assert.Contains(t, out, "q == PYR_INT_TAG")
	assert.Contains(t, out, "goto PyrL2;")
}

func TestTaggedUnknownOperator(t *testing.T) {
	e := newTestEmitter()
	err := e.EmitTaggedBinary("**", "a", "b", "c", GotoLabel("PyrL1"))
	assert.Error(t, err)
}

func TestTaggedCompare(t *testing.T) {
	e := newTestEmitter()
	require.NoError(t, e.EmitTaggedCompare("<", "a", "b", "lt"))
	out := e.Result()
	assert.Contains(t, out, "lt = a < b;")
	assert.Contains(t, out, "lt = PyrTagged_IsLt(a, b);")
}
