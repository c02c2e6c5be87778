package syntax

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) *Module {
	t.Helper()
	p := NewParser()
	mod, err := p.ParseFile("test.py", "test", []byte(src))
	require.NoError(t, err)
	return mod
}

func TestParseFile_Assignments(t *testing.T) {
	mod := parseSource(t, "x = 1\ny: int = 2\n")

	require.Len(t, mod.Body, 2)
	assert.Equal(t, StmtAssign, mod.Body[0].Kind)
	require.Len(t, mod.Body[0].Targets, 1)
	assert.Equal(t, "x", mod.Body[0].Targets[0].Name)
	assert.Equal(t, int64(1), mod.Body[0].Value.IntVal)

	assert.NotNil(t, mod.Body[1].Annotation)
	assert.Equal(t, "int", mod.Body[1].Annotation.Name)
}

func TestParseFile_FunctionDef(t *testing.T) {
	mod := parseSource(t, `
def add(a: int, b: int) -> int:
    return a + b
`)

	require.Len(t, mod.Body, 1)
	fn := mod.Body[0]
	assert.Equal(t, StmtFuncDef, fn.Kind)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "int", fn.Params[0].Annotation.Name)
	assert.Equal(t, "int", fn.Returns.Name)
	assert.False(t, fn.IsGenerator)

	require.Len(t, fn.Body, 1)
	assert.Equal(t, StmtReturn, fn.Body[0].Kind)
	assert.Equal(t, ExprBinOp, fn.Body[0].Value.Kind)
	assert.Equal(t, "+", fn.Body[0].Value.Name)
}

func TestParseFile_GeneratorDetection(t *testing.T) {
	mod := parseSource(t, `
def gen():
    yield 1

def outer():
    def inner():
        yield 2
    return inner
`)

	require.Len(t, mod.Body, 2)
	assert.True(t, mod.Body[0].IsGenerator)
	// A yield inside a nested def does not make the outer one a generator.
	assert.False(t, mod.Body[1].IsGenerator)
	assert.True(t, mod.Body[1].Body[0].IsGenerator)
}

func TestParseFile_YieldOperand(t *testing.T) {
	mod := parseSource(t, `
def gen(items):
    yield items
    yield 2
`)

	fn := mod.Body[0]
	require.True(t, fn.IsGenerator)
	require.Len(t, fn.Body, 2)

	first := fn.Body[0].Value
	require.Equal(t, ExprYield, first.Kind)
	require.NotNil(t, first.Value, "the yielded expression must survive the parse")
	assert.Equal(t, ExprName, first.Value.Kind)
	assert.Equal(t, "items", first.Value.Name)

	second := fn.Body[1].Value
	require.Equal(t, ExprYield, second.Kind)
	require.NotNil(t, second.Value)
	assert.Equal(t, ExprIntLit, second.Value.Kind)
	assert.Equal(t, int64(2), second.Value.IntVal)
}

func TestParseFile_Imports(t *testing.T) {
	mod := parseSource(t, `
import os
import collections as c
from a.b import thing
from x import y as z
`)

	require.Len(t, mod.Body, 4)
	assert.Equal(t, "os", mod.Body[0].Imports[0].Module)
	assert.Equal(t, "collections", mod.Body[1].Imports[0].Module)
	assert.Equal(t, "c", mod.Body[1].Imports[0].Alias)

	fromImp := mod.Body[2].Imports[0]
	assert.Equal(t, "a.b", fromImp.Module)
	assert.Equal(t, "thing", fromImp.Item)

	aliased := mod.Body[3].Imports[0]
	assert.Equal(t, "x", aliased.Module)
	assert.Equal(t, "y", aliased.Item)
	assert.Equal(t, "z", aliased.Alias)
}

func TestParseFile_ClassDef(t *testing.T) {
	mod := parseSource(t, `
class Dog(Animal):
    def bark(self):
        pass
`)

	require.Len(t, mod.Body, 1)
	cls := mod.Body[0]
	assert.Equal(t, StmtClassDef, cls.Kind)
	assert.Equal(t, "Dog", cls.Name)
	require.Len(t, cls.Bases, 1)
	assert.Equal(t, "Animal", cls.Bases[0].Name)
	require.Len(t, cls.Body, 1)
	assert.Equal(t, "bark", cls.Body[0].Name)
}

func TestParseFile_AttributeAndCall(t *testing.T) {
	mod := parseSource(t, "result = mod.helper(1, flag)\n")

	require.Len(t, mod.Body, 1)
	call := mod.Body[0].Value
	require.Equal(t, ExprCall, call.Kind)
	assert.Equal(t, ExprAttribute, call.Func.Kind)
	assert.Equal(t, "helper", call.Func.Name)
	assert.Equal(t, "mod", call.Func.Value.Name)
	require.Len(t, call.Args, 2)
	assert.Equal(t, ExprName, call.Args[1].Kind)
}

func TestParseFile_ReachabilityPruning(t *testing.T) {
	mod := parseSource(t, `
if False:
    dead = 1
else:
    alive = 2
`)

	require.Len(t, mod.Body, 1)
	ifStmt := mod.Body[0]
	require.Len(t, ifStmt.Body, 1)
	assert.True(t, ifStmt.Body[0].Unreachable)
	require.Len(t, ifStmt.Else, 1)
	assert.False(t, ifStmt.Else[0].Unreachable)
}

func TestModuleNameFromPath(t *testing.T) {
	root := filepath.Join("proj", "src")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "a.py"), "a"},
		{filepath.Join(root, "pkg", "mod.py"), "pkg.mod"},
		{filepath.Join(root, "pkg", "__init__.py"), "pkg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModuleNameFromPath(root, tt.path), tt.path)
	}
}
