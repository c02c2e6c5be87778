// # internal/ir/class.go
package ir

// ClassIR is the lowered form of a compiled class. The subclass list is
// closed at compile time, which is what allows casts to specialize an
// isinstance check into direct type-tag comparisons.
type ClassIR struct {
	Name     string
	Module   string
	Base     *ClassIR
	Children []*ClassIR

	Attributes map[string]*RType
	Methods    map[string]*FuncIR

	// TypeTag is the dense id assigned during module lowering; used by
	// specialized instance checks.
	TypeTag int
}

func NewClassIR(module, name string, base *ClassIR) *ClassIR {
	c := &ClassIR{
		Name:       name,
		Module:     module,
		Base:       base,
		Attributes: make(map[string]*RType),
		Methods:    make(map[string]*FuncIR),
	}
	if base != nil {
		base.Children = append(base.Children, c)
	}
	return c
}

func (c *ClassIR) FullName() string {
	if c.Module == "" {
		return c.Name
	}
	return c.Module + "." + c.Name
}

func (c *ClassIR) IsSubclassOf(other *ClassIR) bool {
	for cur := c; cur != nil; cur = cur.Base {
		if cur == other {
			return true
		}
	}
	return false
}

// ConcreteSubclasses returns the class and all transitive subclasses.
// A nil result from callers' perspective never happens; the receiver is
// always included.
func (c *ClassIR) ConcreteSubclasses() []*ClassIR {
	out := []*ClassIR{c}
	for _, child := range c.Children {
		out = append(out, child.ConcreteSubclasses()...)
	}
	return out
}

// AttrType resolves an attribute's representation, walking up the base
// chain.
func (c *ClassIR) AttrType(name string) (*RType, bool) {
	for cur := c; cur != nil; cur = cur.Base {
		if t, ok := cur.Attributes[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// FuncIR is the lowered form of one function: its signature in runtime
// representations plus the flags codegen needs. Bodies are lowered
// directly by the emitter, so no separate op list is kept here.
type FuncIR struct {
	Name   string
	Module string
	Class  string // empty for module-level functions

	Params []ParamIR
	Ret    *RType

	IsGenerator bool
	// YieldTypes lists the representation at each suspension point, in
	// source order; generators use it to size the environment struct.
	YieldTypes []*RType
}

type ParamIR struct {
	Name string
	Type *RType
}

func (f *FuncIR) FullName() string {
	parts := f.Module
	if f.Class != "" {
		parts += "." + f.Class
	}
	return parts + "." + f.Name
}
