// # internal/ir/rtypes.go
package ir

import (
	"fmt"
	"strings"
)

// RTypeKind closes the set of runtime representations. Every consumer
// switches over this enum; there is no open subclassing.
type RTypeKind int

const (
	RKindPrimitive RTypeKind = iota
	RKindTuple
	RKindUnion
	RKindInstance
	RKindVoid
)

// RType describes how a value is represented in lowered code: its C type,
// whether it lives boxed on the heap or unboxed in a register, and which
// bit pattern signals an error return.
//
// ErrorOverlap means the error sentinel is also a valid ordinary value of
// the type, so an error return must additionally consult the pending
// exception state before being treated as a failure.
type RType struct {
	Kind RTypeKind

	Name  string
	CType string

	Boxed      bool
	Refcounted bool

	// ErrorValue is the C literal for the error sentinel; empty for void.
	ErrorValue   string
	ErrorOverlap bool

	Elems []*RType  // RKindTuple
	Items []*RType  // RKindUnion
	Class *ClassIR  // RKindInstance

	// TupleStruct is the emitted C struct name for a tuple type.
	TupleStruct string
}

var (
	Object = &RType{Kind: RKindPrimitive, Name: "object", CType: "PyrObject *",
		Boxed: true, Refcounted: true, ErrorValue: "NULL"}
	Str = &RType{Kind: RKindPrimitive, Name: "str", CType: "PyrObject *",
		Boxed: true, Refcounted: true, ErrorValue: "NULL"}
	List = &RType{Kind: RKindPrimitive, Name: "list", CType: "PyrObject *",
		Boxed: true, Refcounted: true, ErrorValue: "NULL"}
	Dict = &RType{Kind: RKindPrimitive, Name: "dict", CType: "PyrObject *",
		Boxed: true, Refcounted: true, ErrorValue: "NULL"}
	None = &RType{Kind: RKindPrimitive, Name: "None", CType: "PyrObject *",
		Boxed: true, Refcounted: true, ErrorValue: "NULL"}

	// Int is the tagged arbitrary-precision integer: low bit clear means
	// the value is a small integer shifted left by one, low bit set means
	// the rest is a pointer to a heap integer.
	Int = &RType{Kind: RKindPrimitive, Name: "int", CType: "PyrTagged",
		Refcounted: true, ErrorValue: "PYR_INT_TAG"}

	Bool = &RType{Kind: RKindPrimitive, Name: "bool", CType: "char",
		ErrorValue: "2"}

	// I64 and Float use an in-band sentinel: -113 is a legal value, so
	// error returns overlap and need the pending-exception check.
	I64 = &RType{Kind: RKindPrimitive, Name: "i64", CType: "int64_t",
		ErrorValue: "-113", ErrorOverlap: true}
	Float = &RType{Kind: RKindPrimitive, Name: "float", CType: "double",
		ErrorValue: "-113.0", ErrorOverlap: true}

	Void = &RType{Kind: RKindVoid, Name: "void", CType: "void"}
)

// Tuple builds an unboxed struct type. The error sentinel of a non-empty
// tuple is the tuple of its elements' sentinels, so the tuple overlaps
// only when every element overlaps. The empty tuple has no element to
// carry a sentinel and gets a dedicated error flag field instead.
func Tuple(elems ...*RType) *RType {
	t := &RType{
		Kind:        RKindTuple,
		Elems:       elems,
		Refcounted:  anyRefcounted(elems),
		TupleStruct: tupleStructName(elems),
	}
	t.CType = t.TupleStruct
	t.Name = "tuple[" + joinNames(elems) + "]"
	if len(elems) == 0 {
		t.ErrorOverlap = false
	} else {
		t.ErrorOverlap = allOverlap(elems)
	}
	return t
}

// Union builds a boxed union; values are always generic object pointers
// and casts narrow them member by member.
func Union(items ...*RType) *RType {
	return &RType{
		Kind:       RKindUnion,
		Name:       "union[" + joinNames(items) + "]",
		CType:      "PyrObject *",
		Boxed:      true,
		Refcounted: true,
		ErrorValue: "NULL",
		Items:      items,
	}
}

// Instance is the boxed reference type for a compiled class.
func Instance(cls *ClassIR) *RType {
	return &RType{
		Kind:       RKindInstance,
		Name:       cls.Name,
		CType:      "PyrObject *",
		Boxed:      true,
		Refcounted: true,
		ErrorValue: "NULL",
		Class:      cls,
	}
}

func (t *RType) String() string {
	return t.Name
}

// IsTagged reports whether the type is the tagged integer representation.
func (t *RType) IsTagged() bool {
	return t == Int
}

func anyRefcounted(elems []*RType) bool {
	for _, e := range elems {
		if e.Refcounted {
			return true
		}
	}
	return false
}

func allOverlap(elems []*RType) bool {
	for _, e := range elems {
		if !e.ErrorOverlap {
			return false
		}
	}
	return true
}

func joinNames(ts []*RType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Name
	}
	return strings.Join(parts, ", ")
}

func tupleStructName(elems []*RType) string {
	if len(elems) == 0 {
		return "PyrTuple0"
	}
	var b strings.Builder
	b.WriteString("PyrTuple")
	for _, e := range elems {
		switch e.Kind {
		case RKindTuple:
			b.WriteString("T" + fmt.Sprint(len(e.Elems)))
		default:
			b.WriteString(structNameToken(e))
		}
	}
	return b.String()
}

func structNameToken(t *RType) string {
	switch t {
	case Int:
		return "I"
	case Bool:
		return "B"
	case I64:
		return "L"
	case Float:
		return "F"
	case Str:
		return "S"
	default:
		return "O"
	}
}
