// # internal/ir/value.go
package ir

import (
	"fmt"
	"math"
	"math/big"
)

// The executable value model mirrors the conventions the emitter encodes
// into C: the same boxing rules, error sentinels and refcount structure,
// but runnable in-process. Tests assert the representation laws against
// this model, and the generator runtime is built on it.

// Exception is a raised condition: a pending error that travels out of
// band next to overlapping error sentinels.
type Exception struct {
	Kind    string // e.g. "TypeError", "StopIteration", "GeneratorExit"
	Message string
	Value   Value // payload, e.g. the StopIteration return value
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// HeapObject is a heap cell. Exactly one payload field is meaningful,
// selected by Type (and Class for instances).
type HeapObject struct {
	Refcount int
	Type     *RType
	Class    *ClassIR

	Big   *big.Int
	F     float64
	B     bool
	S     string
	Elems []Value
	Attrs map[string]Value
}

// Value is one runtime value. Boxed values point at a HeapObject; unboxed
// values carry their payload inline. Err marks the out-of-band error
// sentinel of representations whose sentinel is not a legal payload
// (tagged int, empty tuple).
type Value struct {
	Type  *RType
	I     int64
	F     float64
	Elems []Value
	Obj   *HeapObject
	Err   bool
}

// Machine owns pending-exception state and heap accounting for one run of
// the model.
type Machine struct {
	pending *Exception
	live    int
}

func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) Raise(kind, msg string) {
	m.pending = &Exception{Kind: kind, Message: msg}
}

func (m *Machine) RaiseValue(e *Exception) {
	m.pending = e
}

func (m *Machine) Pending() *Exception {
	return m.pending
}

func (m *Machine) TakePending() *Exception {
	e := m.pending
	m.pending = nil
	return e
}

// LiveObjects reports heap cells not yet freed; tests use it to assert
// refcount balance.
func (m *Machine) LiveObjects() int {
	return m.live
}

func (m *Machine) alloc(o *HeapObject) *HeapObject {
	o.Refcount = 1
	m.live++
	return o
}

// --- constructors ---

const maxSmallInt = math.MaxInt64 >> 1

// NewInt builds a tagged integer: values fitting the shifted small range
// stay inline, anything larger is promoted to a heap integer.
func (m *Machine) NewInt(i int64) Value {
	if i > maxSmallInt || i < -maxSmallInt-1 {
		return m.newBigInt(big.NewInt(i))
	}
	return Value{Type: Int, I: i}
}

func (m *Machine) newBigInt(b *big.Int) Value {
	return Value{Type: Int, Obj: m.alloc(&HeapObject{Type: Int, Big: b})}
}

func (m *Machine) NewFloat(f float64) Value {
	return Value{Type: Float, F: f}
}

func (m *Machine) NewI64(i int64) Value {
	return Value{Type: I64, I: i}
}

func (m *Machine) NewBool(b bool) Value {
	if b {
		return Value{Type: Bool, I: 1}
	}
	return Value{Type: Bool, I: 0}
}

func (m *Machine) NewStr(s string) Value {
	return Value{Type: Str, Obj: m.alloc(&HeapObject{Type: Str, S: s})}
}

func (m *Machine) NewNone() Value {
	return Value{Type: None, Obj: m.alloc(&HeapObject{Type: None})}
}

func (m *Machine) NewTuple(t *RType, elems ...Value) Value {
	return Value{Type: t, Elems: elems}
}

func (m *Machine) NewInstance(cls *ClassIR) Value {
	obj := m.alloc(&HeapObject{Type: Instance(cls), Class: cls, Attrs: make(map[string]Value)})
	return Value{Type: Instance(cls), Obj: obj}
}

// ErrorValue builds the error sentinel of a representation. For tuples
// every element is set to its own sentinel; the empty tuple carries a
// dedicated flag because it has no element to overwrite.
func (m *Machine) ErrorValue(t *RType) Value {
	switch t.Kind {
	case RKindTuple:
		if len(t.Elems) == 0 {
			return Value{Type: t, Err: true}
		}
		elems := make([]Value, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = m.ErrorValue(e)
		}
		return Value{Type: t, Elems: elems}
	case RKindVoid:
		return Value{Type: t}
	}
	switch t {
	case Int:
		return Value{Type: Int, Err: true}
	case Bool:
		return Value{Type: Bool, I: 2}
	case I64:
		return Value{Type: I64, I: -113}
	case Float:
		return Value{Type: Float, F: -113.0}
	}
	// all boxed representations use the null pointer
	return Value{Type: t}
}

// IsErrorSentinel reports whether the value's bit pattern equals its
// type's error sentinel. For overlapping representations this is not yet
// an error; ErrorCheck adds the pending-exception conjunct.
func IsErrorSentinel(v Value) bool {
	t := v.Type
	switch t.Kind {
	case RKindTuple:
		if len(t.Elems) == 0 {
			return v.Err
		}
		for _, e := range v.Elems {
			if !IsErrorSentinel(e) {
				return false
			}
		}
		return true
	case RKindVoid:
		return false
	}
	switch t {
	case Int:
		return v.Err
	case Bool:
		return v.I == 2
	case I64:
		return v.I == -113
	case Float:
		return v.F == -113.0
	}
	return v.Obj == nil
}

// ErrorCheck decides whether a returned value signals failure: the bit
// pattern must match the sentinel, and when the sentinel overlaps legal
// values an exception must also be pending.
func (m *Machine) ErrorCheck(v Value) bool {
	if !IsErrorSentinel(v) {
		return false
	}
	if v.Type.ErrorOverlap {
		return m.pending != nil
	}
	return true
}

// --- boxing ---

// Box wraps an unboxed value into a fresh heap cell. Boxing an already
// boxed value just takes a new reference.
func (m *Machine) Box(v Value) Value {
	if v.Type.Boxed {
		m.IncRef(v)
		return Value{Type: Object, Obj: v.Obj}
	}
	switch v.Type.Kind {
	case RKindTuple:
		elems := make([]Value, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = m.Box(e)
		}
		return Value{Type: Object, Obj: m.alloc(&HeapObject{Type: v.Type, Elems: elems})}
	}
	switch v.Type {
	case Int:
		if v.Obj != nil {
			m.IncRef(v)
			return Value{Type: Object, Obj: v.Obj}
		}
		return Value{Type: Object, Obj: m.alloc(&HeapObject{Type: Int, Big: big.NewInt(v.I)})}
	case Bool:
		return Value{Type: Object, Obj: m.alloc(&HeapObject{Type: Bool, B: v.I != 0})}
	case I64:
		return Value{Type: Object, Obj: m.alloc(&HeapObject{Type: I64, Big: big.NewInt(v.I)})}
	case Float:
		return Value{Type: Object, Obj: m.alloc(&HeapObject{Type: Float, F: v.F})}
	}
	return Value{Type: Object, Obj: v.Obj}
}

// Unbox converts a boxed value to the requested unboxed representation.
// It is strict: a payload of the wrong runtime type raises and returns
// the target's error sentinel, it never coerces.
func (m *Machine) Unbox(v Value, to *RType) Value {
	if v.Obj == nil {
		m.Raise("TypeError", fmt.Sprintf("cannot unbox null object to %s", to.Name))
		return m.ErrorValue(to)
	}
	o := v.Obj
	switch to.Kind {
	case RKindTuple:
		if o.Type.Kind != RKindTuple || len(o.Elems) != len(to.Elems) {
			return m.unboxMismatch(o, to)
		}
		elems := make([]Value, len(to.Elems))
		for i, e := range to.Elems {
			inner := o.Elems[i]
			if e.Boxed {
				elems[i] = inner
				continue
			}
			elems[i] = m.Unbox(inner, e)
			if m.pending != nil {
				return m.ErrorValue(to)
			}
		}
		return Value{Type: to, Elems: elems}
	}
	switch to {
	case Int:
		if o.Type != Int && o.Type != I64 {
			return m.unboxMismatch(o, to)
		}
		if o.Big.IsInt64() {
			return m.NewInt(o.Big.Int64())
		}
		return m.newBigInt(new(big.Int).Set(o.Big))
	case Bool:
		if o.Type != Bool {
			return m.unboxMismatch(o, to)
		}
		if o.B {
			return Value{Type: Bool, I: 1}
		}
		return Value{Type: Bool, I: 0}
	case I64:
		if (o.Type != Int && o.Type != I64) || !o.Big.IsInt64() {
			return m.unboxMismatch(o, to)
		}
		return Value{Type: I64, I: o.Big.Int64()}
	case Float:
		if o.Type != Float {
			return m.unboxMismatch(o, to)
		}
		return Value{Type: Float, F: o.F}
	}
	m.Raise("TypeError", fmt.Sprintf("no unboxed representation for %s", to.Name))
	return m.ErrorValue(to)
}

func (m *Machine) unboxMismatch(o *HeapObject, to *RType) Value {
	m.Raise("TypeError", fmt.Sprintf("expected %s, got %s", to.Name, o.Type.Name))
	return m.ErrorValue(to)
}

// Cast checks that a boxed value conforms to a boxed target type without
// changing its representation. Union targets try each member; a value
// matching none fails exactly once.
func (m *Machine) Cast(v Value, to *RType) Value {
	if v.Obj == nil {
		// null propagates; the original failure already raised
		return m.ErrorValue(to)
	}
	if m.matches(v.Obj, to) {
		return Value{Type: to, Obj: v.Obj, Elems: v.Elems}
	}
	m.Raise("TypeError", fmt.Sprintf("cannot cast %s to %s", v.Obj.Type.Name, to.Name))
	return m.ErrorValue(to)
}

func (m *Machine) matches(o *HeapObject, to *RType) bool {
	switch to.Kind {
	case RKindUnion:
		for _, item := range to.Items {
			if m.matches(o, item) {
				return true
			}
		}
		return false
	case RKindInstance:
		return o.Class != nil && o.Class.IsSubclassOf(to.Class)
	}
	switch to {
	case Object:
		return true
	case Int:
		return o.Type == Int || o.Type == I64
	case Float:
		return o.Type == Float
	case Bool:
		return o.Type == Bool
	}
	return o.Type == to
}

// --- reference counting ---

// IncRef adds a reference, descending structurally into tuple fields.
// Unboxed non-refcounted payloads and small tagged integers are no-ops.
func (m *Machine) IncRef(v Value) {
	if !v.Type.Refcounted {
		return
	}
	if v.Type.Kind == RKindTuple {
		for _, e := range v.Elems {
			m.IncRef(e)
		}
		return
	}
	if v.Obj != nil {
		v.Obj.Refcount++
	}
}

// DecRef drops a reference and frees the cell at zero. Like IncRef it is
// structural over tuples and skips small tagged integers.
func (m *Machine) DecRef(v Value) {
	if !v.Type.Refcounted {
		return
	}
	if v.Type.Kind == RKindTuple {
		for _, e := range v.Elems {
			m.DecRef(e)
		}
		return
	}
	if v.Obj == nil {
		return
	}
	v.Obj.Refcount--
	if v.Obj.Refcount == 0 {
		m.free(v.Obj)
	}
}

func (m *Machine) free(o *HeapObject) {
	m.live--
	for _, e := range o.Elems {
		m.DecRef(e)
	}
	for _, a := range o.Attrs {
		m.DecRef(a)
	}
}

// --- tagged integer arithmetic ---

// AddInt adds two tagged integers, promoting to a heap integer on
// overflow and demoting results that fit the small range again.
func (m *Machine) AddInt(a, b Value) Value {
	return m.intOp(a, b, func(x, y int64) (int64, bool) {
		s := x + y
		return s, (x > 0 && y > 0 && s < 0) || (x < 0 && y < 0 && s >= 0)
	}, new(big.Int).Add)
}

func (m *Machine) SubInt(a, b Value) Value {
	return m.intOp(a, b, func(x, y int64) (int64, bool) {
		d := x - y
		return d, (x >= 0 && y < 0 && d < 0) || (x < 0 && y > 0 && d >= 0)
	}, new(big.Int).Sub)
}

func (m *Machine) MulInt(a, b Value) Value {
	return m.intOp(a, b, func(x, y int64) (int64, bool) {
		if x == 0 || y == 0 {
			return 0, false
		}
		p := x * y
		return p, p/y != x
	}, new(big.Int).Mul)
}

func (m *Machine) intOp(a, b Value, small func(int64, int64) (int64, bool), bigOp func(x, y *big.Int) *big.Int) Value {
	if a.Type != Int || b.Type != Int || a.Err || b.Err {
		m.Raise("TypeError", "tagged integer operation on non-integer")
		return m.ErrorValue(Int)
	}
	if a.Obj == nil && b.Obj == nil {
		if r, overflow := small(a.I, b.I); !overflow && r <= maxSmallInt && r >= -maxSmallInt-1 {
			return Value{Type: Int, I: r}
		}
	}
	return m.normalizeInt(bigOp(bigIntOf(a), bigIntOf(b)))
}

func (m *Machine) normalizeInt(b *big.Int) Value {
	if b.IsInt64() {
		if i := b.Int64(); i <= maxSmallInt && i >= -maxSmallInt-1 {
			return Value{Type: Int, I: i}
		}
	}
	return m.newBigInt(b)
}

func bigIntOf(v Value) *big.Int {
	if v.Obj != nil {
		return v.Obj.Big
	}
	return big.NewInt(v.I)
}

// IntEqual compares tagged integers by numeric value regardless of
// small/heap representation.
func IntEqual(a, b Value) bool {
	if a.Type != Int || b.Type != Int || a.Err || b.Err {
		return false
	}
	return bigIntOf(a).Cmp(bigIntOf(b)) == 0
}
