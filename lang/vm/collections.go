package vm

import (
	"fmt"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/mna/dollarvm/lang/rterror"
)

// List is an ordered sequence of values (object.hpp List). Bytecode never
// mutates a List in place (there is no SETINDEX opcode in this VM's
// instruction set -- spec.md §4.2); lists are built whole by BUILDLIST.
type List struct {
	elems []Value
}

var ListType = NewType("List", nil, nil)

func NewList(elems []Value) *List { return &List{elems: append([]Value(nil), elems...)} }

func (l *List) Elems() []Value { return l.elems }
func (l *List) Len() int       { return len(l.elems) }

func (l *List) String() string {
	parts := make([]string, len(l.elems))
	for i, e := range l.elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (l *List) Type() string  { return "List" }
func (l *List) TypeOf() *Type { return ListType }

func init() {
	ListType.Attrs[string(OpIndex)] = NewBuiltin("[]", func(eng *Engine, args []Value) (Value, error) {
		l, ok := args[0].(*List)
		if !ok {
			rterror.Raise(rterror.NewUnsupportedOp(string(OpIndex), TypeOf(args[0]).Name, TypeOf(args[1]).Name))
		}
		idx, ok := args[1].(Integer)
		if !ok {
			rterror.Raise(rterror.NewType("list index must be an Integer, got %s", TypeOf(args[1]).Name))
		}
		i := int(idx)
		if i < 0 {
			i += len(l.elems)
		}
		if i < 0 || i >= len(l.elems) {
			rterror.Raise(rterror.NewIndex("list index %d out of range (len %d)", int(idx), len(l.elems)))
		}
		return l.elems[i], nil
	})
	ListType.Attrs[string(OpEq)] = NewBuiltin("==", func(eng *Engine, args []Value) (Value, error) {
		lhs, ok1 := args[0].(*List)
		rhs, ok2 := args[1].(*List)
		if !ok1 || !ok2 {
			return Boolean(false), nil
		}
		if len(lhs.elems) != len(rhs.elems) {
			return Boolean(false), nil
		}
		for i := range lhs.elems {
			eq, err := Compare(eng, OpEq, lhs.elems[i], rhs.elems[i])
			if err != nil || !eq {
				return Boolean(eq), err
			}
		}
		return Boolean(true), nil
	})
	// ":+" appends one element, returning a new List (object.cpp's List
	// append-returning-new-list operator).
	ListType.Attrs[":+"] = NewBuiltin(":+", func(eng *Engine, args []Value) (Value, error) {
		l, ok := args[0].(*List)
		if !ok {
			rterror.Raise(rterror.NewUnsupportedOp(":+", TypeOf(args[0]).Name, TypeOf(args[1]).Name))
		}
		out := make([]Value, len(l.elems)+1)
		copy(out, l.elems)
		out[len(l.elems)] = args[1]
		return &List{elems: out}, nil
	})
}

// Dict is a mapping with object-key hashing/equality (object.hpp Dict),
// backed by dolthub/swiss (replaced with mna/swiss), mirroring the
// teacher's lang/machine/map.go Map. Bytecode has no dict-construction
// opcode; Dicts arise from wire-format constants (spec.md §6).
type Dict struct {
	m *swiss.Map[Value, Value]
}

var DictType = NewType("Dict", nil, nil)

func NewDict(size int) *Dict {
	if size < 1 {
		size = 1
	}
	return &Dict{m: swiss.NewMap[Value, Value](uint32(size))}
}

func (d *Dict) Get(k Value) (Value, bool) {
	v, ok := d.m.Get(k)
	return v, ok
}

func (d *Dict) Set(k, v Value) { d.m.Put(k, v) }

func (d *Dict) Len() int { return int(d.m.Count()) }

func (d *Dict) Each(fn func(k, v Value) bool) {
	d.m.Iter(func(k, v Value) bool { return !fn(k, v) })
}

func (d *Dict) String() string {
	var parts []string
	d.Each(func(k, v Value) bool {
		parts = append(parts, fmt.Sprintf("%s: %s", k.String(), v.String()))
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}
func (d *Dict) Type() string  { return "Dict" }
func (d *Dict) TypeOf() *Type { return DictType }
