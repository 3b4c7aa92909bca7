package vm

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/mna/dollarvm/lang/rterror"
)

// Type carries a name, an ordered list of base types, a precomputed MRO
// (C3 linearization) and a mapping from attribute name to a Value (usually
// a *BuiltinFunction or *Property), per spec.md §3/§4.1. Grounded in
// object.hpp/object.cpp's Type class.
type Type struct {
	Name  string
	Bases []*Type
	MRO   []*Type
	Attrs map[string]Value
}

// TypeType is the self-typed root: Type.TypeOf() == TypeType for every
// Type value, including TypeType itself (spec.md §3: "Type.type == Type").
var TypeType = &Type{Name: "type", Bases: []*Type{ObjectType}, Attrs: map[string]Value{}}

// ObjectType is the root of every MRO; it defines the universal operator
// table (spec.md §4.1). It is created by a package-level initializer so
// that it exists before the other package-level types call NewType.
var ObjectType = &Type{Name: "object", Attrs: map[string]Value{}}

func init() {
	TypeType.MRO = []*Type{TypeType, ObjectType}
	ObjectType.MRO = []*Type{ObjectType}
	installObjectOperators(ObjectType)
}

func (t *Type) String() string { return fmt.Sprintf("<type '%s'>", t.Name) }
func (t *Type) Type() string   { return "type" }
func (t *Type) TypeOf() *Type  { return TypeType }

// NewType constructs a Type with the given bases and attrs, computing its
// MRO via C3 linearization (object.cpp Type::make_mro). Panics with a
// HostError (fatal per spec.md §7) if the linearization is inconsistent.
func NewType(name string, bases []*Type, attrs map[string]Value) *Type {
	if attrs == nil {
		attrs = map[string]Value{}
	}
	if len(bases) == 0 {
		bases = []*Type{ObjectType}
	}
	t := &Type{Name: name, Bases: bases, Attrs: attrs}
	t.MRO = c3Linearize(t)
	return t
}

// c3Linearize computes the C3 MRO of t: t itself, then the merge of the
// linearizations of its bases plus the base list itself, grounded in
// object.cpp Type::make_mro.
func c3Linearize(t *Type) []*Type {
	if len(t.Bases) == 0 {
		return []*Type{t}
	}

	var lists [][]*Type
	for _, b := range t.Bases {
		lists = append(lists, append([]*Type{}, b.MRO...))
	}
	lists = append(lists, append([]*Type{}, t.Bases...))

	merged := []*Type{t}
	for {
		lists = pruneEmpty(lists)
		if len(lists) == 0 {
			break
		}
		var head *Type
		for _, l := range lists {
			candidate := l[0]
			if !appearsInTail(candidate, lists) {
				head = candidate
				break
			}
		}
		if head == nil {
			fatal("MRO linearization failure for type %q: inconsistent hierarchy", t.Name)
		}
		merged = append(merged, head)
		for i, l := range lists {
			lists[i] = removeFirstOccurrence(l, head)
		}
	}
	return merged
}

func pruneEmpty(lists [][]*Type) [][]*Type {
	out := lists[:0]
	for _, l := range lists {
		if len(l) > 0 {
			out = append(out, l)
		}
	}
	return out
}

func appearsInTail(candidate *Type, lists [][]*Type) bool {
	for _, l := range lists {
		for _, x := range l[1:] {
			if x == candidate {
				return true
			}
		}
	}
	return false
}

func removeFirstOccurrence(l []*Type, target *Type) []*Type {
	out := make([]*Type, 0, len(l))
	removed := false
	for _, x := range l {
		if !removed && x == target {
			removed = true
			continue
		}
		out = append(out, x)
	}
	return out
}

// lookupAttr searches t's MRO, in order, for name, returning the raw
// attribute Value and the defining Type, or (nil, nil, false).
func lookupAttr(t *Type, name string) (Value, *Type, bool) {
	for _, anc := range t.MRO {
		if v, ok := anc.Attrs[name]; ok {
			return v, anc, true
		}
	}
	return nil, nil, false
}

// TypeOf returns v's Type descriptor, or ObjectType if v does not
// implement Typed (should not normally happen for well-formed values).
func TypeOf(v Value) *Type {
	if t, ok := v.(Typed); ok {
		return t.TypeOf()
	}
	return ObjectType
}

// GetAttr implements `obj.getattr(name)` (spec.md §4.1): consults the
// instance's type's MRO, wrapping *BuiltinFunction as *BoundMethod and
// invoking *Property immediately with self as sole argument.
func GetAttr(eng *Engine, obj Value, name string) Value {
	if m, ok := obj.(*Module); ok {
		if v, ok := m.Get(name); ok {
			return v
		}
	}

	t := TypeOf(obj)
	v, _, ok := lookupAttr(t, name)
	if !ok {
		rterror.Raise(rterror.NewName("%s has no attribute %q", t.Name, name))
	}
	switch fn := v.(type) {
	case *BuiltinFunction:
		return &BoundMethod{Self: obj, Func: fn}
	case *Property:
		res, err := Call(eng, fn.Getter, []Value{obj})
		if err != nil {
			panic(err)
		}
		return res
	default:
		return v
	}
}

// AttrNames lists the attribute names visible on v's type, in MRO order,
// de-duplicated, most-derived first.
func AttrNames(v Value) []string {
	t := TypeOf(v)
	seen := map[string]bool{}
	var out []string
	for _, anc := range t.MRO {
		names := make([]string, 0, len(anc.Attrs))
		for n := range anc.Attrs {
			names = append(names, n)
		}
		slices.Sort(names)
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
