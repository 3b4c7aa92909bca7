package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestC3LinearizationSimple(t *testing.T) {
	base := NewType("Base", nil, nil)
	derived := NewType("Derived", []*Type{base}, nil)

	require.Equal(t, []*Type{derived, base, ObjectType}, derived.MRO)
}

func TestC3LinearizationDiamond(t *testing.T) {
	// classic diamond: D(B, C), B(A), C(A)
	a := NewType("A", nil, nil)
	b := NewType("B", []*Type{a}, nil)
	c := NewType("C", []*Type{a}, nil)
	d := NewType("D", []*Type{b, c}, nil)

	require.Equal(t, []*Type{d, b, c, a, ObjectType}, d.MRO)
}

func TestLookupAttrWalksMRO(t *testing.T) {
	base := NewType("Base", nil, map[string]Value{
		"greet": NewBuiltin("greet", func(eng *Engine, args []Value) (Value, error) {
			return String("hi"), nil
		}),
	})
	derived := NewType("Derived", []*Type{base}, nil)

	v, defining, ok := lookupAttr(derived, "greet")
	require.True(t, ok)
	require.Same(t, base, defining)
	require.NotNil(t, v)
}

func TestGetAttrBoundMethod(t *testing.T) {
	eng := newTestEngine(t)
	obj := NewList([]Value{Integer(1)})

	v := GetAttr(eng, obj, string(OpIndex))
	bm, ok := v.(*BoundMethod)
	require.True(t, ok)
	require.Equal(t, obj, bm.Self)
}

func TestGetAttrProperty(t *testing.T) {
	eng := newTestEngine(t)
	sig := &Signature{Names: []string{"a"}}
	fn := &Function{Sig: sig, Env: map[string]Value{}}

	v := GetAttr(eng, fn, "signature")
	require.Same(t, sig, v)
}

func TestGetAttrMissingRaisesNameError(t *testing.T) {
	eng := newTestEngine(t)
	require.Panics(t, func() { GetAttr(eng, Integer(1), "nope") })
}

func TestAttrNamesDeduplicatesAcrossMRO(t *testing.T) {
	base := NewType("Base2", nil, map[string]Value{"x": Integer(1)})
	derived := NewType("Derived2", []*Type{base}, map[string]Value{"y": Integer(2)})

	got := AttrNames(fakeTyped{t: derived})
	require.Contains(t, got, "x")
	require.Contains(t, got, "y")
}

// fakeTyped is a minimal Typed implementation for exercising AttrNames
// against an arbitrary *Type without needing a real Value variant.
type fakeTyped struct{ t *Type }

func (f fakeTyped) String() string { return "fake" }
func (f fakeTyped) Type() string   { return f.t.Name }
func (f fakeTyped) TypeOf() *Type  { return f.t }
