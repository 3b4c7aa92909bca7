package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/dollarvm/lang/bytecode"
	"github.com/mna/dollarvm/lang/rterror"
)

func TestSignatureString(t *testing.T) {
	sig := &Signature{
		Names:    []string{"a", "b", "c", "args", "kwargs"},
		Defaults: []Value{Integer(1)},
		Flags:    VarArgs | VarKwargs,
	}
	require.Equal(t, "Signature(a, b, c=1, *args, **kwargs)", sig.String())
}

func TestSignatureConstructor(t *testing.T) {
	eng := newTestEngine(t)
	ctor := SignatureType.Attrs["__new__"].(*BuiltinFunction)

	v, err := ctor.Fn(eng, []Value{
		NewList([]Value{String("a"), String("b")}),
		NewList([]Value{Integer(9)}),
		Integer(0),
	})
	require.NoError(t, err)
	sig := v.(*Signature)
	require.Equal(t, []string{"a", "b"}, sig.Names)
	require.Equal(t, []Value{Integer(9)}, sig.Defaults)
}

func TestFunctionCallBindsArgsAndDefaults(t *testing.T) {
	eng := newTestEngine(t)

	// fn(a, b=2): GET a; GET b; BINOP +; RETURN
	var instrs []byte
	instrs = instr(instrs, bytecode.GET, 0)
	instrs = instr(instrs, bytecode.GET, 1)
	instrs = instr(instrs, bytecode.BINOP, 2)
	instrs = instr(instrs, bytecode.RETURN, 0)
	code := newCode("m", instrs, []any{"a", "b", "+"})

	sig := &Signature{Names: []string{"a", "b"}, Defaults: []Value{Integer(2)}}
	fn := &Function{Code: code, Offset: 0, Sig: sig, Env: map[string]Value{}}

	v, err := Call(eng, fn, []Value{Integer(5)})
	require.NoError(t, err)
	require.Equal(t, Integer(7), v)

	v, err = Call(eng, fn, []Value{Integer(5), Integer(10)})
	require.NoError(t, err)
	require.Equal(t, Integer(15), v)
}

func TestFunctionCallWrongArgCount(t *testing.T) {
	eng := newTestEngine(t)
	sig := &Signature{Names: []string{"a"}}
	fn := &Function{Code: newCode("m", nil, nil), Sig: sig, Env: map[string]Value{}}

	require.Panics(t, func() { _, _ = Call(eng, fn, []Value{Integer(1), Integer(2)}) })
}

func TestCallBoundMethod(t *testing.T) {
	eng := newTestEngine(t)
	obj := NewList([]Value{Integer(7)})
	bm := &BoundMethod{Self: obj, Func: ListType.Attrs[string(OpIndex)]}

	v, err := Call(eng, bm, []Value{Integer(0)})
	require.NoError(t, err)
	require.Equal(t, Integer(7), v)
}

func TestCallTypeInvokesConstructor(t *testing.T) {
	eng := newTestEngine(t)
	v, err := Call(eng, SignatureType, []Value{
		NewList(nil), NewList(nil), Integer(0),
	})
	require.NoError(t, err)
	_, ok := v.(*Signature)
	require.True(t, ok)
}

func TestCallStackTraceAccumulatesAcrossNestedFunctionCalls(t *testing.T) {
	eng := newTestEngine(t)

	raiser := NewBuiltin("raiser", func(eng *Engine, args []Value) (Value, error) {
		rterror.Raise(rterror.NewValue("boom"))
		return None, nil
	})

	// inner(): GET "raiser"; CALL 0; RETURN 0
	var innerInstrs []byte
	innerInstrs = instr(innerInstrs, bytecode.GET, 0)
	innerInstrs = instr(innerInstrs, bytecode.CALL, 0)
	innerInstrs = instr(innerInstrs, bytecode.RETURN, 0)
	innerCode := newCode("inner", innerInstrs, []any{"raiser"})
	inner := &Function{Code: innerCode, Sig: &Signature{}, Env: map[string]Value{"raiser": raiser}}

	// outer(): GET "inner"; CALL 0; RETURN 0
	var outerInstrs []byte
	outerInstrs = instr(outerInstrs, bytecode.GET, 0)
	outerInstrs = instr(outerInstrs, bytecode.CALL, 0)
	outerInstrs = instr(outerInstrs, bytecode.RETURN, 0)
	outerCode := newCode("outer", outerInstrs, []any{"inner"})
	outer := &Function{Code: outerCode, Sig: &Signature{}, Env: map[string]Value{"inner": inner}}

	var caught *rterror.Exception
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			ex, ok := r.(*rterror.Exception)
			require.True(t, ok)
			caught = ex
		}()
		_, _ = Call(eng, outer, nil)
	}()

	require.Len(t, caught.StackTrace, 2)
	require.Equal(t, "inner.dvc", caught.StackTrace[0].FName)
	require.Equal(t, "outer.dvc", caught.StackTrace[1].FName)
}
