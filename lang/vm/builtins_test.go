package vm

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/dollarvm/lang/bytecode"
)

func TestEnvAdditionsInstallsProtocolAndLibrary(t *testing.T) {
	eng := newTestEngine(t)
	env := envAdditions(eng)

	for _, name := range []string{"$?", "$=", "alias", "import", "subs", "test_thunk", "print", "->", "[]", "assert", "Signature"} {
		require.Contains(t, env, name)
	}
}

func TestBiPrintWritesToStdout(t *testing.T) {
	var out bytes.Buffer
	th := NewThread(context.Background(), &out, &bytes.Buffer{}, nil)
	eng := NewEngine(th, nil, nil, nil)

	_, err := biPrint(eng, []Value{String("hello"), Integer(1)})
	require.NoError(t, err)
	require.Equal(t, "hello 1\n", out.String())
}

func TestBiAssert(t *testing.T) {
	eng := newTestEngine(t)

	_, err := biAssert(eng, []Value{Boolean(true)})
	require.NoError(t, err)

	require.Panics(t, func() { _, _ = biAssert(eng, []Value{Boolean(false)}) })
	require.Panics(t, func() { _, _ = biAssert(eng, []Value{Boolean(false), String("boom")}) })
}

func TestBiBraks(t *testing.T) {
	eng := newTestEngine(t)
	v, err := biBraks(eng, []Value{Integer(1), Integer(2)})
	require.NoError(t, err)
	l := v.(*List)
	require.Equal(t, []Value{Integer(1), Integer(2)}, l.Elems())
}

func TestBiArrowBuildsFunction(t *testing.T) {
	eng := newTestEngine(t)
	code := newCode("m", nil, nil)

	sig := &Signature{Names: []string{"a"}}
	v, err := biArrow(eng, []Value{sig, WrapCode(code), Integer(3)})
	require.NoError(t, err)
	fn := v.(*Function)
	require.Same(t, code, fn.Code)
	require.Equal(t, 3, fn.Offset)
	require.Same(t, sig, fn.Sig)
}

func TestArgDollarNameRejectsNonList(t *testing.T) {
	require.Panics(t, func() { argDollarName(Integer(1)) })
}

func TestArgDollarNameConverts(t *testing.T) {
	l := NewList([]Value{String("a"), String("b")})
	n := argDollarName(l)
	require.True(t, n.Equal(DollarName{"a", "b"}))
}

func TestWrappedCodeRoundTrip(t *testing.T) {
	c := &bytecode.Code{ModuleName: "mod"}
	wrapped := WrapCode(c)
	require.Equal(t, "Code", wrapped.Type())
	require.Contains(t, wrapped.String(), "mod")
}
