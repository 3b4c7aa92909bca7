package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegerArithmetic(t *testing.T) {
	eng := newTestEngine(t)

	cases := []struct {
		op       Op
		lhs, rhs Value
		want     Value
	}{
		{OpAdd, Integer(2), Integer(3), Integer(5)},
		{OpSub, Integer(5), Integer(3), Integer(2)},
		{OpMul, Integer(4), Integer(3), Integer(12)},
		{OpFloorDiv, Integer(7), Integer(2), Integer(3)},
		{OpFloorDiv, Integer(-7), Integer(2), Integer(-4)},
		{OpMod, Integer(-7), Integer(2), Integer(1)},
		{OpCmp, Integer(1), Integer(2), Integer(-1)},
	}
	for _, c := range cases {
		got := Dispatch(eng, c.op, c.lhs, c.rhs)
		require.Equal(t, c.want, got, "%s %v %v", c.op, c.lhs, c.rhs)
	}
}

func TestFloatPromotion(t *testing.T) {
	eng := newTestEngine(t)
	got := Dispatch(eng, OpAdd, Integer(1), Float(0.5))
	require.Equal(t, Float(1.5), got)
}

func TestDivisionByZero(t *testing.T) {
	eng := newTestEngine(t)
	require.Panics(t, func() { Dispatch(eng, OpDiv, Integer(1), Integer(0)) })
	require.Panics(t, func() { Dispatch(eng, OpFloorDiv, Integer(1), Integer(0)) })
	require.Panics(t, func() { Dispatch(eng, OpMod, Integer(1), Integer(0)) })
}

func TestBooleanArithmeticUsesFloatPath(t *testing.T) {
	// Boolean's Type has Integer as its base, so "+" dispatches to Integer's
	// arithmetic; the integer path only takes Integer operands, so a Boolean
	// operand goes through asFloat (True is 1) and the result is a Float.
	eng := newTestEngine(t)
	got := Dispatch(eng, OpAdd, True, Integer(1))
	require.Equal(t, Float(2), got)
}

func TestTruthy(t *testing.T) {
	require.False(t, truthy(None))
	require.False(t, truthy(Integer(0)))
	require.True(t, truthy(Integer(1)))
	require.False(t, truthy(String("")))
	require.True(t, truthy(String("x")))
	require.False(t, truthy(NewList(nil)))
	require.True(t, truthy(NewList([]Value{Integer(1)})))
}
