package vm

import (
	"fmt"
	"math"

	"github.com/mna/dollarvm/lang/rterror"
)

// Integer is a 64-bit signed integer value (object.hpp Integer; widened
// from the original's native `int` to match spec.md §3's "64-bit signed").
type Integer int64

// Float is an IEEE-754 double value (object.hpp Float).
type Float float64

// Boolean is a singleton-flavored subtype of Integer in the original
// (object.hpp: "class Boolean : public Integer"); represented here as its
// own Go type for clarity, with True/False as its only values.
type Boolean bool

// NoneType is the type of the singleton None value (object.hpp's
// NoneType equivalent is implicit; named explicitly here).
type NoneType struct{}

var None = NoneType{}

const (
	True  Boolean = true
	False Boolean = false
)

var (
	IntegerType = NewType("Integer", nil, nil)
	FloatType   = NewType("Float", nil, nil)
	BooleanType = NewType("Boolean", []*Type{IntegerType}, nil)
	NoneTypeT   = NewType("NoneType", nil, nil)
)

func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }
func (i Integer) Type() string   { return "Integer" }
func (i Integer) TypeOf() *Type  { return IntegerType }

func (f Float) String() string { return fmt.Sprintf("%g", float64(f)) }
func (f Float) Type() string   { return "Float" }
func (f Float) TypeOf() *Type  { return FloatType }

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Boolean) Type() string  { return "Boolean" }
func (b Boolean) TypeOf() *Type { return BooleanType }

func (NoneType) String() string { return "none" }
func (NoneType) Type() string   { return "NoneType" }
func (NoneType) TypeOf() *Type  { return NoneTypeT }

func asFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Integer:
		return float64(x), true
	case Float:
		return float64(x), true
	case Boolean:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func bothInt(lhs, rhs Value) (a, b int64, ok bool) {
	ai, aok := lhs.(Integer)
	bi, bok := rhs.(Integer)
	if aok && bok {
		return int64(ai), int64(bi), true
	}
	return 0, 0, false
}

func init() {
	arith := func(op Op, intFn func(a, b int64) (int64, *rterror.Error), floatFn func(a, b float64) (float64, *rterror.Error)) *BuiltinFunction {
		return NewBuiltin(string(op), func(eng *Engine, args []Value) (Value, error) {
			lhs, rhs := args[0], args[1]
			if a, b, ok := bothInt(lhs, rhs); ok && intFn != nil {
				r, errv := intFn(a, b)
				if errv != nil {
					rterror.Raise(errv)
				}
				return Integer(r), nil
			}
			af, aok := asFloat(lhs)
			bf, bok := asFloat(rhs)
			if !aok || !bok {
				rterror.Raise(rterror.NewUnsupportedOp(string(op), TypeOf(lhs).Name, TypeOf(rhs).Name))
			}
			r, errv := floatFn(af, bf)
			if errv != nil {
				rterror.Raise(errv)
			}
			return Float(r), nil
		})
	}

	cmp := NewBuiltin(string(OpCmp), func(eng *Engine, args []Value) (Value, error) {
		lhs, rhs := args[0], args[1]
		af, aok := asFloat(lhs)
		bf, bok := asFloat(rhs)
		if !aok || !bok {
			rterror.Raise(rterror.NewUnsupportedOp(string(OpCmp), TypeOf(lhs).Name, TypeOf(rhs).Name))
		}
		switch {
		case af < bf:
			return Integer(-1), nil
		case af > bf:
			return Integer(1), nil
		default:
			return Integer(0), nil
		}
	})

	numOps := map[string]Value{
		string(OpCmp): cmp,
		string(OpAdd): arith(OpAdd,
			func(a, b int64) (int64, *rterror.Error) { return a + b, nil },
			func(a, b float64) (float64, *rterror.Error) { return a + b, nil }),
		string(OpSub): arith(OpSub,
			func(a, b int64) (int64, *rterror.Error) { return a - b, nil },
			func(a, b float64) (float64, *rterror.Error) { return a - b, nil }),
		string(OpMul): arith(OpMul,
			func(a, b int64) (int64, *rterror.Error) { return a * b, nil },
			func(a, b float64) (float64, *rterror.Error) { return a * b, nil }),
		string(OpDiv): arith(OpDiv,
			nil,
			func(a, b float64) (float64, *rterror.Error) {
				if b == 0 {
					return 0, rterror.NewValue("division by zero")
				}
				return a / b, nil
			}),
		string(OpFloorDiv): arith(OpFloorDiv,
			func(a, b int64) (int64, *rterror.Error) {
				if b == 0 {
					return 0, rterror.NewValue("division by zero")
				}
				q := a / b
				if (a%b != 0) && ((a < 0) != (b < 0)) {
					q--
				}
				return q, nil
			},
			func(a, b float64) (float64, *rterror.Error) {
				if b == 0 {
					return 0, rterror.NewValue("division by zero")
				}
				return floorFloat(a / b), nil
			}),
		string(OpMod): arith(OpMod,
			func(a, b int64) (int64, *rterror.Error) {
				if b == 0 {
					return 0, rterror.NewValue("modulo by zero")
				}
				m := a % b
				if m != 0 && ((m < 0) != (b < 0)) {
					m += b
				}
				return m, nil
			},
			func(a, b float64) (float64, *rterror.Error) {
				if b == 0 {
					return 0, rterror.NewValue("modulo by zero")
				}
				m := modFloat(a, b)
				return m, nil
			}),
		string(OpPow): arith(OpPow, nil, powFloat),
	}
	for k, v := range numOps {
		IntegerType.Attrs[k] = v
		FloatType.Attrs[k] = v
	}
}

func floorFloat(x float64) float64 {
	i := int64(x)
	if float64(i) > x {
		i--
	}
	return float64(i)
}

func modFloat(a, b float64) float64 {
	m := a - floorFloat(a/b)*b
	return m
}

func powFloat(a, b float64) (float64, *rterror.Error) {
	return math.Pow(a, b), nil
}
