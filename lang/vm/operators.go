package vm

import (
	"github.com/mna/dollarvm/lang/rterror"
)

// installObjectOperators defines the universal operator table on the root
// Object type: three-way compare defaults to UnsupportedOperation; ==, !=,
// <, <=, >, >= are derived from it, with == falling back to reference
// equality when <=> is unsupported; arithmetic and indexing default to
// UnsupportedOperation so the reflected-operand fallback in Dispatch gets
// a chance. Grounded in object.cpp make_top_types().
func installObjectOperators(obj *Type) {
	unsupported := func(op Op) *BuiltinFunction {
		return NewBuiltin(string(op), func(eng *Engine, args []Value) (Value, error) {
			lhs, rhs := args[0], args[1]
			rterror.Raise(rterror.NewUnsupportedOp(string(op), TypeOf(lhs).Name, TypeOf(rhs).Name))
			return nil, nil
		})
	}

	for _, op := range []Op{OpCmp, OpAdd, OpSub, OpMul, OpDiv, OpFloorDiv, OpMod, OpPow, OpIndex} {
		obj.Attrs[string(op)] = unsupported(op)
		obj.Attrs[string(op.Reflected())] = unsupported(op.Reflected())
	}

	cmpDerived := func(pred func(c int) bool, fallbackRefEq bool) *BuiltinFunction {
		return NewBuiltin("cmp-derived", func(eng *Engine, args []Value) (Value, error) {
			lhs, rhs := args[0], args[1]
			c, unsupportedCmp := threeWayCompare(eng, lhs, rhs)
			if unsupportedCmp != nil {
				if fallbackRefEq {
					return Boolean(refEqual(lhs, rhs)), nil
				}
				panic(unsupportedCmp)
			}
			return Boolean(pred(c)), nil
		})
	}

	obj.Attrs[string(OpEq)] = cmpDerived(func(c int) bool { return c == 0 }, true)
	obj.Attrs[string(OpNe)] = NewBuiltin("!=", func(eng *Engine, args []Value) (Value, error) {
		eqFn := obj.Attrs[string(OpEq)].(*BuiltinFunction)
		v, err := eqFn.Fn(eng, args)
		if err != nil {
			return nil, err
		}
		return Boolean(!bool(v.(Boolean))), nil
	})
	obj.Attrs[string(OpLt)] = cmpDerived(func(c int) bool { return c < 0 }, false)
	obj.Attrs[string(OpLe)] = cmpDerived(func(c int) bool { return c <= 0 }, false)
	obj.Attrs[string(OpGt)] = cmpDerived(func(c int) bool { return c > 0 }, false)
	obj.Attrs[string(OpGe)] = cmpDerived(func(c int) bool { return c >= 0 }, false)
}

// threeWayCompare calls lhs's <=> (via its own MRO, not through Dispatch's
// reflected fallback -- three-way compare is not itself reflected) and
// returns (result, nil), or (0, exception) if unsupported.
func threeWayCompare(eng *Engine, lhs, rhs Value) (c int, unsupported *rterror.Exception) {
	fn, _, _ := lookupAttr(TypeOf(lhs), string(OpCmp))
	res, exc := tryCall(eng, fn, []Value{lhs, rhs})
	if exc != nil {
		return 0, exc
	}
	return int(res.(Integer)), nil
}

func refEqual(a, b Value) bool {
	type identer interface{ identity() uintptr }
	if ai, ok := a.(identer); ok {
		if bi, ok := b.(identer); ok {
			return ai.identity() == bi.identity()
		}
	}
	return a == b
}

// tryCall invokes fn with args, recovering an in-language *rterror.Exception
// panic rather than letting it propagate, so operator dispatch logic can
// inspect it. Any other panic (host errors, unrecovered Go panics) is
// re-raised as-is.
func tryCall(eng *Engine, fn Value, args []Value) (result Value, exc *rterror.Exception) {
	defer func() {
		if r := recover(); r != nil {
			if e := rterror.Recover(r); e != nil {
				exc = e
				return
			}
			panic(r)
		}
	}()
	v, err := Call(eng, fn, args)
	if err != nil {
		panic(err)
	}
	return v, nil
}

// Dispatch implements the left-first-with-reflected-fallback binary
// operator protocol (spec.md §4.1): lookup op on lhs's MRO (a HostError
// fatal if absent -- should not happen since Object always defines a
// default), call it; on UnsupportedOperation, retry "r"+op on rhs; if that
// too is unsupported, re-raise the original verbatim.
func Dispatch(eng *Engine, op Op, lhs, rhs Value) Value {
	lfn, _, ok := lookupAttr(TypeOf(lhs), string(op))
	if !ok {
		fatal("operator %q not defined on type %q (Object must define a default)", op, TypeOf(lhs).Name)
	}
	res, exc := tryCall(eng, lfn, []Value{lhs, rhs})
	if exc == nil {
		return res
	}
	if !exc.Reason.Is(rterror.KindUnsupportedOp) {
		panic(exc)
	}

	rop := op.Reflected()
	rfn, _, ok := lookupAttr(TypeOf(rhs), string(rop))
	if !ok {
		panic(exc)
	}
	res2, exc2 := tryCall(eng, rfn, []Value{rhs, lhs})
	if exc2 != nil {
		if exc2.Reason.Is(rterror.KindUnsupportedOp) {
			panic(exc) // re-raise the original verbatim
		}
		panic(exc2)
	}
	return res2
}

// Compare is the standalone API for comparisons, used outside of BINOP
// dispatch (e.g. List element equality).
func Compare(eng *Engine, op Op, x, y Value) (bool, error) {
	res := Dispatch(eng, op, x, y)
	return bool(res.(Boolean)), nil
}
