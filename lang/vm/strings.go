package vm

import (
	"bytes"
	"fmt"

	"github.com/mna/dollarvm/lang/rterror"
)

// String is a UTF-8 string value (object.hpp String).
type String string

// Bytes is a raw byte-string value (object.hpp Bytes).
type Bytes []byte

var (
	StringType = NewType("String", nil, nil)
	BytesType  = NewType("Bytes", nil, nil)
)

func (s String) String() string { return string(s) }
func (s String) Type() string   { return "String" }
func (s String) TypeOf() *Type  { return StringType }

func (b Bytes) String() string { return fmt.Sprintf("b%q", []byte(b)) }
func (b Bytes) Type() string   { return "Bytes" }
func (b Bytes) TypeOf() *Type  { return BytesType }

func init() {
	StringType.Attrs[string(OpAdd)] = NewBuiltin("+", func(eng *Engine, args []Value) (Value, error) {
		lhs, ok1 := args[0].(String)
		rhs, ok2 := args[1].(String)
		if !ok1 || !ok2 {
			rterror.Raise(rterror.NewUnsupportedOp(string(OpAdd), TypeOf(args[0]).Name, TypeOf(args[1]).Name))
		}
		return lhs + rhs, nil
	})
	StringType.Attrs[string(OpCmp)] = NewBuiltin(string(OpCmp), func(eng *Engine, args []Value) (Value, error) {
		lhs, ok1 := args[0].(String)
		rhs, ok2 := args[1].(String)
		if !ok1 || !ok2 {
			rterror.Raise(rterror.NewUnsupportedOp(string(OpCmp), TypeOf(args[0]).Name, TypeOf(args[1]).Name))
		}
		switch {
		case lhs < rhs:
			return Integer(-1), nil
		case lhs > rhs:
			return Integer(1), nil
		default:
			return Integer(0), nil
		}
	})

	BytesType.Attrs[string(OpAdd)] = NewBuiltin("+", func(eng *Engine, args []Value) (Value, error) {
		lhs, ok1 := args[0].(Bytes)
		rhs, ok2 := args[1].(Bytes)
		if !ok1 || !ok2 {
			rterror.Raise(rterror.NewUnsupportedOp(string(OpAdd), TypeOf(args[0]).Name, TypeOf(args[1]).Name))
		}
		out := make(Bytes, 0, len(lhs)+len(rhs))
		out = append(out, lhs...)
		out = append(out, rhs...)
		return out, nil
	})
	BytesType.Attrs[string(OpCmp)] = NewBuiltin(string(OpCmp), func(eng *Engine, args []Value) (Value, error) {
		lhs, ok1 := args[0].(Bytes)
		rhs, ok2 := args[1].(Bytes)
		if !ok1 || !ok2 {
			rterror.Raise(rterror.NewUnsupportedOp(string(OpCmp), TypeOf(args[0]).Name, TypeOf(args[1]).Name))
		}
		return Integer(bytes.Compare(lhs, rhs)), nil
	})
}
