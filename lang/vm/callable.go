package vm

import (
	"fmt"
	"strings"

	"github.com/mna/dollarvm/lang/bytecode"
	"github.com/mna/dollarvm/lang/rterror"
)

// BuiltinFunction wraps a native Go function as a callable Value, grounded
// in object.hpp's BuiltinFunction/FunctionHolder (simplified here to a
// plain variadic signature, since this module has no compiler emitting
// strongly-typed argument lists the way functionutils.hpp's
// convert_from_objref trait system would require).
type BuiltinFunction struct {
	BFName string
	Fn     func(eng *Engine, args []Value) (Value, error)
}

var BuiltinFunctionType = NewType("builtin_function", nil, nil)

func NewBuiltin(name string, fn func(eng *Engine, args []Value) (Value, error)) *BuiltinFunction {
	return &BuiltinFunction{BFName: name, Fn: fn}
}

func (b *BuiltinFunction) String() string   { return fmt.Sprintf("<built-in function %s>", b.BFName) }
func (b *BuiltinFunction) Type() string     { return "builtin_function" }
func (b *BuiltinFunction) TypeOf() *Type    { return BuiltinFunctionType }
func (b *BuiltinFunction) Name() string     { return b.BFName }

// BoundMethod pairs a receiver with a function, produced by GetAttr when
// attribute lookup finds a *BuiltinFunction (object.hpp BoundMethod).
type BoundMethod struct {
	Self Value
	Func Value
}

var BoundMethodType = NewType("bound_method", nil, nil)

func (b *BoundMethod) String() string { return fmt.Sprintf("<bound method of %s>", b.Self.Type()) }
func (b *BoundMethod) Type() string   { return "bound_method" }
func (b *BoundMethod) TypeOf() *Type  { return BoundMethodType }

// Property wraps a getter function invoked immediately (with self as sole
// argument) when looked up via GetAttr (object.hpp Property).
type Property struct {
	Getter Value
}

var PropertyType = NewType("property", nil, nil)

func (p *Property) String() string { return "<property>" }
func (p *Property) Type() string   { return "property" }
func (p *Property) TypeOf() *Type  { return PropertyType }

// Signature flags (bytecode.cpp Signature).
const (
	VarArgs byte = 1 << iota
	VarKwargs
)

// Signature describes a Function's formal parameters: names (positional,
// in order), a tail of defaults aligned to the end of names, and flags
// marking a trailing *args/**kwargs name. Grounded in bytecode.cpp
// Signature.
type Signature struct {
	Names    []string
	Defaults []Value
	Flags    byte
}

var SignatureType *Type

func init() {
	SignatureType = NewType("Signature", nil, map[string]Value{
		"__new__": NewBuiltin("Signature", func(eng *Engine, args []Value) (Value, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("Signature() takes 3 arguments")
			}
			names, ok := args[0].(*List)
			if !ok {
				return nil, fmt.Errorf("Signature(): names must be a list")
			}
			defaults, ok := args[1].(*List)
			if !ok {
				return nil, fmt.Errorf("Signature(): defaults must be a list")
			}
			flags, ok := args[2].(Integer)
			if !ok {
				return nil, fmt.Errorf("Signature(): flags must be an integer")
			}
			sig := &Signature{Flags: byte(flags)}
			for _, n := range names.elems {
				sig.Names = append(sig.Names, string(n.(String)))
			}
			sig.Defaults = append(sig.Defaults, defaults.elems...)
			return sig, nil
		}),
	})
}

func (s *Signature) Type() string  { return "Signature" }
func (s *Signature) TypeOf() *Type { return SignatureType }

// String reconstructs a human form, e.g. "Signature(a, b=1, *args,
// **kwargs)", grounded in bytecode.cpp Signature::to_str.
func (s *Signature) String() string {
	var parts []string
	names := s.Names
	nDefaults := len(s.Defaults)
	nPositional := len(names)
	if s.Flags&VarKwargs != 0 {
		nPositional--
	}
	if s.Flags&VarArgs != 0 {
		nPositional--
	}
	nPlain := nPositional - nDefaults

	i := 0
	for ; i < nPlain; i++ {
		parts = append(parts, names[i])
	}
	for d := 0; i < nPositional; i, d = i+1, d+1 {
		parts = append(parts, fmt.Sprintf("%s=%s", names[i], s.Defaults[d].String()))
	}
	if s.Flags&VarArgs != 0 {
		parts = append(parts, "*"+names[i])
		i++
	}
	if s.Flags&VarKwargs != 0 {
		parts = append(parts, "**"+names[i])
		i++
	}
	return "Signature(" + strings.Join(parts, ", ") + ")"
}

// Function is a user-defined function: a Code object, an entry offset, a
// Signature and a captured environment (bytecode.cpp Function).
type Function struct {
	Code   *bytecode.Code
	Offset int
	Sig    *Signature
	Env    map[string]Value
}

var FunctionType *Type

func init() {
	FunctionType = NewType("Function", nil, map[string]Value{
		"signature": &Property{Getter: NewBuiltin("signature", func(eng *Engine, args []Value) (Value, error) {
			return args[0].(*Function).Sig, nil
		})},
	})
}

func (f *Function) String() string { return "F(?)" }
func (f *Function) Type() string   { return "Function" }
func (f *Function) TypeOf() *Type  { return FunctionType }

// call binds args to f's Signature and runs a fresh Frame over f.Code,
// returning the "return" binding of the resulting env, per spec.md §4.5.
func (f *Function) call(eng *Engine, args []Value) (Value, error) {
	newEnv := cloneEnv(f.Env)

	nMax := len(f.Sig.Names)
	nMin := nMax - len(f.Sig.Defaults)
	if len(args) > nMax || len(args) < nMin {
		rterror.Raise(rterror.NewValue("wrong number of arguments: got %d, want %d..%d", len(args), nMin, nMax))
	}

	i := 0
	for ; i < len(args); i++ {
		newEnv[f.Sig.Names[i]] = args[i]
	}
	for ; i < len(f.Sig.Names); i++ {
		newEnv[f.Sig.Names[i]] = f.Sig.Defaults[i-nMin]
	}

	fr := &Frame{Code: f.Code, Pos: f.Offset, Limit: -1, Env: newEnv}
	resultEnv := fr.Execute(eng)
	if v, ok := resultEnv["return"]; ok {
		return v, nil
	}
	return None, nil
}

// Call calls the function or Callable value fn with the given positional
// arguments, threading eng through so that user-defined Functions (and
// any builtin needing engine access, e.g. $?/$=) can execute.
func Call(eng *Engine, fn Value, args []Value) (Value, error) {
	switch c := fn.(type) {
	case *BuiltinFunction:
		return c.Fn(eng, args)
	case *BoundMethod:
		all := make([]Value, 0, len(args)+1)
		all = append(all, c.Self)
		all = append(all, args...)
		return Call(eng, c.Func, all)
	case *Function:
		return callWithStackTrace(eng, c, args)
	case *Property:
		return Call(eng, c.Getter, args)
	case *Type:
		ctor, _, ok := lookupAttr(c, "__new__")
		if !ok {
			return nil, fmt.Errorf("type %q is not callable (no __new__)", c.Name)
		}
		return Call(eng, ctor, args)
	default:
		return nil, fmt.Errorf("object of type %s is not callable", TypeOf(fn).Name)
	}
}

// callWithStackTrace is the frame boundary spec.md §7 describes: if fn's
// body raises an in-language *rterror.Exception, this call site appends its
// own (fname, lineno) before re-raising, so a panic crossing N nested
// Function calls accrues an N-entry traceback by the time it reaches the
// top-level recover in internal/maincmd. Host errors (plain panics that
// aren't an *rterror.Exception) pass through unchanged.
func callWithStackTrace(eng *Engine, fn *Function, args []Value) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*rterror.Exception); ok {
				panic(ex.AppendStack(fn.Code.FName, fn.Code.LineForPosition(uint32(fn.Offset))))
			}
			panic(r)
		}
	}()
	return fn.call(eng, args)
}
