package vm

import (
	"fmt"
	"strings"

	"github.com/mna/dollarvm/lang/bytecode"
	"github.com/mna/dollarvm/lang/rterror"
)

// envAdditions builds the starting top-level environment for exec_code
// (spec.md §4.8): the engine-bound dollar-name protocol (`$?`, `$=`,
// `alias`, `import`, `subs`, `test_thunk`) plus the peripheral built-in
// library recovered from original_source/nsy3/executor/src/builtins.cpp
// (print, ->, [], assert, Signature) -- see SPEC_FULL.md §4.9.
func envAdditions(eng *Engine) map[string]Value {
	return map[string]Value{
		"$?": NewBuiltin("$?", biGet),
		"$=": NewBuiltin("$=", biSet),
		"alias": NewBuiltin("alias", biAlias),
		"import": NewBuiltin("import", biImport),
		"subs": NewBuiltin("subs", biSubs),
		"test_thunk": NewBuiltin("test_thunk", biTestThunk),

		"print":  NewBuiltin("print", biPrint),
		"->":     NewBuiltin("->", biArrow),
		"[]":     NewBuiltin("[]", biBraks),
		"assert": NewBuiltin("assert", biAssert),

		"Signature": SignatureType,
	}
}

func argDollarName(v Value) DollarName {
	l, ok := v.(*List)
	if !ok {
		rterror.Raise(rterror.NewType("dollar name argument must be a list of strings, got %s", TypeOf(v).Name))
	}
	out := make(DollarName, len(l.elems))
	for i, e := range l.elems {
		s, ok := e.(String)
		if !ok {
			rterror.Raise(rterror.NewType("dollar name segment %d is not a String", i))
		}
		out[i] = string(s)
	}
	return out
}

func argInt(v Value, what string) int {
	i, ok := v.(Integer)
	if !ok {
		rterror.Raise(rterror.NewType("%s must be an Integer, got %s", what, TypeOf(v).Name))
	}
	return int(i)
}

func biGet(eng *Engine, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("$?() takes 2 arguments (name, flags)")
	}
	name := argDollarName(args[0])
	flags := argInt(args[1], "$?() flags")
	return eng.Get(name, flags), nil
}

func biSet(eng *Engine, args []Value) (Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("$=() takes 3 arguments (name, value, flags)")
	}
	name := argDollarName(args[0])
	flags := argInt(args[2], "$=() flags")
	return eng.Set(name, args[1], flags), nil
}

func biAlias(eng *Engine, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("alias() takes 2 arguments (name, target)")
	}
	eng.Alias(argDollarName(args[0]), argDollarName(args[1]))
	return None, nil
}

func biImport(eng *Engine, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("import() takes 1 argument (name)")
	}
	name, ok := args[0].(String)
	if !ok {
		return nil, fmt.Errorf("import(): name must be a String")
	}
	return eng.Import(string(name)), nil
}

func biSubs(eng *Engine, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("subs() takes 1 argument (parent)")
	}
	return eng.Subs(argDollarName(args[0])), nil
}

func biTestThunk(eng *Engine, args []Value) (Value, error) {
	name := ""
	if len(args) == 1 {
		if s, ok := args[0].(String); ok {
			name = string(s)
		}
	}
	return eng.AddTestThunk(name), nil
}

func biPrint(eng *Engine, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	if eng.Thread != nil && eng.Thread.Stdout != nil {
		fmt.Fprintln(eng.Thread.Stdout, strings.Join(parts, " "))
	}
	return None, nil
}

// biArrow implements `->`, the programmatic Function constructor
// (SPEC_FULL.md §4.9): args are (Signature, Code, offset).
func biArrow(eng *Engine, args []Value) (Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("->() takes 3 arguments (signature, code, offset)")
	}
	sig, ok := args[0].(*Signature)
	if !ok {
		return nil, fmt.Errorf("->(): first argument must be a Signature")
	}
	code, ok := args[1].(*wrappedCode)
	if !ok {
		return nil, fmt.Errorf("->(): second argument must be a Code value")
	}
	offset := argInt(args[2], "->() offset")
	return &Function{Code: code.Code, Offset: offset, Sig: sig, Env: map[string]Value{}}, nil
}

func biBraks(eng *Engine, args []Value) (Value, error) {
	return &List{elems: append([]Value(nil), args...)}, nil
}

func biAssert(eng *Engine, args []Value) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("assert() takes 1 or 2 arguments")
	}
	if truthy(args[0]) {
		return None, nil
	}
	msg := "assertion failed"
	if len(args) == 2 {
		msg = args[1].String()
	}
	rterror.Raise(rterror.NewAssertion("%s", msg))
	return None, nil
}

// wrappedCode exposes a *bytecode.Code as a VM Value so ->'s second
// argument (and test code building Function literals) has something to
// name; the VM otherwise never sees raw *bytecode.Code objects directly.
type wrappedCode struct {
	Code *bytecode.Code
}

var CodeType = NewType("Code", nil, nil)

func WrapCode(c *bytecode.Code) Value { return &wrappedCode{Code: c} }

func (c *wrappedCode) String() string { return fmt.Sprintf("<code %s>", c.Code.ModuleName) }
func (c *wrappedCode) Type() string   { return "Code" }
func (c *wrappedCode) TypeOf() *Type  { return CodeType }
