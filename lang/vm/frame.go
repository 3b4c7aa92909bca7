package vm

import (
	"github.com/mna/dollarvm/lang/bytecode"
	"github.com/mna/dollarvm/lang/rterror"
)

// Frame is an immutable snapshot of VM execution state: code, current
// instruction offset, execution limit, environment and operand stack
// (spec.md §3). Execute never mutates its receiver; it produces a new env
// (possibly containing pending-thunk bindings for a deferred
// continuation) per spec.md §4.3/§4.4.
type Frame struct {
	Code  *bytecode.Code
	Pos   int
	Limit int // end offset, exclusive
	Env   map[string]Value
	Stack []Value
}

// Execute runs this frame's instructions over [Pos, Limit), returning the
// resulting environment. On RETURN or falling off Limit, that is simply
// the accumulated env. If a Thunk is pushed at some point (from CALL,
// GETATTR, GET, or BINOP), execution instead defers the remainder as a
// continuation (spec.md §4.4) and returns early with a "return"-thunk
// binding (return-propagation) or with a scoped set of NameExtractThunk
// bindings (skip-scope) -- in both cases uniformly as an env, per this
// port's decision to model Frame.execute as always returning an Env (see
// DESIGN.md).
func (f *Frame) Execute(eng *Engine) map[string]Value {
	env := cloneEnv(f.Env)
	stack := append([]Value(nil), f.Stack...)
	pos := f.Pos
	limit := f.Limit
	if limit < 0 {
		limit = len(f.Code.Instr)
	}

	skipArmed := false
	var skipPosition, skipSaveStack int

	push := func(v Value) (done bool, resultEnv map[string]Value) {
		th, isThunk := v.(Thunk)
		if skipArmed {
			skipArmed = false
			if isThunk {
				return true, f.splitSkipScope(eng, env, stack, pos, skipPosition, skipSaveStack, th)
			}
		} else if isThunk {
			return true, pushReturnPropagation(eng, f.Code, pos, limit, env, stack, th)
		}
		stack = append(stack, v)
		return false, nil
	}

	for pos < limit {
		op := bytecode.Op(f.Code.Instr[pos])
		arg := leUint32(f.Code.Instr[pos+1 : pos+5])
		next := pos + bytecode.InstrWidth

		switch op {
		case bytecode.CONST:
			v := constValue(eng, f.Code, int(arg))
			pos = next
			if done, e := push(v); done {
				return e
			}

		case bytecode.GET:
			name, _ := f.Code.Consts[arg].(string)
			v, ok := env[name]
			if !ok {
				rterror.Raise(rterror.NewName("name %q is not defined", name))
			}
			pos = next
			if done, e := push(v); done {
				return e
			}

		case bytecode.SET:
			name, _ := f.Code.Consts[arg].(string)
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			env[name] = v
			pos = next

		case bytecode.GETATTR:
			name := stack[len(stack)-1]
			obj := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			v := GetAttr(eng, obj, string(name.(String)))
			pos = next
			if done, e := push(v); done {
				return e
			}

		case bytecode.GETENV:
			pos = next
			if done, e := push(&Env{Bindings: cloneEnv(env)}); done {
				return e
			}

		case bytecode.CALL:
			n := int(arg)
			args := append([]Value(nil), stack[len(stack)-n:]...)
			callee := stack[len(stack)-n-1]
			stack = stack[:len(stack)-n-1]
			res, err := Call(eng, callee, args)
			if err != nil {
				panic(err)
			}
			pos = next
			if done, e := push(res); done {
				return e
			}

		case bytecode.BINOP:
			opName, _ := f.Code.Consts[arg].(string)
			rhs := stack[len(stack)-1]
			lhs := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			res := Dispatch(eng, Op(opName), lhs, rhs)
			pos = next
			if done, e := push(res); done {
				return e
			}

		case bytecode.JUMP:
			pos = int(arg)

		case bytecode.JUMP_IF:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if truthy(v) {
				pos = int(arg)
			} else {
				pos = next
			}

		case bytecode.JUMP_IFNOT:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !truthy(v) {
				pos = int(arg)
			} else {
				pos = next
			}

		case bytecode.JUMP_IF_KEEP:
			v := stack[len(stack)-1]
			if truthy(v) {
				pos = int(arg)
			} else {
				pos = next
			}

		case bytecode.JUMP_IFNOT_KEEP:
			v := stack[len(stack)-1]
			if !truthy(v) {
				pos = int(arg)
			} else {
				pos = next
			}

		case bytecode.DROP:
			n := int(arg)
			stack = stack[:len(stack)-n]
			pos = next

		case bytecode.DUP:
			n := int(arg)
			top := stack[len(stack)-1]
			for i := 0; i < n; i++ {
				stack = append(stack, top)
			}
			pos = next

		case bytecode.ROT:
			n := int(arg)
			top := stack[len(stack)-1]
			dst := len(stack) - 1 - n
			copy(stack[dst+1:], stack[dst:len(stack)-1])
			stack[dst] = top
			pos = next

		case bytecode.RROT:
			n := int(arg)
			src := len(stack) - 1 - n
			v := stack[src]
			copy(stack[src:len(stack)-1], stack[src+1:])
			stack[len(stack)-1] = v
			pos = next

		case bytecode.BUILDLIST:
			n := int(arg)
			elems := append([]Value(nil), stack[len(stack)-n:]...)
			stack = stack[:len(stack)-n]
			pos = next
			if done, e := push(&List{elems: elems}); done {
				return e
			}

		case bytecode.UNPACK:
			count, starIndex := bytecode.SplitUnpackArg(arg)
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			l, ok := v.(*List)
			if !ok {
				rterror.Raise(rterror.NewValue("cannot unpack non-list value of type %s", TypeOf(v).Name))
			}
			stack = unpackList(l, count, starIndex, stack)
			pos = next

		case bytecode.RETURN:
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			env["return"] = v
			return env

		case bytecode.KWARG:
			fatal("KWARG opcode encountered; not implemented (spec.md §9 open question)")

		case bytecode.SETSKIP:
			skipPosition, skipSaveStack = bytecode.SplitSetSkipArg(arg)
			skipArmed = true
			pos = next

		default:
			fatal("unknown opcode %d at position %d", byte(op), pos)
		}
	}
	return env
}

// unpackList implements UNPACK's contract (spec.md §4.2).
func unpackList(l *List, count, starIndex int, stack []Value) []Value {
	if starIndex == bytecode.NoStarIndex {
		if len(l.elems) != count {
			rterror.Raise(rterror.NewValue("unpack: expected %d elements, got %d", count, len(l.elems)))
		}
		return append(stack, l.elems...)
	}
	if len(l.elems) < count-1 {
		rterror.Raise(rterror.NewValue("unpack: expected at least %d elements, got %d", count-1, len(l.elems)))
	}
	stack = append(stack, l.elems[:starIndex]...)
	mid := l.elems[starIndex : len(l.elems)-(count-1-starIndex)]
	stack = append(stack, &List{elems: append([]Value(nil), mid...)})
	stack = append(stack, l.elems[len(l.elems)-(count-1-starIndex):]...)
	return stack
}

// splitSkipScope implements the skip-scope suspension case (spec.md §4.4
// step by step): detach the sub-stack above skipSaveStack, build a
// subframe ending at skipPosition, wrap it in an ExecutionThunk subscribed
// to th, publish every SET target in the armed region as a
// NameExtractThunk subscribed to that ExecutionThunk, then resume the
// enclosing frame at skipPosition with the (unmodified aside from the new
// thunk bindings) env and the stack below skipSaveStack; the detached
// sub-stack goes to the subframe.
func (f *Frame) splitSkipScope(eng *Engine, env map[string]Value, stack []Value, pos, skipPosition, skipSaveStack int, th Thunk) map[string]Value {
	subStack := append([]Value(nil), stack[skipSaveStack:]...)
	mainStack := append([]Value(nil), stack[:skipSaveStack]...)

	subframe := &Frame{Code: f.Code, Pos: pos, Limit: skipPosition, Env: cloneEnv(env), Stack: subStack}
	execThunk := &ExecutionThunk{Frame: subframe}
	eng.SubscribeThunk(th, execThunk)

	for p := pos; p+bytecode.InstrWidth <= skipPosition; p += bytecode.InstrWidth {
		op := bytecode.Op(f.Code.Instr[p])
		if op != bytecode.SET {
			continue
		}
		arg := leUint32(f.Code.Instr[p+1 : p+5])
		name, _ := f.Code.Consts[arg].(string)
		extract := &NameExtractThunk{Name: name, Source: execThunk}
		eng.SubscribeThunk(execThunk, extract)
		env[name] = extract
	}

	resumeFrame := &Frame{Code: f.Code, Pos: skipPosition, Limit: f.Limit, Env: env, Stack: mainStack}
	return resumeFrame.Execute(eng)
}

// pushReturnPropagation implements the return-propagation suspension case
// (spec.md §4.4): the remainder of this frame is deferred as an
// ExecutionThunk subscribed to the thunk being pushed; a
// NameExtractThunk("return") is subscribed to it, bound as "return" in
// env, and the frame terminates returning env immediately.
func pushReturnPropagation(eng *Engine, code *bytecode.Code, nextPos, limit int, env map[string]Value, stack []Value, th Thunk) map[string]Value {
	subframe := &Frame{Code: code, Pos: nextPos, Limit: limit, Env: cloneEnv(env), Stack: append([]Value(nil), stack...)}
	execThunk := &ExecutionThunk{Frame: subframe}
	eng.SubscribeThunk(th, execThunk)
	extract := &NameExtractThunk{Name: "return", Source: execThunk}
	eng.SubscribeThunk(execThunk, extract)
	env["return"] = extract
	return env
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// constValue lazily converts a wire-format constant from the Code's pool
// into a VM Value the first time it is used.
func constValue(eng *Engine, code *bytecode.Code, idx int) Value {
	return eng.wireToValue(code.Consts[idx])
}
