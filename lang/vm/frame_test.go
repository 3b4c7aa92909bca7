package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/dollarvm/lang/bytecode"
)

func TestFrameExecuteSimpleArithmetic(t *testing.T) {
	eng := newTestEngine(t)

	// CONST 0 ("1"); CONST 1 ("2"); BINOP "+"; RETURN
	var instrs []byte
	instrs = instr(instrs, bytecode.CONST, 0)
	instrs = instr(instrs, bytecode.CONST, 1)
	instrs = instr(instrs, bytecode.BINOP, 2)
	instrs = instr(instrs, bytecode.RETURN, 0)
	code := newCode("m", instrs, []any{int32(1), int32(2), "+"})

	fr := &Frame{Code: code, Pos: 0, Limit: -1, Env: map[string]Value{}}
	env := fr.Execute(eng)
	require.Equal(t, Integer(3), env["return"])
}

func TestFrameExecuteBuildListAndUnpack(t *testing.T) {
	eng := newTestEngine(t)

	// CONST 0; CONST 1; BUILDLIST 2; UNPACK (2, nostar); SET "b"; SET "a"; then runs off the end (no RETURN)
	var instrs []byte
	instrs = instr(instrs, bytecode.CONST, 0)
	instrs = instr(instrs, bytecode.CONST, 1)
	instrs = instr(instrs, bytecode.BUILDLIST, 2)
	instrs = instr(instrs, bytecode.UNPACK, bytecode.EncodeUnpackArg(2, bytecode.NoStarIndex))
	instrs = instr(instrs, bytecode.SET, 2) // pops top (b's value, i.e. const[1]) into "b"
	instrs = instr(instrs, bytecode.SET, 3) // pops next (const[0]) into "a"
	code := newCode("m", instrs, []any{int32(10), int32(20), "b", "a"})

	fr := &Frame{Code: code, Pos: 0, Limit: -1, Env: map[string]Value{}}
	env := fr.Execute(eng)
	require.Equal(t, Integer(20), env["b"])
	require.Equal(t, Integer(10), env["a"])
}

func TestFrameExecuteJumpIfNot(t *testing.T) {
	eng := newTestEngine(t)

	// CONST 0 (0, falsy); JUMP_IFNOT -> skip to pos at "true branch"; CONST 1 (would be skipped); RETURN
	var instrs []byte
	instrs = instr(instrs, bytecode.CONST, 0)           // pos 0
	instrs = instr(instrs, bytecode.JUMP_IFNOT, 20)      // pos 5, jump to pos 20
	instrs = instr(instrs, bytecode.CONST, 2)           // pos 10 (skipped: pushes 999)
	instrs = instr(instrs, bytecode.RETURN, 0)          // pos 15 (skipped)
	instrs = instr(instrs, bytecode.CONST, 1)           // pos 20
	instrs = instr(instrs, bytecode.RETURN, 0)          // pos 25
	code := newCode("m", instrs, []any{int32(0), int32(7), int32(999)})

	fr := &Frame{Code: code, Pos: 0, Limit: -1, Env: map[string]Value{}}
	env := fr.Execute(eng)
	require.Equal(t, Integer(7), env["return"])
}

func TestFrameExecuteReturnPropagation(t *testing.T) {
	eng := newTestEngine(t)
	eng.st = newAttemptState()

	pending := &GetThunk{Name: DollarName{"x"}}
	getter := NewBuiltin("getter", func(eng *Engine, args []Value) (Value, error) {
		return pending, nil
	})

	// GET "getter"; CALL 0 (returns a thunk -> suspends via return-propagation);
	// CONST 1 (never reached -- deferred into the continuation's subframe)
	var instrs []byte
	instrs = instr(instrs, bytecode.GET, 0)
	instrs = instr(instrs, bytecode.CALL, 0)
	instrs = instr(instrs, bytecode.CONST, 1)
	instrs = instr(instrs, bytecode.RETURN, 0)
	code := newCode("m", instrs, []any{"getter", int32(42)})

	fr := &Frame{Code: code, Pos: 0, Limit: -1, Env: map[string]Value{"getter": getter}}
	env := fr.Execute(eng)

	extract, ok := env["return"].(*NameExtractThunk)
	require.True(t, ok)
	require.Equal(t, "return", extract.Name)

	var delivered Value
	recorder := &recordingSubscriber{set: func(v Value) { delivered = v }}
	eng.SubscribeThunk(extract, recorder)

	// Resolving pending drives the ExecutionThunk's continuation (CONST 1;
	// RETURN), which finalizes with Integer(42), which the NameExtractThunk
	// projects straight through to our recorder.
	eng.FinalizeThunk(pending, None)
	require.Equal(t, Integer(42), delivered)
}

func TestFrameExecuteSkipScope(t *testing.T) {
	eng := newTestEngine(t)
	eng.st = newAttemptState()

	pending := &GetThunk{Name: DollarName{"y"}}
	getter := NewBuiltin("getter", func(eng *Engine, args []Value) (Value, error) {
		return pending, nil
	})

	// GET "getter"; SETSKIP(skipPosition=20, skipSaveStack=0); CALL 0 (suspends,
	// armed -> skip-scope); SET "x" (inside the armed region, published eagerly)
	var instrs []byte
	instrs = instr(instrs, bytecode.GET, 0)
	instrs = instr(instrs, bytecode.SETSKIP, bytecode.EncodeSetSkipArg(20, 0))
	instrs = instr(instrs, bytecode.CALL, 0)
	instrs = instr(instrs, bytecode.SET, 1)
	code := newCode("m", instrs, []any{"getter", "x"})

	fr := &Frame{Code: code, Pos: 0, Limit: -1, Env: map[string]Value{"getter": getter}}
	env := fr.Execute(eng)

	// "x" is published eagerly as a NameExtractThunk, before pending resolves.
	extract, ok := env["x"].(*NameExtractThunk)
	require.True(t, ok)
	require.Equal(t, "x", extract.Name)

	var delivered Value
	recorder := &recordingSubscriber{set: func(v Value) { delivered = v }}
	eng.SubscribeThunk(extract, recorder)

	eng.FinalizeThunk(pending, Integer(42))
	require.Equal(t, Integer(42), delivered)
}

// recordingSubscriber is a minimal Notifiable thunk used only to observe
// what a thunk chain ultimately delivers.
type recordingSubscriber struct{ set func(Value) }

func (r *recordingSubscriber) String() string              { return "<recordingSubscriber>" }
func (r *recordingSubscriber) Type() string                { return "recordingSubscriber" }
func (r *recordingSubscriber) thunkMarker()                {}
func (r *recordingSubscriber) Notify(eng *Engine, v Value) { r.set(v) }
