package vm

import (
	"bytes"
	"context"
	"testing"

	"github.com/mna/dollarvm/lang/bytecode"
)

// newTestEngine builds a bare Engine suitable for exercising operator
// tables and builtins directly, without driving a full Finish() loop.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	th := NewThread(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, nil)
	return NewEngine(th, nil, nil, nil)
}

// instr appends one fixed-width (op, arg) instruction to b.
func instr(b []byte, op bytecode.Op, arg uint32) []byte {
	return append(b, byte(op),
		byte(arg), byte(arg>>8), byte(arg>>16), byte(arg>>24))
}

// newCode builds a *bytecode.Code from raw instructions and a consts pool,
// standing in for a compiler this module does not implement.
func newCode(name string, instrs []byte, consts []any) *bytecode.Code {
	return &bytecode.Code{
		ModuleName: name,
		FName:      name + ".dvc",
		Instr:      instrs,
		Consts:     consts,
	}
}
