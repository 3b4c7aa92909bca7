package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/mna/dollarvm/lang/bytecode"
)

// Dis prints the disassembly of one or more compiled bytecode files
// (spec.md §6.2).
func (c *Cmd) Dis(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, fname := range args {
		code, err := bytecode.ReadFile(fname)
		if err != nil {
			return printError(stdio, err)
		}
		code.Disassemble(stdio.Stdout, nil)
	}
	return nil
}
