package maincmd

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/mna/mainer"

	"github.com/mna/dollarvm/internal/config"
	"github.com/mna/dollarvm/lang/bytecode"
	"github.com/mna/dollarvm/lang/rterror"
	"github.com/mna/dollarvm/lang/vm"
)

// Run loads and runs one or more compiled bytecode files as modules, then
// prints the resolved dollar-name map (spec.md §6.3).
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	codes := make([]*bytecode.Code, 0, len(args))
	for _, fname := range args {
		code, err := bytecode.ReadFile(fname)
		if err != nil {
			return printError(stdio, err)
		}
		codes = append(codes, code)
	}
	return c.runEngine(ctx, stdio, codes, nil, nil)
}

// runEngine is shared by Run and Runspec: it builds the Thread/Engine,
// drives Finish, and prints the result or error per spec.md §6.3/§7.
func (c *Cmd) runEngine(ctx context.Context, stdio mainer.Stdio, codes []*bytecode.Code, preregister []string, conclusion *bytecode.Code) (err error) {
	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		return printError(stdio, cfgErr)
	}

	th := vm.NewThread(ctx, stdio.Stdout, stdio.Stderr, stdio.Stdin)
	th.MaxSteps = cfg.MaxSteps
	th.MaxResets = cfg.MaxResets
	th.Debug = cfg.Debug || c.Debug

	if !c.NoCatch {
		defer func() {
			if r := recover(); r != nil {
				err = printError(stdio, describePanic(r))
			}
		}()
	}

	eng := vm.NewEngine(th, codes, preregister, conclusion)
	result, runErr := eng.Finish()
	if runErr != nil {
		return printError(stdio, runErr)
	}

	printDollarValues(stdio, result)
	return nil
}

func describePanic(r interface{}) error {
	if ex := rterror.Recover(r); ex != nil {
		return ex
	}
	if herr, ok := r.(error); ok {
		return herr
	}
	return fmt.Errorf("panic: %v", r)
}

func printDollarValues(stdio mainer.Stdio, result map[string]vm.Value) {
	names := make([]string, 0, len(result))
	for k := range result {
		names = append(names, k)
	}
	slices.Sort(names)

	fmt.Fprintln(stdio.Stdout, "=== MARKER ===")
	for _, n := range names {
		fmt.Fprintf(stdio.Stdout, "%s = %s\n", n, result[n].String())
	}
	fmt.Fprintln(stdio.Stdout, "=== END MARKER ===")
}
