package maincmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mna/mainer"

	"github.com/mna/dollarvm/internal/runspec"
	"github.com/mna/dollarvm/lang/bytecode"
)

// Runspec loads a Runspec document (wire format, or YAML with --yaml) and
// runs the modules/files/conclusion it names (spec.md §6.1).
func (c *Cmd) Runspec(ctx context.Context, stdio mainer.Stdio, args []string) error {
	rsPath := args[0]

	var r *os.File
	if rsPath == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(rsPath)
		if err != nil {
			return printError(stdio, err)
		}
		defer f.Close()
		r = f
	}

	var rs *runspec.RunSpec
	var err error
	if c.YAML {
		baseDir := ""
		if rsPath != "-" {
			baseDir = filepath.Dir(rsPath)
		}
		rs, err = runspec.ReadYAML(r, baseDir)
	} else {
		rs, err = runspec.ReadWire(r)
	}
	if err != nil {
		return printError(stdio, err)
	}

	codes := make([]*bytecode.Code, 0, len(rs.Files))
	for _, fname := range rs.Files {
		code, err := bytecode.ReadFile(fname)
		if err != nil {
			return printError(stdio, err)
		}
		codes = append(codes, code)
	}

	var conclusion *bytecode.Code
	if len(rs.Conclusion) > 0 {
		conclusion, err = bytecode.ReadFrom(bytes.NewReader(rs.Conclusion))
		if err != nil {
			return printError(stdio, fmt.Errorf("runspec: decoding conclusion: %w", err))
		}
	}

	return c.runEngine(ctx, stdio, codes, rs.Modules, conclusion)
}
