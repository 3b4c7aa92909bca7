package bytecode_test

import (
	"bytes"
	"flag"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/mna/dollarvm/internal/filetest"
	"github.com/mna/dollarvm/lang/bytecode"
)

var testUpdateDisassembleTests = flag.Bool("test.update-disassemble-tests", false, "If set, replace expected disassemble test results with actual results.")

// fakeFileInfo names a golden file without requiring a real source file on
// disk -- this package has no compiler to produce one from (spec.md §1
// keeps the bytecode format's producer out of scope), so the fixture Code
// is built directly in Go instead.
type fakeFileInfo struct{ name string }

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 0 }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() any           { return nil }

func TestDisassemble(t *testing.T) {
	code := &bytecode.Code{
		ModuleName: "demo",
		FName:      "demo.dvc",
		Instr: []byte{
			byte(bytecode.CONST), 0, 0, 0, 0,
			byte(bytecode.CONST), 1, 0, 0, 0,
			byte(bytecode.BINOP), 2, 0, 0, 0,
			byte(bytecode.RETURN), 0, 0, 0, 0,
		},
		Consts: []any{int32(1), int32(2), "+"},
	}

	var buf bytes.Buffer
	code.Disassemble(&buf, nil)

	resultDir := filepath.Join("testdata", "out")
	filetest.DiffOutput(t, fakeFileInfo{name: "demo.dvc"}, buf.String(), resultDir, testUpdateDisassembleTests)
}
