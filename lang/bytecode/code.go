// Package bytecode implements the wire-format codec and the immutable
// Code object: the compiled unit consumed by the VM (lang/vm), per
// spec.md §6. The bytecode file format, and any compiler producing it,
// are out of scope (spec.md §1) -- this package only reads and writes the
// wire contract and the Code object built from it.
package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Code is an immutable compiled unit: instruction stream, constants pool,
// line table, source filename and module name (object.hpp/bytecode.cpp
// `Code`).
type Code struct {
	ModuleName string
	FName      string
	Instr      []byte // length a multiple of InstrWidth
	Consts     []any  // wire values; lang/vm converts these lazily to Values
	LineNoTab  []byte // (bytecode_delta u8, line_delta i8) pairs
}

// ReadFile loads a Code object from a file containing two back-to-back
// serialized wire values: a header mapping then a body mapping, per
// spec.md §6.
func ReadFile(fname string) (*Code, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("bytecode: open %s: %w", fname, err)
	}
	defer f.Close()
	return ReadFrom(bufio.NewReader(f))
}

// ReadFrom loads a Code object from r, which must contain a header mapping
// followed by a body mapping (the same shape as ReadFile, without
// requiring a named file on disk).
func ReadFrom(r io.Reader) (*Code, error) {
	br := byteReader(r)

	header, err := ReadValue(br)
	if err != nil {
		return nil, fmt.Errorf("bytecode: reading header: %w", err)
	}
	body, err := ReadValue(br)
	if err != nil {
		return nil, fmt.Errorf("bytecode: reading body: %w", err)
	}

	hd, ok := header.(*Dict)
	if !ok {
		return nil, fmt.Errorf("bytecode: header is not a DICT")
	}
	bd, ok := body.(*Dict)
	if !ok {
		return nil, fmt.Errorf("bytecode: body is not a DICT")
	}

	c := &Code{}
	c.ModuleName, _ = dictLookup(hd, "name").(string)
	c.FName, _ = dictLookup(hd, "fname").(string)

	if instr, ok := dictLookup(bd, "code").([]byte); ok {
		c.Instr = instr
	}
	if consts, ok := dictLookup(bd, "consts").([]any); ok {
		c.Consts = consts
	}
	if lnt, ok := dictLookup(bd, "linenotab").([]byte); ok {
		c.LineNoTab = lnt
	}
	return c, nil
}

// WriteTo serializes c back into the two-mapping wire form ReadFrom
// expects, so that WriteTo(ReadFrom(b)) round-trips per spec.md §8.
func (c *Code) WriteTo(w io.Writer) error {
	header := &Dict{
		Keys:   []any{"name", "fname"},
		Values: []any{c.ModuleName, c.FName},
	}
	body := &Dict{
		Keys:   []any{"code", "consts", "linenotab"},
		Values: []any{[]byte(c.Instr), c.Consts, []byte(c.LineNoTab)},
	}
	if err := WriteValue(w, header); err != nil {
		return err
	}
	return WriteValue(w, body)
}

func dictLookup(d *Dict, key string) any {
	for i, k := range d.Keys {
		if s, ok := k.(string); ok && s == key {
			return d.Values[i]
		}
	}
	return nil
}

// LineForPosition walks the line-number table to find the source line
// number for bytecode offset pos, per bytecode.cpp Code::lineno_for_position.
func (c *Code) LineForPosition(pos uint32) int {
	var lineno, bcodePos uint32
	i := 0
	for i+1 < len(c.LineNoTab) {
		delta := uint32(c.LineNoTab[i])
		if pos < bcodePos+delta {
			break
		}
		bcodePos += delta
		lineno += uint32(int8(c.LineNoTab[i+1]))
		i += 2
	}
	return int(lineno)
}

// Disassemble writes the human-readable disassembly of c to w: the
// constants table, then one line per instruction, with source-line
// headers inserted at line-table boundaries, mirroring bytecode.cpp
// Code::print. sourceLines, if non-nil, supplies the trimmed text of each
// 1-based source line (best-effort; omitted when unavailable).
func (c *Code) Disassemble(w io.Writer, sourceLines func(fname string, lineno int) (string, bool)) {
	fmt.Fprintf(w, "Compiled from %s (%s)\n", c.FName, c.ModuleName)
	fmt.Fprintln(w, "Consts:")
	for i, cst := range c.Consts {
		fmt.Fprintf(w, "  %d: %v\n", i, cst)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Code:")

	var lineno, bcodePos uint32
	li := 0
	pos := uint32(0)
	for int(pos) < len(c.Instr) {
		changed := false
		for li+1 < len(c.LineNoTab) && pos >= bcodePos+uint32(c.LineNoTab[li]) {
			bcodePos += uint32(c.LineNoTab[li])
			lineno += uint32(int8(c.LineNoTab[li+1]))
			li += 2
			changed = true
		}
		if changed {
			text := ""
			if sourceLines != nil {
				if t, ok := sourceLines(c.FName, int(lineno)); ok {
					text = strings.TrimLeft(t, " \t")
				}
			}
			fmt.Fprintf(w, "Line %d: %s\n", lineno, text)
		}

		op := Op(c.Instr[pos])
		arg := leUint32(c.Instr[pos+1 : pos+5])
		fmt.Fprintf(w, "  %d: %s\n", pos, formatInstr(op, arg, c.Consts))
		pos += InstrWidth
	}
}

func formatInstr(op Op, arg uint32, consts []any) string {
	switch op {
	case BINOP, GET, SET, CONST:
		if int(arg) < len(consts) {
			return fmt.Sprintf("%s %d (%v)", op, arg, consts[arg])
		}
		return fmt.Sprintf("%s %d", op, arg)
	case SETSKIP:
		sp, ss := SplitSetSkipArg(arg)
		return fmt.Sprintf("SETSKIP %d %d", sp, ss)
	case UNPACK:
		cnt, star := SplitUnpackArg(arg)
		return fmt.Sprintf("UNPACK %d %d", cnt, star)
	default:
		return fmt.Sprintf("%s %d", op, arg)
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
