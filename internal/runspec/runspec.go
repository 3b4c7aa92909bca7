// Package runspec loads the engine's run specification: which modules to
// pre-register, which compiled files to execute, and an optional
// trailing "conclusion" code unit (spec.md §6). Two on-disk shapes are
// accepted: the wire format (a DICT with the same keys, used
// programmatically and in golden tests) and a human-authored YAML
// document (SPEC_FULL.md §6.1), decoded with gopkg.in/yaml.v3.
package runspec

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mna/dollarvm/lang/bytecode"
)

// RunSpec is the engine's run specification (spec.md §6's "Runspec").
type RunSpec struct {
	Modules    []string
	Files      []string
	Conclusion []byte // nil means no conclusion unit
}

// ReadWire decodes a RunSpec from the wire format: a single DICT value
// with keys "modules" (LIST of STRING), "files" (LIST of STRING) and
// "conclusion" (BYTES or NONE).
func ReadWire(r io.Reader) (*RunSpec, error) {
	v, err := bytecode.ReadValue(byteReaderFrom(r))
	if err != nil {
		return nil, fmt.Errorf("runspec: %w", err)
	}
	d, ok := v.(*bytecode.Dict)
	if !ok {
		return nil, fmt.Errorf("runspec: expected a DICT, got %T", v)
	}

	rs := &RunSpec{}
	for i, k := range d.Keys {
		key, _ := k.(string)
		switch key {
		case "modules":
			rs.Modules = toStrings(d.Values[i])
		case "files":
			rs.Files = toStrings(d.Values[i])
		case "conclusion":
			if b, ok := d.Values[i].([]byte); ok {
				rs.Conclusion = b
			}
		}
	}
	return rs, nil
}

func toStrings(v any) []string {
	l, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

type yamlSpec struct {
	Modules    []string `yaml:"modules"`
	Files      []string `yaml:"files"`
	Conclusion string   `yaml:"conclusion"` // path to a separately compiled file
}

// ReadYAML decodes a RunSpec from a YAML document of the shape described
// in SPEC_FULL.md §6.1; "conclusion" is a path read relative to baseDir.
func ReadYAML(r io.Reader, baseDir string) (*RunSpec, error) {
	var y yamlSpec
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&y); err != nil {
		return nil, fmt.Errorf("runspec: yaml: %w", err)
	}

	rs := &RunSpec{Modules: y.Modules, Files: y.Files}
	if y.Conclusion != "" {
		path := y.Conclusion
		if baseDir != "" && !os.IsPathSeparator(path[0]) {
			path = baseDir + string(os.PathSeparator) + path
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("runspec: reading conclusion file %s: %w", path, err)
		}
		rs.Conclusion = b
	}
	return rs, nil
}

func byteReaderFrom(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}
