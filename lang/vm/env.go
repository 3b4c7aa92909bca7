package vm

import (
	"strings"

	"golang.org/x/exp/slices"
)

// Env is a snapshot of local bindings, produced by the GETENV opcode and
// consumed by ExecutionThunk/NameExtractThunk delivery (spec.md §4.3). It
// is distinct from Dict: an Env's keys are always plain Go strings (local
// variable names), never VM Values, and an Env is never exposed to
// dollar-name lookup directly -- only through a NameExtractThunk's
// projection of one binding.
type Env struct {
	Bindings map[string]Value
}

var EnvType = NewType("Env", nil, nil)

func NewEnv(b map[string]Value) *Env { return &Env{Bindings: cloneEnv(b)} }

func (e *Env) String() string {
	names := make([]string, 0, len(e.Bindings))
	for k := range e.Bindings {
		names = append(names, k)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + e.Bindings[n].String()
	}
	return "Env{" + strings.Join(parts, ", ") + "}"
}
func (e *Env) Type() string  { return "Env" }
func (e *Env) TypeOf() *Type { return EnvType }

func (e *Env) Get(name string) (Value, bool) {
	v, ok := e.Bindings[name]
	return v, ok
}

// Module is a named collection of top-level bindings produced by executing
// a module's Code to completion (spec.md §4.6's module-level execution
// result), looked up by GetAttr before falling back to type MRO.
type Module struct {
	Name     string
	Bindings map[string]Value
}

var ModuleType = NewType("module", nil, nil)

func NewModule(name string, b map[string]Value) *Module {
	return &Module{Name: name, Bindings: b}
}

func (m *Module) String() string { return "<module " + m.Name + ">" }
func (m *Module) Type() string   { return "module" }
func (m *Module) TypeOf() *Type  { return ModuleType }

func (m *Module) Get(name string) (Value, bool) {
	v, ok := m.Bindings[name]
	return v, ok
}
