package vm

import "fmt"

// Thunk is a placeholder for a value not yet known (spec.md §3). Every
// concrete variant is also a Value, so thunks can be pushed onto the VM
// stack and bound in an environment like any other value; the frame
// executor detects them generically via a type assertion in push().
type Thunk interface {
	Value
	thunkMarker()
}

// Notifiable is implemented by the thunk kinds that are themselves
// subscribers of another thunk: when their producer finalizes, the engine
// calls Notify with the delivered value. GetThunk, SetThunk, SubThunk and
// ModuleThunk are never subscribers in this design -- they are finalized
// directly by the resolution loop or by exec_code/import, never notified
// by another thunk's finalization.
type Notifiable interface {
	Notify(eng *Engine, v Value)
}

var (
	GetThunkType          = NewType("GetThunk", nil, nil)
	SetThunkType          = NewType("SetThunk", nil, nil)
	SubThunkType          = NewType("SubThunk", nil, nil)
	SubIterType           = NewType("SubIter", nil, nil)
	ExecutionThunkType    = NewType("ExecutionThunk", nil, nil)
	NameExtractThunkType  = NewType("NameExtractThunk", nil, nil)
	ModuleThunkType       = NewType("ModuleThunk", nil, nil)
	TestThunkType         = NewType("TestThunk", nil, nil)
)

// Get-thunk flags ($?).
const GetFlagPartial = 1

// Set-thunk flags ($=).
const (
	SetFlagModification = 1
	SetFlagDefault       = 2
)

// GetThunk asks the engine for the value of a dollar name (spec.md §4.6).
type GetThunk struct {
	Name  DollarName
	Flags int
}

func (t *GetThunk) String() string { return fmt.Sprintf("GetThunk(%s)", t.Name) }
func (t *GetThunk) Type() string   { return "GetThunk" }
func (t *GetThunk) TypeOf() *Type  { return GetThunkType }
func (t *GetThunk) thunkMarker()   {}

// SetThunk asserts a value for a dollar name (spec.md §4.6).
type SetThunk struct {
	Name  DollarName
	Val   Value
	Flags int
}

func (t *SetThunk) String() string { return fmt.Sprintf("SetThunk(%s=%s)", t.Name, t.Val) }
func (t *SetThunk) Type() string   { return "SetThunk" }
func (t *SetThunk) TypeOf() *Type  { return SetThunkType }
func (t *SetThunk) thunkMarker()   {}

// SubThunk is one element of the lazy sequence of child names of Name.
type SubThunk struct {
	Name     DollarName
	Position int
}

func (t *SubThunk) String() string { return fmt.Sprintf("SubThunk(%s, %d)", t.Name, t.Position) }
func (t *SubThunk) Type() string   { return "SubThunk" }
func (t *SubThunk) TypeOf() *Type  { return SubThunkType }
func (t *SubThunk) thunkMarker()   {}

// SubIter is the iterator object yielding SubThunks for a parent name.
type SubIter struct {
	Name     DollarName
	Position int
}

func (t *SubIter) String() string { return fmt.Sprintf("SubIter(%s, %d)", t.Name, t.Position) }
func (t *SubIter) Type() string   { return "SubIter" }
func (t *SubIter) TypeOf() *Type  { return SubIterType }
func (t *SubIter) thunkMarker()   {}

func init() {
	SubIterType.Attrs["__next__"] = NewBuiltin("__next__", func(eng *Engine, args []Value) (Value, error) {
		it, ok := args[0].(*SubIter)
		if !ok {
			fatal("SubIter.__next__ called on non-SubIter")
		}
		st := &SubThunk{Name: it.Name, Position: it.Position}
		eng.registerSubThunk(st)
		return st, nil
	})
}

// ExecutionThunk wraps a suspended VM continuation (spec.md §4.4). When its
// subscribed producer finalizes with V, it rebuilds a fresh frame from the
// saved snapshot with V appended to the saved stack, runs it to
// completion (possibly suspending again), and finalizes itself with an
// *Env wrapping the resulting bindings.
type ExecutionThunk struct {
	Frame *Frame
}

func (t *ExecutionThunk) String() string { return "ExecutionThunk(...)" }
func (t *ExecutionThunk) Type() string   { return "ExecutionThunk" }
func (t *ExecutionThunk) TypeOf() *Type  { return ExecutionThunkType }
func (t *ExecutionThunk) thunkMarker()   {}

func (t *ExecutionThunk) Notify(eng *Engine, v Value) {
	if upstream, ok := v.(Thunk); ok {
		eng.SubscribeThunk(upstream, t)
		return
	}
	newStack := make([]Value, len(t.Frame.Stack)+1)
	copy(newStack, t.Frame.Stack)
	newStack[len(t.Frame.Stack)] = v
	newFrame := &Frame{
		Code:  t.Frame.Code,
		Pos:   t.Frame.Pos,
		Limit: t.Frame.Limit,
		Env:   cloneEnv(t.Frame.Env),
		Stack: newStack,
	}
	resultEnv := newFrame.Execute(eng)
	eng.FinalizeThunk(t, &Env{Bindings: resultEnv})
}

// NameExtractThunk projects a named binding out of an Env delivered by its
// subscribed ExecutionThunk (spec.md §4.4). Source records that producer,
// so callers that need the full, fully-resumed Env (module-level
// execution; see engine.go's execCode) can subscribe to it directly
// instead of going through the single-name projection.
type NameExtractThunk struct {
	Name   string
	Source Thunk
}

func (t *NameExtractThunk) String() string { return fmt.Sprintf("NameExtractThunk(%q)", t.Name) }
func (t *NameExtractThunk) Type() string   { return "NameExtractThunk" }
func (t *NameExtractThunk) TypeOf() *Type  { return NameExtractThunkType }
func (t *NameExtractThunk) thunkMarker()   {}

func (t *NameExtractThunk) Notify(eng *Engine, v Value) {
	env, ok := v.(*Env)
	if !ok {
		eng.FinalizeThunk(t, None)
		return
	}
	if val, ok := env.Bindings[t.Name]; ok {
		eng.FinalizeThunk(t, val)
		return
	}
	eng.FinalizeThunk(t, None)
}

// ModuleThunk is a pending import: a placeholder for a module that has not
// finished executing yet (spec.md §4.8).
type ModuleThunk struct {
	Name string
}

func (t *ModuleThunk) String() string { return fmt.Sprintf("ModuleThunk(%q)", t.Name) }
func (t *ModuleThunk) Type() string   { return "ModuleThunk" }
func (t *ModuleThunk) TypeOf() *Type  { return ModuleThunkType }
func (t *ModuleThunk) thunkMarker()   {}

// TestThunk is a user-visible barrier (debugging): drained by finish()
// once no set/get/sub-thunks remain, finalized with Integer(1).
type TestThunk struct {
	Name string
}

func (t *TestThunk) String() string { return fmt.Sprintf("TestThunk(%q)", t.Name) }
func (t *TestThunk) Type() string   { return "TestThunk" }
func (t *TestThunk) TypeOf() *Type  { return TestThunkType }
func (t *TestThunk) thunkMarker()   {}
