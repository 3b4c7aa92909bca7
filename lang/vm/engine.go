package vm

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/mna/dollarvm/lang/bytecode"
)

// attemptState is everything the resolution loop owns that must be
// rolled back, in its entirety, on a conflict (spec.md §3's
// "Engine state (ExecutionState)"). A rollback restores the exact
// snapshot taken at the top of Finish -- not an incremental undo -- and
// the engine re-executes every top-level Code unit from scratch; only
// the persistent `ordering` map (owned by Engine, not attemptState)
// survives (spec.md §4.7, §9 "Backtracking resolver").
type attemptState struct {
	testThunks []*TestThunk

	subs map[Thunk][]Thunk // thunk_subscriptions: producer -> subscribers

	getThunks map[string][]*GetThunk
	setThunks map[string][]*SetThunk
	subThunks map[string][]*SubThunk

	subNames map[string][]string // parent key -> ordered discovered child segments

	dollarValues    map[string]Value
	resolutionOrder []string
	aliases         map[string]string // name key -> canonical target key
	names           map[string]DollarName
	dummyResolved   map[string]bool
}

func newAttemptState() *attemptState {
	return &attemptState{
		subs:          map[Thunk][]Thunk{},
		getThunks:     map[string][]*GetThunk{},
		setThunks:     map[string][]*SetThunk{},
		subThunks:     map[string][]*SubThunk{},
		subNames:      map[string][]string{},
		dollarValues:  map[string]Value{},
		aliases:       map[string]string{},
		names:         map[string]DollarName{},
		dummyResolved: map[string]bool{},
	}
}

// clone makes an independent copy suitable as a fresh starting point for
// an attempt: pending maps are copied (so mutating one attempt's map
// never affects another), but the immutable Values and DollarNames inside
// them are shared by reference, per spec.md §9.
func (s *attemptState) clone() *attemptState {
	c := newAttemptState()
	c.testThunks = append([]*TestThunk(nil), s.testThunks...)
	for k, v := range s.subs {
		c.subs[k] = append([]Thunk(nil), v...)
	}
	for k, v := range s.getThunks {
		c.getThunks[k] = append([]*GetThunk(nil), v...)
	}
	for k, v := range s.setThunks {
		c.setThunks[k] = append([]*SetThunk(nil), v...)
	}
	for k, v := range s.subThunks {
		c.subThunks[k] = append([]*SubThunk(nil), v...)
	}
	for k, v := range s.subNames {
		c.subNames[k] = append([]string(nil), v...)
	}
	for k, v := range s.dollarValues {
		c.dollarValues[k] = v
	}
	c.resolutionOrder = append([]string(nil), s.resolutionOrder...)
	for k, v := range s.aliases {
		c.aliases[k] = v
	}
	for k, v := range s.names {
		c.names[k] = v
	}
	for k, v := range s.dummyResolved {
		c.dummyResolved[k] = v
	}
	return c
}

// Engine owns all unresolved thunks and dollar state, drives resolution,
// detects conflicts, performs rollback, and enumerates sub-names
// (spec.md §2/§4.7).
type Engine struct {
	Thread *Thread

	ordering map[string][]string // persistent: dollar-name key -> prerequisite keys
	resets   int
	steps    int

	st *attemptState

	sources       []*bytecode.Code
	conclusion    *bytecode.Code
	preregister   []string
	moduleThunks  map[string]*ModuleThunk
	modules       map[string]*Module

	baseEnv map[string]Value
}

// NewEngine constructs an engine ready to run the given top-level Code
// units (spec.md §4.8/§6's Runspec: modules, files, conclusion).
func NewEngine(th *Thread, files []*bytecode.Code, preregisterModules []string, conclusion *bytecode.Code) *Engine {
	eng := &Engine{
		Thread:      th,
		ordering:    map[string][]string{},
		sources:     files,
		conclusion:  conclusion,
		preregister: preregisterModules,
	}
	eng.baseEnv = envAdditions(eng)
	return eng
}

// Finish drives the resolution loop to quiescence, restarting from
// scratch on every conflict, and returns the final dollar_values map
// keyed by dotted dollar name (spec.md §4.7 last paragraph, §6).
func (eng *Engine) Finish() (map[string]Value, error) {
	for {
		eng.st = newAttemptState()
		eng.modules = map[string]*Module{}
		eng.moduleThunks = map[string]*ModuleThunk{}
		for _, name := range eng.preregister {
			eng.moduleThunks[name] = &ModuleThunk{Name: name}
		}

		if err := eng.runAllModules(); err != nil {
			return nil, err
		}

		conflict, err := eng.resolveLoop()
		if err != nil {
			return nil, err
		}
		if conflict {
			eng.resets++
			if eng.Thread.MaxResets > 0 && eng.resets > eng.Thread.MaxResets {
				return nil, &HostError{Msg: fmt.Sprintf("exceeded max resets (%d)", eng.Thread.MaxResets)}
			}
			continue
		}
		break
	}

	for _, tt := range eng.st.testThunks {
		eng.FinalizeThunk(tt, Integer(1))
	}

	out := make(map[string]Value, len(eng.st.dollarValues))
	for key, v := range eng.st.dollarValues {
		name := eng.st.names[key]
		out[name.String()[1:]] = v // strip the leading "$" used by DollarName.String
	}
	return out, nil
}

func (eng *Engine) runAllModules() error {
	for _, code := range eng.sources {
		eng.execCode(code)
	}
	if eng.conclusion != nil {
		eng.execCode(eng.conclusion)
	}
	return nil
}

// execCode runs code's top-level frame against the builtin+engine
// bindings (spec.md §4.8). If the top-level frame suspends via
// return-propagation, a completion thunk is subscribed to the underlying
// ExecutionThunk so the module is only finalized once fully resumed
// (this port's resolution of an implicit gap in §4.8; see DESIGN.md).
func (eng *Engine) execCode(code *bytecode.Code) {
	env := cloneEnv(eng.baseEnv)
	fr := &Frame{Code: code, Pos: 0, Limit: len(code.Instr), Env: env}
	resultEnv := fr.Execute(eng)

	if rv, ok := resultEnv["return"]; ok {
		if ne, ok := rv.(*NameExtractThunk); ok {
			mc := &moduleCompletionThunk{name: code.ModuleName}
			eng.SubscribeThunk(ne.Source, mc)
			return
		}
	}
	eng.finalizeModule(code.ModuleName, NewModule(code.ModuleName, resultEnv))
}

// moduleCompletionThunk receives the fully-resumed *Env of a suspended
// top-level frame and turns it into the finished Module.
type moduleCompletionThunk struct{ name string }

func (m *moduleCompletionThunk) String() string { return "<module completion " + m.name + ">" }
func (m *moduleCompletionThunk) Type() string   { return "module_completion" }
func (m *moduleCompletionThunk) thunkMarker()   {}
func (m *moduleCompletionThunk) Notify(eng *Engine, v Value) {
	env, _ := v.(*Env)
	var bindings map[string]Value
	if env != nil {
		bindings = env.Bindings
	}
	eng.finalizeModule(m.name, NewModule(m.name, bindings))
}

func (eng *Engine) finalizeModule(name string, mod *Module) {
	eng.modules[name] = mod
	if mt, ok := eng.moduleThunks[name]; ok {
		delete(eng.moduleThunks, name)
		eng.FinalizeThunk(mt, mod)
	}
}

// SubscribeThunk registers subscriber as waiting on producer's
// finalization.
func (eng *Engine) SubscribeThunk(producer, subscriber Thunk) {
	eng.st.subs[producer] = append(eng.st.subs[producer], subscriber)
}

// FinalizeThunk delivers value to every subscriber of thunk, then drops
// the subscription list. Every thunk must be finalized exactly once
// (spec.md §3); callers are responsible for only calling this once per
// thunk.
func (eng *Engine) FinalizeThunk(thunk Thunk, value Value) {
	subs := eng.st.subs[thunk]
	delete(eng.st.subs, thunk)
	for _, s := range subs {
		if n, ok := s.(Notifiable); ok {
			n.Notify(eng, value)
		}
	}
}

func (eng *Engine) registerSubThunk(st *SubThunk) {
	pkey := dnKey(st.Name)
	children := eng.st.subNames[pkey]
	if st.Position < len(children) {
		eng.FinalizeThunk(st, &List{elems: []Value{
			&SubIter{Name: st.Name, Position: st.Position + 1},
			String(children[st.Position]),
		}})
		return
	}
	if _, resolved := eng.st.dollarValues[pkey]; resolved {
		eng.FinalizeThunk(st, None)
		return
	}
	eng.st.subThunks[pkey] = append(eng.st.subThunks[pkey], st)
}

// resolveLoop runs pick-next/resolve/check-consistency until quiescent
// (returns conflict=false, err=nil) or a conflict is found (conflict=true;
// caller restarts from scratch), per spec.md §4.7.
func (eng *Engine) resolveLoop() (conflict bool, err error) {
	for {
		eng.steps++
		if eng.Thread.MaxSteps > 0 && eng.steps > eng.Thread.MaxSteps {
			return false, &HostError{Msg: fmt.Sprintf("exceeded max steps (%d)", eng.Thread.MaxSteps)}
		}
		if err := eng.Thread.Context().Err(); err != nil {
			return false, &HostError{Msg: fmt.Sprintf("cancelled: %v", err)}
		}

		key, name, dummy, ok := eng.pickNext()
		if !ok {
			if eng.hasPendingWork() {
				return false, &HostError{Msg: "deadlock: no resolvable dollar name remains with pending thunks outstanding"}
			}
			return false, nil
		}

		eng.resolveName(key, name, dummy)

		if eng.checkConsistency() {
			return true, nil
		}
	}
}

func (eng *Engine) hasPendingWork() bool {
	for _, v := range eng.st.getThunks {
		if len(v) > 0 {
			return true
		}
	}
	for _, v := range eng.st.setThunks {
		if len(v) > 0 {
			return true
		}
	}
	for _, v := range eng.st.subThunks {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// pickNext chooses a dollar name ready to resolve: one with a pending
// initial set whose ordering prerequisites are already in dollar_values,
// then one with only a pending default set (resolved to that default),
// falling back to a dummy resolution candidate (spec.md §4.7 "Pick
// next"). Candidate keys are scanned in sorted order for determinism
// given Go's randomized map iteration.
func (eng *Engine) pickNext() (key string, name DollarName, dummy bool, ok bool) {
	var setKeys, defaultKeys []string
	for k, sets := range eng.st.setThunks {
		for _, s := range sets {
			if s.Flags == 0 {
				setKeys = append(setKeys, k)
				break
			}
		}
		for _, s := range sets {
			if s.Flags&SetFlagDefault != 0 {
				defaultKeys = append(defaultKeys, k)
				break
			}
		}
	}
	slices.Sort(setKeys)
	slices.Sort(defaultKeys)
	for _, k := range append(setKeys, defaultKeys...) {
		if eng.orderingSatisfied(k) {
			return k, eng.st.names[k], false, true
		}
	}

	var dummyKeys []string
	seen := map[string]bool{}
	for k := range eng.st.subThunks {
		if len(eng.st.subThunks[k]) == 0 {
			continue
		}
		if _, resolved := eng.st.dollarValues[k]; resolved {
			continue
		}
		if !seen[k] {
			seen[k] = true
			dummyKeys = append(dummyKeys, k)
		}
	}
	for k := range eng.st.getThunks {
		if len(eng.st.getThunks[k]) == 0 {
			continue
		}
		if _, resolved := eng.st.dollarValues[k]; resolved {
			continue
		}
		if !seen[k] {
			seen[k] = true
			dummyKeys = append(dummyKeys, k)
		}
	}
	slices.Sort(dummyKeys)
	for _, k := range dummyKeys {
		if eng.orderingSatisfied(k) {
			return k, eng.st.names[k], true, true
		}
	}
	return "", nil, false, false
}

func (eng *Engine) orderingSatisfied(key string) bool {
	for _, dep := range eng.ordering[key] {
		if _, ok := eng.st.dollarValues[dep]; !ok {
			return false
		}
	}
	return true
}

// resolveName resolves dollar name (key/name) per spec.md §4.7 "Resolve
// X": process initial/default sets, run child discovery, drain
// modification sets and partial gets, then commit the value and finalize
// remaining get-thunks.
func (eng *Engine) resolveName(key string, name DollarName, dummy bool) {
	eng.st.resolutionOrder = append(eng.st.resolutionOrder, key)
	eng.st.names[key] = name

	var value Value
	var modSets []*SetThunk

	if dummy {
		eng.st.dummyResolved[key] = true
		value = &List{}
	} else {
		sets := eng.st.setThunks[key]
		haveInitial := false
		var chosen Value
		haveDefault := false
		for _, s := range sets {
			switch {
			case s.Flags == 0:
				if haveInitial {
					fatal("multiple non-default initial sets for %s", name)
				}
				haveInitial = true
				chosen = s.Val
				eng.FinalizeThunk(s, None)
			case s.Flags&SetFlagDefault != 0:
				if !haveDefault {
					haveDefault = true
					if !haveInitial {
						chosen = s.Val
					}
				}
				eng.FinalizeThunk(s, None)
			default:
				modSets = append(modSets, s)
			}
		}
		if chosen == nil {
			chosen = None
		}
		value = chosen
	}
	eng.st.setThunks[key] = nil

	eng.discoverChildren(name)

	for {
		progressed := false
		if len(modSets) > 0 {
			s := modSets[0]
			modSets = modSets[1:]
			value = s.Val
			eng.FinalizeThunk(s, None)
			progressed = true
		} else if g := eng.popPartialGet(key); g != nil {
			eng.FinalizeThunk(g, value)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	eng.st.dollarValues[key] = value
	for _, g := range eng.st.getThunks[key] {
		eng.FinalizeThunk(g, value)
	}
	eng.st.getThunks[key] = nil

	for _, s := range eng.st.subThunks[key] {
		eng.FinalizeThunk(s, None)
	}
	eng.st.subThunks[key] = nil
}

func (eng *Engine) popPartialGet(key string) *GetThunk {
	gts := eng.st.getThunks[key]
	for i, g := range gts {
		if g.Flags&GetFlagPartial != 0 {
			eng.st.getThunks[key] = append(append([]*GetThunk(nil), gts[:i]...), gts[i+1:]...)
			return g
		}
	}
	return nil
}

func (eng *Engine) discoverChildren(name DollarName) {
	for i := len(name) - 1; i >= 0; i-- {
		parent := name[:i]
		child := name[i]
		pkey := dnKey(parent)
		children := eng.st.subNames[pkey]
		if containsStr(children, child) {
			continue
		}
		pos := len(children)
		eng.st.subNames[pkey] = append(children, child)
		eng.st.names[pkey] = parent

		rem := eng.st.subThunks[pkey]
		for j, s := range rem {
			if s.Position == pos {
				eng.st.subThunks[pkey] = append(append([]*SubThunk(nil), rem[:j]...), rem[j+1:]...)
				eng.FinalizeThunk(s, &List{elems: []Value{
					&SubIter{Name: parent, Position: pos + 1},
					String(child),
				}})
				break
			}
		}
	}
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// checkConsistency scans pending set-thunks for a late-set conflict
// (spec.md §4.7 "Check consistency"): a pending set targeting an
// already-resolved name, or a name whose parent was dummy-resolved,
// records an ordering edge and signals the caller to reset.
func (eng *Engine) checkConsistency() bool {
	if len(eng.st.resolutionOrder) == 0 {
		return false
	}
	last := eng.st.resolutionOrder[len(eng.st.resolutionOrder)-1]

	var keys []string
	for k, sets := range eng.st.setThunks {
		if len(sets) > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, key := range keys {
		_, resolvedDirect := eng.st.dollarValues[key]
		dummyAncestor := eng.ancestorDummyResolved(key)
		if !resolvedDirect && !dummyAncestor {
			continue
		}
		if key == last {
			fatal("circular dollar dependency detected resolving %s", eng.st.names[key])
		}
		eng.ordering[key] = appendUnique(eng.ordering[key], last)
		return true
	}
	return false
}

func (eng *Engine) ancestorDummyResolved(key string) bool {
	name := dnFromKey(key)
	for i := len(name); i >= 0; i-- {
		if eng.st.dummyResolved[dnKey(name[:i])] {
			return true
		}
	}
	return false
}

func appendUnique(ss []string, s string) []string {
	for _, x := range ss {
		if x == s {
			return ss
		}
	}
	return append(ss, s)
}

// dealias walks name's segments left-to-right, repeatedly substituting
// any matching alias prefix until a fixed point is reached (spec.md
// §4.6).
func (eng *Engine) dealias(name DollarName) DollarName {
	for {
		changed := false
		for i := len(name); i > 0; i-- {
			prefixKey := dnKey(name[:i])
			if target, ok := eng.st.aliases[prefixKey]; ok {
				targetName := dnFromKey(target)
				rest := append(DollarName(nil), targetName...)
				rest = append(rest, name[i:]...)
				name = rest
				changed = true
				break
			}
		}
		if !changed {
			return name
		}
	}
}

// Alias creates an equivalence between name and target (spec.md §4.6).
func (eng *Engine) Alias(name, target DollarName) {
	name = eng.dealias(name)
	target = eng.dealias(target)
	nkey, tkey := dnKey(name), dnKey(target)
	eng.st.aliases[nkey] = tkey
	eng.st.names[tkey] = target

	if v, ok := eng.st.dollarValues[nkey]; ok {
		// name is already resolved: inject a synthetic initial set-thunk to
		// force a late-set conflict against the (now-target-backed) name, so
		// checkConsistency restarts the attempt with the alias respected
		// from the start (spec.md §4.6).
		eng.st.setThunks[nkey] = append(eng.st.setThunks[nkey], &SetThunk{Name: name, Val: v, Flags: 0})
	}
}

// Get implements $?(name, flags) (spec.md §4.6).
func (eng *Engine) Get(name DollarName, flags int) Value {
	name = eng.dealias(name)
	key := dnKey(name)
	eng.st.names[key] = name
	if v, ok := eng.st.dollarValues[key]; ok {
		return v
	}
	g := &GetThunk{Name: name, Flags: flags}
	eng.st.getThunks[key] = append(eng.st.getThunks[key], g)
	return g
}

// Set implements $=(name, value, flags) (spec.md §4.6).
func (eng *Engine) Set(name DollarName, value Value, flags int) Value {
	name = eng.dealias(name)
	key := dnKey(name)
	eng.st.names[key] = name
	eng.st.setThunks[key] = append(eng.st.setThunks[key], &SetThunk{Name: name, Val: value, Flags: flags})
	return None
}

// Subs implements subs(parent) -> SubIter(parent, 0) (spec.md §4.6).
func (eng *Engine) Subs(parent DollarName) *SubIter {
	parent = eng.dealias(parent)
	return &SubIter{Name: parent, Position: 0}
}

// Import implements import(name) -> module-or-thunk (spec.md §4.8).
func (eng *Engine) Import(name string) Value {
	if m, ok := eng.modules[name]; ok {
		return m
	}
	mt, ok := eng.moduleThunks[name]
	if !ok {
		mt = &ModuleThunk{Name: name}
		eng.moduleThunks[name] = mt
	}
	return mt
}

// AddTestThunk records a barrier under name, drained with Integer(1) once
// the resolution loop is otherwise quiescent (spec.md §4.7 last
// paragraph).
func (eng *Engine) AddTestThunk(name string) *TestThunk {
	tt := &TestThunk{Name: name}
	eng.st.testThunks = append(eng.st.testThunks, tt)
	return tt
}

// wireToValue lazily converts one bytecode-pool constant into a VM Value
// (spec.md §6's wire tags map onto this package's Integer/Float/String/
// Bytes/List/Dict/Boolean/NoneType variants).
func (eng *Engine) wireToValue(w any) Value {
	switch x := w.(type) {
	case nil:
		return None
	case int32:
		return Integer(x)
	case int:
		return Integer(x)
	case float64:
		return Float(x)
	case string:
		return String(x)
	case []byte:
		return Bytes(x)
	case bool:
		if x {
			return True
		}
		return False
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			elems[i] = eng.wireToValue(e)
		}
		return &List{elems: elems}
	case *bytecode.Dict:
		d := NewDict(len(x.Keys))
		for i, k := range x.Keys {
			d.Set(eng.wireToValue(k), eng.wireToValue(x.Values[i]))
		}
		return d
	default:
		fatal("unsupported wire constant type %T", w)
		return None
	}
}
