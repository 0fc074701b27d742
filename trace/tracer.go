// Package trace adapts a runtime instrumentation event stream into Store
// mutations. It is the engine's only write path besides the static analyzer
// (spec.md §5: "Only the tracer adapter and the static analyzer mutate it,
// and only during host-initiated events").
//
// The frame-stack push/pop-on-exit shape mirrors a span tracer's lifecycle
// (enter pushes, exit finishes and pops) rather than anything Python- or
// notebook-specific, repurposed here to bound statement and call nesting
// instead of request spans.
package trace

import (
	"fmt"

	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/symtab"
)

type frameKind int

const (
	statementFrame frameKind = iota
	callFrame
)

// frame is one entry on the tracer's nesting stack. Call frames carry the
// bookkeeping needed to resolve call_return's parent set: which of the
// callee's formal parameters were actually read by the callee's body.
type frame struct {
	kind frameKind

	callee         *symtab.Symbol
	formalToActual map[symtab.SymbolID]*symtab.Symbol
	readActuals    map[symtab.SymbolID]*symtab.Symbol
}

// Tracer consumes the event table of spec.md §4.4 and drives a Store. One
// Tracer belongs to one engine instance; it is not safe for concurrent use
// (spec.md §5: the engine is single-threaded and cooperative).
type Tracer struct {
	store *symtab.Store
	clk   *clock.Clock

	maxDepth int
	depth    int
	enabled  bool

	frames []*frame

	// stmtSeen enforces trace-once-per-statement semantics: a source
	// location already processed this statement returns its cached symbol
	// without repeating any side effect, however many times a loop visits
	// it (spec.md §4.4).
	stmtSeen map[uintptr]*symtab.Symbol

	// stmtLive accumulates every symbol loaded so far in the current
	// statement, in load order; store_name ties its new symbol's parents
	// to this set.
	stmtLive []*symtab.Symbol
}

// New returns a Tracer bound to store and clk, capping re-entrant call depth
// at maxDepth.
func New(store *symtab.Store, clk *clock.Clock, maxDepth int) *Tracer {
	return &Tracer{
		store:    store,
		clk:      clk,
		maxDepth: maxDepth,
		enabled:  true,
		stmtSeen: make(map[uintptr]*symtab.Symbol),
	}
}

// Enabled reports whether the tracer is currently recording side effects.
func (t *Tracer) Enabled() bool { return t.enabled }

// Disable turns off side effects without losing frame/depth bookkeeping,
// for the duration of a magic command or other opaque host operation
// (spec.md §4.4: "the tracer is disabled while servicing magics").
func (t *Tracer) Disable() { t.enabled = false }

// Enable restores side effects, provided depth is still within the cap.
func (t *Tracer) Enable() {
	if t.depth <= t.maxDepth {
		t.enabled = true
	}
}

// OnStatementEnter advances the clock to a fresh tick and resets the
// per-statement trace-once cache.
func (t *Tracer) OnStatementEnter() clock.Tick {
	ts := t.clk.Tick()
	t.stmtSeen = make(map[uintptr]*symtab.Symbol)
	t.stmtLive = nil
	t.frames = append(t.frames, &frame{kind: statementFrame})
	return ts
}

// OnStatementExit pops the statement frame. abort is recorded by the caller
// (the engine): ticks already issued during this statement remain valid
// regardless (spec.md §5, cancellation).
func (t *Tracer) OnStatementExit(abort bool) {
	if n := len(t.frames); n > 0 {
		t.frames = t.frames[:n-1]
	}
}

// OnNameLoad resolves name in scope, records it as live for the current
// statement, and feeds it back into the enclosing call frame's read set if
// it happens to be one of that call's bound formals.
func (t *Tracer) OnNameLoad(loc uintptr, scope *symtab.Scope, name string) *symtab.Symbol {
	if cached, ok := t.stmtSeen[loc]; ok {
		return cached
	}
	sym := t.store.Lookup(scope, name)
	if t.enabled && sym != nil {
		t.stmtLive = append(t.stmtLive, sym)
		t.noteCallFrameRead(sym)
	}
	t.stmtSeen[loc] = sym
	return sym
}

// OnNameStore upserts name in scope to handle and ties the resulting
// symbol's parents to every symbol loaded so far this statement
// (spec.md §4.4: "tie parents from the last observed live-ref set of the
// current statement").
func (t *Tracer) OnNameStore(loc uintptr, scope *symtab.Scope, name string, handle symtab.ValueHandle) *symtab.Symbol {
	if cached, ok := t.stmtSeen[loc]; ok {
		return cached
	}
	ts := t.clk.Current()
	sym := t.store.Upsert(scope, name, handle, ts)
	if t.enabled {
		for _, parent := range t.stmtLive {
			if parent.ID == sym.ID {
				continue
			}
			t.store.AddParent(sym, parent, ts, symtab.Dynamic)
		}
	}
	t.stmtSeen[loc] = sym
	return sym
}

// OnAttrLoad resolves attr within owner's namespace, creating the namespace
// (and, lazily, the attribute symbol) on first access.
func (t *Tracer) OnAttrLoad(loc uintptr, owner *symtab.Symbol, attr string) *symtab.Symbol {
	if cached, ok := t.stmtSeen[loc]; ok {
		return cached
	}
	var sym *symtab.Symbol
	if owner != nil {
		ts := t.clk.Current()
		ns := t.ownerNamespace(owner, ts)
		if sym = ns.Attr(attr); sym == nil {
			sym = t.store.Upsert(ns.Scope, attr, nil, ts)
		}
	}
	if t.enabled && sym != nil {
		t.stmtLive = append(t.stmtLive, sym)
		t.noteCallFrameRead(sym)
	}
	t.stmtSeen[loc] = sym
	return sym
}

// OnAttrStore upserts attr within owner's namespace to handle, then marks
// the full chain of owners up to the namespace root as mutated
// (spec.md §4.4).
func (t *Tracer) OnAttrStore(loc uintptr, owner *symtab.Symbol, attr string, handle symtab.ValueHandle) *symtab.Symbol {
	if cached, ok := t.stmtSeen[loc]; ok {
		return cached
	}
	ts := t.clk.Current()
	ns := t.ownerNamespace(owner, ts)
	sym := t.store.Upsert(ns.Scope, attr, handle, ts)
	if t.enabled {
		t.mutateOwnerChain(owner, ts)
	}
	t.stmtSeen[loc] = sym
	return sym
}

// OnSubscriptLoad is OnAttrLoad's subscript-entry counterpart.
func (t *Tracer) OnSubscriptLoad(loc uintptr, owner *symtab.Symbol, key symtab.Key) *symtab.Symbol {
	if cached, ok := t.stmtSeen[loc]; ok {
		return cached
	}
	var sym *symtab.Symbol
	if owner != nil {
		ts := t.clk.Current()
		ns := t.ownerNamespace(owner, ts)
		if sym = ns.Item(key); sym == nil {
			sym = t.store.UpsertItem(ns, key, nil, ts)
		}
	}
	if t.enabled && sym != nil {
		t.stmtLive = append(t.stmtLive, sym)
		t.noteCallFrameRead(sym)
	}
	t.stmtSeen[loc] = sym
	return sym
}

// OnSubscriptStore is OnAttrStore's subscript-entry counterpart.
func (t *Tracer) OnSubscriptStore(loc uintptr, owner *symtab.Symbol, key symtab.Key, handle symtab.ValueHandle) *symtab.Symbol {
	if cached, ok := t.stmtSeen[loc]; ok {
		return cached
	}
	ts := t.clk.Current()
	ns := t.ownerNamespace(owner, ts)
	sym := t.store.UpsertItem(ns, key, handle, ts)
	if t.enabled {
		t.mutateOwnerChain(owner, ts)
	}
	t.stmtSeen[loc] = sym
	return sym
}

// OnCallEnter pushes a call frame binding actuals to formals in a fresh
// scope chained under callerScope, and returns that scope for the caller to
// thread through the callee body's subsequent load/store events. Depth
// beyond maxDepth disables side effects until the matching OnCallReturn
// brings depth back within bounds (spec.md §4.4, re-entrancy).
func (t *Tracer) OnCallEnter(callerScope *symtab.Scope, callee *symtab.Symbol, formals []string, actuals []*symtab.Symbol) *symtab.Scope {
	ts := t.clk.Current()
	t.depth++

	name := "anonymous"
	if callee != nil {
		name = callee.Name
	}
	scope := symtab.NewScope(fmt.Sprintf("call:%s@%s", name, ts), symtab.FunctionScope, name, callerScope)

	fr := &frame{
		kind:           callFrame,
		callee:         callee,
		formalToActual: make(map[symtab.SymbolID]*symtab.Symbol, len(formals)),
		readActuals:    make(map[symtab.SymbolID]*symtab.Symbol),
	}
	for i, formal := range formals {
		if i >= len(actuals) || actuals[i] == nil {
			continue
		}
		bound := t.store.Upsert(scope, formal, actuals[i].ValueHandle, ts)
		t.store.AddParent(bound, actuals[i], ts, symtab.Dynamic)
		fr.formalToActual[bound.ID] = actuals[i]
	}
	t.frames = append(t.frames, fr)

	if t.depth > t.maxDepth {
		t.enabled = false
	}
	return scope
}

// OnCallReturn pops the current call frame and returns an anonymous symbol
// for the call's return value, parented on the callee itself plus every
// actual argument the callee's body demonstrably read (spec.md §4.4).
func (t *Tracer) OnCallReturn(handle symtab.ValueHandle) *symtab.Symbol {
	n := len(t.frames)
	if n == 0 || t.frames[n-1].kind != callFrame {
		return nil
	}
	fr := t.frames[n-1]
	t.frames = t.frames[:n-1]
	t.depth--
	if t.depth <= t.maxDepth {
		t.enabled = true
	}

	ts := t.clk.Current()
	ret := t.store.NewAnonymous(handle, ts)
	if fr.callee != nil {
		t.store.AddParent(ret, fr.callee, ts, symtab.Dynamic)
	}
	for _, actual := range fr.readActuals {
		t.store.AddParent(ret, actual, ts, symtab.Dynamic)
	}
	return ret
}

// OnMutation applies an external-call handler's (or the default rule's)
// decision that sym was mutated by the call currently in progress.
// handlerID identifies which handler fired, for diagnostics; the default
// "mutates all positional arguments" rule passes the empty string.
func (t *Tracer) OnMutation(sym *symtab.Symbol, handlerID string) {
	if sym == nil || !t.enabled {
		return
	}
	t.store.Mutate(sym, t.clk.Current())
}

func (t *Tracer) noteCallFrameRead(sym *symtab.Symbol) {
	n := len(t.frames)
	if n == 0 || t.frames[n-1].kind != callFrame {
		return
	}
	fr := t.frames[n-1]
	if actual, ok := fr.formalToActual[sym.ID]; ok {
		fr.readActuals[actual.ID] = actual
	}
}

// ownerNamespace returns owner's namespace, creating an empty one on first
// access. Namespaces are not pre-declared; the tracer is the only
// collaborator that ever needs one to exist, so it creates them lazily
// exactly when an attribute or subscript access first demands one.
func (t *Tracer) ownerNamespace(owner *symtab.Symbol, ts clock.Tick) *symtab.Namespace {
	if owner.Namespace == nil {
		owner.Namespace = symtab.NewNamespace(fmt.Sprintf("ns:%s#%d", owner.Name, owner.ID), owner, nil)
	}
	return owner.Namespace
}

// mutateOwnerChain marks owner, and every symbol that transitively owns the
// namespace owner lives in, as mutated at ts (spec.md §4.4: "mutate owner
// chain (chain of owners up to the namespace root is marked mutated)").
func (t *Tracer) mutateOwnerChain(owner *symtab.Symbol, ts clock.Tick) {
	sym := owner
	for sym != nil {
		t.store.Mutate(sym, ts)
		scope := sym.ContainingScope
		if scope == nil {
			return
		}
		sym = scope.OwnerSymbol()
	}
}
