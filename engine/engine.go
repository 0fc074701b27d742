// Package engine is the dataflow dependency engine's façade: it wires the
// clock, symbol store, static analyzer, dynamic tracer, derived cell graph,
// external-call handler registry, and scheduler into the single
// single-threaded, cooperative object the host notebook runtime drives one
// event at a time (spec.md §5). Callers drive every collaborator through
// Engine; its methods take and return symtab, checker and scheduler types,
// and Store exposes the symbol store to the host instrumentation shim.
package engine

import (
	"context"
	"sort"

	"github.com/viant/dflow/checker"
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/handlers"
	"github.com/viant/dflow/internal/xlog"
	"github.com/viant/dflow/protocol"
	"github.com/viant/dflow/scheduler"
	"github.com/viant/dflow/static"
	"github.com/viant/dflow/symtab"
	"github.com/viant/dflow/trace"
)

// Engine holds every collaborator for one notebook session. There is no
// ambient global state; a process hosting multiple notebooks owns one
// Engine per notebook.
type Engine struct {
	clk      *clock.Clock
	store    *symtab.Store
	global   *symtab.Scope
	analyzer *static.Analyzer
	tracer   *trace.Tracer
	graph    *dataflow.Graph
	handlers *handlers.Registry
	sched    *scheduler.Scheduler
	logger   *xlog.Logger

	settings protocol.Settings

	cells map[dataflow.CellID]*cellState
	order []dataflow.CellID

	activeCellID          dataflow.CellID
	lastExecutedCellID    dataflow.CellID
	lastExecutionWasError bool

	// prevReady is the Ready set as of the previous ComputeExecSchedule
	// call, kept so that call can report which cells are *newly* ready
	// (spec.md §4.7's "restricted to newly-ready cells" / "marked as newly
	// ready" distinction) instead of the whole Ready set every time.
	prevReady map[dataflow.CellID]bool

	// executingCellID names the cell currently under trace so On*
	// callbacks know which cellState.dynamicLiveRefs to append to.
	executingCellID dataflow.CellID
}

// maxTraceDepth bounds the tracer's call-frame nesting before it refuses to
// re-enter, per spec.md §5's reentrancy cap.
const maxTraceDepth = 2000

// maxCycleDepth bounds the scheduler's cycle-detection DFS.
const maxCycleDepth = 64

// New returns an Engine configured with settings, ready to accept its first
// cell.
func New(settings protocol.Settings) *Engine {
	clk := clock.New()
	store := symtab.NewStore()
	global := symtab.NewScope("global", symtab.GlobalScope, "__main__", nil)

	e := &Engine{
		clk:      clk,
		store:    store,
		global:   global,
		analyzer: static.New(),
		tracer:   trace.New(store, clk, maxTraceDepth),
		graph:    dataflow.New(store),
		handlers: handlers.NewRegistry(),
		sched:    scheduler.New(maxCycleDepth),
		logger:   xlog.Default(),
		settings: settings,
		cells:    make(map[dataflow.CellID]*cellState),
	}
	seedBuiltins(store, global)
	return e
}

// builtinNames lists the identifiers the host language provides without any
// cell ever defining them. Pre-binding them at clock.Zero, with no parents,
// keeps a bare reference to them (e.g. "print(x)") from being treated as an
// unresolvable live ref and pessimistically marking every cell waiting.
var builtinNames = []string{
	"print", "len", "range", "str", "int", "float", "bool", "list", "dict",
	"set", "tuple", "enumerate", "zip", "map", "filter", "sorted", "sum",
	"min", "max", "abs", "isinstance", "type", "open",
}

func seedBuiltins(store *symtab.Store, global *symtab.Scope) {
	for _, name := range builtinNames {
		sym := store.Upsert(global, name, "builtin:"+name, clock.Zero)
		sym.Kind = symtab.Function
	}
}

// Settings returns the engine's current session settings.
func (e *Engine) Settings() protocol.Settings { return e.settings }

// ApplySettings replaces the engine's session settings wholesale, per an
// Establish handshake.
func (e *Engine) ApplySettings(s protocol.Settings) { e.settings = s }

// HandlerRegistry exposes the engine's external-call handler table so the
// host can load its YAML document once at startup.
func (e *Engine) HandlerRegistry() *handlers.Registry { return e.handlers }

// SetActiveCell records which cell the user is currently editing, for
// in-order flow eligibility (spec.md §6, change_active_cell).
func (e *Engine) SetActiveCell(id dataflow.CellID, docIndex int) {
	e.activeCellID = id
	cs := e.cellOrNew(id)
	cs.docIndex = docIndex
}

// OnCellSubmit runs static analysis over a cell's freshly edited source.
// Per spec.md §7, a malformed AST never propagates to the host: the engine
// logs it and falls back to the cell's previously cached analysis, or, for
// a cell analyzed for the first time, to a placeholder result whose single
// live ref never resolves (so the cell is pessimistically waiting until it
// can be re-analyzed).
func (e *Engine) OnCellSubmit(id dataflow.CellID, docIndex int, source string) {
	cs := e.cellOrNew(id)
	cs.docIndex = docIndex
	cs.content = source

	res, err := e.analyzer.Analyze([]byte(source))
	if err != nil {
		e.logger.Warnf("cell %s: static analysis failed, reusing cached analysis: %v", id, err)
		if cs.lastAnalysis == nil {
			cs.lastAnalysis = &static.Result{LiveRefs: []static.Ref{{}}}
		}
		return
	}
	cs.lastAnalysis = res
	e.wireStaticParents(res)
}

// wireStaticParents records the submitted cell's assignment targets and
// their static parent refs as Static symbol edges, for every target/parent
// pair that already resolves to an existing symbol (i.e. one a previous
// execution bound). A target that has never executed gets no edge yet —
// there is no symbol to attach it to — and will pick one up retroactively
// the moment it first executes via the tracer's own dynamic edge (spec.md
// §4.2: "a cell's cached static analysis is invalidated whenever its text
// changes; its dynamic edges... are retained... until the cell
// re-executes").
func (e *Engine) wireStaticParents(res *static.Result) {
	ts := e.clk.Current()
	for _, asn := range res.Assignments {
		if asn.Declared {
			continue
		}
		target := e.resolveRef(asn.Target)
		if target == nil {
			continue
		}
		for _, parentRef := range asn.Parents {
			if parent := e.resolveRef(parentRef); parent != nil && parent.ID != target.ID {
				e.store.AddParent(target, parent, ts, symtab.Static)
			}
		}
	}
}

// NewCellExecution marks the start of a fresh execution of id: it advances
// the clock's execution counter, records the exec->cell mapping the
// dataflow graph needs, resets the cell's dynamic live-ref observations,
// and tracks id as the currently-executing cell for subsequent On* calls.
func (e *Engine) NewCellExecution(id dataflow.CellID) clock.Tick {
	ts := e.clk.NewCell()
	e.graph.RecordExecution(ts.Exec, id)
	cs := e.cellOrNew(id)
	cs.dynamicLiveRefs = nil
	e.executingCellID = id
	return ts
}

// CompleteCellExecution records that id finished executing, successfully or
// not, at the clock's current tick (spec.md §4.7: a reactive chain aborts
// on error but graph mutations already recorded are retained).
func (e *Engine) CompleteCellExecution(id dataflow.CellID, wasError bool) {
	cs := e.cellOrNew(id)
	cs.hasExecuted = true
	cs.lastExecutionEndTS = e.clk.Current()
	cs.execCount++
	e.lastExecutedCellID = id
	e.lastExecutionWasError = wasError
	e.executingCellID = ""
}

func (e *Engine) noteDynamicLiveRef(sym *symtab.Symbol) {
	if sym == nil || e.executingCellID == "" {
		return
	}
	cs := e.cellOrNew(e.executingCellID)
	cs.dynamicLiveRefs = append(cs.dynamicLiveRefs, sym)
}

// The On* methods below delegate straight to the tracer. Reads additionally
// feed the currently-executing cell's dynamic live-ref set; writes do not,
// since a store/mutation is evidence of a dependency edge, not of the
// writing cell depending on the prior value (spec.md §4.4/§4.5).

func (e *Engine) OnStatementEnter() clock.Tick { return e.tracer.OnStatementEnter() }

func (e *Engine) OnStatementExit(abort bool) { e.tracer.OnStatementExit(abort) }

func (e *Engine) OnNameLoad(loc uintptr, scope *symtab.Scope, name string) *symtab.Symbol {
	sym := e.tracer.OnNameLoad(loc, scope, name)
	e.noteDynamicLiveRef(sym)
	return sym
}

func (e *Engine) OnNameStore(loc uintptr, scope *symtab.Scope, name string, handle symtab.ValueHandle) *symtab.Symbol {
	return e.tracer.OnNameStore(loc, scope, name, handle)
}

func (e *Engine) OnAttrLoad(loc uintptr, owner *symtab.Symbol, attr string) *symtab.Symbol {
	sym := e.tracer.OnAttrLoad(loc, owner, attr)
	e.noteDynamicLiveRef(sym)
	return sym
}

func (e *Engine) OnAttrStore(loc uintptr, owner *symtab.Symbol, attr string, handle symtab.ValueHandle) *symtab.Symbol {
	return e.tracer.OnAttrStore(loc, owner, attr, handle)
}

func (e *Engine) OnSubscriptLoad(loc uintptr, owner *symtab.Symbol, key symtab.Key) *symtab.Symbol {
	sym := e.tracer.OnSubscriptLoad(loc, owner, key)
	e.noteDynamicLiveRef(sym)
	return sym
}

func (e *Engine) OnSubscriptStore(loc uintptr, owner *symtab.Symbol, key symtab.Key, handle symtab.ValueHandle) *symtab.Symbol {
	return e.tracer.OnSubscriptStore(loc, owner, key, handle)
}

func (e *Engine) OnCallEnter(callerScope *symtab.Scope, callee *symtab.Symbol, formals []string, actuals []*symtab.Symbol) *symtab.Scope {
	return e.tracer.OnCallEnter(callerScope, callee, formals, actuals)
}

func (e *Engine) OnCallReturn(handle symtab.ValueHandle) *symtab.Symbol {
	return e.tracer.OnCallReturn(handle)
}

func (e *Engine) OnMutation(sym *symtab.Symbol, handlerID string) {
	e.tracer.OnMutation(sym, handlerID)
}

// NoteAlias merges a and b into the same alias equivalence class. The
// tracer has no way to tell that two names were bound to the identical
// runtime object from a plain name-store event alone; the host
// instrumentation shim calls this explicitly whenever it observes that
// identity (spec.md §3: "Aliasing is an equivalence relation").
func (e *Engine) NoteAlias(a, b *symtab.Symbol) {
	e.store.Alias(a, b)
}

// ApplyCallEffects resolves and runs the external-call handler for a
// resolved call site, falling back to the default mutate-all-positional
// rule when no entry matches (spec.md §7, ErrHandlerNotMatched: recovered
// internally, never surfaced to the host).
func (e *Engine) ApplyCallEffects(module, receiverType, qualified string, args []*symtab.Symbol, ret *symtab.Symbol) {
	ts := e.clk.Current()
	if entry, ok := e.handlers.Lookup(module, receiverType, qualified); ok {
		handlers.Apply(e.store, entry, args, ret, ts)
		return
	}
	handlers.MutateAllPositional(e.store, args, ts)
}

// CellMetadata returns id's current bookkeeping in the wire shape
// ComputeExecSchedule's CellMetadataByID uses, for a caller that drives a
// session directly rather than relaying an actual front-end request (the
// CLI's `run` command).
func (e *Engine) CellMetadata(id dataflow.CellID) protocol.CellMetadata {
	cs := e.cellOrNew(id)
	return protocol.CellMetadata{Index: cs.docIndex, Content: cs.content, Type: "code"}
}

// GlobalScope returns the module-level scope every cell executes against.
func (e *Engine) GlobalScope() *symtab.Scope { return e.global }

// Store exposes the underlying symbol store for callers (the host
// instrumentation shim) that need to allocate value handles or inspect
// symbols directly.
func (e *Engine) Store() *symtab.Store { return e.store }

func (e *Engine) liveRefsFor(cs *cellState) []*symtab.Symbol {
	seen := make(map[symtab.SymbolID]bool)
	var out []*symtab.Symbol
	add := func(sym *symtab.Symbol) {
		if sym == nil {
			out = append(out, nil)
			return
		}
		if seen[sym.ID] {
			return
		}
		seen[sym.ID] = true
		out = append(out, sym)
	}
	if cs.lastAnalysis != nil {
		for _, ref := range cs.lastAnalysis.LiveRefs {
			add(e.resolveRef(ref))
		}
	}
	for _, sym := range cs.dynamicLiveRefs {
		add(sym)
	}
	return out
}

// Classify runs the checker over the named cells using each cell's most
// recent static analysis (resolved against current store state) unioned
// with whatever the dynamic tracer actually observed during its last
// execution.
func (e *Engine) Classify(cellIDs []dataflow.CellID) *checker.Result {
	states := make([]checker.CellState, 0, len(cellIDs))
	for _, id := range cellIDs {
		cs := e.cellOrNew(id)
		states = append(states, checker.CellState{
			ID:                 id,
			HasExecuted:        cs.hasExecuted,
			LastExecutionEndTS: cs.lastExecutionEndTS,
			LiveRefs:           e.liveRefsFor(cs),
		})
	}
	return checker.Classify(e.store, e.graph, states)
}

// BuildCellGraph derives the parent/child cell graph over the named cells
// from their static and dynamic live-ref evidence (spec.md §4.5).
func (e *Engine) BuildCellGraph(cellIDs []dataflow.CellID) *dataflow.CellGraph {
	cells := make(map[dataflow.CellID]dataflow.LiveRefSet, len(cellIDs))
	for _, id := range cellIDs {
		cs := e.cellOrNew(id)
		var staticRefs []*symtab.Symbol
		if cs.lastAnalysis != nil {
			for _, ref := range cs.lastAnalysis.LiveRefs {
				if sym := e.resolveRef(ref); sym != nil {
					staticRefs = append(staticRefs, sym)
				}
			}
		}
		cells[id] = dataflow.LiveRefSet{Static: staticRefs, Dynamic: cs.dynamicLiveRefs}
	}
	return e.graph.Build(cells)
}

func flowOrderOf(s string) scheduler.FlowOrder {
	if s == "in_order" {
		return scheduler.InOrder
	}
	return scheduler.AnyOrder
}

func scheduleOf(s string) scheduler.Schedule {
	switch s {
	case "dag_based":
		return scheduler.Dag
	case "hybrid":
		return scheduler.Hybrid
	default:
		return scheduler.Liveness
	}
}

// ScheduleNext implements spec.md §6's schedule_next(last_executed_cell_id)
// operation: given the current classification and a forced-reactive set
// (stale cells pulled in by pull_reactive_updates/push_reactive_updates_to_cousins),
// it picks the next cell to run under the session's configured schedule and
// flow order.
func (e *Engine) ScheduleNext(cellGraph *dataflow.CellGraph, result *checker.Result, forced map[dataflow.CellID]bool, metas map[dataflow.CellID]scheduler.CellMeta) (dataflow.CellID, bool) {
	eligible := scheduler.Eligible(flowOrderOf(e.settings.FlowOrder), result.Ready, forced, e.lastExecutedCellID, metas)
	return e.sched.Next(scheduleOf(e.settings.ExecSchedule), cellGraph, eligible, metas)
}

// ReactivityCleanup discards reactive-session-local scheduler state (the
// broken-cycle memory), per spec.md §6's reactivity_cleanup message.
func (e *Engine) ReactivityCleanup() {
	e.sched = scheduler.New(maxCycleDepth)
}

// computeForcedReactive derives the forced-reactive set scheduler.Eligible
// needs from the two settings spec.md §6 documents but leaves to the
// engine to interpret: PullReactiveUpdates and PushReactiveUpdatesToCousins.
// Both only ever add to the checker's own Ready set; neither ever narrows
// it.
func (e *Engine) computeForcedReactive(cellGraph *dataflow.CellGraph, result *checker.Result) map[dataflow.CellID]bool {
	forced := make(map[dataflow.CellID]bool)

	if e.settings.PullReactiveUpdates {
		// Extend the closure through stale-parents: for every waiting
		// cell, walk its cell-graph parent edges and force in any parent
		// that is itself ready or still waiting, so a reactive run pulls
		// the whole stale chain through in one pass instead of stopping
		// once the nearest hop clears.
		for id, waiting := range result.Waiting {
			if !waiting {
				continue
			}
			for _, edge := range cellGraph.Parents[id] {
				if result.Ready[edge.From] || result.Waiting[edge.From] {
					forced[edge.From] = true
				}
			}
		}
	}

	if e.settings.PushReactiveUpdatesToCousins {
		// Extend to siblings sharing a waiting parent: for every cell
		// already slated to run this round (ready, or just pulled in
		// above), find its cell-graph parent and force in every other
		// child of that same parent that is waiting, so cousins sharing
		// the stale root cause refresh in the same round rather than
		// sitting out until a later one.
		seed := make(map[dataflow.CellID]bool, len(result.Ready)+len(forced))
		for id, ready := range result.Ready {
			if ready {
				seed[id] = true
			}
		}
		for id := range forced {
			seed[id] = true
		}
		for id := range seed {
			for _, parentEdge := range cellGraph.Parents[id] {
				for _, siblingEdge := range cellGraph.Children[parentEdge.From] {
					if result.Waiting[siblingEdge.To] {
						forced[siblingEdge.To] = true
					}
				}
			}
		}
	}

	return forced
}

// ComputeExecSchedule implements spec.md §6's central compute_exec_schedule
// operation: it reclassifies every cell msg.CellMetadataByID names (feeding
// in any content the front-end reports changed, for cells OnCellSubmit
// hasn't already seen), derives the cell graph, folds in the
// pull/push-reactive-updates closure, and, if the session is reactively
// executing, asks the scheduler which cell runs next.
func (e *Engine) ComputeExecSchedule(msg protocol.ComputeExecSchedule) protocol.ComputeExecScheduleResult {
	ids := make([]dataflow.CellID, 0, len(msg.CellMetadataByID))
	for id, meta := range msg.CellMetadataByID {
		cs := e.cellOrNew(id)
		if cs.content != meta.Content {
			e.OnCellSubmit(id, meta.Index, meta.Content)
		} else {
			cs.docIndex = meta.Index
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return e.cellOrNew(ids[i]).docIndex < e.cellOrNew(ids[j]).docIndex
	})

	result := e.Classify(ids)
	cellGraph := e.BuildCellGraph(ids)
	forced := e.computeForcedReactive(cellGraph, result)

	if msg.IsReactivelyExecuting {
		metas := make(map[dataflow.CellID]scheduler.CellMeta, len(ids))
		for _, id := range ids {
			cs := e.cellOrNew(id)
			metas[id] = scheduler.CellMeta{ID: id, DocIndex: cs.docIndex, ExecCount: cs.execCount}
		}
		if next, ok := e.ScheduleNext(cellGraph, result, forced, metas); ok {
			forced[next] = true
		}
	}

	newReady := make([]dataflow.CellID, 0)
	for id, ready := range result.Ready {
		if ready && !e.prevReady[id] {
			newReady = append(newReady, id)
		}
	}
	sortCellIDs(newReady)
	e.prevReady = result.Ready

	return protocol.ComputeExecScheduleResult{
		WaitingCells:          boolMapKeys(result.Waiting),
		ReadyCells:            boolMapKeys(result.Ready),
		NewReadyCells:         newReady,
		ForcedReactiveCells:   boolMapKeys(forced),
		WaiterLinks:           result.WaiterLinks,
		ReadyMakerLinks:       result.ReadyMakerLinks,
		CellParents:           cellEdgeMap(cellGraph.Parents, false),
		CellChildren:          cellEdgeMap(cellGraph.Children, true),
		ExecMode:              e.settings.ExecMode,
		FlowOrder:             e.settings.FlowOrder,
		ExecSchedule:          e.settings.ExecSchedule,
		Highlights:            e.settings.Highlights,
		LastExecutedCellID:    e.lastExecutedCellID,
		LastExecutionWasError: e.lastExecutionWasError,
		Settings:              e.settings,
	}
}

func sortCellIDs(ids []dataflow.CellID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func boolMapKeys(set map[dataflow.CellID]bool) []dataflow.CellID {
	out := make([]dataflow.CellID, 0, len(set))
	for id, v := range set {
		if v {
			out = append(out, id)
		}
	}
	sortCellIDs(out)
	return out
}

// cellEdgeMap flattens a CellGraph adjacency map down to bare cell IDs for
// the wire format. useTo selects which edge endpoint names the *other*
// cell: Children[cell]'s edges run cell->child (want edge.To), Parents[cell]'s
// edges run parent->cell (want edge.From).
func cellEdgeMap(edges map[dataflow.CellID][]dataflow.Edge, useTo bool) map[dataflow.CellID][]dataflow.CellID {
	out := make(map[dataflow.CellID][]dataflow.CellID, len(edges))
	for id, es := range edges {
		ids := make([]dataflow.CellID, 0, len(es))
		for _, e := range es {
			if useTo {
				ids = append(ids, e.To)
			} else {
				ids = append(ids, e.From)
			}
		}
		sortCellIDs(ids)
		out[id] = ids
	}
	return out
}

// Snapshot captures enough per-cell state to resume classification after a
// process restart: each cell's last execution tick, a content hash to
// detect edits made while the engine was down, and its parent cells in
// cellGraph (static and dynamic edges alike).
func (e *Engine) Snapshot(cellIDs []dataflow.CellID, cellGraph *dataflow.CellGraph) protocol.Snapshot {
	snap := protocol.Snapshot{Cells: make([]protocol.CellSnapshot, 0, len(cellIDs))}
	for _, id := range cellIDs {
		cs := e.cellOrNew(id)
		var parents []dataflow.CellID
		for _, edge := range cellGraph.Parents[id] {
			parents = append(parents, edge.From)
		}
		snap.Cells = append(snap.Cells, protocol.CellSnapshot{
			CellID:                  id,
			LastExecutionTS:         cs.lastExecutionEndTS,
			SourceHash:              protocol.HashSource([]byte(cs.content)),
			StaticParentsOfLastLive: parents,
		})
	}
	return snap
}

// Restore seeds cellState bookkeeping from a previously persisted snapshot.
// It never touches the symbol store: a restored session starts with empty
// history and reclassifies from scratch as cells resubmit and re-execute,
// the restored execution ticks only inform staleness-by-content-hash
// comparisons the host performs before resubmitting unchanged cells.
func (e *Engine) Restore(_ context.Context, snap protocol.Snapshot) {
	for _, cs := range snap.Cells {
		state := e.cellOrNew(cs.CellID)
		state.lastExecutionEndTS = cs.LastExecutionTS
		state.hasExecuted = cs.LastExecutionTS != (clock.Tick{})
	}
}
