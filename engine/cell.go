package engine

import (
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/static"
	"github.com/viant/dflow/symtab"
)

// cellState is the engine's private bookkeeping for one cell: its last
// static analysis, execution history, and the dynamic live refs its last
// execution actually observed.
type cellState struct {
	id       dataflow.CellID
	docIndex int
	content  string

	lastAnalysis *static.Result

	hasExecuted        bool
	lastExecutionEndTS clock.Tick
	execCount          int

	dynamicLiveRefs []*symtab.Symbol
}

func (e *Engine) cellOrNew(id dataflow.CellID) *cellState {
	if cs, ok := e.cells[id]; ok {
		return cs
	}
	cs := &cellState{id: id}
	e.cells[id] = cs
	return cs
}

// resolveRef resolves a static.Ref (a root name plus a dotted/bracketed
// path) against the engine's global scope and whatever namespaces have been
// materialized so far. A path segment that cannot be resolved (the
// namespace doesn't exist yet, or the attribute/item was never observed)
// makes the whole reference resolve to nil, which the checker then treats
// pessimistically as a waiting/unresolved reference (spec.md §4.6).
func (e *Engine) resolveRef(ref static.Ref) *symtab.Symbol {
	sym := e.store.Lookup(e.global, ref.Root)
	for _, elem := range ref.Path {
		if sym == nil {
			return nil
		}
		if sym.Namespace == nil {
			return nil
		}
		switch elem.Kind {
		case static.AttrElem:
			sym = sym.Namespace.Attr(elem.Attr)
		case static.SubscriptElem:
			sym = sym.Namespace.Item(symtab.StringKey(elem.SubscriptText))
		}
	}
	return sym
}
