// Package checker classifies cells as waiting or ready given the current
// symbol store state, per spec.md §4.6. It never mutates the store: the
// checker, like the scheduler, is read-only (spec.md §5).
package checker

import (
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/symtab"
)

// CellState is the checker's view of one cell: its resolved live references
// and when it last finished executing.
type CellState struct {
	ID CellID

	// HasExecuted is false for a cell that has never run; its
	// LastExecutionEndTS is then treated as -infinity (spec.md §4.6 step 2),
	// so every live ref's defining symbol counts as a fresh reference.
	HasExecuted        bool
	LastExecutionEndTS clock.Tick

	// LiveRefs is the cell's resolved live-reference set. A nil entry
	// represents a reference the scope chain could not resolve at all;
	// spec.md §4.6 says to treat those pessimistically as waiting.
	LiveRefs []*symtab.Symbol
}

// CellID is an alias of dataflow.CellID so callers can pass dataflow-layer
// values directly without importing that package for the type alone.
type CellID = dataflow.CellID

// Result holds the four outputs spec.md §4.6 step 3 names.
type Result struct {
	Waiting         map[CellID]bool
	Ready           map[CellID]bool
	WaiterLinks     map[CellID][]CellID
	ReadyMakerLinks map[CellID][]CellID
}

// Classify implements spec.md §4.6 steps 1-3 against the current store
// state, resolving parent staleness via store.Get.
func Classify(store *symtab.Store, graph *dataflow.Graph, cells []CellState) *Result {
	res := &Result{
		Waiting:         make(map[CellID]bool),
		Ready:           make(map[CellID]bool),
		WaiterLinks:     make(map[CellID][]CellID),
		ReadyMakerLinks: make(map[CellID][]CellID),
	}
	resolve := store.Get

	for _, c := range cells {
		waiting := false
		waiterSeen := make(map[CellID]bool)

		for _, sym := range c.LiveRefs {
			if sym == nil {
				waiting = true
				continue
			}
			if c.HasExecuted && sym.Stale(resolve) {
				waiting = true
				if defCell, ok := graph.DefiningCell(sym); ok && !waiterSeen[defCell] {
					waiterSeen[defCell] = true
					res.WaiterLinks[c.ID] = append(res.WaiterLinks[c.ID], defCell)
				}
			}

			fresh := !c.HasExecuted || sym.DefinedAt.After(c.LastExecutionEndTS)
			if fresh {
				if defCell, ok := graph.DefiningCell(sym); ok && defCell != c.ID {
					res.ReadyMakerLinks[defCell] = appendUnique(res.ReadyMakerLinks[defCell], c.ID)
				}
			}
		}

		res.Waiting[c.ID] = waiting
		res.Ready[c.ID] = !waiting
	}
	return res
}

func appendUnique(list []CellID, id CellID) []CellID {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
