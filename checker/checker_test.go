package checker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/dflow/checker"
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/symtab"
)

func TestStaleLiveRefMarksCellWaitingWithWaiterLink(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	graph := dataflow.New(store)

	x := store.Upsert(global, "x", 1, clock.Tick{Exec: 1, Stmt: 1})
	graph.RecordExecution(1, "cell-a")
	graph.RecordExecution(2, "cell-b")

	y := store.Upsert(global, "y", 2, clock.Tick{Exec: 2, Stmt: 1})
	store.AddParent(y, x, clock.Tick{Exec: 2, Stmt: 1}, symtab.Static)

	// x is redefined after cell-b ran, making y (which depends on x) stale.
	store.Mutate(x, clock.Tick{Exec: 3, Stmt: 1})

	cells := []checker.CellState{
		{ID: "cell-b", HasExecuted: true, LastExecutionEndTS: clock.Tick{Exec: 2, Stmt: 1}, LiveRefs: []*symtab.Symbol{y}},
	}
	res := checker.Classify(store, graph, cells)

	assert.True(t, res.Waiting["cell-b"])
	assert.False(t, res.Ready["cell-b"])
	assert.Contains(t, res.WaiterLinks["cell-b"], dataflow.CellID("cell-b"))
}

func TestFreshReferenceMarksProviderReadyMaking(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	graph := dataflow.New(store)

	x := store.Upsert(global, "x", 1, clock.Tick{Exec: 1, Stmt: 1})
	graph.RecordExecution(1, "cell-a")
	graph.RecordExecution(2, "cell-b")

	cells := []checker.CellState{
		{ID: "cell-b", HasExecuted: true, LastExecutionEndTS: clock.Tick{Exec: 0, Stmt: 0}, LiveRefs: []*symtab.Symbol{x}},
	}
	res := checker.Classify(store, graph, cells)

	require.Contains(t, res.ReadyMakerLinks, dataflow.CellID("cell-a"))
	assert.Contains(t, res.ReadyMakerLinks["cell-a"], dataflow.CellID("cell-b"))
}

func TestUnresolvedLiveRefIsPessimisticallyWaiting(t *testing.T) {
	store := symtab.NewStore()
	graph := dataflow.New(store)

	cells := []checker.CellState{
		{ID: "cell-a", HasExecuted: true, LiveRefs: []*symtab.Symbol{nil}},
	}
	res := checker.Classify(store, graph, cells)

	assert.True(t, res.Waiting["cell-a"])
	assert.False(t, res.Ready["cell-a"])
}

func TestNeverExecutedCellIsNeverWaiting(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	graph := dataflow.New(store)

	x := store.Upsert(global, "x", 1, clock.Tick{Exec: 1, Stmt: 1})
	graph.RecordExecution(1, "cell-a")

	cells := []checker.CellState{
		{ID: "cell-b", HasExecuted: false, LiveRefs: []*symtab.Symbol{x}},
	}
	res := checker.Classify(store, graph, cells)

	assert.False(t, res.Waiting["cell-b"])
	assert.True(t, res.Ready["cell-b"])
	assert.Contains(t, res.ReadyMakerLinks["cell-a"], dataflow.CellID("cell-b"))
}
