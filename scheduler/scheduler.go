// Package scheduler picks the next cell to execute during a reactive
// session, per spec.md §4.7. It never mutates the symbol store: like the
// checker, it only reads the cell graph and classification the caller
// supplies.
package scheduler

import (
	"sort"

	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/internal/invariant"
)

// CellID is the dataflow package's cell identifier, reused directly so
// scheduler callers never need to import dataflow solely for the type.
type CellID = dataflow.CellID

// Schedule selects which ordering rule governs which ready cell runs next.
type Schedule int

const (
	// Liveness runs the earliest (by execution count, then document order)
	// ready or forced-reactive cell.
	Liveness Schedule = iota
	// Dag runs the first cell in topological order of the cell graph over the
	// eligible set the caller passes; it does not narrow that set to
	// newly-ready cells. When no topological order exists it falls back to
	// the lowest execution count.
	Dag
	// Hybrid orders strongly-connected components topologically and orders
	// cells within an SCC by liveness. This is the default schedule.
	Hybrid
)

// FlowOrder controls which cells are even eligible to run next.
type FlowOrder int

const (
	// AnyOrder makes every cell eligible regardless of document position.
	AnyOrder FlowOrder = iota
	// InOrder restricts eligibility to cells at or after the just-executed
	// cell's document position.
	InOrder
)

// CellMeta is the scheduling-relevant metadata for one cell: its position
// in the document and how many times it has executed so far.
type CellMeta struct {
	ID        CellID
	DocIndex  int
	ExecCount int
}

// Scheduler holds the bounded-depth cycle-detection budget and remembers
// which cycles have already been broken this session, so a cycle that keeps
// reappearing does not repeatedly hijack scheduling (spec.md §4.7: "marks
// the cycle broken for this session").
type Scheduler struct {
	maxCycleDepth int
	brokenCycles  map[string]bool
}

// New returns a Scheduler whose cycle search gives up after maxCycleDepth
// hops, per cell graph traversed.
func New(maxCycleDepth int) *Scheduler {
	return &Scheduler{maxCycleDepth: maxCycleDepth, brokenCycles: make(map[string]bool)}
}

// Next selects the next cell to run. eligible is the set of candidate cells
// (ready ∪ forced-reactive, already filtered to the flow order by the
// caller via Eligible); metas supplies document position and execution
// count for every cell in eligible. Returns false if no cell is eligible.
func (s *Scheduler) Next(schedule Schedule, graph *dataflow.CellGraph, eligible map[CellID]bool, metas map[CellID]CellMeta) (CellID, bool) {
	if len(eligible) == 0 {
		return "", false
	}

	if cycle, found := s.detectCycle(graph, eligible); found {
		sig := cycleSignature(cycle)
		if !s.brokenCycles[sig] {
			s.brokenCycles[sig] = true
			return lowestExecCount(cycle, metas), true
		}
		// Already broken once this session: fall through to normal
		// ordering instead of emitting the same member forever.
	}

	switch schedule {
	case Dag:
		order, _ := topoOrder(eligible, subEdges(graph, eligible))
		if len(order) > 0 {
			return order[0], true
		}
		return lowestExecCount(setToSlice(eligible), metas), true
	case Hybrid:
		return s.hybridNext(graph, eligible, metas), true
	default:
		return lowestExecCount(setToSlice(eligible), metas), true
	}
}

// Eligible computes the candidate set ready ∪ forced, restricted by flow.
func Eligible(flow FlowOrder, ready, forced map[CellID]bool, lastExecuted CellID, metas map[CellID]CellMeta) map[CellID]bool {
	out := make(map[CellID]bool)
	var floor int
	inOrder := flow == InOrder
	if inOrder {
		floor = metas[lastExecuted].DocIndex
	}
	add := func(set map[CellID]bool) {
		for id := range set {
			if !set[id] {
				continue
			}
			if inOrder && metas[id].DocIndex < floor {
				continue
			}
			out[id] = true
		}
	}
	add(ready)
	add(forced)
	return out
}

func (s *Scheduler) hybridNext(graph *dataflow.CellGraph, eligible map[CellID]bool, metas map[CellID]CellMeta) CellID {
	comps := tarjanSCC(eligible, subEdges(graph, eligible))
	// tarjanSCC returns components in reverse topological order (sinks
	// first); the cell graph's edges point parent->child (from defining
	// cell to dependent cell), so the component containing the earliest
	// runnable work is the *last* one tarjan emits as a strict DAG
	// collapses to, i.e. a root with no incoming eligible edges. Emitting
	// order-within-SCC by liveness and walking components in the order
	// that respects edges (sources before sinks) means reversing tarjan's
	// natural output.
	for i := len(comps) - 1; i >= 0; i-- {
		comp := comps[i]
		if len(comp) == 0 {
			continue
		}
		return lowestExecCount(comp, metas)
	}
	return lowestExecCount(setToSlice(eligible), metas)
}

// lowestExecCount picks the least-executed (then earliest document
// position) member of cells. Every call site only ever reaches here with a
// non-empty candidate set already established by its caller (Next checks
// eligible up front, detectCycle never returns an empty cycle); an empty
// cells here means a caller's bookkeeping is broken, not that the session
// happened to have nothing eligible, so it is checked rather than left to
// surface as an index-out-of-range panic one line down.
func lowestExecCount(cells []CellID, metas map[CellID]CellMeta) CellID {
	invariant.Check(len(cells) > 0, "lowestExecCount called with no candidate cells")
	sort.Slice(cells, func(i, j int) bool {
		mi, mj := metas[cells[i]], metas[cells[j]]
		if mi.ExecCount != mj.ExecCount {
			return mi.ExecCount < mj.ExecCount
		}
		return mi.DocIndex < mj.DocIndex
	})
	return cells[0]
}

func setToSlice(set map[CellID]bool) []CellID {
	out := make([]CellID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// subEdges restricts graph's child edges to pairs where both endpoints are
// members of eligible.
func subEdges(graph *dataflow.CellGraph, eligible map[CellID]bool) map[CellID][]CellID {
	out := make(map[CellID][]CellID)
	for from := range eligible {
		for _, e := range graph.Children[from] {
			if eligible[e.To] {
				out[from] = append(out[from], e.To)
			}
		}
	}
	return out
}

// detectCycle runs a bounded-depth DFS from every eligible cell, looking
// for a back edge within the eligible subgraph. Returns the first cycle
// found as the ordered list of its members.
func (s *Scheduler) detectCycle(graph *dataflow.CellGraph, eligible map[CellID]bool) ([]CellID, bool) {
	edges := subEdges(graph, eligible)
	visited := make(map[CellID]bool)

	var stack []CellID
	onStack := make(map[CellID]bool)

	var walk func(cell CellID, depth int) ([]CellID, bool)
	walk = func(cell CellID, depth int) ([]CellID, bool) {
		if depth > s.maxCycleDepth {
			return nil, false
		}
		visited[cell] = true
		stack = append(stack, cell)
		onStack[cell] = true

		for _, next := range edges[cell] {
			if onStack[next] {
				// Found the back edge: slice the stack from next's first
				// occurrence to form the cycle.
				for i, c := range stack {
					if c == next {
						cycle := append([]CellID{}, stack[i:]...)
						return cycle, true
					}
				}
			}
			if !visited[next] {
				if cycle, found := walk(next, depth+1); found {
					return cycle, true
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[cell] = false
		return nil, false
	}

	for cell := range eligible {
		if visited[cell] {
			continue
		}
		if cycle, found := walk(cell, 0); found {
			return cycle, true
		}
	}
	return nil, false
}

func cycleSignature(cells []CellID) string {
	cp := append([]CellID{}, cells...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	sig := ""
	for i, c := range cp {
		if i > 0 {
			sig += ","
		}
		sig += string(c)
	}
	return sig
}
