// Package dataflow derives the cell graph from the symbol store: cell edges
// are never stored independently, they are recomputed on demand by walking
// live-ref sets against an inverted symbol->defining-cell index, the same
// BFS-over-adjacency technique the teacher's
// Analyzer.computeTransitiveClosure uses to propagate XFER edges through a
// chain, applied here to cell-parent propagation instead.
package dataflow

import (
	"github.com/viant/dflow/symtab"
)

// CellID identifies a notebook cell. The front-end assigns these; the
// engine never generates its own.
type CellID string

// Edge is one cell->cell dependency, tagged by which collaborator's
// evidence induced it. Either Static or Dynamic being true is enough for
// the edge to exist; both can be true at once.
type Edge struct {
	From    CellID
	To      CellID
	Static  bool
	Dynamic bool
}

// LiveRefSet holds a cell's two live-reference observations: the ones the
// static analyzer found by reading source before execution, and the ones
// the tracer actually observed during execution. Spec.md §4.5 requires
// either source to independently induce a cell edge.
type LiveRefSet struct {
	Static  []*symtab.Symbol
	Dynamic []*symtab.Symbol
}

// Graph is the thin index over Store that makes cell-level queries
// possible: it never owns symbol data, only the exec-number -> cell
// mapping needed to resolve "which cell last defined this symbol".
type Graph struct {
	store      *symtab.Store
	execToCell map[int]CellID
}

// New returns a Graph reading from store.
func New(store *symtab.Store) *Graph {
	return &Graph{store: store, execToCell: make(map[int]CellID)}
}

// RecordExecution associates an execution number (clock.Tick.Exec) with the
// cell that ran during it. The engine calls this once per cell execution,
// right after clock.Clock.NewCell.
func (g *Graph) RecordExecution(exec int, cell CellID) {
	g.execToCell[exec] = cell
}

// DefiningCell resolves which cell last defined sym, via the cell that
// executed at sym.DefinedAt.Exec. Returns false if the execution number
// predates any recorded cell (e.g. a symbol pre-seeded before the session
// started).
func (g *Graph) DefiningCell(sym *symtab.Symbol) (CellID, bool) {
	if sym == nil {
		return "", false
	}
	cell, ok := g.execToCell[sym.DefinedAt.Exec]
	return cell, ok
}

// CellEdges computes the parent edges into useCell from refs, the live
// references observed for useCell (spec.md §4.5: "some symbol defined
// (last) in c_def is in live_refs(c_use)"). Self-edges (a cell depending on
// a symbol it itself last defined) are never produced.
func (g *Graph) CellEdges(useCell CellID, refs LiveRefSet) []Edge {
	acc := make(map[CellID]*Edge)
	mark := func(syms []*symtab.Symbol, setStatic, setDynamic bool) {
		for _, sym := range syms {
			defCell, ok := g.DefiningCell(sym)
			if !ok || defCell == useCell {
				continue
			}
			e, exists := acc[defCell]
			if !exists {
				e = &Edge{From: defCell, To: useCell}
				acc[defCell] = e
			}
			if setStatic {
				e.Static = true
			}
			if setDynamic {
				e.Dynamic = true
			}
		}
	}
	mark(refs.Static, true, false)
	mark(refs.Dynamic, false, true)

	out := make([]Edge, 0, len(acc))
	for _, e := range acc {
		out = append(out, *e)
	}
	return out
}

// CellGraph is the derived parent/child view over a fixed set of cells,
// built once per classification/scheduling pass.
type CellGraph struct {
	Parents  map[CellID][]Edge
	Children map[CellID][]Edge
}

// Build computes the full cell graph for the given live-ref sets, one entry
// per cell under consideration.
func (g *Graph) Build(cells map[CellID]LiveRefSet) *CellGraph {
	cg := &CellGraph{Parents: make(map[CellID][]Edge), Children: make(map[CellID][]Edge)}
	for cell, refs := range cells {
		edges := g.CellEdges(cell, refs)
		cg.Parents[cell] = edges
		for _, e := range edges {
			cg.Children[e.From] = append(cg.Children[e.From], e)
		}
	}
	return cg
}

// Reachable returns every cell reachable from start by following child
// (downstream) edges, inclusive of start itself: the cells a would-be
// execution would ripple into, found via the same
// worklist-over-adjacency style gapid's dead-code-elimination pass uses to
// propagate liveness outward from a root set.
func (cg *CellGraph) Reachable(start CellID) map[CellID]bool {
	visited := map[CellID]bool{start: true}
	queue := []CellID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cg.Children[cur] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return visited
}
