package main

import (
	"context"
	"fmt"

	"github.com/viant/afs"

	"github.com/viant/dflow/checker"
	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/engine"
	"github.com/viant/dflow/internal/testfixture"
	"github.com/viant/dflow/protocol"
	"github.com/viant/dflow/static"

	"golang.org/x/sync/errgroup"
)

// loadArchive downloads url via afs (so a local path, an in-memory URL, or
// any other afs-backed scheme all work the same way) and parses it as a
// txtar scenario.
func loadArchive(ctx context.Context, url string) (*testfixture.Scenario, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dflow: read %s: %w", url, err)
	}
	sc, err := testfixture.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dflow: parse %s: %w", url, err)
	}
	return sc, nil
}

// preAnalyze runs static analysis over every cell's source concurrently.
// The analyses are independent of each other (each is a fresh parse of one
// cell's text), so there is nothing to serialize here; only the later
// engine replay, which advances a single shared clock, must run in
// document order.
func preAnalyze(cells []testfixture.Cell) ([]*static.Result, error) {
	results := make([]*static.Result, len(cells))
	g, _ := errgroup.WithContext(context.Background())
	for i, cell := range cells {
		i, cell := i, cell
		g.Go(func() error {
			analyzer := static.New()
			res, err := analyzer.Analyze([]byte(cell.Source))
			if err != nil {
				return fmt.Errorf("dflow: analyze cell %s: %w", cell.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// replaySession feeds every cell through the engine in document order,
// simulating the dynamic trace a live host runtime would otherwise
// produce: for each assignment found by static analysis, its bare-name
// parents are loaded and its target stored with an execution-unique
// handle. This lets the CLI exercise the full classification/scheduling
// pipeline against a recorded scenario without an embedded interpreter.
func replaySession(e *engine.Engine, cells []testfixture.Cell, analyses []*static.Result) []dataflow.CellID {
	ids := make([]dataflow.CellID, 0, len(cells))
	var loc uintptr
	for i, cell := range cells {
		id := dataflow.CellID(cell.ID)
		ids = append(ids, id)

		e.OnCellSubmit(id, i, cell.Source)
		e.NewCellExecution(id)
		for _, asn := range analyses[i].Assignments {
			e.OnStatementEnter()
			for _, p := range asn.Parents {
				if p.IsBare() {
					loc++
					e.OnNameLoad(loc, e.GlobalScope(), p.Root)
				}
			}
			loc++
			e.OnNameStore(loc, e.GlobalScope(), asn.Target.Root, loc)
			e.OnStatementExit(false)
		}
		e.CompleteCellExecution(id, false)
	}
	return ids
}

// runSession loads, pre-analyzes, and replays url, returning the engine,
// the classification result, and the derived cell graph in one shot — the
// shape every subcommand needs, just rendered differently.
func runSession(ctx context.Context, url string) (*engine.Engine, []dataflow.CellID, *checker.Result, *dataflow.CellGraph, error) {
	sc, err := loadArchive(ctx, url)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	analyses, err := preAnalyze(sc.Cells)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	e := engine.New(protocol.DefaultSettings())
	ids := replaySession(e, sc.Cells, analyses)

	result := e.Classify(ids)
	cellGraph := e.BuildCellGraph(ids)
	return e, ids, result, cellGraph, nil
}
