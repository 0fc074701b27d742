// Package testfixture loads multi-cell notebook scenarios from txtar
// archives, the way Go tooling repositories commonly pack many small named
// files into one golden-file-friendly archive rather than a directory tree
// per test case.
package testfixture

import (
	"fmt"

	"golang.org/x/tools/txtar"
)

// Cell is one notebook cell parsed out of a txtar archive: its file name
// becomes the cell ID, its body the source text.
type Cell struct {
	ID     string
	Source string
}

// Scenario is an ordered list of cells plus an optional comment header
// (the archive's txtar.Archive.Comment), used to describe the scenario
// being tested.
type Scenario struct {
	Description string
	Cells       []Cell
}

// Parse reads a txtar archive into a Scenario. File order in the archive is
// preserved as cell order, since scenarios are sensitive to document
// position (spec.md §4.7, in-order flow).
func Parse(data []byte) (*Scenario, error) {
	archive := txtar.Parse(data)
	sc := &Scenario{Description: string(archive.Comment)}
	for _, f := range archive.Files {
		sc.Cells = append(sc.Cells, Cell{ID: f.Name, Source: string(f.Data)})
	}
	if len(sc.Cells) == 0 {
		return nil, fmt.Errorf("testfixture: archive has no cell files")
	}
	return sc, nil
}
