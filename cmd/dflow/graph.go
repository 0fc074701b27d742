package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/viant/dflow/dataflow"
)

// cellNode and cellEdge mirror the teacher's IRNode/IREdge export shape
// (analyzer/graph_exporter.go: a normalized ID, a type tag, and an open
// properties bag), applied here to cells instead of source identifiers, so
// the derived cell graph can be piped into the same kind of downstream
// graph tooling (a store, a visualizer) that IRGraph targets.
type cellNode struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type cellEdge struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type cellGraphExport struct {
	Nodes []cellNode `json:"nodes"`
	Edges []cellEdge `json:"edges"`
}

func buildCellGraphExport(ids []dataflow.CellID, cg *dataflow.CellGraph) cellGraphExport {
	out := cellGraphExport{Nodes: make([]cellNode, 0, len(ids))}
	for _, id := range ids {
		out.Nodes = append(out.Nodes, cellNode{ID: string(id), Type: "cell"})
	}
	for _, id := range ids {
		for _, edge := range cg.Parents[id] {
			out.Edges = append(out.Edges, cellEdge{
				Source: string(edge.From),
				Target: string(edge.To),
				Type:   "dataflow",
				Properties: map[string]interface{}{
					"static":  edge.Static,
					"dynamic": edge.Dynamic,
				},
			})
		}
	}
	return out
}

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph ARCHIVE",
		Short: "Replay a recorded scenario archive and export the derived cell graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, ids, _, cg, err := runSession(ctx, args[0])
			if err != nil {
				return err
			}

			export := buildCellGraphExport(ids, cg)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(export); err != nil {
				return fmt.Errorf("dflow: encode graph: %w", err)
			}
			return nil
		},
	}
	return cmd
}
