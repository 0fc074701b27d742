package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/viant/dflow/dataflow"
	"github.com/viant/dflow/protocol"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run ARCHIVE",
		Short: "Replay a recorded scenario archive and report the compute_exec_schedule reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, ids, _, _, err := runSession(ctx, args[0])
			if err != nil {
				return err
			}

			metaByID := make(map[dataflow.CellID]protocol.CellMetadata, len(ids))
			for _, id := range ids {
				metaByID[id] = e.CellMetadata(id)
			}
			result := e.ComputeExecSchedule(protocol.ComputeExecSchedule{
				CellMetadataByID:      metaByID,
				IsReactivelyExecuting: e.Settings().ExecMode == "reactive",
			})

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("dflow: encode report: %w", err)
			}
			return nil
		},
	}
	return cmd
}
