package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/viant/dflow/protocol"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot ARCHIVE OUT",
		Short: "Replay a recorded scenario archive and persist its session snapshot to OUT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, ids, _, cg, err := runSession(ctx, args[0])
			if err != nil {
				return err
			}

			snap := e.Snapshot(ids, cg)
			fs := afs.New()
			if err := protocol.Store(ctx, fs, args[1], snap); err != nil {
				return fmt.Errorf("dflow: store snapshot: %w", err)
			}
			return nil
		},
	}
	return cmd
}
