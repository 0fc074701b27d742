package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd assembles the dflow command tree. Each subcommand is defined
// in its own file, the way the teacher's larger CLI reference repos in the
// retrieved pack split one command per file rather than one cobra.Command
// tree built inline in main.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dflow",
		Short:         "Replay and inspect notebook cell dataflow sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newSnapshotCmd())
	return root
}
