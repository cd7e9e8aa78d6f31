package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bold-kg/termdex/internal/output"
	"github.com/bold-kg/termdex/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor [index_dir]",
		Short: "Check that an index can be built here",
		Long: `Run the checks build-index performs before writing an index.

Checks:
  - Write permissions at the index location
  - Disk space (100MB minimum)
  - File descriptor limits (1024 recommended)`,
		Example: `  termdex doctor ./indexes/dbpedia
  termdex doctor --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := "."
			if len(args) == 1 {
				dest = args[0]
			}
			results := preflight.New().ForBuild(nil, dest)
			if jsonOutput {
				if err := output.New(cmd.OutOrStdout()).JSON(results); err != nil {
					return err
				}
			} else {
				preflight.PrintResults(cmd.OutOrStdout(), results)
			}
			return preflight.Err(results)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
