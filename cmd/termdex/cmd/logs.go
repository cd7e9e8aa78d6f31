package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bold-kg/termdex/internal/logging"
)

func newLogsCmd(root *rootOptions) *cobra.Command {
	var (
		lines int
		level string
		grep  string
		file  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log records",
		Example: `  termdex logs -n 50
  termdex logs --level warn --grep dbpedia`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = root.config().Logging.File
			}
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			viewer := logging.NewViewer(logging.ViewerConfig{Level: level, Contains: grep}, cmd.OutOrStdout())
			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of records (0 for all)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&grep, "grep", "", "Only records containing this text")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default from config)")

	return cmd
}
