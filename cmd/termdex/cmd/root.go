// Package cmd provides the termdex CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bold-kg/termdex/internal/config"
	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/logging"
	"github.com/bold-kg/termdex/internal/profiling"
	"github.com/bold-kg/termdex/pkg/version"
)

// rootOptions is shared by every subcommand of one root.
type rootOptions struct {
	debug      bool
	configFile string
	profile    profiling.Options

	cfg        *config.Config
	logCleanup func()
	profiler   *profiling.Session
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "termdex",
		Short: "Substring and fuzzy search over knowledge-graph terms",
		Long: `termdex indexes the IRIs, labels and types of a knowledge graph export
and answers typo-tolerant substring queries with per-term frequency
statistics.

Build an index from one or more tab-separated exports, then search it
from the command line or over HTTP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.start()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return opts.finish()
		},
	}
	cmd.SetVersionTemplate("termdex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Debug logging, mirrored to stderr")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Extra config file layered over user and project config")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newBuildIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd, opts
}

// start loads configuration, then sets up logging and profiling.
func (o *rootOptions) start() error {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg, err := config.LoadFile(wd, o.configFile)
	if err != nil {
		return errors.ConfigError("failed to load configuration", err).
			WithSuggestion("Run 'termdex config show' to inspect the effective settings")
	}
	o.cfg = cfg

	logCfg := logging.NewConfig(cfg.Logging.Level, cfg.Logging.File, o.debug)
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		logging.Discard()
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	} else {
		o.logCleanup = cleanup
	}
	slog.Debug("config_loaded",
		slog.String("version", version.Short()),
		slog.String("log_file", logCfg.FilePath))

	if o.profile.Enabled() {
		session, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.profiler = session
	}
	return nil
}

// finish stops profiling and closes the log file. Safe to call twice.
func (o *rootOptions) finish() error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
		o.profiler = nil
	}
	if o.logCleanup != nil {
		o.logCleanup()
		o.logCleanup = nil
	}
	return err
}

// config returns the loaded configuration, or the defaults when the root
// hooks did not run.
func (o *rootOptions) config() *config.Config {
	if o.cfg == nil {
		return config.NewConfig()
	}
	return o.cfg
}

// Execute runs the CLI with ctx, which cancels long-running commands.
func Execute(ctx context.Context) error {
	cmd, opts := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	if ferr := opts.finish(); err == nil {
		err = ferr
	}
	return err
}
