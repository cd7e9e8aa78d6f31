package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/index"
	"github.com/bold-kg/termdex/internal/output"
	"github.com/bold-kg/termdex/internal/preflight"
	"github.com/bold-kg/termdex/internal/profiling"
	"github.com/bold-kg/termdex/internal/store"
	"github.com/bold-kg/termdex/internal/telemetry"
)

type buildOptions struct {
	force           bool
	commitFrequency int
	flushPolicy     string
	batchSize       int
	ngramMin        int
	ngramMax        int
	maxTokenLength  int
	skipCheck       bool
	metricsFile     string
}

func newBuildIndexCmd(root *rootOptions) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build-index <input>... <index_dir>",
		Short: "Build a term index from tab-separated exports",
		Long: `Build a term index from one or more tab-separated exports.

Each input needs the header columns ?iri ?label ?count ?pos ?type, in any
order. Use - to read from stdin. Rows that fail to parse are logged and
counted but never abort the build.`,
		Example: `  termdex build-index terms.tsv ./indexes/dbpedia
  termdex build-index part1.tsv part2.tsv ./indexes/dbpedia --force
  zcat terms.tsv.gz | termdex build-index - ./indexes/dbpedia`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildIndex(cmd, root, args[:len(args)-1], args[len(args)-1], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Replace an existing index")
	cmd.Flags().IntVar(&opts.commitFrequency, "commit-frequency", 0, "Rows between progress reports")
	cmd.Flags().StringVar(&opts.flushPolicy, "flush-policy", "", "progress or commit")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Documents per write batch")
	cmd.Flags().IntVar(&opts.ngramMin, "ngram-min", 0, "Shortest substring gram")
	cmd.Flags().IntVar(&opts.ngramMax, "ngram-max", 0, "Longest substring gram")
	cmd.Flags().IntVar(&opts.maxTokenLength, "max-token-length", 0, "Drop grams longer than this many bytes")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip disk space and permission checks")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write build metrics to this file in Prometheus text format")

	return cmd
}

// buildConfig layers changed flags over the configuration file values.
func buildConfig(cmd *cobra.Command, root *rootOptions, opts buildOptions) (index.Config, error) {
	c := root.config().Index
	flags := cmd.Flags()
	if flags.Changed("commit-frequency") {
		c.CommitFrequency = opts.commitFrequency
	}
	if flags.Changed("flush-policy") {
		c.FlushPolicy = opts.flushPolicy
	}
	if flags.Changed("batch-size") {
		c.BatchSize = opts.batchSize
	}
	if flags.Changed("ngram-min") {
		c.NgramMin = opts.ngramMin
	}
	if flags.Changed("ngram-max") {
		c.NgramMax = opts.ngramMax
	}
	if flags.Changed("max-token-length") {
		c.MaxTokenLength = opts.maxTokenLength
	}

	policy, err := index.ParseFlushPolicy(c.FlushPolicy)
	if err != nil {
		return index.Config{}, err
	}
	cfg := index.DefaultConfig()
	cfg.Tokenizer = store.TokenizerConfig{
		NgramMin:       c.NgramMin,
		NgramMax:       c.NgramMax,
		MaxTokenLength: c.MaxTokenLength,
	}
	cfg.CommitFrequency = c.CommitFrequency
	cfg.FlushPolicy = policy
	cfg.BatchSize = c.BatchSize
	return cfg, nil
}

func runBuildIndex(cmd *cobra.Command, root *rootOptions, inputs []string, dest string, opts buildOptions) error {
	cfg, err := buildConfig(cmd, root, opts)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if !opts.skipCheck {
		results := preflight.New().ForBuild(inputs, dest)
		for _, w := range preflight.Warnings(results) {
			out.Warning(w)
		}
		if err := preflight.Err(results); err != nil {
			return err
		}
	}

	metrics := telemetry.NewMetrics()
	builder, err := index.NewBuilder(cfg,
		index.WithMetrics(metrics),
		index.WithProgress(func(p index.Progress) {
			out.Counts(p.Source, p.Processed, p.Success, p.Errors, p.Elapsed)
		}))
	if err != nil {
		return err
	}

	sources := make([]index.Source, 0, len(inputs))
	for _, in := range inputs {
		sources = append(sources, index.FileSource(in))
	}

	slog.Info("build_started",
		slog.Any("inputs", inputs),
		slog.String("dest", dest),
		slog.Bool("force", opts.force))

	report, err := builder.Build(cmd.Context(), sources, dest, opts.force)
	out.ProgressDone()
	if err != nil {
		return err
	}

	slog.Info("build_finished",
		slog.Int("success", report.SuccessCount),
		slog.Int("errors", report.ErrorCount),
		slog.Duration("elapsed", report.Elapsed),
		slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			return errors.New(errors.ErrCodeFilePermission, "failed to write build metrics", err)
		}
	}

	out.Successf("Created index with %d documents (%d errors)", report.SuccessCount, report.ErrorCount)
	return nil
}
