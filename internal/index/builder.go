// Package index builds term indexes from tab-separated exports.
package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/normalize"
	"github.com/bold-kg/termdex/internal/record"
	"github.com/bold-kg/termdex/internal/store"
	"github.com/bold-kg/termdex/internal/telemetry"
)

// FlushPolicy decides what happens every CommitFrequency rows.
type FlushPolicy string

const (
	// FlushProgress only reports progress at each boundary; documents become
	// visible when the write batch fills up and at the final commit.
	FlushProgress FlushPolicy = "progress"
	// FlushCommit commits the pending batch at each boundary.
	FlushCommit FlushPolicy = "commit"
)

// ParseFlushPolicy parses a policy name.
func ParseFlushPolicy(s string) (FlushPolicy, error) {
	switch FlushPolicy(s) {
	case FlushProgress, FlushCommit:
		return FlushPolicy(s), nil
	default:
		return "", errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown flush policy %q (want progress or commit)", s), nil)
	}
}

// Config tunes a build.
type Config struct {
	Tokenizer       store.TokenizerConfig
	CommitFrequency int
	FlushPolicy     FlushPolicy
	BatchSize       int
	QueueSize       int
}

// DefaultConfig returns the build defaults.
func DefaultConfig() Config {
	return Config{
		Tokenizer:       store.DefaultTokenizerConfig(),
		CommitFrequency: 100000,
		FlushPolicy:     FlushProgress,
		BatchSize:       10000,
		QueueSize:       1024,
	}
}

// Validate rejects settings the builder cannot run with.
func (c Config) Validate() error {
	if err := c.Tokenizer.Validate(); err != nil {
		return errors.ConfigError("invalid tokenizer settings", err)
	}
	if c.CommitFrequency <= 0 {
		return errors.ConfigError(fmt.Sprintf("commit frequency must be positive, got %d", c.CommitFrequency), nil)
	}
	if c.BatchSize <= 0 {
		return errors.ConfigError(fmt.Sprintf("batch size must be positive, got %d", c.BatchSize), nil)
	}
	if _, err := ParseFlushPolicy(string(c.FlushPolicy)); err != nil {
		return err
	}
	return nil
}

// Progress is reported at every CommitFrequency boundary.
type Progress struct {
	Source    string
	Processed int
	Success   int
	Errors    int
	Committed bool
	Elapsed   time.Duration
}

// Report is the final tally of a build.
type Report struct {
	SuccessCount int
	ErrorCount   int
	Sources      int
	Elapsed      time.Duration
}

// Builder writes term documents into a fresh index.
type Builder struct {
	config   Config
	progress func(Progress)
	metrics  *telemetry.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithProgress calls fn at each boundary, on the writer goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(b *Builder) {
		b.progress = fn
	}
}

// WithMetrics records the final tally in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// NewBuilder validates cfg and returns a builder.
func NewBuilder(cfg Config, opts ...Option) (*Builder, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{config: cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build creates the index at dest and loads every source into it. An
// existing dest is only replaced when force is set.
func (b *Builder) Build(ctx context.Context, sources []Source, dest string, force bool) (*Report, error) {
	lock := NewDestLock(dest)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("index_unlock_failed", slog.String("path", lock.Path()), slog.String("error", err.Error()))
		}
	}()

	if _, err := os.Stat(dest); err == nil {
		if !force {
			return nil, errors.New(errors.ErrCodeIndexExists,
				fmt.Sprintf("index directory %s already exists", dest), nil).
				WithSuggestion("Pass --force to rebuild it")
		}
		slog.Info("index_removing_existing", slog.String("path", dest))
		if err := os.RemoveAll(dest); err != nil {
			return nil, errors.IOError(fmt.Sprintf("failed to remove existing index %s", dest), err)
		}
	}

	idx, err := store.Create(dest, b.config.Tokenizer)
	if err != nil {
		return nil, err
	}

	report, err := b.Load(ctx, idx, sources)
	closeErr := idx.Close()
	if err == nil && closeErr != nil {
		err = errors.New(errors.ErrCodeIndexFailed, "failed to close index", closeErr)
	}
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			slog.Warn("index_cleanup_failed", slog.String("path", dest), slog.String("error", rmErr.Error()))
		}
		return nil, err
	}
	return report, nil
}

// row is one parsed line travelling from the reader to the writer.
type row struct {
	source string
	cursor int
	rec    record.Record
	err    error
}

// Load streams every source into idx and commits once at the end. Bad rows
// are logged and counted; I/O failures and cancellation abort the load.
func (b *Builder) Load(ctx context.Context, idx *store.Index, sources []Source) (*Report, error) {
	start := time.Now()
	rows := make(chan row, b.config.QueueSize)
	report := &Report{Sources: len(sources)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)
		for _, src := range sources {
			if err := readSource(gctx, src, rows); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		return b.write(gctx, idx, rows, report, start)
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	report.Elapsed = time.Since(start)
	b.metrics.ObserveBuild(report.SuccessCount, report.ErrorCount)
	slog.Info("index_build_complete",
		slog.Int("documents", report.SuccessCount),
		slog.Int("errors", report.ErrorCount),
		slog.Int("sources", report.Sources),
		slog.Int64("duration_ms", report.Elapsed.Milliseconds()))
	return report, nil
}

func readSource(ctx context.Context, src Source, out chan<- row) error {
	rc, err := src.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	r, err := record.NewReader(rc)
	if err != nil {
		return errors.New(errors.ErrCodeFileCorrupt, "unreadable term export", err).
			WithDetail("source", src.Name)
	}
	slog.Info("index_source_started", slog.String("source", src.Name))

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		item := row{source: src.Name, rec: rec}
		var rowErr *record.RowError
		switch {
		case stderrors.As(err, &rowErr):
			item.cursor = rowErr.Row
			item.err = rowErr.Err
		case err != nil:
			return errors.IOError("failed to read term export", err).WithDetail("source", src.Name)
		default:
			item.cursor = r.Rows() - 1
		}

		select {
		case out <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Builder) write(ctx context.Context, idx *store.Index, rows <-chan row, report *Report, start time.Time) error {
	batch := idx.NewBatch()
	var seq uint64
	processed := 0

	for item := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed++

		switch {
		case item.err != nil:
			report.ErrorCount++
			slog.Warn("index_row_skipped",
				slog.String("source", item.source),
				slog.Int("row", item.cursor),
				slog.String("error", item.err.Error()))
		default:
			if err := batch.Add(seq, DocumentFrom(item.rec)); err != nil {
				report.ErrorCount++
				slog.Warn("index_document_rejected",
					slog.String("source", item.source),
					slog.Int("row", item.cursor),
					slog.String("error", err.Error()))
				break
			}
			seq++
			report.SuccessCount++
		}

		if batch.Size() >= b.config.BatchSize {
			if err := batch.Execute(); err != nil {
				return err
			}
		}

		if processed%b.config.CommitFrequency == 0 {
			committed := b.config.FlushPolicy == FlushCommit
			if committed {
				if err := batch.Execute(); err != nil {
					return err
				}
			}
			slog.Info("index_committing",
				slog.Int("processed", processed),
				slog.Int("documents", report.SuccessCount),
				slog.Int("errors", report.ErrorCount),
				slog.String("policy", string(b.config.FlushPolicy)))
			if b.progress != nil {
				b.progress(Progress{
					Source:    item.source,
					Processed: processed,
					Success:   report.SuccessCount,
					Errors:    report.ErrorCount,
					Committed: committed,
					Elapsed:   time.Since(start),
				})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return batch.Execute()
}

// DocumentFrom derives the indexed document of a record.
func DocumentFrom(rec record.Record) store.Document {
	return store.Document{
		IRI:     rec.IRI,
		IRIText: normalize.IRI(rec.IRI),
		Label:   rec.Label,
		Count:   rec.Count,
		Pos:     uint8(rec.Pos),
		Type:    rec.Type,
		IsURL:   normalize.IsURL(rec.IRI),
	}
}
