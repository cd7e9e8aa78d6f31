package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/query"
	"github.com/bold-kg/termdex/internal/store"
	"github.com/bold-kg/termdex/internal/telemetry"
)

// Searcher runs requests against one open index.
type Searcher struct {
	index       *store.Index
	compiler    *query.Compiler
	aggPageSize int
	dataset     string
	metrics     *telemetry.Metrics
	queryLog    *telemetry.QueryLog
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithAggPageSize sets the page size of the aggregate scan.
func WithAggPageSize(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.aggPageSize = n
		}
	}
}

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// WithQueryLog records every search in l under the dataset name.
func WithQueryLog(l *telemetry.QueryLog, dataset string) Option {
	return func(s *Searcher) {
		s.queryLog = l
		s.dataset = dataset
	}
}

// New returns a searcher over idx. The compiler uses the schema read from
// the index itself.
func New(idx *store.Index, opts ...Option) *Searcher {
	s := &Searcher{
		index:       idx,
		compiler:    query.NewCompiler(idx.Schema()),
		aggPageSize: DefaultAggPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile returns the plan for req without running it.
func (s *Searcher) Compile(req Request) (query.Query, error) {
	return s.compiler.Compile(req.Query, req.Filters)
}

// Search compiles and executes req.
func (s *Searcher) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	limit := DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	plan, err := s.Compile(req)
	var res *Result
	if err == nil {
		res, err = s.Execute(ctx, plan, limit, req.Offset)
	}

	elapsed := time.Since(start)
	var matches uint64
	if res != nil {
		matches = res.Count
	}
	s.metrics.ObserveSearch(elapsed, matches, err)
	if err != nil {
		slog.Debug("search_failed",
			slog.String("query", req.Query),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.queryLog.Record(telemetry.QueryEvent{
		Dataset: s.dataset,
		Query:   req.Query,
		Matches: matches,
		Latency: elapsed,
	})
	slog.Debug("search_completed",
		slog.String("query", req.Query),
		slog.Bool("filtered", !req.Filters.Empty()),
		slog.Uint64("count", matches),
		slog.Int("hits", len(res.Hits)),
		slog.Duration("elapsed", elapsed))
	return res, nil
}

// Execute runs a compiled plan. Count and Agg always cover every match;
// Hits is the page selected by limit and offset.
func (s *Searcher) Execute(ctx context.Context, plan query.Query, limit, offset int) (*Result, error) {
	if limit < 0 || offset < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("limit and offset must not be negative (limit=%d, offset=%d)", limit, offset), nil)
	}

	q, err := Translate(plan, s.index.Schema())
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "_id"})

	res, err := s.index.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := store.ParseDocID(h.ID)
		if err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex, "unexpected document id in index", err)
		}
		hits = append(hits, Hit{
			Score: h.Score,
			Doc:   documentFields(h.Fields, s.index.Schema()),
			ID:    id,
		})
	}

	stats, err := s.aggregate(ctx, q)
	if err != nil {
		return nil, err
	}

	return &Result{
		Count: res.Total,
		Hits:  hits,
		Agg:   map[string]Stats{AggField: stats},
	}, nil
}

// aggregate scans every match in _id order, reading only the count field.
func (s *Searcher) aggregate(ctx context.Context, q bq.Query) (Stats, error) {
	req := bleve.NewSearchRequestOptions(q, s.aggPageSize, 0, false)
	req.Fields = []string{store.FieldCount}
	req.SortBy([]string{"_id"})
	req.Score = "none"

	var (
		n      uint64
		sum    float64
		lo, hi = math.Inf(1), math.Inf(-1)
	)
	for {
		res, err := s.index.Search(ctx, req)
		if err != nil {
			return Stats{}, err
		}
		for _, h := range res.Hits {
			v, ok := h.Fields[store.FieldCount].(float64)
			if !ok {
				continue
			}
			n++
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if len(res.Hits) < s.aggPageSize {
			break
		}
		req.SearchAfter = []string{res.Hits[len(res.Hits)-1].ID}
	}

	if n == 0 {
		return Stats{}, nil
	}
	return Stats{Min: lo, Max: hi, Mean: sum / float64(n)}, nil
}

// documentFields turns stored fields into field -> values. Numeric values
// are whole numbers and rendered as such.
func documentFields(fields map[string]interface{}, kinds FieldKinds) map[string][]any {
	doc := make(map[string][]any, len(fields))
	for name, raw := range fields {
		var values []any
		switch v := raw.(type) {
		case []interface{}:
			values = v
		default:
			values = []any{v}
		}
		if kinds.Kind(name) == store.KindNumeric {
			for i, v := range values {
				if f, ok := v.(float64); ok && f == math.Trunc(f) && f >= 0 {
					values[i] = uint64(f)
				}
			}
		}
		doc[name] = values
	}
	return doc
}
