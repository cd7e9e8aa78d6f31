package search

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/normalize"
	"github.com/bold-kg/termdex/internal/query"
	"github.com/bold-kg/termdex/internal/record"
	"github.com/bold-kg/termdex/internal/store"
	"github.com/bold-kg/termdex/internal/telemetry"
)

var fixture = []record.Record{
	{IRI: "http://dbpedia.org/resource/Berlin", Label: "Berlin", Count: 100, Pos: record.PosSubject, Type: "City"},
	{IRI: "http://dbpedia.org/resource/Paris", Label: "Paris", Count: 80, Pos: record.PosSubject, Type: "City"},
	{IRI: "http://dbpedia.org/ontology/birthPlace", Label: "birth place", Count: 50, Pos: record.PosProperty, Type: "Property"},
	{IRI: `"Berlin Wall"@en`, Label: "Berlin Wall", Count: 5, Pos: record.PosValue, Type: "Literal"},
	{IRI: "http://dbpedia.org/resource/Albert_Einstein", Label: "Albert Einstein", Count: 30, Pos: record.PosSubject, Type: "Person"},
}

func newTestIndex(t *testing.T) *store.Index {
	t.Helper()
	idx, err := store.OpenMem(store.DefaultTokenizerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	batch := idx.NewBatch()
	for i, r := range fixture {
		require.NoError(t, batch.Add(uint64(i), store.Document{
			IRI:     r.IRI,
			IRIText: normalize.IRI(r.IRI),
			Label:   r.Label,
			Count:   r.Count,
			Pos:     uint8(r.Pos),
			Type:    r.Type,
			IsURL:   normalize.IsURL(r.IRI),
		}))
	}
	require.NoError(t, batch.Execute())
	return idx
}

func ids(res *Result) []uint64 {
	out := make([]uint64, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ptr[T any](v T) *T { return &v }

func TestSearch_LabelRoundTrip(t *testing.T) {
	// Given: an index over the fixture
	s := New(newTestIndex(t))

	// When: searching each label
	for i, r := range fixture {
		res, err := s.Search(context.Background(), Request{Query: r.Label, Limit: ptr(10)})

		// Then: the record is among the hits
		require.NoError(t, err, r.Label)
		assert.Contains(t, ids(res), uint64(i), r.Label)
	}
}

func TestSearch_Substring(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{Query: "instei"})

	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, ids(res))
	assert.Equal(t, uint64(1), res.Count)
}

func TestSearch_FuzzyTypo(t *testing.T) {
	// Given: a query with one substituted letter
	s := New(newTestIndex(t))

	// When: searching
	res, err := s.Search(context.Background(), Request{Query: "Berlim"})

	// Then: identifiers containing the word still match
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3}, ids(res))
}

func TestSearch_TypoInsidePrefix(t *testing.T) {
	// Given: a truncated word with a typo in its first letters
	s := New(newTestIndex(t))

	// When: searching
	res, err := s.Search(context.Background(), Request{Query: "bxrl"})

	// Then: identifiers starting within one edit of it match
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3}, ids(res))
}

func TestSearch_GramsMustBeAdjacent(t *testing.T) {
	// Given: a label holding every trigram of "nato" but never in sequence
	idx, err := store.OpenMem(store.DefaultTokenizerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	batch := idx.NewBatch()
	require.NoError(t, batch.Add(0, store.Document{
		IRI:     "q1",
		IRIText: "q1",
		Label:   "tomato national",
		Count:   1,
		Pos:     uint8(record.PosValue),
		Type:    "Literal",
	}))
	require.NoError(t, batch.Execute())
	s := New(idx)

	// When: searching the scattered word
	res, err := s.Search(context.Background(), Request{Query: "nato"})

	// Then: nothing matches
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Count)

	// And: an in-sequence word still matches
	res, err = s.Search(context.Background(), Request{Query: "national"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Count)
}

func TestSearch_AllWordsMustMatch(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{Query: "berlin wall"})

	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, ids(res))
}

func TestSearch_Filters(t *testing.T) {
	s := New(newTestIndex(t))

	tests := []struct {
		name    string
		filters query.Filters
		want    []uint64
	}{
		{"pos property", query.Filters{Pos: ptr(record.PosProperty)}, []uint64{2}},
		{"pos subject", query.Filters{Pos: ptr(record.PosSubject)}, []uint64{0, 1, 4}},
		{"literals only", query.Filters{URL: ptr(false)}, []uint64{3}},
		{"urls only", query.Filters{URL: ptr(true)}, []uint64{0, 1, 2, 4}},
		{"min count", query.Filters{MinCount: ptr(uint64(50))}, []uint64{0, 1, 2}},
		{"max count is exclusive", query.Filters{MaxCount: ptr(uint64(80))}, []uint64{2, 3, 4}},
		{"both bounds", query.Filters{MinCount: ptr(uint64(30)), MaxCount: ptr(uint64(80))}, []uint64{2, 4}},
		{"bounds and pos", query.Filters{MinCount: ptr(uint64(30)), Pos: ptr(record.PosSubject)}, []uint64{0, 1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Search(context.Background(), Request{Filters: tt.filters, Limit: ptr(10)})

			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res))
			assert.Equal(t, uint64(len(tt.want)), res.Count)
		})
	}
}

func TestSearch_FilterWithWords(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{
		Query:   "berlin",
		Filters: query.Filters{URL: ptr(true)},
	})

	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, ids(res))
}

func TestSearch_AggregateCoversFullMatchSet(t *testing.T) {
	// Given: a small aggregate page so the scan needs several pages
	s := New(newTestIndex(t), WithAggPageSize(2))

	// When: returning a single hit of all five documents
	res, err := s.Search(context.Background(), Request{Limit: ptr(1)})

	// Then: count and stats cover all matches, not the page
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
	assert.Equal(t, uint64(5), res.Count)
	agg := res.Agg[AggField]
	assert.Equal(t, 5.0, agg.Min)
	assert.Equal(t, 100.0, agg.Max)
	assert.InDelta(t, 53.0, agg.Mean, 1e-9)
}

func TestSearch_ZeroLimit(t *testing.T) {
	// Given: an index over the fixture
	s := New(newTestIndex(t))

	// When: asking for no hits
	res, err := s.Search(context.Background(), Request{Limit: ptr(0)})

	// Then: count and aggregates are still computed
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, uint64(5), res.Count)
	assert.Equal(t, 100.0, res.Agg[AggField].Max)
}

func TestSearch_DefaultLimit(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{})

	require.NoError(t, err)
	assert.Len(t, res.Hits, 5)
}

func TestSearch_AggregateWithFilter(t *testing.T) {
	s := New(newTestIndex(t), WithAggPageSize(1))

	res, err := s.Search(context.Background(), Request{
		Limit:   ptr(1),
		Filters: query.Filters{Pos: ptr(record.PosSubject)},
	})

	require.NoError(t, err)
	assert.Equal(t, Stats{Min: 30, Max: 100, Mean: 70}, res.Agg[AggField])
}

func TestSearch_EmptyResult(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{Query: "qqqzzzxxx"})

	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Count)
	assert.Empty(t, res.Hits)
	assert.Equal(t, Stats{}, res.Agg[AggField])
}

func TestSearch_Pagination(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{Limit: ptr(2), Offset: 2})

	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, uint64(2), res.Hits[0].ID)
	assert.Equal(t, uint64(3), res.Hits[1].ID)
	assert.Equal(t, uint64(5), res.Count)
}

func TestSearch_Deterministic(t *testing.T) {
	s := New(newTestIndex(t))
	req := Request{Query: "berlin place", Limit: ptr(3)}
	req2 := Request{Query: "b", Limit: ptr(3)}

	for _, r := range []Request{req, req2, {Query: "city", Limit: ptr(2)}} {
		a, err := s.Search(context.Background(), r)
		require.NoError(t, err)
		b, err := s.Search(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestSearch_HitDocument(t *testing.T) {
	s := New(newTestIndex(t))

	res, err := s.Search(context.Background(), Request{Query: "paris"})

	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	doc := res.Hits[0].Doc
	assert.Equal(t, []any{"Paris"}, doc[store.FieldLabel])
	assert.Equal(t, []any{"http://dbpedia.org/resource/Paris"}, doc[store.FieldIRI])
	assert.Equal(t, []any{"Paris"}, doc[store.FieldIRIText])
	assert.Equal(t, []any{uint64(80)}, doc[store.FieldCount])
	assert.Equal(t, []any{uint64(0)}, doc[store.FieldPos])
	assert.Equal(t, []any{true}, doc[store.FieldIsURL])
	assert.Greater(t, res.Hits[0].Score, 0.0)
}

func TestSearch_InvalidPaging(t *testing.T) {
	s := New(newTestIndex(t))

	_, err := s.Search(context.Background(), Request{Limit: ptr(-1)})

	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestSearch_RecordsTelemetry(t *testing.T) {
	m := telemetry.NewMetrics()
	l := telemetry.NewQueryLog(telemetry.DefaultQueryLogConfig())
	s := New(newTestIndex(t), WithMetrics(m), WithQueryLog(l, "dbpedia"))

	_, err := s.Search(context.Background(), Request{Query: "paris"})
	require.NoError(t, err)
	_, err = s.Search(context.Background(), Request{Query: "qqqzzz"})
	require.NoError(t, err)

	snap := l.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, []string{"qqqzzz"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(2), snap.DatasetCounts["dbpedia"])
}
