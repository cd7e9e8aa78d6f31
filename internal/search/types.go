// Package search executes compiled plans against a term index and assembles
// ranked hits with aggregate statistics over the whole matching set.
package search

import (
	"github.com/bold-kg/termdex/internal/query"
)

// DefaultLimit is the page size when a request does not set one.
const DefaultLimit = 10

// DefaultAggPageSize is the page size of the aggregate scan.
const DefaultAggPageSize = 1000

// AggField is the numeric field aggregated over every match.
const AggField = "count"

// Request is one search invocation. A nil Limit selects DefaultLimit; a
// zero Limit returns no hits but still reports Count and Agg.
type Request struct {
	Query   string
	Limit   *int
	Offset  int
	Filters query.Filters
}

// Result is the response of a search.
type Result struct {
	Count uint64           `json:"count"`
	Hits  []Hit            `json:"hits"`
	Agg   map[string]Stats `json:"agg"`
}

// Hit is one ranked document with all its stored fields.
type Hit struct {
	Score float64          `json:"score"`
	Doc   map[string][]any `json:"doc"`
	ID    uint64           `json:"id"`
}

// Stats summarizes a numeric field over the matching set.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}
