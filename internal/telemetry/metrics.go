package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result types of the searches counter.
const (
	ResultHit        = "hit"
	ResultZeroResult = "zero_result"
	ResultError      = "error"
)

// Metrics holds the Prometheus collectors of one process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SearchesTotal       *prometheus.CounterVec
	SearchLatency       prometheus.Histogram
	SearchResultsCount  prometheus.Histogram
	DocsIndexedTotal    prometheus.Counter
	RowErrorsTotal      prometheus.Counter
	IndexCacheHits      prometheus.Counter
	IndexCacheMisses    prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdex_searches_total",
				Help: "Total searches by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termdex_search_latency_seconds",
				Help:    "Search latency in seconds, aggregates included.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termdex_search_matches",
				Help:    "Number of matching documents per search.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "termdex_docs_indexed_total",
				Help: "Total documents written by index builds.",
			},
		),
		RowErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "termdex_row_errors_total",
				Help: "Total input rows skipped by index builds.",
			},
		),
		IndexCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "termdex_index_cache_hits_total",
				Help: "Searches served by an already open index.",
			},
		),
		IndexCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "termdex_index_cache_misses_total",
				Help: "Searches that had to open their index.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termdex_http_requests_total",
				Help: "Total HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termdex_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.DocsIndexedTotal,
		m.RowErrorsTotal,
		m.IndexCacheHits,
		m.IndexCacheMisses,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(latency time.Duration, matches uint64, err error) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(latency.Seconds())
	switch {
	case err != nil:
		m.SearchesTotal.WithLabelValues(ResultError).Inc()
		return
	case matches == 0:
		m.SearchesTotal.WithLabelValues(ResultZeroResult).Inc()
	default:
		m.SearchesTotal.WithLabelValues(ResultHit).Inc()
	}
	m.SearchResultsCount.Observe(float64(matches))
}

// WriteTextfile writes every collector to path in the text exposition
// format, for the node exporter textfile collector. The file is replaced
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// ObserveBuild records the tally of a finished build.
func (m *Metrics) ObserveBuild(success, failed int) {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Add(float64(success))
	m.RowErrorsTotal.Add(float64(failed))
}

// ObserveIndexCache records whether a search found its index open.
func (m *Metrics) ObserveIndexCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.IndexCacheHits.Inc()
	} else {
		m.IndexCacheMisses.Inc()
	}
}
