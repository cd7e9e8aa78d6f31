package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveSearch(t *testing.T) {
	// Given: fresh collectors
	m := NewMetrics()

	// When: recording a hit, a zero-result search and a failure
	m.ObserveSearch(5*time.Millisecond, 12, nil)
	m.ObserveSearch(time.Millisecond, 0, nil)
	m.ObserveSearch(time.Millisecond, 0, errors.New("boom"))

	// Then: each result type is counted once
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues(ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues(ResultZeroResult)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues(ResultError)))
}

func TestMetrics_ObserveBuild(t *testing.T) {
	m := NewMetrics()

	m.ObserveBuild(10, 2)
	m.ObserveBuild(5, 0)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowErrorsTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveSearch(time.Millisecond, 1, nil)
		m.ObserveBuild(1, 1)
		m.ObserveIndexCache(true)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveIndexCache(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "termdex_index_cache_misses_total 1")
}
