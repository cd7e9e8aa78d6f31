package server

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/telemetry"
)

func TestIndexCache_HitAfterMiss(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "dbpedia", cities)
	metrics := telemetry.NewMetrics()
	cache, err := NewIndexCache(root, 2, metrics)
	require.NoError(t, err)
	defer cache.Close()

	first, release1, err := cache.Acquire("dbpedia")
	require.NoError(t, err)
	release1()
	second, release2, err := cache.Acquire("dbpedia")
	require.NoError(t, err)
	release2()

	assert.Same(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IndexCacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IndexCacheHits))
	assert.Equal(t, 1, cache.Len())
}

func TestIndexCache_EvictedIndexClosesOnRelease(t *testing.T) {
	// Given: a cache of one and an index held by a request
	root := t.TempDir()
	writeDataset(t, root, "a", cities)
	writeDataset(t, root, "b", cities)
	cache, err := NewIndexCache(root, 1, nil)
	require.NoError(t, err)
	defer cache.Close()

	held, release, err := cache.Acquire("a")
	require.NoError(t, err)

	// When: another dataset evicts it
	_, releaseB, err := cache.Acquire("b")
	require.NoError(t, err)
	defer releaseB()

	// Then: the held index stays usable until released
	n, err := held.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(cities)), n)

	release()
	release()
	_, err = held.DocCount()
	assert.Error(t, err)
}

func TestIndexCache_ConcurrentOpens(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "dbpedia", cities)
	cache, err := NewIndexCache(root, 4, nil)
	require.NoError(t, err)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, release, err := cache.Acquire("dbpedia")
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			_, err = idx.DocCount()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
}

func TestIndexCache_Closed(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, "dbpedia", cities)
	cache, err := NewIndexCache(root, 1, nil)
	require.NoError(t, err)

	cache.Close()
	_, _, err = cache.Acquire("dbpedia")

	assert.Error(t, err)
}

func TestValidateDataset(t *testing.T) {
	for _, name := range []string{"", ".", "..", "../etc", `a\b`, ".hidden"} {
		err := validateDataset(name)
		assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err), name)
	}
	assert.NoError(t, validateDataset("dbpedia-2016"))
}

func TestNewIndexCache_InvalidSize(t *testing.T) {
	_, err := NewIndexCache(t.TempDir(), 0, nil)
	assert.Error(t, err)
}
