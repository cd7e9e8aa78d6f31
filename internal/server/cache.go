package server

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/store"
	"github.com/bold-kg/termdex/internal/telemetry"
)

// IndexCache keeps up to size dataset indexes open. An evicted index is
// closed once the last request using it releases it.
type IndexCache struct {
	root    string
	metrics *telemetry.Metrics

	mu     sync.Mutex
	lru    *lru.Cache[string, *handle]
	closed bool

	opens singleflight.Group
}

// handle is guarded by IndexCache.mu.
type handle struct {
	name    string
	idx     *store.Index
	refs    int
	evicted bool
}

// NewIndexCache creates a cache over the datasets under root.
func NewIndexCache(root string, size int, metrics *telemetry.Metrics) (*IndexCache, error) {
	c := &IndexCache{root: root, metrics: metrics}
	cache, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	c.lru = cache
	return c, nil
}

// Acquire returns the open index of dataset and a release function that must
// be called when the caller is done with it.
func (c *IndexCache) Acquire(dataset string) (*store.Index, func(), error) {
	if err := validateDataset(dataset); err != nil {
		return nil, nil, err
	}

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, nil, errors.InternalError("index cache is closed", nil)
		}
		if h, ok := c.lru.Get(dataset); ok {
			h.refs++
			c.mu.Unlock()
			c.metrics.ObserveIndexCache(true)
			return h.idx, c.releaser(h), nil
		}
		c.mu.Unlock()

		c.metrics.ObserveIndexCache(false)
		v, err, _ := c.opens.Do(dataset, func() (interface{}, error) {
			return c.open(dataset)
		})
		if err != nil {
			return nil, nil, err
		}

		h := v.(*handle)
		c.mu.Lock()
		if !h.evicted {
			h.refs++
			c.mu.Unlock()
			return h.idx, c.releaser(h), nil
		}
		// Evicted between open and use; look it up again.
		c.mu.Unlock()
	}
}

func (c *IndexCache) open(dataset string) (*handle, error) {
	c.mu.Lock()
	if h, ok := c.lru.Peek(dataset); ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	idx, err := store.OpenReadOnly(filepath.Join(c.root, dataset))
	if err != nil {
		return nil, err
	}
	slog.Info("index_opened", slog.String("dataset", dataset))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = idx.Close()
		return nil, errors.InternalError("index cache is closed", nil)
	}
	h := &handle{name: dataset, idx: idx}
	c.lru.Add(dataset, h)
	return h, nil
}

func (c *IndexCache) releaser(h *handle) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			h.refs--
			if h.evicted && h.refs == 0 {
				closeHandle(h)
			}
		})
	}
}

// onEvict runs with c.mu held.
func (c *IndexCache) onEvict(_ string, h *handle) {
	h.evicted = true
	if h.refs == 0 {
		closeHandle(h)
	}
}

func closeHandle(h *handle) {
	if err := h.idx.Close(); err != nil {
		slog.Warn("index_close_failed",
			slog.String("dataset", h.name),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("index_closed", slog.String("dataset", h.name))
}

// Invalidate drops dataset from the cache. It reports whether it was cached.
func (c *IndexCache) Invalidate(dataset string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(dataset)
}

// Len returns the number of cached indexes.
func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close evicts every index. Indexes still in use close on release.
func (c *IndexCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.lru.Purge()
}

// validateDataset keeps dataset names inside the index root.
func validateDataset(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("invalid dataset name %q", name), nil)
	}
	return nil
}
