package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/bold-kg/termdex/internal/errors"
)

// Index is an open term index and the schema it was created with.
// Searches may run concurrently; writes go through a Batch.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	schema *Schema
	closed bool
}

// Create makes a new on-disk index at path. The path must not exist.
func Create(path string, cfg TokenizerConfig) (*Index, error) {
	im, err := NewMapping(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errors.New(errors.ErrCodeIndexExists,
			fmt.Sprintf("index directory %s already exists", path), nil).
			WithSuggestion("Pass --force to rebuild it")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to create directory %s", filepath.Dir(path)), err)
	}

	idx, err := bleve.New(path, im)
	if err == bleve.ErrorIndexPathExists {
		return nil, errors.New(errors.ErrCodeIndexExists,
			fmt.Sprintf("index directory %s already exists", path), err)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "failed to create index", err).
			WithDetail("path", path)
	}
	return wrap(idx, path)
}

// Open opens an existing on-disk index for reading and writing. A corrupt
// index is reported, never cleared: the caller decides whether to rebuild.
func Open(path string) (*Index, error) {
	return open(path, nil)
}

// OpenReadOnly opens an existing index without taking the writer lock, so
// any number of readers can share it.
func OpenReadOnly(path string) (*Index, error) {
	return open(path, map[string]interface{}{"read_only": true})
}

func open(path string, runtimeConfig map[string]interface{}) (*Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeIndexNotFound,
			fmt.Sprintf("no index at %s", path), err).
			WithSuggestion("Run 'termdex build-index' first")
	}
	if err := validateIndexIntegrity(path); err != nil {
		slog.Warn("index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("index at %s is corrupt", path), err).
			WithSuggestion("Rebuild it with 'termdex build-index --force'")
	}

	var (
		idx bleve.Index
		err error
	)
	if runtimeConfig == nil {
		idx, err = bleve.Open(path)
	} else {
		idx, err = bleve.OpenUsing(path, runtimeConfig)
	}
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		return nil, errors.New(errors.ErrCodeIndexNotFound, fmt.Sprintf("no index at %s", path), err)
	case isCorruptionError(err):
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("index at %s is corrupt", path), err).
			WithSuggestion("Rebuild it with 'termdex build-index --force'")
	case err != nil:
		return nil, errors.IOError(fmt.Sprintf("failed to open index at %s", path), err)
	}
	return wrap(idx, path)
}

// OpenMem creates an in-memory index.
func OpenMem(cfg TokenizerConfig) (*Index, error) {
	im, err := NewMapping(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "failed to create in-memory index", err)
	}
	return wrap(idx, "")
}

func wrap(idx bleve.Index, path string) (*Index, error) {
	schema, err := SchemaFromMapping(idx.Mapping())
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	return &Index{index: idx, path: path, schema: schema}, nil
}

// Schema returns the schema read from the index mapping.
func (i *Index) Schema() *Schema {
	return i.schema
}

// Path returns the index directory, or "" for an in-memory index.
func (i *Index) Path() string {
	return i.path
}

// DocCount returns the number of committed documents.
func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return 0, errClosed()
	}
	return i.index.DocCount()
}

// Search runs req against the index.
func (i *Index) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, errClosed()
	}
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.New(errors.ErrCodeSearchFailed, "search failed", err)
	}
	return res, nil
}

// NewBatch starts an empty write batch.
func (i *Index) NewBatch() *Batch {
	return &Batch{owner: i, batch: i.index.NewBatch()}
}

// Close releases the index. Closing twice is a no-op.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}

// Batch accumulates documents until Execute commits them.
type Batch struct {
	owner *Index
	batch *bleve.Batch
}

// Add queues doc under the id derived from seq.
func (b *Batch) Add(seq uint64, doc Document) error {
	if err := b.batch.Index(DocID(seq), doc.fields()); err != nil {
		return fmt.Errorf("failed to add document %d: %w", seq, err)
	}
	return nil
}

// Size is the number of queued operations.
func (b *Batch) Size() int {
	return b.batch.Size()
}

// Execute commits the queued documents and empties the batch.
func (b *Batch) Execute() error {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	if b.owner.closed {
		return errClosed()
	}
	if b.batch.Size() == 0 {
		return nil
	}
	if err := b.owner.index.Batch(b.batch); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to commit batch", err)
	}
	b.batch.Reset()
	return nil
}

func errClosed() error {
	return errors.InternalError("index is closed", nil)
}

// validateIndexIntegrity checks the index metadata before Bleve opens it.
func validateIndexIntegrity(path string) error {
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is not valid JSON: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}
