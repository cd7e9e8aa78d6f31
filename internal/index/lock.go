package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/bold-kg/termdex/internal/errors"
)

// FileLock is a cross-process lock guarding one index destination.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDestLock returns the lock for dest, stored next to it as <dest>.lock so
// that removing the index directory never removes the lock.
func NewDestLock(dest string) *FileLock {
	lockPath := filepath.Clean(dest) + ".lock"
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. A lock held by another
// process is reported as ERR_209_INDEX_LOCKED.
func (l *FileLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errors.IOError("failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return errors.IOError(fmt.Sprintf("failed to acquire lock %s", l.path), err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeIndexLocked,
			fmt.Sprintf("another build holds %s", l.path), nil).
			WithSuggestion("Wait for the other build to finish")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
