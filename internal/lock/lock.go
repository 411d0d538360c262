// Package lock guards a data directory against concurrent reposync writers.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("data directory is locked by another reposync process")

// DataDirLock is an exclusive, cross-process lock backed by a lock file.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns an unlocked lock for the file at path.
func New(path string) *DataDirLock {
	return &DataDirLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. It returns ErrLocked when the lock is held elsewhere.
func (l *DataDirLock) TryLock() error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w (%s)", ErrLocked, l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked lock is a no-op.
func (l *DataDirLock) Unlock() error {
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
func (l *DataDirLock) Path() string {
	return l.path
}

// Locked reports whether this instance holds the lock.
func (l *DataDirLock) Locked() bool {
	return l.locked
}
