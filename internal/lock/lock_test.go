package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTryLock_createsDirectoryAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reposync.lock")
	l := New(path)
	if err := l.TryLock(); err != nil {
		t.Fatal(err)
	}
	defer l.Unlock()
	if !l.Locked() {
		t.Error("expected lock to be held")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file should exist: %v", err)
	}
}

func TestTryLock_secondHolderGetsErrLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reposync.lock")
	first := New(path)
	if err := first.TryLock(); err != nil {
		t.Fatal(err)
	}

	second := New(path)
	err := second.TryLock()
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("TryLock() = %v, want ErrLocked", err)
	}
	if second.Locked() {
		t.Error("second lock should not be held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := second.TryLock(); err != nil {
		t.Errorf("TryLock after release: %v", err)
	}
	_ = second.Unlock()
}

func TestUnlock_idempotent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "reposync.lock"))
	if err := l.Unlock(); err != nil {
		t.Errorf("Unlock on unlocked: %v", err)
	}
	if err := l.TryLock(); err != nil {
		t.Fatal(err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := l.Unlock(); err != nil {
		t.Errorf("second Unlock: %v", err)
	}
}
