// Package watcher watches a repository's git directory with fsnotify and reports new HEAD commits.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// HeadResolver returns the commit HEAD currently points at.
type HeadResolver func(ctx context.Context) (string, error)

// Watcher watches HEAD and branch refs and invokes a callback when the resolved HEAD commit changes.
type Watcher struct {
	gitDir   string
	resolve  HeadResolver
	onChange func(commit string)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	lastHead string
	ctx      context.Context
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the watcher waits for ref writes to settle before resolving HEAD.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for gitDir (the repository's .git directory).
// onChange is called with the new commit each time HEAD resolves to a different commit.
func NewWatcher(gitDir string, resolve HeadResolver, onChange func(commit string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		gitDir:   filepath.Clean(gitDir),
		resolve:  resolve,
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start records the current HEAD and starts watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := w.addDirsLocked(watcher); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.ctx = ctx
	w.started = true
	w.mu.Unlock()

	if head, err := w.resolve(ctx); err == nil {
		w.mu.Lock()
		w.lastHead = head
		w.mu.Unlock()
	} else {
		w.logger.Debug("watcher could not resolve initial HEAD", zap.Error(err))
	}
	w.logger.Debug("watcher starting", zap.String("git_dir", w.gitDir))

	go w.run(ctx, watcher)
	return nil
}

// LastHead returns the most recently observed HEAD commit.
func (w *Watcher) LastHead() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHead
}

func (w *Watcher) addDirsLocked(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(w.gitDir); err != nil {
		return err
	}
	refs := filepath.Join(w.gitDir, "refs", "heads")
	if _, err := os.Stat(refs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return filepath.WalkDir(refs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(watcher, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if ev.Has(fsnotify.Create) {
		// New branch namespaces (refs/heads/feature/...) show up as directories.
		if info, err := os.Stat(path); err == nil && info.IsDir() && inDir(filepath.Join(w.gitDir, "refs", "heads"), path) {
			if err := watcher.Add(path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	if !isRefPath(w.gitDir, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	w.debounceCheck()
}

// isRefPath reports whether path is HEAD, packed-refs or a branch ref inside gitDir.
// Lock files written while git updates a ref count as the ref itself.
func isRefPath(gitDir, path string) bool {
	rel, err := filepath.Rel(gitDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, ".lock"))
	switch {
	case rel == "HEAD", rel == "packed-refs":
		return true
	case strings.HasPrefix(rel, "refs/heads/"):
		return true
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) debounceCheck() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.check)
}

func (w *Watcher) check() {
	w.mu.Lock()
	ctx := w.ctx
	w.timer = nil
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	head, err := w.resolve(ctx)
	if err != nil {
		w.logger.Debug("watcher could not resolve HEAD", zap.Error(err))
		return
	}
	w.mu.Lock()
	if head == "" || head == w.lastHead {
		w.mu.Unlock()
		return
	}
	previous := w.lastHead
	w.lastHead = head
	onChange := w.onChange
	w.mu.Unlock()

	w.logger.Info("HEAD moved", zap.String("from", previous), zap.String("to", head))
	if onChange != nil {
		onChange(head)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
