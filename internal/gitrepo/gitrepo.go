// Package gitrepo reads commits, trees and diffs from a local git checkout by running git.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/reposync/internal/models"
)

// DefaultTimeout bounds every git invocation.
const DefaultTimeout = 10 * time.Second

// ErrRepoUnavailable is returned when the repository path is unset or missing.
var ErrRepoUnavailable = errors.New("repository path is not available")

// Repo is a local git working copy.
type Repo struct {
	dir     string
	timeout time.Duration
	gitBin  string
}

// Option configures a Repo.
type Option func(*Repo)

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Repo) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New returns a Repo rooted at dir. The directory is checked on each call, so a
// repository that appears later is picked up.
func New(dir string, opts ...Option) *Repo {
	r := &Repo{dir: dir, timeout: DefaultTimeout, gitBin: "git"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the working tree root.
func (r *Repo) Dir() string { return r.dir }

// HeadCommit returns the commit HEAD points to.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GitDir returns the absolute path of the repository's git directory.
func (r *Repo) GitDir(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.dir, dir)
	}
	return dir, nil
}

// ListTrackedFiles returns the paths tracked in the index.
func (r *Repo) ListTrackedFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "ls-files", "-z")
	if err != nil {
		return nil, err
	}
	return parseNullSeparated(out), nil
}

// ReadWorkingTreeFile reads a file from the working tree.
func (r *Repo) ReadWorkingTreeFile(_ context.Context, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path must not be blank")
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read repo file %s: %w", path, err)
	}
	return data, nil
}

// ListTrackedFilesAt returns every file in the tree of commit.
func (r *Repo) ListTrackedFilesAt(ctx context.Context, commit string) ([]string, error) {
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return nil, errors.New("commit must not be blank")
	}
	out, err := r.run(ctx, "ls-tree", "-r", "-z", "--name-only", commit)
	if err != nil {
		return nil, err
	}
	return parseNullSeparated(out), nil
}

// ReadFileAt returns the content of path at commit.
func (r *Repo) ReadFileAt(ctx context.Context, commit, path string) ([]byte, error) {
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return nil, errors.New("commit must not be blank")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path must not be blank")
	}
	return r.run(ctx, "show", commit+":"+path)
}

// Diff lists the changes between two commits with rename detection.
func (r *Repo) Diff(ctx context.Context, from, to string) ([]models.ChangeEntry, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, errors.New("both commits must be set")
	}
	out, err := r.run(ctx, "diff", "--name-status", "-M", "-z", from+".."+to)
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(out), nil
}

func (r *Repo) check() error {
	if strings.TrimSpace(r.dir) == "" {
		return fmt.Errorf("%w: not configured", ErrRepoUnavailable)
	}
	if _, err := os.Stat(r.dir); err != nil {
		return fmt.Errorf("%w: %s", ErrRepoUnavailable, r.dir)
	}
	return nil
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.gitBin, args...)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("git %s timed out after %s in %s", args[0], r.timeout, r.dir)
		}
		return nil, fmt.Errorf("git %s failed in %s: %w: %s", args[0], r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func parseNullSeparated(out []byte) []string {
	var paths []string
	for _, p := range strings.Split(string(out), "\x00") {
		if strings.TrimSpace(p) != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// ParseNameStatus parses "git diff --name-status -z" output. Renames carry both
// paths; copies become additions of the new path; unknown codes become modifications.
func ParseNameStatus(out []byte) []models.ChangeEntry {
	tokens := strings.Split(string(out), "\x00")
	var entries []models.ChangeEntry
	for i := 0; i < len(tokens); {
		status := tokens[i]
		i++
		if strings.TrimSpace(status) == "" {
			continue
		}
		switch code := status[0]; code {
		case 'R', 'C':
			if i+1 >= len(tokens) {
				return entries
			}
			from, to := tokens[i], tokens[i+1]
			i += 2
			if strings.TrimSpace(to) == "" {
				continue
			}
			if code == 'C' {
				entries = append(entries, models.ChangeEntry{Kind: models.ChangeAdded, Path: to})
			} else if strings.TrimSpace(from) != "" {
				entries = append(entries, models.ChangeEntry{Kind: models.ChangeRenamed, Path: to, PreviousPath: from})
			}
		default:
			if i >= len(tokens) {
				return entries
			}
			path := tokens[i]
			i++
			if strings.TrimSpace(path) == "" {
				continue
			}
			kind := models.ChangeModified
			switch code {
			case 'A':
				kind = models.ChangeAdded
			case 'D':
				kind = models.ChangeDeleted
			}
			entries = append(entries, models.ChangeEntry{Kind: kind, Path: path})
		}
	}
	return entries
}
