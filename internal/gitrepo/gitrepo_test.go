package gitrepo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/reposync/internal/models"
)

func TestParseNameStatus(t *testing.T) {
	out := strings.Join([]string{
		"A", "new.go",
		"M", "mod.go",
		"D", "gone.go",
		"R100", "old.md", "renamed.md",
		"C075", "src.go", "copy.go",
		"T", "typechange.sh",
		"",
	}, "\x00")

	got := ParseNameStatus([]byte(out))
	want := []models.ChangeEntry{
		{Kind: models.ChangeAdded, Path: "new.go"},
		{Kind: models.ChangeModified, Path: "mod.go"},
		{Kind: models.ChangeDeleted, Path: "gone.go"},
		{Kind: models.ChangeRenamed, Path: "renamed.md", PreviousPath: "old.md"},
		{Kind: models.ChangeAdded, Path: "copy.go"},
		{Kind: models.ChangeModified, Path: "typechange.sh"},
	}
	assert.Equal(t, want, got)
}

func TestParseNameStatus_Truncated(t *testing.T) {
	assert.Empty(t, ParseNameStatus(nil))
	assert.Empty(t, ParseNameStatus([]byte("R100\x00only-one")))
	assert.Equal(t,
		[]models.ChangeEntry{{Kind: models.ChangeAdded, Path: "a"}},
		ParseNameStatus([]byte("A\x00a\x00M")))
}

func TestRepo_Unavailable(t *testing.T) {
	_, err := New("").HeadCommit(context.Background())
	assert.True(t, errors.Is(err, ErrRepoUnavailable))

	_, err = New(filepath.Join(t.TempDir(), "missing")).ListTrackedFiles(context.Background())
	assert.True(t, errors.Is(err, ErrRepoUnavailable))
}

func TestRepo_BlankArguments(t *testing.T) {
	r := New(t.TempDir())
	ctx := context.Background()
	_, err := r.ListTrackedFilesAt(ctx, " ")
	assert.Error(t, err)
	_, err = r.ReadFileAt(ctx, "HEAD", "")
	assert.Error(t, err)
	_, err = r.Diff(ctx, "", "HEAD")
	assert.Error(t, err)
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestRepo_AgainstRealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-q")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "old.md"), []byte("# Title\n\nsome stable content for rename detection\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "first")
	first := gitCmd(t, dir, "rev-parse", "HEAD")

	gitCmd(t, dir, "mv", "docs/old.md", "docs/new.md")
	gitCmd(t, dir, "commit", "-q", "-m", "rename")

	repo := New(dir)
	ctx := context.Background()

	head, err := repo.HeadCommit(ctx)
	require.NoError(t, err)
	assert.Len(t, head, 40)
	assert.NotEqual(t, first, head)

	files, err := repo.ListTrackedFiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs/new.md", "main.go"}, files)

	files, err = repo.ListTrackedFilesAt(ctx, first)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"docs/old.md", "main.go"}, files)

	content, err := repo.ReadFileAt(ctx, first, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))

	content, err = repo.ReadWorkingTreeFile(ctx, "docs/new.md")
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Title")

	changes, err := repo.Diff(ctx, first, head)
	require.NoError(t, err)
	assert.Equal(t, []models.ChangeEntry{
		{Kind: models.ChangeRenamed, Path: "docs/new.md", PreviousPath: "docs/old.md"},
	}, changes)

	gitDir, err := repo.GitDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".git"), gitDir)

	_, err = repo.ReadFileAt(ctx, first, "nope.go")
	assert.Error(t, err)
}
