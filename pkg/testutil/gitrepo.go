// Package testutil builds throwaway repositories and files for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// GitRepo is a repository in t.TempDir() built with go-git, so tests do not
// need a git binary on PATH.
type GitRepo struct {
	Dir string

	t     *testing.T
	repo  *gogit.Repository
	wt    *gogit.Worktree
	clock time.Time
}

// NewGitRepo initializes an empty repository.
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	return &GitRepo{
		Dir:   dir,
		t:     t,
		repo:  repo,
		wt:    wt,
		clock: time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC),
	}
}

func (r *GitRepo) signature() *object.Signature {
	return &object.Signature{Name: "Test Author", Email: "author@example.com", When: r.clock}
}

// Commit writes path with content and commits it with msg. Each commit is one
// minute after the previous one.
func (r *GitRepo) Commit(path, content, msg string) plumbing.Hash {
	r.t.Helper()

	WriteFile(r.t, r.Dir, path, content)
	_, err := r.wt.Add(path)
	require.NoError(r.t, err)

	r.clock = r.clock.Add(time.Minute)
	hash, err := r.wt.Commit(msg, &gogit.CommitOptions{Author: r.signature()})
	require.NoError(r.t, err)
	return hash
}

// Branch creates branch name at HEAD and checks it out.
func (r *GitRepo) Branch(name string) {
	r.t.Helper()
	err := r.wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	require.NoError(r.t, err)
}

// Checkout switches to an existing branch.
func (r *GitRepo) Checkout(name string) {
	r.t.Helper()
	err := r.wt.Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)})
	require.NoError(r.t, err)
}

// Merge commits a merge of branch into HEAD. files holds the paths the
// merged tree takes from branch, with their contents.
func (r *GitRepo) Merge(branch, msg string, files map[string]string) plumbing.Hash {
	r.t.Helper()

	head, err := r.repo.Head()
	require.NoError(r.t, err)
	other, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(r.t, err)

	for path, content := range files {
		WriteFile(r.t, r.Dir, path, content)
		_, err := r.wt.Add(path)
		require.NoError(r.t, err)
	}

	r.clock = r.clock.Add(time.Minute)
	hash, err := r.wt.Commit(msg, &gogit.CommitOptions{
		Author:  r.signature(),
		Parents: []plumbing.Hash{head.Hash(), other.Hash()},
	})
	require.NoError(r.t, err)
	return hash
}

// Tag creates a lightweight tag.
func (r *GitRepo) Tag(name string, h plumbing.Hash) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, h, nil)
	require.NoError(r.t, err)
}

// AnnotatedTag creates an annotated tag.
func (r *GitRepo) AnnotatedTag(name string, h plumbing.Hash) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, h, &gogit.CreateTagOptions{
		Tagger:  r.signature(),
		Message: "release " + name,
	})
	require.NoError(r.t, err)
}

// WriteFile writes content to dir/path, creating parent directories.
func WriteFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}
