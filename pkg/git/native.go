// pkg/git/native.go
//
// Native backend: reads the repository in-process with go-git, for CI images
// without a git binary. Query semantics match the CLI backend, including the
// default history simplification of `git log -- <path>`.

package git

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	cerr "github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Native answers repository queries with go-git.
type Native struct {
	dir    string
	prefix string // dir relative to the work tree root, slash separated
	repo   *gogit.Repository
	opts   options
}

// OpenNative opens the repository containing dir.
func OpenNative(dir string, opts ...Option) (*Native, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, cerr.Wrap(err, "resolve repository dir")
	}

	repo, err := gogit.PlainOpenWithOptions(absDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, cf_err.NewGitError("not a git repository: "+dir, err,
			"Run changefinder from the repository root or pass --repo")
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, cf_err.NewGitError("repository has no work tree: "+dir, err)
	}

	rel, err := filepath.Rel(wt.Filesystem.Root(), absDir)
	if err != nil {
		return nil, cerr.Wrap(err, "resolve repository prefix")
	}
	prefix := filepath.ToSlash(rel)
	if prefix == "." {
		prefix = ""
	}

	return &Native{dir: dir, prefix: prefix, repo: repo, opts: buildOptions(opts)}, nil
}

// Dir returns the directory paths are resolved against.
func (n *Native) Dir() string { return n.dir }

// Tags lists tag names newest-first: refname order reversed, like the CLI.
func (n *Native) Tags(ctx context.Context) ([]string, error) {
	iter, err := n.repo.Tags()
	if err != nil {
		return nil, cf_err.NewGitError("list tags failed", err)
	}
	defer iter.Close()

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, cf_err.NewGitError("list tags failed", err)
	}

	sort.Strings(tags)
	reverse(tags)
	return tags, nil
}

// Log renders the request like `git log` would.
func (n *Native) Log(ctx context.Context, req LogRequest) (string, error) {
	commits, err := n.commits(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i, c := range commits {
		if req.Format == FormatOneline {
			sb.WriteString(c.Hash.String()[:7])
			sb.WriteString(" ")
			sb.WriteString(subject(c.Message))
			sb.WriteString("\n")
			continue
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(c.String())
	}
	return sb.String(), nil
}

// Messages returns the full message of every commit in the request.
func (n *Native) Messages(ctx context.Context, req LogRequest) ([]string, error) {
	commits, err := n.commits(ctx, req)
	if err != nil {
		return nil, err
	}
	msgs := make([]string, 0, len(commits))
	for _, c := range commits {
		if m := strings.TrimSpace(c.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// PathExists reports whether path exists below the repository dir.
func (n *Native) PathExists(path string) (bool, error) {
	return pathExists(n.dir, path)
}

// commits returns the commits of req.Range() that touch req.Path. For a
// tag range this is the symmetric difference of both histories, as with
// `git log <tag>...HEAD`.
func (n *Native) commits(ctx context.Context, req LogRequest) ([]*object.Commit, error) {
	head, err := n.repo.Head()
	if err != nil {
		return nil, cf_err.NewGitError("repository has no commits", err)
	}

	scope := n.treePath(req.Path)
	if req.Since == "" {
		return n.walk(ctx, head.Hash(), scope, nil)
	}

	since, err := n.resolveTag(req.Since)
	if err != nil {
		return nil, err
	}

	fromSince, err := n.reachable(ctx, since)
	if err != nil {
		return nil, err
	}
	fromHead, err := n.reachable(ctx, head.Hash())
	if err != nil {
		return nil, err
	}

	ahead, err := n.walk(ctx, head.Hash(), scope, fromSince)
	if err != nil {
		return nil, err
	}
	behind, err := n.walk(ctx, since, scope, fromHead)
	if err != nil {
		return nil, err
	}
	out := append(ahead, behind...)

	n.opts.logger.Debug("Native log walk",
		zap.String("range", req.Range()),
		zap.String("path", req.Path),
		zap.Int("commits", len(out)))
	return out, nil
}

// treePath turns a plugin path into a slash separated path from the work
// tree root. The empty string means the whole tree.
func (n *Native) treePath(p string) string {
	clean := path.Clean(strings.Trim(filepath.ToSlash(p), "/"))
	if clean == "." {
		clean = ""
	}
	switch {
	case n.prefix == "":
		return clean
	case clean == "":
		return n.prefix
	default:
		return n.prefix + "/" + clean
	}
}

// walk lists the commits reachable from `from` that change treePath,
// newest committer time first, simplifying history like `git log -- path`:
// a commit is kept only when treePath differs from every parent, and a
// merge that matches one parent at treePath is followed through that parent
// alone. Commits in exclude and their ancestors are not visited.
func (n *Native) walk(ctx context.Context, from plumbing.Hash, treePath string, exclude map[plumbing.Hash]struct{}) ([]*object.Commit, error) {
	if _, ok := exclude[from]; ok {
		return nil, nil
	}
	start, err := n.repo.CommitObject(from)
	if err != nil {
		return nil, cf_err.NewGitError("git log failed", err)
	}

	hashes := make(map[plumbing.Hash]plumbing.Hash)
	seen := map[plumbing.Hash]struct{}{from: {}}
	queue := []*object.Commit{start}

	var commits []*object.Commit
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, cf_err.NewGitError("git log failed", err)
		}
		c := popNewest(&queue)

		keep, follow, err := n.simplify(c, treePath, hashes)
		if err != nil {
			return nil, cf_err.NewGitError("git log failed", err)
		}
		if keep {
			commits = append(commits, c)
		}
		for _, p := range follow {
			if _, ok := seen[p.Hash]; ok {
				continue
			}
			seen[p.Hash] = struct{}{}
			if _, ok := exclude[p.Hash]; ok {
				continue
			}
			queue = append(queue, p)
		}
	}
	return commits, nil
}

// simplify decides whether c changes treePath and which parents the walk
// continues through.
func (n *Native) simplify(c *object.Commit, treePath string, hashes map[plumbing.Hash]plumbing.Hash) (bool, []*object.Commit, error) {
	own, err := pathHash(c, treePath, hashes)
	if err != nil {
		return false, nil, err
	}

	var parents []*object.Commit
	err = c.Parents().ForEach(func(p *object.Commit) error {
		parents = append(parents, p)
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if len(parents) == 0 {
		return !own.IsZero(), nil, nil
	}

	for _, p := range parents {
		ph, err := pathHash(p, treePath, hashes)
		if err != nil {
			return false, nil, err
		}
		if ph == own {
			return false, []*object.Commit{p}, nil
		}
	}
	return true, parents, nil
}

// pathHash returns the object hash of treePath in c, or the zero hash when
// c does not contain it.
func pathHash(c *object.Commit, treePath string, cache map[plumbing.Hash]plumbing.Hash) (plumbing.Hash, error) {
	if h, ok := cache[c.Hash]; ok {
		return h, nil
	}
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	h := tree.Hash
	if treePath != "" {
		entry, err := tree.FindEntry(treePath)
		switch {
		case err == nil:
			h = entry.Hash
		case errors.Is(err, object.ErrEntryNotFound), errors.Is(err, object.ErrDirectoryNotFound):
			h = plumbing.ZeroHash
		default:
			return plumbing.ZeroHash, err
		}
	}
	cache[c.Hash] = h
	return h, nil
}

// popNewest removes and returns the queued commit with the latest committer
// time. Ties go to the commit queued first.
func popNewest(queue *[]*object.Commit) *object.Commit {
	q := *queue
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i].Committer.When.After(q[best].Committer.When) {
			best = i
		}
	}
	c := q[best]
	*queue = append(q[:best], q[best+1:]...)
	return c
}

func (n *Native) reachable(ctx context.Context, from plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	iter, err := n.repo.Log(&gogit.LogOptions{From: from})
	if err != nil {
		return nil, cf_err.NewGitError("git log failed", err)
	}
	defer iter.Close()

	set := make(map[plumbing.Hash]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		set[c.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, cf_err.NewGitError("git log failed", err)
	}
	return set, nil
}

// resolveTag peels lightweight and annotated tags to their commit.
func (n *Native) resolveTag(name string) (plumbing.Hash, error) {
	ref, err := n.repo.Tag(name)
	if err != nil {
		return plumbing.ZeroHash, cf_err.NewGitError("unknown tag "+name, err)
	}

	tagObj, err := n.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		c, err := tagObj.Commit()
		if err != nil {
			return plumbing.ZeroHash, cf_err.NewGitError("tag "+name+" does not point at a commit", err)
		}
		return c.Hash, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return ref.Hash(), nil
	default:
		return plumbing.ZeroHash, cf_err.NewGitError("read tag "+name, err)
	}
}

func subject(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}
