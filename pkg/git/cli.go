// pkg/git/cli.go
//
// CLI backend: every query is one `git` invocation in the repository dir.

package git

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/execute"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CLI runs git commands through the git binary found in PATH.
type CLI struct {
	dir  string
	opts options
}

// NewCLI returns a CLI backend rooted at dir. It does not touch the repository.
func NewCLI(dir string, opts ...Option) *CLI {
	return &CLI{dir: dir, opts: buildOptions(opts)}
}

// Dir returns the directory git runs in.
func (c *CLI) Dir() string { return c.dir }

// Verify checks git is installed and dir is inside a work tree.
func (c *CLI) Verify(ctx context.Context) error {
	if err := CheckGitInstalled(ctx); err != nil {
		return err
	}
	out, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) != "true" {
		return cf_err.NewGitError("not inside a git work tree: "+c.dir, nil)
	}
	return nil
}

// Tags lists tags newest-first: `git tag` output reversed.
func (c *CLI) Tags(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "tag")
	if err != nil {
		return nil, err
	}
	tags := splitLines(out)
	reverse(tags)
	return tags, nil
}

// Log returns `git log [--oneline] [<tag>...HEAD] -- <path>` verbatim.
func (c *CLI) Log(ctx context.Context, req LogRequest) (string, error) {
	args := []string{"log", "--no-color"}
	if req.Format == FormatOneline {
		args = append(args, "--oneline")
	}
	return c.run(ctx, append(args, scope(req)...)...)
}

// Messages returns the full message of every commit in the request.
func (c *CLI) Messages(ctx context.Context, req LogRequest) ([]string, error) {
	args := append([]string{"log", "--no-color", "--format=%B%x00"}, scope(req)...)
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var msgs []string
	for _, m := range strings.Split(out, "\x00") {
		if m = strings.TrimSpace(m); m != "" {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// PathExists reports whether path exists below the repository dir.
func (c *CLI) PathExists(path string) (bool, error) {
	return pathExists(c.dir, path)
}

func scope(req LogRequest) []string {
	var args []string
	if req.Since != "" {
		args = append(args, req.Range())
	}
	return append(args, "--", req.Path)
}

func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	out, err := execute.Output(ctx, execute.Options{
		Command: "git",
		Args:    args,
		Dir:     c.dir,
		Timeout: c.opts.timeout,
		Logger:  c.opts.logger,
	})
	if err != nil {
		return "", classify(c.dir, args[0], err)
	}
	return out, nil
}

func classify(dir, sub string, err error) error {
	var exitErr *execute.ExitError
	if !errors.As(err, &exitErr) {
		return cf_err.NewGitError("git "+sub+" failed", err)
	}

	stderr := exitErr.Stderr
	switch {
	case strings.Contains(stderr, "detected dubious ownership"):
		return cf_err.NewGitError("git "+sub+" refused the repository", err,
			"Run: git config --global --add safe.directory "+dir,
			"Or pass --safe-directory to register it automatically")
	case strings.Contains(stderr, "not a git repository"):
		return cf_err.NewGitError("not a git repository: "+dir, err,
			"Run changefinder from the repository root or pass --repo")
	case strings.Contains(stderr, "does not have any commits"):
		return cf_err.NewGitError("repository has no commits", err)
	default:
		return cf_err.NewGitError("git "+sub+" failed", err)
	}
}

// CheckGitInstalled verifies git command is available in PATH
func CheckGitInstalled(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)

	gitPath, err := exec.LookPath("git")
	if err != nil {
		return cf_err.NewGitError("git is not installed or not in PATH", err,
			"Install git in the CI image",
			"Or use --backend native to read the repository without the git binary")
	}

	logger.Debug("Git binary found", zap.String("path", gitPath))
	return nil
}
