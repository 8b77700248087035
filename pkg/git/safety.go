// pkg/git/safety.go

package git

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// EnsureSafeDirectory registers repoPath in git's global safe.directory.
//
// Checkout steps in container jobs commonly leave the work tree owned by a
// different uid than the one running this step, and git then refuses every
// command with "detected dubious ownership".
func EnsureSafeDirectory(ctx context.Context, repoPath string) error {
	logger := otelzap.Ctx(ctx)

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return cerr.Wrap(err, "resolve absolute path")
	}

	configured, err := isPathInSafeDirectory(ctx, absPath)
	if err != nil {
		logger.Debug("Could not check git safe.directory entries", zap.Error(err))
	} else if configured {
		logger.Debug("git safe.directory already includes path", zap.String("path", absPath))
		return nil
	}

	if _, err := execute.Run(ctx, execute.Options{
		Command: "git",
		Args:    []string{"config", "--global", "--add", "safe.directory", absPath},
		Logger:  logger.ZapLogger(),
	}); err != nil {
		return cerr.Wrap(err, "git config --add safe.directory")
	}

	logger.Info("Registered repository as safe for git", zap.String("path", absPath))
	return nil
}

func isPathInSafeDirectory(ctx context.Context, path string) (bool, error) {
	out, err := execute.Output(ctx, execute.Options{
		Command: "git",
		Args:    []string{"config", "--global", "--get-all", "safe.directory"},
	})
	if err != nil {
		// exit 1: key not set
		var ee *exec.ExitError
		if errors.As(err, &ee) && ee.ExitCode() == 1 {
			return false, nil
		}
		return false, cerr.Wrap(err, "git config --get-all safe.directory")
	}

	return safeEntriesCover(out, path), nil
}

func safeEntriesCover(entries, path string) bool {
	for _, e := range strings.Split(strings.ReplaceAll(entries, "\r\n", "\n"), "\n") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if e == "*" || samePath(e, path) {
			return true
		}
	}
	return false
}

func samePath(a, b string) bool {
	return strings.TrimRight(filepath.Clean(a), "/") == strings.TrimRight(filepath.Clean(b), "/")
}
