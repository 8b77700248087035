// pkg/git/repository.go
//
// Backend selection and repository preflight.

package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type options struct {
	timeout time.Duration
	logger  *zap.Logger
}

// Option customizes a backend.
type Option func(*options)

// WithTimeout bounds each git invocation of the CLI backend.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{timeout: 10 * time.Minute, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// ParseBackend validates a backend name. Empty means BackendCLI.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendCLI:
		return BackendCLI, nil
	case BackendNative:
		return BackendNative, nil
	default:
		return "", cf_err.NewConfigError("unknown git backend "+s, nil, "Use one of: cli, native")
	}
}

// Open verifies dir is a git work tree and returns the requested backend.
func Open(ctx context.Context, dir string, backend Backend, opts ...Option) (Repository, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, cf_err.NewFilesystemError("repository directory not found: "+dir, err)
	}

	switch backend {
	case BackendNative:
		return OpenNative(dir, opts...)
	case BackendCLI, "":
		c := NewCLI(dir, opts...)
		if err := c.Verify(ctx); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, cf_err.NewConfigError("unknown git backend "+string(backend), nil)
	}
}

func pathExists(dir, path string) (bool, error) {
	if path == "" {
		return false, cerr.New("empty path")
	}
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, cerr.Wrapf(err, "stat %s", path)
}
