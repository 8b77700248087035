// pkg/git/types.go

package git

import (
	"context"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
)

// LogFormat selects how commit logs are rendered.
type LogFormat string

const (
	// FormatFull is git's default medium format: header plus full message.
	FormatFull LogFormat = "full"
	// FormatOneline is `git log --oneline`: abbreviated hash and subject.
	FormatOneline LogFormat = "oneline"
)

// ParseLogFormat validates a log format name. Empty means FormatFull.
func ParseLogFormat(s string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatFull:
		return FormatFull, nil
	case FormatOneline:
		return FormatOneline, nil
	default:
		return "", cf_err.NewConfigError("unknown log format "+s, nil, "Use one of: full, oneline")
	}
}

// Backend selects the implementation that talks to the repository.
type Backend string

const (
	// BackendCLI shells out to the git binary.
	BackendCLI Backend = "cli"
	// BackendNative reads the repository in-process with go-git.
	BackendNative Backend = "native"
)

// LogRequest scopes one log query.
type LogRequest struct {
	// Since is a tag name. The query covers Since...HEAD. Empty means the
	// whole history reachable from HEAD.
	Since string
	// Path restricts the log to commits touching this path.
	Path   string
	Format LogFormat
}

// Range renders the revision range the request covers.
func (r LogRequest) Range() string {
	if r.Since == "" {
		return "HEAD"
	}
	return r.Since + "...HEAD"
}

// Repository is implemented by both backends.
type Repository interface {
	// Tags lists tag names newest-first, i.e. reversed `git tag` order.
	Tags(ctx context.Context) ([]string, error)
	// Log returns the raw log text for the request.
	Log(ctx context.Context, req LogRequest) (string, error)
	// Messages returns one full commit message per commit in the request.
	Messages(ctx context.Context, req LogRequest) ([]string, error)
	// PathExists reports whether path exists in the work tree.
	PathExists(path string) (bool, error)
	// Dir is the directory queries run in.
	Dir() string
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
