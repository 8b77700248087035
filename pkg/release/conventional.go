// pkg/release/conventional.go

package release

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// ReleaseAsFooter forces a release regardless of commit type.
const ReleaseAsFooter = "release-as"

// ConventionalClassifier parses every commit as a Conventional Commit and
// only counts fix, feat, breaking changes and Release-As footers. Commits
// that do not parse are ignored.
type ConventionalClassifier struct {
	machine conventionalcommits.Machine
}

// NewConventionalClassifier returns a best-effort parser over the
// conventional type set.
func NewConventionalClassifier() *ConventionalClassifier {
	return &ConventionalClassifier{
		machine: parser.NewMachine(
			parser.WithBestEffort(),
			parser.WithTypes(conventionalcommits.TypesConventional),
		),
	}
}

func (c *ConventionalClassifier) Name() string { return NameConventional }

func (c *ConventionalClassifier) Classify(ctx context.Context, h History) (Verdict, error) {
	msgs, err := h.Messages(ctx)
	if err != nil {
		return Verdict{}, cerr.Wrap(err, "read commit messages")
	}
	for _, m := range msgs {
		if c.AffectsRelease(m) {
			return Verdict{Affects: true, Reason: firstLine(m)}, nil
		}
	}
	return Verdict{}, nil
}

// AffectsRelease classifies a single commit message.
func (c *ConventionalClassifier) AffectsRelease(message string) bool {
	// best effort mode returns the parsed header alongside body/footer errors
	msg, _ := c.machine.Parse([]byte(strings.TrimSpace(message)))
	if msg == nil || !msg.Ok() {
		return false
	}

	if msg.IsFix() || msg.IsFeat() || msg.IsBreakingChange() {
		return true
	}
	if cc, ok := msg.(*conventionalcommits.ConventionalCommit); ok {
		for k := range cc.Footers {
			if strings.EqualFold(k, ReleaseAsFooter) {
				return true
			}
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
