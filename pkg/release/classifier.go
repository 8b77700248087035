// pkg/release/classifier.go

package release

import (
	"context"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	cerr "github.com/cockroachdb/errors"
)

// History gives a classifier lazy access to one plugin's commits in range.
type History interface {
	// Text is the raw log output.
	Text(ctx context.Context) (string, error)
	// Messages is one full message per commit.
	Messages(ctx context.Context) ([]string, error)
}

// Verdict is the outcome of classifying one history.
type Verdict struct {
	Affects bool
	// Reason names what triggered the decision: the matched marker, or the
	// commit subject for the conventional classifier.
	Reason string
}

// Classifier decides whether a history warrants a release.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, h History) (Verdict, error)
}

const (
	NameSubstring    = "substring"
	NameConventional = "conventional"
)

// NewClassifier resolves a classifier by name. Empty means substring.
// markers only apply to the substring classifier; nil means DefaultMarkers.
func NewClassifier(name string, markers []string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameSubstring:
		return NewSubstringClassifier(markers), nil
	case NameConventional:
		return NewConventionalClassifier(), nil
	default:
		return nil, cf_err.NewConfigError("unknown classifier "+name, nil,
			"Use one of: "+NameSubstring+", "+NameConventional)
	}
}

// SubstringClassifier scans the raw log text for marker substrings.
type SubstringClassifier struct {
	markers []string
}

// NewSubstringClassifier returns a classifier for markers, or DefaultMarkers when empty.
func NewSubstringClassifier(markers []string) *SubstringClassifier {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &SubstringClassifier{markers: append([]string(nil), markers...)}
}

func (s *SubstringClassifier) Name() string { return NameSubstring }

// Markers returns a copy of the configured markers.
func (s *SubstringClassifier) Markers() []string {
	return append([]string(nil), s.markers...)
}

func (s *SubstringClassifier) Classify(ctx context.Context, h History) (Verdict, error) {
	text, err := h.Text(ctx)
	if err != nil {
		return Verdict{}, cerr.Wrap(err, "read log")
	}
	ok, marker := AffectsRelease(text, s.markers)
	return Verdict{Affects: ok, Reason: marker}, nil
}
