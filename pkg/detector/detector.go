// pkg/detector/detector.go

// Package detector decides, per plugin, whether its source changed since its
// last release tag in a way that warrants a new release.
//
// Processing is sequential: every plugin is fully classified before the next
// one starts, and the first failure aborts the run without a partial result.
package detector

import (
	"context"
	"encoding/json"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/git"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/release"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Repository is the version-control collaborator the detector needs.
type Repository interface {
	Tags(ctx context.Context) ([]string, error)
	Log(ctx context.Context, req git.LogRequest) (string, error)
	Messages(ctx context.Context, req git.LogRequest) ([]string, error)
	PathExists(path string) (bool, error)
}

// Report records how one plugin was classified.
type Report struct {
	Plugin  string `json:"plugin" yaml:"plugin"`
	Tag     string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Range   string `json:"range" yaml:"range"`
	Affects bool   `json:"changed" yaml:"changed"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Result is the outcome of one detection run.
type Result struct {
	// Changed lists changed plugins in plugin list order. Never nil.
	Changed []string
	Reports []Report
}

// AnyChanged is the `changed` output.
func (r *Result) AnyChanged() bool {
	return len(r.Changed) > 0
}

// PluginsJSON is the `plugins` output: a JSON array, "[]" when empty.
func (r *Result) PluginsJSON() string {
	changed := r.Changed
	if changed == nil {
		changed = []string{}
	}
	data, err := json.Marshal(changed)
	if err != nil {
		// []string always marshals
		panic(err)
	}
	return string(data)
}

// Detector classifies plugins against one repository.
type Detector struct {
	repo       Repository
	classifier release.Classifier
	tagOrder   TagOrder
	logFormat  git.LogFormat
}

// Option customizes a Detector.
type Option func(*Detector)

// WithTagOrder selects how a plugin's last release tag is chosen.
func WithTagOrder(o TagOrder) Option {
	return func(d *Detector) { d.tagOrder = o }
}

// WithLogFormat selects the log rendering the classifier scans.
func WithLogFormat(f git.LogFormat) Option {
	return func(d *Detector) { d.logFormat = f }
}

// New returns a Detector. A nil classifier means the default substring one.
func New(repo Repository, classifier release.Classifier, opts ...Option) *Detector {
	if classifier == nil {
		classifier = release.NewSubstringClassifier(nil)
	}
	d := &Detector{
		repo:       repo,
		classifier: classifier,
		tagOrder:   OrderListing,
		logFormat:  git.FormatFull,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect lists tags once, then classifies each plugin in order.
func (d *Detector) Detect(ctx context.Context, plugins []string) (*Result, error) {
	if d.repo == nil {
		return nil, cf_err.NewInternalError("detector has no repository", nil)
	}
	logger := otelzap.Ctx(ctx)

	tags, err := d.repo.Tags(ctx)
	if err != nil {
		return nil, cerr.Wrap(err, "list tags")
	}
	logger.Debug("Tags listed", zap.Int("count", len(tags)))

	res := &Result{
		Changed: []string{},
		Reports: make([]Report, 0, len(plugins)),
	}
	for _, p := range plugins {
		rep, err := d.inspect(ctx, p, tags)
		if err != nil {
			return nil, cerr.Wrapf(err, "plugin %s", p)
		}
		res.Reports = append(res.Reports, rep)
		if rep.Affects {
			res.Changed = append(res.Changed, p)
		}
	}

	logger.Info("Change detection finished",
		zap.Int("plugins", len(plugins)),
		zap.Strings("changed", res.Changed),
		zap.String("classifier", d.classifier.Name()))
	return res, nil
}

func (d *Detector) inspect(ctx context.Context, plugin string, tags []string) (rep Report, err error) {
	ctx, span := telemetry.Start(ctx, "detector.plugin", attribute.String("plugin", plugin))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()
	logger := otelzap.Ctx(ctx)

	ok, err := d.repo.PathExists(plugin)
	if err != nil {
		return Report{}, cf_err.NewFilesystemError("check plugin path", err)
	}
	if !ok {
		return Report{}, cf_err.NewValidationError("plugin path not found in work tree: "+plugin, nil,
			"Remove the plugin from the plugin list or restore its directory")
	}

	req := git.LogRequest{Path: plugin, Format: d.logFormat}
	tag, found := TagForOrder(plugin, tags, d.tagOrder)
	if found {
		req.Since = tag
	}

	verdict, err := d.classifier.Classify(ctx, history{repo: d.repo, req: req})
	if err != nil {
		return Report{}, err
	}

	span.SetAttributes(
		attribute.String("tag", tag),
		attribute.Bool("changed", verdict.Affects),
	)
	logger.Info("Plugin classified",
		zap.String("plugin", plugin),
		zap.String("tag", tag),
		zap.String("range", req.Range()),
		zap.Bool("changed", verdict.Affects),
		zap.String("marker", verdict.Reason))

	return Report{
		Plugin:  plugin,
		Tag:     tag,
		Range:   req.Range(),
		Affects: verdict.Affects,
		Reason:  verdict.Reason,
	}, nil
}

// history binds one log request to the repository for a classifier.
type history struct {
	repo Repository
	req  git.LogRequest
}

func (h history) Text(ctx context.Context) (string, error) {
	return h.repo.Log(ctx, h.req)
}

func (h history) Messages(ctx context.Context) ([]string, error) {
	return h.repo.Messages(ctx, h.req)
}
