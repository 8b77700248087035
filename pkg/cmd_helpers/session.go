// Package cmd_helpers wires configuration into the collaborators a command
// runs against, so detect and inspect build them the same way.
package cmd_helpers

import (
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_io"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/config"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/detector"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/git"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/plugins"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/release"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Session holds everything one detection run needs.
type Session struct {
	Config     *config.Config
	Repo       git.Repository
	Classifier release.Classifier
	Detector   *detector.Detector
	Plugins    []string
}

// NewSession opens the repository, loads the plugin list and builds the detector.
func NewSession(rc *cf_io.RuntimeContext, cfg *config.Config) (*Session, error) {
	logger := rc.Log.Named("session")

	backend, err := git.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	format, err := git.ParseLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	order, err := detector.ParseTagOrder(cfg.TagOrder)
	if err != nil {
		return nil, err
	}
	classifier, err := release.NewClassifier(cfg.Classifier, cfg.Markers)
	if err != nil {
		return nil, err
	}

	ids, err := plugins.Load(cfg.PluginList)
	if err != nil {
		return nil, err
	}
	logger.Debug("Plugin list loaded",
		zap.String("path", cfg.PluginList),
		zap.Strings("plugins", ids))

	if cfg.SafeDirectory && backend == git.BackendCLI {
		if err := git.EnsureSafeDirectory(rc.Ctx, cfg.Repo); err != nil {
			return nil, cerr.Wrap(err, "register safe.directory")
		}
	}

	repo, err := git.Open(rc.Ctx, cfg.Repo, backend,
		git.WithTimeout(cfg.Timeout),
		git.WithLogger(rc.Log.Named("git")))
	if err != nil {
		return nil, err
	}
	logger.Debug("Repository opened",
		zap.String("dir", repo.Dir()),
		zap.String("backend", string(backend)))

	rc.Attributes["backend"] = string(backend)
	rc.Attributes["classifier"] = classifier.Name()

	return &Session{
		Config:     cfg,
		Repo:       repo,
		Classifier: classifier,
		Detector: detector.New(repo, classifier,
			detector.WithTagOrder(order),
			detector.WithLogFormat(format)),
		Plugins: ids,
	}, nil
}

// Detect runs the detector over the session's plugin list.
func (s *Session) Detect(rc *cf_io.RuntimeContext) (*detector.Result, error) {
	return s.Detector.Detect(rc.Ctx, s.Plugins)
}
