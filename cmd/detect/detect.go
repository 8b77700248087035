// cmd/detect/detect.go
// Decide which plugins changed and publish the CI outputs

package detect

import (
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/actions"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_cli"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_io"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/config"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// NewDetectCmd builds the detect command.
func NewDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect plugins with release-worthy changes",
		Long: `Detect reads the plugin list, finds each plugin's last release tag (the
newest tag whose name starts with the plugin identifier) and scans the commits
touching the plugin since that tag, or its whole history when there is none.

A plugin is changed when the log contains one of the markers fix, feat, ! or
"Release-As: ". Outputs:

  changed  true when at least one plugin changed
  plugins  JSON array of changed plugins, in plugin list order

Inside GitHub Actions the outputs are appended to $GITHUB_OUTPUT.

EXAMPLES:
  # Run at the repository root with plugin_list.json
  changefinder detect

  # Parse commit messages as Conventional Commits
  changefinder detect --classifier=conventional

  # Local dry run
  changefinder detect --output=json`,
		Args: cobra.NoArgs,
		RunE: cf_cli.Wrap(runDetect),
	}

	cmd_helpers.AddDetectionFlags(cmd)
	cmd.Flags().String(config.KeyOutput, "github", "Output rendering: github, text or json")
	return cmd
}

func runDetect(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)

	cfg, err := cmd_helpers.ResolveConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := actions.ParseMode(cfg.Output)
	if err != nil {
		return err
	}

	session, err := cmd_helpers.NewSession(rc, cfg)
	if err != nil {
		return err
	}

	logger.Info("Detecting changed plugins",
		zap.String("repo", cfg.Repo),
		zap.Int("plugins", len(session.Plugins)),
		zap.String("classifier", session.Classifier.Name()))

	res, err := session.Detect(rc)
	if err != nil {
		return err
	}

	rc.Attributes["changed"] = res.PluginsJSON()
	return actions.Emit(rc.Ctx, cmd.OutOrStdout(), mode, res.AnyChanged(), res.PluginsJSON())
}
