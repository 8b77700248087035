// cmd/inspect/inspect.go
// Print the per-plugin classification without publishing outputs

package inspect

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_cli"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_io"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cmd_helpers"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/config"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/detector"
	cerr "github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// NewInspectCmd builds the inspect command.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how each plugin was classified",
		Long: `Inspect runs the same detection as detect and prints one row per plugin:
the tag it was compared against, the range scanned and what triggered the
decision. No step outputs are written.

EXAMPLES:
  changefinder inspect
  changefinder inspect --tag-order=semver --format=yaml`,
		Args: cobra.NoArgs,
		RunE: cf_cli.Wrap(runInspect),
	}

	cmd_helpers.AddDetectionFlags(cmd)
	cmd.Flags().String(config.KeyFormat, "table", "Output format (table, json, yaml)")
	return cmd
}

func runInspect(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)

	cfg, err := cmd_helpers.ResolveConfig(cmd)
	if err != nil {
		return err
	}
	session, err := cmd_helpers.NewSession(rc, cfg)
	if err != nil {
		return err
	}
	res, err := session.Detect(rc)
	if err != nil {
		return err
	}

	logger.Debug("Rendering report", zap.String("format", cfg.Format), zap.Int("rows", len(res.Reports)))

	out := cmd.OutOrStdout()
	switch cfg.Format {
	case "json":
		return outputJSON(out, res.Reports)
	case "yaml":
		return outputYAML(out, res.Reports)
	default:
		return outputTable(out, res)
	}
}

func outputJSON(w io.Writer, reports []detector.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return cerr.Wrap(err, "encode json")
	}
	return nil
}

func outputYAML(w io.Writer, reports []detector.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return cerr.Wrap(err, "encode yaml")
	}
	return enc.Close()
}

func outputTable(w io.Writer, res *detector.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("PLUGIN", "TAG", "RANGE", "CHANGED", "REASON")

	for _, r := range res.Reports {
		tag := r.Tag
		if tag == "" {
			tag = "-"
		}
		if err := table.Append(r.Plugin, tag, r.Range, strconv.FormatBool(r.Affects), r.Reason); err != nil {
			return cerr.Wrap(err, "append row")
		}
	}
	if err := table.Render(); err != nil {
		return cerr.Wrap(err, "render table")
	}
	return nil
}
