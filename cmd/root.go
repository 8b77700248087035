/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/cmd/detect"
	"github.com/CodeMonkeyCybersecurity/changefinder/cmd/inspect"
	"github.com/CodeMonkeyCybersecurity/changefinder/cmd/version"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_cli"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_io"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/config"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "changefinder",
		Short: "Find monorepo plugins that need a release",
		Long: `changefinder decides, for every plugin of a monorepo, whether the commits
touching it since its last release tag warrant a new release, and publishes the
result as the step outputs "changed" and "plugins".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString(config.KeyLogLevel)
			if level == "" {
				level = os.Getenv(config.EnvPrefix + "_LOG_LEVEL")
			}
			logger.Initialize(level)
		},
		RunE: cf_cli.Wrap(func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
			rc.Log.Debug("No subcommand provided")
			return cli.ShowHelp(cmd)
		}),
	}

	root.PersistentFlags().String("config", "", "Optional YAML config file")
	root.PersistentFlags().String(config.KeyLogLevel, "", "Log level: debug, info, warn, error (default info)")

	root.AddCommand(
		detect.NewDetectCmd(),
		inspect.NewInspectCmd(),
		version.NewVersionCmd(),
	)
	return root
}

// RootCmd is the base command for changefinder.
var RootCmd = NewRootCmd()

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	os.Exit(run(RootCmd, os.Args[1:]))
}

func run(root *cobra.Command, args []string) (code int) {
	shutdown, err := telemetry.Init("changefinder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush traces: %v\n", err)
		}
		if err := logger.Sync(); err != nil && !isStderrSyncError(err) {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}()

	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if cf_err.IsExpectedUserError(err) {
			logger.L().Warn("changefinder stopped on user error", zap.Error(err))
		} else {
			logger.L().Error("changefinder failed", zap.Error(err))
		}
		return cf_err.GetExitCode(err)
	}
	return 0
}

// fsync on a terminal or pipe fails with EINVAL/ENOTTY.
func isStderrSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
