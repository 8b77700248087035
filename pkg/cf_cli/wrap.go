// pkg/cf_cli/wrap.go

package cf_cli

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Wrap gives a command a runtime context, panic recovery and outcome logging.
func Wrap(fn func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		rc := cf_io.NewContext(parent, cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		rc.Log.Debug("Command starting", zap.Strings("args", args))

		err = fn(rc, cmd, args)
		if err != nil && !cf_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
