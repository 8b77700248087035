// cmd/version/version.go

package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/CodeMonkeyCybersecurity/changefinder/cmd/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the changefinder version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "changefinder %s (%s, %s)\n", Version, Commit, runtime.Version())
			return err
		},
	}
}
