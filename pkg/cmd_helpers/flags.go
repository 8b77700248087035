package cmd_helpers

import (
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AddDetectionFlags registers the inputs shared by detect and inspect.
func AddDetectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(config.KeyRepo, config.DefaultRepo, "Repository work tree to inspect")
	f.String(config.KeyPluginList, config.DefaultPluginList, "Plugin list file (JSON object or array, or YAML)")
	f.String(config.KeyBackend, "cli", "Git backend: cli or native")
	f.String(config.KeyClassifier, "substring", "Release classifier: substring or conventional")
	f.String(config.KeyLogFormat, "full", "Log format scanned by the substring classifier: full or oneline")
	f.String(config.KeyTagOrder, "listing", "How the last release tag is picked: listing or semver")
	f.StringSlice(config.KeyMarkers, nil, "Substring markers (default fix,feat,!,\"Release-As: \")")
	f.Duration(config.KeyTimeout, config.DefaultTimeout, "Timeout for each git invocation")
	f.Bool(config.KeySafeDirectory, false, "Register --repo in git's global safe.directory first")
}

// ResolveConfig layers defaults, the --config file, CHANGEFINDER_* env and
// flags, then validates the result.
func ResolveConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	cli.SetViperEnvPrefix(v, config.EnvPrefix)
	if err := cli.BindFlagsToViper(cmd, v); err != nil {
		return nil, err
	}
	if err := config.ReadFile(v, v.GetString("config")); err != nil {
		return nil, err
	}
	return config.Load(v)
}
