// pkg/config/config.go

// Package config resolves changefinder settings from flags, environment and
// an optional YAML file, then validates them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. CHANGEFINDER_PLUGIN_LIST.
const EnvPrefix = "CHANGEFINDER"

// Keys shared by flags, environment and config file.
const (
	KeyRepo          = "repo"
	KeyPluginList    = "plugin-list"
	KeyBackend       = "backend"
	KeyClassifier    = "classifier"
	KeyLogFormat     = "log-format"
	KeyTagOrder      = "tag-order"
	KeyMarkers       = "markers"
	KeyOutput        = "output"
	KeyLogLevel      = "log-level"
	KeyTimeout       = "timeout"
	KeySafeDirectory = "safe-directory"
	KeyFormat        = "format"
)

// Defaults
const (
	DefaultRepo       = "."
	DefaultPluginList = "plugin_list.json"
	DefaultTimeout    = 10 * time.Minute
)

// Config is the resolved configuration of one run.
type Config struct {
	Repo          string        `validate:"required"`
	PluginList    string        `validate:"required"`
	Backend       string        `validate:"oneof=cli native"`
	Classifier    string        `validate:"oneof=substring conventional"`
	LogFormat     string        `validate:"oneof=full oneline"`
	TagOrder      string        `validate:"oneof=listing semver"`
	Markers       []string      `validate:"dive,required"`
	Output        string        `validate:"oneof=github text json"`
	Format        string        `validate:"omitempty,oneof=table json yaml"`
	Timeout       time.Duration `validate:"gt=0"`
	SafeDirectory bool
}

// SetDefaults registers defaults for keys no flag provides.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRepo, DefaultRepo)
	v.SetDefault(KeyPluginList, DefaultPluginList)
	v.SetDefault(KeyBackend, "cli")
	v.SetDefault(KeyClassifier, "substring")
	v.SetDefault(KeyLogFormat, "full")
	v.SetDefault(KeyTagOrder, "listing")
	v.SetDefault(KeyOutput, "github")
	v.SetDefault(KeyTimeout, DefaultTimeout)
}

// ReadFile merges a YAML config file into v. Empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return cf_err.NewConfigError("read config file "+path, err,
			"Check that the file exists and is valid YAML")
	}
	return nil
}

// markerList reads the markers key. A plain string, as set through
// CHANGEFINDER_MARKERS, is split on commas only so markers may carry spaces.
func markerList(v *viper.Viper) []string {
	if s, ok := v.Get(KeyMarkers).(string); ok {
		if s == "" {
			return nil
		}
		return strings.Split(s, ",")
	}
	return v.GetStringSlice(KeyMarkers)
}

// Load reads every key from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Repo:          v.GetString(KeyRepo),
		PluginList:    v.GetString(KeyPluginList),
		Backend:       strings.ToLower(v.GetString(KeyBackend)),
		Classifier:    strings.ToLower(v.GetString(KeyClassifier)),
		LogFormat:     strings.ToLower(v.GetString(KeyLogFormat)),
		TagOrder:      strings.ToLower(v.GetString(KeyTagOrder)),
		Markers:       markerList(v),
		Output:        strings.ToLower(v.GetString(KeyOutput)),
		Format:        strings.ToLower(v.GetString(KeyFormat)),
		Timeout:       v.GetDuration(KeyTimeout),
		SafeDirectory: v.GetBool(KeySafeDirectory),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return cf_err.NewInternalError("validate config", err)
	}

	var result error
	for _, fe := range verrs {
		result = multierror.Append(result, fmt.Errorf("%s: %s", fe.Namespace(), describe(fe)))
	}
	return cf_err.NewConfigError("invalid configuration", result,
		"Run with --help to see accepted values")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "oneof":
		return fmt.Sprintf("%q is not one of [%s]", fmt.Sprint(fe.Value()), fe.Param())
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
