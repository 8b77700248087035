// pkg/cf_cli/wrap_test.go

package cf_cli

import (
	"errors"
	"testing"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_io"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap(t *testing.T) {
	userErr := cf_err.NewExpectedError(errors.New("plugin list missing"))

	tests := []struct {
		name        string
		fn          func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error
		args        []string
		expectError bool
		errorMsg    string
		logMessage  string
		logLevel    zapcore.Level
	}{
		{
			name: "successful execution",
			fn: func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				assert.NotNil(t, rc.Ctx)
				assert.NotNil(t, rc.Log)
				assert.Equal(t, "test-cmd", rc.Command)
				assert.Equal(t, []string{"a"}, args)
				return nil
			},
			args:       []string{"a"},
			logMessage: "Command completed",
			logLevel:   zapcore.InfoLevel,
		},
		{
			name: "command returns error",
			fn: func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				return errors.New("command failed")
			},
			expectError: true,
			errorMsg:    "command failed",
			logMessage:  "Command failed",
			logLevel:    zapcore.ErrorLevel,
		},
		{
			name: "expected user error",
			fn: func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				return userErr
			},
			expectError: true,
			errorMsg:    "plugin list missing",
			logMessage:  "Command failed on user input",
			logLevel:    zapcore.WarnLevel,
		},
		{
			name: "panic recovery",
			fn: func(rc *cf_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				panic("test panic")
			},
			expectError: true,
			errorMsg:    "panic: test panic",
			logMessage:  "Command failed",
			logLevel:    zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			logger.SetLogger(zap.New(core))

			cmd := &cobra.Command{Use: "test-cmd"}
			err := Wrap(tt.fn)(cmd, tt.args)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
			}

			entries := logs.FilterMessage(tt.logMessage).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.logLevel, entries[0].Level)
		})
	}

	t.Run("panics exit as internal errors", func(t *testing.T) {
		logger.SetLogger(zap.NewNop())
		err := Wrap(func(*cf_io.RuntimeContext, *cobra.Command, []string) error { panic("boom") })(&cobra.Command{Use: "x"}, nil)
		require.Error(t, err)
		assert.Equal(t, cf_err.CategoryInternal, cf_err.CategoryOf(err))
		assert.Equal(t, 3, cf_err.GetExitCode(err))
	})

	t.Run("user errors keep their marker", func(t *testing.T) {
		logger.SetLogger(zap.NewNop())
		err := Wrap(func(*cf_io.RuntimeContext, *cobra.Command, []string) error { return userErr })(&cobra.Command{Use: "x"}, nil)
		assert.True(t, cf_err.IsExpectedUserError(err))
		assert.Same(t, userErr, err)
	})
}
