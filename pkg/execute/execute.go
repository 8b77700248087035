// pkg/execute/execute.go

// Package execute runs external commands with structured logging.
// Shell interpretation is never used: Command and Args go straight to exec.
package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options describes one command invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Result holds the captured streams of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// ExitError is returned when the command ran but did not succeed.
type ExitError struct {
	Command string
	Stderr  string
	Summary string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Command + ": " + e.Err.Error() + " (" + e.Summary + ")"
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run executes a command and returns its captured output. Stdout is returned
// verbatim so callers can scan it; stderr is only used for diagnostics.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Command == "" {
		return nil, cerr.New("execute: empty command")
	}
	cmdStr := buildCommandString(opts.Command, opts.Args...)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rc, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	rc, span := telemetry.Start(rc, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	logger.Debug("Starting execution", zap.String("command", cmdStr), zap.String("dir", opts.Dir))

	cmd := exec.CommandContext(rc, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if rc.Err() != nil {
			err = cerr.Wrapf(rc.Err(), "%s did not finish", opts.Command)
		}
		summary := cf_err.ExtractSummary(res.Stderr, 2)
		span.RecordError(err)
		logger.Error("Execution failed",
			zap.String("command", cmdStr),
			zap.String("summary", summary),
			zap.Error(err))
		return res, &ExitError{Command: cmdStr, Stderr: res.Stderr, Summary: summary, Err: err}
	}

	logger.Debug("Execution succeeded",
		zap.String("command", cmdStr),
		zap.Duration("duration", time.Since(start)),
		zap.Int("stdout_bytes", stdout.Len()))
	return res, nil
}

// Output is Run returning only stdout.
func Output(ctx context.Context, opts Options) (string, error) {
	res, err := Run(ctx, opts)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}
