// pkg/actions/output.go

// Package actions publishes step outputs the way GitHub Actions expects them.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// OutputFileEnv names the file command the runner reads outputs from.
const OutputFileEnv = "GITHUB_OUTPUT"

const (
	OutputChanged = "changed"
	OutputPlugins = "plugins"
)

// Mode selects how results are rendered.
type Mode string

const (
	ModeGitHub Mode = "github"
	ModeText   Mode = "text"
	ModeJSON   Mode = "json"
)

// ParseMode accepts github, text or json. Empty means github.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGitHub:
		return ModeGitHub, nil
	case ModeText:
		return ModeText, nil
	case ModeJSON:
		return ModeJSON, nil
	default:
		return "", cf_err.NewConfigError("unknown output mode "+s, nil,
			"Use one of: github, text, json")
	}
}

// Writer sets step outputs. With an output file it appends file commands,
// otherwise it prints legacy ::set-output workflow commands to out.
type Writer struct {
	out       io.Writer
	file      string
	delimiter func() string
}

// NewWriter returns a Writer using the runner's GITHUB_OUTPUT file when set.
func NewWriter(out io.Writer) *Writer {
	return NewFileWriter(out, os.Getenv(OutputFileEnv))
}

// NewFileWriter returns a Writer appending to path. Empty path means out.
func NewFileWriter(out io.Writer, path string) *Writer {
	return &Writer{
		out:  out,
		file: path,
		delimiter: func() string {
			return "ghadelimiter_" + uuid.NewString()
		},
	}
}

// File is the output file in use, empty for the workflow command fallback.
func (w *Writer) File() string { return w.file }

// SetOutput publishes one named output.
func (w *Writer) SetOutput(name, value string) error {
	if name == "" {
		return cf_err.NewInternalError("output name is empty", nil)
	}
	if w.file == "" {
		_, err := fmt.Fprintf(w.out, "::set-output name=%s::%s\n", escapeProperty(name), escapeData(value))
		return err
	}

	msg, err := w.fileCommand(name, value)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(w.file, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return cf_err.NewFilesystemError("open output file "+w.file, err,
			"Check that "+OutputFileEnv+" points at the runner's output file")
	}
	defer f.Close()

	if _, err := f.WriteString(msg); err != nil {
		return cf_err.NewFilesystemError("write output file "+w.file, err)
	}
	return nil
}

func (w *Writer) fileCommand(name, value string) (string, error) {
	if !strings.ContainsAny(value, "\r\n") {
		return name + "=" + value + "\n", nil
	}
	delim := w.delimiter()
	if strings.Contains(name, delim) || strings.Contains(value, delim) {
		return "", cf_err.NewInternalError(
			fmt.Sprintf("output %s collides with delimiter %s", name, delim), nil)
	}
	return name + "<<" + delim + "\n" + value + "\n" + delim + "\n", nil
}

// WriteResult publishes changed then plugins.
func WriteResult(ctx context.Context, w *Writer, changed bool, pluginsJSON string) error {
	if err := w.SetOutput(OutputChanged, strconv.FormatBool(changed)); err != nil {
		return cerr.Wrap(err, "set output "+OutputChanged)
	}
	if err := w.SetOutput(OutputPlugins, pluginsJSON); err != nil {
		return cerr.Wrap(err, "set output "+OutputPlugins)
	}
	otelzap.Ctx(ctx).Debug("Outputs written",
		zap.Bool(OutputChanged, changed),
		zap.String(OutputPlugins, pluginsJSON),
		zap.String("file", w.File()))
	return nil
}

// Emit renders the result in mode. github mode goes through a Writer on out.
func Emit(ctx context.Context, out io.Writer, mode Mode, changed bool, pluginsJSON string) error {
	switch mode {
	case ModeGitHub, "":
		return WriteResult(ctx, NewWriter(out), changed, pluginsJSON)
	case ModeText:
		_, err := fmt.Fprintf(out, "%s=%t\n%s=%s\n", OutputChanged, changed, OutputPlugins, pluginsJSON)
		return err
	case ModeJSON:
		doc := struct {
			Changed bool            `json:"changed"`
			Plugins json.RawMessage `json:"plugins"`
		}{Changed: changed, Plugins: json.RawMessage(pluginsJSON)}
		enc := json.NewEncoder(out)
		if err := enc.Encode(doc); err != nil {
			return cerr.Wrap(err, "encode result")
		}
		return nil
	default:
		return cf_err.NewInternalError("unhandled output mode "+string(mode), nil)
	}
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
