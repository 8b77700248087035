/* pkg/logger/logger.go */

// Package logger owns the process-wide zap logger.
//
// Logs always go to stderr: stdout carries the workflow outputs when no
// GITHUB_OUTPUT file is available, and the two must never interleave.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var (
	mu  sync.Mutex
	log *zap.Logger
)

// New builds a console logger writing to w at the given level. Levels are
// coloured when w is a terminal.
func New(w io.Writer, level string) *zap.Logger {
	encCfg := DefaultConsoleEncoderConfig()
	if isTerminal(w) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		ParseLogLevel(level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Initialize installs a stderr logger as the zap and otelzap globals.
// An empty level falls back to LOG_LEVEL.
func Initialize(level string) *zap.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	l := New(os.Stderr, level)
	SetLogger(l)
	return l
}

// SetLogger replaces the global loggers. Used by Initialize and by tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	log = l
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// L returns the global logger, initializing a default one on first use.
func L() *zap.Logger {
	mu.Lock()
	l := log
	mu.Unlock()

	if l == nil {
		return Initialize("")
	}
	return l
}

// Sync flushes any buffered log entries. Should be called before the application exits.
func Sync() error {
	mu.Lock()
	l := log
	mu.Unlock()

	if l == nil {
		return nil
	}
	return l.Sync()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
