// pkg/cf_io/context.go

package cf_io

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RuntimeContext carries everything a command needs for one invocation.
type RuntimeContext struct {
	Ctx        context.Context
	Log        *zap.Logger
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Attributes map[string]string
}

// NewContext starts the command span and scopes the global logger to it.
func NewContext(parent context.Context, cmdName string) *RuntimeContext {
	if parent == nil {
		parent = context.Background()
	}
	ctx, span := telemetry.Start(parent, cmdName)

	log := logger.L().With(zap.String("command", cmdName))
	if sc := span.SpanContext(); sc.HasTraceID() {
		log = log.With(zap.String("trace_id", sc.TraceID().String()))
	}

	return &RuntimeContext{
		Ctx:        ctx,
		Log:        log,
		Timestamp:  time.Now(),
		Span:       span,
		Command:    cmdName,
		Attributes: make(map[string]string),
	}
}

// HandlePanic recovers panics, logs them, and converts them to an internal
// error. It must be deferred directly.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cf_err.NewInternalError("panic recovered", cerr.AssertionFailedf("panic: %v", r))
		rc.Log.Error("Panic recovered", zap.Any("panic", r))
	}
}

// End logs the outcome, records it on the span, and ends the span.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	var err error
	if errPtr != nil {
		err = *errPtr
	}
	duration := time.Since(rc.Timestamp)

	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	}
	for k, v := range rc.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	switch {
	case err == nil:
		rc.Log.Info("Command completed", zap.Duration("duration", duration))
	case cf_err.IsExpectedUserError(err):
		rc.Log.Warn("Command failed on user input", zap.Duration("duration", duration), zap.Error(err))
		attrs = append(attrs, attribute.String("error_type", "user"))
	default:
		rc.Log.Error("Command failed", zap.Duration("duration", duration), zap.Error(err))
		attrs = append(attrs, attribute.String("error_type", cf_err.CategoryOf(err).String()))
	}

	rc.Span.SetAttributes(attrs...)
	if err != nil {
		rc.Span.RecordError(err)
		rc.Span.SetStatus(codes.Error, err.Error())
	}
}
