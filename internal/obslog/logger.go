// Package obslog provides structured logging helpers for the agent.
//
// It wraps log/slog with trace ID propagation and secret redaction so that
// every log line is safe to ship to an external sink and carries the trace
// context for request correlation.
package obslog

import (
	"context"
	"log/slog"
	"os"

	"github.com/mbc-net/ai-support-agent/common/redact"
	"github.com/mbc-net/ai-support-agent/common/trace"
)

// Setup configures the global slog logger according to the provided level and
// format strings (e.g. level="info", format="json").
func Setup(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: redactAttr}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// redactAttr scrubs secret-shaped values out of string attributes before they
// reach the handler. It is installed as every handler's ReplaceAttr so that a
// call-site forgetting to redact manually does not leak a credential.
func redactAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(redact.Line(a.Value.String()))
	}
	return a
}

// WithTrace returns a child logger that always includes the trace_id from ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return slog.Default()
	}
	return slog.Default().With("trace_id", traceID)
}

// Project returns a child logger scoped to a project code, the common case
// for every log line emitted from within a project runtime.
func Project(ctx context.Context, projectCode string) *slog.Logger {
	return WithTrace(ctx).With("project", projectCode)
}
