// Package logger wraps log/slog with the request, template and workspace
// fields stencil attaches to every record about an import.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"
	// TemplateIDKey is the context key for the catalog template being handled.
	TemplateIDKey contextKey = "template_id"
	// WorkspaceIDKey is the context key for the destination workspace.
	WorkspaceIDKey contextKey = "workspace_id"
)

// contextKeys are copied from a context onto records, in this order.
var contextKeys = []contextKey{RequestIDKey, TemplateIDKey, WorkspaceIDKey}

// Logger is a slog.Logger with context-aware helpers.
type Logger struct {
	*slog.Logger
}

// Config selects the level, encoding and destination of records.
type Config struct {
	// Level is one of debug, info, warn, error. Anything else means info.
	Level string
	// Format is json (default) or text.
	Format    string
	Output    io.Writer
	AddSource bool
	// ServiceName is attached to every record as "service".
	ServiceName string
}

// DefaultConfig logs JSON at info level to stdout.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stdout, ServiceName: "stencil"}
}

// New creates a Logger from cfg. Timestamps are written in UTC.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: utcTime,
	}

	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}

	l := slog.New(h)
	if cfg.ServiceName != "" {
		l = l.With("service", cfg.ServiceName)
	}
	return &Logger{Logger: l}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey || a.Value.Kind() != slog.KindTime {
		return a
	}
	return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
}

// NewDefault creates a Logger with DefaultConfig.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Discard drops everything below error and writes nothing.
func Discard() *Logger {
	return New(Config{Output: io.Discard, Level: "error"})
}

// WithComponent tags records with the emitting component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With("component", component)}
}

// WithFields attaches fields to every record.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// FromContext attaches the request, template and workspace IDs found in ctx.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	var args []any
	for _, key := range contextKeys {
		if v, _ := ctx.Value(key).(string); v != "" {
			args = append(args, string(key), v)
		}
	}
	if len(args) == 0 {
		return l
	}
	return &Logger{Logger: l.With(args...)}
}

// LogError logs err at error level with the context IDs and the caller's
// file and line under "source". A nil err logs nothing.
func (l *Logger) LogError(ctx context.Context, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	if _, file, line, ok := runtime.Caller(1); ok {
		args = append(args, slog.Group("source", "file", file, "line", line))
	}
	args = append(args, "error", err.Error())
	l.FromContext(ctx).Error(msg, args...)
}

// LogFatal logs at error level and exits with status 1.
func (l *Logger) LogFatal(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.Error(msg, args...)
	os.Exit(1)
}

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithTemplate stores the template and destination workspace in ctx.
// An empty workspaceID is not stored.
func ContextWithTemplate(ctx context.Context, templateID, workspaceID string) context.Context {
	ctx = context.WithValue(ctx, TemplateIDKey, templateID)
	if workspaceID == "" {
		return ctx
	}
	return context.WithValue(ctx, WorkspaceIDKey, workspaceID)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "warning":
		return slog.LevelWarn
	case "debug", "info", "warn", "error":
		_ = l.UnmarshalText([]byte(s))
		return l
	default:
		return slog.LevelInfo
	}
}
