// Package log carries a *zap.Logger through a context.Context.
//
// Every function that logs takes a context; the logger inside it is scoped to the current
// operation (with Named and With fields added by pctx.Child or a Span).  Code that logs with a
// context that has no logger falls back to the global logger and emits a DPanic, so that the
// mistake is visible in development builds.
package log

import (
	"context"
	stdlog "log"
	"os"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a typed log field.
type Field = zap.Field

type loggerKey struct{}

// LogOption modifies a child logger.
type LogOption func(l *zap.Logger) *zap.Logger

// WithFields adds fields to every line logged by the child.
func WithFields(fields ...Field) LogOption {
	return func(l *zap.Logger) *zap.Logger { return l.With(fields...) }
}

// WithOptions applies zap options to the child.
func WithOptions(opts ...zap.Option) LogOption {
	return func(l *zap.Logger) *zap.Logger { return l.WithOptions(opts...) }
}

func withLogger(ctx context.Context, l *zap.Logger) context.Context {
	if l == nil {
		zap.L().DPanic("log: internal error: nil logger provided to withLogger", zap.Stack("stack"))
		l = zap.L()
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

func extractLogger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		zap.L().WithOptions(zap.AddCallerSkip(2)).DPanic("log: internal error: nil context provided to ExtractLogger")
		return zap.L()
	}
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	zap.L().WithOptions(zap.AddCallerSkip(2)).DPanic("log: internal error: no logger in provided context")
	return zap.L()
}

// AddLogger attaches the global logger to ctx.  Only entry points (main, tests) should need this;
// everything else derives its context from one that already has a logger.
func AddLogger(ctx context.Context) context.Context {
	return withLogger(ctx, zap.L())
}

// ChildLogger returns a context whose logger is named name beneath the parent's logger.
func ChildLogger(ctx context.Context, name string, opts ...LogOption) context.Context {
	l := extractLogger(ctx)
	if name != "" {
		l = l.Named(name)
	}
	for _, opt := range opts {
		l = opt(l)
	}
	return withLogger(ctx, l)
}

// Debug logs at level debug.
func Debug(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info logs at level info.
func Info(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Error logs at level error.  Errors that the program handles should be logged at Info.
func Error(ctx context.Context, msg string, fields ...Field) {
	extractLogger(ctx).WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Config controls the process-wide logger.
type Config struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// InitLogger builds the global logger from cfg, redirects the standard library logger into it,
// and returns a function that flushes and restores the previous globals.
func InitLogger(cfg Config) (func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	switch cfg.Format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(jsonEncoder)
	case "console", "text":
		enc = zapcore.NewConsoleEncoder(consoleEncoder)
	default:
		return nil, errors.Errorf("unknown log format %q; want json or console", cfg.Format)
	}
	l := zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level), zap.AddCaller())
	undoGlobals := zap.ReplaceGlobals(l)
	undoStd := zap.RedirectStdLog(l)
	return func() {
		_ = l.Sync()
		undoStd()
		undoGlobals()
	}, nil
}

// StdLogger returns a *log.Logger that writes to the logger in ctx at the provided level, for
// libraries that insist on one.
func StdLogger(ctx context.Context, level Level) *stdlog.Logger {
	l, err := zap.NewStdLogAt(extractLogger(ctx), level.coreLevel())
	if err != nil {
		return zap.NewStdLog(extractLogger(ctx))
	}
	return l
}
