package log

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the level at which a span is logged.
type Level int

const (
	DebugLevel Level = iota + 1
	InfoLevel
	ErrorLevel
)

func (l Level) coreLevel() zapcore.Level {
	switch l {
	case InfoLevel:
		return zapcore.InfoLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

// EndSpanFunc ends a span.  Pass ErrorL/Errorp/zap.Error fields to mark the span as failed.
type EndSpanFunc = func(fields ...Field)

// errorpType marks a Field created by Errorp; it is resolved when the span ends.
const errorpType = zapcore.InlineMarshalerType + 100

// ErrorL marks a span as failed and logs its end at the provided level.
func ErrorL(err error, level Level) Field {
	if err == nil {
		return zap.Skip()
	}
	f := zap.Error(err)
	f.Integer = int64(level)
	return f
}

// Errorp marks a span as failed if *err is non-nil when the span ends.  It is meant for
// `defer end(log.Errorp(&retErr))`.
func Errorp(err *error) Field {
	return zapcore.Field{Key: "error", Type: errorpType, Interface: err}
}

// ErrorpL is Errorp with an explicit level for the failure case.
func ErrorpL(err *error, level Level) Field {
	f := Errorp(err)
	f.Integer = int64(level)
	return f
}

func endSpan(l *zap.Logger, event string, level Level, start time.Time) EndSpanFunc {
	return func(raw ...Field) {
		status := "span finished ok"
		fields := []Field{zap.Duration("spanDuration", time.Since(start))}
		for _, f := range raw {
			switch {
			case f.Type == errorpType:
				errp, _ := f.Interface.(*error)
				if errp == nil || *errp == nil {
					continue
				}
				status = "span failed"
				if f.Integer > 0 {
					level = Level(f.Integer)
				}
				fields = append(fields, zap.Error(*errp))
			case f.Type == zapcore.ErrorType:
				status = "span failed"
				if f.Integer > 0 {
					level = Level(f.Integer)
				}
				fields = append(fields, f)
			default:
				fields = append(fields, f)
			}
		}
		if ce := l.Check(level.coreLevel(), event+": "+status); ce != nil {
			ce.Write(fields...)
		}
	}
}

// SpanContextL starts a span: it logs the start of event, and returns a context whose logger is
// named after the event along with a function that logs the end and the span's duration.
func SpanContextL(rctx context.Context, event string, level Level, fields ...Field) (context.Context, EndSpanFunc) {
	l := extractLogger(rctx).Named(event).With(fields...)
	if ce := l.Check(level.coreLevel(), event+": span start"); ce != nil {
		ce.Write()
	}
	return withLogger(rctx, l), endSpan(l, event, level, time.Now())
}

// SpanContext is SpanContextL at level debug.
func SpanContext(rctx context.Context, event string, fields ...Field) (context.Context, EndSpanFunc) {
	return SpanContextL(rctx, event, DebugLevel, fields...)
}

// SpanL starts a span without returning a scoped context.
func SpanL(ctx context.Context, event string, level Level, fields ...Field) EndSpanFunc {
	_, end := SpanContextL(ctx, event, level, fields...)
	return end
}

// Span is SpanL at level debug.
func Span(ctx context.Context, event string, fields ...Field) EndSpanFunc {
	_, end := SpanContextL(ctx, event, DebugLevel, fields...)
	return end
}
