package log

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Test returns a context whose logger writes to t.Log.
func Test(t testing.TB, opts ...zap.Option) context.Context {
	t.Helper()
	opts = append([]zap.Option{zap.Development()}, opts...)
	l := zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel), zaptest.WrapOptions(opts...))
	return withLogger(context.Background(), l)
}

// TestWithCapture returns a context whose logger records every entry, in addition to writing it
// to t.Log.  Use the returned ObservedLogs to make assertions about what was logged.
func TestWithCapture(t testing.TB, opts ...zap.Option) (context.Context, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tl := zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel))
	l := zap.New(zapcore.NewTee(core, tl.Core()), opts...)
	return withLogger(context.Background(), l), logs
}
