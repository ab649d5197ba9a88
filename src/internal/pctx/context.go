package pctx

import (
	"context"
	"testing"

	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"go.uber.org/zap"
)

// Background returns a root context for a long-running process.
func Background(process string) context.Context {
	ctx := log.AddLogger(context.Background())
	return Child(ctx, process)
}

// TestContext returns a context for a test; logs go to t.Log and the context is canceled when
// the test ends.
func TestContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(log.Test(t))
	t.Cleanup(cancel)
	return ctx
}

// Option customizes a child context.
type Option struct {
	modifyContext func(context.Context) context.Context
	modifyLogger  log.LogOption
}

// WithFields adds fields to every log line produced with the child.
func WithFields(fields ...zap.Field) Option {
	return Option{modifyLogger: log.WithFields(fields...)}
}

// WithOptions applies zap options to the child's logger.
func WithOptions(opts ...zap.Option) Option {
	return Option{modifyLogger: log.WithOptions(opts...)}
}

// WithCancel makes the child cancelable independently of its parent; call Cancel on the
// returned handle to cancel it.
func WithCancel(h *CancelHandle) Option {
	return Option{modifyContext: func(ctx context.Context) context.Context {
		ctx, h.cancel = context.WithCancel(ctx)
		return ctx
	}}
}

// CancelHandle cancels a context created with WithCancel.
type CancelHandle struct {
	cancel context.CancelFunc
}

// Cancel cancels the child context.  It is safe to call on a handle that was never used.
func (h *CancelHandle) Cancel() {
	if h != nil && h.cancel != nil {
		h.cancel()
	}
}

// Child returns a named child of ctx.  The name can be empty.
func Child(ctx context.Context, name string, opts ...Option) context.Context {
	var logOptions []log.LogOption
	for _, opt := range opts {
		if o := opt.modifyLogger; o != nil {
			logOptions = append(logOptions, o)
		}
		if o := opt.modifyContext; o != nil {
			ctx = o(ctx)
		}
	}
	return log.ChildLogger(ctx, name, logOptions...)
}
