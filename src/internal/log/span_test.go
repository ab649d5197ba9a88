package log

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestSpan(t *testing.T) {
	testData := []struct {
		name string
		f    func(ctx context.Context)
		want []string
	}{
		{
			name: "success",
			f: func(ctx context.Context) {
				defer Span(ctx, "x")()
				Debug(ctx, "running")
			},
			want: []string{"x: debug: x: span start", "debug: running", "x: debug: x: span finished ok"},
		},
		{
			name: "leveled failure",
			f: func(ctx context.Context) {
				end := SpanL(ctx, "x", DebugLevel)
				end(ErrorL(errors.New("boom"), ErrorLevel))
			},
			want: []string{"x: debug: x: span start", "x: error: x: span failed"},
		},
		{
			name: "errorp nil is success",
			f: func(ctx context.Context) {
				var err error
				func() {
					defer SpanL(ctx, "x", InfoLevel)(Errorp(&err))
				}()
			},
			want: []string{"x: info: x: span start", "x: info: x: span finished ok"},
		},
		{
			name: "errorp set later is failure",
			f: func(ctx context.Context) {
				func() (err error) {
					defer SpanL(ctx, "x", InfoLevel)(Errorp(&err))
					return errors.New("late")
				}() //nolint:errcheck
			},
			want: []string{"x: info: x: span start", "x: info: x: span failed"},
		},
		{
			name: "nested context",
			f: func(rctx context.Context) {
				ctx, end := SpanContextL(rctx, "a", InfoLevel, zap.String("k", "v"))
				Info(ctx, "inside")
				end()
			},
			want: []string{"a: info: a: span start", "a: info: inside", "a: info: a: span finished ok"},
		},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			ctx, h := TestWithCapture(t)
			test.f(ctx)
			if diff := cmp.Diff(test.want, simple(h)); diff != "" {
				t.Errorf("logs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSpanDuration(t *testing.T) {
	ctx, h := TestWithCapture(t)
	Span(ctx, "timed")()
	entries := h.FilterMessage("timed: span finished ok").All()
	if len(entries) != 1 {
		t.Fatalf("expected one end entry, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["spanDuration"]; !ok {
		t.Error("span end should carry spanDuration")
	}
}
