package log

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func simple(logs *observer.ObservedLogs) []string {
	var result []string
	for _, e := range logs.AllUntimed() {
		s := e.Level.String() + ": " + e.Message
		if e.LoggerName != "" {
			s = e.LoggerName + ": " + s
		}
		result = append(result, s)
	}
	return result
}

func TestBasics(t *testing.T) {
	ctx, h := TestWithCapture(t)
	Debug(ctx, "hello")
	Info(ctx, "hello")
	Error(ctx, "hello")
	want := []string{"debug: hello", "info: hello", "error: hello"}
	if diff := cmp.Diff(want, simple(h)); diff != "" {
		t.Errorf("logs (-want +got):\n%s", diff)
	}
}

func TestChildLogger(t *testing.T) {
	ctx, h := TestWithCapture(t)
	child := ChildLogger(ctx, "worker", WithFields(zap.Int("n", 3)))
	Info(child, "started")
	entries := h.AllUntimed()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if got, want := entries[0].LoggerName, "worker"; got != want {
		t.Errorf("logger name: got %q want %q", got, want)
	}
	if got := entries[0].ContextMap()["n"]; got != int64(3) {
		t.Errorf("field n: got %v want 3", got)
	}
}

func TestEmptyContextDoesNotPanicInProduction(t *testing.T) {
	undo := zap.ReplaceGlobals(zap.NewNop())
	defer undo()
	Debug(context.Background(), "no logger here")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"": "info", "DEBUG": "debug", "warning": "warn", "error": "error"} {
		l, err := parseLevel(in)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", in, err)
		}
		if got := l.Level().String(); got != want {
			t.Errorf("parseLevel(%q): got %v want %v", in, got, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestInitLoggerRejectsUnknownFormat(t *testing.T) {
	if _, err := InitLogger(Config{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
