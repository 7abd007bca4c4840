package contextutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LoggerFromContext(ctx); got != slog.Default() {
		t.Error("LoggerFromContext() without logger should return slog.Default()")
	}

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx = WithLogger(ctx, l)
	if got := LoggerFromContext(ctx); got != l {
		t.Error("LoggerFromContext() should return the attached logger")
	}
}

func TestRequestAndUserID(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" {
		t.Error("RequestIDFromContext() on empty context should be empty")
	}
	if _, ok := UserIDFromContext(ctx); ok {
		t.Error("UserIDFromContext() on empty context should report false")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q, want req-1", got)
	}
	if got, ok := UserIDFromContext(ctx); !ok || got != "user-1" {
		t.Errorf("UserIDFromContext() = %q, %v, want user-1, true", got, ok)
	}
	if _, ok := UserIDFromContext(WithUserID(context.Background(), "")); ok {
		t.Error("empty user id should not count as authenticated")
	}
}
