package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, nil),
	})
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentLedger)

	logger.Info("Expense created", FieldExpenseID, "abc")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") {
		t.Fatalf("missing component attr: %s", out)
	}
	if !strings.Contains(out, "expense_id=abc") {
		t.Fatalf("missing expense_id attr: %s", out)
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/budget", nil))

	if got != logger {
		t.Fatal("expected the middleware logger from the request context")
	}
}

func TestFromContextFallsBack(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected a usable fallback logger")
	}
}

func TestStructuredLoggerHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
	r := httptest.NewRequest(http.MethodPost, "/expenses", nil)

	sl.LogHTTPEnd(context.Background(), r, http.StatusInternalServerError, 12, "10.0.0.1")

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") {
		t.Fatalf("5xx should log at error level: %s", out)
	}
	if !strings.Contains(out, "status_code=500") {
		t.Fatalf("missing status code: %s", out)
	}
}
