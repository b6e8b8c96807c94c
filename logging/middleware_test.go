package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func newCapturingLogger() (*slog.Logger, *strings.Builder) {
	var out strings.Builder
	return slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo})), &out
}

func serve(handler http.Handler, target string, requestID any) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if requestID != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, requestID))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestLoggingMiddlewareSkipsProbes(t *testing.T) {
	logger, out := newCapturingLogger()
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/health", "/metrics"} {
		out.Reset()
		if rr := serve(handler, path, "req-1"); rr.Code != http.StatusOK {
			t.Errorf("Expected status 200 for %s, got %d", path, rr.Code)
		}
		if out.Len() != 0 {
			t.Errorf("Expected no log line for %s, got: %s", path, out.String())
		}
	}
}

func TestLoggingMiddlewareLogsRequests(t *testing.T) {
	logger, out := newCapturingLogger()
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))

	serve(handler, "/api/similar-medicines?name=nope", "req-42")
	logs := out.String()

	for _, want := range []string{
		"HTTP request",
		"request_id=req-42",
		"path=/api/similar-medicines",
		"query=name=nope",
		"status_code=404",
		"bytes_written=7",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("Expected log to contain %q, got: %s", want, logs)
		}
	}
}

func TestLoggingMiddlewareRequestIDFallback(t *testing.T) {
	logger, out := newCapturingLogger()
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve(handler, "/api/stats", 12345)
	if !strings.Contains(out.String(), "request_id=unknown") {
		t.Errorf("Expected request_id=unknown for a non-string ID, got: %s", out.String())
	}

	out.Reset()
	serve(handler, "/api/stats", nil)
	if strings.Contains(out.String(), "query=") {
		t.Errorf("Expected no query field without a query string, got: %s", out.String())
	}
}

func TestLoggingMiddlewareServerErrorsAtErrorLevel(t *testing.T) {
	logger, out := newCapturingLogger()
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	serve(handler, "/api/search/ingredient?q=x", "req-9")
	if !strings.Contains(out.String(), "level=ERROR") {
		t.Errorf("Expected an error-level line for a 500, got: %s", out.String())
	}
}

func TestStatusRecorderReuse(t *testing.T) {
	rec := &statusRecorder{}
	first := httptest.NewRecorder()
	rec.reset(first)
	rec.WriteHeader(http.StatusTeapot)
	rec.Write([]byte("abc"))

	rec.reset(httptest.NewRecorder())
	if rec.status != http.StatusOK || rec.written != 0 {
		t.Errorf("Expected a reset recorder, got status %d and %d bytes", rec.status, rec.written)
	}
	if first.Code != http.StatusTeapot || first.Body.String() != "abc" {
		t.Errorf("Expected writes to reach the wrapped writer, got %d %q", first.Code, first.Body.String())
	}
}
