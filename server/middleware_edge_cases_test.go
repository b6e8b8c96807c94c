package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/giygas/medfinder-api/config"
)

// ============================================================================
// EDGE CASE TESTS FOR MIDDLEWARE
// ============================================================================

// captureRemoteAddr runs RealIPMiddleware and returns the RemoteAddr the next handler saw
func captureRemoteAddr(req *http.Request) string {
	var seen string
	handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"single forwarded IP", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "203.0.113.1"},
		{"forwarded chain keeps the client", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.1"}, "203.0.113.1"},
		{"real IP header", "192.168.1.1:12345", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"forwarded wins over real IP", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "203.0.113.7"}, "203.0.113.1"},
		{"no proxy strips the port", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"no proxy IPv6", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"no port left as is", "192.168.1.1", nil, "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := captureRemoteAddr(req); got != tt.expected {
				t.Errorf("Expected RemoteAddr %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   int
	}{
		{"localhost IPv4", "127.0.0.1:12345", nil, http.StatusOK},
		{"localhost IPv6", "[::1]:12345", nil, http.StatusOK},
		{"localhost without port", "localhost", nil, http.StatusOK},
		{"direct IP", "192.168.1.1:12345", nil, http.StatusForbidden},
		{"proxied with X-Forwarded-For", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1"}, http.StatusOK},
		{"proxied with X-Real-IP", "192.168.1.1:12345", map[string]string{"X-Real-IP": "203.0.113.1"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rr := httptest.NewRecorder()
			BlockDirectAccessMiddleware(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := config.Config{MaxRequestBody: 1024 * 1024, MaxHeaderSize: 1024}

	tests := []struct {
		name          string
		contentLength string
		extraHeader   int
		expected      int
	}{
		{"no content length", "", 0, http.StatusOK},
		{"exactly max size", "1048576", 0, http.StatusOK},
		{"exceeds max size", "2000000", 0, http.StatusRequestEntityTooLarge},
		{"negative content length ignored", "-100", 0, http.StatusOK},
		{"content length not a number", "lots", 0, http.StatusOK},
		{"headers too large", "", 2048, http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.contentLength != "" {
				req.Header.Set("Content-Length", tt.contentLength)
			}
			if tt.extraHeader > 0 {
				req.Header.Set("X-Padding", strings.Repeat("a", tt.extraHeader))
			}

			rr := httptest.NewRecorder()
			RequestSizeMiddleware(&cfg)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
			if tt.expected != http.StatusOK && !strings.Contains(rr.Body.String(), "too large") {
				t.Errorf("Expected an explanation in the body, got %s", rr.Body.String())
			}
		})
	}
}

func TestRequestSizeMiddlewareLimitsBodyReads(t *testing.T) {
	cfg := config.Config{MaxRequestBody: 16, MaxHeaderSize: 1024}

	req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1 // unknown length, as with chunked uploads
	req.Header.Del("Content-Length")

	var readErr error
	handler := RequestSizeMiddleware(&cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 128)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if readErr == nil || readErr.Error() != "http: request body too large" {
		t.Errorf("Expected the body read to be capped, got %v", readErr)
	}
}
