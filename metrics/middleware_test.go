package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, method, path, status string) float64 {
	t.Helper()
	var m dto.Metric
	if err := HTTPRequestTotals.WithLabelValues(method, path, status).Write(&m); err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/medicine/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := counterValue(t, "GET", "/api/medicine/{name}", "404")

	for _, name := range []string{"doliprane", "nurofen"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/medicine/"+name, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rr.Code)
		}
	}

	if got := counterValue(t, "GET", "/api/medicine/{name}", "404") - before; got != 2 {
		t.Errorf("Expected 2 requests counted under the route pattern, got %v", got)
	}
}

func TestMetricsWithoutRouter(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	before := counterValue(t, "GET", unmatchedRoute, "200")
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))

	if got := counterValue(t, "GET", unmatchedRoute, "200") - before; got != 1 {
		t.Errorf("Expected 1 unmatched request, got %v", got)
	}
}

func TestMetricsInFlightReturnsToZero(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m dto.Metric
		HTTPRequestInFlight.Write(&m)
		if m.GetGauge().GetValue() < 1 {
			t.Error("Expected at least one in-flight request during the handler")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var m dto.Metric
	HTTPRequestInFlight.Write(&m)
	if m.GetGauge().GetValue() != 0 {
		t.Errorf("Expected no in-flight requests after the handler, got %v", m.GetGauge().GetValue())
	}
}
