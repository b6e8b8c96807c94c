package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/data"
	"github.com/giygas/medfinder-api/health"
	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/interfaces"
	"github.com/giygas/medfinder-api/search"
	"github.com/giygas/medfinder-api/validation"
	"github.com/go-chi/chi/v5"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

func price(v float64) *float64 {
	return &v
}

// testCatalog is a small pharmacy with one duplicated name (Panadol CF)
// and one unpriced product.
func testCatalog() []entities.Product {
	products := []entities.Product{
		{Name: "Panadol CF", Brand: "GSK", RawComposition: "Paracetamol (500mg)", Price: price(0.99), Categories: []string{"Pain Relief"}},
		{Name: "Anapyrin", Brand: "Specific", RawComposition: "Paracetamol (500mg)", Price: price(0.24), Categories: []string{"Fever"}},
		{Name: "Febrol", Brand: "Pharmevo", RawComposition: "Paracetamol (500mg)", Price: price(1.5)},
		{Name: "Panadol CF", Brand: "Haleon", RawComposition: "Paracetamol (500mg)", Price: price(1.1)},
		{Name: "Panadol Extra", Brand: "GSK", RawComposition: "Paracetamol (500mg) + Caffeine (65mg)", Price: price(1.2), Categories: []string{"Pain Relief"}},
		{Name: "Saridon", Brand: "Bayer", RawComposition: "Caffeine (65mg) + Paracetamol (500mg)", Price: price(0.7)},
		{Name: "Brufen", Brand: "Abbott", RawComposition: "Ibuprofen (400mg)", Price: price(2)},
		{Name: "Tylenol", Brand: "J&J", RawComposition: "Paracetamol (650mg)"},
	}
	for i := range products {
		products[i].ID = i
		if products[i].Categories == nil {
			products[i].Categories = []string{}
		}
	}
	return products
}

// newTestDataStore returns a container serving products
func newTestDataStore(t testing.TB, products []entities.Product) *data.DataContainer {
	t.Helper()

	settings := search.DefaultSettings()
	settings.CacheMaxEntries = 0
	engine, err := search.NewEngine(index.Build(products, index.Options{Workers: 2}), settings)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	dc := data.NewDataContainer()
	dc.SetServerStartTime(time.Now().Add(-90 * time.Minute))
	dc.UpdateData(engine,
		&entities.LoadReport{Source: "test", Records: len(products), Loaded: len(products)},
		&interfaces.DataQualityReport{DuplicateNames: []string{"panadol cf"}, DuplicateNameCount: 1},
	)
	t.Cleanup(func() {
		if e := dc.GetEngine(); e != nil {
			e.Close()
		}
	})
	return dc
}

// newTestHandler wires a handler over the test catalog
func newTestHandler(t testing.TB) (*HTTPHandlerImpl, *data.DataContainer) {
	t.Helper()
	dc := newTestDataStore(t, testCatalog())
	return handlerFor(dc), dc
}

func handlerFor(store interfaces.DataStore) *HTTPHandlerImpl {
	h := NewHTTPHandler(store, validation.NewDataValidator(), health.NewHealthChecker(store, 15*time.Minute))
	return h.(*HTTPHandlerImpl)
}

// ============================================================================
// REQUEST HELPERS
// ============================================================================

func doRequest(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// doRouted serves target through a chi router so URL params resolve
func doRouted(pattern string, handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get(pattern, handler)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Fatalf("Expected status %d, got %d: %s", expected, rr.Code, rr.Body.String())
	}
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assertStatus(t, rr, expected)

	body := decode[map[string]any](t, rr)
	if body["error"] != http.StatusText(expected) {
		t.Errorf("Expected error %q, got %v", http.StatusText(expected), body["error"])
	}
	if code, ok := body["code"].(float64); !ok || int(code) != expected {
		t.Errorf("Expected code %d, got %v", expected, body["code"])
	}
	if msg, _ := body["message"].(string); msg == "" {
		t.Error("Expected a non-empty message")
	}
}

func productNames(products []entities.Product) []string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	return names
}
