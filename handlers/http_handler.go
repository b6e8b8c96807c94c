package handlers

import (
	"math"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/interfaces"
	"github.com/giygas/medfinder-api/logging"
	"github.com/giygas/medfinder-api/search"
	"github.com/go-chi/chi/v5"
)

const (
	defaultLimit             = 20
	maxLimit                 = 100
	defaultAutocompleteLimit = 10
	maxAutocompleteLimit     = 50
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore interfaces.DataStore
	validator interfaces.DataValidator
	health    interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, health interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore: dataStore,
		validator: validator,
		health:    health,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// StatsResponse is the /api/stats payload
type StatsResponse struct {
	search.CatalogStats
	LoadReport  any    `json:"load_report"`
	DataQuality any    `json:"data_quality"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// DosagesResponse lists the dosages sold for an ingredient
type DosagesResponse struct {
	Ingredient string   `json:"ingredient"`
	Dosages    []string `json:"dosages"`
	Count      int      `json:"count"`
}

// BrandSuggestions lists brands matching a prefix
type BrandSuggestions struct {
	Query  string   `json:"query"`
	Brands []string `json:"brands"`
	Count  int      `json:"count"`
}

// MedicineResponse lists the products found for a name
type MedicineResponse struct {
	Query   string             `json:"query"`
	Results []entities.Product `json:"results"`
	Count   int                `json:"count"`
}

// requiredParam reads and validates a mandatory query parameter
func (h *HTTPHandlerImpl) requiredParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing query parameter: "+name)
		return "", false
	}
	if err := h.validator.ValidateInput(value); err != nil {
		logging.Warn("Unusual user input", "param", name, "value", value, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return value, true
}

// optionalParam validates a parameter only when present
func (h *HTTPHandlerImpl) optionalParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return "", true
	}
	if err := h.validator.ValidateInput(value); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid "+name+": "+err.Error())
		return "", false
	}
	return value, true
}

func (h *HTTPHandlerImpl) limitParam(w http.ResponseWriter, r *http.Request, def, max int) (int, bool) {
	limit, err := h.validator.ValidateLimit(r.URL.Query().Get("limit"), def, max)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return limit, true
}

func priceParam(w http.ResponseWriter, r *http.Request, name string) (*float64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		RespondWithError(w, http.StatusBadRequest, "Invalid "+name+": must be a non-negative number")
		return nil, false
	}
	return &v, true
}

// SearchByIngredient handles GET /api/search/ingredient?q=&dosage=&limit=
func (h *HTTPHandlerImpl) SearchByIngredient(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requiredParam(w, r, "q")
	if !ok {
		return
	}
	dosage, ok := h.optionalParam(w, r, "dosage")
	if !ok {
		return
	}
	limit, ok := h.limitParam(w, r, defaultLimit, maxLimit)
	if !ok {
		return
	}

	result, err := h.dataStore.GetEngine().SearchByIngredient(q, dosage, limit)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// SearchByComposition handles GET /api/search/composition?q=&exact=&dosage=&limit=
func (h *HTTPHandlerImpl) SearchByComposition(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requiredParam(w, r, "q")
	if !ok {
		return
	}
	dosage, ok := h.optionalParam(w, r, "dosage")
	if !ok {
		return
	}
	limit, ok := h.limitParam(w, r, defaultLimit, maxLimit)
	if !ok {
		return
	}

	exact := false
	if raw := r.URL.Query().Get("exact"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid exact: must be true or false")
			return
		}
		exact = parsed
	}

	result, err := h.dataStore.GetEngine().SearchByComposition(q, exact, dosage, limit)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// SearchByCategory handles GET /api/search/category?q=&formula=&limit=
func (h *HTTPHandlerImpl) SearchByCategory(w http.ResponseWriter, r *http.Request) {
	h.filteredSearch(w, r, h.dataStore.GetEngine().SearchByCategory)
}

// SearchByBrand handles GET /api/search/brand?q=&formula=&limit=
func (h *HTTPHandlerImpl) SearchByBrand(w http.ResponseWriter, r *http.Request) {
	h.filteredSearch(w, r, h.dataStore.GetEngine().SearchByBrand)
}

func (h *HTTPHandlerImpl) filteredSearch(w http.ResponseWriter, r *http.Request, find func(q, formula string, max int) (search.ProductList, error)) {
	q, ok := h.requiredParam(w, r, "q")
	if !ok {
		return
	}
	formula, ok := h.optionalParam(w, r, "formula")
	if !ok {
		return
	}
	limit, ok := h.limitParam(w, r, defaultLimit, maxLimit)
	if !ok {
		return
	}

	result, err := find(q, formula, limit)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// AvailableDosages handles GET /api/dosages?ingredient=
func (h *HTTPHandlerImpl) AvailableDosages(w http.ResponseWriter, r *http.Request) {
	ingredient, ok := h.requiredParam(w, r, "ingredient")
	if !ok {
		return
	}

	dosages, err := h.dataStore.GetEngine().AvailableDosages(ingredient)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, DosagesResponse{Ingredient: ingredient, Dosages: dosages, Count: len(dosages)})
}

// shortPrefix reports input too short for autocomplete; those get an empty
// answer instead of a validation error, since they arrive on every keystroke.
func shortPrefix(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) < search.MinQueryLength
}

// Autocomplete handles GET /api/autocomplete?q=&limit=
func (h *HTTPHandlerImpl) Autocomplete(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limitParam(w, r, defaultAutocompleteLimit, maxAutocompleteLimit)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if shortPrefix(q) {
		RespondWithJSON(w, http.StatusOK, h.dataStore.GetEngine().Autocomplete(q, limit))
		return
	}
	if q, ok = h.requiredParam(w, r, "q"); !ok {
		return
	}

	RespondWithJSON(w, http.StatusOK, h.dataStore.GetEngine().Autocomplete(q, limit))
}

// AutocompleteBrand handles GET /api/autocomplete/brands?q=&limit=
func (h *HTTPHandlerImpl) AutocompleteBrand(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limitParam(w, r, defaultAutocompleteLimit, maxAutocompleteLimit)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if !shortPrefix(q) {
		if q, ok = h.requiredParam(w, r, "q"); !ok {
			return
		}
	}

	brands := h.dataStore.GetEngine().AutocompleteBrand(q, limit)
	RespondWithJSON(w, http.StatusOK, BrandSuggestions{Query: q, Brands: brands, Count: len(brands)})
}

// FuzzySearch handles GET /api/search/fuzzy?q=&limit=
func (h *HTTPHandlerImpl) FuzzySearch(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requiredParam(w, r, "q")
	if !ok {
		return
	}
	limit, ok := h.limitParam(w, r, defaultLimit, maxLimit)
	if !ok {
		return
	}

	result, err := h.dataStore.GetEngine().FuzzySearch(q, limit)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// MultiFieldSearch handles GET /api/search/multi?q=&limit=
func (h *HTTPHandlerImpl) MultiFieldSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requiredParam(w, r, "q")
	if !ok {
		return
	}
	limit, ok := h.limitParam(w, r, defaultLimit, maxLimit)
	if !ok {
		return
	}

	result, err := h.dataStore.GetEngine().MultiFieldSearch(q, limit)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// SimilarMedicines handles GET /api/similar-medicines?name=&brand=&min_price=&max_price=&preferred_brands=&limit=
//
// brand disambiguates a duplicated name; a price range or a preferred brand
// list narrows the alternatives. Price range and preferred brands are
// mutually exclusive.
func (h *HTTPHandlerImpl) SimilarMedicines(w http.ResponseWriter, r *http.Request) {
	name, ok := h.requiredParam(w, r, "name")
	if !ok {
		return
	}
	brand, ok := h.optionalParam(w, r, "brand")
	if !ok {
		return
	}
	limit, ok := h.limitParam(w, r, defaultLimit, maxLimit)
	if !ok {
		return
	}
	minPrice, ok := priceParam(w, r, "min_price")
	if !ok {
		return
	}
	maxPrice, ok := priceParam(w, r, "max_price")
	if !ok {
		return
	}
	preferred, ok := h.optionalParam(w, r, "preferred_brands")
	if !ok {
		return
	}

	engine := h.dataStore.GetEngine()

	var (
		result search.AlternativesResult
		err    error
	)
	switch {
	case (minPrice != nil || maxPrice != nil) && preferred != "":
		RespondWithError(w, http.StatusBadRequest, "Use either a price range or preferred_brands, not both")
		return
	case brand != "" && (minPrice != nil || maxPrice != nil || preferred != ""):
		RespondWithError(w, http.StatusBadRequest, "brand cannot be combined with a price range or preferred_brands")
		return
	case minPrice != nil && maxPrice != nil && *minPrice > *maxPrice:
		RespondWithError(w, http.StatusBadRequest, "min_price must not exceed max_price")
		return
	case brand != "":
		result, err = engine.GetAlternativesByBrand(name, brand, limit)
	case minPrice != nil || maxPrice != nil:
		result, err = engine.AlternativesInPriceRange(name, minPrice, maxPrice, limit)
	case preferred != "":
		result, err = engine.BrandAlternatives(name, splitList(preferred), limit)
	default:
		result, err = engine.GetAlternatives(name, limit)
	}
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// CompareMedicines handles GET /api/similar-medicines/compare?a=&b=
func (h *HTTPHandlerImpl) CompareMedicines(w http.ResponseWriter, r *http.Request) {
	a, ok := h.requiredParam(w, r, "a")
	if !ok {
		return
	}
	b, ok := h.requiredParam(w, r, "b")
	if !ok {
		return
	}

	result, err := h.dataStore.GetEngine().CompareMedicines(a, b)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// FindMedicine handles GET /api/medicine/{name}
func (h *HTTPHandlerImpl) FindMedicine(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing medicine name")
		return
	}
	if err := h.validator.ValidateInput(name); err != nil {
		logging.Warn("Unusual user input", "name", name, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.dataStore.GetEngine().FindMedicine(name)
	if err != nil {
		respondWithSearchError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, MedicineResponse{Query: name, Results: products, Count: len(products)})
}

// Stats handles GET /api/stats
func (h *HTTPHandlerImpl) Stats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		CatalogStats: h.dataStore.GetEngine().Stats(),
		LoadReport:   h.dataStore.GetLoadReport(),
		DataQuality:  h.dataStore.GetDataQuality(),
	}
	if last := h.dataStore.GetLastUpdated(); !last.IsZero() {
		response.LastUpdated = last.Format(time.RFC3339)
	}
	RespondWithJSON(w, http.StatusOK, response)
}

// HealthCheck handles GET /health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	response := HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: math.Round(uptime.Seconds()),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	RespondWithJSON(w, httpStatus, response)
}
