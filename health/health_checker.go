// Package health reports whether the API is serving a usable catalog.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/medfinder-api/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore      interfaces.DataStore
	reloadInterval time.Duration
}

// NewHealthChecker creates a health checker. reloadInterval is the catalog
// check period, 0 when reloads are disabled.
func NewHealthChecker(dataStore interfaces.DataStore, reloadInterval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore:      dataStore,
		reloadInterval: reloadInterval,
	}
}

// HealthCheck classifies the service:
//   - unhealthy (503) when no product is loaded
//   - degraded (200) while a reload runs or after a failed reload
//   - healthy (200) otherwise
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	engine := h.dataStore.GetEngine()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	reloadErr := h.dataStore.GetLastReloadError()

	products, brands, ingredients, signatures := 0, 0, 0, 0
	if engine != nil {
		stats := engine.Index().Stats()
		products, brands, ingredients, signatures = stats.Products, stats.Brands, stats.Ingredients, stats.Signatures
	}

	var dataAge time.Duration
	if !lastUpdate.IsZero() {
		dataAge = time.Since(lastUpdate)
	}

	switch {
	case products == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating, reloadErr != nil:
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"products":       products,
		"brands":         brands,
		"ingredients":    ingredients,
		"signatures":     signatures,
		"is_updating":    isUpdating,
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
	}
	if next := h.NextReload(); !next.IsZero() {
		data["next_reload"] = next.Format(time.RFC3339)
	}
	if report := h.dataStore.GetLoadReport(); report != nil && report.Source != "" {
		data["source"] = report.Source
	}
	if reloadErr != nil {
		data["last_reload_error"] = reloadErr.Error()
	}

	return status, data, httpStatus
}

// NextReload returns the next catalog check, counting whole reload periods
// from the server start. Zero when reloads are disabled.
func (h *HealthCheckerImpl) NextReload() time.Time {
	if h.reloadInterval <= 0 {
		return time.Time{}
	}

	start := h.dataStore.GetServerStartTime()
	if start.IsZero() {
		start = h.dataStore.GetLastUpdated()
	}
	if start.IsZero() {
		return time.Time{}
	}

	now := time.Now()
	if start.After(now) {
		return start
	}
	periods := now.Sub(start)/h.reloadInterval + 1
	return start.Add(periods * h.reloadInterval)
}
