// Package interfaces defines core abstractions for the medfinder API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"net/http"
	"time"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/search"
)

// DataQualityReport provides a summary of catalog quality issues
type DataQualityReport struct {
	DuplicateNames             []string `json:"duplicate_names"` // first few, for logs
	DuplicateNameCount         int      `json:"duplicate_name_count"`
	ProductsWithoutPrice       int      `json:"products_without_price"`
	ProductsWithoutComposition int      `json:"products_without_composition"`
	DegradedSignatures         int      `json:"degraded_signatures"`
	ParseWarnings              int      `json:"parse_warnings"`
	ParseFailures              int      `json:"parse_failures"`
}

// DataStore defines the contract for the active search engine.
// Readers never lock; a reload swaps in a fully built engine.
type DataStore interface {
	// Data retrieval methods
	GetEngine() *search.Engine
	GetLoadReport() *entities.LoadReport
	GetDataQuality() *DataQualityReport
	GetLastUpdated() time.Time
	GetLastReloadError() error
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(engine *search.Engine, report *entities.LoadReport, quality *DataQualityReport)
	SetLastReloadError(err error)
	BeginUpdate() bool
	EndUpdate()
}

// CatalogLoader defines the contract for reading the product catalog.
type CatalogLoader interface {
	LoadCatalog() ([]entities.Product, *entities.LoadReport, error)

	// Source names the catalog, for logs
	Source() string

	// ModTime lets the scheduler skip rebuilds when nothing changed
	ModTime() (time.Time, error)
}

// Scheduler defines the contract for catalog reloads and health monitoring.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	// Formula search
	SearchByIngredient(w http.ResponseWriter, r *http.Request)
	SearchByComposition(w http.ResponseWriter, r *http.Request)
	SearchByCategory(w http.ResponseWriter, r *http.Request)
	SearchByBrand(w http.ResponseWriter, r *http.Request)
	AvailableDosages(w http.ResponseWriter, r *http.Request)

	// Enhanced search
	Autocomplete(w http.ResponseWriter, r *http.Request)
	AutocompleteBrand(w http.ResponseWriter, r *http.Request)
	FuzzySearch(w http.ResponseWriter, r *http.Request)
	MultiFieldSearch(w http.ResponseWriter, r *http.Request)

	// Alternatives
	SimilarMedicines(w http.ResponseWriter, r *http.Request)
	CompareMedicines(w http.ResponseWriter, r *http.Request)
	FindMedicine(w http.ResponseWriter, r *http.Request)

	Stats(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status, its details and the HTTP code to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// NextReload returns the next scheduled catalog check, zero when reloads are off
	NextReload() time.Time
}

// DataValidator defines the contract for input and catalog validation.
type DataValidator interface {
	// ValidateInput validates user input strings
	ValidateInput(input string) error

	// ValidateLimit parses a result limit, falling back to def when empty
	ValidateLimit(input string, def, max int) (int, error)

	// ReportDataQuality generates a data quality report for a built index
	ReportDataQuality(idx *index.CatalogIndex) *DataQualityReport
}
