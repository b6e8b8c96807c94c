// Package data holds the active search engine behind atomic pointers so a
// catalog reload can swap in a fully built engine while requests keep
// reading the previous one.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/interfaces"
	"github.com/giygas/medfinder-api/logging"
	"github.com/giygas/medfinder-api/search"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// reloadError wraps the last reload failure; atomic.Value needs one concrete type.
type reloadError struct {
	err error
}

// DataContainer holds all the data with atomic pointers for zero-downtime updates
type DataContainer struct {
	engine          atomic.Pointer[search.Engine]
	loadReport      atomic.Pointer[entities.LoadReport]
	quality         atomic.Pointer[interfaces.DataQualityReport]
	lastUpdated     atomic.Value // time.Time
	lastReloadError atomic.Value // reloadError
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container serving an empty catalog
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}

	settings := search.DefaultSettings()
	settings.CacheMaxEntries = 0
	empty, err := search.NewEngine(index.Build(nil, index.Options{Workers: 1}), settings)
	if err != nil {
		// Default settings are valid; this only fires if they stop being so.
		logging.Error("Failed to create empty search engine", "error", err)
	}
	dc.engine.Store(empty)
	dc.loadReport.Store(&entities.LoadReport{})
	dc.quality.Store(&interfaces.DataQualityReport{DuplicateNames: []string{}})
	dc.lastUpdated.Store(time.Time{})
	dc.lastReloadError.Store(reloadError{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetEngine returns the engine requests should query
func (dc *DataContainer) GetEngine() *search.Engine {
	return dc.engine.Load()
}

// GetLoadReport returns what the last successful load read
func (dc *DataContainer) GetLoadReport() *entities.LoadReport {
	return dc.loadReport.Load()
}

// GetDataQuality returns the quality report of the active catalog
func (dc *DataContainer) GetDataQuality() *interfaces.DataQualityReport {
	return dc.quality.Load()
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// GetLastReloadError returns the error of the last reload, nil after a success
func (dc *DataContainer) GetLastReloadError() error {
	if v, ok := dc.lastReloadError.Load().(reloadError); ok {
		return v.err
	}
	return nil
}

// SetLastReloadError records a failed reload; nil clears it
func (dc *DataContainer) SetLastReloadError(err error) {
	dc.lastReloadError.Store(reloadError{err: err})
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData swaps in a new engine. The previous engine's cache is released;
// requests still holding it keep working uncached.
func (dc *DataContainer) UpdateData(engine *search.Engine, report *entities.LoadReport, quality *interfaces.DataQualityReport) {
	if engine == nil {
		logging.Error("Refusing to swap in a nil search engine")
		return
	}
	if report == nil {
		report = &entities.LoadReport{}
	}
	if quality == nil {
		quality = &interfaces.DataQualityReport{DuplicateNames: []string{}}
	}

	dc.loadReport.Store(report)
	dc.quality.Store(quality)
	previous := dc.engine.Swap(engine)
	dc.lastUpdated.Store(time.Now())
	dc.lastReloadError.Store(reloadError{})

	if previous != nil && previous != engine {
		previous.Close()
	}
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
