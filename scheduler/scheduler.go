// Package scheduler loads the catalog at startup and reloads it on a fixed
// interval, swapping a freshly built search engine into the data store.
package scheduler

import (
	"fmt"
	"time"

	"github.com/giygas/medfinder-api/interfaces"
	"github.com/giygas/medfinder-api/logging"
	"github.com/giygas/medfinder-api/search"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Options configure the reload pipeline
type Options struct {
	Interval time.Duration // 0 disables periodic reloads
	Workers  int           // index build parallelism
	Settings search.Settings
}

// Scheduler handles catalog reloads and health monitoring using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.CatalogLoader
	validator interfaces.DataValidator
	opts      Options
	scheduler *gocron.Scheduler

	// only touched while the data store update flag is held
	lastModTime time.Time
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.CatalogLoader, validator interfaces.DataValidator, opts Options) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		loader:    loader,
		validator: validator,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial load, then schedules reloads and the hourly health log
func (s *Scheduler) Start() error {
	if err := s.Reload(true); err != nil {
		return fmt.Errorf("initial catalog load failed: %w", err)
	}

	if s.opts.Interval > 0 {
		_, err := s.scheduler.Every(s.opts.Interval).WaitForSchedule().SingletonMode().Do(func() {
			// failures are recorded on the data store and logged by Reload
			_ = s.Reload(false)
		})
		if err != nil {
			logging.Error("Failed to schedule catalog reloads", "error", err)
			return fmt.Errorf("failed to schedule catalog reloads: %w", err)
		}
		logging.Info("Catalog reloads scheduled", "interval", s.opts.Interval.String(), "source", s.loader.Source())
	} else {
		logging.Info("Catalog reloads disabled", "source", s.loader.Source())
	}

	if _, err := s.scheduler.Every(1).Hour().WaitForSchedule().Do(s.logHealth); err != nil {
		logging.Error("Failed to schedule health monitoring", "error", err)
		return fmt.Errorf("failed to schedule health monitoring: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// logHealth warns about a catalog stuck on an old version
func (s *Scheduler) logHealth() {
	if err := s.dataStore.GetLastReloadError(); err != nil {
		logging.Warn("Serving a previous catalog, last reload failed",
			"error", err,
			"last_update", s.dataStore.GetLastUpdated().Format(time.RFC3339),
		)
		return
	}

	if engine := s.dataStore.GetEngine(); engine == nil || engine.Index().Len() == 0 {
		logging.Warn("Catalog is empty")
		return
	}

	logging.Debug("Catalog healthy", "last_update", s.dataStore.GetLastUpdated().Format(time.RFC3339))
}
