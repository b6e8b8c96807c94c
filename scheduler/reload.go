package scheduler

import (
	"fmt"
	"time"

	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/interfaces"
	"github.com/giygas/medfinder-api/logging"
	"github.com/giygas/medfinder-api/metrics"
	"github.com/giygas/medfinder-api/search"
)

// Reload rebuilds the engine from the catalog. Unless force is set, a
// catalog whose modification time did not change is skipped. On failure
// the previous engine keeps serving and the error is recorded on the store.
func (s *Scheduler) Reload(force bool) error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	modTime, err := s.loader.ModTime()
	if err != nil {
		return s.fail(fmt.Errorf("failed to stat catalog: %w", err))
	}
	if !force && !modTime.IsZero() && modTime.Equal(s.lastModTime) {
		metrics.CatalogReloadsTotal.WithLabelValues("unchanged").Inc()
		logging.Debug("Catalog unchanged, skipping rebuild", "source", s.loader.Source())
		return nil
	}

	logging.Info("Starting catalog update", "source", s.loader.Source())
	start := time.Now()

	products, report, err := s.loader.LoadCatalog()
	if err != nil {
		return s.fail(fmt.Errorf("failed to load catalog: %w", err))
	}

	idx := index.Build(products, index.Options{Workers: s.opts.Workers})
	quality := s.validator.ReportDataQuality(idx)
	logQuality(quality)

	engine, err := search.NewEngine(idx, s.opts.Settings)
	if err != nil {
		return s.fail(fmt.Errorf("failed to create search engine: %w", err))
	}

	s.dataStore.UpdateData(engine, report, quality)
	s.lastModTime = modTime

	stats := idx.Stats()
	metrics.CatalogProducts.Set(float64(stats.Products))
	metrics.CatalogParseWarnings.Set(float64(stats.ParseWarnings))
	metrics.CatalogIndexBuildSeconds.Set(stats.BuildDuration.Seconds())
	metrics.CatalogReloadsTotal.WithLabelValues("success").Inc()

	logging.Info("Catalog update completed",
		"duration", time.Since(start).String(),
		"products", stats.Products,
		"ingredients", stats.Ingredients,
		"signatures", stats.Signatures,
	)
	return nil
}

func (s *Scheduler) fail(err error) error {
	s.dataStore.SetLastReloadError(err)
	metrics.CatalogReloadsTotal.WithLabelValues("failure").Inc()
	logging.Error("Catalog update failed", "source", s.loader.Source(), "error", err)
	return err
}

func logQuality(report *interfaces.DataQualityReport) {
	if report == nil {
		return
	}

	if report.DuplicateNameCount > 0 {
		logging.Warn("Duplicate product names detected",
			"total", report.DuplicateNameCount,
			"names", report.DuplicateNames,
		)
	}

	if report.ProductsWithoutComposition > 0 {
		logging.Warn("Products without composition", "count", report.ProductsWithoutComposition)
	}

	if report.DegradedSignatures > 0 || report.ParseFailures > 0 {
		logging.Warn("Compositions not fully parsed",
			"degraded", report.DegradedSignatures,
			"failures", report.ParseFailures,
			"warnings", report.ParseWarnings,
		)
	}

	if report.ProductsWithoutPrice > 0 {
		logging.Info("Products without price", "count", report.ProductsWithoutPrice)
	}
}
