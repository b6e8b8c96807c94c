package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/data"
	"github.com/giygas/medfinder-api/search"
	"github.com/giygas/medfinder-api/validation"
)

// mockLoader serves an in-memory catalog
type mockLoader struct {
	mu        sync.Mutex
	products  []entities.Product
	modTime   time.Time
	loadErr   error
	statErr   error
	loadCount int
}

func (m *mockLoader) LoadCatalog() ([]entities.Product, *entities.LoadReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCount++
	if m.loadErr != nil {
		return nil, nil, m.loadErr
	}
	return m.products, &entities.LoadReport{Source: m.Source(), Records: len(m.products), Loaded: len(m.products)}, nil
}

func (m *mockLoader) Source() string {
	return "mock-catalog"
}

func (m *mockLoader) ModTime() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modTime, m.statErr
}

func (m *mockLoader) set(modTime time.Time, names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modTime = modTime
	m.products = make([]entities.Product, len(names))
	for i, name := range names {
		m.products[i] = entities.Product{ID: i, Name: name, Brand: "Lab", RawComposition: "Paracetamol (500mg)"}
	}
}

func (m *mockLoader) loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCount
}

func testOptions() Options {
	settings := search.DefaultSettings()
	settings.CacheMaxEntries = 0
	return Options{Workers: 2, Settings: settings}
}

func newTestScheduler(loader *mockLoader, opts Options) (*Scheduler, *data.DataContainer) {
	store := data.NewDataContainer()
	return NewScheduler(store, loader, validation.NewDataValidator(), opts), store
}

func TestStartLoadsCatalog(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane", "Efferalgan")

	s, store := newTestScheduler(loader, testOptions())
	if err := s.Start(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer s.Stop()

	if got := store.GetEngine().Index().Len(); got != 2 {
		t.Errorf("Expected 2 products after start, got %d", got)
	}
	if store.GetLoadReport().Source != "mock-catalog" {
		t.Errorf("Expected load report from mock-catalog, got %q", store.GetLoadReport().Source)
	}
	if store.IsUpdating() {
		t.Error("Expected the update flag to be released")
	}
}

func TestStartWithPeriodicReloads(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane")

	opts := testOptions()
	opts.Interval = time.Hour
	s, _ := newTestScheduler(loader, opts)
	if err := s.Start(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s.Stop()

	if loader.loads() != 1 {
		t.Errorf("Expected only the initial load before the first interval, got %d", loader.loads())
	}
}

func TestStartFailsOnInitialLoadError(t *testing.T) {
	loader := &mockLoader{loadErr: errors.New("file not found")}

	s, store := newTestScheduler(loader, testOptions())
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("Expected an error when the initial load fails")
	}

	if store.GetLastReloadError() == nil {
		t.Error("Expected the failure to be recorded")
	}
	if store.GetEngine().Index().Len() != 0 {
		t.Error("Expected the empty engine to stay in place")
	}
}

func TestReloadSkipsUnchangedCatalog(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane")

	s, store := newTestScheduler(loader, testOptions())
	if err := s.Reload(true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	engine := store.GetEngine()

	if err := s.Reload(false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loader.loads() != 1 {
		t.Errorf("Expected the unchanged catalog not to be read again, got %d loads", loader.loads())
	}
	if store.GetEngine() != engine {
		t.Error("Expected the engine to stay the same")
	}

	if err := s.Reload(true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loader.loads() != 2 {
		t.Errorf("Expected a forced reload to read the catalog, got %d loads", loader.loads())
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane")

	s, store := newTestScheduler(loader, testOptions())
	if err := s.Reload(true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	loader.set(time.Unix(2000, 0), "Doliprane", "Dafalgan", "Efferalgan")
	if err := s.Reload(false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := store.GetEngine().Index().Len(); got != 3 {
		t.Errorf("Expected 3 products after the change, got %d", got)
	}
}

func TestReloadFailureKeepsPreviousEngine(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane")

	s, store := newTestScheduler(loader, testOptions())
	if err := s.Reload(true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	engine := store.GetEngine()

	loader.set(time.Unix(2000, 0), "Doliprane", "Dafalgan")
	loader.loadErr = errors.New("invalid JSON")
	if err := s.Reload(false); err == nil {
		t.Fatal("Expected the reload to fail")
	}
	if store.GetEngine() != engine {
		t.Error("Expected the previous engine to keep serving")
	}
	if store.GetLastReloadError() == nil {
		t.Error("Expected the failure to be recorded")
	}

	loader.loadErr = nil
	if err := s.Reload(false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if store.GetLastReloadError() != nil {
		t.Errorf("Expected a successful reload to clear the error, got %v", store.GetLastReloadError())
	}
	if store.GetEngine().Index().Len() != 2 {
		t.Errorf("Expected 2 products, got %d", store.GetEngine().Index().Len())
	}
}

func TestReloadStatError(t *testing.T) {
	loader := &mockLoader{statErr: errors.New("permission denied")}

	s, store := newTestScheduler(loader, testOptions())
	if err := s.Reload(false); err == nil {
		t.Fatal("Expected an error when the catalog cannot be stat'ed")
	}
	if loader.loads() != 0 {
		t.Error("Expected no load after a stat failure")
	}
	if store.GetLastReloadError() == nil {
		t.Error("Expected the stat failure to be recorded")
	}
}

func TestReloadRejectsInvalidSettings(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane")

	opts := testOptions()
	opts.Settings.Algorithm = "soundex"
	s, store := newTestScheduler(loader, opts)

	if err := s.Reload(true); err == nil {
		t.Fatal("Expected an error for an unknown algorithm")
	}
	if store.GetEngine().Index().Len() != 0 {
		t.Error("Expected no engine swap on failure")
	}
}

func TestReloadSkipsWhileUpdating(t *testing.T) {
	loader := &mockLoader{}
	loader.set(time.Unix(1000, 0), "Doliprane")

	s, store := newTestScheduler(loader, testOptions())
	if !store.BeginUpdate() {
		t.Fatal("Expected BeginUpdate to succeed")
	}
	defer store.EndUpdate()

	if err := s.Reload(true); err != nil {
		t.Errorf("Expected a concurrent reload to be skipped silently, got %v", err)
	}
	if loader.loads() != 0 {
		t.Errorf("Expected no load while another update runs, got %d", loader.loads())
	}
}

func TestLogHealthDoesNotPanic(t *testing.T) {
	loader := &mockLoader{}
	s, store := newTestScheduler(loader, testOptions())

	s.logHealth()
	store.SetLastReloadError(errors.New("boom"))
	s.logHealth()
}
