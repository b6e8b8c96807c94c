package data

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giygas/medfinder-api/catalogparser/entities"
	"github.com/giygas/medfinder-api/index"
	"github.com/giygas/medfinder-api/search"
)

func TestDataContainer_GetServerStartTime(t *testing.T) {
	dc := NewDataContainer()

	if !dc.GetServerStartTime().IsZero() {
		t.Error("Expected zero server start time before it is set")
	}

	start := time.Now()
	dc.SetServerStartTime(start)
	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("Expected %v, got %v", start, dc.GetServerStartTime())
	}
}

func TestDataContainer_UpdateDataWithNil(t *testing.T) {
	dc := NewDataContainer()
	engine := newEngine(t, testProducts("Doliprane"))
	dc.UpdateData(engine, nil, nil)

	if dc.GetLoadReport() == nil {
		t.Error("Expected an empty load report instead of nil")
	}
	if dc.GetDataQuality() == nil || dc.GetDataQuality().DuplicateNames == nil {
		t.Error("Expected an empty quality report instead of nil")
	}

	updated := dc.GetLastUpdated()
	dc.UpdateData(nil, nil, nil)
	if dc.GetEngine() != engine {
		t.Error("A nil engine must not replace the active one")
	}
	if !dc.GetLastUpdated().Equal(updated) {
		t.Error("A rejected update must not touch lastUpdated")
	}
}

func TestDataContainer_UpdateWithSameEngine(t *testing.T) {
	dc := NewDataContainer()
	engine := newEngine(t, testProducts("Doliprane"))

	dc.UpdateData(engine, nil, nil)
	dc.UpdateData(engine, nil, nil)

	if _, err := dc.GetEngine().FindMedicine("Doliprane"); err != nil {
		t.Errorf("Expected the engine to keep working, got %v", err)
	}
}

func TestDataContainer_ConcurrentReadsDuringUpdate(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(newEngine(t, testProducts("Doliprane")), nil, nil)

	engines := make([]*search.Engine, 10)
	for i := range engines {
		engines[i] = newEngine(t, testProducts("Doliprane", "Dafalgan"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = dc.GetEngine()
				_ = dc.GetLoadReport()
				_ = dc.GetDataQuality()
				_ = dc.GetLastUpdated()
				_ = dc.GetLastReloadError()
				_ = dc.IsUpdating()
			}
		}()
		go func(i int) {
			defer wg.Done()
			if dc.BeginUpdate() {
				dc.UpdateData(engines[i], nil, nil)
				dc.EndUpdate()
			}
		}(i)
	}
	wg.Wait()

	if dc.IsUpdating() {
		t.Error("Expected no update in progress after all writers finished")
	}
	if dc.GetEngine().Index().Len() == 0 {
		t.Error("Expected a populated engine")
	}
}

// newCachedEngine builds an engine with the result cache on, as in production
func newCachedEngine(t *testing.T, products []entities.Product) *search.Engine {
	t.Helper()
	engine, err := search.NewEngine(index.Build(products, index.Options{Workers: 2}), search.DefaultSettings())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func TestDataContainer_QueriesDuringSwapClosingCache(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateData(newCachedEngine(t, testProducts("Doliprane")), nil, nil)

	engines := make([]*search.Engine, 20)
	for i := range engines {
		engines[i] = newCachedEngine(t, testProducts("Doliprane", "Dafalgan"))
	}
	t.Cleanup(func() { dc.GetEngine().Close() })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; ; j++ {
				select {
				case <-stop:
					return
				default:
				}
				// Engines loaded before a swap keep being queried after it.
				engine := dc.GetEngine()
				if _, err := engine.SearchByIngredient("paracetamol", fmt.Sprintf("%dmg", g*100000+j), 5); err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
			}
		}(g)
	}

	for _, engine := range engines {
		dc.UpdateData(engine, nil, nil)
		time.Sleep(time.Millisecond)
	}
	close(stop)
	wg.Wait()

	if _, err := dc.GetEngine().FindMedicine("Dafalgan"); err != nil {
		t.Errorf("Expected the last engine to serve, got %v", err)
	}
}

func TestDataContainer_ThreadSafety(t *testing.T) {
	dc := NewDataContainer()

	var wg sync.WaitGroup
	successes := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dc.BeginUpdate() {
				successes <- struct{}{}
				time.Sleep(time.Millisecond)
				dc.EndUpdate()
			}
		}()
	}
	wg.Wait()
	close(successes)

	if len(successes) == 0 {
		t.Error("Expected at least one BeginUpdate to succeed")
	}
	if dc.IsUpdating() {
		t.Error("Expected no update in progress at the end")
	}
}
