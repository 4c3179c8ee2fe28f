package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giygas/opioid-maps/data"
	"github.com/giygas/opioid-maps/tableparser/entities"
)

// mockPreparer returns canned results and counts calls
type mockPreparer struct {
	mu       sync.Mutex
	results  map[string]*entities.PreparedDataset
	failures map[string]error
	calls    int
	block    chan struct{}
}

func (m *mockPreparer) Prepare(ctx context.Context, ds entities.Dataset) (*entities.PreparedDataset, error) {
	if err, ok := m.failures[ds.Name]; ok {
		return nil, err
	}
	p, ok := m.results[ds.Name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: file not found", ds.Name)
	}
	return p, nil
}

func (m *mockPreparer) PrepareAll(ctx context.Context, datasets []entities.Dataset) (map[string]*entities.PreparedDataset, map[string]error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}

	prepared := make(map[string]*entities.PreparedDataset)
	failures := make(map[string]error)
	for _, ds := range datasets {
		p, err := m.Prepare(ctx, ds)
		if err != nil {
			failures[ds.Name] = err
			continue
		}
		prepared[ds.Name] = p
	}
	return prepared, failures
}

func (m *mockPreparer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func catalog() []entities.Dataset {
	return []entities.Dataset{
		{Name: "opioid-consumption", TierCount: 10},
		{Name: "opioid-eml", TierCount: 9},
	}
}

func preparedDataset(name, version string) *entities.PreparedDataset {
	return &entities.PreparedDataset{
		Dataset:    entities.Dataset{Name: name},
		Version:    version,
		SourceRows: 3,
		Records:    make([]entities.CountryRecord, 2),
		Quality: &entities.DataQualityReport{
			DroppedRows: []entities.DroppedRow{{Line: 4, Country: "Chad", MissingColumns: []string{"meanop_pop"}}},
		},
	}
}

func TestScheduler_SuccessfulUpdate(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{results: map[string]*entities.PreparedDataset{
		"opioid-consumption": preparedDataset("opioid-consumption", "v1"),
		"opioid-eml":         preparedDataset("opioid-eml", "v1"),
	}}

	s := NewScheduler(store, preparer, catalog(), "06:00;18:00")
	if err := s.updateData(); err != nil {
		t.Fatalf("updateData failed: %v", err)
	}

	if len(store.GetDatasets()) != 2 {
		t.Errorf("Expected 2 datasets in store, got %d", len(store.GetDatasets()))
	}
	if store.IsUpdating() {
		t.Error("Store should not be updating after refresh")
	}
	if store.GetLastUpdated().IsZero() {
		t.Error("lastUpdated should be set")
	}
}

func TestScheduler_AllFailOnEmptyStore(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{failures: map[string]error{
		"opioid-consumption": errors.New("file not found"),
		"opioid-eml":         errors.New("schema mismatch"),
	}}

	s := NewScheduler(store, preparer, catalog(), "06:00")
	if err := s.updateData(); err == nil {
		t.Fatal("Expected error when nothing could be prepared")
	}
	if store.IsUpdating() {
		t.Error("Update flag must be released after a failure")
	}
}

func TestScheduler_PartialFailureKeepsPreviousSnapshot(t *testing.T) {
	store := data.NewDataContainer()
	store.UpdateData(map[string]*entities.PreparedDataset{
		"opioid-consumption": preparedDataset("opioid-consumption", "v1"),
		"opioid-eml":         preparedDataset("opioid-eml", "v1"),
	})

	preparer := &mockPreparer{
		results:  map[string]*entities.PreparedDataset{"opioid-eml": preparedDataset("opioid-eml", "v2")},
		failures: map[string]error{"opioid-consumption": errors.New("download failed")},
	}

	s := NewScheduler(store, preparer, catalog(), "06:00")
	if err := s.updateData(); err != nil {
		t.Fatalf("Partial failure should not be an error: %v", err)
	}

	consumption, _ := store.GetDataset("opioid-consumption")
	if consumption.Version != "v1" {
		t.Errorf("Failed dataset should keep v1, got %s", consumption.Version)
	}
	eml, _ := store.GetDataset("opioid-eml")
	if eml.Version != "v2" {
		t.Errorf("Prepared dataset should be v2, got %s", eml.Version)
	}
}

func TestScheduler_AllFailKeepsExistingStore(t *testing.T) {
	store := data.NewDataContainer()
	store.UpdateData(map[string]*entities.PreparedDataset{"opioid-eml": preparedDataset("opioid-eml", "v1")})

	preparer := &mockPreparer{failures: map[string]error{
		"opioid-consumption": errors.New("boom"),
		"opioid-eml":         errors.New("boom"),
	}}

	s := NewScheduler(store, preparer, catalog(), "06:00")
	if err := s.updateData(); err != nil {
		t.Errorf("A refresh with an existing snapshot should not fail: %v", err)
	}
	if _, ok := store.GetDataset("opioid-eml"); !ok {
		t.Error("Existing snapshot must survive a failed refresh")
	}
}

func TestScheduler_ConcurrentUpdatePrevention(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{
		results: map[string]*entities.PreparedDataset{"opioid-eml": preparedDataset("opioid-eml", "v1")},
		block:   make(chan struct{}),
	}
	s := NewScheduler(store, preparer, catalog(), "06:00")

	done := make(chan error)
	go func() { done <- s.updateData() }()

	deadline := time.Now().Add(2 * time.Second)
	for !store.IsUpdating() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// second refresh while the first is blocked
	if err := s.updateData(); err != nil {
		t.Errorf("Skipped update should not error: %v", err)
	}

	close(preparer.block)
	if err := <-done; err != nil {
		t.Errorf("First update failed: %v", err)
	}

	if calls := preparer.callCount(); calls != 1 {
		t.Errorf("Expected 1 preparation, got %d", calls)
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{results: map[string]*entities.PreparedDataset{
		"opioid-eml": preparedDataset("opioid-eml", "v1"),
	}}

	s := NewScheduler(store, preparer, catalog(), "06:00;18:00")
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if _, ok := store.GetDataset("opioid-eml"); !ok {
		t.Error("Start should perform the initial load")
	}
}

func TestScheduler_StartInvalidSchedule(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{results: map[string]*entities.PreparedDataset{
		"opioid-eml": preparedDataset("opioid-eml", "v1"),
	}}

	s := NewScheduler(store, preparer, catalog(), "not-a-time")
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("Expected error for an invalid refresh schedule")
	}
}

func TestScheduler_NilPreparedEntryIsSkipped(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{results: map[string]*entities.PreparedDataset{
		"opioid-consumption": nil,
		"opioid-eml":         preparedDataset("opioid-eml", "v1"),
	}}

	s := NewScheduler(store, preparer, catalog(), "06:00")
	if err := s.updateData(); err != nil {
		t.Fatalf("updateData failed: %v", err)
	}

	if _, ok := store.GetDataset("opioid-consumption"); ok {
		t.Error("A nil entry must not reach the store")
	}
	if _, ok := store.GetDataset("opioid-eml"); !ok {
		t.Error("opioid-eml should be stored")
	}
}

func TestScheduler_OnlyNilEntriesOnEmptyStore(t *testing.T) {
	store := data.NewDataContainer()
	preparer := &mockPreparer{results: map[string]*entities.PreparedDataset{
		"opioid-consumption": nil,
		"opioid-eml":         nil,
	}}

	s := NewScheduler(store, preparer, catalog(), "06:00")
	if err := s.updateData(); err == nil {
		t.Error("Expected error when no dataset was prepared")
	}
	if store.IsUpdating() {
		t.Error("Update flag must be released")
	}
}

func TestSortedKeys(t *testing.T) {
	keys := sortedKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("Unexpected order %v", keys)
	}
}
