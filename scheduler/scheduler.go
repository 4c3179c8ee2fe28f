// Package scheduler loads the dataset catalog at startup and refreshes it on a daily schedule.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/metrics"
	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// staleAfter is how old the store may get before the monitor warns
const staleAfter = 25 * time.Hour

// Scheduler prepares every catalog dataset into the store, at Start and then at the refresh times
type Scheduler struct {
	dataStore interfaces.DataStore
	preparer  interfaces.Preparer
	datasets  []entities.Dataset
	refreshAt string
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a scheduler. refreshAt uses the gocron At() format, e.g. "06:00;18:00".
func NewScheduler(dataStore interfaces.DataStore, preparer interfaces.Preparer, datasets []entities.Dataset, refreshAt string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		dataStore: dataStore,
		preparer:  preparer,
		datasets:  datasets,
		refreshAt: refreshAt,
		scheduler: gocron.NewScheduler(time.Local),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start performs the initial load, then schedules refreshes and the staleness monitor.
// It fails only when no dataset at all could be prepared.
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
		return fmt.Errorf("initial data load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.refreshAt).Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to update data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring(time.Hour)

	logging.Info("Dataset refresh scheduled", "at", s.refreshAt, "datasets", len(s.datasets))
	return nil
}

// Stop stops scheduled refreshes and cancels a refresh in progress
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// updateData prepares every dataset and swaps the successful ones into the store.
// Failed datasets keep their previous snapshot.
func (s *Scheduler) updateData() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting dataset refresh", "datasets", len(s.datasets))
	start := time.Now()

	prepared, failures := s.preparer.PrepareAll(s.ctx, s.datasets)

	for _, name := range sortedKeys(failures) {
		logging.Error("Failed to prepare dataset", "dataset", name, "error", failures[name])
		metrics.RecordFailure(name)
	}

	ready := make(map[string]*entities.PreparedDataset, len(prepared))
	for _, name := range sortedKeys(prepared) {
		p := prepared[name]
		if p == nil {
			logging.Warn("Preparer returned no dataset", "dataset", name)
			continue
		}
		metrics.RecordPrepared(p)
		logQuality(p)
		ready[name] = p
	}

	if len(ready) > 0 {
		s.dataStore.UpdateData(ready)
	}

	elapsed := time.Since(start)
	metrics.DatasetRefreshDuration.Observe(elapsed.Seconds())

	if len(ready) == 0 && len(s.dataStore.GetDatasets()) == 0 {
		return fmt.Errorf("no dataset could be prepared (%d failures)", len(failures))
	}

	logging.Info("Dataset refresh completed",
		"duration", elapsed.String(),
		"prepared", len(ready),
		"failed", len(failures))

	return nil
}

func logQuality(p *entities.PreparedDataset) {
	q := p.Quality
	if !q.HasIssues() {
		return
	}
	name := p.Dataset.Name

	if len(q.DroppedRows) > 0 {
		logging.Warn("Rows dropped for missing values", "dataset", name, "count", len(q.DroppedRows))
	}
	if len(q.UnmatchedISO3) > 0 {
		logging.Warn("Country codes not in ISO 3166-1, the map will not place them",
			"dataset", name, "codes", q.UnmatchedISO3)
	}
	if len(q.AliasedISO3) > 0 {
		logging.Warn("Deprecated country codes", "dataset", name, "codes", q.AliasedISO3)
	}
	if len(q.OutOfRangeTiers) > 0 {
		logging.Warn("Tiers outside the declared range",
			"dataset", name, "tier_count", p.Dataset.TierCount, "records", q.OutOfRangeTiers)
	}
	if q.RecordsWithoutRegion > 0 {
		logging.Warn("Records without region", "dataset", name, "count", q.RecordsWithoutRegion)
	}
}

// startHealthMonitoring warns when the store has not been refreshed for too long
func (s *Scheduler) startHealthMonitoring(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if age := time.Since(s.dataStore.GetLastUpdated()); age > staleAfter {
					logging.Warn("Datasets haven't been refreshed recently", "age", age.Round(time.Minute).String())
				}
			}
		}
	}()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
