// Package data provides thread-safe storage of prepared datasets.
// The DataContainer swaps whole snapshots atomically so readers never see a half-updated catalog.
package data

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/tableparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// snapshot is one immutable generation of the store
type snapshot struct {
	byName  map[string]*entities.PreparedDataset
	ordered []*entities.PreparedDataset // sorted by name
}

// DataContainer holds prepared datasets behind atomic values
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with no datasets
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(&snapshot{
		byName:  make(map[string]*entities.PreparedDataset),
		ordered: make([]*entities.PreparedDataset, 0),
	})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetDatasets returns every prepared dataset, sorted by name
func (dc *DataContainer) GetDatasets() []*entities.PreparedDataset {
	if snap := dc.current.Load(); snap != nil {
		return snap.ordered
	}

	logging.Warn("Dataset list is empty or invalid")
	return []*entities.PreparedDataset{}
}

// GetDataset returns the prepared dataset with the given name
func (dc *DataContainer) GetDataset(name string) (*entities.PreparedDataset, bool) {
	if snap := dc.current.Load(); snap != nil {
		ds, found := snap.byName[name]
		return ds, found
	}
	return nil, false
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
	return time.Time{}
}

// UpdateData merges prepared datasets into the current snapshot and swaps it in.
// Datasets absent from prepared keep their previous snapshot. The caller's map is not retained.
func (dc *DataContainer) UpdateData(prepared map[string]*entities.PreparedDataset) {
	next := make(map[string]*entities.PreparedDataset, len(prepared))
	if snap := dc.current.Load(); snap != nil {
		for name, ds := range snap.byName {
			next[name] = ds
		}
	}
	for name, ds := range prepared {
		if ds != nil {
			next[name] = ds
		}
	}

	ordered := make([]*entities.PreparedDataset, 0, len(next))
	for _, ds := range next {
		ordered = append(ordered, ds)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Dataset.Name < ordered[j].Dataset.Name
	})

	dc.current.Store(&snapshot{byName: next, ordered: ordered})
	dc.lastUpdated.Store(time.Now())
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
