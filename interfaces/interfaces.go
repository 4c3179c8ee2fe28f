// Package interfaces defines core abstractions for the opioid maps service
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/opioid-maps/tableparser/entities"
)

// DataStore defines the contract for prepared dataset storage.
// It provides thread-safe access with atomic replacement for zero-downtime refreshes.
type DataStore interface {
	// Data retrieval methods
	GetDatasets() []*entities.PreparedDataset
	GetDataset(name string) (*entities.PreparedDataset, bool)
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateData(prepared map[string]*entities.PreparedDataset)
	BeginUpdate() bool
	EndUpdate()
}

// Frame is the read-only view of a table used for summaries.
type Frame interface {
	Columns() []string
	Len() int
	Values(column string) (values []string, present []bool, err error)
}

// Preparer defines the contract for turning catalog datasets into prepared records.
type Preparer interface {
	// Prepare loads and prepares a single dataset
	Prepare(ctx context.Context, dataset entities.Dataset) (*entities.PreparedDataset, error)

	// PrepareAll prepares every dataset, reporting failures per dataset name
	PrepareAll(ctx context.Context, datasets []entities.Dataset) (map[string]*entities.PreparedDataset, map[string]error)
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated dataset refreshes.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	ListDatasets(w http.ResponseWriter, r *http.Request)
	ServeDataset(w http.ResponseWriter, r *http.Request)
	ServeSummary(w http.ResponseWriter, r *http.Request)
	ServeQuality(w http.ResponseWriter, r *http.Request)
	ServeBarChart(w http.ResponseWriter, r *http.Request)
	ServeChoropleth(w http.ResponseWriter, r *http.Request)
	ServeMapPage(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled refresh time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
type DataValidator interface {
	// ValidateISO3 checks a country code against the ISO 3166-1 alpha-3 registry
	ValidateISO3(code string) error

	// ValidateDatasetName validates a dataset name taken from user input
	ValidateDatasetName(input string) error

	// ReportDataQuality generates a data quality report for prepared records
	ReportDataQuality(dataset entities.Dataset, records []entities.CountryRecord, dropped []entities.DroppedRow) *entities.DataQualityReport
}
