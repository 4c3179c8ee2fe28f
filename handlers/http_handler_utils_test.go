package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/go-chi/chi/v5"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

func createConsumptionDataset(version string) *entities.PreparedDataset {
	return &entities.PreparedDataset{
		Dataset: entities.Dataset{
			Name:  "opioid-consumption",
			Title: "Annual mean consumption of opioids, 2015-2017",
			File:  "map_opioidconsum.csv",
			Columns: entities.ColumnMapping{
				Country: "Country", ISO3: "country_ISO", Metric: "meanop_pop", Tier: "decile_op_pop", Region: "Region2",
			},
			TierCount: 10,
			TierLabels: []string{
				"0", ".0002-.003", ".004-.05", ".05-0.15", ".16-.328",
				".332-.51", ".55-1.02", "1.03-1.76", "1.8-5.6", "6.2-48",
			},
			MetricLabel:   "Annual mean consumption of opioids (kg per 100,000 population)",
			ColorbarTitle: "kg per 100,000",
			Colorscale:    "RdYlBu10",
			ReverseScale:  true,
			HoverColumns:  []string{"meanop_pop"},
		},
		Version:    version,
		PreparedAt: time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC),
		SourceRows: 4,
		Records: []entities.CountryRecord{
			{CountryName: "Chad", CountryISO: "TCD", MetricValue: 0.0002, Tier: 2, TierLabel: "02", Region: "Africa"},
			{CountryName: "India", CountryISO: "IND", MetricValue: 0.16, Tier: 5, TierLabel: "05", Region: "Asia"},
			{CountryName: "Austria", CountryISO: "AUT", MetricValue: 48, Tier: 10, TierLabel: "10", Region: "Europe"},
		},
		Summary: entities.Summary{
			Rows: 4,
			Columns: []entities.ColumnInfo{
				{Name: "Country", NonNull: 4, DataType: "object"},
				{Name: "meanop_pop", NonNull: 3, DataType: "float64"},
			},
		},
		Quality: &entities.DataQualityReport{
			DroppedRows: []entities.DroppedRow{{Line: 5, Country: "Somalia", MissingColumns: []string{"meanop_pop"}}},
		},
	}
}

func createEMLDataset(version string) *entities.PreparedDataset {
	return &entities.PreparedDataset{
		Dataset: entities.Dataset{
			Name:          "opioid-eml",
			Title:         "Opioids listed on national essential medicines lists",
			TierCount:     9,
			TierLabels:    []string{"0-3", "4", "5", "6", "7", "8", "9", "10-11", "12-19"},
			ColorbarTitle: "No. of opioids in EMLs",
			Colorscale:    "Reds",
		},
		Version: version,
		Records: []entities.CountryRecord{
			{CountryName: "France", CountryISO: "FRA", MetricValue: 12, Tier: 9, TierLabel: "9", Region: "Europe"},
		},
	}
}

// ============================================================================
// MOCK BUILDERS
// ============================================================================

// MockDataStore implements interfaces.DataStore for handler tests
type MockDataStore struct {
	datasets    map[string]*entities.PreparedDataset
	lastUpdated time.Time
	updating    bool
	startTime   time.Time
}

func (m *MockDataStore) GetDatasets() []*entities.PreparedDataset {
	out := make([]*entities.PreparedDataset, 0, len(m.datasets))
	for _, name := range []string{"opioid-consumption", "opioid-eml"} {
		if ds, ok := m.datasets[name]; ok {
			out = append(out, ds)
		}
	}
	return out
}

func (m *MockDataStore) GetDataset(name string) (*entities.PreparedDataset, bool) {
	ds, ok := m.datasets[name]
	return ds, ok
}

func (m *MockDataStore) GetLastUpdated() time.Time     { return m.lastUpdated }
func (m *MockDataStore) IsUpdating() bool              { return m.updating }
func (m *MockDataStore) GetServerStartTime() time.Time { return m.startTime }
func (m *MockDataStore) BeginUpdate() bool             { return true }
func (m *MockDataStore) EndUpdate()                    {}

func (m *MockDataStore) UpdateData(prepared map[string]*entities.PreparedDataset) {
	for name, ds := range prepared {
		m.datasets[name] = ds
	}
}

// MockDataStoreBuilder provides fluent interface for building mock data stores
type MockDataStoreBuilder struct {
	mock *MockDataStore
}

func NewMockDataStoreBuilder() *MockDataStoreBuilder {
	return &MockDataStoreBuilder{
		mock: &MockDataStore{
			datasets:    make(map[string]*entities.PreparedDataset),
			lastUpdated: time.Now(),
			startTime:   time.Now().Add(-time.Hour),
		},
	}
}

func (b *MockDataStoreBuilder) WithDataset(ds *entities.PreparedDataset) *MockDataStoreBuilder {
	b.mock.datasets[ds.Dataset.Name] = ds
	return b
}

func (b *MockDataStoreBuilder) Build() *MockDataStore {
	return b.mock
}

// MockDataValidator accepts dataset names from a fixed rule
type MockDataValidator struct {
	nameErr error
}

func (m *MockDataValidator) ValidateISO3(code string) error { return nil }

func (m *MockDataValidator) ValidateDatasetName(input string) error {
	if m.nameErr != nil {
		return m.nameErr
	}
	if input == "" || input == "../etc" {
		return fmt.Errorf("invalid dataset name %q", input)
	}
	return nil
}

func (m *MockDataValidator) ReportDataQuality(entities.Dataset, []entities.CountryRecord, []entities.DroppedRow) *entities.DataQualityReport {
	return &entities.DataQualityReport{}
}

// MockHealthChecker returns a canned health result
type MockHealthChecker struct {
	status     string
	details    map[string]any
	httpStatus int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.details, m.httpStatus
}

func (m *MockHealthChecker) CalculateNextUpdate() time.Time { return time.Time{} }

// ============================================================================
// REQUEST HELPERS
// ============================================================================

func newTestHandler(store *MockDataStore) *HTTPHandlerImpl {
	return NewHTTPHandler(store, &MockDataValidator{}, &MockHealthChecker{
		status:     "healthy",
		details:    map[string]any{"datasets": 2},
		httpStatus: http.StatusOK,
	}).(*HTTPHandlerImpl)
}

func defaultStore() *MockDataStore {
	return NewMockDataStoreBuilder().
		WithDataset(createConsumptionDataset("v1")).
		WithDataset(createEMLDataset("v1")).
		Build()
}

// newDatasetRequest builds a request with the {name} route parameter set
func newDatasetRequest(target, name string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("name", name)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
