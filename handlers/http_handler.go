package handlers

import (
	"bytes"
	"net/http"
	"path"
	"runtime"
	"strconv"
	"time"

	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/render"
	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/go-chi/chi/v5"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
	}
}

// DatasetEntry is one line of the dataset listing
type DatasetEntry struct {
	Name          string    `json:"name"`
	Title         string    `json:"title"`
	Version       string    `json:"version"`
	PreparedAt    time.Time `json:"preparedAt"`
	SourceRows    int       `json:"sourceRows"`
	Records       int       `json:"records"`
	TierCount     int       `json:"tierCount"`
	QualityIssues bool      `json:"qualityIssues"`
}

// DatasetResponse is the body of GET /datasets/{name}
type DatasetResponse struct {
	Dataset    entities.Dataset         `json:"dataset"`
	Version    string                   `json:"version"`
	PreparedAt time.Time                `json:"preparedAt"`
	Records    []entities.CountryRecord `json:"records"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

// lookupDataset resolves the {name} URL parameter, writing a 400 or 404 when it fails
func (h *HTTPHandlerImpl) lookupDataset(w http.ResponseWriter, r *http.Request) (*entities.PreparedDataset, bool) {
	name := chi.URLParam(r, "name")

	if err := h.validator.ValidateDatasetName(name); err != nil {
		logging.Warn("Unusual user input", "name", name, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	ds, found := h.dataStore.GetDataset(name)
	if !found {
		RespondWithError(w, http.StatusNotFound, "Dataset not found")
		return nil, false
	}

	return ds, true
}

// ListDatasets returns every prepared dataset with its row counts and version
func (h *HTTPHandlerImpl) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := h.dataStore.GetDatasets()

	entries := make([]DatasetEntry, 0, len(datasets))
	for _, ds := range datasets {
		entries = append(entries, DatasetEntry{
			Name:          ds.Dataset.Name,
			Title:         ds.Dataset.Title,
			Version:       ds.Version,
			PreparedAt:    ds.PreparedAt,
			SourceRows:    ds.SourceRows,
			Records:       len(ds.Records),
			TierCount:     ds.Dataset.TierCount,
			QualityIssues: ds.Quality.HasIssues(),
		})
	}

	RespondWithJSON(w, http.StatusOK, entries)
}

// ServeDataset returns the prepared records of a dataset.
// The snapshot version is the ETag; a matching If-None-Match gets 304.
func (h *HTTPHandlerImpl) ServeDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookupDataset(w, r)
	if !ok {
		return
	}

	etag := VersionETag(ds.Version)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if CheckETag(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	RespondWithJSON(w, http.StatusOK, DatasetResponse{
		Dataset:    ds.Dataset,
		Version:    ds.Version,
		PreparedAt: ds.PreparedAt,
		Records:    ds.Records,
	})
}

// ServeSummary returns the info and describe views of the source table
func (h *HTTPHandlerImpl) ServeSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookupDataset(w, r)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, ds.Summary)
}

// ServeQuality returns the data quality report of a dataset
func (h *HTTPHandlerImpl) ServeQuality(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookupDataset(w, r)
	if !ok {
		return
	}

	report := ds.Quality
	if report == nil {
		report = &entities.DataQualityReport{}
	}
	RespondWithJSON(w, http.StatusOK, report)
}

// ServeBarChart renders the bar chart as PNG or SVG, chosen by the path extension
func (h *HTTPHandlerImpl) ServeBarChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.lookupDataset(w, r)
	if !ok {
		return
	}

	var format render.Format
	var contentType string
	switch path.Ext(r.URL.Path) {
	case ".png":
		format, contentType = render.PNG, "image/png"
	case ".svg":
		format, contentType = render.SVG, "image/svg+xml"
	default:
		RespondWithError(w, http.StatusBadRequest, "Unsupported image format")
		return
	}

	etag := VersionETag(ds.Version + "-bar-" + string(format))
	w.Header().Set("ETag", etag)
	if CheckETag(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var buf bytes.Buffer
	if err := render.BarChart(&buf, render.NewBarSpec(ds), format); err != nil {
		logging.Error("Failed to render bar chart", "dataset", ds.Dataset.Name, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to render bar chart")
		return
	}

	respondWithBytes(w, contentType, buf.Bytes())
}

// choroplethOptions reads ?colorscale= and ?reverse=, writing a 400 when either is invalid
func choroplethOptions(w http.ResponseWriter, r *http.Request) (render.ChoroplethOptions, bool) {
	var opts render.ChoroplethOptions
	query := r.URL.Query()

	if name := query.Get("colorscale"); name != "" {
		if _, err := render.LookupColorscale(name); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return opts, false
		}
		opts.Colorscale = name
	}

	if raw := query.Get("reverse"); raw != "" {
		reverse, err := strconv.ParseBool(raw)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid reverse value, expected true or false")
			return opts, false
		}
		opts.Reverse = &reverse
	}

	return opts, true
}

func (h *HTTPHandlerImpl) figure(w http.ResponseWriter, r *http.Request) (*render.Figure, bool) {
	ds, ok := h.lookupDataset(w, r)
	if !ok {
		return nil, false
	}

	opts, ok := choroplethOptions(w, r)
	if !ok {
		return nil, false
	}

	fig, err := render.NewChoropleth(ds, opts)
	if err != nil {
		logging.Error("Failed to build choropleth", "dataset", ds.Dataset.Name, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to build choropleth")
		return nil, false
	}
	return fig, true
}

// ServeChoropleth returns the plotly figure of a dataset as JSON
func (h *HTTPHandlerImpl) ServeChoropleth(w http.ResponseWriter, r *http.Request) {
	fig, ok := h.figure(w, r)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, fig)
}

// ServeMapPage returns a standalone HTML page drawing the choropleth
func (h *HTTPHandlerImpl) ServeMapPage(w http.ResponseWriter, r *http.Request) {
	fig, ok := h.figure(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.WriteMapPage(&buf, fig); err != nil {
		logging.Error("Failed to render map page", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to render map page")
		return
	}

	respondWithBytes(w, "text/html; charset=utf-8", buf.Bytes())
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Duration(0)
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	response := HealthResponse{
		Status: status,
		Uptime: formatUptimeHuman(uptime),
		Data:   details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	RespondWithJSON(w, httpStatus, response)
}
