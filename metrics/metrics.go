// Package metrics provides Prometheus metrics for the HTTP server and the dataset pipeline.
// HTTP:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Pipeline:
//   - dataset_rows: Gauge of rows per dataset and stage (source, prepared, dropped)
//   - dataset_refresh_total: Counter of preparations per dataset and result
//   - dataset_refresh_duration_seconds: Histogram of full refresh durations
//   - dataset_quality_issues: Gauge of quality findings per dataset and kind
//
// All metrics are registered with the Prometheus default registry during package initialization.
package metrics

import (
	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Clients holding a rate limiter bucket",
		},
	)

	DatasetRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_rows",
			Help: "Rows of each dataset at each preparation stage",
		},
		[]string{"dataset", "stage"},
	)

	DatasetRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_refresh_total",
			Help: "Dataset preparations by result",
		},
		[]string{"dataset", "result"},
	)

	DatasetRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dataset_refresh_duration_seconds",
			Help:    "Duration of a full catalog refresh",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		},
	)

	DatasetQualityIssues = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_quality_issues",
			Help: "Data quality findings of the current snapshot",
		},
		[]string{"dataset", "kind"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(DatasetRows)
	prometheus.MustRegister(DatasetRefreshTotal)
	prometheus.MustRegister(DatasetRefreshDuration)
	prometheus.MustRegister(DatasetQualityIssues)
}

// RecordPrepared publishes the row counts and quality findings of a prepared dataset
func RecordPrepared(p *entities.PreparedDataset) {
	name := p.Dataset.Name
	dropped := 0
	if p.Quality != nil {
		dropped = len(p.Quality.DroppedRows)
	}

	DatasetRows.WithLabelValues(name, "source").Set(float64(p.SourceRows))
	DatasetRows.WithLabelValues(name, "prepared").Set(float64(len(p.Records)))
	DatasetRows.WithLabelValues(name, "dropped").Set(float64(dropped))
	DatasetRefreshTotal.WithLabelValues(name, "success").Inc()

	q := p.Quality
	if q == nil {
		q = &entities.DataQualityReport{}
	}
	DatasetQualityIssues.WithLabelValues(name, "unmatched_iso3").Set(float64(len(q.UnmatchedISO3)))
	DatasetQualityIssues.WithLabelValues(name, "aliased_iso3").Set(float64(len(q.AliasedISO3)))
	DatasetQualityIssues.WithLabelValues(name, "duplicate_iso3").Set(float64(len(q.DuplicateISO3)))
	DatasetQualityIssues.WithLabelValues(name, "out_of_range_tier").Set(float64(len(q.OutOfRangeTiers)))
	DatasetQualityIssues.WithLabelValues(name, "without_region").Set(float64(q.RecordsWithoutRegion))
}

// RecordFailure counts a failed preparation of a dataset
func RecordFailure(dataset string) {
	DatasetRefreshTotal.WithLabelValues(dataset, "failure").Inc()
}
