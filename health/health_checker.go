// Package health provides health checking functionality for the opioid maps service.
package health

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/giygas/opioid-maps/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	refreshAt []time.Duration // offsets from midnight, sorted
	expected  int
	now       func() time.Time
}

// NewHealthChecker creates a health checker. refreshAt holds HH:MM times of day;
// expected is the number of catalog datasets.
func NewHealthChecker(dataStore interfaces.DataStore, refreshAt []string, expected int) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		refreshAt: parseTimesOfDay(refreshAt),
		expected:  expected,
		now:       time.Now,
	}
}

func parseTimesOfDay(times []string) []time.Duration {
	offsets := make([]time.Duration, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			continue
		}
		offsets = append(offsets, time.Duration(parsed.Hour())*time.Hour+time.Duration(parsed.Minute())*time.Minute)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

// HealthCheck returns the health status, its details and the matching HTTP status
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	datasets := h.dataStore.GetDatasets()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case len(datasets) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case len(datasets) < h.expected:
		status = "degraded"
		httpStatus = http.StatusOK

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	rows := make(map[string]int, len(datasets))
	qualityIssues := 0
	for _, ds := range datasets {
		rows[ds.Dataset.Name] = len(ds.Records)
		if ds.Quality.HasIssues() {
			qualityIssues++
		}
	}

	data = map[string]any{
		"last_update":          lastUpdate.Format(time.RFC3339),
		"data_age_hours":       math.Round(dataAge.Hours()*10) / 10,
		"datasets":             len(datasets),
		"expected_datasets":    h.expected,
		"records":              rows,
		"datasets_with_issues": qualityIssues,
		"is_updating":          isUpdating,
		"next_update":          h.CalculateNextUpdate().Format(time.RFC3339),
		"uptime_seconds":       uptimeSeconds(h.dataStore.GetServerStartTime(), h.now()),
	}

	return status, data, httpStatus
}

func uptimeSeconds(start, now time.Time) int64 {
	if start.IsZero() {
		return 0
	}
	return int64(now.Sub(start).Seconds())
}

// CalculateNextUpdate returns the next scheduled refresh time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := h.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if len(h.refreshAt) == 0 {
		return midnight.AddDate(0, 0, 1)
	}

	for _, offset := range h.refreshAt {
		if next := midnight.Add(offset); now.Before(next) {
			return next
		}
	}

	return midnight.AddDate(0, 0, 1).Add(h.refreshAt[0])
}
