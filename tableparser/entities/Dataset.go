package entities

// ColumnMapping names the source columns that feed a CountryRecord.
type ColumnMapping struct {
	Country string `json:"country"`
	ISO3    string `json:"iso3"`
	Metric  string `json:"metric"`
	Tier    string `json:"tier"`
	Region  string `json:"region"`
}

// Required returns the mapped column names in a stable order.
// Region is optional and only returned when set.
func (c ColumnMapping) Required() []string {
	cols := []string{c.Country, c.ISO3, c.Metric, c.Tier}
	if c.Region != "" {
		cols = append(cols, c.Region)
	}
	return cols
}

// Dataset is a catalog entry describing where a table lives and how it is charted.
type Dataset struct {
	Name          string        `json:"name"`
	Title         string        `json:"title"`
	File          string        `json:"file"`
	SourceURL     string        `json:"sourceUrl,omitempty"`
	Columns       ColumnMapping `json:"columns"`
	TierCount     int           `json:"tierCount"`
	TierLabels    []string      `json:"tierLabels"`
	MetricLabel   string        `json:"metricLabel"`
	ColorbarTitle string        `json:"colorbarTitle"`
	Colorscale    string        `json:"colorscale"`
	ReverseScale  bool          `json:"reverseScale"`
	HoverColumns  []string      `json:"hoverColumns,omitempty"`
}

// TickValues returns the colourbar tick positions 1..TierCount.
func (d Dataset) TickValues() []int {
	ticks := make([]int, d.TierCount)
	for i := range ticks {
		ticks[i] = i + 1
	}
	return ticks
}
