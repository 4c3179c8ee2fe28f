package entities

// CountryRecord is one prepared row of a dataset: a country or territory with its metric and tier.
type CountryRecord struct {
	CountryName string  `json:"countryName"`
	CountryISO  string  `json:"countryIso"`
	MetricValue float64 `json:"metricValue"`
	Tier        int     `json:"tier"`
	TierLabel   string  `json:"tierLabel"`
	Region      string  `json:"region"`
}
