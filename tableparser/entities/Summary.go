package entities

// ColumnInfo mirrors one line of a dataframe info() listing.
type ColumnInfo struct {
	Name     string `json:"name"`
	NonNull  int    `json:"nonNull"`
	DataType string `json:"dataType"`
}

// NumericSummary holds describe() statistics for a numeric column.
// Std is nil when fewer than two values are present.
type NumericSummary struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Std    *float64 `json:"std"`
	Min    float64  `json:"min"`
	Q25    float64  `json:"25%"`
	Median float64  `json:"50%"`
	Q75    float64  `json:"75%"`
	Max    float64  `json:"max"`
}

// Summary combines the info and describe views of a table.
type Summary struct {
	Rows     int              `json:"rows"`
	Columns  []ColumnInfo     `json:"columns"`
	Describe []NumericSummary `json:"describe"`
}
