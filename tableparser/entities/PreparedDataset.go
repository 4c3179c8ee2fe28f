package entities

import "time"

// PreparedDataset is the immutable result of running a Dataset through the preparer.
type PreparedDataset struct {
	Dataset    Dataset            `json:"dataset"`
	Version    string             `json:"version"`
	PreparedAt time.Time          `json:"preparedAt"`
	SourceRows int                `json:"sourceRows"`
	Records    []CountryRecord    `json:"records"`
	Summary    Summary            `json:"summary"`
	Quality    *DataQualityReport `json:"quality"`
}

// DroppedRow identifies a source row removed for having a missing value.
type DroppedRow struct {
	Line           int      `json:"line"`
	Country        string   `json:"country"`
	MissingColumns []string `json:"missingColumns"`
}

// DataQualityReport provides a summary of data quality issues found while preparing a dataset
type DataQualityReport struct {
	DroppedRows          []DroppedRow `json:"droppedRows"`
	UnmatchedISO3        []string     `json:"unmatchedIso3"`
	AliasedISO3          []string     `json:"aliasedIso3"`
	DuplicateISO3        []string     `json:"duplicateIso3"`
	OutOfRangeTiers      []string     `json:"outOfRangeTiers"`
	RecordsWithoutRegion int          `json:"recordsWithoutRegion"`
}

// HasIssues reports whether any check found something.
func (r *DataQualityReport) HasIssues() bool {
	if r == nil {
		return false
	}
	return len(r.DroppedRows) > 0 || len(r.UnmatchedISO3) > 0 || len(r.AliasedISO3) > 0 ||
		len(r.DuplicateISO3) > 0 || len(r.OutOfRangeTiers) > 0 || r.RecordsWithoutRegion > 0
}
