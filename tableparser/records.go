package tableparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/giygas/opioid-maps/tableparser/entities"
)

// ToCountryRecords reads one CountryRecord per row using the column mapping.
// The tier column must already hold integral labels (see BinarizeTier).
func ToCountryRecords(t *Table, cols entities.ColumnMapping) ([]entities.CountryRecord, error) {
	if err := t.RequireColumns(cols.Required()...); err != nil {
		return nil, err
	}

	records := make([]entities.CountryRecord, 0, t.Len())

	for i := 0; i < t.Len(); i++ {
		metric, err := t.Float(i, cols.Metric)
		if err != nil {
			return nil, err
		}

		tierCell, _ := t.Cell(i, cols.Tier)
		tier, err := strconv.Atoi(tierCell.Value)
		if err != nil || tierCell.Missing {
			return nil, fmt.Errorf("%w: column %q line %d: tier %q is not an integer", ErrTypeCoercion, cols.Tier, t.Line(i), tierCell.Value)
		}

		name, _ := t.Cell(i, cols.Country)
		iso, _ := t.Cell(i, cols.ISO3)

		record := entities.CountryRecord{
			CountryName: name.Value,
			CountryISO:  strings.ToUpper(iso.Value),
			MetricValue: metric,
			Tier:        tier,
			TierLabel:   tierCell.Value,
		}

		if cols.Region != "" {
			if region, _ := t.Cell(i, cols.Region); !region.Missing {
				record.Region = region.Value
			}
		}

		records = append(records, record)
	}

	return records, nil
}
