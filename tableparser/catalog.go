package tableparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/giygas/opioid-maps/tableparser/entities"
)

// DefaultCatalog returns the two datasets of the opioid study
func DefaultCatalog() []entities.Dataset {
	return []entities.Dataset{
		{
			Name:  "opioid-consumption",
			Title: "Annual mean consumption of opioids, 2015-2017",
			File:  "map_opioidconsum.csv",
			Columns: entities.ColumnMapping{
				Country: "Country",
				ISO3:    "country_ISO",
				Metric:  "meanop_pop",
				Tier:    "decile_op_pop",
				Region:  "Region2",
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
		{
			Name:  "opioid-eml",
			Title: "Opioids listed on national essential medicines lists",
			File:  "EMLopioid_maps.csv",
			Columns: entities.ColumnMapping{
				Country: "Country",
				ISO3:    "country_ISO",
				Metric:  "OpioidEML",
				Tier:    "Quant9_OpioidEML",
				Region:  "Region2",
			},
			TierCount:     9,
			TierLabels:    []string{"0-3", "4", "5", "6", "7", "8", "9", "10-11", "12-19"},
			MetricLabel:   "Number of opioids listed in national essential medicines lists",
			ColorbarTitle: "No. of opioids in EMLs",
			Colorscale:    "Reds",
			ReverseScale:  false,
			HoverColumns:  []string{"OpioidEML"},
		},
	}
}

// LoadCatalog reads a JSON array of datasets. An empty path returns DefaultCatalog.
func LoadCatalog(path string) ([]entities.Dataset, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: catalog %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var datasets []entities.Dataset
	if err := json.Unmarshal(raw, &datasets); err != nil {
		return nil, fmt.Errorf("%w: catalog %s: %v", ErrMalformedInput, path, err)
	}

	if err := validateCatalog(datasets); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	return datasets, nil
}

func validateCatalog(datasets []entities.Dataset) error {
	if len(datasets) == 0 {
		return fmt.Errorf("catalog has no datasets")
	}

	seen := make(map[string]bool, len(datasets))
	for _, ds := range datasets {
		if ds.Name == "" {
			return fmt.Errorf("dataset without name")
		}
		if seen[ds.Name] {
			return fmt.Errorf("duplicate dataset name %q", ds.Name)
		}
		seen[ds.Name] = true

		if ds.File == "" {
			return fmt.Errorf("dataset %q has no file", ds.Name)
		}
		if ds.SourceURL != "" && filepath.IsAbs(ds.File) {
			return fmt.Errorf("dataset %q downloads into the data directory, file must be relative", ds.Name)
		}
		c := ds.Columns
		if c.Country == "" || c.ISO3 == "" || c.Metric == "" || c.Tier == "" {
			return fmt.Errorf("dataset %q has an incomplete column mapping", ds.Name)
		}
		if ds.TierCount <= 0 {
			return fmt.Errorf("dataset %q must declare a positive tierCount", ds.Name)
		}
		if len(ds.TierLabels) > 0 && len(ds.TierLabels) != ds.TierCount {
			return fmt.Errorf("dataset %q has %d tier labels for %d tiers", ds.Name, len(ds.TierLabels), ds.TierCount)
		}
	}
	return nil
}

// FindDataset returns the dataset with the given name
func FindDataset(datasets []entities.Dataset, name string) (entities.Dataset, bool) {
	for _, ds := range datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return entities.Dataset{}, false
}
