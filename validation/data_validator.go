// Package validation provides data validation functionality for the opioid maps service.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/giygas/opioid-maps/interfaces"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/tableparser/entities"
	"golang.org/x/text/language"
)

// Pre-compiled patterns, reused for all validations
var (
	// Dataset names: lowercase slug
	datasetNameRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	// ISO 3166-1 alpha-3 shape
	iso3Regex = regexp.MustCompile(`^[A-Z]{3}$`)

	// Substring checks are faster than regex for these
	dangerousPatterns = []string{
		"<script", "javascript:", "vbscript:", "onerror=", "onload=",
		"../", "..\\", "%2e%2e", "file://",
		"' or ", "\" or ", "union select", "drop table", "--",
		"$(", "${", "`",
	}
)

// withdrawnISO3 holds ISO 3166-3 codes, mapped to their successor when there is exactly one.
// x/text still resolves several of them as regions.
var withdrawnISO3 = map[string]string{
	"AFI": "DJI", "ATB": "ATA", "ATN": "ATA", "BUR": "MMR", "BYS": "BLR",
	"CTE": "KIR", "DDR": "DEU", "DHY": "BEN", "FXX": "FRA", "HVO": "BFA",
	"JTN": "UMI", "MID": "UMI", "NHB": "VUT", "PCZ": "PAN", "PUS": "UMI",
	"RHO": "ZWE", "SKM": "IND", "TMP": "TLS", "VDR": "VNM", "WAK": "UMI",
	"YMD": "YEM", "ZAR": "COD",
	"ANT": "", "CSK": "", "GEL": "", "NTZ": "", "PCI": "", "SCG": "",
	"SUN": "", "YUG": "",
}

// maxReported caps how many codes each report list carries
const maxReported = 25

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	extraISO3 map[string]bool
}

// NewDataValidator creates a new data validator.
// extraISO3 lists user-assigned codes accepted as countries, such as XKX for Kosovo.
func NewDataValidator(extraISO3 ...string) interfaces.DataValidator {
	extra := make(map[string]bool, len(extraISO3))
	for _, code := range extraISO3 {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			extra[code] = true
		}
	}
	return &DataValidatorImpl{extraISO3: extra}
}

// ValidateISO3 checks a country code against the ISO 3166-1 alpha-3 registry.
// Deprecated codes that resolve to another country are rejected with the current code in the error.
func (v *DataValidatorImpl) ValidateISO3(code string) error {
	if code == "" {
		return fmt.Errorf("country code cannot be empty")
	}
	if v.extraISO3[code] {
		return nil
	}
	if !iso3Regex.MatchString(code) {
		return fmt.Errorf("country code %q must be three uppercase letters", code)
	}

	if successor, ok := withdrawnISO3[code]; ok {
		if successor == "" {
			return fmt.Errorf("country code %q was withdrawn from ISO 3166-1", code)
		}
		return &AliasError{Code: code, Current: successor}
	}

	region, err := language.ParseRegion(code)
	if err != nil {
		return fmt.Errorf("unknown country code %q", code)
	}
	if canonical := region.Canonicalize(); canonical != region {
		return &AliasError{Code: code, Current: canonical.ISO3()}
	}
	if !region.IsCountry() {
		return fmt.Errorf("country code %q is not a country", code)
	}

	return nil
}

// AliasError reports a deprecated code that maps to a current one
type AliasError struct {
	Code    string
	Current string
}

func (e *AliasError) Error() string {
	return fmt.Sprintf("country code %q is an alias of %q", e.Code, e.Current)
}

// ValidateDatasetName validates a dataset name taken from a URL or the command line
func (v *DataValidatorImpl) ValidateDatasetName(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}

	if len(input) > 64 {
		return fmt.Errorf("dataset name too long: maximum 64 characters")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("dataset name contains potentially dangerous content")
		}
	}

	if !datasetNameRegex.MatchString(input) {
		return fmt.Errorf("dataset name contains invalid characters. Only lowercase letters, digits and single hyphens are allowed")
	}

	return nil
}

// ReportDataQuality checks prepared records of a dataset.
// Nothing here rejects a record: issues are reported and logged, the map still renders.
func (v *DataValidatorImpl) ReportDataQuality(
	dataset entities.Dataset,
	records []entities.CountryRecord,
	dropped []entities.DroppedRow,
) *entities.DataQualityReport {
	report := &entities.DataQualityReport{
		DroppedRows:     dropped,
		UnmatchedISO3:   []string{},
		AliasedISO3:     []string{},
		DuplicateISO3:   []string{},
		OutOfRangeTiers: []string{},
	}
	if report.DroppedRows == nil {
		report.DroppedRows = []entities.DroppedRow{}
	}

	// Check 1: codes the map cannot place
	seen := make(map[string]int, len(records))
	for _, r := range records {
		seen[r.CountryISO]++
		if seen[r.CountryISO] > 1 {
			continue
		}

		if err := v.ValidateISO3(r.CountryISO); err != nil {
			if alias, ok := err.(*AliasError); ok {
				appendCapped(&report.AliasedISO3, alias.Code+"->"+alias.Current)
			} else {
				appendCapped(&report.UnmatchedISO3, r.CountryISO)
			}
		}
	}

	// Check 2: codes appearing on more than one row
	for code, count := range seen {
		if count > 1 {
			report.DuplicateISO3 = append(report.DuplicateISO3, code)
		}
	}
	sort.Strings(report.DuplicateISO3)

	// Check 3: tiers outside 1..TierCount
	for _, r := range records {
		if dataset.TierCount > 0 && (r.Tier < 1 || r.Tier > dataset.TierCount) {
			appendCapped(&report.OutOfRangeTiers, fmt.Sprintf("%s:%d", r.CountryISO, r.Tier))
		}
	}

	// Check 4: records without region (bar chart falls back to a neutral color)
	if dataset.Columns.Region != "" {
		for _, r := range records {
			if strings.TrimSpace(r.Region) == "" {
				report.RecordsWithoutRegion++
			}
		}
	}

	if len(report.DuplicateISO3) > 0 {
		logging.Error("Duplicate country codes detected",
			"dataset", dataset.Name,
			"count", len(report.DuplicateISO3),
			"duplicates", report.DuplicateISO3,
		)
	}

	return report
}

func appendCapped(list *[]string, value string) {
	if len(*list) < maxReported {
		*list = append(*list, value)
	}
}
