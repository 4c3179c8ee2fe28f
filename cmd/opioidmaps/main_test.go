package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giygas/opioid-maps/tableparser/entities"
)

const consumptionCSV = `Country,country_ISO,meanop_pop,decile_op_pop,Region2
Austria,AUT,48.2,10,Europe
Chad,TCD,0.0002,2,Africa
Somalia,SOM,,1,Africa
India,IND,0.16,5,Asia
Atlantis,QQQ,1.1,7,Oceania
`

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "map_opioidconsum.csv"), []byte(consumptionCSV), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribeCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "describe", filepath.Join(dir, "map_opioidconsum.csv"))
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	for _, want := range []string{"RangeIndex: 5 entries", "meanop_pop", "4 non-null", "float64", "object"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestDescribeCommandMissingFile(t *testing.T) {
	if _, err := execute(t, "describe", filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestPrepareCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "prepare", "opioid-consumption", "--data-dir", dir, "--json")
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	var records []entities.CountryRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("Invalid JSON: %v\n%s", err, out)
	}
	if len(records) != 4 {
		t.Fatalf("Expected 4 records after dropping Somalia, got %d", len(records))
	}

	got := make([]string, len(records))
	for i, r := range records {
		got[i] = r.TierLabel
	}
	if strings.Join(got, ",") != "02,05,07,10" {
		t.Errorf("Expected tier order 02,05,07,10, got %v", got)
	}
}

func TestPrepareCommandHead(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "prepare", "opioid-consumption", "--data-dir", dir, "--head", "1")
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if !strings.Contains(out, "Chad") || strings.Contains(out, "Austria") {
		t.Errorf("Expected only the first record:\n%s", out)
	}
	if !strings.Contains(out, "4 of 5 source rows kept") {
		t.Errorf("Expected row counts:\n%s", out)
	}
}

func TestUnknownDataset(t *testing.T) {
	_, err := execute(t, "prepare", "opioid-unknown", "--data-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "opioid-consumption") {
		t.Errorf("Expected error listing available datasets, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "validate", "opioid-consumption", "--data-dir", dir)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	var report entities.DataQualityReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(report.DroppedRows) != 1 || report.DroppedRows[0].Country != "Somalia" {
		t.Errorf("Expected Somalia dropped, got %+v", report.DroppedRows)
	}
	if len(report.UnmatchedISO3) != 1 || report.UnmatchedISO3[0] != "QQQ" {
		t.Errorf("Expected QQQ unmatched, got %v", report.UnmatchedISO3)
	}

	if _, err := execute(t, "validate", "opioid-consumption", "--data-dir", dir, "--strict"); !errors.Is(err, errQualityIssues) {
		t.Errorf("Expected strict mode to fail, got %v", err)
	}
}

func TestBarCommand(t *testing.T) {
	dir := writeDataDir(t)
	output := filepath.Join(t.TempDir(), "charts", "consumption.svg")

	if _, err := execute(t, "bar", "opioid-consumption", "--data-dir", dir, "-o", output); err != nil {
		t.Fatalf("bar failed: %v", err)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Output not written: %v", err)
	}
	if !strings.Contains(string(raw), "<svg") {
		t.Error("Expected an SVG document")
	}
}

func TestMapCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "map", "opioid-consumption", "--data-dir", dir, "-o", "-", "--json", "--colorscale", "Viridis", "--reverse=false")
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}

	var fig struct {
		Data []struct {
			Locations    []string `json:"locations"`
			Colorscale   string   `json:"colorscale"`
			ReverseScale bool     `json:"reversescale"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &fig); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	trace := fig.Data[0]
	if len(trace.Locations) != 4 || trace.Colorscale != "Viridis" || trace.ReverseScale {
		t.Errorf("Unexpected trace %+v", trace)
	}

	page := filepath.Join(t.TempDir(), "map.html")
	if _, err := execute(t, "map", "opioid-consumption", "--data-dir", dir, "-o", page); err != nil {
		t.Fatalf("map page failed: %v", err)
	}
	if raw, _ := os.ReadFile(page); !strings.Contains(string(raw), "Plotly.newPlot") {
		t.Error("Expected an HTML page drawing the map")
	}
}

func TestFetchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, consumptionCSV)
	}))
	defer srv.Close()

	catalog := []entities.Dataset{{
		Name:      "opioid-consumption",
		File:      "remote/consumption.csv",
		SourceURL: srv.URL + "/consumption.csv",
		Columns: entities.ColumnMapping{
			Country: "Country", ISO3: "country_ISO", Metric: "meanop_pop", Tier: "decile_op_pop",
		},
		TierCount: 10,
	}}
	raw, _ := json.Marshal(catalog)
	catalogPath := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(catalogPath, raw, 0600); err != nil {
		t.Fatal(err)
	}

	dataDir := t.TempDir()
	out, err := execute(t, "fetch", "--catalog", catalogPath, "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(out, "opioid-consumption:") {
		t.Errorf("Unexpected output %s", out)
	}

	got, err := os.ReadFile(filepath.Join(dataDir, "remote", "consumption.csv"))
	if err != nil || string(got) != consumptionCSV {
		t.Errorf("Downloaded file mismatch: %v", err)
	}
}

func TestFetchCommandWithoutSource(t *testing.T) {
	out, err := execute(t, "fetch", "--data-dir", t.TempDir())
	if err != nil {
		t.Fatalf("fetch of built-in catalog should skip, got %v", err)
	}
	if !strings.Contains(out, "no source URL, skipped") {
		t.Errorf("Expected skip messages, got %s", out)
	}

	if _, err := execute(t, "fetch", "opioid-eml", "--data-dir", t.TempDir()); err == nil {
		t.Error("Expected error when the requested dataset has no source URL")
	}
}

func TestPrintSummaryTables(t *testing.T) {
	summary := entities.Summary{
		Rows: 2,
		Columns: []entities.ColumnInfo{
			{Name: "Country", NonNull: 2, DataType: "object"},
			{Name: "meanop_pop", NonNull: 1, DataType: "float64"},
		},
		Describe: []entities.NumericSummary{
			{Column: "meanop_pop", Count: 1, Mean: 1.5, Min: 1.5, Q25: 1.5, Median: 1.5, Q75: 1.5, Max: 1.5},
		},
	}

	var buf bytes.Buffer
	if err := printSummary(&buf, summary); err != nil {
		t.Fatalf("printSummary failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"RangeIndex: 2 entries", "NON-NULL COUNT", "1 non-null", "25%", "NaN", "1.5", "+-"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPrepareCommandTable(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "prepare", "opioid-consumption", "--data-dir", dir)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	for _, want := range []string{"COUNTRY", "ISO3", "TCD", "0.0002", "02", "Africa"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}
