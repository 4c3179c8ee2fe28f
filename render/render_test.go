package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/giygas/opioid-maps/tableparser/entities"
)

func consumptionDataset() *entities.PreparedDataset {
	return &entities.PreparedDataset{
		Dataset: entities.Dataset{
			Name:  "opioid-consumption",
			Title: "Annual mean consumption of opioids, 2015-2017",
			Columns: entities.ColumnMapping{
				Country: "Country", ISO3: "country_ISO", Metric: "meanop_pop", Tier: "decile_op_pop", Region: "Region2",
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
		Records: []entities.CountryRecord{
			{CountryName: "Chad", CountryISO: "TCD", MetricValue: 0.0002, Tier: 2, TierLabel: "02", Region: "Africa"},
			{CountryName: "Austria", CountryISO: "AUT", MetricValue: 48, Tier: 10, TierLabel: "10", Region: "Europe"},
			{CountryName: "India", CountryISO: "IND", MetricValue: 0.16, Tier: 5, TierLabel: "05", Region: "Asia"},
			{CountryName: "France", CountryISO: "FRA", MetricValue: 5.1, Tier: 9, TierLabel: "09", Region: "Europe"},
		},
	}
}

func TestSortByMetricDesc(t *testing.T) {
	records := consumptionDataset().Records
	sorted := SortByMetricDesc(records)

	want := []string{"Austria", "France", "India", "Chad"}
	for i, name := range want {
		if sorted[i].CountryName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, sorted[i].CountryName)
		}
	}
	if records[0].CountryName != "Chad" {
		t.Error("SortByMetricDesc must not reorder its input")
	}
}

func TestSortByMetricDescStable(t *testing.T) {
	records := []entities.CountryRecord{
		{CountryName: "A", MetricValue: 1},
		{CountryName: "B", MetricValue: 2},
		{CountryName: "C", MetricValue: 1},
	}
	sorted := SortByMetricDesc(records)
	if sorted[1].CountryName != "A" || sorted[2].CountryName != "C" {
		t.Errorf("ties should keep input order, got %v", sorted)
	}
}

func TestRegionColors(t *testing.T) {
	records := SortByMetricDesc(consumptionDataset().Records)
	records = append(records, entities.CountryRecord{CountryName: "Nowhere"})

	order, colors := RegionColors(records)

	if strings.Join(order, ",") != "Europe,Asia,Africa" {
		t.Errorf("regions should follow first appearance, got %v", order)
	}
	if len(colors) != 3 {
		t.Errorf("expected 3 colours, got %d", len(colors))
	}
	if colors["Europe"] == colors["Asia"] {
		t.Error("regions should get distinct colours")
	}
}

func TestBarChartPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := BarChart(&buf, NewBarSpec(consumptionDataset()), PNG); err != nil {
		t.Fatalf("BarChart failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestBarChartSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := BarChart(&buf, NewBarSpec(consumptionDataset()), SVG); err != nil {
		t.Fatalf("BarChart failed: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("output is not an SVG")
	}
}

func TestBarChartErrors(t *testing.T) {
	var buf bytes.Buffer

	if err := BarChart(&buf, BarSpec{}, PNG); err == nil {
		t.Error("expected error without records")
	}
	if err := BarChart(&buf, NewBarSpec(consumptionDataset()), Format("gif")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestNiceMax(t *testing.T) {
	if niceMax(0) != 1 {
		t.Error("zero max should fall back to 1")
	}
	if niceMax(100) != 105 {
		t.Errorf("expected 105, got %v", niceMax(100))
	}
}

func TestNewChoropleth(t *testing.T) {
	fig, err := NewChoropleth(consumptionDataset(), ChoroplethOptions{})
	if err != nil {
		t.Fatalf("NewChoropleth failed: %v", err)
	}

	trace := fig.Data[0]
	if trace.Type != "choropleth" || trace.HoverInfo != "text" {
		t.Errorf("unexpected trace type/hoverinfo: %s/%s", trace.Type, trace.HoverInfo)
	}
	if len(trace.Locations) != 4 || trace.Locations[1] != "AUT" || trace.Z[1] != 10 {
		t.Errorf("locations and z should follow records, got %v %v", trace.Locations, trace.Z)
	}
	if trace.Text[0] != "Chad<br>meanop_pop: 0.0002" {
		t.Errorf("unexpected hover text %q", trace.Text[0])
	}
	if !trace.ReverseScale || trace.AutoColorscale {
		t.Error("expected reversed, non-automatic colour scale")
	}
	if trace.ZMin != 1 || trace.ZMax != 10 {
		t.Errorf("expected z range 1..10, got %d..%d", trace.ZMin, trace.ZMax)
	}
	if len(trace.ColorBar.TickVals) != 10 || trace.ColorBar.TickText[9] != "6.2-48" {
		t.Errorf("unexpected colour bar %+v", trace.ColorBar)
	}
	if trace.Marker.Line.Color != "darkgray" || trace.Marker.Line.Width != 0.5 {
		t.Errorf("unexpected marker line %+v", trace.Marker.Line)
	}
	if fig.Layout.Geo.Projection.Type != "equirectangular" {
		t.Errorf("unexpected projection %s", fig.Layout.Geo.Projection.Type)
	}
}

func TestChoroplethJSON(t *testing.T) {
	fig, err := NewChoropleth(consumptionDataset(), ChoroplethOptions{})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(fig)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	trace := decoded["data"].([]any)[0].(map[string]any)
	scale := trace["colorscale"].([]any)
	if len(scale) != 10 {
		t.Fatalf("expected 10 stops, got %d", len(scale))
	}
	first := scale[0].([]any)
	last := scale[9].([]any)
	if first[0].(float64) != 0 || first[1] != "rgb(165,0,38)" {
		t.Errorf("unexpected first stop %v", first)
	}
	if last[0].(float64) != 1 || last[1] != "rgb(49,54,149)" {
		t.Errorf("unexpected last stop %v", last)
	}

	geo := decoded["layout"].(map[string]any)["geo"].(map[string]any)
	if geo["showframe"] != false || geo["showcoastlines"] != false {
		t.Errorf("frame and coastlines must be explicitly off, got %v", geo)
	}
	if trace["colorbar"].(map[string]any)["ticks"] != "outside" {
		t.Error("colour bar ticks should be outside")
	}
}

func TestChoroplethOverrides(t *testing.T) {
	reverse := false
	fig, err := NewChoropleth(consumptionDataset(), ChoroplethOptions{Colorscale: "Viridis", Reverse: &reverse})
	if err != nil {
		t.Fatal(err)
	}

	raw, _ := json.Marshal(fig.Data[0].Colorscale)
	if string(raw) != `"Viridis"` {
		t.Errorf("built-in scales should be referenced by name, got %s", raw)
	}
	if fig.Data[0].ReverseScale {
		t.Error("reverse override not applied")
	}

	if _, err := NewChoropleth(consumptionDataset(), ChoroplethOptions{Colorscale: "Rainbow"}); err == nil {
		t.Error("expected error for unknown colour scale")
	}
	if _, err := NewChoropleth(nil, ChoroplethOptions{}); err == nil {
		t.Error("expected error for nil dataset")
	}
}

func TestLookupColorscale(t *testing.T) {
	for _, name := range ColorscaleNames() {
		if _, err := LookupColorscale(name); err != nil {
			t.Errorf("listed scale %s should resolve: %v", name, err)
		}
	}
	cs, _ := LookupColorscale("RdYlBu10")
	if len(cs.Stops) != 10 || cs.Stops[1].Position != 1.0/9 {
		t.Errorf("RdYlBu10 should have 10 even stops, got %+v", cs.Stops)
	}
}

func TestWriteMapPage(t *testing.T) {
	ds := consumptionDataset()
	ds.Records[0].CountryName = "</script><b>x</b>"

	fig, err := NewChoropleth(ds, ChoroplethOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMapPage(&buf, fig); err != nil {
		t.Fatalf("WriteMapPage failed: %v", err)
	}

	page := buf.String()
	if !strings.Contains(page, PlotlyScript) {
		t.Error("page should load plotly.js")
	}
	if !strings.Contains(page, "<title>Annual mean consumption of opioids, 2015-2017</title>") {
		t.Error("page title missing")
	}
	if strings.Count(page, "</script>") != 2 {
		t.Error("figure data must not close the script element")
	}
	if !strings.Contains(page, `"type":"choropleth"`) {
		t.Error("figure JSON missing from page")
	}
}
