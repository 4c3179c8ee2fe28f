package render

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/giygas/opioid-maps/tableparser/entities"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an image encoding of the bar chart
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// Bar chart geometry
const (
	barWidth      = 12
	barSpacing    = 4
	minChartWidth = 800
	chartHeight   = 600
	legendTop     = 40
)

// regionPalette is the default qualitative palette, assigned to regions in order of appearance
var regionPalette = []string{
	"636efa", "ef553b", "00cc96", "ab63fa", "ffa15a",
	"19d3f3", "ff6692", "b6e880", "ff97ff", "fecb52",
}

// unassignedColor fills bars of records without a region
var unassignedColor = drawing.ColorFromHex("9e9e9e")

// BarSpec is what the bar chart draws: one bar per record
type BarSpec struct {
	Title       string
	MetricLabel string
	Records     []entities.CountryRecord
}

// NewBarSpec takes the records and labels of a prepared dataset
func NewBarSpec(ds *entities.PreparedDataset) BarSpec {
	return BarSpec{
		Title:       ds.Dataset.Title,
		MetricLabel: ds.Dataset.MetricLabel,
		Records:     ds.Records,
	}
}

// SortByMetricDesc returns a copy of records ordered by metric, largest first.
// Ties keep their input order.
func SortByMetricDesc(records []entities.CountryRecord) []entities.CountryRecord {
	sorted := make([]entities.CountryRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MetricValue > sorted[j].MetricValue
	})
	return sorted
}

// RegionColors maps each region to a palette colour, in order of first appearance
func RegionColors(records []entities.CountryRecord) ([]string, map[string]drawing.Color) {
	var order []string
	colors := make(map[string]drawing.Color)
	for _, r := range records {
		if r.Region == "" {
			continue
		}
		if _, seen := colors[r.Region]; seen {
			continue
		}
		colors[r.Region] = drawing.ColorFromHex(regionPalette[len(order)%len(regionPalette)])
		order = append(order, r.Region)
	}
	return order, colors
}

// BarChart draws metric by country, bars sorted descending and coloured by region
func BarChart(w io.Writer, spec BarSpec, format Format) error {
	if len(spec.Records) == 0 {
		return fmt.Errorf("no records to chart")
	}

	var provider chart.RendererProvider
	switch format {
	case PNG:
		provider = chart.PNG
	case SVG:
		provider = chart.SVG
	default:
		return fmt.Errorf("unsupported chart format %q", format)
	}

	records := SortByMetricDesc(spec.Records)
	regions, colors := RegionColors(records)

	maxValue := 0.0
	bars := make([]chart.Value, 0, len(records))
	for _, r := range records {
		fill, ok := colors[r.Region]
		if !ok {
			fill = unassignedColor
		}
		bars = append(bars, chart.Value{
			Label: r.CountryName,
			Value: r.MetricValue,
			Style: chart.Style{FillColor: fill, StrokeColor: fill, StrokeWidth: 0},
		})
		maxValue = math.Max(maxValue, r.MetricValue)
	}

	width := len(bars)*(barWidth+barSpacing) + 160
	if width < minChartWidth {
		width = minChartWidth
	}

	graph := chart.BarChart{
		Title:      spec.Title,
		TitleStyle: chart.Style{FontSize: 12},
		Width:      width,
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: legendTop + 30, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.Style{
			FontSize:            7,
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			Name:  spec.MetricLabel,
			Style: chart.Style{FontSize: 9},
			Range: &chart.ContinuousRange{Min: 0, Max: niceMax(maxValue)},
		},
		Bars:     bars,
		Elements: []chart.Renderable{regionLegend(regions, colors)},
	}

	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render bar chart: %w", err)
	}
	return nil
}

// niceMax pads the largest value so the tallest bar does not touch the frame
func niceMax(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v * 1.05
}

// regionLegend draws one swatch and name per region in a row above the plot
func regionLegend(regions []string, colors map[string]drawing.Color) chart.Renderable {
	return func(r chart.Renderer, canvas chart.Box, defaults chart.Style) {
		if len(regions) == 0 {
			return
		}

		const swatch = 10
		x := canvas.Left
		y := canvas.Top - legendTop

		r.SetFont(defaults.Font)
		r.SetFontSize(9)
		r.SetFontColor(drawing.ColorFromHex("333333"))

		for _, region := range regions {
			r.SetFillColor(colors[region])
			r.SetStrokeColor(colors[region])
			r.SetStrokeWidth(0)
			r.MoveTo(x, y)
			r.LineTo(x+swatch, y)
			r.LineTo(x+swatch, y+swatch)
			r.LineTo(x, y+swatch)
			r.Close()
			r.Fill()

			r.Text(region, x+swatch+4, y+swatch)
			x += swatch + 4 + r.MeasureText(region).Width() + 16
		}
	}
}
