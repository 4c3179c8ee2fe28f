// Package render builds the bar chart and choropleth outputs of prepared datasets.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/giygas/opioid-maps/tableparser/entities"
)

// Marker line defaults of the map
const (
	MarkerLineColor = "darkgray"
	MarkerLineWidth = 0.5
	ColorbarTicks   = "outside"
	ColorbarWidth   = 20
)

// Figure is a plotly figure holding one choropleth trace
type Figure struct {
	Data   []ChoroplethTrace `json:"data"`
	Layout Layout            `json:"layout"`
}

// ChoroplethTrace follows the plotly choropleth trace schema
type ChoroplethTrace struct {
	Type           string     `json:"type"`
	LocationMode   string     `json:"locationmode"`
	Locations      []string   `json:"locations"`
	Z              []int      `json:"z"`
	ZMin           int        `json:"zmin"`
	ZMax           int        `json:"zmax"`
	Text           []string   `json:"text"`
	HoverInfo      string     `json:"hoverinfo"`
	Colorscale     Colorscale `json:"colorscale"`
	AutoColorscale bool       `json:"autocolorscale"`
	ReverseScale   bool       `json:"reversescale"`
	Marker         Marker     `json:"marker"`
	ColorBar       ColorBar   `json:"colorbar"`
}

type Marker struct {
	Line MarkerLine `json:"line"`
}

type MarkerLine struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type ColorBar struct {
	Title     Title    `json:"title"`
	TickVals  []int    `json:"tickvals"`
	TickText  []string `json:"ticktext,omitempty"`
	Ticks     string   `json:"ticks"`
	Thickness int      `json:"thickness"`
}

type Title struct {
	Text string `json:"text"`
}

type Layout struct {
	Title Title `json:"title"`
	Geo   Geo   `json:"geo"`
}

type Geo struct {
	ShowFrame      bool       `json:"showframe"`
	ShowCoastlines bool       `json:"showcoastlines"`
	Projection     Projection `json:"projection"`
}

type Projection struct {
	Type string `json:"type"`
}

// ChoroplethOptions overrides the colour settings a dataset declares
type ChoroplethOptions struct {
	Colorscale string
	Reverse    *bool
}

// NewChoropleth builds the world map figure of a prepared dataset: one location per record,
// coloured by tier, with the dataset's tier labels on the colour bar.
func NewChoropleth(ds *entities.PreparedDataset, opts ChoroplethOptions) (*Figure, error) {
	if ds == nil {
		return nil, fmt.Errorf("no dataset to render")
	}
	meta := ds.Dataset

	scaleName := meta.Colorscale
	if opts.Colorscale != "" {
		scaleName = opts.Colorscale
	}
	if scaleName == "" {
		scaleName = "Reds"
	}
	scale, err := LookupColorscale(scaleName)
	if err != nil {
		return nil, err
	}

	reverse := meta.ReverseScale
	if opts.Reverse != nil {
		reverse = *opts.Reverse
	}

	trace := ChoroplethTrace{
		Type:           "choropleth",
		LocationMode:   "ISO-3",
		Locations:      make([]string, 0, len(ds.Records)),
		Z:              make([]int, 0, len(ds.Records)),
		Text:           make([]string, 0, len(ds.Records)),
		HoverInfo:      "text",
		Colorscale:     scale,
		AutoColorscale: false,
		ReverseScale:   reverse,
		Marker:         Marker{Line: MarkerLine{Color: MarkerLineColor, Width: MarkerLineWidth}},
		ColorBar: ColorBar{
			Title:     Title{Text: meta.ColorbarTitle + "<br> "},
			TickVals:  meta.TickValues(),
			TickText:  meta.TierLabels,
			Ticks:     ColorbarTicks,
			Thickness: ColorbarWidth,
		},
	}

	// pin the colour range to the declared tiers so a missing tier does not shift colours
	if meta.TierCount > 0 {
		trace.ZMin, trace.ZMax = 1, meta.TierCount
	}

	for _, r := range ds.Records {
		trace.Locations = append(trace.Locations, r.CountryISO)
		trace.Z = append(trace.Z, r.Tier)
		trace.Text = append(trace.Text, hoverText(meta, r))
	}

	return &Figure{
		Data: []ChoroplethTrace{trace},
		Layout: Layout{
			Title: Title{Text: meta.Title},
			Geo: Geo{
				ShowFrame:      false,
				ShowCoastlines: false,
				Projection:     Projection{Type: "equirectangular"},
			},
		},
	}, nil
}

// hoverText is the country name followed by one line per hover column
func hoverText(meta entities.Dataset, r entities.CountryRecord) string {
	var b strings.Builder
	b.WriteString(r.CountryName)

	for _, column := range meta.HoverColumns {
		var value string
		switch column {
		case meta.Columns.Metric:
			value = strconv.FormatFloat(r.MetricValue, 'g', -1, 64)
		case meta.Columns.Tier:
			value = r.TierLabel
		case meta.Columns.Region:
			value = r.Region
		case meta.Columns.ISO3:
			value = r.CountryISO
		default:
			continue
		}
		b.WriteString("<br>")
		b.WriteString(column)
		b.WriteString(": ")
		b.WriteString(value)
	}

	return b.String()
}
