package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

// PlotlyScript is the plotly.js bundle the map page loads
const PlotlyScript = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var pageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.Script}}"></script>
<style>
  body { margin: 0; font-family: sans-serif; }
  #map { width: 100vw; height: 100vh; }
</style>
</head>
<body>
<div id="map"></div>
<script>
  const figure = {{.Figure}};
  Plotly.newPlot("map", figure.data, figure.layout, {responsive: true});
</script>
</body>
</html>
`))

type pageData struct {
	Title  string
	Script string
	Figure template.JS
}

// WriteMapPage writes a standalone HTML page that draws fig with plotly.js
func WriteMapPage(w io.Writer, fig *Figure) error {
	raw, err := json.Marshal(fig)
	if err != nil {
		return fmt.Errorf("failed to encode figure: %w", err)
	}

	// json.Marshal escapes <, > and & so the figure cannot close the script element
	return pageTemplate.Execute(w, pageData{
		Title:  fig.Layout.Title.Text,
		Script: PlotlyScript,
		Figure: template.JS(raw),
	})
}
