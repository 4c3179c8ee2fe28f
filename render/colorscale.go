package render

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Stop is one colour of a continuous colour scale at a position in [0, 1]
type Stop struct {
	Position float64
	Color    string
}

// Colorscale is either a plotly built-in scale referenced by name or an explicit list of stops
type Colorscale struct {
	Name  string
	Stops []Stop
}

// rdYlBu10 is the ten-stop diverging red, yellow, blue scale
var rdYlBu10 = []string{
	"rgb(165,0,38)",
	"rgb(215,48,39)",
	"rgb(244,109,67)",
	"rgb(253,174,97)",
	"rgb(254,224,144)",
	"rgb(224,243,248)",
	"rgb(171,217,233)",
	"rgb(116,173,209)",
	"rgb(69,117,180)",
	"rgb(49,54,149)",
}

var colorscales = map[string]Colorscale{
	"RdYlBu10": {Name: "RdYlBu10", Stops: evenStops(rdYlBu10)},
	"Reds":     {Name: "Reds"},
	"Blues":    {Name: "Blues"},
	"Viridis":  {Name: "Viridis"},
}

func evenStops(colors []string) []Stop {
	stops := make([]Stop, len(colors))
	last := float64(len(colors) - 1)
	for i, c := range colors {
		pos := 0.0
		if last > 0 {
			pos = float64(i) / last
		}
		stops[i] = Stop{Position: pos, Color: c}
	}
	return stops
}

// LookupColorscale returns a known colour scale by name
func LookupColorscale(name string) (Colorscale, error) {
	cs, ok := colorscales[name]
	if !ok {
		return Colorscale{}, fmt.Errorf("unknown colorscale %q, available: %v", name, ColorscaleNames())
	}
	return cs, nil
}

// ColorscaleNames lists the known colour scales
func ColorscaleNames() []string {
	names := make([]string, 0, len(colorscales))
	for name := range colorscales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON writes the plotly form: a name string for built-ins, [[pos, color], ...] otherwise
func (c Colorscale) MarshalJSON() ([]byte, error) {
	if len(c.Stops) == 0 {
		return json.Marshal(c.Name)
	}
	pairs := make([][2]any, len(c.Stops))
	for i, s := range c.Stops {
		pairs[i] = [2]any{s.Position, s.Color}
	}
	return json.Marshal(pairs)
}
