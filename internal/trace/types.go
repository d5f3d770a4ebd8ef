// Package trace builds a Plotly-compatible map figure (traces + layout) from
// a LayerBundle, mirroring the Mapbox scattermapbox figures the frontend
// consumes — grounded on original_source/backend/plotly/build_map.py,
// traces.py, types.py and view.py.
package trace

// Marker is a scattermapbox marker spec. Size/Color may hold either a
// scalar or a per-point slice (cluster markers vary size by point count),
// so both are left untyped the way the teacher's dict-based traces did.
type Marker struct {
	Size  any    `json:"size,omitempty"`
	Color any    `json:"color,omitempty"`
	Line  *Line  `json:"line,omitempty"`
}

// Line is a scattermapbox line style.
type Line struct {
	Color string `json:"color,omitempty"`
	Width any    `json:"width,omitempty"`
}

// Trace is one scattermapbox layer in the figure's data array.
type Trace struct {
	Type            string   `json:"type"`
	Name            string   `json:"name,omitempty"`
	Lon             []any    `json:"lon"`
	Lat             []any    `json:"lat"`
	Mode            string   `json:"mode,omitempty"`
	Text            []string `json:"text,omitempty"`
	TextPosition    string   `json:"textposition,omitempty"`
	Fill            string   `json:"fill,omitempty"`
	FillColor       string   `json:"fillcolor,omitempty"`
	Line            *Line    `json:"line,omitempty"`
	Marker          *Marker  `json:"marker,omitempty"`
	HoverInfo       string   `json:"hoverinfo,omitempty"`
	HoverTemplate   string   `json:"hovertemplate,omitempty"`
	ShowLegend      *bool    `json:"showlegend,omitempty"`
}

// Mapbox is the layout.mapbox block: camera + basemap style.
type Mapbox struct {
	Center map[string]float64 `json:"center"`
	Zoom   float64            `json:"zoom"`
	Style  string              `json:"style"`
}

// Legend positions the figure legend in the top-right corner.
type Legend struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	XAnchor      string  `json:"xanchor"`
	YAnchor      string  `json:"yanchor"`
	BGColor      string  `json:"bgcolor"`
	BorderColor  string  `json:"bordercolor"`
	BorderWidth  int     `json:"borderwidth"`
	Font         map[string]any `json:"font"`
}

// HighlightMeta echoes the active highlight back to the frontend.
type HighlightMeta struct {
	LayerID    string   `json:"layerId"`
	FeatureIDs []string `json:"featureIds"`
	Title      string   `json:"title"`
}

// Stats is the HUD/telemetry block summarizing what was actually rendered.
type Stats struct {
	ClusterMode             bool `json:"clusterMode"`
	RenderedPoints          int  `json:"renderedPoints"`
	RenderedLines           int  `json:"renderedLines"`
	RenderedPolygons        int  `json:"renderedPolygons"`
	RenderedClusters        int  `json:"renderedClusters"`
	RenderedHighlightPoints int  `json:"renderedHighlightPoints"`
	LineVertices            int  `json:"lineVertices"`
	PolyVertices            int  `json:"polyVertices"`
}

// Meta is layout.meta: the highlight echo plus render stats.
type Meta struct {
	Highlight *HighlightMeta `json:"highlight,omitempty"`
	Stats     Stats          `json:"stats"`
}

// Layout is the figure's layout block.
type Layout struct {
	Mapbox     Mapbox `json:"mapbox"`
	ShowLegend bool   `json:"showlegend"`
	Legend     Legend `json:"legend"`
	Meta       Meta   `json:"meta"`
}

// Plot is the complete Plotly figure returned to the frontend.
type Plot struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}
