package trace

import (
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mapagent/internal/lod"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

func idMatches(fid string, ids map[string]struct{}) bool {
	if _, ok := ids[fid]; ok {
		return true
	}
	base, _, found := strings.Cut(fid, ":")
	if !found || base == "" {
		return false
	}
	_, ok := ids[base]
	return ok
}

// AOIBBox draws the viewport AOI rectangle as a thin, unlabeled outline.
func AOIBBox(aoi types.BBox) Trace {
	b := aoi.Normalized()
	lons := []any{b.MinLon, b.MaxLon, b.MaxLon, b.MinLon, b.MinLon}
	lats := []any{b.MinLat, b.MinLat, b.MaxLat, b.MaxLat, b.MinLat}
	no := false
	return Trace{
		Type:       "scattermapbox",
		Name:       "AOI (viewport bbox)",
		Lon:        lons,
		Lat:        lats,
		Mode:       "lines",
		Line:       &Line{Color: "rgba(55, 71, 79, 0.7)", Width: 1},
		HoverInfo:  "skip",
		ShowLegend: &no,
	}
}

func closedRing(ring []types.LonLat) []types.LonLat {
	if len(ring) == 0 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first == last {
		return ring
	}
	out := make([]types.LonLat, len(ring)+1)
	copy(out, ring)
	out[len(ring)] = first
	return out
}

func styleString(style types.Style, key, def string) string {
	if style == nil {
		return def
	}
	if v, ok := style[key].(string); ok && v != "" {
		return v
	}
	return def
}

func styleLineColor(style types.Style, def string) string {
	if style == nil {
		return def
	}
	line, ok := style["line"].(map[string]any)
	if !ok {
		return def
	}
	if v, ok := line["color"].(string); ok && v != "" {
		return v
	}
	return def
}

func styleLineWidth(style types.Style, def int) int {
	if style == nil {
		return def
	}
	line, ok := style["line"].(map[string]any)
	if !ok {
		return def
	}
	switch v := line["width"].(type) {
	case int:
		if v != 0 {
			return v
		}
	case float64:
		if v != 0 {
			return int(v)
		}
	}
	return def
}

// Polygons draws one layer's polygon outer rings as filled scattermapbox
// shapes, rings separated by nil-coordinate breaks.
func Polygons(layer types.Layer) Trace {
	var lons, lats []any
	for _, f := range layer.Polygons {
		ring := f.Outer()
		if len(ring) == 0 {
			continue
		}
		ring = closedRing(ring)
		for _, c := range ring {
			lons = append(lons, c.Lon)
			lats = append(lats, c.Lat)
		}
		lons = append(lons, nil)
		lats = append(lats, nil)
	}
	return Trace{
		Type:      "scattermapbox",
		Name:      layer.Title,
		Lon:       lons,
		Lat:       lats,
		Mode:      "lines",
		Fill:      "toself",
		FillColor: styleString(layer.Style, "fillcolor", "rgba(30, 136, 229, 0.20)"),
		Line: &Line{
			Color: styleLineColor(layer.Style, "rgba(30, 136, 229, 0.65)"),
			Width: styleLineWidth(layer.Style, 1),
		},
		HoverInfo: "skip",
	}
}

// Lines draws one layer's linestrings as a single scattermapbox trace,
// features separated by nil-coordinate breaks.
func Lines(layer types.Layer) Trace {
	var lons, lats []any
	for _, f := range layer.Lines {
		if len(f.Coords) < 2 {
			continue
		}
		for _, c := range f.Coords {
			lons = append(lons, c.Lon)
			lats = append(lats, c.Lat)
		}
		lons = append(lons, nil)
		lats = append(lats, nil)
	}
	return Trace{
		Type: "scattermapbox",
		Name: layer.Title,
		Lon:  lons,
		Lat:  lats,
		Mode: "lines",
		Line: &Line{
			Color: styleLineColor(layer.Style, "rgba(67, 160, 71, 0.9)"),
			Width: styleLineWidth(layer.Style, 2),
		},
		HoverInfo: "skip",
	}
}

func styleMarkerSize(style types.Style, def int) any {
	if style == nil {
		return def
	}
	marker, ok := style["marker"].(map[string]any)
	if !ok {
		return def
	}
	switch v := marker["size"].(type) {
	case int:
		if v != 0 {
			return v
		}
	case float64:
		if v != 0 {
			return int(v)
		}
	}
	return def
}

func styleMarkerColor(style types.Style, def string) string {
	if style == nil {
		return def
	}
	marker, ok := style["marker"].(map[string]any)
	if !ok {
		return def
	}
	if v, ok := marker["color"].(string); ok && v != "" {
		return v
	}
	return def
}

// Points draws one point layer as scattermapbox markers, labeled with each
// feature's label (falling back to name).
func Points(layer types.Layer) Trace {
	lons := make([]any, len(layer.Points))
	lats := make([]any, len(layer.Points))
	text := make([]string, len(layer.Points))
	for i, p := range layer.Points {
		lons[i] = p.Lon
		lats[i] = p.Lat
		text[i] = p.Props.Label()
	}
	return Trace{
		Type: "scattermapbox",
		Name: layer.Title,
		Lon:  lons,
		Lat:  lats,
		Mode: "markers",
		Text: text,
		Marker: &Marker{
			Size:  styleMarkerSize(layer.Style, 6),
			Color: styleMarkerColor(layer.Style, "rgba(255, 193, 7, 0.75)"),
		},
		HoverTemplate: "%{text}<extra></extra>",
	}
}

// PointClusters draws grid-clustered markers in place of a point layer's raw
// features, sized by member count and labeled with the count.
func PointClusters(layer types.Layer, clusters []lod.ClusterMarker) Trace {
	color := styleMarkerColor(layer.Style, "rgba(255, 193, 7, 0.55)")
	lons := make([]any, len(clusters))
	lats := make([]any, len(clusters))
	text := make([]string, len(clusters))
	sizes := make([]any, len(clusters))
	for i, c := range clusters {
		lons[i] = c.Lon
		lats[i] = c.Lat
		text[i] = strconv.Itoa(c.Count)
		size := 8 + int(math.Sqrt(float64(c.Count)))*2
		if size > 26 {
			size = 26
		}
		sizes[i] = size
	}
	return Trace{
		Type:         "scattermapbox",
		Name:         layer.Title + " (clusters)",
		Lon:          lons,
		Lat:          lats,
		Mode:         "markers+text",
		Text:         text,
		TextPosition: "middle center",
		Marker: &Marker{
			Size:  sizes,
			Color: color,
			Line:  &Line{Color: "rgba(255, 193, 7, 0.9)", Width: 1},
		},
		HoverTemplate: "%{text}<extra></extra>",
	}
}

// SelectedPoints returns the point features of layerID matching a
// highlight's feature ids (a multipart feature id "base:N" also matches a
// highlight id equal to its base).
func SelectedPoints(layers types.LayerBundle, layerID string, ids map[string]struct{}) []types.PointFeature {
	layer, ok := layers.Get(layerID)
	if !ok || layer.Kind != types.KindPoints {
		return nil
	}
	var out []types.PointFeature
	for _, p := range layer.Points {
		if idMatches(p.ID, ids) {
			out = append(out, p)
		}
	}
	return out
}

// HighlightLayer draws the active highlight overlay on top of the base
// layers, styled distinctly per geometry kind.
func HighlightLayer(layers types.LayerBundle, h types.Highlight) Trace {
	title := h.Title
	if title == "" {
		title = "Highlighted"
	}
	layer, ok := layers.Get(h.LayerID)
	if !ok {
		return Trace{Type: "scattermapbox", Name: title, Lon: []any{}, Lat: []any{}}
	}

	switch layer.Kind {
	case types.KindPoints:
		selected := SelectedPoints(layers, h.LayerID, h.FeatureIDs)
		lons := make([]any, len(selected))
		lats := make([]any, len(selected))
		text := make([]string, len(selected))
		for i, p := range selected {
			lons[i] = p.Lon
			lats[i] = p.Lat
			text[i] = p.Props.Label()
		}
		return Trace{
			Type:          "scattermapbox",
			Name:          title,
			Lon:           lons,
			Lat:           lats,
			Mode:          "markers+text",
			Text:          text,
			TextPosition:  "top center",
			Marker:        &Marker{Size: 11, Color: "rgba(229, 57, 53, 0.95)"},
			HoverTemplate: "%{text}<extra></extra>",
		}

	case types.KindLines:
		var lons, lats []any
		for _, f := range layer.Lines {
			if !idMatches(f.ID, h.FeatureIDs) || len(f.Coords) < 2 {
				continue
			}
			for _, c := range f.Coords {
				lons = append(lons, c.Lon)
				lats = append(lats, c.Lat)
			}
			lons = append(lons, nil)
			lats = append(lats, nil)
		}
		return Trace{
			Type:      "scattermapbox",
			Name:      title,
			Lon:       lons,
			Lat:       lats,
			Mode:      "lines",
			Line:      &Line{Color: "rgba(229, 57, 53, 0.95)", Width: 4},
			HoverInfo: "skip",
		}

	case types.KindPolygons:
		var lons, lats []any
		for _, f := range layer.Polygons {
			if !idMatches(f.ID, h.FeatureIDs) {
				continue
			}
			ring := f.Outer()
			if len(ring) == 0 {
				continue
			}
			ring = closedRing(ring)
			for _, c := range ring {
				lons = append(lons, c.Lon)
				lats = append(lats, c.Lat)
			}
			lons = append(lons, nil)
			lats = append(lats, nil)
		}
		return Trace{
			Type:      "scattermapbox",
			Name:      title,
			Lon:       lons,
			Lat:       lats,
			Mode:      "lines",
			Fill:      "toself",
			FillColor: "rgba(229, 57, 53, 0.15)",
			Line:      &Line{Color: "rgba(229, 57, 53, 0.95)", Width: 2},
			HoverInfo: "skip",
		}
	}

	return Trace{Type: "scattermapbox", Name: title, Lon: []any{}, Lat: []any{}}
}
