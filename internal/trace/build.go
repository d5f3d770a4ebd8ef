package trace

import (
	"github.com/MeKo-Tech/mapagent/internal/lod"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// BuildOptions carries the optional extras BuildMapPlot layers on top of the
// base LayerBundle: the active AOI outline, camera, the active highlight,
// and cluster markers for the primary point layer.
type BuildOptions struct {
	AOI            *types.BBox
	Highlight      *types.Highlight
	ViewCenter     types.ViewCenter
	ViewZoom       *float64
	Viewport       types.Viewport
	FocusMap       bool
	Clusters       []lod.ClusterMarker
	ClusterLayerID string
}

// BuildMapPlot assembles the full Plotly figure for one response: the AOI
// outline, then polygons, lines and points/clusters in that stable render
// order, then the highlight overlay on top, followed by a camera fit to the
// highlight when FocusMap is requested.
func BuildMapPlot(layers types.LayerBundle, opts BuildOptions) Plot {
	var traces []Trace

	if opts.AOI != nil {
		traces = append(traces, AOIBBox(*opts.AOI))
	}

	for _, l := range layers.OfKind(types.KindPolygons) {
		traces = append(traces, Polygons(l))
	}
	for _, l := range layers.OfKind(types.KindLines) {
		traces = append(traces, Lines(l))
	}
	for _, l := range layers.OfKind(types.KindPoints) {
		if opts.Clusters != nil && opts.ClusterLayerID != "" && l.ID == opts.ClusterLayerID {
			traces = append(traces, PointClusters(l, opts.Clusters))
		} else {
			traces = append(traces, Points(l))
		}
	}

	hasHighlight := opts.Highlight != nil && !opts.Highlight.IsEmpty()
	if hasHighlight {
		traces = append(traces, HighlightLayer(layers, *opts.Highlight))
	}

	center := map[string]float64{"lat": opts.ViewCenter.Lat, "lon": opts.ViewCenter.Lon}
	zoom := 2.0
	if opts.ViewZoom != nil {
		zoom = *opts.ViewZoom
	}

	if opts.FocusMap && hasHighlight {
		selected := SelectedPoints(layers, opts.Highlight.LayerID, opts.Highlight.FeatureIDs)
		if len(selected) > 0 {
			viewport := opts.Viewport
			if viewport == (types.Viewport{}) {
				viewport = types.DefaultViewport
			}
			fitCenter, fitZoom := FitViewToPoints(selected, viewport)
			if opts.ViewZoom != nil {
				const maxZoomOut = 2.0
				minZoom := *opts.ViewZoom - maxZoomOut
				center = map[string]float64{"lat": fitCenter.Lat, "lon": fitCenter.Lon}
				zoom = fitZoom
				if zoom < minZoom {
					zoom = minZoom
				}
			} else {
				center = map[string]float64{"lat": fitCenter.Lat, "lon": fitCenter.Lon}
				zoom = fitZoom
			}
		}
	}

	meta := Meta{Stats: computeStats(layers, opts)}
	if hasHighlight {
		title := opts.Highlight.Title
		if title == "" {
			title = "Highlighted"
		}
		meta.Highlight = &HighlightMeta{
			LayerID:    opts.Highlight.LayerID,
			FeatureIDs: opts.Highlight.SortedIDs(),
			Title:      title,
		}
	}

	return Plot{
		Data: traces,
		Layout: Layout{
			Mapbox: Mapbox{Center: center, Zoom: zoom, Style: "carto-positron"},
			ShowLegend: true,
			Legend: Legend{
				X: 0.99, Y: 0.99,
				XAnchor:     "right",
				YAnchor:     "top",
				BGColor:     "rgba(255, 255, 255, 0.75)",
				BorderColor: "rgba(120, 120, 120, 0.35)",
				BorderWidth: 1,
				Font:        map[string]any{"size": 11},
			},
			Meta: meta,
		},
	}
}

func computeStats(layers types.LayerBundle, opts BuildOptions) Stats {
	pts, lines, polys := 0, 0, 0
	lineVertices, polyVertices := 0, 0
	for _, l := range layers.OfKind(types.KindPoints) {
		pts += len(l.Points)
	}
	for _, l := range layers.OfKind(types.KindLines) {
		lines += len(l.Lines)
		for _, f := range l.Lines {
			lineVertices += len(f.Coords)
		}
	}
	for _, l := range layers.OfKind(types.KindPolygons) {
		polys += len(l.Polygons)
		for _, f := range l.Polygons {
			for _, r := range f.Rings {
				polyVertices += len(r)
			}
		}
	}

	highlightCount := 0
	if opts.Highlight != nil && !opts.Highlight.IsEmpty() {
		highlightCount = len(SelectedPoints(layers, opts.Highlight.LayerID, opts.Highlight.FeatureIDs))
	}

	return Stats{
		ClusterMode:             opts.Clusters != nil,
		RenderedPoints:          pts,
		RenderedLines:           lines,
		RenderedPolygons:        polys,
		RenderedClusters:        len(opts.Clusters),
		RenderedHighlightPoints: highlightCount,
		LineVertices:            lineVertices,
		PolyVertices:            polyVertices,
	}
}

