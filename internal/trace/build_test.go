package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

func sampleBundle() types.LayerBundle {
	return types.LayerBundle{Layers: []types.Layer{
		{ID: "flood", Kind: types.KindPolygons, Title: "Flood zones", Polygons: []types.PolygonFeature{
			{ID: "p1", Rings: [][]types.LonLat{{{Lon: 9.7, Lat: 52.37}, {Lon: 9.71, Lat: 52.37}, {Lon: 9.71, Lat: 52.38}, {Lon: 9.7, Lat: 52.38}}}},
		}},
		{ID: "roads", Kind: types.KindLines, Title: "Roads", Lines: []types.LineFeature{
			{ID: "r1", Coords: []types.LonLat{{Lon: 9.7, Lat: 52.37}, {Lon: 9.72, Lat: 52.39}}},
		}},
		{ID: "places", Kind: types.KindPoints, Title: "Places", Points: []types.PointFeature{
			{ID: "pt1", Lon: 9.705, Lat: 52.375, Props: types.Props{"label": "Shelter A"}},
			{ID: "pt2", Lon: 9.715, Lat: 52.385, Props: types.Props{"label": "Shelter B"}},
		}},
	}}
}

func TestBuildMapPlotOrdersTracesPolygonsLinesPoints(t *testing.T) {
	bundle := sampleBundle()
	plot := BuildMapPlot(bundle, BuildOptions{})

	require.Len(t, plot.Data, 3)
	assert.Equal(t, "Flood zones", plot.Data[0].Name)
	assert.Equal(t, "Roads", plot.Data[1].Name)
	assert.Equal(t, "Places", plot.Data[2].Name)
	assert.True(t, plot.Layout.ShowLegend)
	assert.Equal(t, "carto-positron", plot.Layout.Mapbox.Style)
}

func TestBuildMapPlotAddsAOITraceFirst(t *testing.T) {
	bundle := sampleBundle()
	aoi := types.NewBBox(9.69, 52.36, 9.73, 52.40)
	plot := BuildMapPlot(bundle, BuildOptions{AOI: &aoi})

	require.Len(t, plot.Data, 4)
	assert.Equal(t, "AOI (viewport bbox)", plot.Data[0].Name)
}

func TestBuildMapPlotAppendsHighlightLastAndEchoesMeta(t *testing.T) {
	bundle := sampleBundle()
	h := types.NewHighlight("places", []string{"pt1"}, "Recommended", "prompt")
	plot := BuildMapPlot(bundle, BuildOptions{Highlight: &h})

	require.Len(t, plot.Data, 4)
	assert.Equal(t, "Recommended", plot.Data[3].Name)
	require.NotNil(t, plot.Layout.Meta.Highlight)
	assert.Equal(t, "places", plot.Layout.Meta.Highlight.LayerID)
	assert.Equal(t, []string{"pt1"}, plot.Layout.Meta.Highlight.FeatureIDs)
	assert.Equal(t, 1, plot.Layout.Meta.Stats.RenderedHighlightPoints)
}

func TestBuildMapPlotFocusMapFitsViewToHighlight(t *testing.T) {
	bundle := sampleBundle()
	h := types.NewHighlight("places", []string{"pt1", "pt2"}, "Recommended", "prompt")
	zoom := 12.0
	plot := BuildMapPlot(bundle, BuildOptions{Highlight: &h, FocusMap: true, ViewZoom: &zoom})

	assert.InDelta(t, 9.71, plot.Layout.Mapbox.Center["lon"], 1e-6)
	assert.GreaterOrEqual(t, plot.Layout.Mapbox.Zoom, zoom-2.0)
}

func TestBuildMapPlotStatsCountFeaturesAndVertices(t *testing.T) {
	bundle := sampleBundle()
	plot := BuildMapPlot(bundle, BuildOptions{})
	stats := plot.Layout.Meta.Stats

	assert.Equal(t, 2, stats.RenderedPoints)
	assert.Equal(t, 1, stats.RenderedLines)
	assert.Equal(t, 1, stats.RenderedPolygons)
	assert.Equal(t, 2, stats.LineVertices)
	assert.Equal(t, 4, stats.PolyVertices)
	assert.False(t, stats.ClusterMode)
}
