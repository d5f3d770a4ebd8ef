package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mapagent/internal/lod"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

func TestAOIBBox(t *testing.T) {
	aoi := types.NewBBox(9.70, 52.36, 9.75, 52.40)
	tr := AOIBBox(aoi)

	assert.Equal(t, "scattermapbox", tr.Type)
	assert.Equal(t, []any{9.70, 9.75, 9.75, 9.70, 9.70}, tr.Lon)
	assert.Equal(t, []any{52.36, 52.36, 52.40, 52.40, 52.36}, tr.Lat)
	require.NotNil(t, tr.ShowLegend)
	assert.False(t, *tr.ShowLegend)
}

func TestPolygonsClosesOpenRings(t *testing.T) {
	layer := types.Layer{
		ID: "flood", Kind: types.KindPolygons, Title: "Flood zones",
		Polygons: []types.PolygonFeature{
			{ID: "p1", Rings: [][]types.LonLat{{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}}}},
		},
	}
	tr := Polygons(layer)

	require.Len(t, tr.Lon, 5) // 3 verts + closing vert + nil break
	assert.Nil(t, tr.Lon[4])
	assert.Equal(t, tr.Lon[0], tr.Lon[3])
}

func TestLinesSkipsDegenerateFeatures(t *testing.T) {
	layer := types.Layer{
		ID: "roads", Kind: types.KindLines, Title: "Roads",
		Lines: []types.LineFeature{
			{ID: "single", Coords: []types.LonLat{{Lon: 0, Lat: 0}}},
			{ID: "ok", Coords: []types.LonLat{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}},
		},
	}
	tr := Lines(layer)
	assert.Equal(t, []any{0.0, 1.0, nil}, tr.Lon)
}

func TestPointsLabelsFallBackToName(t *testing.T) {
	layer := types.Layer{
		ID: "places", Kind: types.KindPoints, Title: "Places",
		Points: []types.PointFeature{
			{ID: "a", Lon: 1, Lat: 2, Props: types.Props{"label": "A Place"}},
			{ID: "b", Lon: 3, Lat: 4, Props: types.Props{"name": "B Place"}},
		},
	}
	tr := Points(layer)
	assert.Equal(t, []string{"A Place", "B Place"}, tr.Text)
}

func TestPointClustersSizeCapsAt26(t *testing.T) {
	layer := types.Layer{ID: "places", Kind: types.KindPoints, Title: "Places"}
	clusters := []lod.ClusterMarker{
		{Lon: 1, Lat: 2, Count: 1000},
		{Lon: 3, Lat: 4, Count: 1},
	}
	tr := PointClusters(layer, clusters)
	require.NotNil(t, tr.Marker)
	sizes, ok := tr.Marker.Size.([]any)
	require.True(t, ok)
	assert.Equal(t, 26, sizes[0])
	assert.Equal(t, 10, sizes[1])
	assert.Equal(t, []string{"1000", "1"}, tr.Text)
}

func TestSelectedPointsMatchesMultipartIDs(t *testing.T) {
	bundle := types.LayerBundle{Layers: []types.Layer{
		{ID: "places", Kind: types.KindPoints, Points: []types.PointFeature{
			{ID: "1", Lon: 1, Lat: 1},
			{ID: "2:0", Lon: 2, Lat: 2},
			{ID: "3", Lon: 3, Lat: 3},
		}},
	}}
	h := types.NewHighlight("places", []string{"1", "2"}, "Selected", "prompt")
	selected := SelectedPoints(bundle, "places", h.FeatureIDs)
	require.Len(t, selected, 2)
	assert.Equal(t, "1", selected[0].ID)
	assert.Equal(t, "2:0", selected[1].ID)
}

func TestHighlightLayerUnknownLayerReturnsEmptyTrace(t *testing.T) {
	h := types.NewHighlight("missing", []string{"1"}, "X", "prompt")
	tr := HighlightLayer(types.LayerBundle{}, h)
	assert.Equal(t, []any{}, tr.Lon)
}
