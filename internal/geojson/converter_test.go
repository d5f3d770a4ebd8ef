package geojson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGeoJSON(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.geojson")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPolygons_SimplePolygon(t *testing.T) {
	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"id": "lake-1",
				"properties": {"natural": "water"},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[9.73,52.37],[9.74,52.37],[9.74,52.38],[9.73,52.38],[9.73,52.37]]]
				}
			}
		]
	}`)

	polys, err := LoadPolygons(path)
	require.NoError(t, err)
	require.Len(t, polys, 1)

	p := polys[0]
	assert.Equal(t, "lake-1", p.ID)
	assert.Equal(t, "water", p.Props["natural"])
	require.Len(t, p.Rings, 1)
	assert.Len(t, p.Rings[0], 5)
	assert.InDelta(t, 9.73, p.Rings[0][0].Lon, 1e-9)
	assert.InDelta(t, 52.37, p.Rings[0][0].Lat, 1e-9)
}

func TestLoadPolygons_MultiPolygonSplitsIntoMultipleFeatures(t *testing.T) {
	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"id": "islands",
				"properties": {"landuse": "forest"},
				"geometry": {
					"type": "MultiPolygon",
					"coordinates": [
						[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
						[[[2,2],[3,2],[3,3],[2,3],[2,2]]]
					]
				}
			}
		]
	}`)

	polys, err := LoadPolygons(path)
	require.NoError(t, err)
	require.Len(t, polys, 2)
	assert.Equal(t, "islands-0", polys[0].ID)
	assert.Equal(t, "islands-1", polys[1].ID)
	assert.Equal(t, "forest", polys[0].Props["landuse"])
}

func TestLoadPolygons_SkipsNonPolygonAndEmptyCoordinates(t *testing.T) {
	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [9.73, 52.37]}},
			{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": []}}
		]
	}`)

	polys, err := LoadPolygons(path)
	require.NoError(t, err)
	assert.Empty(t, polys)
}

func TestLoadPolygons_DefaultsIDWhenMissing(t *testing.T) {
	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {},
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
			}
		]
	}`)

	polys, err := LoadPolygons(path)
	require.NoError(t, err)
	require.Len(t, polys, 1)
	assert.Equal(t, "poly-0", polys[0].ID)
}

func TestLoadPolygons_MissingFile(t *testing.T) {
	_, err := LoadPolygons(filepath.Join(t.TempDir(), "missing.geojson"))
	require.Error(t, err)
}
