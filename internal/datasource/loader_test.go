package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

func writeTestGeoJSON(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "id": "lake-1", "properties": {"natural": "water"},
			 "geometry": {"type": "Polygon", "coordinates": [[[9.73,52.37],[9.74,52.37],[9.74,52.38],[9.73,52.38],[9.73,52.37]]]}}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeTestOverpassDump(t *testing.T, dir, name, elementsBody string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := `{"version": 0.6, "elements": [` + elementsBody + `]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testScenarioConfig(dir string) scenario.Config {
	return scenario.Config{
		ID: "demo",
		Layers: []scenario.LayerConfig{
			{ID: "water", Kind: "polygons", Source: scenario.Source{Type: scenario.SourceGeoJSONPolygons, Path: filepath.Join(dir, "water.geojson")}},
			{ID: "shelters", Kind: "points", Source: scenario.Source{Type: scenario.SourceOverpassPoints, Path: filepath.Join(dir, "shelters.json")}},
			{ID: "roads", Kind: "lines", Source: scenario.Source{Type: scenario.SourceOverpassLines, Path: filepath.Join(dir, "roads.json")}},
			{ID: "buildings", Kind: "polygons", Source: scenario.Source{Type: scenario.SourceGeoParquet, Path: filepath.Join(dir, "buildings.parquet")}},
		},
	}
}

func TestScenarioLoader_Load_OrdersLayersByConfig(t *testing.T) {
	dir := t.TempDir()
	writeTestGeoJSON(t, dir, "water.geojson")
	writeTestOverpassDump(t, dir, "shelters.json", `{"type":"node","id":1,"lat":52.37,"lon":9.73,"tags":{"amenity":"shelter"}}`)
	writeTestOverpassDump(t, dir, "roads.json", `{"type":"way","id":2,"tags":{"highway":"residential"},"geometry":[{"lat":52.37,"lon":9.73},{"lat":52.38,"lon":9.74}]}`)

	cfg := testScenarioConfig(dir)
	loader := NewScenarioLoader(map[string]scenario.Config{cfg.ID: cfg}, 4)

	bundle, err := loader.Load(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, bundle.Layers, 4)

	ids := make([]string, len(bundle.Layers))
	for i, l := range bundle.Layers {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"water", "shelters", "roads", "buildings"}, ids)

	assert.Len(t, bundle.Layers[0].Polygons, 1)
	assert.Len(t, bundle.Layers[1].Points, 1)
	assert.Len(t, bundle.Layers[2].Lines, 1)
	assert.Empty(t, bundle.Layers[3].Polygons)
}

func TestScenarioLoader_Load_UnknownScenario(t *testing.T) {
	loader := NewScenarioLoader(map[string]scenario.Config{}, 2)
	_, err := loader.Load(context.Background(), "missing")
	require.Error(t, err)
}

func TestScenarioLoader_Load_PropagatesLayerError(t *testing.T) {
	dir := t.TempDir()
	cfg := scenario.Config{
		ID: "broken",
		Layers: []scenario.LayerConfig{
			{ID: "water", Kind: "polygons", Source: scenario.Source{Type: scenario.SourceGeoJSONPolygons, Path: filepath.Join(dir, "missing.geojson")}},
		},
	}
	loader := NewScenarioLoader(map[string]scenario.Config{cfg.ID: cfg}, 2)

	_, err := loader.Load(context.Background(), "broken")
	require.Error(t, err)
}

func TestParseBBoxOption(t *testing.T) {
	bbox, err := parseBBoxOption("9.6,52.3,9.8,52.4")
	require.NoError(t, err)
	assert.Equal(t, types.NewBBox(9.6, 52.3, 9.8, 52.4), bbox)

	_, err = parseBBoxOption("9.6,52.3")
	require.Error(t, err)

	_, err = parseBBoxOption("a,b,c,d")
	require.Error(t, err)
}

func TestLiveScenarioLoader_LoadLayer_GeoParquetAndGeoJSONPassThrough(t *testing.T) {
	dir := t.TempDir()
	writeTestGeoJSON(t, dir, "water.geojson")

	cfg := scenario.Config{
		ID: "demo",
		Layers: []scenario.LayerConfig{
			{ID: "water", Kind: "polygons", Source: scenario.Source{Type: scenario.SourceGeoJSONPolygons, Path: filepath.Join(dir, "water.geojson")}},
			{ID: "buildings", Kind: "polygons", Source: scenario.Source{Type: scenario.SourceGeoParquet}},
		},
	}
	loader := NewLiveScenarioLoader(map[string]scenario.Config{cfg.ID: cfg}, NewOverpassClient(DefaultOverpassConfig()), 2)

	bundle, err := loader.Load(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, bundle.Layers, 2)
	assert.Len(t, bundle.Layers[0].Polygons, 1)
	assert.Empty(t, bundle.Layers[1].Polygons)
}

func TestLiveScenarioLoader_LoadLayer_MissingBBoxOption(t *testing.T) {
	cfg := scenario.Config{
		ID: "demo",
		Layers: []scenario.LayerConfig{
			{ID: "shelters", Kind: "points", Source: scenario.Source{Type: scenario.SourceOverpassPoints}},
		},
	}
	loader := NewLiveScenarioLoader(map[string]scenario.Config{cfg.ID: cfg}, NewOverpassClient(DefaultOverpassConfig()), 1)

	_, err := loader.Load(context.Background(), "demo")
	require.Error(t, err)
}
