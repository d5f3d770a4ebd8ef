package datasource

import (
	"testing"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

func TestExtractPoints(t *testing.T) {
	result := &overpass.Result{
		Nodes: map[int64]*overpass.Node{
			1: {ID: 1, Lat: 52.37, Lon: 9.73, Tags: map[string]string{"amenity": "shelter"}},
			2: {ID: 2, Lat: 52.38, Lon: 9.74},
		},
	}

	points := extractPoints(result)
	require.Len(t, points, 2)

	byID := map[string]types.PointFeature{}
	for _, p := range points {
		byID[p.ID] = p
	}
	require.Contains(t, byID, "node/1")
	assert.Equal(t, "shelter", byID["node/1"].Props["amenity"])
	assert.InDelta(t, 52.37, byID["node/1"].Lat, 1e-9)
	assert.Nil(t, byID["node/2"].Props)
}

func TestExtractPoints_Nil(t *testing.T) {
	assert.Nil(t, extractPoints(nil))
}

func TestExtractLines(t *testing.T) {
	result := &overpass.Result{
		Ways: map[int64]*overpass.Way{
			10: {
				Meta:     overpass.Meta{ID: 10, Tags: map[string]string{"highway": "residential"}},
				Geometry: []overpass.Point{{Lat: 52.37, Lon: 9.73}, {Lat: 52.38, Lon: 9.74}},
			},
			11: {
				// Fewer than two vertices: must be skipped.
				Meta:     overpass.Meta{ID: 11},
				Geometry: []overpass.Point{{Lat: 52.37, Lon: 9.73}},
			},
		},
	}

	lines := extractLines(result)
	require.Len(t, lines, 1)
	assert.Equal(t, "way/10", lines[0].ID)
	assert.Equal(t, "residential", lines[0].Props["highway"])
	require.Len(t, lines[0].Coords, 2)
	assert.InDelta(t, 9.73, lines[0].Coords[0].Lon, 1e-9)
	assert.InDelta(t, 52.37, lines[0].Coords[0].Lat, 1e-9)
}

func TestExtractLines_Nil(t *testing.T) {
	assert.Nil(t, extractLines(nil))
}

func TestConvertTags(t *testing.T) {
	assert.Nil(t, convertTags(nil))
	assert.Nil(t, convertTags(map[string]string{}))

	props := convertTags(map[string]string{"natural": "water"})
	assert.Equal(t, types.Props{"natural": "water"}, props)
}

func TestUnmarshalOverpassJSON(t *testing.T) {
	data := []byte(`{
		"version": 0.6,
		"generator": "Overpass API",
		"elements": [
			{"type": "node", "id": 1, "lat": 52.37, "lon": 9.73, "tags": {"amenity": "shelter"}},
			{"type": "way", "id": 2, "geometry": [{"lat": 52.37, "lon": 9.73}, {"lat": 52.38, "lon": 9.74}], "tags": {"highway": "path"}}
		]
	}`)

	result, err := UnmarshalOverpassJSON(data)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Nodes, 1)
	assert.Len(t, result.Ways, 1)
}

func TestUnmarshalOverpassJSON_Invalid(t *testing.T) {
	_, err := UnmarshalOverpassJSON([]byte(`not json`))
	require.Error(t, err)
}
