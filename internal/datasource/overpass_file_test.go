package datasource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverpassDump(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverpassPoints(t *testing.T) {
	path := writeOverpassDump(t, `{
		"version": 0.6,
		"elements": [
			{"type": "node", "id": 100, "lat": 52.37, "lon": 9.73, "tags": {"amenity": "shelter"}}
		]
	}`)

	points, err := LoadOverpassPoints(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "node/100", points[0].ID)
	assert.Equal(t, "shelter", points[0].Props["amenity"])
}

func TestLoadOverpassPoints_MissingFile(t *testing.T) {
	_, err := LoadOverpassPoints(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadOverpassLines(t *testing.T) {
	path := writeOverpassDump(t, `{
		"version": 0.6,
		"elements": [
			{"type": "way", "id": 200, "tags": {"highway": "residential"}, "geometry": [
				{"lat": 52.37, "lon": 9.73},
				{"lat": 52.38, "lon": 9.74}
			]}
		]
	}`)

	lines, err := LoadOverpassLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "way/200", lines[0].ID)
	assert.Equal(t, "residential", lines[0].Props["highway"])
	assert.Len(t, lines[0].Coords, 2)
}

func TestLoadOverpassLines_InvalidJSON(t *testing.T) {
	path := writeOverpassDump(t, `not json`)
	_, err := LoadOverpassLines(path)
	require.Error(t, err)
}
