package datasource

import (
	"fmt"
	"os"

	"github.com/MeKo-Christian/go-overpass"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// LoadOverpassPoints reads a pre-fetched Overpass JSON dump from path and
// extracts its nodes as PointFeatures — grounded on
// original_source/backend/layers/loaders.py's load_overpass_points, which
// reads the same static dumps rather than querying the API per request.
func LoadOverpassPoints(path string) ([]types.PointFeature, error) {
	result, err := readOverpassDump(path)
	if err != nil {
		return nil, err
	}
	return extractPoints(result), nil
}

// LoadOverpassLines reads a pre-fetched Overpass JSON dump from path and
// extracts its ways as LineFeatures.
func LoadOverpassLines(path string) ([]types.LineFeature, error) {
	result, err := readOverpassDump(path)
	if err != nil {
		return nil, err
	}
	return extractLines(result), nil
}

func readOverpassDump(path string) (*overpass.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overpass dump %s: %w", path, err)
	}
	result, err := UnmarshalOverpassJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse overpass dump %s: %w", path, err)
	}
	return result, nil
}
