package datasource

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Christian/go-overpass"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// UnmarshalOverpassJSON decodes an Overpass API JSON response (or a
// pre-fetched dump of one) into an overpass.Result.
func UnmarshalOverpassJSON(data []byte) (*overpass.Result, error) {
	var result overpass.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal overpass json: %w", err)
	}
	return &result, nil
}

// extractPoints converts Overpass nodes into PointFeatures.
func extractPoints(result *overpass.Result) []types.PointFeature {
	if result == nil {
		return nil
	}
	out := make([]types.PointFeature, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		if n == nil {
			continue
		}
		out = append(out, types.PointFeature{
			ID:    fmt.Sprintf("node/%d", n.ID),
			Lon:   n.Lon,
			Lat:   n.Lat,
			Props: convertTags(n.Tags),
		})
	}
	return out
}

// extractLines converts Overpass ways into LineFeatures, skipping ways with
// fewer than two vertices.
func extractLines(result *overpass.Result) []types.LineFeature {
	if result == nil {
		return nil
	}
	out := make([]types.LineFeature, 0, len(result.Ways))
	for _, w := range result.Ways {
		if w == nil || len(w.Geometry) < 2 {
			continue
		}
		coords := make([]types.LonLat, len(w.Geometry))
		for i, p := range w.Geometry {
			coords[i] = types.LonLat{Lon: p.Lon, Lat: p.Lat}
		}
		out = append(out, types.LineFeature{
			ID:     fmt.Sprintf("way/%d", w.ID),
			Coords: coords,
			Props:  convertTags(w.Tags),
		})
	}
	return out
}

// convertTags maps OSM string tags onto the engine's flat Props model.
func convertTags(tags map[string]string) types.Props {
	if len(tags) == 0 {
		return nil
	}
	props := make(types.Props, len(tags))
	for k, v := range tags {
		props[k] = v
	}
	return props
}
