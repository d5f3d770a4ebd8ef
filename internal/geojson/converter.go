// Package geojson loads polygon layer features from static GeoJSON files —
// grounded on original_source/backend/layers/loaders.py's
// load_geojson_polygons / _to_ring.
package geojson

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// LoadPolygons reads a GeoJSON FeatureCollection from path and extracts its
// Polygon and MultiPolygon features as PolygonFeatures. Features with any
// other geometry type, or with empty coordinates, are skipped.
//
// A MultiPolygon feature is split into one PolygonFeature per constituent
// polygon, with the feature's id suffixed "-{j}" to keep ids unique.
func LoadPolygons(path string) ([]types.PolygonFeature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", path, err)
	}

	out := make([]types.PolygonFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		id := featureID(f, i)
		props := convertProps(f.Properties)

		switch g := f.Geometry.(type) {
		case orb.Polygon:
			rings := toRings(g)
			if len(rings) > 0 {
				out = append(out, types.PolygonFeature{ID: id, Rings: rings, Props: props})
			}
		case orb.MultiPolygon:
			for j, poly := range g {
				rings := toRings(poly)
				if len(rings) > 0 {
					out = append(out, types.PolygonFeature{
						ID:    fmt.Sprintf("%s-%d", id, j),
						Rings: rings,
						Props: props,
					})
				}
			}
		}
	}

	return out, nil
}

// toRings converts an orb.Polygon's rings into [][]types.LonLat, copying
// every point and dropping rings that have no points.
func toRings(poly orb.Polygon) [][]types.LonLat {
	rings := make([][]types.LonLat, 0, len(poly))
	for _, ring := range poly {
		pts := make([]types.LonLat, 0, len(ring))
		for _, p := range ring {
			pts = append(pts, types.LonLat{Lon: p[0], Lat: p[1]})
		}
		if len(pts) > 0 {
			rings = append(rings, pts)
		}
	}
	return rings
}

func featureID(f *geojson.Feature, index int) string {
	if f.ID != nil {
		if s, ok := f.ID.(string); ok && s != "" {
			return s
		}
		return fmt.Sprintf("%v", f.ID)
	}
	if id, ok := f.Properties["id"]; ok {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("poly-%d", index)
}

func convertProps(props geojson.Properties) types.Props {
	if len(props) == 0 {
		return nil
	}
	out := make(types.Props, len(props))
	for k, v := range props {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
