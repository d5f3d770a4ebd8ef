package geoparquet

import (
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

func props(name, class sql.NullString) types.Props {
	p := types.Props{}
	if name.Valid && name.String != "" {
		p["name"] = name.String
		p["label"] = name.String
	}
	if class.Valid && class.String != "" {
		p["fclass"] = class.String
	}
	return p
}

// pointRow/geomRow are the decoded-column shapes returned by the sql.go
// query helpers.
type pointRow struct {
	ID    string
	Lon   float64
	Lat   float64
	Name  sql.NullString
	Class sql.NullString
}

type geomRow struct {
	ID    string
	WKB   []byte
	Name  sql.NullString
	Class sql.NullString
}

func DecodePoints(rows []pointRow) []types.PointFeature {
	feats := make([]types.PointFeature, 0, len(rows))
	for _, r := range rows {
		feats = append(feats, types.PointFeature{
			ID: r.ID, Lon: r.Lon, Lat: r.Lat, Props: props(r.Name, r.Class),
		})
	}
	return feats
}

func DecodeLines(rows []geomRow) ([]types.LineFeature, error) {
	feats := make([]types.LineFeature, 0, len(rows))
	for _, r := range rows {
		if len(r.WKB) == 0 {
			continue
		}
		geom, err := wkb.Unmarshal(r.WKB)
		if err != nil {
			continue
		}
		p := props(r.Name, r.Class)
		switch g := geom.(type) {
		case orb.LineString:
			if coords := lonLatsFrom(g); len(coords) >= 2 {
				feats = append(feats, types.LineFeature{ID: r.ID, Coords: coords, Props: p})
			}
		case orb.MultiLineString:
			for i, part := range g {
				if coords := lonLatsFrom(part); len(coords) >= 2 {
					feats = append(feats, types.LineFeature{ID: fmt.Sprintf("%s:%d", r.ID, i), Coords: coords, Props: p})
				}
			}
		}
	}
	return feats, nil
}

func DecodePolygons(rows []geomRow) ([]types.PolygonFeature, error) {
	feats := make([]types.PolygonFeature, 0, len(rows))
	addPoly := func(id string, poly orb.Polygon, p types.Props) {
		if len(poly) == 0 {
			return
		}
		outer := lonLatsFrom(poly[0])
		if len(outer) < 4 {
			return
		}
		feats = append(feats, types.PolygonFeature{ID: id, Rings: [][]types.LonLat{outer}, Props: p})
	}
	for _, r := range rows {
		if len(r.WKB) == 0 {
			continue
		}
		geom, err := wkb.Unmarshal(r.WKB)
		if err != nil {
			continue
		}
		p := props(r.Name, r.Class)
		switch g := geom.(type) {
		case orb.Polygon:
			addPoly(r.ID, g, p)
		case orb.MultiPolygon:
			for i, part := range g {
				addPoly(fmt.Sprintf("%s:%d", r.ID, i), part, p)
			}
		}
	}
	return feats, nil
}

func lonLatsFrom(ring orb.LineString) []types.LonLat {
	out := make([]types.LonLat, len(ring))
	for i, pt := range ring {
		out[i] = types.LonLat{Lon: pt[0], Lat: pt[1]}
	}
	return out
}
