package geoparquet

import (
	"context"
	"database/sql"
	"time"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// hardCapLines/hardCapPolygons bound WKB decoding cost on worst-case AOIs;
// LOD runs after decoding, so an undecoded-but-uncapped query can spend
// seconds decoding geometry only to drop most of it in the LOD pass.
const (
	hardCapLines    = 9_000
	hardCapPolygons = 5_000
)

// QueryLayer dispatches to the points path or the lines/polygons decode
// path for a single GeoParquet layer, grounded on
// query_geoparquet_layer_bbox in the teacher's Python original.
func QueryLayer(ctx context.Context, db *sql.DB, lc scenario.LayerConfig, aoi types.BBox, viewZoom float64) (types.Layer, types.LayerStats, error) {
	if lc.Kind == "points" {
		return QueryPointsLayer(ctx, db, lc, aoi, viewZoom)
	}

	t0 := time.Now()
	b := aoi.Normalized()
	bboxExprs, err := ResolveBBoxExprs(ctx, db, lc.Source.Path)
	if err != nil {
		return types.Layer{}, types.LayerStats{}, err
	}
	where := aoiParams{maxLon: b.MaxLon, minLon: b.MinLon, maxLat: b.MaxLat, minLat: b.MinLat}
	cols := ParseColumns(lc.Source.Options)

	geomMinZoom := DefaultGeomMinZoom()
	if lc.Policy != nil && lc.Policy.MinZoomForGeometry > 0 {
		geomMinZoom = lc.Policy.MinZoomForGeometry
	}
	allow := AllowedClasses(lc.Policy, viewZoom)

	if viewZoom < geomMinZoom && len(allow) == 0 {
		layer := types.Layer{ID: lc.ID, Kind: kindOf(lc.Kind), Title: lc.Title, Style: lc.Style}
		stats := BaseStats(lc.ID, lc.Kind, viewZoom, 0, 0, 0,
			float64(time.Since(t0).Microseconds())/1000.0, nil, 0, -1, -1, 0, "belowMinZoomForGeometry", geomMinZoom)
		return layer, stats, nil
	}

	safety := SafetyLimit(lc.Kind, viewZoom)
	maxCandidates := MaxCandidates(lc.Policy, viewZoom)
	candLimit := safety
	if maxCandidates != nil && *maxCandidates < candLimit {
		candLimit = *maxCandidates
	}

	hardCap := hardCapPolygons
	if lc.Kind == "lines" {
		hardCap = hardCapLines
	}
	if hardCap < candLimit {
		candLimit = hardCap
	}
	if candLimit < 1 {
		candLimit = 1
	}

	var cappedBy []string
	if maxCandidates != nil && *maxCandidates < safety {
		cappedBy = append(cappedBy, "policyMaxCandidates")
	}
	limitBeforeHardCap := safety
	if maxCandidates != nil && *maxCandidates < limitBeforeHardCap {
		limitBeforeHardCap = *maxCandidates
	}
	if hardCap < limitBeforeHardCap {
		cappedBy = append(cappedBy, "hardCap")
	}

	policyEnabled := lc.Policy != nil
	orderBySQL := OrderBySQL(lc.Policy, bboxExprs)

	tDB := time.Now()
	var rows []geomRow
	if !policyEnabled {
		rows, err = queryGeometryRowsNoPolicy(ctx, db, lc.Source.Path, bboxExprs, where, cols, candLimit)
	} else {
		ids, idsErr := queryCandidateIDs(ctx, db, lc.Source.Path, bboxExprs, where, cols, allow, orderBySQL, candLimit)
		if idsErr != nil {
			return types.Layer{}, types.LayerStats{}, idsErr
		}
		if len(ids) == 0 {
			layer := types.Layer{ID: lc.ID, Kind: kindOf(lc.Kind), Title: lc.Title, Style: lc.Style}
			policyCap := -1
			if maxCandidates != nil {
				policyCap = *maxCandidates
			}
			stats := BaseStats(lc.ID, lc.Kind, viewZoom, 0, 0, 0,
				float64(time.Since(t0).Microseconds())/1000.0, cappedBy, safety, policyCap, hardCap, candLimit, "", 0)
			return layer, stats, nil
		}
		rows, err = queryGeometryRowsForIDs(ctx, db, lc.Source.Path, bboxExprs, where, cols, ids, candLimit)
	}
	if err != nil {
		return types.Layer{}, types.LayerStats{}, err
	}
	duckdbMs := float64(time.Since(tDB).Microseconds()) / 1000.0

	tDecode := time.Now()
	var layer types.Layer
	var n int
	if lc.Kind == "lines" {
		feats, decErr := DecodeLines(rows)
		if decErr != nil {
			return types.Layer{}, types.LayerStats{}, decErr
		}
		layer = types.Layer{ID: lc.ID, Kind: types.KindLines, Title: lc.Title, Lines: feats, Style: lc.Style}
		n = len(feats)
	} else {
		feats, decErr := DecodePolygons(rows)
		if decErr != nil {
			return types.Layer{}, types.LayerStats{}, decErr
		}
		layer = types.Layer{ID: lc.ID, Kind: types.KindPolygons, Title: lc.Title, Polygons: feats, Style: lc.Style}
		n = len(feats)
	}
	decodeMs := float64(time.Since(tDecode).Microseconds()) / 1000.0

	policyCap := -1
	if maxCandidates != nil {
		policyCap = *maxCandidates
	}
	stats := BaseStats(lc.ID, lc.Kind, viewZoom, n, duckdbMs, decodeMs,
		float64(time.Since(t0).Microseconds())/1000.0, cappedBy, safety, policyCap, hardCap, candLimit, "", 0)
	return layer, stats, nil
}

func kindOf(kind string) types.GeometryKind {
	switch kind {
	case "points":
		return types.KindPoints
	case "lines":
		return types.KindLines
	default:
		return types.KindPolygons
	}
}
