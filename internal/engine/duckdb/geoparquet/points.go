package geoparquet

import (
	"context"
	"database/sql"
	"time"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// QueryPointsLayer queries a points layer for aoi at viewZoom, sampling
// post-filter when a tight policy cap would otherwise return a spatially
// biased slice of a wide AOI.
func QueryPointsLayer(ctx context.Context, db *sql.DB, lc scenario.LayerConfig, aoi types.BBox, viewZoom float64) (types.Layer, types.LayerStats, error) {
	t0 := time.Now()
	b := aoi.Normalized()
	bbox, err := ResolveBBoxExprs(ctx, db, lc.Source.Path)
	if err != nil {
		return types.Layer{}, types.LayerStats{}, err
	}
	where := aoiParams{maxLon: b.MaxLon, minLon: b.MinLon, maxLat: b.MaxLat, minLat: b.MinLat}
	cols := ParseColumns(lc.Source.Options)

	safety := SafetyLimit("points", viewZoom)
	maxCandidates := MaxCandidates(lc.Policy, viewZoom)

	candLimit := safety
	if maxCandidates != nil && *maxCandidates < candLimit {
		candLimit = *maxCandidates
	}
	if candLimit < 1 {
		candLimit = 1
	}

	spanLon := b.MaxLon - b.MinLon
	spanLat := b.MaxLat - b.MinLat
	maxSpan := spanLon
	if spanLat > maxSpan {
		maxSpan = spanLat
	}
	useSample := maxCandidates != nil && *maxCandidates < safety && maxSpan > 1.0

	cappedBy := []string{}
	if maxCandidates != nil && *maxCandidates < safety {
		cappedBy = append(cappedBy, "policyMaxCandidates")
	}

	tDB := time.Now()
	var rows []pointRow
	if useSample {
		rows, err = queryPointsRowsSampled(ctx, db, lc.Source.Path, bbox, where, cols, candLimit)
	} else {
		rows, err = queryPointsRowsBBox(ctx, db, lc.Source.Path, bbox, where, cols, candLimit)
	}
	if err != nil {
		return types.Layer{}, types.LayerStats{}, err
	}
	duckdbMs := float64(time.Since(tDB).Microseconds()) / 1000.0

	tDecode := time.Now()
	feats := DecodePoints(rows)
	decodeMs := float64(time.Since(tDecode).Microseconds()) / 1000.0

	layer := types.Layer{ID: lc.ID, Kind: types.KindPoints, Title: lc.Title, Points: feats, Style: lc.Style}
	policyCap := -1
	if maxCandidates != nil {
		policyCap = *maxCandidates
	}
	stats := BaseStats(lc.ID, "points", viewZoom, len(feats), duckdbMs, decodeMs,
		float64(time.Since(t0).Microseconds())/1000.0, cappedBy, safety, policyCap, -1, candLimit, "", 0)
	return layer, stats, nil
}
