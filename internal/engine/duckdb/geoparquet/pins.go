package geoparquet

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// QueryPinnedIDs fetches a specific set of features by id for the current
// AOI, so highlighted features don't disappear when the base layer's
// candidate cap would otherwise drop them on zoom-out.
func QueryPinnedIDs(ctx context.Context, db *sql.DB, lc scenario.LayerConfig, aoi types.BBox, ids map[string]struct{}) (types.Layer, error) {
	empty := types.Layer{ID: lc.ID, Kind: kindOf(lc.Kind), Title: lc.Title, Style: lc.Style}
	if len(ids) == 0 {
		return empty, nil
	}

	baseSet := make(map[string]struct{}, len(ids))
	for id := range ids {
		base := id
		if i := strings.IndexByte(id, ':'); i >= 0 {
			base = id[:i]
		}
		if base != "" {
			baseSet[base] = struct{}{}
		}
	}
	if len(baseSet) == 0 {
		return empty, nil
	}
	baseList := make([]string, 0, len(baseSet))
	for id := range baseSet {
		baseList = append(baseList, id)
	}
	sort.Strings(baseList)

	b := aoi.Normalized()
	bboxExprs, err := ResolveBBoxExprs(ctx, db, lc.Source.Path)
	if err != nil {
		return types.Layer{}, err
	}
	where := aoiParams{maxLon: b.MaxLon, minLon: b.MinLon, maxLat: b.MaxLat, minLat: b.MinLat}
	cols := ParseColumns(lc.Source.Options)
	limit := len(baseList)

	if lc.Kind == "points" {
		rows, err := queryPointsRowsForIDs(ctx, db, lc.Source.Path, bboxExprs, where, cols, baseList, limit)
		if err != nil {
			return types.Layer{}, err
		}
		return types.Layer{ID: lc.ID, Kind: types.KindPoints, Title: lc.Title, Points: DecodePoints(rows), Style: lc.Style}, nil
	}

	rows, err := queryGeometryRowsForIDs(ctx, db, lc.Source.Path, bboxExprs, where, cols, baseList, limit)
	if err != nil {
		return types.Layer{}, err
	}
	if lc.Kind == "lines" {
		feats, err := DecodeLines(rows)
		if err != nil {
			return types.Layer{}, err
		}
		return types.Layer{ID: lc.ID, Kind: types.KindLines, Title: lc.Title, Lines: feats, Style: lc.Style}, nil
	}
	feats, err := DecodePolygons(rows)
	if err != nil {
		return types.Layer{}, err
	}
	return types.Layer{ID: lc.ID, Kind: types.KindPolygons, Title: lc.Title, Polygons: feats, Style: lc.Style}, nil
}
