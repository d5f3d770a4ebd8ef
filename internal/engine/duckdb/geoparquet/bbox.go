package geoparquet

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// BBoxExprs names the SQL expressions that read a GeoParquet file's
// covering bbox, in either of the two encodings the corpus's sample data
// uses: flat xmin/ymin/xmax/ymax columns, or a geometry_bbox struct.
type BBoxExprs struct {
	XMin, YMin, XMax, YMax string
}

var (
	bboxCacheMu sync.Mutex
	bboxCache   = make(map[string]BBoxExprs, 64)
)

// ResolveBBoxExprs inspects path's schema once and caches the result in a
// map keyed by path; entries are never evicted.
func ResolveBBoxExprs(ctx context.Context, db *sql.DB, path string) (BBoxExprs, error) {
	bboxCacheMu.Lock()
	if exprs, ok := bboxCache[path]; ok {
		bboxCacheMu.Unlock()
		return exprs, nil
	}
	bboxCacheMu.Unlock()

	rows, err := db.QueryContext(ctx, "DESCRIBE SELECT * FROM read_parquet(?)", path)
	if err != nil {
		return BBoxExprs{}, fmt.Errorf("describe %s: %w", path, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	cols2, err := rows.Columns()
	if err != nil {
		return BBoxExprs{}, err
	}
	scan := make([]any, len(cols2))
	scanPtrs := make([]any, len(cols2))
	for i := range scan {
		scanPtrs[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return BBoxExprs{}, err
		}
		if len(scan) > 0 {
			if name, ok := scan[0].(string); ok {
				cols[name] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return BBoxExprs{}, err
	}

	var exprs BBoxExprs
	switch {
	case cols["xmin"] && cols["ymin"] && cols["xmax"] && cols["ymax"]:
		exprs = BBoxExprs{XMin: "xmin", YMin: "ymin", XMax: "xmax", YMax: "ymax"}
	case cols["geometry_bbox"]:
		exprs = BBoxExprs{
			XMin: "geometry_bbox.xmin", YMin: "geometry_bbox.ymin",
			XMax: "geometry_bbox.xmax", YMax: "geometry_bbox.ymax",
		}
	default:
		return BBoxExprs{}, fmt.Errorf("geoparquet %s: missing covering bbox columns (expected xmin/ymin/xmax/ymax or geometry_bbox)", path)
	}

	bboxCacheMu.Lock()
	bboxCache[path] = exprs
	bboxCacheMu.Unlock()
	return exprs, nil
}

// WhereSQL builds the AOI overlap predicate against the covering bbox.
func WhereSQL(b BBoxExprs) string {
	return fmt.Sprintf("%s >= ? AND %s <= ? AND %s >= ? AND %s <= ?", b.XMax, b.XMin, b.YMax, b.YMin)
}
