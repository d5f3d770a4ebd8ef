package geoparquet

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

type aoiParams struct{ maxLon, minLon, maxLat, minLat float64 }

func whereArgs(b aoiParams) []any {
	return []any{b.minLon, b.maxLon, b.minLat, b.maxLat}
}

// queryPointsRowsBBox queries points directly via the resolved bbox
// expressions, capped to limit rows with no sampling.
func queryPointsRowsBBox(ctx context.Context, db *sql.DB, path string, b BBoxExprs, where aoiParams, c Columns, limit int) ([]pointRow, error) {
	q := fmt.Sprintf(`
		SELECT CAST(%s AS VARCHAR) AS id,
		       CAST(%s AS DOUBLE) AS lon,
		       CAST(%s AS DOUBLE) AS lat,
		       %s, %s
		  FROM read_parquet(?)
		 WHERE %s
		 LIMIT %d`, c.IDCol, b.XMin, b.YMin, NameExpr(c.NameCol), ClassExpr(c.ClassCol), WhereSQL(b), limit)
	args := append([]any{path}, whereArgs(where)...)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()
	return scanPointRows(rows)
}

// queryPointsRowsSampled samples limit rows after applying the AOI filter,
// avoiding the spatial bias of a plain LIMIT on a wide, low-zoom AOI.
func queryPointsRowsSampled(ctx context.Context, db *sql.DB, path string, b BBoxExprs, where aoiParams, c Columns, limit int) ([]pointRow, error) {
	q := fmt.Sprintf(`
		SELECT CAST(id_raw AS VARCHAR) AS id,
		       CAST(lon_raw AS DOUBLE) AS lon,
		       CAST(lat_raw AS DOUBLE) AS lat,
		       name_raw AS name, class_raw AS fclass
		  FROM (
		        SELECT %s AS id_raw, %s AS lon_raw, %s AS lat_raw,
		               %s AS name_raw, %s AS class_raw
		          FROM read_parquet(?)
		         WHERE %s
		       )
		 USING SAMPLE %d ROWS`,
		c.IDCol, b.XMin, b.YMin, NameExpr(c.NameCol), ClassExpr(c.ClassCol), WhereSQL(b), limit)
	args := append([]any{path}, whereArgs(where)...)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query points sampled: %w", err)
	}
	defer rows.Close()
	return scanPointRows(rows)
}

func scanPointRows(rows *sql.Rows) ([]pointRow, error) {
	var out []pointRow
	for rows.Next() {
		var r pointRow
		if err := rows.Scan(&r.ID, &r.Lon, &r.Lat, &r.Name, &r.Class); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryGeometryRowsNoPolicy(ctx context.Context, db *sql.DB, path string, b BBoxExprs, where aoiParams, c Columns, limit int) ([]geomRow, error) {
	q := fmt.Sprintf(`
		SELECT CAST(%s AS VARCHAR) AS id, CAST(%s AS BLOB) AS geom_wkb, %s, %s
		  FROM read_parquet(?)
		 WHERE %s
		 LIMIT %d`, c.IDCol, c.GeomCol, NameExpr(c.NameCol), ClassExpr(c.ClassCol), WhereSQL(b), limit)
	args := append([]any{path}, whereArgs(where)...)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query geometry: %w", err)
	}
	defer rows.Close()
	return scanGeomRows(rows)
}

func queryCandidateIDs(ctx context.Context, db *sql.DB, path string, b BBoxExprs, where aoiParams, c Columns, allow map[string]bool, orderBySQL string, limit int) ([]string, error) {
	classFilter := ""
	args := append([]any{path}, whereArgs(where)...)
	if len(allow) > 0 && c.ClassCol != "" {
		classes := make([]string, 0, len(allow))
		for k := range allow {
			classes = append(classes, k)
		}
		sort.Strings(classes)
		placeholders := make([]string, len(classes))
		for i, cl := range classes {
			placeholders[i] = "?"
			args = append(args, cl)
		}
		classFilter = fmt.Sprintf(" AND CAST(%s AS VARCHAR) IN (%s)", c.ClassCol, strings.Join(placeholders, ","))
	}
	orderClause := ""
	if strings.TrimSpace(orderBySQL) != "" {
		orderClause = " ORDER BY " + orderBySQL
	}
	q := fmt.Sprintf(`
		SELECT CAST(%s AS VARCHAR) AS id
		  FROM read_parquet(?)
		 WHERE %s%s%s
		 LIMIT %d`, c.IDCol, WhereSQL(b), classFilter, orderClause, limit)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidate ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func queryGeometryRowsForIDs(ctx context.Context, db *sql.DB, path string, b BBoxExprs, where aoiParams, c Columns, ids []string, limit int) ([]geomRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := append([]any{path}, whereArgs(where)...)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := fmt.Sprintf(`
		SELECT CAST(%s AS VARCHAR) AS id, CAST(%s AS BLOB) AS geom_wkb, %s, %s
		  FROM read_parquet(?)
		 WHERE %s AND CAST(%s AS VARCHAR) IN (%s)
		 LIMIT %d`, c.IDCol, c.GeomCol, NameExpr(c.NameCol), ClassExpr(c.ClassCol), WhereSQL(b), c.IDCol, strings.Join(placeholders, ","), limit)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query geometry for ids: %w", err)
	}
	defer rows.Close()
	return scanGeomRows(rows)
}

func queryPointsRowsForIDs(ctx context.Context, db *sql.DB, path string, b BBoxExprs, where aoiParams, c Columns, ids []string, limit int) ([]pointRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := append([]any{path}, whereArgs(where)...)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := fmt.Sprintf(`
		SELECT CAST(%s AS VARCHAR) AS id, CAST(%s AS DOUBLE) AS lon, CAST(%s AS DOUBLE) AS lat, %s, %s
		  FROM read_parquet(?)
		 WHERE %s AND CAST(%s AS VARCHAR) IN (%s)
		 LIMIT %d`, c.IDCol, b.XMin, b.YMin, NameExpr(c.NameCol), ClassExpr(c.ClassCol), WhereSQL(b), c.IDCol, strings.Join(placeholders, ","), limit)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query points for ids: %w", err)
	}
	defer rows.Close()
	return scanPointRows(rows)
}

func scanGeomRows(rows *sql.Rows) ([]geomRow, error) {
	var out []geomRow
	for rows.Next() {
		var r geomRow
		if err := rows.Scan(&r.ID, &r.WKB, &r.Name, &r.Class); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
