// Package geoparquet queries GeoParquet layer files through DuckDB's
// read_parquet table function and decodes the resulting WKB geometry into
// the engine's flat feature types — grounded on
// original_source/backend/engine/duckdb_impl/geoparquet/*.py.
package geoparquet

import (
	"os"
	"strconv"
	"strings"
)

// DefaultGeomMinZoom is the view zoom below which lines/polygons are not
// decoded at all absent a render policy override, overridable via the
// MAPAGENT_GEOPARQUET_GEOM_MIN_ZOOM env var.
func DefaultGeomMinZoom() float64 {
	if raw := strings.TrimSpace(os.Getenv("MAPAGENT_GEOPARQUET_GEOM_MIN_ZOOM")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return 11.0
}

// AOICacheDecimals controls coordinate rounding used to key the bundle
// cache, overridable via MAPAGENT_GEOPARQUET_AOI_DECIMALS (clamped [2,6]).
func AOICacheDecimals() int {
	if raw := strings.TrimSpace(os.Getenv("MAPAGENT_GEOPARQUET_AOI_DECIMALS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			if v < 2 {
				v = 2
			}
			if v > 6 {
				v = 6
			}
			return v
		}
	}
	return 3
}

// SafetyLimit returns the upper bound on candidate rows considered for a
// layer kind at a given view zoom, before any render-policy narrowing.
func SafetyLimit(kind string, viewZoom float64) int {
	switch {
	case viewZoom <= 7.5:
		switch kind {
		case "points":
			return 50_000
		case "lines":
			return 20_000
		default:
			return 10_000
		}
	case viewZoom <= 9.0:
		switch kind {
		case "points":
			return 150_000
		case "lines":
			return 60_000
		default:
			return 30_000
		}
	default:
		switch kind {
		case "points":
			return 500_000
		case "lines":
			return 200_000
		default:
			return 100_000
		}
	}
}

// Columns names the configurable id/name/class/geometry columns of a
// GeoParquet source.
type Columns struct {
	IDCol    string
	NameCol  string
	ClassCol string
	GeomCol  string
}

// ParseColumns reads column overrides out of a layer source's option map,
// defaulting to the OSM-derived convention the corpus's sample data uses.
func ParseColumns(opts map[string]string) Columns {
	c := Columns{IDCol: "osm_id", GeomCol: "geometry"}
	if opts == nil {
		return c
	}
	if v, ok := opts["idColumn"]; ok && v != "" {
		c.IDCol = v
	}
	if v, ok := opts["geometryColumn"]; ok && v != "" {
		c.GeomCol = v
	}
	c.NameCol = opts["nameColumn"]
	c.ClassCol = opts["classColumn"]
	return c
}

// NameExpr builds the SQL projection for the optional name column.
func NameExpr(nameCol string) string {
	if nameCol == "" {
		return "NULL AS name"
	}
	return "CAST(" + nameCol + " AS VARCHAR) AS name"
}

// ClassExpr builds the SQL projection for the optional class column.
func ClassExpr(classCol string) string {
	if classCol == "" {
		return "NULL AS fclass"
	}
	return "CAST(" + classCol + " AS VARCHAR) AS fclass"
}
