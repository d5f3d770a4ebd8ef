package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/MeKo-Tech/mapagent/internal/geoindex"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/tile"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

const tileSliceCacheSize = 256

// duckdbThreads resolves the worker-thread count for a DuckDB connection,
// overridable via MAPAGENT_DUCKDB_THREADS.
func duckdbThreads() int {
	if raw := strings.TrimSpace(os.Getenv("MAPAGENT_DUCKDB_THREADS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

func pathForScenario(scenarioID, override string) string {
	if override != "" {
		return override
	}
	if env := strings.TrimSpace(os.Getenv("MAPAGENT_DUCKDB_PATH")); env != "" {
		return env
	}
	baseDir := strings.TrimSpace(os.Getenv("MAPAGENT_DUCKDB_DIR"))
	if baseDir == "" {
		baseDir = "data/duckdb"
	}
	return filepath.Join(baseDir, scenarioID+".duckdb")
}

func connect(path string, threads int) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	if _, err := db.Exec(fmt.Sprintf("SET threads=%d", threads)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set threads: %w", err)
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS points (
			layer_id TEXT, id TEXT, lon DOUBLE, lat DOUBLE, props_json TEXT,
			min_lon DOUBLE, min_lat DOUBLE, max_lon DOUBLE, max_lat DOUBLE,
			PRIMARY KEY(layer_id, id))`,
		`CREATE TABLE IF NOT EXISTS lines (
			layer_id TEXT, id TEXT, coords_json TEXT, props_json TEXT,
			min_lon DOUBLE, min_lat DOUBLE, max_lon DOUBLE, max_lat DOUBLE,
			PRIMARY KEY(layer_id, id))`,
		`CREATE TABLE IF NOT EXISTS polygons (
			layer_id TEXT, id TEXT, rings_json TEXT, props_json TEXT,
			min_lon DOUBLE, min_lat DOUBLE, max_lon DOUBLE, max_lat DOUBLE,
			PRIMARY KEY(layer_id, id))`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func tableCount(db *sql.DB, table string) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func bboxOfCoords(coords []types.LonLat) (minLon, minLat, maxLon, maxLat float64) {
	if len(coords) == 0 {
		return
	}
	minLon, minLat = coords[0].Lon, coords[0].Lat
	maxLon, maxLat = coords[0].Lon, coords[0].Lat
	for _, c := range coords[1:] {
		minLon, maxLon = minF(minLon, c.Lon), maxF(maxLon, c.Lon)
		minLat, maxLat = minF(minLat, c.Lat), maxF(maxLat, c.Lat)
	}
	return
}

func bboxOfRings(rings [][]types.LonLat) (minLon, minLat, maxLon, maxLat float64) {
	first := true
	for _, ring := range rings {
		for _, c := range ring {
			if first {
				minLon, maxLon, minLat, maxLat = c.Lon, c.Lon, c.Lat, c.Lat
				first = false
				continue
			}
			minLon, maxLon = minF(minLon, c.Lon), maxF(maxLon, c.Lon)
			minLat, maxLat = minF(minLat, c.Lat), maxF(maxLat, c.Lat)
		}
	}
	return
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func propsJSON(p types.Props) string {
	if len(p) == 0 {
		return "{}"
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// seedAllLayers inserts layers' features into the generic tables, skipping
// a table entirely once it already holds rows — a scenario's seed file is
// append-only across process restarts, never re-imported.
func seedAllLayers(db *sql.DB, bundle types.LayerBundle) error {
	if n, err := tableCount(db, "points"); err != nil {
		return err
	} else if n == 0 {
		if err := seedPoints(db, bundle); err != nil {
			return err
		}
	}
	if n, err := tableCount(db, "lines"); err != nil {
		return err
	} else if n == 0 {
		if err := seedLines(db, bundle); err != nil {
			return err
		}
	}
	if n, err := tableCount(db, "polygons"); err != nil {
		return err
	} else if n == 0 {
		if err := seedPolygons(db, bundle); err != nil {
			return err
		}
	}
	return nil
}

func seedPoints(db *sql.DB, bundle types.LayerBundle) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO points VALUES (?,?,?,?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, layer := range bundle.OfKind(types.KindPoints) {
		for _, f := range layer.Points {
			if _, err := stmt.Exec(layer.ID, f.ID, f.Lon, f.Lat, propsJSON(f.Props), f.Lon, f.Lat, f.Lon, f.Lat); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func seedLines(db *sql.DB, bundle types.LayerBundle) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO lines VALUES (?,?,?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, layer := range bundle.OfKind(types.KindLines) {
		for _, f := range layer.Lines {
			minLon, minLat, maxLon, maxLat := bboxOfCoords(f.Coords)
			coordsJSON, err := json.Marshal(f.Coords)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(layer.ID, f.ID, string(coordsJSON), propsJSON(f.Props), minLon, minLat, maxLon, maxLat); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func seedPolygons(db *sql.DB, bundle types.LayerBundle) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO polygons VALUES (?,?,?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, layer := range bundle.OfKind(types.KindPolygons) {
		for _, f := range layer.Polygons {
			minLon, minLat, maxLon, maxLat := bboxOfRings(f.Rings)
			ringsJSON, err := json.Marshal(f.Rings)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(layer.ID, f.ID, string(ringsJSON), propsJSON(f.Props), minLon, minLat, maxLon, maxLat); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

const seededWhere = "max_lon >= ? AND min_lon <= ? AND max_lat >= ? AND min_lat <= ?"

// querySeededLayersBBox re-reads the seeded tables for aoi and reassembles
// a LayerBundle ordered per cfg, one feature-id per layer, sorted by id.
func querySeededLayersBBox(db *sql.DB, aoi types.BBox, cfg scenario.Config) (types.LayerBundle, error) {
	b := aoi.Normalized()
	params := []any{b.MinLon, b.MaxLon, b.MinLat, b.MaxLat}

	pointRows, err := db.Query("SELECT layer_id, id, lon, lat, props_json FROM points WHERE "+seededWhere, params...)
	if err != nil {
		return types.LayerBundle{}, err
	}
	byPoints := make(map[string][]types.PointFeature)
	for pointRows.Next() {
		var layerID, id, propsJSON string
		var lon, lat float64
		if err := pointRows.Scan(&layerID, &id, &lon, &lat, &propsJSON); err != nil {
			pointRows.Close()
			return types.LayerBundle{}, err
		}
		byPoints[layerID] = append(byPoints[layerID], types.PointFeature{ID: id, Lon: lon, Lat: lat, Props: unmarshalProps(propsJSON)})
	}
	pointRows.Close()
	if err := pointRows.Err(); err != nil {
		return types.LayerBundle{}, err
	}

	lineRows, err := db.Query("SELECT layer_id, id, coords_json, props_json FROM lines WHERE "+seededWhere, params...)
	if err != nil {
		return types.LayerBundle{}, err
	}
	byLines := make(map[string][]types.LineFeature)
	for lineRows.Next() {
		var layerID, id, coordsJSON, propsJSON string
		if err := lineRows.Scan(&layerID, &id, &coordsJSON, &propsJSON); err != nil {
			lineRows.Close()
			return types.LayerBundle{}, err
		}
		var coords []types.LonLat
		_ = json.Unmarshal([]byte(coordsJSON), &coords)
		byLines[layerID] = append(byLines[layerID], types.LineFeature{ID: id, Coords: coords, Props: unmarshalProps(propsJSON)})
	}
	lineRows.Close()
	if err := lineRows.Err(); err != nil {
		return types.LayerBundle{}, err
	}

	polyRows, err := db.Query("SELECT layer_id, id, rings_json, props_json FROM polygons WHERE "+seededWhere, params...)
	if err != nil {
		return types.LayerBundle{}, err
	}
	byPolys := make(map[string][]types.PolygonFeature)
	for polyRows.Next() {
		var layerID, id, ringsJSON, propsJSON string
		if err := polyRows.Scan(&layerID, &id, &ringsJSON, &propsJSON); err != nil {
			polyRows.Close()
			return types.LayerBundle{}, err
		}
		var rings [][]types.LonLat
		_ = json.Unmarshal([]byte(ringsJSON), &rings)
		byPolys[layerID] = append(byPolys[layerID], types.PolygonFeature{ID: id, Rings: rings, Props: unmarshalProps(propsJSON)})
	}
	polyRows.Close()
	if err := polyRows.Err(); err != nil {
		return types.LayerBundle{}, err
	}

	out := make([]types.Layer, 0, len(cfg.Layers))
	for _, lc := range cfg.Layers {
		layer := types.Layer{ID: lc.ID, Title: lc.Title, Style: types.Style(lc.Style)}
		switch lc.Kind {
		case "points":
			layer.Kind = types.KindPoints
			pts := byPoints[lc.ID]
			sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })
			layer.Points = pts
		case "lines":
			layer.Kind = types.KindLines
			ls := byLines[lc.ID]
			sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
			layer.Lines = ls
		default:
			layer.Kind = types.KindPolygons
			ps := byPolys[lc.ID]
			sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
			layer.Polygons = ps
		}
		out = append(out, layer)
	}
	return types.LayerBundle{Layers: out}, nil
}

func unmarshalProps(s string) types.Props {
	if s == "" {
		return types.Props{}
	}
	var p types.Props
	if err := json.Unmarshal([]byte(s), &p); err != nil || p == nil {
		return types.Props{}
	}
	return p
}

// seededBase is a per-scenario seeded-mode handle: one shared schema-init
// guard, and a connection plus tile slice cache per worker slot (the slot
// WithWorkerSlot puts on the request context).
type seededBase struct {
	scenarioID string
	path       string
	cfg        scenario.Config
	index      *geoindex.Index
	threads    int

	initOnce sync.Once
	initErr  error

	localMu sync.Mutex
	local   map[int64]*seededLocal
}

type seededLocal struct {
	db    *sql.DB
	cache map[[3]uint32]types.LayerBundle
	order []([3]uint32)
}

func newSeededBase(scenarioID, path string, cfg scenario.Config, bundle types.LayerBundle, threads int) *seededBase {
	return &seededBase{
		scenarioID: scenarioID,
		path:       path,
		cfg:        cfg,
		index:      geoindex.Build(bundle),
		threads:    threads,
		local:      make(map[int64]*seededLocal),
	}
}

func (sb *seededBase) ensureInitialized(bundle types.LayerBundle) error {
	sb.initOnce.Do(func() {
		db, err := connect(sb.path, sb.threads)
		if err != nil {
			sb.initErr = err
			return
		}
		defer db.Close()
		if err := initSchema(db); err != nil {
			sb.initErr = err
			return
		}
		sb.initErr = seedAllLayers(db, bundle)
	})
	return sb.initErr
}

// conn returns (creating if needed) this goroutine's DuckDB connection,
// keyed by goroutine id is unavailable in Go, so instead we key by a
// caller-supplied worker slot (0 for single-threaded callers).
func (sb *seededBase) conn(slot int64) (*sql.DB, *seededLocal, error) {
	sb.localMu.Lock()
	defer sb.localMu.Unlock()
	l, ok := sb.local[slot]
	if ok {
		return l.db, l, nil
	}
	db, err := connect(sb.path, sb.threads)
	if err != nil {
		return nil, nil, err
	}
	l = &seededLocal{db: db, cache: make(map[[3]uint32]types.LayerBundle)}
	sb.local[slot] = l
	return db, l, nil
}

func (sb *seededBase) sliceLayersTiled(slot int64, aoi types.BBox, tileZoom int) (types.LayerBundle, error) {
	tiles := tile.TilesForBBox(tileZoom, aoi)
	if len(tiles) == 0 {
		return sb.emptyBundle(), nil
	}

	db, l, err := sb.conn(slot)
	if err != nil {
		return types.LayerBundle{}, err
	}

	merged := make(map[string]map[string]any)
	for _, t := range tiles {
		key := [3]uint32{uint32(t.Z), t.X, t.Y}
		cached, ok := l.cache[key]
		if !ok {
			tb := t.BBox()
			cached, err = querySeededLayersBBox(db, tb, sb.cfg)
			if err != nil {
				return types.LayerBundle{}, err
			}
			putTileCache(l, key, cached)
		}
		for _, layer := range cached.Layers {
			bucket, ok := merged[layer.ID]
			if !ok {
				bucket = make(map[string]any)
				merged[layer.ID] = bucket
			}
			switch layer.Kind {
			case types.KindPoints:
				for _, f := range layer.Points {
					if _, ok := bucket[f.ID]; !ok {
						bucket[f.ID] = f
					}
				}
			case types.KindLines:
				for _, f := range layer.Lines {
					if _, ok := bucket[f.ID]; !ok {
						bucket[f.ID] = f
					}
				}
			case types.KindPolygons:
				for _, f := range layer.Polygons {
					if _, ok := bucket[f.ID]; !ok {
						bucket[f.ID] = f
					}
				}
			}
		}
	}

	out := make([]types.Layer, 0, len(sb.cfg.Layers))
	for _, lc := range sb.cfg.Layers {
		layer := types.Layer{ID: lc.ID, Title: lc.Title, Style: types.Style(lc.Style)}
		bucket := merged[lc.ID]
		ids := make([]string, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		switch lc.Kind {
		case "points":
			layer.Kind = types.KindPoints
			for _, id := range ids {
				layer.Points = append(layer.Points, bucket[id].(types.PointFeature))
			}
		case "lines":
			layer.Kind = types.KindLines
			for _, id := range ids {
				layer.Lines = append(layer.Lines, bucket[id].(types.LineFeature))
			}
		default:
			layer.Kind = types.KindPolygons
			for _, id := range ids {
				layer.Polygons = append(layer.Polygons, bucket[id].(types.PolygonFeature))
			}
		}
		out = append(out, layer)
	}
	return types.LayerBundle{Layers: out}, nil
}

func putTileCache(l *seededLocal, key [3]uint32, v types.LayerBundle) {
	l.cache[key] = v
	l.order = append(l.order, key)
	if len(l.order) > tileSliceCacheSize {
		oldest := l.order[0]
		l.order = l.order[1:]
		if oldest != key {
			delete(l.cache, oldest)
		}
	}
}

func (sb *seededBase) emptyBundle() types.LayerBundle {
	out := make([]types.Layer, len(sb.cfg.Layers))
	for i, lc := range sb.cfg.Layers {
		out[i] = types.Layer{ID: lc.ID, Kind: kindOfString(lc.Kind), Title: lc.Title, Style: types.Style(lc.Style)}
	}
	return types.LayerBundle{Layers: out}
}

func kindOfString(kind string) types.GeometryKind {
	switch kind {
	case "points":
		return types.KindPoints
	case "lines":
		return types.KindLines
	default:
		return types.KindPolygons
	}
}

func ctxSlot(ctx context.Context) int64 {
	if v := ctx.Value(slotKey{}); v != nil {
		if slot, ok := v.(int64); ok {
			return slot
		}
	}
	return 0
}

type slotKey struct{}
