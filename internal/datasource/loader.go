package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mapagent/internal/geojson"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
	"github.com/MeKo-Tech/mapagent/internal/worker"
)

// ScenarioLoader implements engine.Loader by reading each layer's
// pre-fetched data from scenario.Source.Path — static GeoJSON for
// geojson_polygons layers, static Overpass JSON dumps for
// overpass_points/overpass_lines layers. This is grounded on
// original_source/backend/layers/loaders.py, which reads the same kind of
// static files rather than querying a live service per request.
// GeoParquet-sourced layers are returned as an empty placeholder; the
// DuckDB engine loads those directly from the parquet file.
type ScenarioLoader struct {
	scenarios map[string]scenario.Config
	workers   int
}

// NewScenarioLoader builds a loader backed by the given scenario registry,
// loading each scenario's layers with up to workers goroutines concurrently
// (§4.4.3's "load once per process" semantics, parallelized across layers).
func NewScenarioLoader(scenarios map[string]scenario.Config, workers int) *ScenarioLoader {
	if workers < 1 {
		workers = 4
	}
	return &ScenarioLoader{scenarios: scenarios, workers: workers}
}

// Load implements engine.Loader.
func (l *ScenarioLoader) Load(ctx context.Context, scenarioID string) (types.LayerBundle, error) {
	cfg, ok := l.scenarios[scenarioID]
	if !ok {
		return types.LayerBundle{}, fmt.Errorf("unknown scenario %q", scenarioID)
	}
	return runLayerPool(ctx, cfg, l, l.workers)
}

// LoadLayer implements worker.LayerLoader. bbox is unused: static sources
// carry their own extent in the dump/file itself.
func (l *ScenarioLoader) LoadLayer(ctx context.Context, lc scenario.LayerConfig, _ types.BBox) (types.Layer, error) {
	layer := blankLayer(lc)

	switch lc.Source.Type {
	case scenario.SourceGeoParquet:
		return layer, nil
	case scenario.SourceGeoJSONPolygons:
		polys, err := geojson.LoadPolygons(lc.Source.Path)
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		layer.Polygons = polys
		return layer, nil
	case scenario.SourceOverpassPoints:
		pts, err := LoadOverpassPoints(lc.Source.Path)
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		layer.Points = pts
		return layer, nil
	case scenario.SourceOverpassLines:
		lines, err := LoadOverpassLines(lc.Source.Path)
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		layer.Lines = lines
		return layer, nil
	default:
		return types.Layer{}, fmt.Errorf("layer %s: unknown source type %q", lc.ID, lc.Source.Type)
	}
}

// LiveScenarioLoader loads overpass_points/overpass_lines layers directly
// from the Overpass API instead of static dumps, using each layer's
// Source.Options["bbox"] ("minLon,minLat,maxLon,maxLat") as the fixed
// ingestion area and Options["filter"] as the Overpass QL tag selector
// (e.g. `["amenity"="shelter"]`). geojson_polygons and geoparquet layers
// behave exactly as in ScenarioLoader.
type LiveScenarioLoader struct {
	scenarios map[string]scenario.Config
	client    *OverpassClient
	workers   int
}

// NewLiveScenarioLoader builds a loader that queries client for every
// overpass-sourced layer on each Load call.
func NewLiveScenarioLoader(scenarios map[string]scenario.Config, client *OverpassClient, workers int) *LiveScenarioLoader {
	if workers < 1 {
		workers = 4
	}
	return &LiveScenarioLoader{scenarios: scenarios, client: client, workers: workers}
}

// Load implements engine.Loader.
func (l *LiveScenarioLoader) Load(ctx context.Context, scenarioID string) (types.LayerBundle, error) {
	cfg, ok := l.scenarios[scenarioID]
	if !ok {
		return types.LayerBundle{}, fmt.Errorf("unknown scenario %q", scenarioID)
	}
	return runLayerPool(ctx, cfg, l, l.workers)
}

// LoadLayer implements worker.LayerLoader.
func (l *LiveScenarioLoader) LoadLayer(ctx context.Context, lc scenario.LayerConfig, _ types.BBox) (types.Layer, error) {
	layer := blankLayer(lc)

	switch lc.Source.Type {
	case scenario.SourceGeoParquet:
		return layer, nil
	case scenario.SourceGeoJSONPolygons:
		polys, err := geojson.LoadPolygons(lc.Source.Path)
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		layer.Polygons = polys
		return layer, nil
	case scenario.SourceOverpassPoints:
		bbox, err := parseBBoxOption(lc.Source.Options["bbox"])
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		pts, err := l.client.QueryPoints(ctx, bbox, lc.Source.Options["filter"])
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		layer.Points = pts
		return layer, nil
	case scenario.SourceOverpassLines:
		bbox, err := parseBBoxOption(lc.Source.Options["bbox"])
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		lines, err := l.client.QueryLines(ctx, bbox, lc.Source.Options["filter"])
		if err != nil {
			return types.Layer{}, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		layer.Lines = lines
		return layer, nil
	default:
		return types.Layer{}, fmt.Errorf("layer %s: unknown source type %q", lc.ID, lc.Source.Type)
	}
}

// runLayerPool loads every layer in cfg concurrently via a worker.Pool,
// then reassembles results in cfg.Layers order (worker.Pool completion
// order is not stable, but LayerBundle order drives downstream render
// ordering and must be deterministic).
func runLayerPool(ctx context.Context, cfg scenario.Config, loader worker.LayerLoader, workers int) (types.LayerBundle, error) {
	tasks := make([]worker.Task, len(cfg.Layers))
	for i, lc := range cfg.Layers {
		tasks[i] = worker.Task{Layer: lc}
	}

	pool := worker.New(worker.Config{Workers: workers, Loader: loader})
	results := pool.Run(ctx, tasks)

	byID := make(map[string]worker.Result, len(results))
	for _, r := range results {
		byID[r.Task.Layer.ID] = r
	}

	bundle := types.LayerBundle{Layers: make([]types.Layer, len(cfg.Layers))}
	for i, lc := range cfg.Layers {
		r, ok := byID[lc.ID]
		if !ok {
			return types.LayerBundle{}, fmt.Errorf("layer %s: did not complete", lc.ID)
		}
		if r.Err != nil {
			return types.LayerBundle{}, r.Err
		}
		bundle.Layers[i] = r.Layer
	}
	return bundle, nil
}

func blankLayer(lc scenario.LayerConfig) types.Layer {
	return types.Layer{ID: lc.ID, Kind: kindFromString(lc.Kind), Title: lc.Title, Style: lc.Style}
}

func kindFromString(k string) types.GeometryKind {
	switch k {
	case "lines":
		return types.KindLines
	case "polygons":
		return types.KindPolygons
	default:
		return types.KindPoints
	}
}

// parseBBoxOption parses a "minLon,minLat,maxLon,maxLat" option string.
func parseBBoxOption(s string) (types.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BBox{}, fmt.Errorf("bbox option must have 4 comma-separated values, got %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.BBox{}, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		vals[i] = v
	}
	return types.NewBBox(vals[0], vals[1], vals[2], vals[3]), nil
}
