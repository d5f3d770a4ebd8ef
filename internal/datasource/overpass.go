// Package datasource ingests scenario layers from their configured sources
// — pre-fetched Overpass JSON dumps (or, with live ingestion, Overpass API
// node/way queries) for overpass_points/overpass_lines layers, GeoJSON
// polygon files for geojson_polygons layers (see internal/geojson).
// GeoParquet-sourced layers get an empty placeholder layer here; the DuckDB
// engine reads their files directly.
package datasource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MeKo-Christian/go-overpass"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	// Endpoint is the Overpass API URL (default: https://overpass-api.de/api/interpreter).
	Endpoint string
	// Workers controls query parallelism (default: 2 for the public API).
	Workers int
	// RetryConfig configures retry behavior with exponential backoff.
	RetryConfig *overpass.RetryConfig
	// HTTPClient allows a custom HTTP client (default: http.DefaultClient).
	HTTPClient *http.Client
}

// DefaultOverpassConfig returns sensible defaults for the public Overpass API.
func DefaultOverpassConfig() OverpassConfig {
	retry := overpass.DefaultRetryConfig()
	return OverpassConfig{
		Endpoint:    "https://overpass-api.de/api/interpreter",
		Workers:     2,
		RetryConfig: &retry,
		HTTPClient:  http.DefaultClient,
	}
}

// OverpassClient fetches OSM nodes and ways inside a fixed bounding box,
// filtered by a caller-supplied tag selector. Scenario layers are ingested
// once at startup, not per AOI request — the bbox is each layer's fixed
// ingestion area (scenario.Source.Options["bbox"]), not the live map view.
type OverpassClient struct {
	client overpass.Client
}

// NewOverpassClient builds a client from cfg, applying defaults for any
// zero-valued fields.
func NewOverpassClient(cfg OverpassConfig) *OverpassClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://overpass-api.de/api/interpreter"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	var client overpass.Client
	if cfg.RetryConfig != nil {
		client = overpass.NewWithRetry(cfg.Endpoint, cfg.Workers, cfg.HTTPClient, *cfg.RetryConfig)
	} else {
		client = overpass.NewWithSettings(cfg.Endpoint, cfg.Workers, cfg.HTTPClient)
	}

	return &OverpassClient{client: client}
}

// QueryPoints fetches OSM nodes matching tagFilter (a raw Overpass QL tag
// selector, e.g. `["amenity"="shelter"]`) inside bbox.
func (c *OverpassClient) QueryPoints(ctx context.Context, bbox types.BBox, tagFilter string) ([]types.PointFeature, error) {
	query := buildQuery(bbox, "node", tagFilter, "out body qt;")
	result, err := c.client.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass node query failed: %w", err)
	}
	return extractPoints(&result), nil
}

// QueryLines fetches OSM ways matching tagFilter inside bbox, returning
// each way's complete, unclipped geometry.
func (c *OverpassClient) QueryLines(ctx context.Context, bbox types.BBox, tagFilter string) ([]types.LineFeature, error) {
	query := buildQuery(bbox, "way", tagFilter, "out geom qt;")
	result, err := c.client.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass way query failed: %w", err)
	}
	return extractLines(&result), nil
}

// buildQuery renders an Overpass QL query selecting elementType elements
// matching tagFilter within bbox.
//
// Uses unclipped "out geom" for ways so a way's full geometry is returned
// even when it crosses the ingestion bbox boundary — the Overpass API has a
// known bug (https://github.com/drolbr/Overpass-API/issues/417) where
// "out geom(bbox)" clipping returns malformed geometry for partially
// included ways.
func buildQuery(bbox types.BBox, elementType, tagFilter, outputMode string) string {
	box := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon)
	return fmt.Sprintf("[out:json][timeout:60];\n(\n  %s%s(%s);\n);\n%s",
		elementType, tagFilter, box, outputMode)
}
