// Package engine declares the AOI engine strategy interface shared by the
// in-memory and columnar (DuckDB) backends.
package engine

import (
	"context"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// Engine produces a deduplicated, per-layer feature slice plus its spatial
// index for a single MapContext. Both concrete strategies (in-memory,
// DuckDB-backed) must return the same (LayerBundle, GeoIndex) shape for a
// given scenario and AOI.
type Engine interface {
	Name() string
	Get(ctx context.Context, mc types.MapContext) (types.EngineResult, error)
}

// Loader loads the raw, unsliced feature set for a scenario's layers from
// their configured sources. Both engines depend on this rather than
// reimplementing source ingestion.
type Loader interface {
	Load(ctx context.Context, scenarioID string) (types.LayerBundle, error)
}
