package types

// ViewCenter is a WGS84 center point for a map viewport.
type ViewCenter struct {
	Lat float64
	Lon float64
}

// Viewport is the pixel size of the client's map canvas.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport matches the focus-zoom formula's assumed canvas size when
// the caller doesn't supply one.
var DefaultViewport = Viewport{Width: 900, Height: 600}

// MapContext is everything an AOI engine needs to answer a single request.
type MapContext struct {
	ScenarioID string
	AOI        BBox
	ViewCenter ViewCenter
	ViewZoom   float64
	Viewport   Viewport
}

// LayerStats carries per-layer diagnostic stats produced by an AOI engine
// (only populated by the columnar/GeoParquet engine; nil for in-memory).
type LayerStats struct {
	LayerID       string
	Kind          GeometryKind
	Source        string
	Zoom          float64
	N             int
	DuckDBMs      float64
	DecodeMs      float64
	TotalMs       float64
	SafetyCap     int
	PolicyCap     int
	HardCap       int
	EffectiveCap  int
	CappedBy      []string
	SkippedReason string
	GeomMinZoom   float64
}

// EngineResult is what an AOI engine returns for a single MapContext.
type EngineResult struct {
	Layers LayerBundle
	Index  GeoIndex
	Stats  []LayerStats
}

// GeoIndex is implemented by internal/geoindex.Index; declared here so the
// engine/lod/router packages can depend on the interface without importing
// geoindex (which depends on types).
type GeoIndex interface {
	SliceLayers(aoi BBox) LayerBundle
	SliceLayersTiled(aoi BBox, tileZoom int) LayerBundle
	PolygonUnionForAOI(layerID string, aoi BBox) PolygonUnion
	DistanceToNearestPointM(lon, lat float64, pointLayerID string) float64
}
