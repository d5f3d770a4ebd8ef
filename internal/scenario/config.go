// Package scenario loads the per-scenario configuration file: layer
// sources, default view, and the prompt-router rules. Parsing the YAML
// schema itself is intentionally minimal (an explicit Non-goal); the
// ScenarioConfig data model it loads into is in scope and drives every
// downstream component.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceKind enumerates where a layer's features come from.
type SourceKind string

const (
	SourceGeoJSONPolygons SourceKind = "geojson_polygons"
	SourceOverpassPoints  SourceKind = "overpass_points"
	SourceOverpassLines   SourceKind = "overpass_lines"
	SourceGeoParquet      SourceKind = "geoparquet"
)

// Source declares where and how to load a single layer's features.
type Source struct {
	Type    SourceKind        `yaml:"type"`
	Path    string            `yaml:"path"`
	Options map[string]string `yaml:"options"`
}

// LayerConfig declares one layer: its kind, source, and rendering style.
type LayerConfig struct {
	ID     string         `yaml:"id"`
	Title  string         `yaml:"title"`
	Kind   string         `yaml:"kind"` // points|lines|polygons
	Source Source         `yaml:"source"`
	Style  map[string]any `yaml:"style"`
	Policy *RenderPolicy  `yaml:"policy,omitempty"`
}

// RenderPolicy configures GeoParquet candidate selection for a layer (§4.4.2).
type RenderPolicy struct {
	MinZoomForGeometry       float64            `yaml:"minZoomForGeometry"`
	MinZoomForGeometryByClass map[string]float64 `yaml:"minZoomForGeometryByClass"`
	MaxCandidatesByZoom      map[string]int     `yaml:"maxCandidatesByZoom"`
	OrderBy                  string             `yaml:"orderBy"`
	ClassColumn              string             `yaml:"classColumn"`
}

// HighlightRule is a keyword-triggered overlay rule (§4.6 step 2).
type HighlightRule struct {
	Keywords    []string            `yaml:"keywords"`
	LayerID     string              `yaml:"layerId"`
	Props       map[string][]string `yaml:"props"`
	MaskLayerID string              `yaml:"maskLayerId"`
	MaskMode    string              `yaml:"maskMode"` // IN_MASK | OUTSIDE_MASK
	MaxFeatures int                 `yaml:"maxFeatures"`
	Title       string              `yaml:"title"`
}

// ProximityRule scores recommendation candidates by distance to a reference
// layer (§4.6 step 5).
type ProximityRule struct {
	LayerID   string  `yaml:"layerId"`
	MaxMeters float64 `yaml:"maxMeters"`
	Penalty   float64 `yaml:"penalty"`
}

// Routing carries every prompt-router rule for a scenario.
type Routing struct {
	ShowLayersKeywords    []string        `yaml:"showLayersKeywords"`
	HighlightRules        []HighlightRule `yaml:"highlightRules"`
	PrimaryPointsLayerID  string          `yaml:"primaryPointsLayerId"`
	CountMaskLayerID      string          `yaml:"countMaskLayerId"`
	CountKeyword          string          `yaml:"countKeyword"`
	MaskKeyword           string          `yaml:"maskKeyword"`
	LabelSingular         string          `yaml:"labelSingular"`
	LabelPlural           string          `yaml:"labelPlural"`
	RecommendKeyword      string          `yaml:"recommendKeyword"`
	ProximityRules        []ProximityRule `yaml:"proximityRules"`
	EscapeRoadsKeywords   []string        `yaml:"escapeRoadsKeywords"`
	RoadsLayerHint        string          `yaml:"roadsLayerHint"`
	ExamplePrompts        []string        `yaml:"examplePrompts"`
}

// Plot carries rendering hints not tied to routing.
type Plot struct {
	HighlightLayerID     string `yaml:"highlightLayerId"`
	PrimaryPointLayerID  string `yaml:"primaryPointLayerId"`
}

// View is a default map center/zoom.
type View struct {
	Center struct {
		Lat float64 `yaml:"lat"`
		Lon float64 `yaml:"lon"`
	} `yaml:"center"`
	Zoom float64 `yaml:"zoom"`
}

// Config is a single scenario's frozen configuration, loaded once per
// process.
type Config struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	DefaultView View          `yaml:"defaultView"`
	DataSize    string        `yaml:"dataSize"` // small|large
	Layers      []LayerConfig `yaml:"layers"`
	Routing     Routing       `yaml:"routing"`
	Plot        Plot          `yaml:"plot"`
}

// IsLarge reports whether this scenario forces the columnar engine.
func (c Config) IsLarge() bool { return c.DataSize == "large" }

// Layer returns a layer's config by id.
func (c Config) Layer(id string) (LayerConfig, bool) {
	for _, l := range c.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return LayerConfig{}, false
}

// Load reads and parses a scenario config file from disk.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read scenario config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse scenario config %s: %w", path, err)
	}
	if cfg.ID == "" {
		return Config{}, fmt.Errorf("scenario config %s: missing id", path)
	}
	return cfg, nil
}

// LoadDir loads every *.yaml/*.yml file directly under dir into a registry
// keyed by scenario id.
func LoadDir(dir string) (map[string]Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir %s: %w", dir, err)
	}
	out := make(map[string]Config, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !hasYAMLExt(name) {
			continue
		}
		cfg, err := Load(dir + "/" + name)
		if err != nil {
			return nil, err
		}
		out[cfg.ID] = cfg
	}
	return out, nil
}

func hasYAMLExt(name string) bool {
	return len(name) > 5 && (name[len(name)-5:] == ".yaml") ||
		len(name) > 4 && (name[len(name)-4:] == ".yml")
}
