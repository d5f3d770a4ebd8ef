package geoindex

import (
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/mapagent/internal/geom"
	"github.com/MeKo-Tech/mapagent/internal/tile"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

const (
	sliceCacheCap      = 64
	unionCacheCap      = 64
	tileSliceCacheCap  = 256
	roundedKeyDecimals = 4
)

type sliceKey struct {
	layerIDs string
	aoi      [4]float64
}

type unionKey struct {
	layerID string
	aoi     [4]float64
}

type tileKey struct {
	z, x, y uint32
}

// layerGeo holds the per-layer index state built once from a LayerBundle.
type layerGeo struct {
	kind types.GeometryKind
	tree *STRTree
	// feature indices parallel to the original layer's feature slice
	n int
}

// Index is the concrete, in-process implementation of types.GeoIndex: one
// per-layer bbox STR-tree, a projected quadtree per point layer for nearest
// neighbor, and the bounded caches described in §4.3/§4.7 of the feature
// bundle this index was built over.
type Index struct {
	bundle types.LayerBundle
	geo    map[string]*layerGeo
	points map[string]*pointQuadtree

	sliceCache     *boundedCache[sliceKey, types.LayerBundle]
	unionCache     *boundedCache[unionKey, types.PolygonUnion]
	tileSliceCache *boundedCache[tileKey, types.LayerBundle]
}

// Build constructs a GeoIndex over a LayerBundle. Called once per scenario
// (in-memory engine) or once per seeded-tables load (columnar engine).
func Build(bundle types.LayerBundle) *Index {
	idx := &Index{
		bundle:         bundle,
		geo:            make(map[string]*layerGeo, len(bundle.Layers)),
		points:         make(map[string]*pointQuadtree),
		sliceCache:     newBoundedCache[sliceKey, types.LayerBundle](sliceCacheCap),
		unionCache:     newBoundedCache[unionKey, types.PolygonUnion](unionCacheCap),
		tileSliceCache: newBoundedCache[tileKey, types.LayerBundle](tileSliceCacheCap),
	}

	for _, l := range bundle.Layers {
		switch l.Kind {
		case types.KindPoints:
			bounds := make([]types.BBox, len(l.Points))
			for i, p := range l.Points {
				bounds[i] = types.BBox{MinLon: p.Lon, MinLat: p.Lat, MaxLon: p.Lon, MaxLat: p.Lat}
			}
			idx.geo[l.ID] = &layerGeo{kind: l.Kind, tree: NewSTRTree(bounds), n: len(l.Points)}
			idx.points[l.ID] = newPointQuadtree(l.Points)
		case types.KindLines:
			bounds := make([]types.BBox, len(l.Lines))
			for i, f := range l.Lines {
				bounds[i] = geom.LineBBox(f.Coords)
			}
			idx.geo[l.ID] = &layerGeo{kind: l.Kind, tree: NewSTRTree(bounds), n: len(l.Lines)}
		case types.KindPolygons:
			bounds := make([]types.BBox, len(l.Polygons))
			for i, f := range l.Polygons {
				bounds[i] = geom.PolygonBBox(f)
			}
			idx.geo[l.ID] = &layerGeo{kind: l.Kind, tree: NewSTRTree(bounds), n: len(l.Polygons)}
		}
	}

	return idx
}

func layerIDSignature(b types.LayerBundle) string {
	ids := make([]string, len(b.Layers))
	for i, l := range b.Layers {
		ids[i] = l.ID
	}
	return strings.Join(ids, ",")
}

// SliceLayers returns the subset of each layer intersecting aoi, cached by
// (layer-id signature, rounded AOI key).
func (idx *Index) SliceLayers(aoi types.BBox) types.LayerBundle {
	key := sliceKey{layerIDs: layerIDSignature(idx.bundle), aoi: aoi.RoundedKey(roundedKeyDecimals)}
	if cached, ok := idx.sliceCache.Get(key); ok {
		return cached
	}

	out := idx.sliceOnce(aoi)
	idx.sliceCache.Put(key, out)
	return out
}

func (idx *Index) sliceOnce(aoi types.BBox) types.LayerBundle {
	outLayers := make([]types.Layer, len(idx.bundle.Layers))
	for i, l := range idx.bundle.Layers {
		g := idx.geo[l.ID]
		if g == nil || g.tree == nil {
			outLayers[i] = types.Layer{ID: l.ID, Kind: l.Kind, Title: l.Title, Style: l.Style}
			continue
		}
		matched := g.tree.Query(aoi)
		outLayers[i] = projectLayer(l, matched)
	}
	return types.LayerBundle{Layers: outLayers}
}

func projectLayer(l types.Layer, idxs []int) types.Layer {
	out := types.Layer{ID: l.ID, Kind: l.Kind, Title: l.Title, Style: l.Style}
	switch l.Kind {
	case types.KindPoints:
		pts := make([]types.PointFeature, len(idxs))
		for i, j := range idxs {
			pts[i] = l.Points[j]
		}
		out.Points = pts
	case types.KindLines:
		lines := make([]types.LineFeature, len(idxs))
		for i, j := range idxs {
			lines[i] = l.Lines[j]
		}
		out.Lines = lines
	case types.KindPolygons:
		polys := make([]types.PolygonFeature, len(idxs))
		for i, j := range idxs {
			polys[i] = l.Polygons[j]
		}
		out.Polygons = polys
	}
	return out
}

// SliceLayersTiled enumerates the tiles covering aoi at tileZoom, slices each
// tile (cached per-tile), deduplicates by (layer_id, feature_id), and
// returns a bundle with features sorted by id.
func (idx *Index) SliceLayersTiled(aoi types.BBox, tileZoom int) types.LayerBundle {
	tiles := tile.TilesForBBox(tileZoom, aoi)
	if len(tiles) == 0 {
		return idx.bundle.EmptyLike()
	}

	byLayerPoints := make(map[string]map[string]types.PointFeature)
	byLayerLines := make(map[string]map[string]types.LineFeature)
	byLayerPolys := make(map[string]map[string]types.PolygonFeature)
	for _, l := range idx.bundle.Layers {
		byLayerPoints[l.ID] = map[string]types.PointFeature{}
		byLayerLines[l.ID] = map[string]types.LineFeature{}
		byLayerPolys[l.ID] = map[string]types.PolygonFeature{}
	}

	for _, t := range tiles {
		key := tileKey{z: t.Z, x: t.X, y: t.Y}
		cached, ok := idx.tileSliceCache.Get(key)
		if !ok {
			cached = idx.sliceOnce(t.BBox())
			idx.tileSliceCache.Put(key, cached)
		}
		for _, l := range cached.Layers {
			switch l.Kind {
			case types.KindPoints:
				for _, f := range l.Points {
					byLayerPoints[l.ID][f.ID] = f
				}
			case types.KindLines:
				for _, f := range l.Lines {
					byLayerLines[l.ID][f.ID] = f
				}
			case types.KindPolygons:
				for _, f := range l.Polygons {
					byLayerPolys[l.ID][f.ID] = f
				}
			}
		}
	}

	outLayers := make([]types.Layer, len(idx.bundle.Layers))
	for i, base := range idx.bundle.Layers {
		out := types.Layer{ID: base.ID, Kind: base.Kind, Title: base.Title, Style: base.Style}
		switch base.Kind {
		case types.KindPoints:
			m := byLayerPoints[base.ID]
			ids := sortedKeys(m)
			pts := make([]types.PointFeature, len(ids))
			for i, id := range ids {
				pts[i] = m[id]
			}
			out.Points = pts
		case types.KindLines:
			m := byLayerLines[base.ID]
			ids := sortedKeysLines(m)
			lines := make([]types.LineFeature, len(ids))
			for i, id := range ids {
				lines[i] = m[id]
			}
			out.Lines = lines
		case types.KindPolygons:
			m := byLayerPolys[base.ID]
			ids := sortedKeysPolys(m)
			polys := make([]types.PolygonFeature, len(ids))
			for i, id := range ids {
				polys[i] = m[id]
			}
			out.Polygons = polys
		}
		outLayers[i] = out
	}
	return types.LayerBundle{Layers: outLayers}
}

func sortedKeys(m map[string]types.PointFeature) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysLines(m map[string]types.LineFeature) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysPolys(m map[string]types.PolygonFeature) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PolygonUnionForAOI computes the union (unmerged, repaired parts) of a
// polygon layer's features intersecting aoi, cached per (layer_id, rounded
// AOI).
func (idx *Index) PolygonUnionForAOI(layerID string, aoi types.BBox) types.PolygonUnion {
	key := unionKey{layerID: layerID, aoi: aoi.RoundedKey(roundedKeyDecimals)}
	if cached, ok := idx.unionCache.Get(key); ok {
		return cached
	}

	layer, ok := idx.bundle.Get(layerID)
	if !ok || layer.Kind != types.KindPolygons {
		u := types.PolygonUnion{}
		idx.unionCache.Put(key, u)
		return u
	}

	g := idx.geo[layerID]
	var candidates []types.PolygonFeature
	if g != nil && g.tree != nil {
		matched := g.tree.Query(aoi)
		candidates = make([]types.PolygonFeature, len(matched))
		for i, j := range matched {
			candidates[i] = layer.Polygons[j]
		}
	}

	u := geom.UnionForIntersecting(candidates, aoi)
	idx.unionCache.Put(key, u)
	return u
}

// DistanceToNearestPointM returns the Euclidean distance (meters, projected)
// from (lon,lat) to the nearest point in pointLayerID, or +Inf if that layer
// is empty or unknown.
func (idx *Index) DistanceToNearestPointM(lon, lat float64, pointLayerID string) float64 {
	qt := idx.points[pointLayerID]
	if qt == nil {
		return math.Inf(1)
	}
	return qt.Nearest(lon, lat)
}

var _ types.GeoIndex = (*Index)(nil)
