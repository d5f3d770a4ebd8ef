package tile

import (
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// maxMercatorLat clamps latitude before tile lookups, matching the standard
// Web Mercator projection bound.
const maxMercatorLat = 85.05112878

// TileZoomForViewZoom chooses the tile zoom used for AOI slicing from a
// (possibly fractional) client view zoom: round to nearest integer, clamp to
// [3, 13].
func TileZoomForViewZoom(viewZoom float64) int {
	z := int(viewZoom + 0.5)
	if viewZoom < 0 {
		z = int(viewZoom - 0.5)
	}
	if z < 3 {
		z = 3
	}
	if z > 13 {
		z = 13
	}
	return z
}

func clampLat(lat float64) float64 {
	if lat > maxMercatorLat {
		return maxMercatorLat
	}
	if lat < -maxMercatorLat {
		return -maxMercatorLat
	}
	return lat
}

// TilesForBBox enumerates all (z,x,y) tiles covering the normalized AOI at a
// single zoom level, sorted by (x,y) for stable cache-key ordering.
func TilesForBBox(z int, aoi types.BBox) []Coords {
	aoi = aoi.Normalized()
	minPoint := orb.Point{aoi.MinLon, clampLat(aoi.MinLat)}
	maxPoint := orb.Point{aoi.MaxLon, clampLat(aoi.MaxLat)}
	zoom := maptile.Zoom(z)

	minTile := maptile.At(minPoint, zoom)
	maxTile := maptile.At(maxPoint, zoom)

	minX, maxX := minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	out := make([]Coords, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			out = append(out, NewCoords(uint32(z), x, y))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// BBox returns the canonical WGS84 bounding box of a tile as a types.BBox.
func (c Coords) BBox() types.BBox {
	b := c.Bounds()
	return types.BBox{MinLon: b[0], MinLat: b[1], MaxLon: b[2], MaxLat: b[3]}
}

// TileBBox returns the canonical WGS84 bbox of tile (z,x,y).
func TileBBox(z int, x, y uint32) types.BBox {
	return NewCoords(uint32(z), x, y).BBox()
}
