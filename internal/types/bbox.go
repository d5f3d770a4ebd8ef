// Package types defines the core geometry and layer data model shared by the
// spatial index, AOI engines, LOD pipeline, router, and trace builder.
package types

import (
	"fmt"
	"math"
)

// BBox is a geographic bounding box in WGS84 (lon/lat degrees).
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// NewBBox builds a normalized BBox from four raw corner values.
func NewBBox(minLon, minLat, maxLon, maxLat float64) BBox {
	return BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}.Normalized()
}

// Normalized returns a copy with min/max swapped if the box is inverted.
func (b BBox) Normalized() BBox {
	if b.MinLon > b.MaxLon {
		b.MinLon, b.MaxLon = b.MaxLon, b.MinLon
	}
	if b.MinLat > b.MaxLat {
		b.MinLat, b.MaxLat = b.MaxLat, b.MinLat
	}
	return b
}

// RoundedKey returns a hashable cache key with coordinates rounded to the
// given number of decimals (4 decimals ≈ 11 meters).
func (b BBox) RoundedKey(decimals int) [4]float64 {
	p := math.Pow(10, float64(decimals))
	round := func(v float64) float64 { return math.Round(v*p) / p }
	return [4]float64{round(b.MinLon), round(b.MinLat), round(b.MaxLon), round(b.MaxLat)}
}

// Center returns the midpoint of the box as (lon, lat).
func (b BBox) Center() (lon, lat float64) {
	return (b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2
}

// Width returns the box width in degrees.
func (b BBox) Width() float64 { return b.MaxLon - b.MinLon }

// Height returns the box height in degrees.
func (b BBox) Height() float64 { return b.MaxLat - b.MinLat }

// Expand returns a copy padded by dLon/dLat on every side.
func (b BBox) Expand(dLon, dLat float64) BBox {
	return BBox{
		MinLon: b.MinLon - dLon,
		MinLat: b.MinLat - dLat,
		MaxLon: b.MaxLon + dLon,
		MaxLat: b.MaxLat + dLat,
	}
}

// Intersects reports whether two boxes overlap (touching counts as overlap).
func (b BBox) Intersects(o BBox) bool {
	return b.MinLon <= o.MaxLon && b.MaxLon >= o.MinLon &&
		b.MinLat <= o.MaxLat && b.MaxLat >= o.MinLat
}

func (b BBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}
