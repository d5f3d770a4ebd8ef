package trace

import (
	"math"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// FitViewToPoints computes a center/zoom that frames the given points inside
// a viewport of the given pixel size, padded by the bbox's own extent (or a
// minimum pad for single-point selections).
func FitViewToPoints(points []types.PointFeature, viewport types.Viewport) (types.ViewCenter, float64) {
	minLon, maxLon := points[0].Lon, points[0].Lon
	minLat, maxLat := points[0].Lat, points[0].Lat
	for _, p := range points[1:] {
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
	}

	padLon := math.Max(0.003, maxLon-minLon)
	padLat := math.Max(0.003, maxLat-minLat)
	minLon -= padLon
	maxLon += padLon
	minLat -= padLat
	maxLat += padLat

	center := types.ViewCenter{Lon: (minLon + maxLon) / 2.0, Lat: (minLat + maxLat) / 2.0}

	width, height := viewport.Width, viewport.Height
	if width <= 0 {
		width = 900
	}
	if height <= 0 {
		height = 600
	}
	zoom := BBoxToZoom(minLon, minLat, maxLon, maxLat, width, height)
	return center, zoom
}

// BBoxToZoom is a WebMercator bbox-to-zoom heuristic for 256px tiles,
// picking the tighter of the lon-driven and lat-driven fits.
func BBoxToZoom(minLon, minLat, maxLon, maxLat float64, width, height int) float64 {
	latToRad := func(lat float64) float64 {
		s := math.Sin(lat * math.Pi / 180.0)
		return math.Log((1+s)/(1-s)) / 2.0
	}

	latRadMin := latToRad(minLat)
	latRadMax := latToRad(maxLat)
	lonDelta := math.Max(maxLon-minLon, 1e-6)
	latDelta := math.Max((latRadMax-latRadMin)*180.0/math.Pi, 1e-6)

	zoomX := math.Log2(float64(width) * 360.0 / (256.0 * lonDelta))
	zoomY := math.Log2(float64(height) * 170.0 / (256.0 * latDelta))
	return math.Min(zoomX, zoomY)
}
