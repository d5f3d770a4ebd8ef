package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

func TestFitViewToPointsSinglePointUsesMinPad(t *testing.T) {
	points := []types.PointFeature{{ID: "a", Lon: 9.7, Lat: 52.37}}
	center, zoom := FitViewToPoints(points, types.DefaultViewport)

	assert.InDelta(t, 9.7, center.Lon, 1e-9)
	assert.InDelta(t, 52.37, center.Lat, 1e-9)
	assert.Greater(t, zoom, 0.0)
}

func TestFitViewToPointsCentersOnExtent(t *testing.T) {
	points := []types.PointFeature{
		{ID: "a", Lon: 9.0, Lat: 52.0},
		{ID: "b", Lon: 10.0, Lat: 53.0},
	}
	center, _ := FitViewToPoints(points, types.Viewport{Width: 1000, Height: 1000})
	assert.InDelta(t, 9.5, center.Lon, 1e-9)
	assert.InDelta(t, 52.5, center.Lat, 1e-9)
}

func TestBBoxToZoomNarrowerBoxIsHigherZoom(t *testing.T) {
	wide := BBoxToZoom(9.0, 52.0, 10.0, 53.0, 900, 600)
	narrow := BBoxToZoom(9.49, 52.49, 9.51, 52.51, 900, 600)
	assert.Greater(t, narrow, wide)
}
