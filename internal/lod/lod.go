package lod

import "github.com/MeKo-Tech/mapagent/internal/types"

// Result is the output of applying LOD to a LayerBundle: the reduced
// bundle (same layer ids/order as the input, only feature lists reduced)
// plus, if the primary point layer was clustered, the parallel cluster list.
type Result struct {
	Layers         types.LayerBundle
	Clusters       []ClusterMarker
	ClusterLayerID string
}

// Apply reduces bundle to budgets at the given view zoom. primaryPointLayerID
// names the point layer eligible for clustering (per scenario plot hints);
// all other point layers are capped but never clustered. highlights protects
// the listed feature ids from hard-capping on their respective layers.
func Apply(bundle types.LayerBundle, viewZoom float64, primaryPointLayerID string, highlights HighlightSet, budgets Budgets) Result {
	lineLayers := bundle.OfKind(types.KindLines)
	polyLayers := bundle.OfKind(types.KindPolygons)
	pointLayers := bundle.OfKind(types.KindPoints)

	simplifiedLines := ApplyLines(lineLayers, viewZoom, budgets.MaxLineVertices, highlights)
	simplifiedPolys := ApplyPolygons(polyLayers, viewZoom, budgets.MaxPolyVertices, highlights)

	var clusters []ClusterMarker
	clusterLayerID := ""
	outPoints := make([]types.Layer, len(pointLayers))
	for i, l := range pointLayers {
		if l.ID == primaryPointLayerID {
			res := ApplyPrimaryPoints(l, viewZoom, budgets.MaxPointsRendered, highlights[l.ID])
			outPoints[i] = res.Layer
			if len(res.Clusters) > 0 {
				clusters = res.Clusters
				clusterLayerID = l.ID
			}
		} else {
			outPoints[i] = ApplyAuxiliaryPoints(l, budgets.MaxAuxPointsRendered, highlights[l.ID])
		}
	}

	merged := make([]types.Layer, len(bundle.Layers))
	li, pi, pti := 0, 0, 0
	for i, base := range bundle.Layers {
		switch base.Kind {
		case types.KindLines:
			merged[i] = simplifiedLines[li]
			li++
		case types.KindPolygons:
			merged[i] = simplifiedPolys[pi]
			pi++
		case types.KindPoints:
			merged[i] = outPoints[pti]
			pti++
		default:
			merged[i] = base
		}
	}

	return Result{
		Layers:         types.LayerBundle{Layers: merged},
		Clusters:       clusters,
		ClusterLayerID: clusterLayerID,
	}
}
