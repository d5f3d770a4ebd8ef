// Package router implements the prompt-driven rule-based agent: a fixed
// dispatch order over a scenario's routing config that never calls an LLM —
// grounded on original_source/backend/agent/router.py.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/mapagent/internal/geom"
	"github.com/MeKo-Tech/mapagent/internal/scenario"
	"github.com/MeKo-Tech/mapagent/internal/types"
)

// Response is what the router decided for a prompt: a natural-language
// message plus zero or more highlight overlays to plot.
type Response struct {
	Message    string
	Highlights []types.Highlight
	FocusMap   bool
}

// Primary returns the first highlight, or a zero Highlight if none.
func (r Response) Primary() types.Highlight {
	if len(r.Highlights) == 0 {
		return types.Highlight{}
	}
	return r.Highlights[0]
}

var numberRe = regexp.MustCompile(`\d+`)

// Route dispatches prompt against routing in a fixed order: show-layers,
// keyword highlight rules, the escape-roads special case, count-in-mask,
// then proximity-ranked recommendations, falling back to a help message.
func Route(prompt string, layers types.LayerBundle, index types.GeoIndex, aoi types.BBox, routing scenario.Routing, viewCenter types.ViewCenter) Response {
	p := strings.ToLower(strings.TrimSpace(prompt))

	if p == "" || containsAny(p, routing.ShowLayersKeywords) {
		var lines []string
		for _, l := range layers.Layers {
			lines = append(lines, fmt.Sprintf("- %s (%s)", l.Title, l.Kind))
		}
		return Response{Message: "Loaded layers:\n" + strings.Join(lines, "\n")}
	}

	for _, rule := range routing.HighlightRules {
		if len(rule.Keywords) > 0 && containsAny(p, rule.Keywords) {
			return applyHighlightRule(layers, index, aoi, routing, rule)
		}
	}

	if containsAny(p, []string{"escape road", "escape roads"}) {
		return escapeRoadsForFloodedPlaces(layers, index, aoi, routing)
	}

	pointKeywords := []string{strings.ToLower(routing.LabelSingular), strings.ToLower(routing.LabelPlural)}
	mentionsPoints := containsAny(p, pointKeywords)

	if strings.Contains(p, routing.CountKeyword) && strings.Contains(p, routing.MaskKeyword) && mentionsPoints {
		return countPointsInMask(layers, index, aoi, routing)
	}

	if strings.Contains(p, routing.RecommendKeyword) && mentionsPoints {
		n := extractNumber(p, 5, 1, 50)
		b := aoi.Normalized()
		center := viewCenter
		if center == (types.ViewCenter{}) {
			center = types.ViewCenter{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
		}
		ranked := recommendPoints(layers, index, aoi, routing, n, center)
		ids := make([]string, 0, len(ranked))
		var bullets []string
		for _, r := range ranked {
			ids = append(ids, r.ID)
			label := r.Label()
			if label == "" {
				label = r.ID
			}
			bullets = append(bullets, "- "+label)
		}
		hl := types.NewHighlight(routing.PrimaryPointsLayerID, ids, fmt.Sprintf("Recommended %d", len(ranked)), "prompt")
		return Response{
			Message:    fmt.Sprintf("My %d recommendations:\n%s", len(ranked), strings.Join(bullets, "\n")),
			Highlights: []types.Highlight{hl},
			FocusMap:   true,
		}
	}

	return Response{Message: fmt.Sprintf(
		"I didn't recognize that prompt yet. Try:\n- show layers\n- how many %s are flooded?\n- recommend 5 %s\n",
		routing.LabelPlural, routing.LabelPlural,
	)}
}

func containsAny(p string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(p, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func extractNumber(prompt string, def, lo, hi int) int {
	m := numberRe.FindString(prompt)
	if m == "" {
		return def
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func countPointsInMask(layers types.LayerBundle, index types.GeoIndex, aoi types.BBox, routing scenario.Routing) Response {
	ptsLayer, ok := layers.Get(routing.PrimaryPointsLayerID)
	if !ok || ptsLayer.Kind != types.KindPoints {
		return Response{Message: "This scenario has no configured primary point layer."}
	}
	if routing.CountMaskLayerID == "" {
		return Response{Message: fmt.Sprintf("I found %d %s.", len(ptsLayer.Points), routing.LabelPlural)}
	}

	u := index.PolygonUnionForAOI(routing.CountMaskLayerID, aoi)
	inMask, outMask := 0, 0
	for _, pt := range ptsLayer.Points {
		if geom.PointInUnion(types.LonLat{Lon: pt.Lon, Lat: pt.Lat}, u) {
			inMask++
		} else {
			outMask++
		}
	}
	return Response{Message: fmt.Sprintf("I found %d %s in %s and %d outside of it.", inMask, routing.LabelPlural, routing.MaskKeyword, outMask)}
}

func applyHighlightRule(layers types.LayerBundle, index types.GeoIndex, aoi types.BBox, routing scenario.Routing, rule scenario.HighlightRule) Response {
	layer, ok := layers.Get(rule.LayerID)
	if !ok {
		return Response{Message: fmt.Sprintf("I couldn't find layer '%s'.", rule.LayerID)}
	}

	type withProps struct {
		id    string
		props types.Props
	}
	var before []withProps
	switch layer.Kind {
	case types.KindPoints:
		for _, f := range layer.Points {
			before = append(before, withProps{f.ID, f.Props})
		}
	case types.KindLines:
		for _, f := range layer.Lines {
			before = append(before, withProps{f.ID, f.Props})
		}
	case types.KindPolygons:
		for _, f := range layer.Polygons {
			before = append(before, withProps{f.ID, f.Props})
		}
	}

	filtered := before
	if len(rule.Props) > 0 {
		var out []withProps
		for _, f := range before {
			ok := true
			for k, allowed := range rule.Props {
				v, has := f.props[k]
				if !has || !containsString(allowed, v) {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, f)
			}
		}
		filtered = out
	}

	if rule.MaskLayerID != "" && layer.Kind == types.KindPoints {
		u := index.PolygonUnionForAOI(rule.MaskLayerID, aoi)
		byID := make(map[string]types.PointFeature, len(layer.Points))
		for _, f := range layer.Points {
			byID[f.ID] = f
		}
		var out []withProps
		for _, f := range filtered {
			pt, ok := byID[f.id]
			if !ok {
				continue
			}
			inside := geom.PointInUnion(types.LonLat{Lon: pt.Lon, Lat: pt.Lat}, u)
			if rule.MaskMode == "OUTSIDE_MASK" {
				if !inside {
					out = append(out, f)
				}
			} else if inside {
				out = append(out, f)
			}
		}
		filtered = out
	}

	idsAll := make([]string, 0, len(filtered))
	for _, f := range filtered {
		if f.id != "" {
			idsAll = append(idsAll, f.id)
		}
	}
	maxFeatures := rule.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = 500
	}
	ids := idsAll
	if len(ids) > maxFeatures {
		ids = ids[:maxFeatures]
	}

	if len(ids) == 0 {
		if len(before) == 0 && (layer.Kind == types.KindLines || layer.Kind == types.KindPolygons) {
			return Response{Message: fmt.Sprintf(
				"I can't highlight anything yet because `%s` has no decoded features at the current zoom. Zoom in a bit (or pan) and try again.",
				layer.Title)}
		}
		if len(rule.Props) > 0 {
			if len(before) > 0 {
				present := presentClasses(layer)
				presentMsg := ""
				if len(present) > 0 {
					presentMsg = fmt.Sprintf(" (present fclass: %s)", strings.Join(present, ", "))
				}
				return Response{Message: fmt.Sprintf(
					"I can see %d `%s` features in the current view, but none match your filter.%s Try panning to a major highway corridor or zooming out slightly and ask again.",
					len(before), layer.Title, presentMsg)}
			}
			return Response{Message: fmt.Sprintf(
				"I couldn't find any `%s` matching your request in the current map view. Try zooming out a bit (or panning) and ask again.", layer.Title)}
		}
		return Response{Message: "I couldn't find anything matching that request in your current map view. Try zooming out a bit (or panning) and ask again."}
	}

	title := rule.Title
	if title == "" {
		title = fmt.Sprintf("Highlighted (%s)", layer.Title)
	}
	clippedNote := fmt.Sprintf("matched %d, rendering %d.", len(idsAll), len(ids))
	if len(idsAll) > len(ids) {
		clippedNote = fmt.Sprintf("matched %d, rendering %d due to budget.", len(idsAll), len(ids))
	}
	msg := fmt.Sprintf("%s: %s", layer.Title, clippedNote)
	if rule.MaskLayerID != "" && rule.MaskMode == "IN_MASK" {
		msg = fmt.Sprintf("%s overlapping %s: %s", layer.Title, routing.MaskKeyword, clippedNote)
	}
	if rule.MaskLayerID != "" && rule.MaskMode == "OUTSIDE_MASK" {
		msg = fmt.Sprintf("%s outside %s: %s", layer.Title, routing.MaskKeyword, clippedNote)
	}

	hl := types.NewHighlight(layer.ID, ids, title, "prompt")
	return Response{Message: msg, Highlights: []types.Highlight{hl}, FocusMap: layer.Kind == types.KindPoints}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func presentClasses(layer types.Layer) []string {
	seen := make(map[string]struct{})
	var out []string
	addClass := func(p types.Props) {
		if len(out) >= 6 {
			return
		}
		v, ok := p["fclass"]
		if !ok || v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	switch layer.Kind {
	case types.KindLines:
		for _, f := range layer.Lines {
			addClass(f.Props)
		}
	case types.KindPolygons:
		for _, f := range layer.Polygons {
			addClass(f.Props)
		}
	case types.KindPoints:
		for _, f := range layer.Points {
			addClass(f.Props)
		}
	}
	return out
}

func escapeRoadsForFloodedPlaces(layers types.LayerBundle, index types.GeoIndex, aoi types.BBox, routing scenario.Routing) Response {
	ptsLayer, ok := layers.Get(routing.PrimaryPointsLayerID)
	if !ok || ptsLayer.Kind != types.KindPoints {
		return Response{Message: "This scenario has no configured places layer."}
	}

	var roadsLayer *types.Layer
	for i := range layers.Layers {
		l := layers.Layers[i]
		if l.Kind == types.KindLines && strings.Contains(l.ID, "road") {
			roadsLayer = &layers.Layers[i]
			break
		}
	}
	if roadsLayer == nil {
		for i := range layers.Layers {
			if layers.Layers[i].Kind == types.KindLines {
				roadsLayer = &layers.Layers[i]
				break
			}
		}
	}
	if roadsLayer == nil {
		return Response{Message: "This scenario has no road layer to highlight."}
	}
	if routing.CountMaskLayerID == "" {
		return Response{Message: "This scenario has no flood mask configured."}
	}

	floodUnion := index.PolygonUnionForAOI(routing.CountMaskLayerID, aoi)
	var floodedPoints []types.PointFeature
	for _, p := range ptsLayer.Points {
		if geom.PointInUnion(types.LonLat{Lon: p.Lon, Lat: p.Lat}, floodUnion) {
			floodedPoints = append(floodedPoints, p)
		}
	}
	if len(floodedPoints) == 0 {
		return Response{Message: "Flooded places: matched 0, rendering 0. No flooded places are visible in the current map view."}
	}

	floodedIDsAll := make([]string, 0, len(floodedPoints))
	for _, p := range floodedPoints {
		if p.ID != "" {
			floodedIDsAll = append(floodedIDsAll, p.ID)
		}
	}
	floodedIDs := floodedIDsAll
	if len(floodedIDs) > 500 {
		floodedIDs = floodedIDs[:500]
	}
	if len(floodedIDs) == 0 {
		return Response{Message: "I could not resolve flooded place IDs in this view."}
	}

	type scoredRoad struct {
		d float64
		r types.LineFeature
	}
	var scored []scoredRoad
	for _, r := range roadsLayer.Lines {
		if len(r.Coords) < 2 || r.ID == "" {
			continue
		}
		if intersectsUnionApprox(r.Coords, floodUnion) {
			continue
		}
		best := minDistanceToPoints(r.Coords, floodedPoints)
		scored = append(scored, scoredRoad{best, r})
	}
	if len(scored) == 0 {
		// No dry candidates: fall back to scoring every road candidate.
		for _, r := range roadsLayer.Lines {
			if len(r.Coords) < 2 || r.ID == "" {
				continue
			}
			best := minDistanceToPoints(r.Coords, floodedPoints)
			scored = append(scored, scoredRoad{best, r})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].d != scored[j].d {
			return scored[i].d < scored[j].d
		}
		return scored[i].r.ID < scored[j].r.ID
	})

	roadsIDsAll := make([]string, len(scored))
	for i, s := range scored {
		roadsIDsAll[i] = s.r.ID
	}
	roadsIDs := roadsIDsAll
	if len(roadsIDs) > 300 {
		roadsIDs = roadsIDs[:300]
	}

	floodedH := types.NewHighlight(ptsLayer.ID, floodedIDs, "Flooded places", "prompt")
	roadsH := types.NewHighlight(roadsLayer.ID, roadsIDs, "Escape roads", "prompt")

	msg := fmt.Sprintf(
		"Flooded places: matched %d, rendering %d due to budget. Escape roads: matched %d, rendering %d due to budget.",
		len(floodedIDsAll), len(floodedIDs), len(roadsIDsAll), len(roadsIDs))
	return Response{Message: msg, Highlights: []types.Highlight{floodedH, roadsH}}
}

// intersectsUnionApprox is a coarse, vertex-sampling stand-in for a true
// line/polygon intersection test (no CSG/clipping library is available in
// the corpus): a road "intersects" the flood mask if any of its vertices
// fall inside it.
func intersectsUnionApprox(raw []types.LonLat, u types.PolygonUnion) bool {
	for _, c := range raw {
		if geom.PointInUnion(c, u) {
			return true
		}
	}
	return false
}

func minDistanceToPoints(coords []types.LonLat, points []types.PointFeature) float64 {
	best := -1.0
	line := geom.LineStringMercator(coords)
	for _, p := range points {
		pm := geom.ToMercator(types.LonLat{Lon: p.Lon, Lat: p.Lat})
		d := distancePointToLine(pm, line)
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 1e18
	}
	return best
}

func distancePointToLine(p orb.Point, line orb.LineString) float64 {
	if len(line) == 0 {
		return 1e18
	}
	best := -1.0
	for i := 0; i+1 < len(line); i++ {
		d := distancePointToSegment(p, line[i], line[i+1])
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return geom.DistanceMercator(p, line[0])
	}
	return best
}

func distancePointToSegment(p, a, b orb.Point) float64 {
	vx, vy := b[0]-a[0], b[1]-a[1]
	wx, wy := p[0]-a[0], p[1]-a[1]
	segLenSq := vx*vx + vy*vy
	if segLenSq == 0 {
		return geom.DistanceMercator(p, a)
	}
	t := (wx*vx + wy*vy) / segLenSq
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	proj := orb.Point{a[0] + t*vx, a[1] + t*vy}
	return geom.DistanceMercator(p, proj)
}

func recommendPoints(layers types.LayerBundle, index types.GeoIndex, aoi types.BBox, routing scenario.Routing, topN int, center types.ViewCenter) []types.PointFeature {
	ptsLayer, ok := layers.Get(routing.PrimaryPointsLayerID)
	if !ok || ptsLayer.Kind != types.KindPoints || len(ptsLayer.Points) == 0 {
		return nil
	}

	candidates := ptsLayer.Points
	if routing.CountMaskLayerID != "" {
		u := index.PolygonUnionForAOI(routing.CountMaskLayerID, aoi)
		var filtered []types.PointFeature
		for _, pt := range candidates {
			if !geom.PointInUnion(types.LonLat{Lon: pt.Lon, Lat: pt.Lat}, u) {
				filtered = append(filtered, pt)
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return nil
	}

	centerM := geom.ToMercator(types.LonLat{Lon: center.Lon, Lat: center.Lat})
	localKey := func(pt types.PointFeature) (float64, string) {
		pm := geom.ToMercator(types.LonLat{Lon: pt.Lon, Lat: pt.Lat})
		dx, dy := pm[0]-centerM[0], pm[1]-centerM[1]
		return dx*dx + dy*dy, pt.ID
	}

	sortByLocal := func(pts []types.PointFeature) {
		sort.Slice(pts, func(i, j int) bool {
			di, idi := localKey(pts[i])
			dj, idj := localKey(pts[j])
			if di != dj {
				return di < dj
			}
			return idi < idj
		})
	}

	if len(routing.ProximityRules) == 0 {
		sortByLocal(candidates)
		if len(candidates) > topN {
			candidates = candidates[:topN]
		}
		return candidates
	}

	type scored struct {
		pt  types.PointFeature
		d   float64
		has bool
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, pt := range candidates {
		best := -1.0
		for _, rule := range routing.ProximityRules {
			d := index.DistanceToNearestPointM(pt.Lon, pt.Lat, rule.LayerID)
			if d <= rule.MaxMeters {
				scoredD := d * rule.Penalty
				if best < 0 || scoredD < best {
					best = scoredD
				}
			}
		}
		scoredList = append(scoredList, scored{pt: pt, d: best, has: best >= 0})
	}

	var matched []scored
	for _, s := range scoredList {
		if s.has {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		sortByLocal(candidates)
		if len(candidates) > topN {
			candidates = candidates[:topN]
		}
		return candidates
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].d != matched[j].d {
			return matched[i].d < matched[j].d
		}
		di, idi := localKey(matched[i].pt)
		dj, idj := localKey(matched[j].pt)
		if di != dj {
			return di < dj
		}
		return idi < idj
	})

	out := make([]types.PointFeature, 0, topN)
	for i := 0; i < len(matched) && i < topN; i++ {
		out = append(out, matched[i].pt)
	}
	return out
}
