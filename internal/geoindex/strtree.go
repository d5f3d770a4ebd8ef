package geoindex

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/mapagent/internal/types"
)

// nodeCapacity is the branching factor used for both leaf packing and
// internal node packing.
const nodeCapacity = 16

// STRTree is a bulk-loaded, sort-tile-recursive R-tree over WGS84 bounding
// boxes. No R-tree library exists anywhere in the retrieved example corpus
// (paulmach/orb ships none); this is a from-scratch implementation grounded
// directly on the bbox-candidate-query responsibility that shapely.strtree.STRtree
// serves in the reference Python implementation.
type STRTree struct {
	root  *strNode
	count int
}

type strNode struct {
	bound    types.BBox
	entries  []strEntry // populated only on leaves
	children []*strNode // populated only on internal nodes
}

type strEntry struct {
	bound types.BBox
	idx   int
}

func (n *strNode) isLeaf() bool { return n.children == nil }

// NewSTRTree bulk-loads a tree over the given per-item bounding boxes. The
// index of each box in the input slice is what Query returns.
func NewSTRTree(bounds []types.BBox) *STRTree {
	if len(bounds) == 0 {
		return &STRTree{root: &strNode{bound: types.BBox{}}}
	}

	entries := make([]strEntry, len(bounds))
	for i, b := range bounds {
		entries[i] = strEntry{bound: b, idx: i}
	}

	leaves := packLeaves(entries)
	nodes := make([]*strNode, len(leaves))
	for i, leaf := range leaves {
		nodes[i] = leaf
	}

	for len(nodes) > 1 {
		nodes = packLevel(nodes)
	}

	return &STRTree{root: nodes[0], count: len(bounds)}
}

// Query returns the indices of every item whose bbox intersects box.
func (t *STRTree) Query(box types.BBox) []int {
	if t.root == nil || t.count == 0 {
		return nil
	}
	var out []int
	var walk func(n *strNode)
	walk = func(n *strNode) {
		if !n.bound.Intersects(box) {
			return
		}
		if n.isLeaf() {
			for _, e := range n.entries {
				if e.bound.Intersects(box) {
					out = append(out, e.idx)
				}
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// Len returns the number of indexed items.
func (t *STRTree) Len() int { return t.count }

func packLeaves(entries []strEntry) []*strNode {
	groups := strPackGroups(entries, func(e strEntry) types.BBox { return e.bound })
	leaves := make([]*strNode, len(groups))
	for i, g := range groups {
		leaves[i] = &strNode{bound: unionEntryBounds(g), entries: g}
	}
	return leaves
}

func packLevel(nodes []*strNode) []*strNode {
	if len(nodes) <= nodeCapacity {
		return []*strNode{{bound: unionNodeBounds(nodes), children: nodes}}
	}
	groups := strPackGroups(nodes, func(n *strNode) types.BBox { return n.bound })
	out := make([]*strNode, len(groups))
	for i, g := range groups {
		out[i] = &strNode{bound: unionNodeBounds(g), children: g}
	}
	return out
}

// strPackGroups implements the STR packing step generically: sort by center
// X into ceil(sqrt(leafCount)) vertical slices, where leafCount is
// ceil(n/nodeCapacity), then within each slice sort by center Y and chunk
// into groups of nodeCapacity.
func strPackGroups[T any](items []T, boundOf func(T) types.BBox) [][]T {
	n := len(items)
	if n == 0 {
		return nil
	}
	leafCount := int(math.Ceil(float64(n) / float64(nodeCapacity)))
	sliceCount := int(math.Ceil(math.Sqrt(float64(leafCount))))
	if sliceCount < 1 {
		sliceCount = 1
	}
	sliceSize := int(math.Ceil(float64(n) / float64(sliceCount)))
	if sliceSize < 1 {
		sliceSize = n
	}

	sorted := make([]T, n)
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		ci, _ := centerOf(boundOf(sorted[i]))
		cj, _ := centerOf(boundOf(sorted[j]))
		return ci < cj
	})

	var groups [][]T
	for start := 0; start < n; start += sliceSize {
		end := start + sliceSize
		if end > n {
			end = n
		}
		slice := sorted[start:end]
		sort.Slice(slice, func(i, j int) bool {
			_, yi := centerOf(boundOf(slice[i]))
			_, yj := centerOf(boundOf(slice[j]))
			return yi < yj
		})
		for gs := 0; gs < len(slice); gs += nodeCapacity {
			ge := gs + nodeCapacity
			if ge > len(slice) {
				ge = len(slice)
			}
			group := make([]T, ge-gs)
			copy(group, slice[gs:ge])
			groups = append(groups, group)
		}
	}
	return groups
}

func centerOf(b types.BBox) (x, y float64) {
	return (b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2
}

func unionEntryBounds(entries []strEntry) types.BBox {
	if len(entries) == 0 {
		return types.BBox{}
	}
	b := entries[0].bound
	for _, e := range entries[1:] {
		b = unionBBox(b, e.bound)
	}
	return b
}

func unionNodeBounds(nodes []*strNode) types.BBox {
	if len(nodes) == 0 {
		return types.BBox{}
	}
	b := nodes[0].bound
	for _, n := range nodes[1:] {
		b = unionBBox(b, n.bound)
	}
	return b
}

func unionBBox(a, b types.BBox) types.BBox {
	return types.BBox{
		MinLon: math.Min(a.MinLon, b.MinLon),
		MinLat: math.Min(a.MinLat, b.MinLat),
		MaxLon: math.Max(a.MaxLon, b.MaxLon),
		MaxLat: math.Max(a.MaxLat, b.MaxLat),
	}
}
