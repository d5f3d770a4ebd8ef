package lod

import "sort"

// vcount is a feature id paired with its vertex contribution, used by the
// generic hard-cap algorithm shared by line and polygon layers.
type vcount struct {
	id string
	n  int
}

// dropToBudget deterministically removes the heaviest non-kept features
// (sorted by -vertexCount, id) until the remaining total is within budget,
// or until only kept features remain — budget may still be exceeded in that
// case, which is allowed by the "budget respect" invariant.
func dropToBudget(items []vcount, budget int, keep map[string]struct{}) map[string]bool {
	sorted := make([]vcount, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return sorted[i].id < sorted[j].id
	})

	total := 0
	for _, it := range sorted {
		total += it.n
	}

	dropped := make(map[string]bool)
	for total > budget {
		found := -1
		for k, it := range sorted {
			if dropped[it.id] {
				continue
			}
			if _, isKept := keep[it.id]; isKept {
				continue
			}
			found = k
			break
		}
		if found == -1 {
			break
		}
		dropped[sorted[found].id] = true
		total -= sorted[found].n
	}
	return dropped
}

func totalOf(items []vcount) int {
	n := 0
	for _, it := range items {
		n += it.n
	}
	return n
}
