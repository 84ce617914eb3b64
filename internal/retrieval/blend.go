package retrieval

import "sort"

// Dedupe drops results whose chunk text was already seen. Matching is exact and
// case-sensitive; the first occurrence wins.
func Dedupe(results []SearchResult) []SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Chunk.Content]; ok {
			continue
		}
		seen[r.Chunk.Content] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PerQueryCap spreads k slots evenly over the query variants, rounding up.
func PerQueryCap(k, queries int) int {
	if k <= 0 || queries <= 0 {
		return 0
	}
	return (k + queries - 1) / queries
}

// Blend groups results by query index in first-appearance order, sorts every
// group by score descending and keeps at most perQuery of each. A non-positive
// perQuery keeps whole groups.
func Blend(results []SearchResult, perQuery int) []SearchResult {
	order := make([]int, 0, 4)
	groups := make(map[int][]SearchResult)
	for _, r := range results {
		if _, ok := groups[r.QueryIndex]; !ok {
			order = append(order, r.QueryIndex)
		}
		groups[r.QueryIndex] = append(groups[r.QueryIndex], r)
	}
	out := make([]SearchResult, 0, len(results))
	for _, idx := range order {
		group := groups[idx]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})
		if perQuery > 0 && len(group) > perQuery {
			group = group[:perQuery]
		}
		out = append(out, group...)
	}
	return out
}
