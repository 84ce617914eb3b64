package retrieval

import "math"

// CosineSimilarity returns 0 when the vectors differ in length or either has
// zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DimensionMismatches counts results whose embedding length differs from dim.
// Results without an embedding are ignored.
func DimensionMismatches(results []SearchResult, dim int) int {
	count := 0
	for _, r := range results {
		if len(r.Chunk.Embedding) > 0 && len(r.Chunk.Embedding) != dim {
			count++
		}
	}
	return count
}
