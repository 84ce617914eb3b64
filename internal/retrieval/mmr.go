package retrieval

// MMR re-ranks candidates by maximal marginal relevance and returns at most k of
// them. Candidates already within k are returned in their original order.
//
// score = lambda*relevance + (1-lambda)*min(1 - sim(candidate, selected))
//
// Relevance is the candidate score, or the cosine similarity to queryEmbedding
// when the candidate carries no score. Ties keep the earlier candidate.
func MMR(candidates []SearchResult, queryEmbedding []float32, lambda float64, k int) []SearchResult {
	if k <= 0 {
		return []SearchResult{}
	}
	if len(candidates) <= k {
		out := make([]SearchResult, len(candidates))
		copy(out, candidates)
		return out
	}
	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = relevanceOf(c, queryEmbedding)
	}

	picked := make([]bool, len(candidates))
	selected := make([]int, 0, k)

	seed := 0
	for i := 1; i < len(candidates); i++ {
		if relevance[i] > relevance[seed] {
			seed = i
		}
	}
	picked[seed] = true
	selected = append(selected, seed)

	for len(selected) < k {
		best := -1
		bestScore := 0.0
		for i := range candidates {
			if picked[i] {
				continue
			}
			minDiversity := 1.0
			for _, j := range selected {
				diversity := 1 - CosineSimilarity(candidates[i].Chunk.Embedding, candidates[j].Chunk.Embedding)
				if diversity < minDiversity {
					minDiversity = diversity
				}
			}
			score := lambda*relevance[i] + (1-lambda)*minDiversity
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		picked[best] = true
		selected = append(selected, best)
	}

	out := make([]SearchResult, 0, len(selected))
	for _, idx := range selected {
		out = append(out, candidates[idx])
	}
	return out
}

func relevanceOf(c SearchResult, queryEmbedding []float32) float64 {
	if c.Score > 0 {
		return c.Score
	}
	if len(c.Chunk.Embedding) > 0 && len(queryEmbedding) > 0 {
		return CosineSimilarity(queryEmbedding, c.Chunk.Embedding)
	}
	return 0
}
