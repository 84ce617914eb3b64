package retrieval

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultRelaxMultiplier = 5

// Gateway fronts a VectorStore with per-call timeouts and filter relaxation.
type Gateway struct {
	store           VectorStore
	storeTimeout    time.Duration
	relaxMultiplier int
}

func NewGateway(store VectorStore, storeTimeout time.Duration) *Gateway {
	return &Gateway{
		store:           store,
		storeTimeout:    storeTimeout,
		relaxMultiplier: defaultRelaxMultiplier,
	}
}

// Search returns up to limit results by descending similarity. When the
// filtered query fails or yields nothing that matches the filter, the store is
// queried again without the filter and the filter is applied in memory. Store failures degrade to an
// empty result; only the caller's own context error is returned.
func (g *Gateway) Search(ctx context.Context, embedding []float32, filter Filter, limit int) ([]SearchResult, error) {
	if limit <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx)
	filter = filter.Normalize()
	if filter.IsEmpty() {
		results, err := g.find(ctx, embedding, filter, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("vector search failed", zap.Error(err))
			return nil, nil
		}
		return capResults(results, limit), nil
	}

	results, err := g.find(ctx, embedding, filter, limit)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil && len(results) > 0 {
		if kept := keepMatching(results, filter, limit); len(kept) > 0 {
			return kept, nil
		}
	}
	if err != nil {
		logger.Warn("filtered vector search failed, relaxing filter", zap.Error(err))
	} else {
		logger.Debug("filtered vector search empty, relaxing filter",
			zap.String("course_code", filter.CourseCode),
			zap.String("topic", filter.Topic),
			zap.String("level", filter.Level),
			zap.String("author", filter.Author),
		)
	}

	relaxed, err := g.find(ctx, embedding, Filter{}, limit*g.relaxMultiplier)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("relaxed vector search failed", zap.Error(err))
		return nil, nil
	}
	return keepMatching(relaxed, filter, limit), nil
}

func (g *Gateway) find(ctx context.Context, embedding []float32, filter Filter, limit int) ([]SearchResult, error) {
	if g.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.storeTimeout)
		defer cancel()
	}
	return g.store.FindSimilar(ctx, embedding, filter, limit)
}

func keepMatching(results []SearchResult, filter Filter, limit int) []SearchResult {
	out := make([]SearchResult, 0, min(len(results), limit))
	for _, r := range results {
		if !filter.Match(r.Chunk.Metadata) {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func capResults(results []SearchResult, limit int) []SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
