package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

var ErrTimeout = fmt.Errorf("search deadline exceeded: %w", appErr.ErrTimeout)

const (
	defaultMaxChunks = 10
	defaultLimitCap  = 40
)

type Request struct {
	Query     string
	Filter    Filter
	MaxChunks int
	Lambda    float64
	Expand    bool
	// PoolPerQuery is the number of candidates fetched per query variant. Zero
	// spreads MaxChunks over the variants.
	PoolPerQuery int
	// MinPool triggers one wider search of WidenLimit results when the
	// de-duplicated pool is smaller.
	MinPool    int
	WidenLimit int
}

type Response struct {
	Chunks          []SearchResult
	TotalResults    int
	SearchType      string
	Sources         []string
	TopicAreas      []string
	DocumentTypes   []string
	ExpandedQueries []string
}

type SearcherConfig struct {
	Timeout        time.Duration
	Dimension      int
	MaxChunksLimit int
}

// Searcher runs the full retrieval pipeline: expansion, embedding, per-variant
// vector search, blending, MMR and the text fallback.
type Searcher struct {
	embedder Embedder
	gateway  *Gateway
	fallback *FallbackSearcher
	cfg      SearcherConfig
}

func NewSearcher(embedder Embedder, gateway *Gateway, fallback *FallbackSearcher, cfg SearcherConfig) *Searcher {
	if cfg.MaxChunksLimit <= 0 {
		cfg.MaxChunksLimit = defaultLimitCap
	}
	return &Searcher{embedder: embedder, gateway: gateway, fallback: fallback, cfg: cfg}
}

func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", appErr.ErrInvalid)
	}
	maxChunks := req.MaxChunks
	if maxChunks <= 0 {
		maxChunks = defaultMaxChunks
	}
	if maxChunks > s.cfg.MaxChunksLimit {
		maxChunks = s.cfg.MaxChunksLimit
	}
	lambda := clampUnit(req.Lambda)
	filter := req.Filter.Normalize()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))

	queries := []string{query}
	if req.Expand {
		queries = ExpandQuery(query, filter.Topic, filter.CourseCode)
	}

	embeddings, err := s.embedQueries(ctx, queries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		logger.Warn("embed queries failed, using text search", zap.Error(err))
		return s.fallbackSearch(ctx, query, filter, maxChunks, queries)
	}

	perQuery := req.PoolPerQuery
	if perQuery <= 0 {
		perQuery = PerQueryCap(maxChunks, len(queries))
	}
	slots := make([][]SearchResult, len(queries))
	eg, ectx := errgroup.WithContext(ctx)
	for i := range queries {
		eg.Go(func() error {
			results, err := s.gateway.Search(ectx, embeddings[i], filter, perQuery)
			if err != nil {
				return err
			}
			for j := range results {
				results[j].QueryIndex = i
			}
			slots[i] = results
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ErrTimeout
		}
		return nil, err
	}

	var pool []SearchResult
	for _, slot := range slots {
		pool = append(pool, slot...)
	}
	pool = Blend(Dedupe(pool), perQuery)

	if req.MinPool > 0 && req.WidenLimit > 0 && len(pool) < req.MinPool {
		logger.Debug("candidate pool too small, widening", zap.Int("pool", len(pool)), zap.Int("widen_limit", req.WidenLimit))
		wide, err := s.gateway.Search(ctx, embeddings[0], filter, req.WidenLimit)
		if err != nil {
			return nil, ErrTimeout
		}
		pool = Dedupe(append(pool, wide...))
	}

	if s.cfg.Dimension > 0 {
		if n := DimensionMismatches(pool, s.cfg.Dimension); n > 0 {
			logger.Warn("candidates with mismatched embedding dimension", zap.Int("count", n), zap.Int("dimension", s.cfg.Dimension))
		}
	}

	selected := MMR(pool, embeddings[0], lambda, maxChunks)
	if len(selected) == 0 {
		logger.Info("vector search returned nothing, using text search")
		return s.fallbackSearch(ctx, query, filter, maxChunks, queries)
	}
	logger.Debug("vector search finished",
		zap.Int("variants", len(queries)),
		zap.Int("pool", len(pool)),
		zap.Int("selected", len(selected)),
	)
	return buildResponse(selected, SearchTypeVector, queries), nil
}

func (s *Searcher) embedQueries(ctx context.Context, queries []string) ([][]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", appErr.ErrUnavailable)
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, queries, TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(queries) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d queries", len(embeddings), len(queries))
	}
	for _, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("embedder returned an empty vector")
		}
	}
	return embeddings, nil
}

func (s *Searcher) fallbackSearch(ctx context.Context, query string, filter Filter, limit int, queries []string) (*Response, error) {
	if s.fallback == nil {
		return buildResponse(nil, SearchTypeFallback, queries), nil
	}
	results, err := s.fallback.Search(ctx, query, filter, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		logutil.GetLogger(ctx).Warn("text search failed", zap.Error(err))
		results = nil
	}
	return buildResponse(results, SearchTypeFallback, queries), nil
}

func buildResponse(results []SearchResult, searchType string, queries []string) *Response {
	if results == nil {
		results = []SearchResult{}
	}
	sources, topics, types := CollectMetadata(results)
	return &Response{
		Chunks:          results,
		TotalResults:    len(results),
		SearchType:      searchType,
		Sources:         sources,
		TopicAreas:      topics,
		DocumentTypes:   types,
		ExpandedQueries: queries,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
