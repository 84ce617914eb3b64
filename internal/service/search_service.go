package service

import (
	"context"

	"github.com/xxxsen/studymate/internal/retrieval"
)

const (
	searchDefaultChunks = 10
	chatDefaultChunks   = 5
	quizDefaultChunks   = 20

	searchPoolFactor = 3

	quizPoolPerQuery = 20
	quizMinPool      = 10
	quizWidenLimit   = 100
)

type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) (*retrieval.Response, error)
}

type SearchInput struct {
	Query     string
	Filter    retrieval.Filter
	MaxChunks int
	// Lambda overrides the preset diversity weight when set.
	Lambda *float64
}

type SearchConfig struct {
	SearchLambda float64
	ChatLambda   float64
	QuizLambda   float64
}

// SearchService holds the retrieval presets used by the general search, chat
// and quiz flows.
type SearchService struct {
	searcher Searcher
	cfg      SearchConfig
}

func NewSearchService(searcher Searcher, cfg SearchConfig) *SearchService {
	return &SearchService{searcher: searcher, cfg: cfg}
}

// Search expands the query and fetches several times max_chunks per variant
// so MMR has candidates beyond the plain top-K.
func (s *SearchService) Search(ctx context.Context, in SearchInput) (*retrieval.Response, error) {
	maxChunks := orDefault(in.MaxChunks, searchDefaultChunks)
	return s.searcher.Search(ctx, retrieval.Request{
		Query:        in.Query,
		Filter:       in.Filter,
		MaxChunks:    maxChunks,
		Lambda:       lambdaOf(in.Lambda, s.cfg.SearchLambda),
		Expand:       true,
		PoolPerQuery: maxChunks * searchPoolFactor,
	})
}

// ChatSearch runs the original message only and keeps the result small.
func (s *SearchService) ChatSearch(ctx context.Context, in SearchInput) (*retrieval.Response, error) {
	maxChunks := orDefault(in.MaxChunks, chatDefaultChunks)
	return s.searcher.Search(ctx, retrieval.Request{
		Query:        in.Query,
		Filter:       in.Filter,
		MaxChunks:    maxChunks,
		Lambda:       lambdaOf(in.Lambda, s.cfg.ChatLambda),
		PoolPerQuery: maxChunks * 2,
	})
}

// QuizSearch favours source variety and widens the search when the filtered
// pool is thin.
func (s *SearchService) QuizSearch(ctx context.Context, in SearchInput) (*retrieval.Response, error) {
	maxChunks := orDefault(in.MaxChunks, quizDefaultChunks)
	return s.searcher.Search(ctx, retrieval.Request{
		Query:        in.Query,
		Filter:       in.Filter,
		MaxChunks:    maxChunks,
		Lambda:       lambdaOf(in.Lambda, s.cfg.QuizLambda),
		Expand:       true,
		PoolPerQuery: max(quizPoolPerQuery, maxChunks),
		MinPool:      quizMinPool,
		WidenLimit:   quizWidenLimit,
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func lambdaOf(override *float64, preset float64) float64 {
	if override != nil {
		return *override
	}
	return preset
}
