package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/retrieval"
	"github.com/xxxsen/studymate/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchFilters struct {
	CourseCode      string   `json:"courseCode"`
	Topic           string   `json:"topic"`
	Level           string   `json:"level"`
	Author          string   `json:"author"`
	MaxChunks       int      `json:"max_chunks"`
	DiversityLambda *float64 `json:"diversity_lambda"`
}

func (f searchFilters) filter() retrieval.Filter {
	return retrieval.Filter{CourseCode: f.CourseCode, Topic: f.Topic, Level: f.Level, Author: f.Author}
}

type searchRequest struct {
	Query   string        `json:"query"`
	Filters searchFilters `json:"filters"`
}

type chunkCourseInfo struct {
	Code  string `json:"code,omitempty"`
	Title string `json:"title,omitempty"`
}

type chunkContext struct {
	Section      string          `json:"section"`
	TopicArea    string          `json:"topic_area"`
	DocumentType string          `json:"document_type"`
	CourseInfo   chunkCourseInfo `json:"course_info"`
	Professor    string          `json:"professor,omitempty"`
	Date         string          `json:"date,omitempty"`
}

type chunkMetadata struct {
	model.ChunkMetadata
	Author         string       `json:"author,omitempty"`
	RelevanceScore float64      `json:"relevance_score"`
	QueryIndex     int          `json:"query_index"`
	QueryText      string       `json:"query_text,omitempty"`
	Context        chunkContext `json:"context"`
}

type searchChunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Text       string        `json:"chunk_text"`
	Metadata   chunkMetadata `json:"metadata"`
}

type searchResponse struct {
	Chunks          []searchChunk `json:"chunks"`
	TotalResults    int           `json:"totalResults"`
	SearchType      string        `json:"searchType"`
	Sources         []string      `json:"sources"`
	TopicAreas      []string      `json:"topicAreas"`
	DocumentTypes   []string      `json:"documentTypes"`
	ExpandedQueries []string      `json:"expandedQueries,omitempty"`
}

func orValue(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func toSearchResponse(resp *retrieval.Response) searchResponse {
	out := searchResponse{
		Chunks:          make([]searchChunk, 0, len(resp.Chunks)),
		TotalResults:    resp.TotalResults,
		SearchType:      resp.SearchType,
		Sources:         resp.Sources,
		TopicAreas:      resp.TopicAreas,
		DocumentTypes:   resp.DocumentTypes,
		ExpandedQueries: resp.ExpandedQueries,
	}
	for _, r := range resp.Chunks {
		m := r.Chunk.Metadata
		var queryText string
		if r.QueryIndex >= 0 && r.QueryIndex < len(resp.ExpandedQueries) {
			queryText = resp.ExpandedQueries[r.QueryIndex]
		}
		out.Chunks = append(out.Chunks, searchChunk{
			ID:         r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Text:       r.Chunk.Content,
			Metadata: chunkMetadata{
				ChunkMetadata:  m,
				Author:         m.Professor,
				RelevanceScore: r.Score,
				QueryIndex:     r.QueryIndex,
				QueryText:      queryText,
				Context: chunkContext{
					Section:      orValue(m.Section, "main"),
					TopicArea:    orValue(m.Topic, "general"),
					DocumentType: orValue(m.DocumentType, "unknown"),
					CourseInfo:   chunkCourseInfo{Code: m.CourseCode, Title: m.CourseTitle},
					Professor:    m.Professor,
					Date:         m.Date,
				},
			},
		})
	}
	return out
}

type searchFunc func(ctx context.Context, in service.SearchInput) (*retrieval.Response, error)

func (h *SearchHandler) handle(c *gin.Context, fn searchFunc) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, "invalid request")
		return
	}
	if req.Filters.DiversityLambda != nil && (*req.Filters.DiversityLambda < 0 || *req.Filters.DiversityLambda > 1) {
		response.Invalid(c, "diversity_lambda must be within [0,1]")
		return
	}
	resp, err := fn(c.Request.Context(), service.SearchInput{
		Query:     req.Query,
		Filter:    req.Filters.filter(),
		MaxChunks: req.Filters.MaxChunks,
		Lambda:    req.Filters.DiversityLambda,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, toSearchResponse(resp))
}

func (h *SearchHandler) Search(c *gin.Context) {
	h.handle(c, h.search.Search)
}

func (h *SearchHandler) ChatSearch(c *gin.Context) {
	h.handle(c, h.search.ChatSearch)
}

func (h *SearchHandler) QuizSearch(c *gin.Context) {
	h.handle(c, h.search.QuizSearch)
}
