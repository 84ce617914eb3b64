package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
)

type searchData struct {
	Chunks []struct {
		Text     string `json:"chunk_text"`
		Metadata struct {
			CourseCode     string  `json:"course_code"`
			Author         string  `json:"author"`
			RelevanceScore float64 `json:"relevance_score"`
			QueryIndex     int     `json:"query_index"`
			QueryText      string  `json:"query_text"`
			Context        struct {
				Section      string `json:"section"`
				TopicArea    string `json:"topic_area"`
				DocumentType string `json:"document_type"`
				CourseInfo   struct {
					Code  string `json:"code"`
					Title string `json:"title"`
				} `json:"course_info"`
			} `json:"context"`
		} `json:"metadata"`
	} `json:"chunks"`
	TotalResults  int      `json:"totalResults"`
	SearchType    string   `json:"searchType"`
	Sources       []string `json:"sources"`
	TopicAreas    []string `json:"topicAreas"`
	DocumentTypes []string `json:"documentTypes"`
}

func TestSearchResponseShape(t *testing.T) {
	env := setupRouter(t)
	lambda := 0.6
	out := env.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query": "graphs",
		"filters": map[string]interface{}{
			"courseCode":       "CS201",
			"topic":            "graphs",
			"max_chunks":       4,
			"diversity_lambda": lambda,
		},
	}, "")
	require.Equal(t, 0, out.Code)

	var data searchData
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.Equal(t, "vector", data.SearchType)
	require.Equal(t, 2, data.TotalResults)
	require.Len(t, data.Chunks, 2)
	require.Equal(t, []string{"CS201 - Smith", "CS201 - Lee"}, data.Sources)
	require.Equal(t, []string{"graphs"}, data.TopicAreas)

	first := data.Chunks[0]
	require.Equal(t, "A graph is a set of vertices.", first.Text)
	require.InDelta(t, 0.92, first.Metadata.RelevanceScore, 1e-9)
	require.Equal(t, 1, first.Metadata.QueryIndex)
	require.Equal(t, "graphs data structures concepts principles examples", first.Metadata.QueryText)
	require.Equal(t, "Smith", first.Metadata.Author)
	require.Equal(t, "Intro", first.Metadata.Context.Section)
	require.Equal(t, "Data Structures", first.Metadata.Context.CourseInfo.Title)

	second := data.Chunks[1]
	require.Equal(t, "main", second.Metadata.Context.Section)
	require.Equal(t, "general", second.Metadata.Context.TopicArea)
	require.Equal(t, "unknown", second.Metadata.Context.DocumentType)

	req := env.searcher.last()
	require.True(t, req.Expand)
	require.Equal(t, 4, req.MaxChunks)
	require.InDelta(t, lambda, req.Lambda, 1e-9)
	require.Equal(t, "CS201", req.Filter.CourseCode)
	require.Equal(t, "graphs", req.Filter.Topic)
}

func TestSearchVariantsUsePresets(t *testing.T) {
	env := setupRouter(t)

	out := env.do(t, http.MethodPost, "/api/v1/chat-search", map[string]interface{}{"query": "graphs"}, "")
	require.Equal(t, 0, out.Code)
	chat := env.searcher.last()
	require.False(t, chat.Expand)
	require.Equal(t, 5, chat.MaxChunks)
	require.InDelta(t, 0.5, chat.Lambda, 1e-9)

	out = env.do(t, http.MethodPost, "/api/v1/quiz-search", map[string]interface{}{"query": "graphs"}, "")
	require.Equal(t, 0, out.Code)
	q := env.searcher.last()
	require.True(t, q.Expand)
	require.Equal(t, 20, q.MaxChunks)
	require.Equal(t, 10, q.MinPool)
	require.InDelta(t, 0.8, q.Lambda, 1e-9)
}

func TestSearchRejectsBadInput(t *testing.T) {
	env := setupRouter(t)

	out := env.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query":   "graphs",
		"filters": map[string]interface{}{"diversity_lambda": 1.5},
	}, "")
	require.Equal(t, errcode.ErrInvalid, out.Code)

	out = env.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": ""}, "")
	require.Equal(t, errcode.ErrInvalid, out.Code)
}
