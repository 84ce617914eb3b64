package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
)

func TestQuizGenerateAndGet(t *testing.T) {
	env := setupRouter(t)

	out := env.do(t, http.MethodPost, "/api/v1/quiz/generate", map[string]interface{}{
		"courseCode":   "CS201",
		"courseTitle":  "Data Structures",
		"topic":        "graphs",
		"level":        "200",
		"numQuestions": 1,
		"questionType": "mcq",
	}, "")
	require.Equal(t, 0, out.Code)

	var data struct {
		Quiz struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			QuestionType string `json:"question_type"`
			Questions    []struct {
				QuestionText string `json:"questionText"`
			} `json:"questions"`
		} `json:"quiz"`
		Partial bool `json:"partial"`
		Sources int  `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.Equal(t, "CS201 - graphs Quiz", data.Quiz.Title)
	require.Equal(t, "MCQ", data.Quiz.QuestionType)
	require.Len(t, data.Quiz.Questions, 1)
	require.False(t, data.Partial)
	require.Equal(t, 2, data.Sources)

	req := env.searcher.last()
	require.Equal(t, 40, req.MaxChunks)
	require.Equal(t, "graphs", req.Filter.Topic)

	got := env.do(t, http.MethodGet, "/api/v1/quizzes/"+data.Quiz.ID, nil, "")
	require.Equal(t, 0, got.Code)

	missing := env.do(t, http.MethodGet, "/api/v1/quizzes/nope", nil, "")
	require.Equal(t, errcode.ErrNotFound, missing.Code)
}

func TestQuizGenerateValidation(t *testing.T) {
	env := setupRouter(t)
	out := env.do(t, http.MethodPost, "/api/v1/quiz/generate", map[string]interface{}{
		"courseCode":   "CS201",
		"courseTitle":  "Data Structures",
		"level":        "200",
		"numQuestions": 0,
	}, "")
	require.Equal(t, errcode.ErrInvalid, out.Code)
}
