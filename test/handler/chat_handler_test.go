package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/pkg/errcode"
)

func TestChatHandler(t *testing.T) {
	env := setupRouter(t)

	out := env.do(t, http.MethodPost, "/api/v1/chat", map[string]interface{}{
		"message": "According to Prof. Smith, what is a graph?",
		"conversationHistory": []map[string]string{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
		},
		"userLevel": "200",
	}, "")
	require.Equal(t, 0, out.Code)

	var data struct {
		Answer     string   `json:"answer"`
		Sources    []string `json:"sources"`
		SearchType string   `json:"search_type"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &data))
	require.Equal(t, "Graphs have vertices.", data.Answer)
	require.Equal(t, []string{"CS201 - Smith", "CS201 - Lee"}, data.Sources)
	require.Equal(t, "vector", data.SearchType)
	require.Equal(t, "Smith", env.searcher.last().Filter.Author)

	out = env.do(t, http.MethodPost, "/api/v1/chat", map[string]interface{}{"message": " "}, "")
	require.Equal(t, errcode.ErrInvalid, out.Code)
}
