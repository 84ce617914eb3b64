package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerateSendsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-test", req.Model)
		require.NotNil(t, req.Temperature)
		require.Equal(t, float32(0.9), *req.Temperature)
		require.Nil(t, req.TopK)
		require.Equal(t, 4096, req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" hello "}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "key", "base_url": srv.URL})
	require.NoError(t, err)
	out, err := p.Generate(context.Background(), "gpt-test", "hi", GenerateOptions{Temperature: 0.9, TopK: 40, MaxOutputTokens: 4096})
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestOpenAIEmbedSelfHosted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "query: acids", req.Input)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("openai", map[string]interface{}{
		"base_url":      srv.URL,
		"allow_no_key":  true,
		"query_prefix":  "query: ",
		"request_label": "qwen",
	})
	require.NoError(t, err)
	require.Equal(t, "qwen", p.Name())
	vec, err := p.Embed(context.Background(), "qwen3-embedding", "acids", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("openai", map[string]interface{}{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", "x", "")
	require.ErrorContains(t, err, "429")

	noKey, err := NewEmbedProvider("openai", map[string]interface{}{})
	require.NoError(t, err)
	_, err = noKey.Embed(context.Background(), "m", "x", "")
	require.ErrorIs(t, err, ErrUnavailable)
}
