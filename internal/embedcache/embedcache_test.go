package embedcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/model"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string { return "m1" }

type memStore struct {
	mu      sync.Mutex
	items   map[string][]float32
	readErr error
}

func (m *memStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[modelName+taskType+contentHash]
	return v, ok, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestLRUCachesByTaskType(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLRU(inner, 10, time.Minute)
	ctx := context.Background()

	first, err := e.Embed(ctx, "acids", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	first[0] = 99
	second, err := e.Embed(ctx, "acids", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, float32(5), second[0])
	require.Equal(t, 1, inner.calls)

	_, err = e.Embed(ctx, "acids", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
	require.Equal(t, "m1", e.ModelName())
}

func TestLRUDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Same(t, inner, WrapLRU(inner, 0, time.Minute))
}

func TestDBReadThrough(t *testing.T) {
	inner := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}}
	e := WrapDB(inner, store)
	ctx := context.Background()

	_, err := e.Embed(ctx, "bases", "")
	require.NoError(t, err)
	_, err = e.Embed(ctx, "bases", "")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Len(t, store.items, 1)
}

func TestDBReadErrorFallsThrough(t *testing.T) {
	inner := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}, readErr: errors.New("db down")}
	vec, err := WrapDB(inner, store).Embed(context.Background(), "x", "")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 1}, vec)
	require.Equal(t, 1, inner.calls)
}
