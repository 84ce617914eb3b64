package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xxxsen/studymate/internal/model"
)

type memStore struct {
	mu            sync.Mutex
	chunks        []model.Chunk
	ignoreFilters bool
	failFiltered  bool
	// filteredRows, when set, is returned as-is for filtered calls.
	filteredRows []SearchResult
	err           error
	calls         []Filter
}

func (m *memStore) FindSimilar(ctx context.Context, embedding []float32, filter Filter, limit int) ([]SearchResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, filter)
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if !filter.IsEmpty() {
		if m.failFiltered {
			return nil, fmt.Errorf("filtered query failed")
		}
		if m.ignoreFilters {
			return nil, nil
		}
		if m.filteredRows != nil {
			return m.filteredRows, nil
		}
	}
	var out []SearchResult
	for _, c := range m.chunks {
		if !filter.Match(c.Metadata) {
			continue
		}
		out = append(out, SearchResult{Chunk: c, Score: CosineSimilarity(embedding, c.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ScanChunks(ctx context.Context, fn func(chunk model.Chunk) (bool, error)) error {
	for _, c := range m.chunks {
		next, err := fn(c)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
	return nil
}

type mapEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	block    bool
	calls    int
}

func (e *mapEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	e.calls++
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, e.fallback)
	}
	return out, nil
}

func chunk(id, content string, emb []float32, meta model.ChunkMetadata) model.Chunk {
	return model.Chunk{ID: id, DocumentID: "doc-" + id, Content: content, Embedding: emb, Metadata: meta}
}
