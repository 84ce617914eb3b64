package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/quiz"
	"github.com/xxxsen/studymate/internal/retrieval"
)

type recordingSearcher struct {
	reqs []retrieval.Request
	resp *retrieval.Response
	err  error
}

func (r *recordingSearcher) Search(_ context.Context, req retrieval.Request) (*retrieval.Response, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	if r.resp == nil {
		return &retrieval.Response{SearchType: retrieval.SearchTypeVector}, nil
	}
	return r.resp, nil
}

type fakeSearchFunc func(ctx context.Context, in SearchInput) (*retrieval.Response, error)

func (f fakeSearchFunc) ChatSearch(ctx context.Context, in SearchInput) (*retrieval.Response, error) {
	return f(ctx, in)
}

func (f fakeSearchFunc) QuizSearch(ctx context.Context, in SearchInput) (*retrieval.Response, error) {
	return f(ctx, in)
}

type fakeLLM struct {
	prompts []string
	opts    []ai.GenerateOptions
	answer  string
	err     error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	return f.answer, f.err
}

type fakeQuizGenerator struct {
	req    quiz.Request
	result *quiz.Result
	err    error
}

func (f *fakeQuizGenerator) Generate(_ context.Context, req quiz.Request) (*quiz.Result, error) {
	f.req = req
	return f.result, f.err
}

type memQuizStore struct {
	quizzes map[string]*model.Quiz
}

func newMemQuizStore() *memQuizStore {
	return &memQuizStore{quizzes: map[string]*model.Quiz{}}
}

func (m *memQuizStore) Create(_ context.Context, q *model.Quiz) error {
	m.quizzes[q.ID] = q
	return nil
}

func (m *memQuizStore) GetByID(_ context.Context, id string) (*model.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return q, nil
}

type memDocumentStore struct {
	mu      sync.Mutex
	docs    map[string]*model.Document
	order   []string
	stale   []string
	deleted []string
}

func newMemDocumentStore() *memDocumentStore {
	return &memDocumentStore{docs: map[string]*model.Document{}}
}

func (m *memDocumentStore) Create(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return appErr.ErrConflict
	}
	m.docs[doc.ID] = doc
	m.order = append(m.order, doc.ID)
	return nil
}

func (m *memDocumentStore) GetByID(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (m *memDocumentStore) ListIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

func (m *memDocumentStore) ListStale(_ context.Context, limit int) ([]string, error) {
	if limit > 0 && len(m.stale) > limit {
		return m.stale[:limit], nil
	}
	return m.stale, nil
}

func (m *memDocumentStore) ListTopics(_ context.Context, courseCode string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.order {
		if d := m.docs[id]; d.CourseCode == courseCode && d.Topic != "" {
			out = append(out, d.Topic)
		}
	}
	return out, nil
}

func (m *memDocumentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(m.docs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memDocumentStore) Stats(_ context.Context) (*model.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.IndexStats{TotalDocuments: int64(len(m.docs))}, nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
	block   time.Duration
	active  int
	maxSeen int
}

func (f *fakeIndexer) Index(ctx context.Context, doc *model.Document) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, doc.ID)
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if f.block > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(f.block):
		}
	}
	if f.failFor[doc.ID] {
		return 0, appErr.ErrUnavailable
	}
	return 3, nil
}

func chunkResult(id, course, professor, topic, content string) retrieval.SearchResult {
	return retrieval.SearchResult{
		Chunk: model.Chunk{
			ID:         id,
			DocumentID: id,
			Content:    content,
			Metadata: model.ChunkMetadata{
				CourseCode:   course,
				Professor:    professor,
				Topic:        topic,
				DocumentType: "lecture",
			},
		},
		Score: 0.8,
	}
}

// corpusStore ranks an in-memory corpus by cosine similarity in stable order.
type corpusStore struct {
	chunks []model.Chunk
}

func (c *corpusStore) FindSimilar(_ context.Context, embedding []float32, filter retrieval.Filter, limit int) ([]retrieval.SearchResult, error) {
	var out []retrieval.SearchResult
	for _, ch := range c.chunks {
		if !filter.Match(ch.Metadata) {
			continue
		}
		out = append(out, retrieval.SearchResult{Chunk: ch, Score: retrieval.CosineSimilarity(embedding, ch.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *corpusStore) ScanChunks(_ context.Context, fn func(chunk model.Chunk) (bool, error)) error {
	for _, ch := range c.chunks {
		next, err := fn(ch)
		if err != nil || !next {
			return err
		}
	}
	return nil
}

type constEmbedder struct {
	vector []float32
}

func (e constEmbedder) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}
