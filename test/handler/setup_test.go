package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/handler"
	"github.com/xxxsen/studymate/internal/health"
	"github.com/xxxsen/studymate/internal/middleware"
	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/jwt"
	"github.com/xxxsen/studymate/internal/quiz"
	"github.com/xxxsen/studymate/internal/retrieval"
	"github.com/xxxsen/studymate/internal/service"
)

var testSecret = []byte("test-secret")

type stubSearcher struct {
	mu   sync.Mutex
	reqs []retrieval.Request
	resp *retrieval.Response
}

func (s *stubSearcher) Search(_ context.Context, req retrieval.Request) (*retrieval.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if req.Query == "" {
		return nil, appErr.ErrInvalid
	}
	return s.resp, nil
}

func (s *stubSearcher) last() retrieval.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

type stubLLM struct{ answer string }

func (s stubLLM) Generate(context.Context, string, ai.GenerateOptions) (string, error) {
	return s.answer, nil
}

type stubQuizGenerator struct{}

func (stubQuizGenerator) Generate(_ context.Context, req quiz.Request) (*quiz.Result, error) {
	return &quiz.Result{Questions: []model.Question{{
		QuestionText:  "Which structure has vertices?",
		QuestionType:  req.QuestionType,
		Options:       []string{"A. graph", "B. list", "C. stack"},
		CorrectAnswer: "A",
		Points:        1,
	}}}, nil
}

type memQuizStore struct {
	mu      sync.Mutex
	quizzes map[string]*model.Quiz
}

func (m *memQuizStore) Create(_ context.Context, q *model.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *memQuizStore) GetByID(_ context.Context, id string) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return q, nil
}

type memDocStore struct {
	mu   sync.Mutex
	docs map[string]*model.Document
	ids  []string
}

func (m *memDocStore) Create(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	m.ids = append(m.ids, doc.ID)
	return nil
}

func (m *memDocStore) GetByID(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (m *memDocStore) ListIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.ids))
	for _, id := range m.ids {
		if _, ok := m.docs[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memDocStore) ListStale(context.Context, int) ([]string, error) { return nil, nil }

func (m *memDocStore) ListTopics(_ context.Context, courseCode string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.ids {
		if d, ok := m.docs[id]; ok && d.CourseCode == courseCode && d.Topic != "" {
			out = append(out, d.Topic)
		}
	}
	return out, nil
}

func (m *memDocStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocStore) Stats(context.Context) (*model.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &model.IndexStats{TotalDocuments: int64(len(m.docs))}, nil
}

type countingIndexer struct{}

func (countingIndexer) Index(_ context.Context, doc *model.Document) (int, error) {
	return 2, nil
}

type testEnv struct {
	router   http.Handler
	searcher *stubSearcher
}

func sampleResponse() *retrieval.Response {
	results := []retrieval.SearchResult{
		{
			Chunk: model.Chunk{
				ID: "doc1_chunk_0", DocumentID: "doc1", Content: "A graph is a set of vertices.",
				Metadata: model.ChunkMetadata{CourseCode: "CS201", CourseTitle: "Data Structures", Professor: "Smith", Topic: "graphs", DocumentType: "lecture", Section: "Intro"},
			},
			Score:      0.92,
			QueryIndex: 1,
		},
		{
			Chunk: model.Chunk{
				ID: "doc2_chunk_0", DocumentID: "doc2", Content: "Merge sort divides the input.",
				Metadata: model.ChunkMetadata{CourseCode: "CS201", Professor: "Lee"},
			},
			Score: 0.71,
		},
	}
	sources, topics, types := retrieval.CollectMetadata(results)
	return &retrieval.Response{
		Chunks:          results,
		TotalResults:    len(results),
		SearchType:      retrieval.SearchTypeVector,
		Sources:         sources,
		TopicAreas:      topics,
		DocumentTypes:   types,
		ExpandedQueries: []string{"graphs", "graphs data structures concepts principles examples"},
	}
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)

	searcher := &stubSearcher{resp: sampleResponse()}
	searchService := service.NewSearchService(searcher, service.SearchConfig{SearchLambda: 0.3, ChatLambda: 0.5, QuizLambda: 0.8})
	chatService := service.NewChatService(searchService, retrieval.NewAssembler(2000), stubLLM{answer: "Graphs have vertices."})
	quizService := service.NewQuizService(searchService, quiz.NewSampler(rand.New(rand.NewPCG(7, 7))), stubQuizGenerator{},
		&memQuizStore{quizzes: map[string]*model.Quiz{}}, service.QuizConfig{})
	documentService := service.NewDocumentService(&memDocStore{docs: map[string]*model.Document{}}, countingIndexer{}, nil, service.DocumentConfig{})
	checker := health.NewChecker([]health.Target{{Name: "embedding", URL: upstream.URL}}, time.Minute, time.Second)

	deps := handler.RouterDeps{
		Search:    handler.NewSearchHandler(searchService),
		Chat:      handler.NewChatHandler(chatService),
		Quiz:      handler.NewQuizHandler(quizService),
		Documents: handler.NewDocumentHandler(documentService),
		Health:    handler.NewHealthHandler(checker),
		JWTSecret: testSecret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, searcher: searcher}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.GenerateToken("ops", jwt.RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}
