package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/quiz"
	"github.com/xxxsen/studymate/internal/retrieval"
)

const (
	quizMaxQuestions  = 50
	quizSearchChunks  = 40
	defaultDifficulty = "medium"
)

var validQuestionTypes = map[string]bool{
	model.QuestionTypeMCQ:         true,
	model.QuestionTypeObjective:   true,
	model.QuestionTypeTrueFalse:   true,
	model.QuestionTypeShortAnswer: true,
}

type QuizSearcher interface {
	QuizSearch(ctx context.Context, in SearchInput) (*retrieval.Response, error)
}

type QuizGenerator interface {
	Generate(ctx context.Context, req quiz.Request) (*quiz.Result, error)
}

type QuizStore interface {
	Create(ctx context.Context, q *model.Quiz) error
	GetByID(ctx context.Context, id string) (*model.Quiz, error)
}

type QuizConfig struct {
	ContextSize      int
	TopicContextSize int
}

type QuizRequest struct {
	CourseCode      string   `json:"courseCode"`
	CourseTitle     string   `json:"courseTitle"`
	Topic           string   `json:"topic"`
	Level           string   `json:"level"`
	NumQuestions    int      `json:"numQuestions"`
	QuestionType    string   `json:"questionType"`
	Difficulty      string   `json:"difficulty"`
	DiversityLambda *float64 `json:"diversity_lambda,omitempty"`
}

type QuizResult struct {
	Quiz    *model.Quiz `json:"quiz"`
	Partial bool        `json:"partial"`
	Message string      `json:"message,omitempty"`
	Sources int         `json:"sources"`
}

type QuizService struct {
	search    QuizSearcher
	sampler   *quiz.Sampler
	generator QuizGenerator
	store     QuizStore
	cfg       QuizConfig
}

func NewQuizService(search QuizSearcher, sampler *quiz.Sampler, generator QuizGenerator, store QuizStore, cfg QuizConfig) *QuizService {
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = 30
	}
	if cfg.TopicContextSize <= 0 {
		cfg.TopicContextSize = 40
	}
	return &QuizService{search: search, sampler: sampler, generator: generator, store: store, cfg: cfg}
}

func normalizeQuizRequest(req QuizRequest) (QuizRequest, error) {
	req.CourseCode = strings.TrimSpace(req.CourseCode)
	req.CourseTitle = strings.TrimSpace(req.CourseTitle)
	req.Topic = strings.TrimSpace(req.Topic)
	req.Level = strings.TrimSpace(req.Level)
	req.QuestionType = strings.ToUpper(strings.TrimSpace(req.QuestionType))
	req.Difficulty = strings.ToLower(strings.TrimSpace(req.Difficulty))
	if req.CourseCode == "" || req.CourseTitle == "" || req.Level == "" {
		return req, fmt.Errorf("courseCode, courseTitle and level are required: %w", appErr.ErrInvalid)
	}
	if req.NumQuestions <= 0 || req.NumQuestions > quizMaxQuestions {
		return req, fmt.Errorf("numQuestions must be between 1 and %d: %w", quizMaxQuestions, appErr.ErrInvalid)
	}
	if req.QuestionType == "" {
		req.QuestionType = model.QuestionTypeMCQ
	}
	if !validQuestionTypes[req.QuestionType] {
		return req, fmt.Errorf("unsupported question type %q: %w", req.QuestionType, appErr.ErrInvalid)
	}
	if req.Difficulty == "" {
		req.Difficulty = defaultDifficulty
	}
	return req, nil
}

// Generate retrieves diverse course material, samples a random working set of
// sources from it and asks the model for questions spread over those sources.
func (s *QuizService) Generate(ctx context.Context, req QuizRequest) (*QuizResult, error) {
	req, err := normalizeQuizRequest(req)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("course_code", req.CourseCode), zap.String("topic", req.Topic))

	query := req.CourseCode + " " + req.CourseTitle
	if req.Topic != "" {
		query += " " + req.Topic
	}
	resp, err := s.search.QuizSearch(ctx, SearchInput{
		Query:     query,
		Filter:    retrieval.Filter{CourseCode: req.CourseCode, Level: req.Level, Topic: req.Topic},
		MaxChunks: quizSearchChunks,
		Lambda:    req.DiversityLambda,
	})
	if err != nil {
		return nil, fmt.Errorf("search quiz material: %w", err)
	}
	if len(resp.Chunks) == 0 {
		return nil, fmt.Errorf("no course material found for %s: %w", req.CourseCode, appErr.ErrNotFound)
	}

	size := s.cfg.ContextSize
	if req.Topic != "" {
		size = s.cfg.TopicContextSize
	}
	indices := s.sampler.SelectIndices(len(resp.Chunks), size)
	material, sources := quiz.BuildContext(resp.Chunks, indices)
	logger.Info("quiz material sampled",
		zap.Int("pool", len(resp.Chunks)),
		zap.Ints("indices", indices),
		zap.Int("chars", len(material)),
	)

	gen, err := s.generator.Generate(ctx, quiz.Request{
		CourseCode:   req.CourseCode,
		CourseTitle:  req.CourseTitle,
		Topic:        req.Topic,
		Level:        req.Level,
		Difficulty:   req.Difficulty,
		QuestionType: req.QuestionType,
		NumQuestions: req.NumQuestions,
		Context:      material,
		SourceCount:  sources,
	})
	if err != nil {
		return nil, err
	}

	topic := req.Topic
	if topic == "" {
		topic = "General"
	}
	q := &model.Quiz{
		ID:           newID(),
		Title:        fmt.Sprintf("%s - %s Quiz", req.CourseCode, topic),
		CourseCode:   req.CourseCode,
		CourseTitle:  req.CourseTitle,
		Topic:        req.Topic,
		Level:        req.Level,
		Difficulty:   req.Difficulty,
		QuestionType: req.QuestionType,
		Questions:    gen.Questions,
		Ctime:        time.Now().Unix(),
	}
	if err := s.store.Create(ctx, q); err != nil {
		logger.Error("save quiz failed", zap.Error(err))
		return nil, err
	}
	return &QuizResult{Quiz: q, Partial: gen.Partial, Message: gen.Message, Sources: sources}, nil
}

func (s *QuizService) Get(ctx context.Context, id string) (*model.Quiz, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErr.ErrInvalid
	}
	return s.store.GetByID(ctx, id)
}
