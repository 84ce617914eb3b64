package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/ai"
	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/pkg/retry"
)

const (
	maxTemperature  = 2.0
	generateTopK    = 40
	generateTopP    = 0.95
	generateMaxToks = 4096
)

var (
	ErrQuizGenerationFailed = errors.New("quiz generation failed")

	errNeedMore     = errors.New("not enough questions")
	errLowDiversity = errors.New("batch source diversity too low")
)

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)
}

type GeneratorConfig struct {
	MaxAttempts        int
	DiversityThreshold float64
	BaseTemperature    float64
	TemperatureStep    float64
	MinQuestions       int
}

type Request struct {
	CourseCode   string
	CourseTitle  string
	Topic        string
	Level        string
	Difficulty   string
	QuestionType string
	NumQuestions int
	Context      string
	SourceCount  int
}

type Result struct {
	Questions []model.Question
	Partial   bool
	Message   string
	Attempts  int
}

// Generator asks the model for question batches until enough diverse
// questions are collected or the attempts run out.
type Generator struct {
	llm TextGenerator
	cfg GeneratorConfig
}

func NewGenerator(llm TextGenerator, cfg GeneratorConfig) *Generator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DiversityThreshold <= 0 {
		cfg.DiversityThreshold = 0.9
	}
	if cfg.BaseTemperature <= 0 {
		cfg.BaseTemperature = 0.8
	}
	if cfg.TemperatureStep <= 0 {
		cfg.TemperatureStep = 0.1
	}
	if cfg.MinQuestions <= 0 {
		cfg.MinQuestions = 1
	}
	return &Generator{llm: llm, cfg: cfg}
}

// Temperature grows with every attempt so a rejected batch is not repeated.
func (g *Generator) Temperature(attempt int) float32 {
	t := g.cfg.BaseTemperature + float64(attempt)*g.cfg.TemperatureStep
	if t > maxTemperature {
		t = maxTemperature
	}
	return float32(t)
}

func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.NumQuestions <= 0 {
		return nil, fmt.Errorf("num questions must be positive: %w", appErr.ErrInvalid)
	}
	if strings.TrimSpace(req.Context) == "" {
		return nil, fmt.Errorf("empty quiz context: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("course_code", req.CourseCode),
		zap.String("question_type", req.QuestionType),
		zap.Int("requested", req.NumQuestions),
	)

	var (
		collected []model.Question
		seen      = make(map[string]struct{})
		attempts  int
	)
	policy := retry.Policy{Name: "quiz_generate", MaxAttempts: g.cfg.MaxAttempts}
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		prompt := simplifiedPrompt(req, attempt)
		if attempt == 1 {
			prompt = diversityPrompt(req, attempt)
		}
		out, err := g.llm.Generate(ctx, prompt, ai.GenerateOptions{
			Temperature:     g.Temperature(attempt),
			TopK:            generateTopK,
			TopP:            generateTopP,
			MaxOutputTokens: generateMaxToks,
		})
		if err != nil {
			logger.Warn("quiz batch generation failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		parsed, err := parseQuestions(out)
		if err != nil {
			logger.Warn("quiz batch unparseable", zap.Int("attempt", attempt), zap.Error(err))
			parsed = nil
		}
		batch := validateQuestions(parsed, req.QuestionType)
		profile := NewDiversityProfile(batch)
		if !profile.Acceptable(g.cfg.DiversityThreshold) {
			logger.Info("quiz batch rejected",
				zap.Int("attempt", attempt),
				zap.Int("questions", profile.Total),
				zap.Int("unique_sources", profile.UniqueSources()),
				zap.Float64("ratio", profile.Ratio()),
			)
			return errLowDiversity
		}
		for _, q := range batch {
			if _, ok := seen[q.QuestionText]; ok {
				continue
			}
			seen[q.QuestionText] = struct{}{}
			collected = append(collected, q)
		}
		logger.Info("quiz batch accepted",
			zap.Int("attempt", attempt),
			zap.Int("valid", len(batch)),
			zap.Int("total", len(collected)),
			zap.Int("unique_sources", profile.UniqueSources()),
		)
		if len(collected) < req.NumQuestions {
			return errNeedMore
		}
		return nil
	})
	if len(collected) > req.NumQuestions {
		collected = collected[:req.NumQuestions]
	}
	if len(collected) < g.cfg.MinQuestions {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuizGenerationFailed, ctxErr)
		}
		if err == nil {
			err = errNeedMore
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrQuizGenerationFailed, attempts, err)
	}
	res := &Result{Questions: collected, Attempts: attempts}
	if len(collected) < req.NumQuestions {
		res.Partial = true
		res.Message = fmt.Sprintf("Generated %d out of %d requested questions. The system prioritized quality over quantity.", len(collected), req.NumQuestions)
	}
	logger.Info("quiz generated", zap.Int("questions", len(collected)), zap.Bool("partial", res.Partial), zap.Int("attempts", attempts))
	return res, nil
}
