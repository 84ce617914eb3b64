package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xxxsen/studymate/internal/pkg/retry"
)

const defaultBatchSize = 5

// HealthGate reports whether a named upstream was reachable recently.
type HealthGate interface {
	Healthy(ctx context.Context, name string) bool
}

type BatchConfig struct {
	BatchSize     int
	RatePerSecond float64
	Burst         int
	CallTimeout   time.Duration
	Retry         retry.Policy
	Dimension     int
	HealthTarget  string
}

// BatchEmbedder embeds many texts through a single-text embedder with a bounded
// batch size, a shared rate limit, per-call timeouts, retries and dimension
// validation.
type BatchEmbedder struct {
	embedder IEmbedder
	limiter  *rate.Limiter
	gate     HealthGate
	cfg      BatchConfig
}

func NewBatchEmbedder(embedder IEmbedder, gate HealthGate, cfg BatchConfig) *BatchEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "embed"
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.BatchSize
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &BatchEmbedder{embedder: embedder, limiter: limiter, gate: gate, cfg: cfg}
}

func (b *BatchEmbedder) ModelName() string {
	if b.embedder == nil {
		return ""
	}
	return b.embedder.ModelName()
}

func (b *BatchEmbedder) Dimension() int {
	return b.cfg.Dimension
}

func (b *BatchEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	out, err := b.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch returns one vector per input text, in input order. Texts are sent
// at most BatchSize at a time.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	if b.gate != nil && b.cfg.HealthTarget != "" && !b.gate.Healthy(ctx, b.cfg.HealthTarget) {
		return nil, fmt.Errorf("%s unhealthy: %w", b.cfg.HealthTarget, ErrUnavailable)
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(texts))
		eg, ectx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			eg.Go(func() error {
				vec, err := b.embedOne(ectx, texts[i], taskType)
				if err != nil {
					return err
				}
				out[i] = vec
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		logutil.GetLogger(ctx).Debug("embedded batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(texts)),
		)
	}
	return out, nil
}

func (b *BatchEmbedder) embedOne(ctx context.Context, text string, taskType string) ([]float32, error) {
	var result []float32
	err := b.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return retry.Stop(err)
			}
		}
		callCtx := ctx
		if b.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.cfg.CallTimeout)
			defer cancel()
		}
		vec, err := b.embedder.Embed(callCtx, text, taskType)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return retry.Stop(err)
			}
			return err
		}
		if b.cfg.Dimension > 0 && len(vec) != b.cfg.Dimension {
			return retry.Stop(fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), b.cfg.Dimension))
		}
		result = vec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
