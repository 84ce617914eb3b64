package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTTL          = 30 * time.Second
	defaultProbeTimeout = 10 * time.Second
	fallbackTimeout     = 5 * time.Second
	userAgent           = "studymate-uptime/1.0"
)

type Target struct {
	Name string
	URL  string
}

type Status struct {
	Name       string `json:"name"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
	CheckedAt  int64  `json:"checked_at"`
}

// Checker probes upstream services and remembers each result for a TTL.
type Checker struct {
	client  *http.Client
	cache   *expirable.LRU[string, Status]
	targets []Target
	byName  map[string]Target
	timeout time.Duration
}

func NewChecker(targets []Target, ttl, timeout time.Duration) *Checker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	byName := make(map[string]Target, len(targets))
	kept := make([]Target, 0, len(targets))
	for _, t := range targets {
		t.Name = strings.TrimSpace(t.Name)
		t.URL = strings.TrimSpace(t.URL)
		if t.Name == "" || t.URL == "" {
			continue
		}
		if _, ok := byName[t.Name]; ok {
			continue
		}
		byName[t.Name] = t
		kept = append(kept, t)
	}
	size := len(kept)
	if size == 0 {
		size = 1
	}
	return &Checker{
		client:  &http.Client{},
		cache:   expirable.NewLRU[string, Status](size, nil, ttl),
		targets: kept,
		byName:  byName,
		timeout: timeout,
	}
}

func (c *Checker) Targets() []Target {
	return append([]Target(nil), c.targets...)
}

// Healthy reports the cached status of a target. Unknown targets and targets
// without a fresh probe are treated as healthy so callers never block on a
// probe.
func (c *Checker) Healthy(_ context.Context, name string) bool {
	if _, ok := c.byName[name]; !ok {
		return true
	}
	st, ok := c.cache.Get(name)
	if !ok {
		return true
	}
	return st.Healthy
}

// Status returns every target's status, probing the ones whose cached result
// has expired.
func (c *Checker) Status(ctx context.Context) []Status {
	out := make([]Status, len(c.targets))
	eg, ectx := errgroup.WithContext(ctx)
	for i, t := range c.targets {
		if st, ok := c.cache.Get(t.Name); ok {
			out[i] = st
			continue
		}
		eg.Go(func() error {
			out[i] = c.Probe(ectx, t)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// ProbeAll probes every target regardless of the cache.
func (c *Checker) ProbeAll(ctx context.Context) []Status {
	out := make([]Status, len(c.targets))
	eg, ectx := errgroup.WithContext(ctx)
	for i, t := range c.targets {
		eg.Go(func() error {
			out[i] = c.Probe(ectx, t)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// Probe requests the target URL and, when that fails outright, its /health
// endpoint. The result is cached.
func (c *Checker) Probe(ctx context.Context, t Target) Status {
	logger := logutil.GetLogger(ctx).With(zap.String("target", t.Name))
	start := time.Now()
	code, err := c.get(ctx, t.URL, c.timeout)
	if err != nil {
		logger.Warn("probe failed, trying health endpoint", zap.Error(err))
		code, err = c.get(ctx, strings.TrimRight(t.URL, "/")+"/health", fallbackTimeout)
	}
	st := Status{
		Name:       t.Name,
		StatusCode: code,
		LatencyMs:  time.Since(start).Milliseconds(),
		CheckedAt:  time.Now().Unix(),
	}
	switch {
	case err != nil:
		st.Error = err.Error()
	case code >= http.StatusOK && code < http.StatusBadRequest:
		st.Healthy = true
	default:
		st.Error = fmt.Sprintf("unexpected status %d", code)
	}
	if st.Healthy {
		logger.Debug("probe ok", zap.Int("status", code), zap.Int64("latency_ms", st.LatencyMs))
	} else {
		logger.Warn("target unhealthy", zap.Int("status", code), zap.String("error", st.Error))
	}
	c.cache.Add(t.Name, st)
	return st
}

func (c *Checker) get(ctx context.Context, url string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
