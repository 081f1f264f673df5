package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hrygo/recap/ai/cache"
	"github.com/hrygo/recap/ai/core/llm"
	"github.com/hrygo/recap/ai/filter"
	"github.com/hrygo/recap/ai/metrics"
	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/ai/personalization"
	"github.com/hrygo/recap/ai/summary"
)

type closer interface {
	Close() error
}

// Stack is a ready orchestrator plus the resources behind it.
type Stack struct {
	Orchestrator *summary.Orchestrator
	Gateway      llm.Gateway
	Models       []string

	router  *llm.Router
	closers []closer
}

// Warmup pre-connects the model backends.
func (s *Stack) Warmup(ctx context.Context) {
	if s.router != nil {
		s.router.Warmup(ctx)
	}
}

// Close releases provider clients and cache connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plan returns the attempt plan for the usable models, primary first.
func (c *Config) Plan() []summary.Step {
	var plan []summary.Step
	seen := make(map[string]bool)
	for _, m := range []ModelConfig{c.Primary, c.Fallback} {
		if !m.Usable() || seen[m.Model] {
			continue
		}
		seen[m.Model] = true
		plan = append(plan, summary.Step{Model: m.Model, Attempts: m.Attempts})
	}
	return plan
}

// NewStack wires the model router, rate limiter, response cache and
// orchestrator. exporter and logger may be nil.
func NewStack(ctx context.Context, cfg *Config, exporter *metrics.PrometheusExporter, logger *logging.Logger) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	router := llm.NewRouter()
	s := &Stack{router: router}
	if exporter != nil {
		router.SetObserver(exporter)
	}
	for _, m := range []ModelConfig{cfg.Primary, cfg.Fallback} {
		if !m.Usable() {
			continue
		}
		svc, err := llm.NewService(&llm.Config{
			Provider:    m.Provider,
			Model:       m.Model,
			APIKey:      m.APIKey,
			BaseURL:     m.BaseURL,
			Temperature: 0.3,
			Timeout:     m.Timeout,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if c, ok := svc.(closer); ok {
			s.closers = append(s.closers, c)
		}
		router.Register(m.Model, svc)
	}
	s.Models = router.Models()
	if len(s.Models) == 0 {
		logger.Warn("no usable AI model configured, summaries will use fallback analysis")
	}

	var gw llm.Gateway = router
	if cfg.RateLimit.RPS > 0 {
		gw = llm.NewRateLimitedGateway(gw, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if rc := newResponseCache(ctx, &cfg.Cache, s); rc != nil {
		var observer llm.CacheObserver
		if exporter != nil {
			observer = exporter
		}
		gw = llm.NewCachedGateway(gw, rc, cfg.Cache.TTL, observer)
	}
	s.Gateway = gw

	engine, err := personalization.LoadDir(cfg.Summarizer.PersonalizationDir)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	opts := summary.Options{
		Plan:             cfg.Plan(),
		Backoff:          cfg.Summarizer.Backoff,
		AttemptTimeout:   cfg.Summarizer.AttemptTimeout,
		Temperature:      0.3,
		ChunkThreshold:   cfg.Summarizer.ChunkThreshold,
		ChunkSize:        cfg.Summarizer.ChunkSize,
		ChunkConcurrency: cfg.Summarizer.ChunkConcurrency,
		Personalization:  engine,
		Logger:           logger,
	}
	if cfg.Summarizer.RedactSensitive {
		opts.Redactor = filter.New(filter.DefaultConfig())
	}
	if exporter != nil {
		opts.Recorder = exporter
	}
	orch, err := summary.NewOrchestrator(gw, opts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Orchestrator = orch
	return s, nil
}

func newResponseCache(ctx context.Context, cfg *CacheConfig, s *Stack) cache.ResponseCache {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err == nil {
			s.closers = append(s.closers, rc)
			return rc
		}
		slog.Warn("redis cache unavailable, using in-memory cache", "addr", cfg.Redis.Addr, "error", err)
		return cache.NewMemoryCache(cfg.Capacity, cfg.TTL)
	case "memory":
		return cache.NewMemoryCache(cfg.Capacity, cfg.TTL)
	default:
		return nil
	}
}
