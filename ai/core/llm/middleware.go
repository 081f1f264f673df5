package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/recap/ai/cache"
)

// CacheObserver receives cache hit/miss events.
type CacheObserver interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// CachedGateway memoizes identical invocations in a ResponseCache.
// Cache failures are logged and never fail the call.
type CachedGateway struct {
	next     Gateway
	cache    cache.ResponseCache
	ttl      time.Duration
	observer CacheObserver
}

// NewCachedGateway wraps next with a response cache. observer may be nil.
func NewCachedGateway(next Gateway, c cache.ResponseCache, ttl time.Duration, observer CacheObserver) *CachedGateway {
	return &CachedGateway{next: next, cache: c, ttl: ttl, observer: observer}
}

func (g *CachedGateway) Invoke(ctx context.Context, req *InvokeRequest) (string, error) {
	key := cache.Key(
		req.Model,
		req.SystemPrompt,
		req.UserPrompt,
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(float64(req.Temperature), 'f', 3, 32),
	)

	if v, ok, err := g.cache.Get(ctx, key); err != nil {
		slog.Warn("LLM: response cache read failed", "cache", g.cache.Name(), "error", err)
	} else if ok {
		if g.observer != nil {
			g.observer.RecordCacheHit(g.cache.Name())
		}
		return v, nil
	}
	if g.observer != nil {
		g.observer.RecordCacheMiss(g.cache.Name())
	}

	out, err := g.next.Invoke(ctx, req)
	if err != nil {
		return "", err
	}
	if err := g.cache.Set(ctx, key, out, g.ttl); err != nil {
		slog.Warn("LLM: response cache write failed", "cache", g.cache.Name(), "error", err)
	}
	return out, nil
}

// RateLimitedGateway waits on a shared token bucket before each call.
type RateLimitedGateway struct {
	next    Gateway
	limiter *rate.Limiter
}

// NewRateLimitedGateway allows rps calls per second with the given burst.
func NewRateLimitedGateway(next Gateway, rps float64, burst int) *RateLimitedGateway {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedGateway{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (g *RateLimitedGateway) Invoke(ctx context.Context, req *InvokeRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return g.next.Invoke(ctx, req)
}
