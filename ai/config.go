package ai

import (
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/recap/ai/cache"
	"github.com/hrygo/recap/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Primary    ModelConfig
	Fallback   ModelConfig
	Summarizer SummarizerConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Enabled    bool
}

// ModelConfig represents one model backend and how often it is tried.
type ModelConfig struct {
	Provider string // openai, openrouter, deepseek, siliconflow, dashscope, zai, ollama, anthropic, gemini
	Model    string
	APIKey   string
	BaseURL  string
	Attempts int
	Timeout  int // seconds
}

// Usable reports whether the backend can be called at all.
func (m ModelConfig) Usable() bool {
	if m.Model == "" || m.Attempts <= 0 {
		return false
	}
	return m.APIKey != "" || m.Provider == "ollama"
}

// SummarizerConfig represents orchestration settings.
type SummarizerConfig struct {
	Backoff            time.Duration
	AttemptTimeout     time.Duration
	ChunkThreshold     int
	ChunkSize          int
	ChunkConcurrency   int
	PersonalizationDir string
	RedactSensitive    bool
}

// CacheConfig represents the response cache.
type CacheConfig struct {
	Backend  string // none, memory, redis
	Capacity int
	TTL      time.Duration
	Redis    cache.RedisConfig
}

// RateLimitConfig represents the gateway token bucket. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Enabled: p.IsAIEnabled(),
		Primary: ModelConfig{
			Provider: p.PrimaryProvider,
			Model:    p.PrimaryModel,
			APIKey:   p.PrimaryAPIKey,
			BaseURL:  p.PrimaryBaseURL,
			Attempts: p.PrimaryAttempts,
			Timeout:  p.LLMTimeout,
		},
		Fallback: ModelConfig{
			Provider: p.FallbackProvider,
			Model:    p.FallbackModel,
			APIKey:   p.FallbackAPIKey,
			BaseURL:  p.FallbackBaseURL,
			Attempts: p.FallbackAttempts,
			Timeout:  p.LLMTimeout,
		},
		Summarizer: SummarizerConfig{
			Backoff:            time.Duration(p.RetryBackoffMs) * time.Millisecond,
			AttemptTimeout:     time.Duration(p.LLMTimeout) * time.Second,
			ChunkThreshold:     p.ChunkThreshold,
			ChunkSize:          p.ChunkSize,
			ChunkConcurrency:   p.ChunkConcurrency,
			PersonalizationDir: p.PersonalizationDir,
			RedactSensitive:    p.RedactSensitive,
		},
		Cache: CacheConfig{
			Backend:  p.CacheBackend,
			Capacity: p.CacheCapacity,
			TTL:      time.Duration(p.CacheTTLSeconds) * time.Second,
			Redis: cache.RedisConfig{
				Addr:     p.RedisAddr,
				Password: p.RedisPassword,
				DB:       p.RedisDB,
			},
		},
		RateLimit: RateLimitConfig{
			RPS:   p.RateLimitRPS,
			Burst: p.RateLimitBurst,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Summarizer.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.Summarizer.ChunkThreshold < c.Summarizer.ChunkSize {
		return fmt.Errorf("chunk threshold %d is below chunk size %d", c.Summarizer.ChunkThreshold, c.Summarizer.ChunkSize)
	}
	if c.Summarizer.Backoff < 0 || c.Summarizer.AttemptTimeout < 0 {
		return errors.New("backoff and attempt timeout must not be negative")
	}

	switch c.Cache.Backend {
	case "", "none", "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("redis address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if !c.Enabled {
		return nil
	}
	if c.Primary.Usable() && c.Fallback.Usable() && c.Primary.Model == c.Fallback.Model && c.Primary.Provider != c.Fallback.Provider {
		return fmt.Errorf("primary and fallback share model id %q on different providers", c.Primary.Model)
	}
	return nil
}
