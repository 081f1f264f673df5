package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/recap/ai/metrics"
	"github.com/hrygo/recap/ai/summary"
	"github.com/hrygo/recap/internal/profile"
)

func testProfile() *profile.Profile {
	return &profile.Profile{
		PrimaryProvider:  "openrouter",
		PrimaryModel:     "meta-llama/llama-3.1-8b-instruct:free",
		PrimaryAPIKey:    "or-key",
		FallbackProvider: "openai",
		FallbackModel:    "gpt-4o-mini",
		FallbackAPIKey:   "oa-key",
		PrimaryAttempts:  2,
		FallbackAttempts: 1,
		RetryBackoffMs:   1000,
		LLMTimeout:       60,
		ChunkThreshold:   50000,
		ChunkSize:        40000,
		ChunkConcurrency: 1,
		CacheBackend:     "memory",
		CacheCapacity:    16,
		CacheTTLSeconds:  60,
		RedisAddr:        "localhost:6379",
	}
}

func TestNewConfigFromProfile(t *testing.T) {
	cfg := NewConfigFromProfile(testProfile())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "openrouter", cfg.Primary.Provider)
	assert.Equal(t, 2, cfg.Primary.Attempts)
	assert.Equal(t, "gpt-4o-mini", cfg.Fallback.Model)
	assert.Equal(t, time.Second, cfg.Summarizer.Backoff)
	assert.Equal(t, time.Minute, cfg.Summarizer.AttemptTimeout)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Plan(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*profile.Profile)
		want   []summary.Step
	}{
		{
			name: "both usable",
			want: []summary.Step{{Model: "meta-llama/llama-3.1-8b-instruct:free", Attempts: 2}, {Model: "gpt-4o-mini", Attempts: 1}},
		},
		{
			name:   "primary without key",
			mutate: func(p *profile.Profile) { p.PrimaryAPIKey = "" },
			want:   []summary.Step{{Model: "gpt-4o-mini", Attempts: 1}},
		},
		{
			name:   "ollama needs no key",
			mutate: func(p *profile.Profile) { p.PrimaryProvider, p.PrimaryAPIKey, p.FallbackAPIKey = "ollama", "", "" },
			want:   []summary.Step{{Model: "meta-llama/llama-3.1-8b-instruct:free", Attempts: 2}},
		},
		{
			name:   "fallback disabled",
			mutate: func(p *profile.Profile) { p.FallbackAttempts = 0 },
			want:   []summary.Step{{Model: "meta-llama/llama-3.1-8b-instruct:free", Attempts: 2}},
		},
		{
			name:   "no keys",
			mutate: func(p *profile.Profile) { p.PrimaryAPIKey, p.FallbackAPIKey = "", "" },
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile()
			if tt.mutate != nil {
				tt.mutate(p)
			}
			assert.Equal(t, tt.want, NewConfigFromProfile(p).Plan())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid"},
		{name: "zero chunk size", mutate: func(c *Config) { c.Summarizer.ChunkSize = 0 }, wantErr: true},
		{name: "threshold below size", mutate: func(c *Config) { c.Summarizer.ChunkThreshold = 10 }, wantErr: true},
		{name: "negative backoff", mutate: func(c *Config) { c.Summarizer.Backoff = -1 }, wantErr: true},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Cache.Backend, c.Cache.Redis.Addr = "redis", "" }, wantErr: true},
		{name: "no cache", mutate: func(c *Config) { c.Cache.Backend = "none" }},
		{
			name: "model id clash",
			mutate: func(c *Config) {
				c.Fallback.Model = c.Primary.Model
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfigFromProfile(testProfile())
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewStack_EndToEnd(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4o-mini" {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "c1",
			"object": "chat.completion",
			"model":  body.Model,
			"choices": []map[string]any{{
				"index":   0,
				"message": map[string]any{"role": "assistant", "content": `{"title":"Standup","summary":"ok","sentiment":"positive","urgency":"low","confidence":0.7}`},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p := testProfile()
	p.PrimaryProvider, p.PrimaryBaseURL = "openai", srv.URL
	p.FallbackBaseURL = srv.URL
	p.RetryBackoffMs = 0
	cfg := NewConfigFromProfile(p)

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	stack, err := NewStack(context.Background(), cfg, exporter, nil)
	require.NoError(t, err)
	defer stack.Close()
	assert.Equal(t, []string{"gpt-4o-mini", "meta-llama/llama-3.1-8b-instruct:free"}, stack.Models)

	req := &summary.Request{Text: "ann: standup is done, nothing blocked"}
	res, err := stack.Orchestrator.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, "Standup", res.Title)

	// Same request again: the fallback answer comes from the response cache.
	before := atomic.LoadInt32(&calls)
	res, err = stack.Orchestrator.Summarize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, before+2, atomic.LoadInt32(&calls), "only the failing primary is called again")

	out, err := exporter.ExportText()
	require.NoError(t, err)
	assert.Contains(t, out, `recap_summarizer_cache_hits_total{cache_type="memory"} 1`)
	assert.Contains(t, out, `recap_summarizer_model_attempts_total{model="gpt-4o-mini",status="success"} 2`)
}

func TestNewStack_NoModels(t *testing.T) {
	p := testProfile()
	p.PrimaryAPIKey, p.FallbackAPIKey = "", ""
	p.CacheBackend = "none"

	stack, err := NewStack(context.Background(), NewConfigFromProfile(p), nil, nil)
	require.NoError(t, err)
	defer stack.Close()
	assert.Empty(t, stack.Models)

	res, err := stack.Orchestrator.Summarize(context.Background(), &summary.Request{Text: "nobody configured any keys"})
	require.NoError(t, err)
	assert.Equal(t, summary.FallbackModel, res.Model)
}
