package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// LLMCallStats represents statistics for a single LLM call.
type LLMCallStats struct {
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	CacheReadTokens  int   `json:"cache_read_tokens,omitempty"`
	TotalDurationMs  int64 `json:"total_duration_ms"`
}

// ChatRequest carries one completion call. Zero MaxTokens uses the service default.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	// JSONMode asks the provider for a JSON object response where supported.
	JSONMode bool
}

// Service is a single configured model backend.
type Service interface {
	// Chat performs a synchronous completion. Returns content, statistics, and error.
	Chat(ctx context.Context, req *ChatRequest) (string, *LLMCallStats, error)
	// Provider returns the provider identifier (openai, anthropic, ...).
	Provider() string
	// Model returns the model name sent to the provider.
	Model() string
}

// Config represents LLM service configuration.
type Config struct {
	Provider    string // openai, openrouter, deepseek, siliconflow, dashscope, zai, ollama, anthropic, gemini
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2000
	Temperature float32 // default: 0.3
	Timeout     int     // Request timeout in seconds (default: 120)
}

// Default base URLs for OpenAI-compatible providers.
var openAICompatibleBaseURLs = map[string]string{
	"openai":      "",
	"openrouter":  "https://openrouter.ai/api/v1",
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"dashscope":   "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"zai":         "https://open.bigmodel.cn/api/paas/v4",
}

// NewService creates a Service for the configured provider.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required for provider %q", cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120
	}

	switch cfg.Provider {
	case "anthropic":
		return newAnthropicService(cfg), nil
	case "gemini":
		return newGeminiService(cfg)
	case "ollama":
		return newOllamaService(cfg)
	default:
		return newOpenAIService(cfg), nil
	}
}

type openAIService struct {
	client    *openai.Client
	model     string
	provider  string
	maxTokens int
	timeout   time.Duration
}

func newOpenAIService(cfg *Config) *openAIService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if def, ok := openAICompatibleBaseURLs[cfg.Provider]; ok {
			baseURL = def
		} else {
			slog.Info("Using generic OpenAI-compatible provider", "provider", cfg.Provider)
		}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(baseURL, "/")
	}
	clientConfig.HTTPClient = newHTTPClient()

	return &openAIService{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		provider:  cfg.Provider,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.Timeout) * time.Second,
	}
}

func (s *openAIService) Provider() string { return s.provider }

func (s *openAIService) Model() string { return s.model }

func (s *openAIService) Chat(ctx context.Context, req *ChatRequest) (string, *LLMCallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	slog.Debug("LLM: Chat request",
		"provider", s.provider,
		"model", s.model,
		"messages_count", len(req.Messages),
		"max_tokens", maxTokens,
	)

	startTime := time.Now()

	creq := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    convertMessages(req.Messages),
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		slog.Error("LLM: Chat request failed", "provider", s.provider, "model", s.model, "error", err)
		return "", nil, fmt.Errorf("%s chat failed: %w", s.provider, err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("LLM: Empty response from LLM", "model", s.model)
		return "", nil, ErrEmptyResponse
	}

	totalDuration := time.Since(startTime)
	stats := &LLMCallStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		TotalDurationMs:  totalDuration.Milliseconds(),
	}
	if resp.Usage.PromptTokensDetails != nil && resp.Usage.PromptTokensDetails.CachedTokens > 0 {
		stats.CacheReadTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	slog.Debug("LLM: Chat response received",
		"model", s.model,
		"content_length", len(resp.Choices[0].Message.Content),
		"total_tokens", stats.TotalTokens,
		"duration_ms", totalDuration.Milliseconds(),
	)

	return resp.Choices[0].Message.Content, stats, nil
}

// Warmup sends a one-token request to establish the connection.
func (s *openAIService) Warmup(ctx context.Context) {
	warmupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()
	_, err := s.client.CreateChatCompletion(warmupCtx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hi"},
		},
	})
	duration := time.Since(startTime)

	if err != nil {
		slog.Warn("LLM: warmup ping failed (first request may be slower)",
			"provider", s.provider,
			"model", s.model,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}
	slog.Info("LLM: connection warmed up",
		"provider", s.provider,
		"model", s.model,
		"duration_ms", duration.Milliseconds(),
	)
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// splitSystem separates system messages (joined) from the conversation turns.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
