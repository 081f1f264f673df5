package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const defaultOllamaHost = "http://localhost:11434"

// ollamaService calls a local Ollama server through its native chat API.
type ollamaService struct {
	client    *ollama.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func newOllamaService(cfg *Config) (*ollamaService, error) {
	// Profiles carry the OpenAI-compatible /v1 URL; the native API lives at the root.
	host := strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")
	if host == "" {
		host = defaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &ollamaService{
		client:    ollama.NewClient(u, newHTTPClient()),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.Timeout) * time.Second,
	}, nil
}

func (s *ollamaService) Provider() string { return "ollama" }

func (s *ollamaService) Model() string { return s.model }

func (s *ollamaService) Chat(ctx context.Context, req *ChatRequest) (string, *LLMCallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	msgs := make([]ollama.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	stream := false
	creq := &ollama.ChatRequest{
		Model:    s.model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokens,
		},
	}
	if req.JSONMode {
		creq.Format = json.RawMessage(`"json"`)
	}

	var (
		content strings.Builder
		last    ollama.ChatResponse
	)
	startTime := time.Now()
	err := s.client.Chat(ctx, creq, func(resp ollama.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		last = resp
		return nil
	})
	if err != nil {
		slog.Error("LLM: ollama request failed", "model", s.model, "error", err)
		return "", nil, fmt.Errorf("ollama chat failed: %w", err)
	}
	if content.Len() == 0 {
		return "", nil, ErrEmptyResponse
	}

	stats := &LLMCallStats{
		PromptTokens:     last.PromptEvalCount,
		CompletionTokens: last.EvalCount,
		TotalTokens:      last.PromptEvalCount + last.EvalCount,
		TotalDurationMs:  time.Since(startTime).Milliseconds(),
	}
	return content.String(), stats, nil
}

// Warmup loads the model into memory with an empty chat.
func (s *ollamaService) Warmup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stream := false
	err := s.client.Chat(ctx, &ollama.ChatRequest{Model: s.model, Stream: &stream}, func(ollama.ChatResponse) error { return nil })
	if err != nil {
		slog.Warn("LLM: ollama warmup failed", "model", s.model, "error", err)
		return
	}
	slog.Info("LLM: ollama model loaded", "model", s.model)
}
