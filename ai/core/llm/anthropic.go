package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicService calls Claude models through the Messages API.
type anthropicService struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func newAnthropicService(cfg *Config) *anthropicService {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicService{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.Timeout) * time.Second,
	}
}

func (s *anthropicService) Provider() string { return "anthropic" }

func (s *anthropicService) Model() string { return s.model }

func (s *anthropicService) Chat(ctx context.Context, req *ChatRequest) (string, *LLMCallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	system, turns := splitSystem(req.Messages)
	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   int64(maxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	startTime := time.Now()
	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		slog.Error("LLM: anthropic request failed", "model", s.model, "error", err)
		return "", nil, fmt.Errorf("anthropic chat failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", nil, ErrEmptyResponse
	}

	stats := &LLMCallStats{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		CacheReadTokens:  int(msg.Usage.CacheReadInputTokens),
		TotalDurationMs:  time.Since(startTime).Milliseconds(),
	}
	return b.String(), stats, nil
}
