package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiService calls Google Gemini models.
type geminiService struct {
	client    *genai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func newGeminiService(cfg *Config) (*geminiService, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &geminiService{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.Timeout) * time.Second,
	}, nil
}

func (s *geminiService) Provider() string { return "gemini" }

func (s *geminiService) Model() string { return s.model }

func (s *geminiService) Chat(ctx context.Context, req *ChatRequest) (string, *LLMCallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	system, turns := splitSystem(req.Messages)
	if len(turns) == 0 {
		return "", nil, fmt.Errorf("gemini: no user message")
	}

	model := s.client.GenerativeModel(s.model)
	model.SetTemperature(req.Temperature)
	model.SetMaxOutputTokens(int32(maxTokens))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	session := model.StartChat()
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	startTime := time.Now()
	resp, err := session.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		slog.Error("LLM: gemini request failed", "model", s.model, "error", err)
		return "", nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil, ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", nil, ErrEmptyResponse
	}

	stats := &LLMCallStats{TotalDurationMs: time.Since(startTime).Milliseconds()}
	if u := resp.UsageMetadata; u != nil {
		stats.PromptTokens = int(u.PromptTokenCount)
		stats.CompletionTokens = int(u.CandidatesTokenCount)
		stats.TotalTokens = int(u.TotalTokenCount)
	}
	return b.String(), stats, nil
}

// Close releases the underlying gRPC connection.
func (s *geminiService) Close() error {
	return s.client.Close()
}
