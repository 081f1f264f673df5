package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownModel is returned when no backend is registered for a model id.
	ErrUnknownModel = errors.New("unknown model")
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty response from LLM")
)

// InvokeRequest is the fixed request contract of the model gateway.
type InvokeRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// Gateway invokes a named model and returns its raw text output.
type Gateway interface {
	Invoke(ctx context.Context, req *InvokeRequest) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req *InvokeRequest) (string, error)

// Invoke calls f(ctx, req).
func (f GatewayFunc) Invoke(ctx context.Context, req *InvokeRequest) (string, error) {
	return f(ctx, req)
}

// CallObserver receives per-call telemetry from the Router.
type CallObserver interface {
	RecordLLMCall(model, provider string, latency time.Duration, stats *LLMCallStats, err error)
}

// Router dispatches gateway calls to registered model backends.
type Router struct {
	mu       sync.RWMutex
	services map[string]Service
	observer CallObserver
}

// NewRouter creates a router with the given services registered under their model names.
func NewRouter(services ...Service) *Router {
	r := &Router{services: make(map[string]Service)}
	for _, svc := range services {
		r.Register(svc.Model(), svc)
	}
	return r
}

// Register binds a model id to a service, replacing any previous binding.
func (r *Router) Register(id string, svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[id] = svc
}

// SetObserver installs a telemetry observer.
func (r *Router) SetObserver(o CallObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Models returns the registered model ids, sorted.
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke implements Gateway.
func (r *Router) Invoke(ctx context.Context, req *InvokeRequest) (string, error) {
	r.mu.RLock()
	svc, ok := r.services[req.Model]
	observer := r.observer
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, req.Model)
	}

	messages := make([]Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, SystemPrompt(req.SystemPrompt))
	}
	messages = append(messages, UserMessage(req.UserPrompt))

	start := time.Now()
	content, stats, err := svc.Chat(ctx, &ChatRequest{
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		JSONMode:    true,
	})
	if err == nil && content == "" {
		err = ErrEmptyResponse
	}
	if observer != nil {
		observer.RecordLLMCall(req.Model, svc.Provider(), time.Since(start), stats, err)
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

type warmer interface {
	Warmup(ctx context.Context)
}

// Warmup pre-connects every backend that supports it.
func (r *Router) Warmup(ctx context.Context) {
	r.mu.RLock()
	services := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		services = append(services, svc)
	}
	r.mu.RUnlock()

	for _, svc := range services {
		if w, ok := svc.(warmer); ok {
			w.Warmup(ctx)
		} else {
			slog.Debug("LLM: backend has no warmup", "provider", svc.Provider(), "model", svc.Model())
		}
	}
}
