package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/recap/ai/core/llm"
	"github.com/hrygo/recap/ai/internal/strutil"
	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/ai/personalization"
)

// ErrNoModels is the degradation cause when the attempt plan is empty.
var ErrNoModels = errors.New("no AI models configured")

// MinTextLength is the shortest accepted input, in characters after trimming.
const MinTextLength = 10

// DefaultChunkThreshold is the input size, in bytes after trimming, above which text is chunked.
const DefaultChunkThreshold = 50000

// Path and outcome labels reported to a Recorder.
const (
	PathNone    = "none"
	PathDirect  = "direct"
	PathChunked = "chunked"

	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeRejected = "rejected"
	OutcomeDefect   = "defect"
)

// Step is one entry of the attempt plan: a model tried up to Attempts times.
type Step struct {
	Model    string
	Attempts int
}

// DefaultPlan tries primary twice, then fallback once.
func DefaultPlan(primary, fallback string) []Step {
	plan := []Step{{Model: primary, Attempts: 2}}
	if fallback != "" && fallback != primary {
		plan = append(plan, Step{Model: fallback, Attempts: 1})
	}
	return plan
}

// Recorder receives orchestration telemetry. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordSummary(path, outcome string, latency time.Duration)
	RecordAttempt(model string, success bool)
	RecordChunks(n int)
	RecordDegraded(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSummary(string, string, time.Duration) {}
func (nopRecorder) RecordAttempt(string, bool) {}
func (nopRecorder) RecordChunks(int) {}
func (nopRecorder) RecordDegraded(string) {}

// Redactor masks sensitive values and reports how many it masked.
type Redactor interface {
	Redact(text string) (string, int)
}

// Options configures an Orchestrator. Start from DefaultOptions.
type Options struct {
	Plan []Step
	// Backoff sleeps Backoff*n after the n-th failed attempt of a model. Zero disables sleeping.
	Backoff time.Duration
	// AttemptTimeout bounds each gateway call. Zero leaves only the caller's deadline.
	AttemptTimeout   time.Duration
	Temperature      float32
	ChunkThreshold   int
	ChunkSize        int
	ChunkConcurrency int

	Personalization *personalization.Engine
	// Redactor, when set, runs on the validated text before any prompt is built.
	Redactor Redactor
	Recorder Recorder
	Logger   *logging.Logger
}

// DefaultOptions returns the reference configuration for the given models.
func DefaultOptions(primary, fallback string) Options {
	return Options{
		Plan:             DefaultPlan(primary, fallback),
		Backoff:          time.Second,
		AttemptTimeout:   60 * time.Second,
		Temperature:      0.3,
		ChunkThreshold:   DefaultChunkThreshold,
		ChunkSize:        DefaultChunkSize,
		ChunkConcurrency: 1,
	}
}

// Orchestrator is the summarization entry point. It is safe for concurrent use.
type Orchestrator struct {
	gateway  llm.Gateway
	opts     Options
	prompts  *PromptBuilder
	recorder Recorder
	logger   *logging.Logger
}

// NewOrchestrator validates opts and creates an Orchestrator.
func NewOrchestrator(gateway llm.Gateway, opts Options) (*Orchestrator, error) {
	if gateway == nil {
		return nil, errors.New("summary: gateway is required")
	}
	for i, step := range opts.Plan {
		if strings.TrimSpace(step.Model) == "" {
			return nil, fmt.Errorf("summary: plan step %d has no model", i)
		}
		if step.Attempts < 1 {
			return nil, fmt.Errorf("summary: plan step %d (%s) needs at least one attempt", i, step.Model)
		}
	}
	if opts.Backoff < 0 || opts.AttemptTimeout < 0 {
		return nil, errors.New("summary: backoff and attempt timeout must not be negative")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkThreshold <= 0 {
		opts.ChunkThreshold = DefaultChunkThreshold
	}
	if opts.ChunkThreshold < opts.ChunkSize {
		return nil, fmt.Errorf("summary: chunk threshold %d is below chunk size %d", opts.ChunkThreshold, opts.ChunkSize)
	}
	if opts.ChunkConcurrency <= 0 {
		opts.ChunkConcurrency = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Orchestrator{
		gateway:  gateway,
		opts:     opts,
		prompts:  NewPromptBuilder(opts.Personalization, logger),
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Summarize returns a Result for req. The only errors are *InvalidInputError
// and ErrChunkingDefect; model failures produce a degraded Result instead.
func (o *Orchestrator) Summarize(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	log := o.logger
	if l, ok := logging.Lookup(ctx); ok {
		log = l
	}
	log = log.With("trace_id", uuid.NewString())
	if req != nil && req.UserID != "" {
		log = log.With("user_id", req.UserID)
	}

	if err := validate(req); err != nil {
		log.Debug("summary: rejected", "reason", err.Error())
		o.recorder.RecordSummary(PathNone, OutcomeRejected, time.Since(start))
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	if o.opts.Redactor != nil {
		var n int
		if text, n = o.opts.Redactor.Redact(text); n > 0 {
			log.Debug("summary: redacted sensitive values", "count", n)
		}
	}
	if len(text) > o.opts.ChunkThreshold {
		log.Debug("summary: chunked path", "bytes", len(text))
		res, err := o.summarizeChunked(ctx, log, req, text)
		switch {
		case err != nil:
			o.recorder.RecordSummary(PathChunked, OutcomeDefect, time.Since(start))
		case res.Degraded():
			o.recorder.RecordSummary(PathChunked, OutcomeDegraded, time.Since(start))
		default:
			o.recorder.RecordSummary(PathChunked, OutcomeOK, time.Since(start))
		}
		return res, err
	}

	log.Debug("summary: direct path", "bytes", len(text))
	out := o.summarizeDirect(ctx, log, req, text)
	out.result.ProcessingTimeMs = time.Since(start).Milliseconds()

	outcome := OutcomeOK
	if out.result.Degraded() {
		outcome = OutcomeDegraded
	}
	o.recorder.RecordSummary(PathDirect, outcome, time.Since(start))
	return out.result, nil
}

// SummarizeSlackThread renders a thread as "user: text" lines and summarizes it
// with the Slack prompt variant.
func (o *Orchestrator) SummarizeSlackThread(ctx context.Context, userID string, messages []SlackMessage, p *personalization.Settings) (*Result, error) {
	text, participants := RenderSlackThread(messages)
	return o.Summarize(ctx, &Request{
		Text:            text,
		UserID:          userID,
		Context:         &Context{Source: "slack", Participants: participants},
		Personalization: p,
		Variant:         VariantSlack,
	})
}

// RenderSlackThread formats messages as transcript lines and returns the
// distinct speakers in order of first appearance.
func RenderSlackThread(messages []SlackMessage) (string, []string) {
	var sb strings.Builder
	participants := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range messages {
		body := strings.TrimSpace(m.Text)
		if body == "" {
			continue
		}
		user := strings.TrimSpace(m.User)
		if user == "" {
			user = placeholderSpeaker
		}
		if !seen[user] {
			seen[user] = true
			participants = append(participants, user)
		}
		sb.WriteString(user)
		sb.WriteString(": ")
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	return sb.String(), participants
}

func validate(req *Request) error {
	if req == nil {
		return &InvalidInputError{Reason: "request is nil"}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return &InvalidInputError{Reason: "text is empty"}
	}
	if n := strutil.RuneLen(text); n < MinTextLength {
		return &InvalidInputError{Reason: fmt.Sprintf("text has %d characters, need at least %d", n, MinTextLength)}
	}
	return nil
}

// directOutcome is the result of one direct-path run plus why it degraded, if it did.
type directOutcome struct {
	result  *Result
	lastErr error
}

func (o *Orchestrator) summarizeDirect(ctx context.Context, log *logging.Logger, req *Request, text string) directOutcome {
	for _, issue := range CheckQuality(text) {
		log.Warn("summary: content quality issue", "kind", issue.Kind, "detail", issue.Detail)
	}

	variant := req.Variant
	if variant == "" {
		variant = VariantGeneral
	}
	prompt := o.prompts.Build(text, req.Context, req.Personalization, variant)

	raw, model, err := o.runPlan(ctx, log, prompt, variant.MaxTokens())
	if err != nil {
		log.Warn("summary: all model attempts failed, degrading", "error", err)
		o.recorder.RecordDegraded("unavailable")
		return directOutcome{result: GenerateFallback(text, err), lastErr: err}
	}

	res, perr := parseObject(raw, model)
	if perr != nil {
		log.Warn("summary: model output unparseable, degrading", "model", model, "error", perr)
		o.recorder.RecordDegraded("parse")
		return directOutcome{result: GenerateFallback(raw, perr), lastErr: perr}
	}
	log.Debug("summary: parsed", "model", model)
	return directOutcome{result: res}
}

// runPlan walks the attempt plan in order and returns the first non-empty output.
func (o *Orchestrator) runPlan(ctx context.Context, log *logging.Logger, prompt string, maxTokens int) (string, string, error) {
	if len(o.opts.Plan) == 0 {
		return "", "", ErrNoModels
	}
	var lastErr error
	for _, step := range o.opts.Plan {
		for n := 1; n <= step.Attempts; n++ {
			if err := ctx.Err(); err != nil {
				if lastErr == nil {
					lastErr = err
				}
				return "", "", lastErr
			}

			log.Debug("summary: model attempt", "model", step.Model, "attempt", n)
			raw, err := o.invoke(ctx, step.Model, prompt, maxTokens)
			if err == nil {
				o.recorder.RecordAttempt(step.Model, true)
				return raw, step.Model, nil
			}

			o.recorder.RecordAttempt(step.Model, false)
			lastErr = &ModelUnavailableError{Model: step.Model, Attempt: n, Err: err}
			log.Warn("summary: model attempt failed", "model", step.Model, "attempt", n, "error", err)

			if n < step.Attempts && o.opts.Backoff > 0 {
				if err := sleep(ctx, o.opts.Backoff*time.Duration(n)); err != nil {
					return "", "", lastErr
				}
			}
		}
	}
	return "", "", lastErr
}

func (o *Orchestrator) invoke(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	if o.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.AttemptTimeout)
		defer cancel()
	}
	raw, err := o.gateway.Invoke(ctx, &llm.InvokeRequest{
		Model:        model,
		SystemPrompt: SystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    maxTokens,
		Temperature:  o.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", llm.ErrEmptyResponse
	}
	return raw, nil
}

func (o *Orchestrator) summarizeChunked(ctx context.Context, log *logging.Logger, req *Request, text string) (*Result, error) {
	chunks, err := Split(text, o.opts.ChunkSize)
	if err != nil || len(chunks) == 0 {
		log.Error("summary: chunking defect", "bytes", len(text), "error", err)
		return nil, ErrChunkingDefect
	}
	o.recorder.RecordChunks(len(chunks))
	log.Debug("summary: split", "chunks", len(chunks), "chunk_size", o.opts.ChunkSize)

	outcomes := make([]*directOutcome, len(chunks))
	var g errgroup.Group
	g.SetLimit(o.opts.ChunkConcurrency)
	for _, c := range chunks {
		g.Go(func() error {
			chunkLog := log.With("chunk", c.Index)
			chunkReq := *req
			chunkReq.Text = c.Text
			if err := validate(&chunkReq); err != nil {
				chunkLog.Debug("summary: chunk skipped", "reason", err.Error())
				return nil
			}

			start := time.Now()
			out := o.summarizeDirect(ctx, chunkLog, &chunkReq, strings.TrimSpace(c.Text))
			out.result.ProcessingTimeMs = time.Since(start).Milliseconds()
			outcomes[c.Index] = &out
			return nil
		})
	}
	_ = g.Wait()

	results := make([]*Result, 0, len(outcomes))
	var lastErr error
	allDegraded := true
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		results = append(results, out.result)
		if out.lastErr != nil {
			lastErr = out.lastErr
		}
		if !out.result.Degraded() {
			allDegraded = false
		}
	}

	if len(results) == 0 || allDegraded {
		log.Warn("summary: every chunk failed, degrading whole text", "chunks", len(chunks), "error", lastErr)
		o.recorder.RecordDegraded("chunks")
		res := GenerateFallback(text, lastErr)
		var total int64
		for _, r := range results {
			total += r.ProcessingTimeMs
		}
		res.ProcessingTimeMs = total
		return res, nil
	}

	combined, err := Combine(results, len(text))
	if err != nil {
		return nil, err
	}
	log.Debug("summary: combined", "parts", len(results), "model", combined.Model)
	return combined, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
