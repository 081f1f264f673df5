package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/recap/ai/core/llm"
	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/ai/personalization"
)

const (
	primaryModel  = "meta-llama/llama-3.1-8b-instruct:free"
	fallbackModel = "gpt-4o-mini"
)

// fakeGateway answers with respond and records every request.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []llm.InvokeRequest
	respond func(req *llm.InvokeRequest) (string, error)
}

func (f *fakeGateway) Invoke(ctx context.Context, req *llm.InvokeRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.respond(req)
}

func (f *fakeGateway) models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Model
	}
	return out
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func modelJSON(t *testing.T, title string, urgency Urgency) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"title":            title,
		"summary":          "summary of " + title,
		"bullets":          []string{title + " bullet"},
		"actionItems":      []string{"follow up"},
		"speakerBreakdown": []map[string]any{{"speaker": "ann", "keyPoints": []string{"k"}, "sentiment": "positive"}},
		"skills":           []string{"Go"},
		"redFlags":         []string{},
		"sentiment":        "positive",
		"urgency":          string(urgency),
		"confidence":       0.9,
	})
	require.NoError(t, err)
	return string(b)
}

func newTestOrchestrator(t *testing.T, gw llm.Gateway, mutate ...func(*Options)) *Orchestrator {
	t.Helper()
	opts := DefaultOptions(primaryModel, fallbackModel)
	opts.Backoff = 0
	for _, m := range mutate {
		m(&opts)
	}
	o, err := NewOrchestrator(gw, opts)
	require.NoError(t, err)
	return o
}

type recorder struct {
	mu        sync.Mutex
	summaries []string
	attempts  []string
	chunks    []int
	degraded  []string
}

func (r *recorder) RecordSummary(path, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, path+"/"+outcome)
}

func (r *recorder) RecordAttempt(model string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, fmt.Sprintf("%s:%t", model, success))
}

func (r *recorder) RecordChunks(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, n)
}

func (r *recorder) RecordDegraded(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = append(r.degraded, reason)
}

func TestNewOrchestrator_Validation(t *testing.T) {
	gw := &fakeGateway{}
	tests := []struct {
		name   string
		gw     llm.Gateway
		mutate func(*Options)
	}{
		{"nil gateway", nil, func(*Options) {}},
		{"blank model", gw, func(o *Options) { o.Plan = []Step{{Model: " ", Attempts: 1}} }},
		{"zero attempts", gw, func(o *Options) { o.Plan = []Step{{Model: "m", Attempts: 0}} }},
		{"negative backoff", gw, func(o *Options) { o.Backoff = -time.Second }},
		{"threshold below size", gw, func(o *Options) { o.ChunkThreshold, o.ChunkSize = 100, 200 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions(primaryModel, fallbackModel)
			tt.mutate(&opts)
			_, err := NewOrchestrator(tt.gw, opts)
			assert.Error(t, err)
		})
	}
}

func TestDefaultPlan(t *testing.T) {
	assert.Equal(t, []Step{{"p", 2}, {"f", 1}}, DefaultPlan("p", "f"))
	assert.Equal(t, []Step{{"p", 2}}, DefaultPlan("p", ""))
	assert.Equal(t, []Step{{"p", 2}}, DefaultPlan("p", "p"))
}

func TestSummarize_InvalidInput(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) { return "{}", nil }}
	rec := &recorder{}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Recorder = rec })

	for _, req := range []*Request{
		nil,
		{Text: ""},
		{Text: "short"},
		{Text: "   \n\t  "},
		{Text: "  123456789  "},
	} {
		res, err := o.Summarize(context.Background(), req)
		assert.Nil(t, res)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
		var invalid *InvalidInputError
		assert.ErrorAs(t, err, &invalid)
	}
	assert.Zero(t, gw.count())
	require.Len(t, rec.summaries, 5)
	for _, got := range rec.summaries {
		assert.Equal(t, "none/rejected", got)
	}
}

func TestSummarize_EmptyPlanDegrades(t *testing.T) {
	gw := &fakeGateway{}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Plan = nil })

	res, err := o.Summarize(context.Background(), &Request{Text: "no keys are configured on this box"})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, res.Model)
	assert.Equal(t, []string{"AI service unavailable", "Error: " + ErrNoModels.Error()}, res.RedFlags)
	assert.Zero(t, gw.count())
}

func TestSummarize_PrimarySucceeds(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) { return modelJSON(t, "Launch", UrgencyLow), nil }}
	o := newTestOrchestrator(t, gw)

	res, err := o.Summarize(context.Background(), &Request{Text: "ann: we launch on monday", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, primaryModel, res.Model)
	assert.Equal(t, "Launch", res.Title)
	assert.Equal(t, []string{primaryModel}, gw.models())

	call := gw.calls[0]
	assert.Equal(t, SystemPrompt, call.SystemPrompt)
	assert.Equal(t, 2000, call.MaxTokens)
	assert.InDelta(t, 0.3, call.Temperature, 1e-6)
	assert.Contains(t, call.UserPrompt, "ann: we launch on monday")
}

func TestSummarize_FallbackAfterPrimaryFailsTwice(t *testing.T) {
	gw := &fakeGateway{respond: func(req *llm.InvokeRequest) (string, error) {
		if req.Model == primaryModel {
			return "", errors.New("rate limited")
		}
		return modelJSON(t, "Recovered", UrgencyMedium), nil
	}}
	rec := &recorder{}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Recorder = rec })

	res, err := o.Summarize(context.Background(), &Request{Text: "bob: the build is broken again"})
	require.NoError(t, err)
	assert.Equal(t, fallbackModel, res.Model)
	assert.NotEqual(t, FallbackModel, res.Model)
	assert.Equal(t, "Recovered", res.Title)
	assert.Equal(t, []string{primaryModel, primaryModel, fallbackModel}, gw.models())
	assert.Equal(t, []string{primaryModel + ":false", primaryModel + ":false", fallbackModel + ":true"}, rec.attempts)
	assert.Equal(t, []string{"direct/ok"}, rec.summaries)
}

func TestSummarize_AllModelsFail(t *testing.T) {
	gw := &fakeGateway{respond: func(req *llm.InvokeRequest) (string, error) {
		return "", fmt.Errorf("%s unreachable", req.Model)
	}}
	rec := &recorder{}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Recorder = rec })

	res, err := o.Summarize(context.Background(), &Request{Text: "carol: is anyone looking at the outage?"})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, res.Model)
	assert.InDelta(t, 0.2, res.Confidence, 1e-9)
	assert.Contains(t, res.RedFlags, "AI service unavailable")
	assert.Contains(t, res.RedFlags[1], "gpt-4o-mini unreachable")
	assert.Contains(t, res.Summary, "gpt-4o-mini unreachable")
	assert.Len(t, gw.calls, 3)
	assert.Equal(t, []string{"direct/degraded"}, rec.summaries)
	assert.Equal(t, []string{"unavailable"}, rec.degraded)
}

func TestSummarize_EmptyOutputIsAFailure(t *testing.T) {
	n := 0
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) {
		n++
		if n == 1 {
			return "   ", nil
		}
		return modelJSON(t, "Second try", UrgencyLow), nil
	}}
	o := newTestOrchestrator(t, gw)

	res, err := o.Summarize(context.Background(), &Request{Text: "dave: retry this please"})
	require.NoError(t, err)
	assert.Equal(t, "Second try", res.Title)
	assert.Equal(t, []string{primaryModel, primaryModel}, gw.models())
}

func TestSummarize_UnparseableOutputDegrades(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) { return "I cannot help with that.", nil }}
	rec := &recorder{}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Recorder = rec })

	res, err := o.Summarize(context.Background(), &Request{Text: "erin: summarize the retro notes"})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, res.Model)
	assert.Len(t, gw.calls, 1)
	assert.Equal(t, []string{"parse"}, rec.degraded)
}

func TestSummarize_BackoffIsLinear(t *testing.T) {
	var stamps []time.Time
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) {
		stamps = append(stamps, time.Now())
		return "", errors.New("down")
	}}
	o := newTestOrchestrator(t, gw, func(opts *Options) {
		opts.Plan = []Step{{Model: "m", Attempts: 3}}
		opts.Backoff = 20 * time.Millisecond
	})

	_, err := o.Summarize(context.Background(), &Request{Text: "frank: please retry three times"})
	require.NoError(t, err)
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 40*time.Millisecond)
}

func TestSummarize_CancelledContextDegrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) {
		cancel()
		return "", errors.New("down")
	}}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Backoff = time.Hour })

	start := time.Now()
	res, err := o.Summarize(ctx, &Request{Text: "gina: this call gets cancelled"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, FallbackModel, res.Model)
	assert.Len(t, gw.calls, 1)
}

func TestSummarize_AttemptTimeout(t *testing.T) {
	gw := &fakeGateway{}
	gw.respond = func(req *llm.InvokeRequest) (string, error) {
		if req.Model == primaryModel {
			return "", context.DeadlineExceeded
		}
		return modelJSON(t, "fast", UrgencyLow), nil
	}
	slow := llm.GatewayFunc(func(ctx context.Context, req *llm.InvokeRequest) (string, error) {
		if req.Model == primaryModel {
			<-ctx.Done()
		}
		return gw.Invoke(ctx, req)
	})
	o := newTestOrchestrator(t, slow, func(opts *Options) { opts.AttemptTimeout = 10 * time.Millisecond })

	res, err := o.Summarize(context.Background(), &Request{Text: "hank: the primary model hangs"})
	require.NoError(t, err)
	assert.Equal(t, fallbackModel, res.Model)
}

func TestSummarize_ValidInputsAlwaysWellFormed(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	outputs := []string{
		modelJSON(t, "ok", UrgencyHigh),
		`{"confidence": 12, "sentiment": "ecstatic", "urgency": 3}`,
		`{"confidence": -1}`,
		"garbage",
		"",
	}
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) {
		if rng.Intn(4) == 0 {
			return "", errors.New("flaky")
		}
		return outputs[rng.Intn(len(outputs))], nil
	}}
	o := newTestOrchestrator(t, gw)

	for i := 0; i < 100; i++ {
		text := strings.Repeat("word ", rng.Intn(500)+3)
		res, err := o.Summarize(context.Background(), &Request{Text: text})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		assert.Contains(t, []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}, res.Sentiment)
		assert.Contains(t, []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}, res.Urgency)
		assert.NotNil(t, res.Bullets)
		assert.NotNil(t, res.RedFlags)
	}
}

func chunkedText(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		fmt.Fprintf(&sb, "speaker%d: sentence number %d about the roadmap.\n", i%3, i)
	}
	return sb.String()
}

func TestSummarize_ChunkedPath(t *testing.T) {
	gw := &fakeGateway{respond: func(req *llm.InvokeRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "sentence number 0 ") {
			return modelJSON(t, "first", UrgencyHigh), nil
		}
		return modelJSON(t, "later", UrgencyLow), nil
	}}
	rec := &recorder{}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Recorder = rec })

	text := chunkedText(120000)
	res, err := o.Summarize(context.Background(), &Request{Text: text})
	require.NoError(t, err)

	chunks, err := Split(strings.TrimSpace(text), DefaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), gw.count())
	assert.Equal(t, []int{len(chunks)}, rec.chunks)

	assert.Equal(t, "combined-"+primaryModel, res.Model)
	assert.Equal(t, fmt.Sprintf("Combined Analysis (%d parts)", len(chunks)), res.Title)
	assert.Equal(t, UrgencyHigh, res.Urgency)
	assert.Equal(t, "first bullet", res.Bullets[0])
	assert.Equal(t, []string{"chunked/ok"}, rec.summaries)
	for _, c := range gw.calls {
		assert.LessOrEqual(t, len(c.UserPrompt), DefaultChunkSize+5000)
	}
}

func TestSummarize_ChunkedConcurrentMatchesSequential(t *testing.T) {
	respond := func(req *llm.InvokeRequest) (string, error) {
		for i := 0; i < 200; i++ {
			if strings.Contains(req.UserPrompt, fmt.Sprintf("sentence number %d ", i)) {
				return modelJSON(t, fmt.Sprintf("part-%03d", i), UrgencyLow), nil
			}
		}
		return modelJSON(t, "tail", UrgencyLow), nil
	}
	text := chunkedText(3000)
	small := func(concurrency int) func(*Options) {
		return func(opts *Options) {
			opts.ChunkThreshold = 500
			opts.ChunkSize = 400
			opts.ChunkConcurrency = concurrency
		}
	}

	seq, err := newTestOrchestrator(t, &fakeGateway{respond: respond}, small(1)).Summarize(context.Background(), &Request{Text: text})
	require.NoError(t, err)
	par, err := newTestOrchestrator(t, &fakeGateway{respond: respond}, small(4)).Summarize(context.Background(), &Request{Text: text})
	require.NoError(t, err)

	seq.ProcessingTimeMs, par.ProcessingTimeMs = 0, 0
	assert.Equal(t, seq, par)
	assert.Equal(t, "part-000 bullet", par.Bullets[0])
}

func TestSummarize_ChunkedAllFailDegradesWholeText(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) { return "", errors.New("offline") }}
	rec := &recorder{}
	o := newTestOrchestrator(t, gw, func(opts *Options) {
		opts.ChunkThreshold = 500
		opts.ChunkSize = 400
		opts.Recorder = rec
	})

	text := chunkedText(2000)
	res, err := o.Summarize(context.Background(), &Request{Text: text})
	require.NoError(t, err)
	assert.Equal(t, FallbackModel, res.Model)
	assert.Contains(t, res.Summary, fmt.Sprintf("%d words", len(strings.Fields(text))))
	assert.Contains(t, res.RedFlags[1], "offline")
	assert.Equal(t, []string{"chunked/degraded"}, rec.summaries)
	assert.Contains(t, rec.degraded, "chunks")
}

func TestSummarize_ChunkedPartialFailureCombines(t *testing.T) {
	gw := &fakeGateway{respond: func(req *llm.InvokeRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "sentence number 0 ") {
			return "", errors.New("offline")
		}
		return modelJSON(t, "ok", UrgencyLow), nil
	}}
	o := newTestOrchestrator(t, gw, func(opts *Options) {
		opts.ChunkThreshold = 500
		opts.ChunkSize = 400
	})

	res, err := o.Summarize(context.Background(), &Request{Text: chunkedText(2000)})
	require.NoError(t, err)
	assert.Equal(t, "combined-"+FallbackModel, res.Model)
	assert.Contains(t, res.RedFlags, "AI service unavailable")
	assert.Contains(t, res.Skills, "Go")
}

func TestSummarizeSlackThread(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) { return modelJSON(t, "Thread", UrgencyLow), nil }}
	o := newTestOrchestrator(t, gw)

	res, err := o.SummarizeSlackThread(context.Background(), "u1", []SlackMessage{
		{User: "ann", Text: "can we ship today?", Timestamp: "1.0"},
		{User: "bob", Text: "  "},
		{User: "bob", Text: "yes, after QA"},
		{User: "ann", Text: "great"},
	}, &personalization.Settings{Style: "bullet"})
	require.NoError(t, err)
	assert.Equal(t, "Thread", res.Title)

	call := gw.calls[0]
	assert.Equal(t, 1500, call.MaxTokens)
	assert.Contains(t, call.UserPrompt, "ann: can we ship today?\nbob: yes, after QA\nann: great")
	assert.Contains(t, call.UserPrompt, "Participants: ann, bob")
	assert.Contains(t, call.UserPrompt, "Slack thread")
}

func TestSummarizeSlackThread_Empty(t *testing.T) {
	gw := &fakeGateway{}
	o := newTestOrchestrator(t, gw)

	_, err := o.SummarizeSlackThread(context.Background(), "u1", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, gw.count())
}

func TestRenderSlackThread(t *testing.T) {
	text, people := RenderSlackThread([]SlackMessage{{User: "", Text: "hi"}, {User: "zoe", Text: "hello"}})
	assert.Equal(t, "Unknown: hi\nzoe: hello\n", text)
	assert.Equal(t, []string{"Unknown", "zoe"}, people)
}

type maskDigits struct{}

func (maskDigits) Redact(text string) (string, int) {
	n := 0
	out := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			n++
			return '#'
		}
		return r
	}, text)
	return out, n
}

func TestSummarize_RedactsBeforePrompt(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) {
		return modelJSON(t, "call", UrgencyLow), nil
	}}
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Redactor = maskDigits{} })

	_, err := o.Summarize(context.Background(), &Request{Text: "ring me at 5550199 after lunch"})
	require.NoError(t, err)
	require.Equal(t, 1, gw.count())
	assert.Contains(t, gw.calls[0].UserPrompt, "ring me at ####### after lunch")
	assert.NotContains(t, gw.calls[0].UserPrompt, "5550199")
}

func TestSummarize_UsesRequestLogger(t *testing.T) {
	gw := &fakeGateway{respond: func(*llm.InvokeRequest) (string, error) {
		return modelJSON(t, "standup", UrgencyLow), nil
	}}
	debugLogger := func(buf *bytes.Buffer) *logging.Logger {
		h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
		return logging.NewLogger(h).WithLevel(logging.LevelDebug)
	}

	var base, scoped bytes.Buffer
	o := newTestOrchestrator(t, gw, func(opts *Options) { opts.Logger = debugLogger(&base) })
	ctx := logging.ToContext(context.Background(), debugLogger(&scoped).With("request_id", "req-42"))

	_, err := o.Summarize(ctx, &Request{Text: "alice: the deploy finished without errors"})
	require.NoError(t, err)

	assert.Empty(t, base.String())
	assert.Contains(t, scoped.String(), `"request_id":"req-42"`)
	assert.Contains(t, scoped.String(), `"trace_id":`)
}
