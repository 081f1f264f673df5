// Package metrics provides Prometheus metrics export for the summarizer.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/recap/ai/core/llm"
)

const namespace = "recap"

// PrometheusExporter exports summarizer metrics in Prometheus format.
// It is a summary.Recorder, an llm.CacheObserver and an llm.CallObserver.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Orchestration metrics
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	attempts *prometheus.CounterVec
	chunks   prometheus.Histogram
	degraded *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// LLM metrics
	llmTokensUsed   *prometheus.CounterVec
	llmTokensCached *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	llmErrors       *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "requests_total",
			Help:      "Total number of summarize calls by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	e.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "latency_seconds",
			Help:      "Summarize call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"path"},
	)

	e.attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "model_attempts_total",
			Help:      "Total number of model attempts by model and status",
		},
		[]string{"model", "status"},
	)

	e.chunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "chunks",
			Help:      "Number of chunks per chunked summarize call",
			Buckets:   []float64{2, 3, 4, 6, 8, 12, 16, 32},
		},
	)

	e.degraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "degraded_total",
			Help:      "Total number of degraded results by reason",
		},
		[]string{"reason"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		},
		[]string{"cache_type"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.llmTokensCached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_cached_total",
			Help:      "Total prompt tokens served from provider cache",
		},
		[]string{"model"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model", "provider"},
	)

	e.llmErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total failed LLM requests",
		},
		[]string{"model", "provider"},
	)

	registry.MustRegister(
		e.requests,
		e.latency,
		e.attempts,
		e.chunks,
		e.degraded,
		e.cacheHits,
		e.cacheMisses,
		e.llmTokensUsed,
		e.llmTokensCached,
		e.llmLatency,
		e.llmErrors,
	)

	return e
}

// RecordSummary records one summarize call.
func (e *PrometheusExporter) RecordSummary(path, outcome string, latency time.Duration) {
	e.requests.WithLabelValues(path, outcome).Inc()
	e.latency.WithLabelValues(path).Observe(latency.Seconds())
}

// RecordAttempt records one model attempt.
func (e *PrometheusExporter) RecordAttempt(model string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.attempts.WithLabelValues(model, status).Inc()
}

// RecordChunks records the chunk count of a chunked call.
func (e *PrometheusExporter) RecordChunks(n int) {
	e.chunks.Observe(float64(n))
}

// RecordDegraded records a degraded result.
func (e *PrometheusExporter) RecordDegraded(reason string) {
	e.degraded.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordLLMCall records latency, token usage and failures of one provider call.
func (e *PrometheusExporter) RecordLLMCall(model, provider string, latency time.Duration, stats *llm.LLMCallStats, err error) {
	e.llmLatency.WithLabelValues(model, provider).Observe(latency.Seconds())
	if err != nil {
		e.llmErrors.WithLabelValues(model, provider).Inc()
		return
	}
	if stats == nil {
		return
	}
	e.llmTokensUsed.WithLabelValues(model, "prompt").Add(float64(stats.PromptTokens))
	e.llmTokensUsed.WithLabelValues(model, "completion").Add(float64(stats.CompletionTokens))
	if stats.CacheReadTokens > 0 {
		e.llmTokensCached.WithLabelValues(model).Add(float64(stats.CacheReadTokens))
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// Registry returns the Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// ExportText renders counters and gauges in a compact text form, one sample
// per line with sorted labels. Histograms are reported as _count and _sum.
func (e *PrometheusExporter) ExportText() (string, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, mf := range families {
		sb.WriteString("# HELP ")
		sb.WriteString(mf.GetName())
		sb.WriteString(" ")
		sb.WriteString(mf.GetHelp())
		sb.WriteString("\n")

		sb.WriteString("# TYPE ")
		sb.WriteString(mf.GetName())
		sb.WriteString(" ")
		sb.WriteString(strings.ToLower(mf.GetType().String()))
		sb.WriteString("\n")

		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, label := range m.GetLabel() {
				labels = append(labels, label.GetName()+"=\""+label.GetValue()+"\"")
			}
			sort.Strings(labels)
			suffix := ""
			if len(labels) > 0 {
				suffix = "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				writeSample(&sb, mf.GetName()+suffix, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				writeSample(&sb, mf.GetName()+suffix, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				writeSample(&sb, mf.GetName()+"_count"+suffix, float64(h.GetSampleCount()))
				writeSample(&sb, mf.GetName()+"_sum"+suffix, h.GetSampleSum())
			}
		}
	}
	return sb.String(), nil
}

func writeSample(sb *strings.Builder, name string, v float64) {
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	sb.WriteString("\n")
}
