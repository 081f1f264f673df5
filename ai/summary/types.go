// Package summary turns conversational text into structured summaries.
//
// The Orchestrator validates a request, routes oversized text through the
// chunker and combiner, drives the model attempt plan, and degrades to a
// deterministic local analysis when no model answers.
package summary

import (
	"strings"
	"time"

	"github.com/hrygo/recap/ai/personalization"
)

// Sentiment is the overall tone of a conversation or speaker.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment maps v onto a Sentiment. Unknown values are neutral.
func ParseSentiment(v string) Sentiment {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(v))); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s
	default:
		return SentimentNeutral
	}
}

// Urgency is how soon a conversation needs attention.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency maps v onto an Urgency. Unknown values are medium.
func ParseUrgency(v string) Urgency {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(v))); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return u
	default:
		return UrgencyMedium
	}
}

func (u Urgency) rank() int {
	switch u {
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// Variant selects the prompt template and token budget.
type Variant string

const (
	VariantGeneral Variant = "general"
	VariantSlack   Variant = "slack"
)

// MaxTokens returns the completion budget for the variant.
func (v Variant) MaxTokens() int {
	if v == VariantSlack {
		return 1500
	}
	return 2000
}

// Context is optional metadata about where the text came from.
type Context struct {
	Source       string        `json:"source,omitempty"`
	Participants []string      `json:"participants,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Request is the input to Summarize.
type Request struct {
	Text            string                    `json:"text"`
	UserID          string                    `json:"userId,omitempty"`
	Context         *Context                  `json:"context,omitempty"`
	Personalization *personalization.Settings `json:"personalization,omitempty"`
	Variant         Variant                   `json:"variant,omitempty"`
}

// SpeakerBreakdown summarizes one participant.
type SpeakerBreakdown struct {
	Speaker   string    `json:"speaker"`
	KeyPoints []string  `json:"keyPoints"`
	Sentiment Sentiment `json:"sentiment"`
}

// Result is the canonical summary. Every field is populated on success.
type Result struct {
	Title            string             `json:"title"`
	Summary          string             `json:"summary"`
	Bullets          []string           `json:"bullets"`
	ActionItems      []string           `json:"actionItems"`
	SpeakerBreakdown []SpeakerBreakdown `json:"speakerBreakdown"`
	Skills           []string           `json:"skills"`
	RedFlags         []string           `json:"redFlags"`
	Sentiment        Sentiment          `json:"sentiment"`
	Urgency          Urgency            `json:"urgency"`
	Confidence       float64            `json:"confidence"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
	Model            string             `json:"model"`
}

// Degraded reports whether r came from the local fallback generator.
func (r *Result) Degraded() bool {
	return r != nil && r.Model == FallbackModel
}

// Chunk is one segment of an oversized input.
type Chunk struct {
	Index  int
	Offset int // byte offset in the original text
	Text   string
}

// SlackMessage is one message of a Slack thread.
type SlackMessage struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"ts,omitempty"`
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
