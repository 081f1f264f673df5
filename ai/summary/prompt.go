package summary

import (
	"fmt"
	"strings"

	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/ai/personalization"
)

// SystemPrompt is sent with every summarization call.
const SystemPrompt = `You are an expert conversation analyst. You read meeting transcripts, chat threads and documents and produce accurate, structured summaries. You never invent facts that are not in the source. You always answer with a single JSON object and nothing else.`

// outputContract is the JSON shape every prompt asks for.
const outputContract = `Respond with ONLY a JSON object, no markdown and no prose before or after it, with exactly these keys:
{
  "title": "short headline, at most 60 characters",
  "summary": "2-4 sentence narrative summary",
  "bullets": ["key point", "..."],
  "actionItems": ["task with owner when known", "..."],
  "speakerBreakdown": [{"speaker": "name", "keyPoints": ["..."], "sentiment": "positive|neutral|negative"}],
  "skills": ["skill or technology mentioned", "..."],
  "redFlags": ["risk, blocker or concern", "..."],
  "sentiment": "positive|neutral|negative",
  "urgency": "low|medium|high",
  "confidence": 0.0
}
confidence is a number between 0 and 1 describing how sure you are of the summary.`

const slackGuidance = `This is a Slack thread. Treat @mentions as participants, follow reply threads, read emoji reactions as agreement or sentiment signals, and ignore bot join/leave noise.`

// PromptBuilder renders user prompts, personalized when settings are given.
type PromptBuilder struct {
	engine *personalization.Engine
	logger *logging.Logger
}

// NewPromptBuilder creates a builder. A nil engine uses the embedded catalog.
func NewPromptBuilder(engine *personalization.Engine, logger *logging.Logger) *PromptBuilder {
	if logger == nil {
		logger = logging.Default()
	}
	return &PromptBuilder{engine: engine, logger: logger}
}

// BuildPrompt renders a prompt with the embedded personalization catalog.
func BuildPrompt(text string, c *Context, p *personalization.Settings, v Variant) string {
	return NewPromptBuilder(nil, nil).Build(text, c, p, v)
}

// Build never fails: personalization problems fall back to the default template.
func (b *PromptBuilder) Build(text string, c *Context, p *personalization.Settings, v Variant) string {
	if p != nil {
		out, err := b.personalized(text, c, p, v)
		if err == nil {
			return out
		}
		b.logger.Warn("personalized prompt failed, using default template", "error", err)
	}
	return defaultPrompt(text, c, v)
}

func (b *PromptBuilder) personalized(text string, c *Context, p *personalization.Settings, v Variant) (string, error) {
	engine := b.engine
	if engine == nil {
		var err error
		if engine, err = personalization.Default(); err != nil {
			return "", err
		}
	}
	return engine.Render(&personalization.Input{
		Text:     text,
		Context:  renderContext(c),
		Schema:   outputContract,
		Slack:    v == VariantSlack,
		Settings: p,
	})
}

func defaultPrompt(text string, c *Context, v Variant) string {
	var sb strings.Builder
	if v == VariantSlack {
		sb.WriteString("Analyze the following Slack conversation and produce a structured summary.\n")
	} else {
		sb.WriteString("Analyze the following conversation and produce a structured summary.\n")
	}
	if ctx := renderContext(c); ctx != "" {
		sb.WriteString("\nContext:\n")
		sb.WriteString(ctx)
		sb.WriteString("\n")
	}
	if v == VariantSlack {
		sb.WriteString("\n")
		sb.WriteString(slackGuidance)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(outputContract)
	sb.WriteString("\n\nConversation:\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	return sb.String()
}

func renderContext(c *Context) string {
	if c == nil {
		return ""
	}
	var lines []string
	if s := strings.TrimSpace(c.Source); s != "" {
		lines = append(lines, "Source: "+s)
	}
	if len(c.Participants) > 0 {
		lines = append(lines, "Participants: "+strings.Join(c.Participants, ", "))
	}
	if c.Duration > 0 {
		lines = append(lines, fmt.Sprintf("Duration: %d minutes", int(c.Duration.Minutes()+0.5)))
	}
	return strings.Join(lines, "\n")
}
