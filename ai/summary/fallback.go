package summary

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hrygo/recap/ai/internal/strutil"
)

// FallbackModel tags results produced without a model.
const FallbackModel = "enhanced-fallback"

const (
	fallbackTitle      = "Summary unavailable (fallback analysis)"
	fallbackConfidence = 0.2
	redFlagUnavailable = "AI service unavailable"
	maxRedFlagErrorLen = 200
)

var fallbackActionItems = []string{
	"Configure AI API keys to enable full summarization",
	"Review the content manually for key decisions and tasks",
}

type skillRule struct {
	pattern *regexp.Regexp
	skill   string
}

// skillDictionary is matched in order; the order is the output order.
var skillDictionary = []skillRule{
	{regexp.MustCompile(`(?i)\breact\b`), "React"},
	{regexp.MustCompile(`(?i)\bjavascript\b`), "JavaScript"},
	{regexp.MustCompile(`(?i)\btypescript\b`), "TypeScript"},
	{regexp.MustCompile(`(?i)\bnode(\.js|js)?\b`), "Node.js"},
	{regexp.MustCompile(`(?i)\bpython\b`), "Python"},
	{regexp.MustCompile(`(?i)\bgolang\b`), "Go"},
	{regexp.MustCompile(`(?i)\bjava\b`), "Java"},
	{regexp.MustCompile(`(?i)\b(sql|postgres(ql)?|mysql)\b`), "SQL"},
	{regexp.MustCompile(`(?i)\baws\b`), "AWS"},
	{regexp.MustCompile(`(?i)\bdocker\b`), "Docker"},
	{regexp.MustCompile(`(?i)\b(kubernetes|k8s)\b`), "Kubernetes"},
	{regexp.MustCompile(`(?i)\b(machine learning|ml)\b`), "Machine Learning"},
	{regexp.MustCompile(`(?i)\bapis?\b`), "API Design"},
	{regexp.MustCompile(`(?i)\b(ux|ui|design)\b`), "Design"},
	{regexp.MustCompile(`(?i)\b(marketing|seo)\b`), "Marketing"},
	{regexp.MustCompile(`(?i)\b(sales|revenue)\b`), "Sales"},
	{regexp.MustCompile(`(?i)\b(project management|roadmap|sprint)\b`), "Project Management"},
}

var (
	urgentPattern  = regexp.MustCompile(`(?i)\b(urgent|asap|critical|emergency)\b`)
	numericPattern = regexp.MustCompile(`\d`)
)

// GenerateFallback builds a low-confidence Result from local statistics of
// text. It makes no network calls and returns the same output for the same
// arguments. lastErr may be nil.
func GenerateFallback(text string, lastErr error) *Result {
	words := strutil.WordCount(text)
	lines := countLines(text)

	summary := fmt.Sprintf("The AI summarization service was unavailable, so this is a basic analysis of %d words of content.", words)
	redFlags := []string{redFlagUnavailable}
	if lastErr != nil {
		summary += " Last error: " + lastErr.Error()
		redFlags = append(redFlags, "Error: "+strutil.Truncate(lastErr.Error(), maxRedFlagErrorLen))
	}

	bullets := []string{
		fmt.Sprintf("Content contains %d words", words),
		fmt.Sprintf("Content spans %d lines", lines),
	}
	if strings.Contains(text, "?") {
		bullets = append(bullets, "Questions were raised in the conversation")
	} else {
		bullets = append(bullets, "No questions detected")
	}
	if numericPattern.MatchString(text) {
		bullets = append(bullets, "Numeric data is present")
	} else {
		bullets = append(bullets, "No numeric data detected")
	}

	skills := make([]string, 0)
	for _, rule := range skillDictionary {
		if rule.pattern.MatchString(text) {
			skills = append(skills, rule.skill)
		}
	}

	urgency := UrgencyMedium
	if urgentPattern.MatchString(text) {
		urgency = UrgencyHigh
	}

	return &Result{
		Title:            fallbackTitle,
		Summary:          summary,
		Bullets:          bullets,
		ActionItems:      copyStrings(fallbackActionItems),
		SpeakerBreakdown: make([]SpeakerBreakdown, 0),
		Skills:           skills,
		RedFlags:         redFlags,
		Sentiment:        SentimentNeutral,
		Urgency:          urgency,
		Confidence:       fallbackConfidence,
		Model:            FallbackModel,
	}
}

func countLines(text string) int {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
