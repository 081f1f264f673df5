package summary

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultConfidence  = 0.8
	placeholderTitle   = "Untitled Summary"
	placeholderSummary = "No summary was provided."
	placeholderSpeaker = "Unknown"
)

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	codeFencePattern  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
)

// Parse turns raw model output into a Result. It never fails: output that
// holds no decodable JSON object is analyzed by GenerateFallback instead.
func Parse(raw, model string) *Result {
	r, err := parseObject(raw, model)
	if err != nil {
		return GenerateFallback(raw, err)
	}
	return r
}

func parseObject(raw, model string) (*Result, error) {
	cleaned := codeFencePattern.ReplaceAllString(raw, "")
	match := jsonObjectPattern.FindString(cleaned)
	if match == "" {
		return nil, &ParseError{Reason: "no JSON object found"}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(match), &obj); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}

	return &Result{
		Title:            stringField(obj, "title", placeholderTitle),
		Summary:          stringField(obj, "summary", placeholderSummary),
		Bullets:          stringList(obj["bullets"]),
		ActionItems:      stringList(obj["actionItems"]),
		SpeakerBreakdown: speakerList(obj["speakerBreakdown"]),
		Skills:           stringList(obj["skills"]),
		RedFlags:         stringList(obj["redFlags"]),
		Sentiment:        ParseSentiment(stringField(obj, "sentiment", "")),
		Urgency:          ParseUrgency(stringField(obj, "urgency", "")),
		Confidence:       confidenceField(obj["confidence"]),
		Model:            model,
	}, nil
}

func stringField(obj map[string]any, key, placeholder string) string {
	s, ok := obj[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// stringList keeps the string elements of v. Anything that is not an array is empty.
func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func speakerList(v any) []SpeakerBreakdown {
	items, _ := v.([]any)
	out := make([]SpeakerBreakdown, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, SpeakerBreakdown{
			Speaker:   stringField(m, "speaker", placeholderSpeaker),
			KeyPoints: stringList(m["keyPoints"]),
			Sentiment: ParseSentiment(stringField(m, "sentiment", "")),
		})
	}
	return out
}

func confidenceField(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	default:
		return defaultConfidence
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultConfidence
	}
	return clamp01(f)
}
