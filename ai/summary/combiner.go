package summary

import (
	"fmt"
	"strings"
)

// Output caps for combined results.
const (
	MaxCombinedSkills      = 15
	MaxCombinedRedFlags    = 10
	MaxCombinedActionItems = 8
	MaxCombinedBullets     = 10
)

// Combine merges per-chunk results, in chunk order, into a new Result.
// Inputs are not modified. originalLength is reported in the summary text.
func Combine(results []*Result, originalLength int) (*Result, error) {
	parts := make([]*Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		return nil, ErrNoResults
	}

	out := &Result{
		Title:            fmt.Sprintf("Combined Analysis (%d parts)", len(parts)),
		Summary:          fmt.Sprintf("This content was analyzed in %d parts covering %d characters of the original text.", len(parts), originalLength),
		Bullets:          make([]string, 0, MaxCombinedBullets),
		SpeakerBreakdown: make([]SpeakerBreakdown, 0),
		Model:            "combined-" + parts[0].Model,
		Urgency:          UrgencyLow,
	}

	var skills, redFlags, actions unionList
	var positive, negative int
	var confidence float64

	for _, r := range parts {
		skills.add(r.Skills...)
		redFlags.add(r.RedFlags...)
		actions.add(r.ActionItems...)

		for _, b := range r.Bullets {
			if len(out.Bullets) == MaxCombinedBullets {
				break
			}
			out.Bullets = append(out.Bullets, b)
		}
		for _, sb := range r.SpeakerBreakdown {
			out.SpeakerBreakdown = append(out.SpeakerBreakdown, SpeakerBreakdown{
				Speaker:   sb.Speaker,
				KeyPoints: copyStrings(sb.KeyPoints),
				Sentiment: sb.Sentiment,
			})
		}

		switch r.Sentiment {
		case SentimentPositive:
			positive++
		case SentimentNegative:
			negative++
		}
		if r.Urgency.rank() > out.Urgency.rank() {
			out.Urgency = r.Urgency
		}
		confidence += r.Confidence
		out.ProcessingTimeMs += r.ProcessingTimeMs
	}

	out.Skills = skills.capped(MaxCombinedSkills)
	out.RedFlags = redFlags.capped(MaxCombinedRedFlags)
	out.ActionItems = actions.capped(MaxCombinedActionItems)
	out.Confidence = clamp01(confidence / float64(len(parts)))

	switch {
	case positive > negative:
		out.Sentiment = SentimentPositive
	case negative > positive:
		out.Sentiment = SentimentNegative
	default:
		out.Sentiment = SentimentNeutral
	}
	return out, nil
}

// unionList is an insertion-ordered set. Duplicates compare case-insensitively
// after trimming, and the first spelling wins.
type unionList struct {
	seen  map[string]bool
	items []string
}

func (u *unionList) add(values ...string) {
	if u.seen == nil {
		u.seen = make(map[string]bool)
	}
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || u.seen[key] {
			continue
		}
		u.seen[key] = true
		u.items = append(u.items, v)
	}
}

func (u *unionList) capped(limit int) []string {
	n := min(len(u.items), limit)
	out := make([]string, n)
	copy(out, u.items[:n])
	return out
}
