package summary

import (
	"fmt"
	"strings"

	"github.com/hrygo/recap/ai/internal/strutil"
)

const (
	maxLineLength       = 1000
	minRepeatedLineLen  = 20
	maxLineRepeats      = 5
	minWordsForRatio    = 50
	maxDominantWordRate = 0.5
)

// QualityIssue is a non-fatal problem found in input text.
type QualityIssue struct {
	Kind   string
	Detail string
}

// CheckQuality reports long lines and pathological repetition. It never blocks.
func CheckQuality(text string) []QualityIssue {
	var issues []QualityIssue

	lineCounts := make(map[string]int)
	longLines := 0
	for _, line := range strings.Split(text, "\n") {
		if strutil.RuneLen(line) > maxLineLength {
			longLines++
		}
		if t := strings.TrimSpace(line); len(t) >= minRepeatedLineLen {
			lineCounts[t]++
		}
	}
	if longLines > 0 {
		issues = append(issues, QualityIssue{Kind: "long_lines", Detail: pluralize(longLines, "line") + " longer than 1000 characters"})
	}

	repeated := 0
	for _, n := range lineCounts {
		if n > maxLineRepeats {
			repeated++
		}
	}
	if repeated > 0 {
		issues = append(issues, QualityIssue{Kind: "repeated_lines", Detail: pluralize(repeated, "line") + " repeated more than 5 times"})
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) >= minWordsForRatio {
		counts := make(map[string]int)
		top := 0
		for _, w := range words {
			counts[w]++
			top = max(top, counts[w])
		}
		if float64(top)/float64(len(words)) > maxDominantWordRate {
			issues = append(issues, QualityIssue{Kind: "repetition", Detail: "a single word makes up more than half of the content"})
		}
	}
	return issues
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
