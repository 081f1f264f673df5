package summary

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFallback(t *testing.T) {
	text := "We need to migrate the React app to TypeScript ASAP.\nCan Docker handle 3 replicas?\nThe API is slow."
	res := GenerateFallback(text, errors.New("primary down"))

	assert.Equal(t, FallbackModel, res.Model)
	assert.True(t, res.Degraded())
	assert.Equal(t, "Summary unavailable (fallback analysis)", res.Title)
	assert.InDelta(t, 0.2, res.Confidence, 1e-9)
	assert.Equal(t, SentimentNeutral, res.Sentiment)
	assert.Equal(t, UrgencyHigh, res.Urgency)
	assert.Contains(t, res.Summary, "19 words")
	assert.Contains(t, res.Summary, "primary down")

	assert.Equal(t, []string{
		"Content contains 19 words",
		"Content spans 3 lines",
		"Questions were raised in the conversation",
		"Numeric data is present",
	}, res.Bullets)
	assert.Equal(t, []string{"React", "TypeScript", "Docker", "API Design"}, res.Skills)
	assert.Equal(t, []string{"AI service unavailable", "Error: primary down"}, res.RedFlags)
	assert.Len(t, res.ActionItems, 2)
	assert.Contains(t, res.ActionItems[0], "Configure AI API keys")
	assert.Contains(t, res.ActionItems[1], "Review the content manually")
	assert.NotNil(t, res.SpeakerBreakdown)
	assert.Empty(t, res.SpeakerBreakdown)
}

func TestGenerateFallback_NoError(t *testing.T) {
	res := GenerateFallback("plain words with nothing special here", nil)

	assert.Equal(t, []string{"AI service unavailable"}, res.RedFlags)
	assert.Equal(t, UrgencyMedium, res.Urgency)
	assert.NotContains(t, res.Summary, "Last error")
	assert.Contains(t, res.Bullets, "No questions detected")
	assert.Contains(t, res.Bullets, "No numeric data detected")
	assert.NotNil(t, res.Skills)
	assert.Empty(t, res.Skills)
}

func TestGenerateFallback_LongErrorIsBounded(t *testing.T) {
	long := errors.New("upstream: " + strings.Repeat("x", 500))
	res := GenerateFallback("plain words with nothing special here", long)

	require.Len(t, res.RedFlags, 2)
	assert.Equal(t, "Error: upstream: "+strings.Repeat("x", 190)+"...", res.RedFlags[1])
	assert.Contains(t, res.Summary, long.Error())
}

func TestGenerateFallback_Deterministic(t *testing.T) {
	text := "Critical: the Kubernetes cluster is down. Python workers failing?"
	err := errors.New("timeout")

	a := GenerateFallback(text, err)
	b := GenerateFallback(text, err)
	require.Equal(t, a, b)
	assert.NotSame(t, a, b)

	// Mutating one result must not leak into the next.
	a.ActionItems[0] = "changed"
	c := GenerateFallback(text, err)
	assert.Equal(t, b.ActionItems, c.ActionItems)
}

func TestSkillDictionary_WordBoundaries(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"javascript only", []string{"JavaScript"}},
		{"java and more java", []string{"Java"}},
		{"reactive streams", []string{}},
		{"golang services on AWS", []string{"Go", "AWS"}},
		{"k8s with node.js", []string{"Node.js", "Kubernetes"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateFallback(tt.text, nil).Skills)
		})
	}
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 0, countLines("  \n"))
	assert.Equal(t, 1, countLines("one"))
	assert.Equal(t, 2, countLines("one\ntwo\n"))
}
