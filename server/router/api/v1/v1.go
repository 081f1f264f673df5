package v1

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/recap/ai/personalization"
	"github.com/hrygo/recap/ai/summary"
	"github.com/hrygo/recap/internal/profile"
)

// Summarizer is the orchestrator surface the API needs.
type Summarizer interface {
	Summarize(ctx context.Context, req *summary.Request) (*summary.Result, error)
	SummarizeSlackThread(ctx context.Context, userID string, messages []summary.SlackMessage, p *personalization.Settings) (*summary.Result, error)
}

type APIV1Service struct {
	Profile    *profile.Profile
	Summarizer Summarizer
}

func NewAPIV1Service(profile *profile.Profile, summarizer Summarizer) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		Summarizer: summarizer,
	}
}

// Register mounts the v1 routes under /api/v1.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/summaries", s.CreateSummary)
	g.POST("/summaries/slack", s.CreateSlackSummary)
}
