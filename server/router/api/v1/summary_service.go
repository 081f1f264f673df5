package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/ai/personalization"
	"github.com/hrygo/recap/ai/summary"
)

// maxSlackMessages bounds one thread request.
const maxSlackMessages = 5000

type summaryContext struct {
	Source          string   `json:"source,omitempty"`
	Participants    []string `json:"participants,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
}

type createSummaryRequest struct {
	Text            string                    `json:"text"`
	UserID          string                    `json:"userId,omitempty"`
	Context         *summaryContext           `json:"context,omitempty"`
	Personalization *personalization.Settings `json:"personalization,omitempty"`
}

type createSlackSummaryRequest struct {
	UserID          string                    `json:"userId,omitempty"`
	Messages        []summary.SlackMessage    `json:"messages"`
	Personalization *personalization.Settings `json:"personalization,omitempty"`
}

func (r *createSummaryRequest) toSummaryRequest() *summary.Request {
	req := &summary.Request{
		Text:            r.Text,
		UserID:          r.UserID,
		Personalization: r.Personalization,
	}
	if r.Context != nil {
		req.Context = &summary.Context{
			Source:       r.Context.Source,
			Participants: r.Context.Participants,
			Duration:     time.Duration(r.Context.DurationMinutes) * time.Minute,
		}
	}
	return req
}

// CreateSummary handles POST /api/v1/summaries.
func (s *APIV1Service) CreateSummary(c echo.Context) error {
	var body createSummaryRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	res, err := s.Summarizer.Summarize(c.Request().Context(), body.toSummaryRequest())
	if err != nil {
		return summaryError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CreateSlackSummary handles POST /api/v1/summaries/slack.
func (s *APIV1Service) CreateSlackSummary(c echo.Context) error {
	var body createSlackSummaryRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if len(body.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages are required")
	}
	if len(body.Messages) > maxSlackMessages {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too many messages")
	}

	res, err := s.Summarizer.SummarizeSlackThread(c.Request().Context(), body.UserID, body.Messages, body.Personalization)
	if err != nil {
		return summaryError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func summaryError(c echo.Context, err error) error {
	var invalid *summary.InvalidInputError
	if errors.As(err, &invalid) {
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
	}
	logging.FromContext(c.Request().Context()).Error("summary failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "summary failed")
}
