package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/recap/ai/metrics"
	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/internal/profile"
	apiv1 "github.com/hrygo/recap/server/router/api/v1"
)

// maxBodySize bounds request bodies. Chunking handles large texts, but not unbounded ones.
const maxBodySize = "8M"

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	logger     *logging.Logger
}

// NewServer builds the HTTP surface. exporter may be nil, in which case
// /metrics is not mounted.
func NewServer(_ context.Context, profile *profile.Profile, summarizer apiv1.Summarizer, exporter *metrics.PrometheusExporter, logger *logging.Logger) (*Server, error) {
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		Profile: profile,
		logger:  logger,
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = s.errorHandler
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:        uuid.NewString,
		RequestIDHandler: s.bindRequestLogger,
	}))
	echoServer.Use(middleware.BodyLimit(maxBodySize))
	echoServer.Use(s.accessLog)
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": profile.Version,
		})
	})
	if exporter != nil {
		echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	apiv1.NewAPIV1Service(profile, summarizer).Register(echoServer)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile address. It blocks until Shutdown is called
// and then returns http.ErrServerClosed.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.Profile.Addr, fmt.Sprint(s.Profile.Port))
	s.logger.Info("server listening", "addr", addr, "version", s.Profile.Version)
	return s.echoServer.Start(addr)
}

// Shutdown drains in-flight requests, waiting at most 10 seconds.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
	}
	s.logger.Info("server stopped properly")
}

func (s *Server) bindRequestLogger(c echo.Context, id string) {
	req := c.Request()
	ctx := logging.ToContext(req.Context(), s.logger.With("request_id", id))
	c.SetRequest(req.WithContext(ctx))
}

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logging.FromContext(c.Request().Context()).Info("http request",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request failed", "status", code, "error", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
