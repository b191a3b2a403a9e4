package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/llm/tools"
	"github.com/alkoleft/naparnik-mcp/internal/metrics"
	"github.com/alkoleft/naparnik-mcp/internal/protocol"
	"github.com/alkoleft/naparnik-mcp/internal/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	DefaultAddr              = ":8080"
	DefaultHeartbeatInterval = 30 * time.Second

	ServiceName     = "1c-copilot-mcp-server"
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Addr              string
	HeartbeatInterval time.Duration
	// Sessions, when set, streams session changes to SSE clients.
	Sessions *session.Manager
}

type Server struct {
	echo       *echo.Echo
	dispatcher *protocol.Dispatcher
	tools      *tools.Registry
	options    Options
	log        *slog.Logger
}

func New(dispatcher *protocol.Dispatcher, registry *tools.Registry, options Options) *Server {
	if options.Addr == "" {
		options.Addr = DefaultAddr
	}
	if options.HeartbeatInterval <= 0 {
		options.HeartbeatInterval = DefaultHeartbeatInterval
	}

	result := &Server{
		echo:       echo.New(),
		dispatcher: dispatcher,
		tools:      registry,
		options:    options,
		log:        slog.With("service", "server"),
	}
	result.echo.HideBanner = true
	result.echo.HidePort = true
	result.routes()
	return result
}

func (s *Server) routes() {
	e := s.echo
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.log.Error("Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.log.Debug("Request handled", attrs...)
			return nil
		},
	}))

	e.GET("/mcp", s.handleStream)
	e.POST("/mcp", s.handleRPC)

	api := e.Group("/api")
	api.POST("/ask-ai", s.handleAskAI)
	api.POST("/explain-syntax", s.handleExplainSyntax)
	api.POST("/check-code", s.handleCheckCode)
	api.GET("/health", s.handleHealth)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting server", "addr", s.options.Addr)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Failed to shut down server", "error", err)
		}
	}()

	if err := s.echo.Start(s.options.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}
