package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/protocol"
	"github.com/alkoleft/naparnik-mcp/internal/pubsub"
	"github.com/alkoleft/naparnik-mcp/internal/session"
	"github.com/labstack/echo/v4"
)

type streamEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Server) handleRPC(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read request body").SetInternal(err)
	}

	req, parseErr := protocol.DecodeRequest(body)
	if parseErr != nil {
		s.log.Warn("Malformed MCP request", "error", parseErr.Error.Message)
		return c.JSON(http.StatusBadRequest, parseErr)
	}

	s.log.Info("MCP request received", "method", req.Method, "id", string(req.ID))
	return c.JSON(http.StatusOK, s.dispatcher.Handle(c.Request().Context(), req))
}

// handleStream keeps an SSE connection open, sending heartbeats and, when a
// session manager is configured, session changes.
func (s *Server) handleStream(c echo.Context) error {
	ctx := c.Request().Context()
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	s.log.Info("SSE stream started")
	defer s.log.Info("SSE stream closed")

	ticker := time.NewTicker(s.options.HeartbeatInterval)
	defer ticker.Stop()

	var sessionEvents <-chan pubsub.Event[session.Event]
	if s.options.Sessions != nil {
		sessionEvents = s.options.Sessions.Subscribe(ctx)
	}

	for {
		var event streamEvent
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			event = streamEvent{Type: "heartbeat", Timestamp: now.UnixMilli()}
			s.log.Debug("Sending heartbeat")
		case se, ok := <-sessionEvents:
			if !ok {
				sessionEvents = nil
				continue
			}
			event = streamEvent{
				Type:      string(se.Type),
				Timestamp: se.Payload.CreatedAt.UnixMilli(),
				SessionID: se.Payload.Handle.String(),
			}
		}

		if err := writeEvent(w, event); err != nil {
			s.log.Debug("SSE client went away", "error", err)
			return nil
		}
	}
}

func writeEvent(w *echo.Response, event streamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
