package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/llm/tools"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type apiResponse struct {
	Result string  `json:"result"`
	Error  *string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleAskAI(c echo.Context) error {
	args := map[string]any{}
	setParam(c, args, "question", "question")
	setParam(c, args, "programmingLanguage", "programming_language")
	if raw := formParam(c, "createNewSession"); raw != nil {
		createNewSession, err := strconv.ParseBool(*raw)
		if err != nil {
			return apiError(c, http.StatusBadRequest, "createNewSession must be a boolean")
		}
		args["create_new_session"] = createNewSession
	}
	return s.runTool(c, tools.AskToolName, args)
}

func (s *Server) handleExplainSyntax(c echo.Context) error {
	args := map[string]any{}
	setParam(c, args, "syntaxElement", "syntax_element")
	setParam(c, args, "context", "context")
	return s.runTool(c, tools.ExplainSyntaxToolName, args)
}

func (s *Server) handleCheckCode(c echo.Context) error {
	args := map[string]any{}
	setParam(c, args, "code", "code")
	setParam(c, args, "checkType", "check_type")
	return s.runTool(c, tools.CheckCodeToolName, args)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// runTool sends a REST call through the same tool layer as tools/call.
// Upstream failures come back as an "Error: ..." result with a 200 status.
func (s *Server) runTool(c echo.Context, name string, args map[string]any) error {
	tool, ok := s.tools.Get(name)
	if !ok {
		return apiError(c, http.StatusNotFound, "Unknown tool: "+name)
	}

	input, err := json.Marshal(args)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, err.Error())
	}

	s.log.Info("REST tool call", "tool", name)
	resp, err := tool.Run(c.Request().Context(), tools.ToolCall{
		ID:    uuid.NewString(),
		Name:  name,
		Input: string(input),
	})
	if err != nil {
		var verr *tools.ValidationError
		if errors.As(err, &verr) {
			return apiError(c, http.StatusBadRequest, verr.Message)
		}
		s.log.Error("REST tool call failed", "tool", name, "error", err)
		return apiError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, apiResponse{Result: resp.Content})
}

func apiError(c echo.Context, status int, message string) error {
	return c.JSON(status, apiResponse{Error: &message})
}

// formParam returns the query or form value of name, or nil when absent.
func formParam(c echo.Context, name string) *string {
	value := c.FormValue(name)
	if _, ok := c.Request().Form[name]; !ok {
		return nil
	}
	return &value
}

func setParam(c echo.Context, args map[string]any, name, key string) {
	if value := formParam(c, name); value != nil {
		args[key] = *value
	}
}
