package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alkoleft/naparnik-mcp/internal/llm/provider"
	"github.com/alkoleft/naparnik-mcp/internal/metrics"
)

// NewCopilotTools returns the three tools backed by the upstream assistant.
func NewCopilotTools(p provider.Provider) []BaseTool {
	return []BaseTool{
		NewAskTool(p),
		NewExplainSyntaxTool(p),
		NewCheckCodeTool(p),
	}
}

// askUpstream sends prompt and turns any upstream failure into an error
// response, so only argument problems ever surface as Go errors.
func askUpstream(ctx context.Context, p provider.Provider, tool, prompt string, newSession bool) ToolResponse {
	answer, err := p.Ask(ctx, prompt, newSession)
	if err != nil {
		slog.Error("Tool call failed", "tool", tool, "error", err)
		metrics.ToolCalls.WithLabelValues(tool, "error").Inc()
		return NewTextErrorResponse("Error: " + err.Error())
	}
	metrics.ToolCalls.WithLabelValues(tool, "ok").Inc()
	return NewTextResponse(answer)
}

func invalid(tool string, err error) error {
	metrics.ToolCalls.WithLabelValues(tool, "invalid").Inc()
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &ValidationError{Message: err.Error()}
}
