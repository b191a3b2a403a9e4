package tools

import (
	"context"

	"github.com/alkoleft/naparnik-mcp/internal/llm/prompt"
	"github.com/alkoleft/naparnik-mcp/internal/llm/provider"
)

type ExplainSyntaxParams struct {
	SyntaxElement *string `json:"syntax_element"`
	Context       *string `json:"context"`
}

type explainSyntaxTool struct {
	provider provider.Provider
}

const (
	ExplainSyntaxToolName        = "explain_1c_syntax"
	ExplainSyntaxToolDescription = "Explain 1C syntax"
)

func NewExplainSyntaxTool(p provider.Provider) BaseTool {
	return &explainSyntaxTool{provider: p}
}

func (t *explainSyntaxTool) Info() ToolInfo {
	return ToolInfo{
		Name:        ExplainSyntaxToolName,
		Description: ExplainSyntaxToolDescription,
		Parameters: map[string]any{
			"syntax_element": map[string]any{
				"type":        "string",
				"description": "Syntax element to explain",
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Usage context (optional)",
			},
		},
		Required: []string{"syntax_element"},
	}
}

func (t *explainSyntaxTool) Run(ctx context.Context, call ToolCall) (ToolResponse, error) {
	var params ExplainSyntaxParams
	if err := decodeInput(call.Input, &params); err != nil {
		return ToolResponse{}, invalid(ExplainSyntaxToolName, err)
	}
	if params.SyntaxElement == nil {
		return ToolResponse{}, invalid(ExplainSyntaxToolName, NewValidationError("No syntax element"))
	}

	return askUpstream(ctx, t.provider, ExplainSyntaxToolName, prompt.ExplainSyntax(*params.SyntaxElement, params.Context), false), nil
}
