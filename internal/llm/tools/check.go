package tools

import (
	"context"

	"github.com/alkoleft/naparnik-mcp/internal/llm/prompt"
	"github.com/alkoleft/naparnik-mcp/internal/llm/provider"
)

type CheckCodeParams struct {
	Code      *string `json:"code"`
	CheckType string  `json:"check_type"`
}

type checkCodeTool struct {
	provider provider.Provider
}

const (
	CheckCodeToolName        = "check_1c_code"
	CheckCodeToolDescription = "Check 1C code for errors"
)

func NewCheckCodeTool(p provider.Provider) BaseTool {
	return &checkCodeTool{provider: p}
}

func (t *checkCodeTool) Info() ToolInfo {
	return ToolInfo{
		Name:        CheckCodeToolName,
		Description: CheckCodeToolDescription,
		Parameters: map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "1C code to check",
			},
			"check_type": map[string]any{
				"type":        "string",
				"description": "Check type: syntax, logic, performance",
				"default":     prompt.CheckSyntax,
			},
		},
		Required: []string{"code"},
	}
}

func (t *checkCodeTool) Run(ctx context.Context, call ToolCall) (ToolResponse, error) {
	params := CheckCodeParams{CheckType: prompt.CheckSyntax}
	if err := decodeInput(call.Input, &params); err != nil {
		return ToolResponse{}, invalid(CheckCodeToolName, err)
	}
	if params.Code == nil {
		return ToolResponse{}, invalid(CheckCodeToolName, NewValidationError("No code"))
	}

	return askUpstream(ctx, t.provider, CheckCodeToolName, prompt.CheckCode(*params.Code, params.CheckType), false), nil
}
