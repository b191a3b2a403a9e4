package tools

import (
	"context"

	"github.com/alkoleft/naparnik-mcp/internal/llm/prompt"
	"github.com/alkoleft/naparnik-mcp/internal/llm/provider"
)

type AskParams struct {
	Question            *string `json:"question"`
	ProgrammingLanguage string  `json:"programming_language"`
	CreateNewSession    bool    `json:"create_new_session"`
}

type askTool struct {
	provider provider.Provider
}

const (
	AskToolName        = "ask_1c_ai"
	AskToolDescription = "Ask question to 1C:Assistant AI"
)

func NewAskTool(p provider.Provider) BaseTool {
	return &askTool{provider: p}
}

func (t *askTool) Info() ToolInfo {
	return ToolInfo{
		Name:        AskToolName,
		Description: AskToolDescription,
		Parameters: map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "Question for 1C:Assistant AI",
			},
			"programming_language": map[string]any{
				"type":        "string",
				"description": "Programming language (optional)",
			},
			"create_new_session": map[string]any{
				"type":        "boolean",
				"description": "Create new session",
				"default":     false,
			},
		},
		Required: []string{"question"},
	}
}

func (t *askTool) Run(ctx context.Context, call ToolCall) (ToolResponse, error) {
	var params AskParams
	if err := decodeInput(call.Input, &params); err != nil {
		return ToolResponse{}, invalid(AskToolName, err)
	}
	if params.Question == nil {
		return ToolResponse{}, invalid(AskToolName, NewValidationError("No question"))
	}

	return askUpstream(ctx, t.provider, AskToolName, prompt.Ask(*params.Question), params.CreateNewSession), nil
}
