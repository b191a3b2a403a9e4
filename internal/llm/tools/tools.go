package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
}

// MCPTool converts the description into the schema advertised by tools/list.
func (i ToolInfo) MCPTool() mcp.Tool {
	properties := i.Parameters
	if properties == nil {
		properties = map[string]any{}
	}
	return mcp.Tool{
		Name:        i.Name,
		Description: i.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   i.Required,
		},
	}
}

type toolResponseType string

const (
	ToolResponseTypeText toolResponseType = "text"
)

type ToolResponse struct {
	Type     toolResponseType `json:"type"`
	Content  string           `json:"content"`
	Metadata string           `json:"metadata,omitempty"`
	IsError  bool             `json:"is_error"`
}

func NewTextResponse(content string) ToolResponse {
	return ToolResponse{
		Type:    ToolResponseTypeText,
		Content: content,
	}
}

func WithResponseMetadata(response ToolResponse, metadata any) ToolResponse {
	if metadata != nil {
		metadataBytes, err := json.Marshal(metadata)
		if err != nil {
			return response
		}
		response.Metadata = string(metadataBytes)
	}
	return response
}

func NewTextErrorResponse(content string) ToolResponse {
	return ToolResponse{
		Type:    ToolResponseTypeText,
		Content: content,
		IsError: true,
	}
}

type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

type BaseTool interface {
	Info() ToolInfo
	Run(ctx context.Context, params ToolCall) (ToolResponse, error)
}

// ValidationError rejects a call before anything is sent upstream.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// decodeInput unmarshals the raw arguments of a call. Empty or null input
// decodes to the zero value so required-field checks report the missing field.
func decodeInput(input string, v any) error {
	if input == "" || input == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return NewValidationError("Invalid arguments: %s", err)
	}
	return nil
}

// Registry holds the tools exposed over MCP, keyed by name.
type Registry struct {
	tools map[string]BaseTool
	order []string
}

func NewRegistry(tools ...BaseTool) *Registry {
	r := &Registry{tools: make(map[string]BaseTool, len(tools))}
	for _, t := range tools {
		name := t.Info().Name
		if _, ok := r.tools[name]; !ok {
			r.order = append(r.order, name)
		}
		r.tools[name] = t
	}
	return r
}

func (r *Registry) Get(name string) (BaseTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []BaseTool {
	list := make([]BaseTool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
