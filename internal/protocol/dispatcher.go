package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/alkoleft/naparnik-mcp/internal/llm/tools"
	"github.com/alkoleft/naparnik-mcp/internal/metrics"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// Dispatcher routes decoded requests to their handlers. It keeps no state
// between calls; the upstream session lives behind the tools.
type Dispatcher struct {
	tools   *tools.Registry
	version string
	log     *slog.Logger
}

func NewDispatcher(registry *tools.Registry, version string) *Dispatcher {
	return &Dispatcher{
		tools:   registry,
		version: version,
		log:     slog.With("service", "dispatcher"),
	}
}

// Handle always returns a well-formed envelope.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	var resp Response
	switch req.Method {
	case MethodInitialize:
		resp = d.result(req, d.initialize())
	case MethodToolsList:
		resp = d.result(req, d.listTools())
	case MethodToolsCall:
		resp = d.callTool(ctx, req)
	case MethodPromptsList:
		resp = d.result(req, mcp.ListPromptsResult{Prompts: []mcp.Prompt{}})
	case MethodResourcesList:
		resp = d.result(req, mcp.ListResourcesResult{Resources: []mcp.Resource{}})
	case MethodNotificationInitialized, methodNotificationInitializedAlias:
		resp = Response{JSONRPC: mcp.JSONRPC_VERSION}
	default:
		d.log.Warn("Unknown method", "method", req.Method)
		resp = d.fail(req, &Error{Code: mcp.METHOD_NOT_FOUND, Message: "Method not found: " + req.Method})
	}

	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	metrics.RPCRequests.WithLabelValues(metricMethod(req.Method), outcome).Inc()
	return resp
}

func (d *Dispatcher) initialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: ToolsCapability{ListChanged: true},
		},
		ServerInfo: mcp.Implementation{
			Name:    ServerName,
			Version: d.version,
		},
	}
}

func (d *Dispatcher) listTools() mcp.ListToolsResult {
	list := d.tools.List()
	result := mcp.ListToolsResult{Tools: make([]mcp.Tool, 0, len(list))}
	for _, t := range list {
		result.Tools = append(result.Tools, t.Info().MCPTool())
	}
	return result
}

func (d *Dispatcher) callTool(ctx context.Context, req Request) Response {
	if !isObject(req.Params) {
		return d.invalidParams(req, "No params")
	}
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return d.invalidParams(req, "No params")
	}
	var name string
	if isNull(params.Name) || json.Unmarshal(params.Name, &name) != nil {
		return d.invalidParams(req, "No tool name")
	}

	tool, ok := d.tools.Get(name)
	if !ok {
		d.log.Warn("Unknown tool", "tool", name)
		return d.result(req, mcp.NewToolResultText("Unknown tool: "+name))
	}

	arguments := "{}"
	if isObject(params.Arguments) {
		arguments = string(params.Arguments)
	}

	call := tools.ToolCall{
		ID:    uuid.NewString(),
		Name:  name,
		Input: arguments,
	}
	d.log.Debug("Calling tool", "tool", name, "call_id", call.ID)

	resp, err := tool.Run(ctx, call)
	if err != nil {
		var verr *tools.ValidationError
		if errors.As(err, &verr) {
			return d.invalidParams(req, verr.Message)
		}
		d.log.Error("Error handling tool call", "tool", name, "error", err)
		return d.fail(req, &Error{Message: err.Error()})
	}

	result := mcp.NewToolResultText(resp.Content)
	result.IsError = resp.IsError
	return d.result(req, result)
}

func (d *Dispatcher) result(req Request, result any) Response {
	return Response{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      responseID(req.ID),
		Result:  result,
	}
}

func (d *Dispatcher) fail(req Request, err *Error) Response {
	return Response{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      responseID(req.ID),
		Error:   err,
	}
}

func (d *Dispatcher) invalidParams(req Request, message string) Response {
	d.log.Warn("Rejected tool call", "reason", message)
	return d.fail(req, &Error{Code: mcp.INVALID_PARAMS, Message: message})
}

// metricMethod bounds label cardinality to the known method table.
func metricMethod(method string) string {
	switch method {
	case MethodInitialize, MethodToolsList, MethodToolsCall, MethodPromptsList,
		MethodResourcesList, MethodNotificationInitialized, methodNotificationInitializedAlias:
		return method
	}
	return "unknown"
}
