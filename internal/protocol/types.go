// Package protocol implements the JSON-RPC method table of the MCP bridge.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ProtocolVersion = "2025-06-18"
	ServerName      = "1C Copilot MCP Server"

	MethodInitialize              = "initialize"
	MethodToolsList               = "tools/list"
	MethodToolsCall               = "tools/call"
	MethodPromptsList             = "prompts/list"
	MethodResourcesList           = "resources/list"
	MethodNotificationInitialized = "notifications/initialized"
	// Older clients send the singular form.
	methodNotificationInitializedAlias = "notification/initialized"
)

// emptyID is echoed when a request carries no id or a null one.
var emptyID = json.RawMessage(`""`)

type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the outbound envelope. At most one of Result and Error is set;
// the notification acknowledgement carries neither and no id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. Code is omitted for errors raised by tool
// execution, which only carry a message.
type Error struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

type ServerCapabilities struct {
	Tools     ToolsCapability `json:"tools"`
	Prompts   struct{}        `json:"prompts"`
	Resources struct{}        `json:"resources"`
	Logging   struct{}        `json:"logging"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

type CallToolParams struct {
	Name      json.RawMessage `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeRequest parses one request envelope. A body that is not a JSON object
// yields a parse error response instead of a request.
func DecodeRequest(data []byte) (Request, *Response) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, &Response{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      emptyID,
			Error:   &Error{Code: mcp.PARSE_ERROR, Message: "Parse error: " + err.Error()},
		}
	}
	return req, nil
}

func responseID(id json.RawMessage) json.RawMessage {
	if isNull(id) {
		return emptyID
	}
	return id
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
