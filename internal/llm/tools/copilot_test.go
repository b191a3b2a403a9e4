package tools

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alkoleft/naparnik-mcp/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider records every question it is asked.
type mockProvider struct {
	mu        sync.Mutex
	questions []string
	forced    []bool
	answer    string
	err       error
}

func (m *mockProvider) EnsureSession(ctx context.Context, forceNew bool) (session.Handle, error) {
	return "mock-session", nil
}

func (m *mockProvider) Ask(ctx context.Context, question string, newSession bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, question)
	m.forced = append(m.forced, newSession)
	return m.answer, m.err
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.questions)
}

func TestCopilotTools(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		tool         func(p *mockProvider) BaseTool
		input        string
		wantQuestion string
		wantForced   bool
	}{
		{
			name:         "ask forwards question verbatim",
			tool:         func(p *mockProvider) BaseTool { return NewAskTool(p) },
			input:        `{"question":"Как создать справочник?","programming_language":"bsl"}`,
			wantQuestion: "Как создать справочник?",
		},
		{
			name:         "ask with new session",
			tool:         func(p *mockProvider) BaseTool { return NewAskTool(p) },
			input:        `{"question":"q","create_new_session":true}`,
			wantQuestion: "q",
			wantForced:   true,
		},
		{
			name:         "ask accepts empty question",
			tool:         func(p *mockProvider) BaseTool { return NewAskTool(p) },
			input:        `{"question":""}`,
			wantQuestion: "",
		},
		{
			name:         "explain without context",
			tool:         func(p *mockProvider) BaseTool { return NewExplainSyntaxTool(p) },
			input:        `{"syntax_element":"Запрос"}`,
			wantQuestion: "Explain syntax and usage: Запрос",
		},
		{
			name:         "explain with context",
			tool:         func(p *mockProvider) BaseTool { return NewExplainSyntaxTool(p) },
			input:        `{"syntax_element":"Запрос","context":"регистры"}`,
			wantQuestion: "Explain syntax and usage: Запрос in context: регистры",
		},
		{
			name:         "explain keeps empty context",
			tool:         func(p *mockProvider) BaseTool { return NewExplainSyntaxTool(p) },
			input:        `{"syntax_element":"Запрос","context":""}`,
			wantQuestion: "Explain syntax and usage: Запрос in context: ",
		},
		{
			name:         "explain with null context",
			tool:         func(p *mockProvider) BaseTool { return NewExplainSyntaxTool(p) },
			input:        `{"syntax_element":"Запрос","context":null}`,
			wantQuestion: "Explain syntax and usage: Запрос",
		},
		{
			name:         "check defaults to syntax",
			tool:         func(p *mockProvider) BaseTool { return NewCheckCodeTool(p) },
			input:        `{"code":"X=1"}`,
			wantQuestion: "Check this 1C code for syntax errors and give recommendations:\n\n```1c\nX=1\n```",
		},
		{
			name:         "check type is case insensitive",
			tool:         func(p *mockProvider) BaseTool { return NewCheckCodeTool(p) },
			input:        `{"code":"X=1","check_type":"PERFORMANCE"}`,
			wantQuestion: "Check this 1C code for performance and optimization issues and give recommendations:\n\n```1c\nX=1\n```",
		},
		{
			name:         "check unknown type",
			tool:         func(p *mockProvider) BaseTool { return NewCheckCodeTool(p) },
			input:        `{"code":"X=1","check_type":"style"}`,
			wantQuestion: "Check this 1C code for errors and give recommendations:\n\n```1c\nX=1\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mockProvider{answer: "answer"}

			resp, err := tt.tool(p).Run(t.Context(), ToolCall{Input: tt.input})
			require.NoError(t, err)
			assert.Equal(t, "answer", resp.Content)
			assert.False(t, resp.IsError)
			require.Equal(t, []string{tt.wantQuestion}, p.questions)
			assert.Equal(t, []bool{tt.wantForced}, p.forced)
		})
	}
}

func TestCopilotToolsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tool    func(p *mockProvider) BaseTool
		input   string
		wantMsg string
	}{
		{"ask without question", func(p *mockProvider) BaseTool { return NewAskTool(p) }, `{}`, "No question"},
		{"ask with null question", func(p *mockProvider) BaseTool { return NewAskTool(p) }, `{"question":null}`, "No question"},
		{"ask without arguments", func(p *mockProvider) BaseTool { return NewAskTool(p) }, ``, "No question"},
		{"explain without element", func(p *mockProvider) BaseTool { return NewExplainSyntaxTool(p) }, `{"context":"x"}`, "No syntax element"},
		{"check without code", func(p *mockProvider) BaseTool { return NewCheckCodeTool(p) }, `null`, "No code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mockProvider{}

			_, err := tt.tool(p).Run(t.Context(), ToolCall{Input: tt.input})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantMsg, verr.Message)
			assert.Zero(t, p.calls(), "nothing must be sent upstream")
		})
	}

	t.Run("mismatched type", func(t *testing.T) {
		t.Parallel()
		p := &mockProvider{}

		_, err := NewAskTool(p).Run(t.Context(), ToolCall{Input: `{"question":42}`})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "Invalid arguments")
		assert.Zero(t, p.calls())
	})
}

func TestCopilotToolsUpstreamFailure(t *testing.T) {
	t.Parallel()
	p := &mockProvider{err: errors.New("upstream returned HTTP 500")}

	for _, tool := range NewCopilotTools(p) {
		t.Run(tool.Info().Name, func(t *testing.T) {
			input := map[string]string{
				AskToolName:           `{"question":"q"}`,
				ExplainSyntaxToolName: `{"syntax_element":"e"}`,
				CheckCodeToolName:     `{"code":"c"}`,
			}[tool.Info().Name]

			resp, err := tool.Run(t.Context(), ToolCall{Input: input})
			require.NoError(t, err)
			assert.True(t, resp.IsError)
			assert.Equal(t, "Error: upstream returned HTTP 500", resp.Content)
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(NewCopilotTools(&mockProvider{})...)

	var names []string
	for _, tool := range registry.List() {
		names = append(names, tool.Info().Name)
	}
	assert.Equal(t, []string{AskToolName, ExplainSyntaxToolName, CheckCodeToolName}, names)

	_, ok := registry.Get("missing")
	assert.False(t, ok)

	tool, ok := registry.Get(CheckCodeToolName)
	require.True(t, ok)
	schema := tool.Info().MCPTool()
	assert.Equal(t, "object", schema.InputSchema.Type)
	assert.Equal(t, []string{"code"}, schema.InputSchema.Required)
	assert.Contains(t, schema.InputSchema.Properties, "check_type")
}
