package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputFormat represents the format of one-shot command output
type OutputFormat string

const (
	// TextFormat is plain text output (default)
	TextFormat OutputFormat = "text"

	// JSONFormat is output wrapped in a JSON object
	JSONFormat OutputFormat = "json"
)

// IsValid checks if the output format is valid
func (f OutputFormat) IsValid() bool {
	return f == TextFormat || f == JSONFormat
}

func (f OutputFormat) String() string {
	return string(f)
}

// Parse accepts a format name in any case.
func Parse(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format: %s", s)
	}
	return f, nil
}

// Answer is the outcome of one question to the assistant.
type Answer struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// FormatOutput renders answer in the given format. Text output is the bare response.
func FormatOutput(answer Answer, format OutputFormat) (string, error) {
	switch format {
	case TextFormat:
		return answer.Response, nil
	case JSONFormat:
		jsonBytes, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(jsonBytes), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}
