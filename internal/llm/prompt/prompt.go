// Package prompt builds the instructions sent upstream for each copilot tool.
package prompt

import (
	"fmt"
	"strings"
)

const (
	CheckSyntax      = "syntax"
	CheckLogic       = "logic"
	CheckPerformance = "performance"
)

var checkDescriptions = map[string]string{
	CheckSyntax:      "syntax errors",
	CheckLogic:       "logic errors and potential issues",
	CheckPerformance: "performance and optimization issues",
}

// Ask returns the question unchanged. The programming language is accepted by
// the tool but not folded into the instruction.
func Ask(question string) string {
	return question
}

// ExplainSyntax appends the usage context whenever one is given, even an empty one.
func ExplainSyntax(syntaxElement string, context *string) string {
	prompt := "Explain syntax and usage: " + syntaxElement
	if context != nil {
		prompt += " in context: " + *context
	}
	return prompt
}

// CheckDescription maps a check type to the phrase used in the instruction.
// Unknown types fall back to a generic description.
func CheckDescription(checkType string) string {
	if desc, ok := checkDescriptions[strings.ToLower(checkType)]; ok {
		return desc
	}
	return "errors"
}

func CheckCode(code, checkType string) string {
	return fmt.Sprintf("Check this 1C code for %s and give recommendations:\n\n```1c\n%s\n```", CheckDescription(checkType), code)
}
