package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkoleft/naparnik-mcp/internal/format"
	"github.com/alkoleft/naparnik-mcp/internal/llm/tools"
	"github.com/spf13/cobra"
)

var errUpstreamFailed = errors.New("upstream request failed")

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a single question",
	Long: `Send one question to the assistant and print the answer. The question may be given
as arguments, with --prompt, or piped on stdin.`,
	Example: `  naparnik-mcp ask "How do I iterate over a query result?"
  echo "What does ЗаписьЖурналаРегистрации do?" | naparnik-mcp ask -f json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		question, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		newSession, _ := cmd.Flags().GetBool("new-session")
		language, _ := cmd.Flags().GetString("language")
		return oneShot(cmd, tools.AskToolName, tools.AskParams{
			Question:            &question,
			ProgrammingLanguage: language,
			CreateNewSession:    newSession,
		})
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain [element]",
	Short: "Explain a 1C syntax element",
	RunE: func(cmd *cobra.Command, args []string) error {
		element, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		params := tools.ExplainSyntaxParams{SyntaxElement: &element}
		if cmd.Flags().Changed("context") {
			usage, _ := cmd.Flags().GetString("context")
			params.Context = &usage
		}
		return oneShot(cmd, tools.ExplainSyntaxToolName, params)
	},
}

var checkCmd = &cobra.Command{
	Use:     "check [code]",
	Short:   "Check 1C code for problems",
	Example: `  naparnik-mcp check --type logic < Module.bsl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		checkType, _ := cmd.Flags().GetString("type")
		return oneShot(cmd, tools.CheckCodeToolName, tools.CheckCodeParams{
			Code:      &code,
			CheckType: checkType,
		})
	},
}

// readInput takes the text from --prompt, then positional arguments, then stdin.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if prompt, _ := cmd.Flags().GetString("prompt"); prompt != "" {
		return prompt, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if piped, ok := checkStdinPipe(); ok {
		return strings.TrimRight(piped, "\n"), nil
	}
	return "", fmt.Errorf("no input: pass it as an argument, with --prompt or on stdin")
}

func oneShot(cmd *cobra.Command, toolName string, params any) error {
	outputFormat, err := format.Parse(cmd.Flag("output-format").Value.String())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	answer, err := runTool(ctx, rt.app.Tools, toolName, params)
	if err != nil {
		return err
	}
	answer.SessionID = rt.app.CurrentSessionID()

	out, err := format.FormatOutput(answer, outputFormat)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if answer.IsError {
		return errUpstreamFailed
	}
	return nil
}

// runTool invokes a registered tool once and converts its response to an answer.
func runTool(ctx context.Context, registry *tools.Registry, toolName string, params any) (format.Answer, error) {
	tool, ok := registry.Get(toolName)
	if !ok {
		return format.Answer{}, fmt.Errorf("unknown tool: %s", toolName)
	}
	input, err := json.Marshal(params)
	if err != nil {
		return format.Answer{}, err
	}

	slog.Debug("Running one-shot tool", "tool", toolName)
	resp, err := tool.Run(ctx, tools.ToolCall{Name: toolName, Input: string(input)})
	if err != nil {
		return format.Answer{}, err
	}
	return format.Answer{Response: resp.Content, IsError: resp.IsError}, nil
}

func init() {
	for _, c := range []*cobra.Command{askCmd, explainCmd, checkCmd} {
		c.Flags().StringP("prompt", "p", "", "Input text, instead of arguments or stdin")
		c.Flags().StringP("output-format", "f", format.TextFormat.String(), "Output format: text or json")
		rootCmd.AddCommand(c)
	}
	askCmd.Flags().Bool("new-session", false, "Start a new upstream conversation")
	askCmd.Flags().StringP("language", "l", "", "Programming language of the question")
	explainCmd.Flags().String("context", "", "Context the element is used in")
	checkCmd.Flags().StringP("type", "t", "syntax", "Check type: syntax, logic or performance")
}
