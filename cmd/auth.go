package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alkoleft/naparnik-mcp/internal/credentials"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the code.1c.ai token in the system keyring",
}

var authSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store the token",
	Long: `Store the code.1c.ai token in the system keyring. The token is read from the
argument, from piped stdin, or interactively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readToken(cmd, args)
		if err != nil {
			return err
		}
		if err := credentials.SetToken(token); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token saved")
		return nil
	},
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := credentials.DeleteToken()
		if errors.Is(err, credentials.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No token stored")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token deleted")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a token is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := credentials.HasToken()
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Token is stored in the keyring")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No token stored; set one with `naparnik-mcp auth set` or NAPARNIK_MCP_UPSTREAM_TOKEN")
		}
		return nil
	},
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if piped, ok := checkStdinPipe(); ok {
		return strings.TrimSpace(piped), nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Token: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	authCmd.AddCommand(authSetCmd, authDeleteCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
