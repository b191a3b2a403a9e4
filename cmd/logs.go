package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/db"
	"github.com/alkoleft/naparnik-mcp/internal/format"
	"github.com/alkoleft/naparnik-mcp/internal/logging"
	"github.com/go-logfmt/logfmt"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show stored log records",
	Example: `  naparnik-mcp logs --limit 20
  naparnik-mcp logs --session 0b4e7a52-9a51-4bd4-b0a2-5d1f4b4f7c1d -f json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, err := format.Parse(cmd.Flag("output-format").Value.String())
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		sessionID, _ := cmd.Flags().GetString("session")

		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		conn, err := db.Connect(cmd.Context(), cfg.DataDir())
		if err != nil {
			return err
		}
		defer conn.Close()

		service := logging.NewService(db.New(conn))
		defer service.Shutdown()

		var records []logging.Log
		if sessionID != "" {
			records, err = service.ListBySession(cmd.Context(), sessionID)
		} else {
			records, err = service.ListAll(cmd.Context(), limit)
		}
		if err != nil {
			return err
		}
		return printLogs(cmd.OutOrStdout(), records, outputFormat)
	},
}

func printLogs(w io.Writer, records []logging.Log, outputFormat format.OutputFormat) error {
	if outputFormat == format.JSONFormat {
		enc := json.NewEncoder(w)
		for _, record := range records {
			if err := enc.Encode(record); err != nil {
				return err
			}
		}
		return nil
	}

	enc := logfmt.NewEncoder(w)
	for _, record := range records {
		keyvals := []any{
			"time", time.UnixMilli(record.Timestamp).Format(time.RFC3339),
			"level", record.Level,
			"msg", record.Message,
		}
		if record.SessionID != "" {
			keyvals = append(keyvals, "session_id", record.SessionID)
		}
		for _, key := range slices.Sorted(maps.Keys(record.Attributes)) {
			keyvals = append(keyvals, key, record.Attributes[key])
		}
		if err := enc.EncodeKeyvals(keyvals...); err != nil {
			return fmt.Errorf("encode log record: %w", err)
		}
		if err := enc.EndRecord(); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of records")
	logsCmd.Flags().StringP("session", "s", "", "Only records of this upstream session")
	logsCmd.Flags().StringP("output-format", "f", format.TextFormat.String(), "Output format: text or json")
	rootCmd.AddCommand(logsCmd)
}
