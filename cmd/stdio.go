package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alkoleft/naparnik-mcp/internal/logging"
	"github.com/alkoleft/naparnik-mcp/internal/protocol"
	"github.com/spf13/cobra"
)

const maxStdioMessageSize = 4 * 1024 * 1024

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout",
	Long: `Run the bridge as a subprocess of an MCP client. Newline-delimited JSON-RPC requests
are read from stdin and responses written to stdout; logs go to the log store and, with
--verbose, to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		slog.Info("Serving MCP over stdio", "version", rt.app.Version)
		return serveStdio(ctx, rt.app.Dispatcher, os.Stdin, os.Stdout)
	},
}

// serveStdio feeds each stdin line to the dispatcher and writes one response
// line per request. Requests run concurrently; serveStdio returns at EOF once
// in-flight requests have been answered, or when ctx is done.
func serveStdio(ctx context.Context, dispatcher *protocol.Dispatcher, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(newSyncWriter(out))

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxStdioMessageSize)
		for scanner.Scan() {
			select {
			case lines <- bytes.Clone(scanner.Bytes()):
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer logging.RecoverPanic("stdio-request", nil)

				resp, ok := handleStdioMessage(ctx, dispatcher, line)
				if !ok {
					return
				}
				if err := enc.Encode(resp); err != nil {
					slog.Error("Failed to write stdio response", "error", err)
				}
			}()
		}
	}
}

// handleStdioMessage reports false for the notification acknowledgement, which
// is not written back over stdio.
func handleStdioMessage(ctx context.Context, dispatcher *protocol.Dispatcher, line []byte) (protocol.Response, bool) {
	req, errResp := protocol.DecodeRequest(line)
	if errResp != nil {
		return *errResp, true
	}
	resp := dispatcher.Handle(ctx, req)
	if resp.Result == nil && resp.Error == nil {
		return resp, false
	}
	return resp, true
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}
