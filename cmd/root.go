package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/app"
	"github.com/alkoleft/naparnik-mcp/internal/config"
	"github.com/alkoleft/naparnik-mcp/internal/db"
	"github.com/alkoleft/naparnik-mcp/internal/logging"
	"github.com/alkoleft/naparnik-mcp/internal/server"
	"github.com/alkoleft/naparnik-mcp/internal/version"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "naparnik-mcp",
	Short: "MCP bridge to the 1C:Naparnik assistant",
	Long: `naparnik-mcp exposes the 1C:Naparnik AI assistant (code.1c.ai) as Model Context Protocol
tools. By default it serves MCP over HTTP together with a small REST API; use the stdio
command to run it as a subprocess of an MCP client.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("version").Changed {
			fmt.Println(version.Version)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			rt.cfg.Server.Addr = addr
		}
		return serve(ctx, rt)
	},
}

// runtime is what every command that talks to the upstream service needs.
type runtime struct {
	cfg  *config.Config
	conn *sql.DB
	app  *app.App
}

func (rt *runtime) Close() {
	rt.app.Shutdown()
	if rt.conn != nil {
		if err := rt.conn.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
}

// setup installs logging, loads the configuration, opens the database and
// builds the application.
func setup(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	handler, lvl := setupLogging(cmd)

	cfg, err := loadConfig(cmd, lvl)
	if err != nil {
		return nil, err
	}

	// Connect DB, this will also run migrations
	conn, err := db.Connect(ctx, cfg.DataDir())
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, conn, cfg, version.Version)
	if err != nil {
		conn.Close()
		slog.Error("Failed to create app", "error", err)
		return nil, err
	}
	handler.WithSessionSource(a.CurrentSessionID)

	return &runtime{cfg: cfg, conn: conn, app: a}, nil
}

// setupLogging sends slog records to the log store and, with --verbose, to
// stderr. Nothing is ever written to stdout.
func setupLogging(cmd *cobra.Command) (*logging.SessionIDHandler, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	handlers := logging.MultiHandler{
		slog.NewTextHandler(logging.NewSlogWriter(), &slog.HandlerOptions{Level: lvl}),
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		charmLogger := charmlog.NewWithOptions(newSyncWriter(os.Stderr), charmlog.Options{
			Level:           charmlog.DebugLevel,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "naparnik-mcp",
		})
		charmlog.SetDefault(charmLogger)
		handlers = append(handlers, charmLogger)
	}

	handler := logging.NewSessionIDHandler(handlers)
	slog.SetDefault(slog.New(handler))
	return handler, lvl
}

func loadConfig(cmd *cobra.Command, lvl *slog.LevelVar) (*config.Config, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return nil, fmt.Errorf("failed to change directory: %v", err)
		}
	}
	if cwd == "" {
		c, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %v", err)
		}
		cwd = c
	}
	return config.Load(cwd, debug, lvl)
}

func serve(ctx context.Context, rt *runtime) error {
	srv := server.New(rt.app.Dispatcher, rt.app.Tools, server.Options{
		Addr:              rt.cfg.Server.Addr,
		HeartbeatInterval: rt.cfg.Server.HeartbeatInterval,
		Sessions:          rt.app.Sessions,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer logging.RecoverPanic("http-server", nil)
		return srv.Start(gctx)
	})
	g.Go(func() error {
		defer logging.RecoverPanic("session-watcher", nil)
		for event := range rt.app.Sessions.Subscribe(gctx) {
			slog.Info("Upstream session changed",
				"event", event.Type,
				"session_id", event.Payload.Handle,
				"previous_session_id", event.Payload.Previous)
		}
		return nil
	})

	slog.Info("Serving MCP over HTTP", "addr", rt.cfg.Server.Addr, "version", version.Version)
	return g.Wait()
}

// syncWriter is a thread-safe writer that prevents interleaved output
type syncWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (sw *syncWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

func newSyncWriter(w io.Writer) io.Writer {
	return &syncWriter{w: w}
}

// checkStdinPipe returns piped stdin content, if any.
func checkStdinPipe() (string, bool) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", false
	}
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", false
		}
		if len(data) > 0 {
			return string(data), true
		}
	}
	return "", false
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Version")
	rootCmd.Flags().String("addr", "", "Listen address, overrides server.addr")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Display logs to stderr")
}
