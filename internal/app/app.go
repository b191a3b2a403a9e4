package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/alkoleft/naparnik-mcp/internal/config"
	"github.com/alkoleft/naparnik-mcp/internal/db"
	"github.com/alkoleft/naparnik-mcp/internal/llm/provider"
	"github.com/alkoleft/naparnik-mcp/internal/llm/tools"
	"github.com/alkoleft/naparnik-mcp/internal/logging"
	"github.com/alkoleft/naparnik-mcp/internal/protocol"
	"github.com/alkoleft/naparnik-mcp/internal/session"
)

// App wires the upstream client, the shared session and the tool layer
// together for every transport.
type App struct {
	Logs       logging.Service
	Sessions   *session.Manager
	Provider   *provider.NaparnikClient
	Tools      *tools.Registry
	Dispatcher *protocol.Dispatcher
	Version    string

	store *session.BlobStore
}

type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the client used for upstream calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// New builds the application from cfg. conn may be nil, in which case logs
// are not persisted.
func New(ctx context.Context, conn *sql.DB, cfg *config.Config, version string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Version: version}

	if conn != nil {
		app.Logs = logging.NewService(db.New(conn))
		logging.InitService(app.Logs)
	}

	var store session.Store
	if cfg.Session.Persist {
		dir := filepath.Join(cfg.DataDir(), "session")
		blobStore, err := session.OpenFileStore(dir)
		if err != nil {
			slog.Error("Failed to open session store", "dir", dir, "error", err)
			return nil, err
		}
		app.store = blobStore
		store = blobStore
	}

	app.Sessions = session.NewManager(store)
	if err := app.Sessions.Restore(ctx); err != nil {
		slog.Warn("Failed to restore upstream session", "error", err)
	}

	providerOpts := []provider.NaparnikOption{
		provider.WithBaseURL(cfg.Upstream.BaseURL),
		provider.WithToken(cfg.Upstream.Token),
		provider.WithTimeout(cfg.Upstream.Timeout),
		provider.WithUILanguage(cfg.Upstream.UILanguage),
	}
	if o.httpClient != nil {
		providerOpts = append(providerOpts, provider.WithHTTPClient(o.httpClient))
	}
	app.Provider = provider.NewNaparnikClient(app.Sessions, providerOpts...)

	app.Tools = tools.NewRegistry(tools.NewCopilotTools(app.Provider)...)
	app.Dispatcher = protocol.NewDispatcher(app.Tools, version)

	slog.Debug("Application initialized", "tools", app.Tools.Names(), "persist_session", cfg.Session.Persist)
	return app, nil
}

// CurrentSessionID reports the held upstream session for log tagging.
func (app *App) CurrentSessionID() string {
	return app.Sessions.Current().String()
}

// Shutdown performs a clean shutdown of the application
func (app *App) Shutdown() {
	app.Sessions.Shutdown()
	if app.Logs != nil {
		app.Logs.Shutdown()
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			slog.Error("Failed to close session store", "error", err)
		}
	}
}
