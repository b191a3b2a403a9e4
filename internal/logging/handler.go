package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// SessionIDHandler tags records with the upstream session that was active
// when they were emitted. Handlers derived through WithAttrs and WithGroup
// share the session source, so loggers created before it is installed are
// tagged too.
type SessionIDHandler struct {
	slog.Handler
	source *atomic.Pointer[func() string]
}

func NewSessionIDHandler(h slog.Handler) *SessionIDHandler {
	return &SessionIDHandler{Handler: h, source: new(atomic.Pointer[func() string])}
}

func (h *SessionIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if current := h.source.Load(); current != nil && !hasAttr(r, "session_id") {
		if sessionID := (*current)(); sessionID != "" {
			r.AddAttrs(slog.String("session_id", sessionID))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *SessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionIDHandler{Handler: h.Handler.WithAttrs(attrs), source: h.source}
}

func (h *SessionIDHandler) WithGroup(name string) slog.Handler {
	return &SessionIDHandler{Handler: h.Handler.WithGroup(name), source: h.source}
}

// WithSessionSource installs the lookup used for untagged records. current
// must not block on anything held while logging.
func (h *SessionIDHandler) WithSessionSource(current func() string) *SessionIDHandler {
	h.source.Store(&current)
	return h
}

func hasAttr(r slog.Record, key string) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}

// MultiHandler fans every record out to all handlers that accept its level.
type MultiHandler []slog.Handler

func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(MultiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make(MultiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
