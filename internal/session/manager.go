package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/pubsub"
)

// Creator performs the upstream session-create call.
type Creator func(ctx context.Context) (Handle, error)

// Manager tracks the currently active upstream session. The read-or-create
// step holds a one-slot lock, so at most one create call is in flight and all
// concurrent callers converge on the same handle. Reads of the handle never
// wait for that lock.
type Manager struct {
	current Handle
	mu      sync.RWMutex
	lock    chan struct{}
	store   Store
	broker  *pubsub.Broker[Event]
	log     *slog.Logger
}

// NewManager returns an empty manager. store may be nil.
func NewManager(store Store) *Manager {
	return &Manager{
		lock:   make(chan struct{}, 1),
		store:  store,
		broker: pubsub.NewBroker[Event](),
		log:    slog.With("service", "session"),
	}
}

// Restore loads a previously persisted handle, if any. It is a no-op without a store.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	handle, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return fmt.Errorf("restore session: %w", err)
	}

	m.set(handle)

	m.log.Info("Restored upstream session", "session_id", handle)
	m.broker.Publish(EventSessionRestored, Event{Handle: handle, CreatedAt: time.Now()})
	return nil
}

// Current returns the held handle, or "" when none exists yet.
func (m *Manager) Current() Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) set(handle Handle) {
	m.mu.Lock()
	m.current = handle
	m.mu.Unlock()
}

// Ensure returns the held handle unless there is none or forceNew is set, in
// which case create is called and its result stored. A failed create leaves
// the held handle untouched. A caller waiting behind another create gives up
// with ctx.Err() once ctx is done.
func (m *Manager) Ensure(ctx context.Context, forceNew bool, create Creator) (Handle, error) {
	select {
	case m.lock <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-m.lock }()

	previous := m.Current()
	if previous != "" && !forceNew {
		m.log.Debug("Reusing upstream session", "session_id", previous)
		return previous, nil
	}

	handle, err := create(ctx)
	if err != nil {
		return "", err
	}
	if handle == "" {
		return "", errors.New("session creator returned an empty handle")
	}

	m.set(handle)
	m.log.Info("Created upstream session", "session_id", handle, "previous_session_id", previous, "forced", forceNew)

	if m.store != nil {
		if err := m.store.Save(ctx, handle); err != nil {
			m.log.Warn("Failed to persist upstream session", "session_id", handle, "error", err)
		}
	}

	m.broker.Publish(EventSessionCreated, Event{
		Handle:    handle,
		Previous:  previous,
		Forced:    forceNew,
		CreatedAt: time.Now(),
	})
	return handle, nil
}

func (m *Manager) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return m.broker.Subscribe(ctx)
}

// Shutdown closes all subscriptions.
func (m *Manager) Shutdown() {
	m.broker.Shutdown()
}
