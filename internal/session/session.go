// Package session owns the single upstream conversation handle shared by all
// requests: a lock-guarded get-or-create holder with optional persistence.
package session

import (
	"time"

	"github.com/alkoleft/naparnik-mcp/internal/pubsub"
)

// Handle is the opaque conversation identifier assigned by the upstream service.
type Handle string

func (h Handle) String() string {
	return string(h)
}

// Event describes a change of the held handle.
type Event struct {
	Handle    Handle    `json:"session_id"`
	Previous  Handle    `json:"previous_session_id,omitempty"`
	Forced    bool      `json:"forced"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	EventSessionCreated  pubsub.EventType = "session_created"
	EventSessionRestored pubsub.EventType = "session_restored"
)
