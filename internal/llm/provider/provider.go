// Package provider talks to the upstream 1C:Naparnik conversation API.
package provider

import (
	"context"

	"github.com/alkoleft/naparnik-mcp/internal/session"
)

// Provider is the upstream conversation service as seen by the tool layer.
type Provider interface {
	EnsureSession(ctx context.Context, forceNew bool) (session.Handle, error)
	Ask(ctx context.Context, question string, newSession bool) (string, error)
}

var _ Provider = (*NaparnikClient)(nil)
