package provider

import (
	"errors"
	"fmt"
)

// ErrUpstreamTimeout is returned when an upstream call exceeds the configured timeout.
var ErrUpstreamTimeout = errors.New("upstream request timed out")

// SessionCreationError reports a failed session-create call.
type SessionCreationError struct {
	Status int
	Reason string
	Err    error
}

func (e *SessionCreationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("failed to create session: %v", e.Err)
	case e.Status != 0:
		return fmt.Sprintf("failed to create session: status %d: %s", e.Status, e.Reason)
	default:
		return fmt.Sprintf("failed to create session: %s", e.Reason)
	}
}

func (e *SessionCreationError) Unwrap() error {
	return e.Err
}

// UpstreamHTTPError reports a non-200 response to a message send. Excerpt
// holds at most maxExcerptSize bytes of the body.
type UpstreamHTTPError struct {
	Status  int
	Excerpt string
}

func (e *UpstreamHTTPError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Excerpt)
}
