package provider

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/alkoleft/naparnik-mcp/internal/metrics"
)

const (
	dataPrefix = "data: "

	// maxLineSize bounds a single SSE line; full-text resends can be large.
	maxLineSize = 1 << 20
)

// Event is one decoded "data:" line of the upstream stream.
type Event struct {
	Role         string        `json:"role"`
	Content      *EventContent `json:"content"`
	ContentDelta *EventContent `json:"content_delta"`
	Finished     bool          `json:"finished"`
}

// EventContent carries turn text. Full-turn payloads use "content"; older
// upstream builds sent "text" instead.
type EventContent struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

// Value returns the carried text, preferring "content" over "text".
func (c *EventContent) Value() string {
	if c == nil {
		return ""
	}
	if c.Content != "" {
		return c.Content
	}
	return c.Text
}

func (c *EventContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Content)
	}
	type plain EventContent
	return json.Unmarshal(data, (*plain)(c))
}

// ParseEvents decodes a complete text/event-stream body. The returned
// sequence is lazy and can be ranged over any number of times.
func ParseEvents(body string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for line := range strings.Lines(body) {
			event, ok := decodeLine(strings.TrimRight(line, "\r\n"))
			if !ok {
				continue
			}
			if !yield(event) {
				return
			}
		}
	}
}

// EventReader decodes events incrementally from a response body so the caller
// can stop reading as soon as the answer is complete.
type EventReader struct {
	scanner *bufio.Scanner
}

func NewEventReader(r io.Reader) *EventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &EventReader{scanner: scanner}
}

// Events yields events until the body ends, a read fails, or the consumer stops.
func (r *EventReader) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for r.scanner.Scan() {
			event, ok := decodeLine(strings.TrimRight(r.scanner.Text(), "\r"))
			if !ok {
				continue
			}
			if !yield(event) {
				return
			}
		}
	}
}

// Err reports the first non-EOF read error.
func (r *EventReader) Err() error {
	return r.scanner.Err()
}

func decodeLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return Event{}, false
	}
	payload := strings.TrimPrefix(line, dataPrefix)

	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		metrics.StreamParseErrors.Inc()
		slog.Warn("Skipping malformed SSE chunk", "error", err, "chunk", truncate(payload, 200))
		return Event{}, false
	}
	return event, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
