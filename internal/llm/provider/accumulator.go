package provider

import (
	"iter"
	"strings"
	"unicode/utf8"
)

const roleAssistant = "assistant"

// NoResponse is returned instead of an empty answer so callers can tell an
// upstream that said nothing apart from a transport failure.
const NoResponse = "Error: no response received from 1C:Naparnik"

// Accumulator folds stream events into a single answer. Deltas append; a
// full-text payload replaces the running text when it is longer.
type Accumulator struct {
	text strings.Builder
	done bool
}

// Add applies one event and reports whether more events are wanted.
func (a *Accumulator) Add(event Event) bool {
	if a.done {
		return false
	}

	if delta := event.ContentDelta.Value(); delta != "" {
		a.text.WriteString(delta)
	}

	if full := event.Content.Value(); utf8.RuneCountInString(full) > utf8.RuneCountInString(a.text.String()) {
		a.text.Reset()
		a.text.WriteString(full)
	}

	if event.Finished && (event.Role == roleAssistant || a.text.Len() > 0) {
		a.done = true
	}
	return !a.done
}

// Done reports whether a completion event has been seen.
func (a *Accumulator) Done() bool {
	return a.done
}

// Text returns the raw accumulated text.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Result returns the answer, or NoResponse when nothing was accumulated.
func (a *Accumulator) Result() string {
	if a.text.Len() == 0 {
		return NoResponse
	}
	return a.text.String()
}

// Accumulate consumes events until completion or the end of the sequence.
func Accumulate(events iter.Seq[Event]) string {
	var acc Accumulator
	for event := range events {
		if !acc.Add(event) {
			break
		}
	}
	return acc.Result()
}
