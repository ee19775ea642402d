package relay

import "encoding/json"

// Event is a sealed interface representing a transient streaming event.
// Events are never persisted. Transport and protocol errors come from
// Stream.Next's error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventResponseStarted carries the provider's id for the response being
// streamed. It doubles as the continuation token for the next request.
type EventResponseStarted struct {
	ResponseID string
}

func (EventResponseStarted) event() {}

// EventTextDelta represents a text content delta.
type EventTextDelta struct {
	Delta string
}

func (EventTextDelta) event() {}

// EventToolCallStarted signals the start of a tool call.
type EventToolCallStarted struct {
	CallID string
	Name   string
}

func (EventToolCallStarted) event() {}

// EventToolCallArgsDelta represents an argument fragment for a tool call.
type EventToolCallArgsDelta struct {
	CallID string
	Delta  string
}

func (EventToolCallArgsDelta) event() {}

// EventToolCallArgsDone signals that a tool call's arguments are frozen. Call
// holds the assembled call.
type EventToolCallArgsDone struct {
	Call ToolCall
}

func (EventToolCallArgsDone) event() {}

// EventTurnCompleted signals the provider finished the response.
type EventTurnCompleted struct {
	Usage Usage
}

func (EventTurnCompleted) event() {}

// EventToolResult is emitted by the orchestrator, not by providers, after a
// tool call has been dispatched and its result appended to the history.
type EventToolResult struct {
	CallID  string
	Name    string
	Output  json.RawMessage
	IsError bool
}

func (EventToolResult) event() {}

// Interface compliance checks.
var (
	_ Event = EventResponseStarted{}
	_ Event = EventTextDelta{}
	_ Event = EventToolCallStarted{}
	_ Event = EventToolCallArgsDelta{}
	_ Event = EventToolCallArgsDone{}
	_ Event = EventTurnCompleted{}
	_ Event = EventToolResult{}
)
