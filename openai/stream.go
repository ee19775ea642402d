package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/relay"
)

const maxEventSize = 4 << 20

type streamState int

const (
	stateNew streamState = iota
	stateStreaming
	stateComplete
	stateError
	stateClosed
)

// stream implements [relay.Stream] by parsing SSE events from an HTTP
// response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	state   streamState
	err     error // terminal error, if any

	// calls is keyed by output item id. Argument events reference the item
	// id, while history and results use the call id.
	calls map[string]*callState
}

// callState tracks a function call being assembled.
type callState struct {
	callID string
	name   string
	args   strings.Builder
	done   bool
}

// Interface compliance check.
var _ relay.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &stream{
		body:    body,
		scanner: scanner,
		ctx:     ctx,
		state:   stateNew,
		calls:   make(map[string]*callState),
	}
}

// Next reads the next semantic event from the SSE stream.
// Returns io.EOF after the EventTurnCompleted event.
func (s *stream) Next() (relay.Event, error) {
	switch s.state {
	case stateComplete:
		return nil, io.EOF
	case stateError:
		return nil, s.err
	case stateClosed:
		return nil, fmt.Errorf("openai: %w", relay.ErrStreamClosed)
	}

	for {
		eventType, data, err := s.readSSEEvent()
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}

		s.state = stateStreaming

		evt, err := s.processEvent(eventType, data)
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}
		if evt != nil {
			return evt, nil
		}
	}
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != stateComplete && s.state != stateError {
		s.state = stateClosed
	}
	return s.body.Close()
}

// terminate records a terminal error.
func (s *stream) terminate(err error) {
	s.state = stateError
	switch {
	case s.ctx.Err() != nil:
		s.err = fmt.Errorf("openai: %w", s.ctx.Err())
	case err == io.EOF:
		s.err = fmt.Errorf("openai: unexpected end of stream: %w", relay.ErrProvider)
	default:
		s.err = err
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if v, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "data:"); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(v, " "))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("openai: %w: %w", relay.ErrProvider, err)
	}
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent maps an SSE event to a semantic relay.Event.
// Returns nil event for events without a semantic counterpart.
func (s *stream) processEvent(eventType, data string) (relay.Event, error) {
	if data == "[DONE]" {
		return nil, nil
	}
	if eventType == "" {
		var env sseEnvelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			return nil, fmt.Errorf("openai: failed to parse event: %w: %w", relay.ErrProvider, err)
		}
		eventType = env.Type
	}

	switch eventType {
	case "response.created":
		return s.handleCreated(data)
	case "response.output_text.delta":
		return s.handleTextDelta(data)
	case "response.output_item.added":
		return s.handleItemAdded(data)
	case "response.function_call_arguments.delta":
		return s.handleArgumentsDelta(data)
	case "response.function_call_arguments.done":
		return s.handleArgumentsDone(data)
	case "response.output_item.done":
		return s.handleItemDone(data)
	case "response.completed", "response.incomplete":
		return s.handleCompleted(data)
	case "response.failed":
		return nil, s.handleFailed(data)
	case "error":
		return nil, s.handleError(data)
	default:
		return nil, nil
	}
}

func (s *stream) handleCreated(data string) (relay.Event, error) {
	var evt sseResponse
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.created", err)
	}
	return relay.EventResponseStarted{ResponseID: evt.Response.ID}, nil
}

func (s *stream) handleTextDelta(data string) (relay.Event, error) {
	var evt sseTextDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.output_text.delta", err)
	}
	if evt.Delta == "" {
		return nil, nil
	}
	return relay.EventTextDelta{Delta: evt.Delta}, nil
}

func (s *stream) handleItemAdded(data string) (relay.Event, error) {
	var evt sseOutputItem
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.output_item.added", err)
	}
	if evt.Item.Type != "function_call" {
		return nil, nil
	}
	cs := &callState{callID: evt.Item.CallID, name: evt.Item.Name}
	if cs.callID == "" {
		cs.callID = evt.Item.ID
	}
	cs.args.WriteString(evt.Item.Arguments)
	s.calls[evt.Item.ID] = cs
	return relay.EventToolCallStarted{CallID: cs.callID, Name: cs.name}, nil
}

func (s *stream) handleArgumentsDelta(data string) (relay.Event, error) {
	var evt sseArgumentsDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.function_call_arguments.delta", err)
	}
	cs := s.calls[evt.ItemID]
	if cs == nil {
		return nil, fmt.Errorf("openai: arguments for unknown item %q: %w", evt.ItemID, relay.ErrProvider)
	}
	if cs.done {
		return nil, nil
	}
	cs.args.WriteString(evt.Delta)
	return relay.EventToolCallArgsDelta{CallID: cs.callID, Delta: evt.Delta}, nil
}

func (s *stream) handleArgumentsDone(data string) (relay.Event, error) {
	var evt sseArgumentsDone
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.function_call_arguments.done", err)
	}
	cs := s.calls[evt.ItemID]
	if cs == nil {
		return nil, fmt.Errorf("openai: arguments for unknown item %q: %w", evt.ItemID, relay.ErrProvider)
	}
	return s.freeze(cs, evt.Arguments), nil
}

func (s *stream) handleItemDone(data string) (relay.Event, error) {
	var evt sseOutputItem
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.output_item.done", err)
	}
	if evt.Item.Type != "function_call" {
		return nil, nil
	}
	cs := s.calls[evt.Item.ID]
	if cs == nil {
		// Finished item without a preceding output_item.added.
		cs = &callState{callID: evt.Item.CallID, name: evt.Item.Name}
		s.calls[evt.Item.ID] = cs
	}
	return s.freeze(cs, evt.Item.Arguments), nil
}

// freeze completes a call. final, when non-empty, is the provider's
// authoritative argument string and replaces the accumulated fragments.
func (s *stream) freeze(cs *callState, final string) relay.Event {
	if cs.done {
		return nil
	}
	cs.done = true
	args := final
	if args == "" {
		args = cs.args.String()
	}
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return relay.EventToolCallArgsDone{Call: relay.ToolCall{
		ID:        cs.callID,
		Name:      cs.name,
		Arguments: json.RawMessage(args),
	}}
}

func (s *stream) handleCompleted(data string) (relay.Event, error) {
	var evt sseResponse
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("response.completed", err)
	}
	var usage relay.Usage
	if u := evt.Response.Usage; u != nil {
		usage = relay.Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
	}
	s.state = stateComplete
	return relay.EventTurnCompleted{Usage: usage}, nil
}

func (s *stream) handleFailed(data string) error {
	var evt sseResponse
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseErr("response.failed", err)
	}
	if evt.Response.Error == nil {
		return fmt.Errorf("openai: response failed: %w", relay.ErrProvider)
	}
	return classify(evt.Response.Error.Code, evt.Response.Error.Message)
}

func (s *stream) handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseErr("error", err)
	}
	return classify(evt.Code, evt.Message)
}

func parseErr(event string, err error) error {
	return fmt.Errorf("openai: failed to parse %s: %w: %w", event, relay.ErrProvider, err)
}
