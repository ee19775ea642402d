package anthropic

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

// stream implements [relay.Stream] by parsing SSE events from an HTTP response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	state   streamState
	blocks  map[int]*blockState
	usage   relay.Usage
	err     error // terminal error, if any
}

// blockState tracks a content block being assembled.
type blockState struct {
	blockType string
	toolID    string
	toolName  string
	inputBuf  strings.Builder
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
		blocks:  make(map[int]*blockState),
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
		return nil, fmt.Errorf("anthropic: %w", relay.ErrStreamClosed)
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
		// Non-semantic event (ping, message_delta, etc.) - keep reading.
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
		s.err = fmt.Errorf("anthropic: %w", s.ctx.Err())
	case err == io.EOF:
		// message_stop completes the stream before the body ends.
		s.err = fmt.Errorf("anthropic: unexpected end of stream: %w", relay.ErrProvider)
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
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: %w: %w", relay.ErrProvider, err)
	}
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent maps an SSE event to a semantic relay.Event.
// Returns nil event for non-semantic events.
func (s *stream) processEvent(eventType, data string) (relay.Event, error) {
	switch eventType {
	case "message_start":
		return s.handleMessageStart(data)
	case "content_block_start":
		return s.handleContentBlockStart(data)
	case "content_block_delta":
		return s.handleContentBlockDelta(data)
	case "content_block_stop":
		return s.handleContentBlockStop(data)
	case "message_delta":
		return nil, s.handleMessageDelta(data)
	case "message_stop":
		s.state = stateComplete
		return relay.EventTurnCompleted{Usage: s.usage}, nil
	case "error":
		return nil, s.handleError(data)
	default:
		// ping and unknown event types are ignored per the API docs.
		return nil, nil
	}
}

func (s *stream) handleMessageStart(data string) (relay.Event, error) {
	var evt sseMessageStart
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("message_start", err)
	}
	s.usage.InputTokens = max(evt.Message.Usage.InputTokens, 0)
	if evt.Message.ID == "" {
		return nil, nil
	}
	return relay.EventResponseStarted{ResponseID: evt.Message.ID}, nil
}

func (s *stream) handleContentBlockStart(data string) (relay.Event, error) {
	var evt sseContentBlockStart
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("content_block_start", err)
	}

	bs := &blockState{blockType: evt.ContentBlock.Type}
	s.blocks[evt.Index] = bs

	if evt.ContentBlock.Type != "tool_use" {
		return nil, nil
	}
	bs.toolID = evt.ContentBlock.ID
	bs.toolName = evt.ContentBlock.Name
	return relay.EventToolCallStarted{CallID: bs.toolID, Name: bs.toolName}, nil
}

func (s *stream) handleContentBlockDelta(data string) (relay.Event, error) {
	var evt sseContentBlockDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("content_block_delta", err)
	}

	bs := s.blocks[evt.Index]
	if bs == nil {
		return nil, fmt.Errorf("anthropic: delta for unknown block index %d: %w", evt.Index, relay.ErrProvider)
	}

	switch evt.Delta.Type {
	case "text_delta":
		if evt.Delta.Text == "" {
			return nil, nil
		}
		return relay.EventTextDelta{Delta: evt.Delta.Text}, nil
	case "input_json_delta":
		if evt.Delta.PartialJSON == "" {
			return nil, nil
		}
		bs.inputBuf.WriteString(evt.Delta.PartialJSON)
		return relay.EventToolCallArgsDelta{CallID: bs.toolID, Delta: evt.Delta.PartialJSON}, nil
	default:
		// thinking and signature deltas are not surfaced.
		return nil, nil
	}
}

func (s *stream) handleContentBlockStop(data string) (relay.Event, error) {
	var evt sseContentBlockStop
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseErr("content_block_stop", err)
	}

	bs := s.blocks[evt.Index]
	if bs == nil {
		return nil, fmt.Errorf("anthropic: stop for unknown block index %d: %w", evt.Index, relay.ErrProvider)
	}
	if bs.blockType != "tool_use" {
		return nil, nil
	}

	raw := bs.inputBuf.String()
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	return relay.EventToolCallArgsDone{Call: relay.ToolCall{
		ID:        bs.toolID,
		Name:      bs.toolName,
		Arguments: json.RawMessage(raw),
	}}, nil
}

func (s *stream) handleMessageDelta(data string) error {
	var evt sseMessageDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseErr("message_delta", err)
	}
	s.usage.OutputTokens = max(evt.Usage.OutputTokens, 0)
	return nil
}

func (s *stream) handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseErr("error", err)
	}
	return classify(evt.Error)
}

func parseErr(event string, err error) error {
	return fmt.Errorf("anthropic: failed to parse %s: %w: %w", event, relay.ErrProvider, err)
}
