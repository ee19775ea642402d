package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

type streamState int

const (
	stateNew streamState = iota
	stateStreaming
	stateComplete
	stateError
	stateClosed
)

// stream implements [relay.Stream] by wrapping the genai SDK's streaming
// iterator. One chunk can carry several parts, so events are queued and
// handed out one per Next call.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   streamState
	err     error
	pending []relay.Event
	started bool
	usage   relay.Usage
}

// Interface compliance check.
var _ relay.Stream = (*stream)(nil)

// NewStreamFromIter wraps a genai response iterator as a [relay.Stream].
// Exported for testing.
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) relay.Stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		pull:  next,
		stop:  stop,
		state: stateNew,
	}
}

// Next returns the next semantic event. Returns io.EOF after the
// EventTurnCompleted event.
func (s *stream) Next() (relay.Event, error) {
	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			return evt, nil
		}

		switch s.state {
		case stateComplete:
			return nil, io.EOF
		case stateError:
			return nil, s.err
		case stateClosed:
			return nil, fmt.Errorf("gemini: %w", relay.ErrStreamClosed)
		}

		if err := s.ctx.Err(); err != nil {
			s.terminate(err)
			return nil, s.err
		}

		chunk, err, ok := s.pull()
		if !ok {
			s.state = stateComplete
			s.pending = append(s.pending, relay.EventTurnCompleted{Usage: s.usage})
			continue
		}
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}
		s.state = stateStreaming
		s.processChunk(chunk)
	}
}

// Close stops the underlying iterator.
func (s *stream) Close() error {
	if s.state != stateComplete && s.state != stateError {
		s.state = stateClosed
		s.pending = nil
	}
	s.stop()
	return nil
}

func (s *stream) terminate(err error) {
	s.state = stateError
	s.pending = nil
	switch {
	case s.ctx.Err() != nil:
		s.err = fmt.Errorf("gemini: %w", s.ctx.Err())
	case isContextOverflow(err):
		s.err = fmt.Errorf("gemini: %w: %v", relay.ErrContextOverflow, err)
	default:
		s.err = fmt.Errorf("gemini: %w: %w", relay.ErrProvider, err)
	}
}

// isContextOverflow reports whether err is the API's rejection of a prompt
// longer than the model's input limit.
func isContextOverflow(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "token") && strings.Contains(msg, "exceed")
}

func (s *stream) processChunk(chunk *genai.GenerateContentResponse) {
	if chunk == nil {
		return
	}
	if !s.started && chunk.ResponseID != "" {
		s.started = true
		s.pending = append(s.pending, relay.EventResponseStarted{ResponseID: chunk.ResponseID})
	}
	if u := chunk.UsageMetadata; u != nil {
		s.usage = relay.Usage{InputTokens: int(u.PromptTokenCount), OutputTokens: int(u.CandidatesTokenCount)}
	}
	if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
		return
	}
	for _, part := range chunk.Candidates[0].Content.Parts {
		switch {
		case part == nil, part.Thought:
		case part.FunctionCall != nil:
			s.processCall(part.FunctionCall, part.ThoughtSignature)
		case part.Text != "":
			s.pending = append(s.pending, relay.EventTextDelta{Delta: part.Text})
		}
	}
}

// processCall expands a function call, which Gemini delivers whole, into
// the started, delta and done sequence. Calls without an id get a generated
// one so results can be paired with them. The part's thought signature
// travels with the call so it can be sent back on the next request.
func (s *stream) processCall(fc *genai.FunctionCall, signature []byte) {
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := "{}"
	if len(fc.Args) > 0 {
		if data, err := json.Marshal(fc.Args); err == nil {
			args = string(data)
		}
	}
	s.pending = append(s.pending,
		relay.EventToolCallStarted{CallID: id, Name: fc.Name},
		relay.EventToolCallArgsDelta{CallID: id, Delta: args},
		relay.EventToolCallArgsDone{Call: relay.ToolCall{
			ID:        id,
			Name:      fc.Name,
			Arguments: json.RawMessage(args),
			Signature: string(signature),
		}},
	)
}
