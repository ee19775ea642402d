// Package agent runs conversation turns between a Provider and a
// ToolExecutor.
//
// A turn appends the user's message, then repeatedly streams a model
// response, dispatches the tool calls it requested and appends their results
// until the model answers without calling tools or the iteration cap is hit.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/dispatch"
	"github.com/fwojciec/relay/history"
	"golang.org/x/sync/errgroup"
)

// LimitMessage is the assistant message appended when a turn hits the
// iteration cap.
const LimitMessage = "I had to stop before finishing because this request needed too many tool calls. Please try a narrower request."

// State is the terminal state of a turn.
type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Result summarizes a turn.
type Result struct {
	State State
	// Text is every text delta of the turn concatenated in order. On the
	// iteration cap it is LimitMessage.
	Text       string
	ResponseID string
	Rounds     int
	Usage      relay.Usage
}

// Loop orchestrates the conversation between a Provider and a ToolExecutor.
// A Loop is safe for concurrent use across sessions; callers serialize turns
// of the same session.
type Loop struct {
	provider      relay.Provider
	maxIterations int
	retry         RetryPolicy
	parallelism   int
	estimator     history.Estimator
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a new Loop with the given provider.
func New(provider relay.Provider, opts ...Option) *Loop {
	l := &Loop{
		provider:      provider,
		maxIterations: DefaultMaxIterations,
		retry:         DefaultRetryPolicy,
		parallelism:   1,
		estimator:     history.Chars,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// turn is the mutable state of one Run.
type turn struct {
	cfg     *runConfig
	work    relay.Session
	token   string
	input   []relay.Item // items the server has not seen since token
	text    strings.Builder
	retries int
	result  Result
}

// Run executes one turn for text. On success the session's history, turn
// counter and continuation token are updated in place.
//
// When the iteration cap is reached the session is updated with error
// results for the unanswered calls and LimitMessage, its continuation token is
// cleared, and the returned error wraps relay.ErrIterationLimit; callers
// persist the session as usual. Any other error, including cancellation,
// leaves the session untouched.
func (l *Loop) Run(ctx context.Context, session *relay.Session, text string, opts ...RunOption) (Result, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	t := &turn{cfg: cfg, work: session.Clone(), token: session.LatestResponseID}
	t.work.Turn++
	user := relay.UserMessage{Content: text}
	t.work.History = append(t.work.History, user)
	t.input = []relay.Item{user}

	log := l.logger.With("session_id", session.ID, "turn", t.work.Turn)

	for round := 1; round <= l.maxIterations; round++ {
		t.result.Rounds = round
		if err := ctx.Err(); err != nil {
			return l.fail(t, err)
		}

		calls, err := l.round(ctx, t, log)
		if err != nil {
			log.WarnContext(ctx, "turn failed", "round", round, "error", err)
			return l.fail(t, err)
		}
		if len(calls) == 0 {
			t.result.State = StateCompleted
			t.result.Text = t.text.String()
			l.commit(session, t)
			log.InfoContext(ctx, "turn completed", "rounds", round,
				"input_tokens", t.result.Usage.InputTokens, "output_tokens", t.result.Usage.OutputTokens)
			return t.result, nil
		}
		if round == l.maxIterations {
			l.abandon(t)
			break
		}
		if err := l.dispatch(ctx, t, calls); err != nil {
			return l.fail(t, err)
		}
	}

	t.result.State = StateFailed
	t.result.Text = LimitMessage
	l.commit(session, t)
	log.WarnContext(ctx, "iteration limit reached", "rounds", l.maxIterations)
	return t.result, fmt.Errorf("after %d rounds: %w", l.maxIterations, relay.ErrIterationLimit)
}

func (l *Loop) fail(t *turn, err error) (Result, error) {
	t.result.State = StateFailed
	t.result.Text = t.text.String()
	return t.result, err
}

func (l *Loop) commit(session *relay.Session, t *turn) {
	t.work.UpdatedAt = l.now()
	*session = t.work
}

// round performs one model round-trip, retrying on context overflow, and
// appends the response to the history. It returns the tool calls issued.
func (l *Loop) round(ctx context.Context, t *turn, log *slog.Logger) ([]relay.ToolCall, error) {
	limits := t.cfg.limits
	t.work.History = history.Enforce(t.work.History, l.enforceOptions(limits, t.work.Turn))

	for {
		items, calls, forwarded, err := l.stream(ctx, t)
		if err == nil {
			t.work.History = append(t.work.History, items...)
			t.input = nil
			return calls, nil
		}
		if !errors.Is(err, relay.ErrContextOverflow) || forwarded || t.retries >= l.retry.MaxAttempts {
			return nil, err
		}

		t.retries++
		budget := limits.MaxTokens
		if budget <= 0 {
			budget = history.Tokens(t.work.History, l.estimator)
		}
		for range t.retries {
			budget = int(float64(budget) * l.retry.TokenFactor)
		}
		limits.MaxTokens = max(budget, 1)
		t.work.History = history.Enforce(t.work.History, l.enforceOptions(limits, t.work.Turn))
		t.token = ""
		log.WarnContext(ctx, "context overflow, retrying", "attempt", t.retries,
			"max_tokens", limits.MaxTokens, "items", len(t.work.History))
	}
}

func (l *Loop) enforceOptions(limits Limits, turn int) history.Options {
	return history.Options{
		MaxMessages: limits.MaxMessages,
		MaxTokens:   limits.MaxTokens,
		Turn:        turn,
		Estimator:   l.estimator,
	}
}

// stream opens one provider stream and drains it. Text is flushed into an
// AssistantMessage before the first tool call it precedes and at the end, so
// history order matches emission order.
//
// EventResponseStarted is held back until the next event, so an attempt that
// fails before producing output is invisible to the caller. forwarded reports
// whether any event reached the caller, which makes a failure non-retriable.
func (l *Loop) stream(ctx context.Context, t *turn) (items []relay.Item, calls []relay.ToolCall, forwarded bool, err error) {
	req := relay.Request{
		Model:             t.cfg.model,
		Instructions:      t.cfg.instructions,
		History:           t.work.History,
		Tools:             t.cfg.tools,
		ContinuationToken: t.token,
		MaxOutputTokens:   t.cfg.maxOutputTokens,
	}
	if t.token != "" {
		req.Input = t.input
	}

	s, err := l.provider.Stream(ctx, req)
	if err != nil {
		return nil, nil, false, err
	}
	defer s.Close()

	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			items = append(items, relay.AssistantMessage{Content: text.String()})
			t.text.WriteString(text.String())
			text.Reset()
		}
	}

	var responseID string
	var started relay.Event
	completed := false
	for {
		evt, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, forwarded, err
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, forwarded, err
		}

		switch e := evt.(type) {
		case relay.EventResponseStarted:
			responseID = e.ResponseID
			started = evt
			continue
		case relay.EventTextDelta:
			text.WriteString(e.Delta)
		case relay.EventToolCallArgsDone:
			flush()
			call := e.Call
			call.Turn = t.work.Turn
			calls = append(calls, call)
			call.Arguments = freeze(call.Arguments)
			items = append(items, call)
		case relay.EventTurnCompleted:
			completed = true
			t.result.Usage.InputTokens += e.Usage.InputTokens
			t.result.Usage.OutputTokens += e.Usage.OutputTokens
		}
		if started != nil {
			t.emit(started)
			started = nil
		}
		t.emit(evt)
		forwarded = true
	}
	if !completed {
		return nil, nil, forwarded, fmt.Errorf("stream ended before completion: %w", relay.ErrProvider)
	}
	flush()

	if responseID != "" {
		t.token = responseID
		t.work.LatestResponseID = responseID
		t.result.ResponseID = responseID
	}
	return items, calls, forwarded, nil
}

// dispatch executes calls and appends their results in issue order.
func (l *Loop) dispatch(ctx context.Context, t *turn, calls []relay.ToolCall) error {
	results := make([]relay.ToolResult, len(calls))
	var g errgroup.Group
	g.SetLimit(l.parallelism)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = l.execute(ctx, t.cfg.executor, call)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, r := range results {
		t.work.History = append(t.work.History, r)
		t.input = append(t.input, r)
		t.emit(relay.EventToolResult{CallID: r.CallID, Name: calls[i].Name, Output: r.Output, IsError: r.IsError})
	}
	return nil
}

func (l *Loop) execute(ctx context.Context, executor relay.ToolExecutor, call relay.ToolCall) relay.ToolResult {
	if executor == nil {
		err := fmt.Errorf("%q: %w", call.Name, relay.ErrUnknownTool)
		return relay.ToolResult{CallID: call.ID, Output: relay.ToolErrorOutput(err), IsError: true}
	}
	out, err := executor.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		l.logger.DebugContext(ctx, "tool failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return relay.ToolResult{CallID: call.ID, Output: relay.ToolErrorOutput(err), IsError: true}
	}
	return relay.ToolResult{CallID: call.ID, Output: out}
}

// freeze returns the arguments stored with a call in history. They must be
// valid JSON for persistence and for providers that resend them; arguments
// that cannot be repaired are stored as an empty object while dispatch still
// sees the raw text and reports the failure in the call's result.
func freeze(args json.RawMessage) json.RawMessage {
	clean, err := dispatch.SanitizeArguments(args)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return clean
}

// abandon answers the calls of this turn still pending at the iteration cap
// and closes the turn with LimitMessage. The server never receives these
// results, so the continuation token is dropped and the next turn resends the
// full history.
func (l *Loop) abandon(t *turn) {
	for _, call := range relay.PendingCalls(t.work.History) {
		if call.Turn != t.work.Turn {
			continue
		}
		t.work.History = append(t.work.History, relay.ToolResult{
			CallID:  call.ID,
			Output:  relay.ToolErrorOutput(relay.ErrIterationLimit),
			IsError: true,
		})
	}
	t.work.History = append(t.work.History, relay.AssistantMessage{Content: LimitMessage})
	t.work.LatestResponseID = ""
}

func (t *turn) emit(evt relay.Event) {
	if t.cfg.onEvent != nil {
		t.cfg.onEvent(evt)
	}
}
