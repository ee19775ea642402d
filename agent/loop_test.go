package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/agent"
	"github.com/fwojciec/relay/history"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script is a provider that replays one scripted response per request and
// records the requests it received.
type script struct {
	mu       sync.Mutex
	requests []relay.Request
	respond  func(n int, req relay.Request) (relay.Stream, error)
}

func (s *script) provider() *mock.Provider {
	return &mock.Provider{
		StreamFn: func(_ context.Context, req relay.Request) (relay.Stream, error) {
			s.mu.Lock()
			s.requests = append(s.requests, req)
			n := len(s.requests)
			s.mu.Unlock()
			return s.respond(n, req)
		},
	}
}

func replay(rounds ...[]relay.Event) *script {
	return &script{respond: func(n int, _ relay.Request) (relay.Stream, error) {
		if n > len(rounds) {
			return nil, fmt.Errorf("unexpected request %d", n)
		}
		return mock.Events(nil, rounds[n-1]...), nil
	}}
}

func textRound(id string, parts ...string) []relay.Event {
	events := []relay.Event{relay.EventResponseStarted{ResponseID: id}}
	for _, p := range parts {
		events = append(events, relay.EventTextDelta{Delta: p})
	}
	return append(events, relay.EventTurnCompleted{Usage: relay.Usage{InputTokens: 10, OutputTokens: 2}})
}

func callRound(id string, calls ...relay.ToolCall) []relay.Event {
	events := []relay.Event{relay.EventResponseStarted{ResponseID: id}}
	for _, c := range calls {
		events = append(events,
			relay.EventToolCallStarted{CallID: c.ID, Name: c.Name},
			relay.EventToolCallArgsDelta{CallID: c.ID, Delta: string(c.Arguments)},
			relay.EventToolCallArgsDone{Call: c},
		)
	}
	return append(events, relay.EventTurnCompleted{})
}

func toolCall(id, name string) relay.ToolCall {
	return relay.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(`{"q":"x"}`)}
}

func newSession() *relay.Session {
	return &relay.Session{
		ID:      "s1",
		Kind:    relay.Guest,
		History: []relay.Item{relay.SystemMessage{Content: "You are helpful."}},
	}
}

func okExecutor() *mock.ToolExecutor {
	return &mock.ToolExecutor{
		ExecuteFn: func(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(fmt.Sprintf(`{"tool":%q}`, name)), nil
		},
	}
}

func lookupTools() []relay.Tool {
	return []relay.Tool{{Name: "lookup", Parameters: json.RawMessage(`{"type":"object"}`)}}
}

func TestLoop_Run_TextOnly(t *testing.T) {
	t.Parallel()
	sc := replay(textRound("resp_1", "Hel", "lo", "!"))
	session := newSession()
	var deltas []string
	loop := agent.New(sc.provider())

	res, err := loop.Run(context.Background(), session, "Hello", agent.WithEventHandler(func(e relay.Event) {
		if d, ok := e.(relay.EventTextDelta); ok {
			deltas = append(deltas, d.Delta)
		}
	}))

	require.NoError(t, err)
	assert.Equal(t, agent.StateCompleted, res.State)
	assert.Equal(t, "Hello!", res.Text)
	assert.Equal(t, res.Text, strings.Join(deltas, ""))
	assert.Equal(t, "resp_1", res.ResponseID)
	assert.Equal(t, relay.Usage{InputTokens: 10, OutputTokens: 2}, res.Usage)

	assert.Equal(t, []relay.Item{
		relay.SystemMessage{Content: "You are helpful."},
		relay.UserMessage{Content: "Hello"},
		relay.AssistantMessage{Content: "Hello!"},
	}, session.History)
	assert.Equal(t, "resp_1", session.LatestResponseID)
	assert.Equal(t, 1, session.Turn)

	require.Len(t, sc.requests, 1)
	assert.Empty(t, sc.requests[0].ContinuationToken)
	assert.Len(t, sc.requests[0].History, 2)
}

func TestLoop_Run_ToolCall(t *testing.T) {
	t.Parallel()
	call := toolCall("call_1", "lookup")
	sc := replay(
		callRound("resp_1", call),
		textRound("resp_2", "Found it."),
	)
	session := newSession()
	var events []relay.Event
	loop := agent.New(sc.provider())

	res, err := loop.Run(context.Background(), session, "Find x",
		agent.WithTools(okExecutor(), lookupTools()),
		agent.WithModel("m"),
		agent.WithInstructions("be brief"),
		agent.WithEventHandler(func(e relay.Event) { events = append(events, e) }),
	)

	require.NoError(t, err)
	assert.Equal(t, agent.StateCompleted, res.State)
	assert.Equal(t, 2, res.Rounds)

	stamped := call
	stamped.Turn = 1
	assert.Equal(t, []relay.Item{
		relay.SystemMessage{Content: "You are helpful."},
		relay.UserMessage{Content: "Find x"},
		stamped,
		relay.ToolResult{CallID: "call_1", Output: json.RawMessage(`{"tool":"lookup"}`)},
		relay.AssistantMessage{Content: "Found it."},
	}, session.History)
	assert.NoError(t, relay.ValidateHistory(session.History))

	require.Len(t, sc.requests, 2)
	assert.Equal(t, "m", sc.requests[0].Model)
	assert.Equal(t, "be brief", sc.requests[0].Instructions)
	assert.Equal(t, lookupTools(), sc.requests[0].Tools)
	second := sc.requests[1]
	assert.Equal(t, "resp_1", second.ContinuationToken)
	assert.Equal(t, []relay.Item{relay.ToolResult{CallID: "call_1", Output: json.RawMessage(`{"tool":"lookup"}`)}}, second.Input)
	assert.Len(t, second.History, 4)

	assert.Contains(t, events, relay.Event(relay.EventToolResult{
		CallID: "call_1", Name: "lookup", Output: json.RawMessage(`{"tool":"lookup"}`),
	}))
}

func TestLoop_Run_TextBeforeToolCall(t *testing.T) {
	t.Parallel()
	call := toolCall("call_1", "lookup")
	first := []relay.Event{
		relay.EventResponseStarted{ResponseID: "resp_1"},
		relay.EventTextDelta{Delta: "Let me check. "},
		relay.EventToolCallStarted{CallID: "call_1", Name: "lookup"},
		relay.EventToolCallArgsDone{Call: call},
		relay.EventTurnCompleted{},
	}
	sc := replay(first, textRound("resp_2", "Done."))
	session := newSession()

	res, err := agent.New(sc.provider()).Run(context.Background(), session, "q", agent.WithTools(okExecutor(), lookupTools()))

	require.NoError(t, err)
	assert.Equal(t, "Let me check. Done.", res.Text)
	require.Len(t, session.History, 6)
	assert.Equal(t, relay.AssistantMessage{Content: "Let me check. "}, session.History[2])
	assert.IsType(t, relay.ToolCall{}, session.History[3])
	assert.IsType(t, relay.ToolResult{}, session.History[4])
	assert.Equal(t, relay.AssistantMessage{Content: "Done."}, session.History[5])
}

func TestLoop_Run_ToolErrorsAreRecovered(t *testing.T) {
	t.Parallel()
	sc := replay(
		callRound("resp_1", toolCall("c1", "broken"), toolCall("c2", "missing")),
		textRound("resp_2", "Sorry, that failed."),
	)
	executor := &mock.ToolExecutor{
		ExecuteFn: func(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, error) {
			if name == "missing" {
				return nil, fmt.Errorf("%q: %w", name, relay.ErrUnknownTool)
			}
			return nil, fmt.Errorf("db down: %w", relay.ErrToolExecution)
		},
	}
	session := newSession()

	res, err := agent.New(sc.provider()).Run(context.Background(), session, "q", agent.WithTools(executor, nil))

	require.NoError(t, err)
	assert.Equal(t, agent.StateCompleted, res.State)

	r1, ok := session.History[4].(relay.ToolResult)
	require.True(t, ok)
	assert.True(t, r1.IsError)
	assert.Contains(t, string(r1.Output), `"execution_failed"`)
	r2, ok := session.History[5].(relay.ToolResult)
	require.True(t, ok)
	assert.Contains(t, string(r2.Output), `"unknown_tool"`)
}

func TestLoop_Run_FreezesValidArguments(t *testing.T) {
	t.Parallel()
	sc := replay(
		callRound("resp_1",
			relay.ToolCall{ID: "c1", Name: "lookup", Arguments: json.RawMessage("{\"q\":\"a\nb\"}")},
			relay.ToolCall{ID: "c2", Name: "lookup", Arguments: json.RawMessage(`{bad`)},
		),
		textRound("resp_2", "done"),
	)
	var mu sync.Mutex
	var seen []string
	executor := &mock.ToolExecutor{
		ExecuteFn: func(_ context.Context, _ string, args json.RawMessage) (json.RawMessage, error) {
			mu.Lock()
			seen = append(seen, string(args))
			mu.Unlock()
			return json.RawMessage(`{}`), nil
		},
	}
	session := newSession()

	_, err := agent.New(sc.provider()).Run(context.Background(), session, "q", agent.WithTools(executor, lookupTools()))

	require.NoError(t, err)
	assert.Equal(t, []string{"{\"q\":\"a\nb\"}", `{bad`}, seen)

	first, ok := session.History[2].(relay.ToolCall)
	require.True(t, ok)
	assert.Equal(t, `{"q":"a\nb"}`, string(first.Arguments))
	second, ok := session.History[3].(relay.ToolCall)
	require.True(t, ok)
	assert.Equal(t, `{}`, string(second.Arguments))
}

func TestLoop_Run_NoExecutor(t *testing.T) {
	t.Parallel()
	sc := replay(callRound("resp_1", toolCall("c1", "lookup")), textRound("resp_2", "ok"))
	session := newSession()

	_, err := agent.New(sc.provider()).Run(context.Background(), session, "q")

	require.NoError(t, err)
	r, ok := session.History[3].(relay.ToolResult)
	require.True(t, ok)
	assert.True(t, r.IsError)
}

func TestLoop_Run_ParallelResultsInIssueOrder(t *testing.T) {
	t.Parallel()
	calls := []relay.ToolCall{toolCall("c1", "slow"), toolCall("c2", "medium"), toolCall("c3", "fast")}
	sc := replay(callRound("resp_1", calls...), textRound("resp_2", "ok"))
	delays := map[string]time.Duration{"slow": 30 * time.Millisecond, "medium": 15 * time.Millisecond, "fast": 0}
	var mu sync.Mutex
	var finished []string
	executor := &mock.ToolExecutor{
		ExecuteFn: func(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, error) {
			time.Sleep(delays[name])
			mu.Lock()
			finished = append(finished, name)
			mu.Unlock()
			return json.RawMessage(`{}`), nil
		},
	}
	session := newSession()

	_, err := agent.New(sc.provider(), agent.WithParallelism(3)).Run(context.Background(), session, "q", agent.WithTools(executor, nil))

	require.NoError(t, err)
	assert.Len(t, finished, 3)
	var ids []string
	for _, it := range session.History {
		if r, ok := it.(relay.ToolResult); ok {
			ids = append(ids, r.CallID)
		}
	}
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids)
}

func TestLoop_Run_IterationLimit(t *testing.T) {
	t.Parallel()
	sc := &script{respond: func(n int, _ relay.Request) (relay.Stream, error) {
		return mock.Events(nil, callRound(fmt.Sprintf("resp_%d", n), toolCall(fmt.Sprintf("c%d", n), "lookup"))...), nil
	}}
	session := newSession()
	var toolResults int
	loop := agent.New(sc.provider(), agent.WithMaxIterations(3))

	res, err := loop.Run(context.Background(), session, "loop forever",
		agent.WithTools(okExecutor(), lookupTools()),
		agent.WithEventHandler(func(e relay.Event) {
			if _, ok := e.(relay.EventToolResult); ok {
				toolResults++
			}
		}),
	)

	require.ErrorIs(t, err, relay.ErrIterationLimit)
	assert.Equal(t, agent.StateFailed, res.State)
	assert.Equal(t, agent.LimitMessage, res.Text)
	assert.Len(t, sc.requests, 3)
	assert.Equal(t, 2, toolResults)

	assert.NoError(t, relay.ValidateHistory(session.History))
	assert.Empty(t, relay.PendingCalls(session.History))
	assert.Equal(t, relay.AssistantMessage{Content: agent.LimitMessage}, session.History[len(session.History)-1])
	last, ok := session.History[len(session.History)-2].(relay.ToolResult)
	require.True(t, ok)
	assert.Equal(t, "c3", last.CallID)
	assert.True(t, last.IsError)
	assert.Equal(t, "resp_3", res.ResponseID)
	assert.Empty(t, session.LatestResponseID)
}

func TestLoop_Run_ContinuesAfterIterationLimit(t *testing.T) {
	t.Parallel()
	sc := replay(
		callRound("r1", toolCall("c1", "lookup")),
		textRound("r2", "done"),
	)
	session := newSession()
	loop := agent.New(sc.provider(), agent.WithMaxIterations(1))

	_, err := loop.Run(context.Background(), session, "first", agent.WithTools(okExecutor(), lookupTools()))
	require.ErrorIs(t, err, relay.ErrIterationLimit)

	res, err := loop.Run(context.Background(), session, "second", agent.WithTools(okExecutor(), lookupTools()))
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)

	require.Len(t, sc.requests, 2)
	second := sc.requests[1]
	assert.Empty(t, second.ContinuationToken)
	assert.Empty(t, second.Input)
	assert.NoError(t, relay.ValidateHistory(second.History))
	assert.Empty(t, relay.PendingCalls(second.History))
	assert.Equal(t, []relay.Item{
		relay.AssistantMessage{Content: agent.LimitMessage},
		relay.UserMessage{Content: "second"},
	}, second.History[len(second.History)-2:])
	assert.Equal(t, "r2", session.LatestResponseID)
}

func TestLoop_Run_DefaultIterationLimit(t *testing.T) {
	t.Parallel()
	sc := &script{respond: func(n int, _ relay.Request) (relay.Stream, error) {
		return mock.Events(nil, callRound("r", toolCall(fmt.Sprintf("c%d", n), "lookup"))...), nil
	}}

	_, err := agent.New(sc.provider()).Run(context.Background(), newSession(), "q", agent.WithTools(okExecutor(), nil))

	require.ErrorIs(t, err, relay.ErrIterationLimit)
	assert.Len(t, sc.requests, agent.DefaultMaxIterations)
}

func TestLoop_Run_ContextOverflowRetry(t *testing.T) {
	t.Parallel()
	session := newSession()
	session.LatestResponseID = "resp_old"
	session.Turn = 3
	for i := range 20 {
		session.History = append(session.History,
			relay.UserMessage{Content: strings.Repeat("u", 40) + fmt.Sprint(i)},
			relay.AssistantMessage{Content: strings.Repeat("a", 40)},
		)
	}
	sc := &script{respond: func(n int, _ relay.Request) (relay.Stream, error) {
		if n == 1 {
			return nil, fmt.Errorf("too long: %w", relay.ErrContextOverflow)
		}
		return mock.Events(nil, textRound("resp_new", "ok")...), nil
	}}

	res, err := agent.New(sc.provider()).Run(context.Background(), session, "next",
		agent.WithLimits(agent.Limits{MaxTokens: 200}))

	require.NoError(t, err)
	assert.Equal(t, agent.StateCompleted, res.State)
	require.Len(t, sc.requests, 2)

	first, second := sc.requests[0], sc.requests[1]
	assert.Equal(t, "resp_old", first.ContinuationToken)
	assert.Equal(t, []relay.Item{relay.UserMessage{Content: "next"}}, first.Input)
	assert.LessOrEqual(t, history.Tokens(first.History, nil), 200)

	assert.Empty(t, second.ContinuationToken)
	assert.LessOrEqual(t, history.Tokens(second.History, nil), 100)
	assert.Less(t, len(second.History), len(first.History))
	assert.Equal(t, relay.SystemMessage{Content: "You are helpful."}, second.History[0])
	assert.Equal(t, relay.UserMessage{Content: "next"}, second.History[len(second.History)-1])
	assert.Equal(t, "resp_new", session.LatestResponseID)
}

func TestLoop_Run_OverflowAttemptIsNotForwarded(t *testing.T) {
	t.Parallel()
	sc := &script{respond: func(n int, _ relay.Request) (relay.Stream, error) {
		if n == 1 {
			return mock.Events(fmt.Errorf("too long: %w", relay.ErrContextOverflow),
				relay.EventResponseStarted{ResponseID: "resp_failed"}), nil
		}
		return mock.Events(nil, textRound("resp_ok", "ok")...), nil
	}}
	var started []string
	session := newSession()

	_, err := agent.New(sc.provider()).Run(context.Background(), session, "q",
		agent.WithEventHandler(func(e relay.Event) {
			if s, ok := e.(relay.EventResponseStarted); ok {
				started = append(started, s.ResponseID)
			}
		}))

	require.NoError(t, err)
	assert.Len(t, sc.requests, 2)
	assert.Equal(t, []string{"resp_ok"}, started)
}

func TestLoop_Run_SecondOverflowIsFatal(t *testing.T) {
	t.Parallel()
	session := newSession()
	before := session.Clone()
	sc := &script{respond: func(int, relay.Request) (relay.Stream, error) {
		return mock.Events(fmt.Errorf("still too long: %w", relay.ErrContextOverflow)), nil
	}}

	res, err := agent.New(sc.provider()).Run(context.Background(), session, "q")

	require.ErrorIs(t, err, relay.ErrContextOverflow)
	assert.Equal(t, agent.StateFailed, res.State)
	assert.Len(t, sc.requests, 2)
	assert.Equal(t, before, *session)
}

func TestLoop_Run_OverflowAfterTextIsFatal(t *testing.T) {
	t.Parallel()
	sc := &script{respond: func(int, relay.Request) (relay.Stream, error) {
		return mock.Events(fmt.Errorf("late: %w", relay.ErrContextOverflow), relay.EventTextDelta{Delta: "partial"}), nil
	}}

	_, err := agent.New(sc.provider()).Run(context.Background(), newSession(), "q")

	require.ErrorIs(t, err, relay.ErrContextOverflow)
	assert.Len(t, sc.requests, 1)
}

func TestLoop_Run_ProviderErrors(t *testing.T) {
	t.Parallel()

	t.Run("open failure leaves session untouched", func(t *testing.T) {
		t.Parallel()
		boom := fmt.Errorf("down: %w", relay.ErrProvider)
		sc := &script{respond: func(int, relay.Request) (relay.Stream, error) { return nil, boom }}
		session := newSession()
		before := session.Clone()

		_, err := agent.New(sc.provider()).Run(context.Background(), session, "q")

		require.ErrorIs(t, err, relay.ErrProvider)
		assert.Len(t, sc.requests, 1)
		assert.Equal(t, before, *session)
	})

	t.Run("stream without completion", func(t *testing.T) {
		t.Parallel()
		sc := replay([]relay.Event{relay.EventTextDelta{Delta: "cut"}})

		_, err := agent.New(sc.provider()).Run(context.Background(), newSession(), "q")

		require.ErrorIs(t, err, relay.ErrProvider)
	})

	t.Run("stream is closed", func(t *testing.T) {
		t.Parallel()
		closed := false
		stream := mock.Events(nil, textRound("r", "ok")...)
		stream.CloseFn = func() error { closed = true; return nil }
		p := &mock.Provider{StreamFn: func(context.Context, relay.Request) (relay.Stream, error) { return stream, nil }}

		_, err := agent.New(p).Run(context.Background(), newSession(), "q")

		require.NoError(t, err)
		assert.True(t, closed)
	})
}

func TestLoop_Run_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("during tool execution", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sc := replay(callRound("resp_1", toolCall("c1", "lookup")), textRound("resp_2", "never"))
		executor := &mock.ToolExecutor{
			ExecuteFn: func(ctx context.Context, _ string, _ json.RawMessage) (json.RawMessage, error) {
				cancel()
				return nil, ctx.Err()
			},
		}
		session := newSession()
		before := session.Clone()

		res, err := agent.New(sc.provider()).Run(ctx, session, "q", agent.WithTools(executor, nil))

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, agent.StateFailed, res.State)
		assert.Len(t, sc.requests, 1)
		assert.Equal(t, before, *session)
	})

	t.Run("during streaming skips unfrozen calls", func(t *testing.T) {
		t.Parallel()
		sc := &script{respond: func(int, relay.Request) (relay.Stream, error) {
			return mock.Events(context.Canceled,
				relay.EventResponseStarted{ResponseID: "r"},
				relay.EventToolCallStarted{CallID: "c1", Name: "lookup"},
				relay.EventToolCallArgsDelta{CallID: "c1", Delta: `{"q":`},
			), nil
		}}
		executor := &mock.ToolExecutor{
			ExecuteFn: func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
				t.Error("executor must not run")
				return nil, nil
			},
		}
		session := newSession()
		before := session.Clone()

		_, err := agent.New(sc.provider()).Run(context.Background(), session, "q", agent.WithTools(executor, nil))

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, before, *session)
	})

	t.Run("before start", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sc := replay(textRound("r", "x"))

		_, err := agent.New(sc.provider()).Run(ctx, newSession(), "q")

		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, sc.requests)
	})
}

func TestLoop_Run_EvictsStaleOrphanCalls(t *testing.T) {
	t.Parallel()
	session := newSession()
	session.Turn = 4
	session.History = append(session.History,
		relay.UserMessage{Content: "old"},
		relay.ToolCall{ID: "stale", Name: "lookup", Arguments: json.RawMessage(`{}`), Turn: 3},
	)
	sc := replay(textRound("r", "fresh"))

	_, err := agent.New(sc.provider()).Run(context.Background(), session, "new")

	require.NoError(t, err)
	assert.Empty(t, relay.PendingCalls(sc.requests[0].History))
	assert.Empty(t, relay.PendingCalls(session.History))
}

func TestLoop_Run_MaxMessages(t *testing.T) {
	t.Parallel()
	session := newSession()
	for i := range 40 {
		session.History = append(session.History, relay.UserMessage{Content: fmt.Sprint(i)}, relay.AssistantMessage{Content: "a"})
	}
	sc := replay(textRound("r", "ok"))

	_, err := agent.New(sc.provider()).Run(context.Background(), session, "latest", agent.WithLimits(agent.Limits{MaxMessages: 30}))

	require.NoError(t, err)
	req := sc.requests[0].History
	assert.Len(t, req, 30)
	assert.Equal(t, relay.SystemMessage{Content: "You are helpful."}, req[0])
	assert.Equal(t, relay.UserMessage{Content: "latest"}, req[29])
}

func TestLoop_Run_ConcurrentSessions(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{StreamFn: func(_ context.Context, req relay.Request) (relay.Stream, error) {
		last := req.History[len(req.History)-1].(relay.UserMessage)
		return mock.Events(nil, textRound("r_"+last.Content, "echo "+last.Content)...), nil
	}}
	loop := agent.New(p)

	var wg sync.WaitGroup
	sessions := make([]*relay.Session, 8)
	for i := range sessions {
		sessions[i] = newSession()
		sessions[i].ID = fmt.Sprintf("s%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := loop.Run(context.Background(), sessions[i], fmt.Sprint(i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i, s := range sessions {
		assert.Equal(t, relay.AssistantMessage{Content: fmt.Sprintf("echo %d", i)}, s.History[2])
		assert.Equal(t, fmt.Sprintf("r_%d", i), s.LatestResponseID)
	}
}

var errSentinel = errors.New("sentinel")

func TestLoop_Run_StreamErrorMidway(t *testing.T) {
	t.Parallel()
	sc := &script{respond: func(int, relay.Request) (relay.Stream, error) {
		return mock.Events(errSentinel, relay.EventResponseStarted{ResponseID: "r"}), nil
	}}
	session := newSession()

	_, err := agent.New(sc.provider()).Run(context.Background(), session, "q")

	require.ErrorIs(t, err, errSentinel)
	assert.Empty(t, session.LatestResponseID)
}
