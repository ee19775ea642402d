// Package chat implements the session policy: it resolves the session, its
// store, tool catalog and model, runs one turn through the agent loop and
// persists the outcome.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/agent"
	"github.com/fwojciec/relay/dispatch"
)

var _ relay.ChatService = (*Service)(nil)

// Apology is the only failure text shown to end users.
const Apology = "Sorry, something went wrong while answering. Please try again."

// Default system prompts seeded into new sessions.
const (
	DefaultGuestPrompt         = "You are a helpful assistant talking to a guest. Only use the tools you are given."
	DefaultAuthenticatedPrompt = "You are a helpful assistant. Use the available tools when they help answer the user."
)

// Service exposes the public entry points. It does not serialize turns of
// the same session; callers must.
type Service struct {
	loop            *agent.Loop
	catalog         relay.Catalog
	stores          map[relay.SessionKind]relay.HistoryStore
	prompts         map[relay.SessionKind]string
	limits          map[relay.SessionKind]agent.Limits
	selector        Selector
	fallback        Selection
	maxOutputTokens int
	reporter        relay.Reporter
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets the history store for a session kind.
func WithStore(kind relay.SessionKind, store relay.HistoryStore) Option {
	return func(s *Service) { s.stores[kind] = store }
}

// WithSystemPrompt sets the system message seeded into new sessions of kind.
func WithSystemPrompt(kind relay.SessionKind, prompt string) Option {
	return func(s *Service) { s.prompts[kind] = prompt }
}

// WithLimits sets the history limits for a session kind.
func WithLimits(kind relay.SessionKind, limits agent.Limits) Option {
	return func(s *Service) { s.limits[kind] = limits }
}

// WithSelector sets the model selector.
func WithSelector(sel Selector) Option {
	return func(s *Service) { s.selector = sel }
}

// WithFallback sets the selection used when the selector fails.
func WithFallback(sel Selection) Option {
	return func(s *Service) { s.fallback = sel }
}

// WithMaxOutputTokens caps each model response.
func WithMaxOutputTokens(n int) Option {
	return func(s *Service) { s.maxOutputTokens = n }
}

// WithReporter sets the error-reporting sink.
func WithReporter(r relay.Reporter) Option {
	return func(s *Service) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for new sessions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. Stores must be configured for every session kind
// the caller uses.
func New(loop *agent.Loop, catalog relay.Catalog, opts ...Option) *Service {
	s := &Service{
		loop:    loop,
		catalog: catalog,
		stores:  make(map[relay.SessionKind]relay.HistoryStore),
		prompts: map[relay.SessionKind]string{
			relay.Guest:         DefaultGuestPrompt,
			relay.Authenticated: DefaultAuthenticatedPrompt,
		},
		limits:   make(map[relay.SessionKind]agent.Limits),
		selector: Table{},
		reporter: relay.NopReporter,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage runs one turn and returns the final assistant text. On failure
// the text is safe to show and the error wraps relay.ErrTurnFailed.
func (s *Service) SendMessage(ctx context.Context, ref relay.SessionRef, text string) (string, error) {
	res, err := s.turn(ctx, ref, text, nil)
	if err != nil {
		return failureText(res, err), fmt.Errorf("%w: %w", relay.ErrTurnFailed, err)
	}
	return res.Text, nil
}

// StreamMessage runs one turn in the background and returns its updates.
// Exactly one terminal update is sent before the channel is closed, unless
// ctx is cancelled first.
func (s *Service) StreamMessage(ctx context.Context, ref relay.SessionRef, text string) <-chan relay.Update {
	out := make(chan relay.Update, 16)
	send := func(u relay.Update) {
		select {
		case out <- u:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(out)
		res, err := s.turn(ctx, ref, text, func(evt relay.Event) {
			if u, ok := toUpdate(evt); ok {
				send(u)
			}
		})
		if err != nil {
			send(relay.Update{Type: relay.UpdateError, Payload: relay.ErrorPayload{Message: failureText(res, err)}})
			return
		}
		send(relay.Update{Type: relay.UpdateCompleted, Payload: relay.CompletedPayload{Text: res.Text, ResponseID: res.ResponseID}})
	}()
	return out
}

// ResetConversation discards a guest session or deactivates an authenticated
// one. The next message starts a fresh session.
func (s *Service) ResetConversation(ctx context.Context, ref relay.SessionRef) error {
	store, err := s.store(ref)
	if err != nil {
		return err
	}
	if err := store.Reset(ctx, ref.ID); err != nil {
		return fmt.Errorf("reset %s session %s: %w", ref.Kind, ref.ID, err)
	}
	s.logger.InfoContext(ctx, "conversation reset", "session_id", ref.ID, "kind", ref.Kind)
	return nil
}

func (s *Service) turn(ctx context.Context, ref relay.SessionRef, text string, onEvent func(relay.Event)) (res agent.Result, err error) {
	log := s.logger.With("session_id", ref.ID, "kind", ref.Kind)
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			res = agent.Result{State: agent.StateFailed}
			err = fmt.Errorf("panic in turn: %v", r)
			log.ErrorContext(ctx, "turn panicked", "panic", r)
			s.reporter.Report(ctx, relay.Report{Error: err.Error(), Source: "chat", Traceback: stack})
		}
	}()

	store, err := s.store(ref)
	if err != nil {
		return agent.Result{State: agent.StateFailed}, err
	}
	if strings.TrimSpace(text) == "" {
		return agent.Result{State: agent.StateFailed}, fmt.Errorf("empty message: %w", relay.ErrValidation)
	}

	session, err := s.load(ctx, store, ref)
	if err != nil {
		return s.failed(ctx, log, agent.Result{State: agent.StateFailed}, err)
	}
	defs, err := s.catalog.Resolve(ctx, ref.Kind)
	if err != nil {
		return s.failed(ctx, log, agent.Result{State: agent.StateFailed}, fmt.Errorf("resolve catalog: %w", err))
	}
	d := dispatch.New(defs, dispatch.WithLogger(log))
	sel := s.selection(ref.Kind, text, log)

	res, err = s.loop.Run(ctx, &session, text,
		agent.WithEventHandler(onEvent),
		agent.WithModel(sel.Model),
		agent.WithInstructions(sel.Instructions),
		agent.WithTools(d, d.Tools()),
		agent.WithLimits(s.limits[ref.Kind]),
		agent.WithMaxOutputTokens(s.maxOutputTokens),
	)
	if err != nil && !errors.Is(err, relay.ErrIterationLimit) {
		return s.failed(ctx, log, res, err)
	}
	if serr := store.Save(ctx, session); serr != nil {
		res.State = agent.StateFailed
		return s.failed(ctx, log, res, serr)
	}
	if err != nil {
		log.WarnContext(ctx, "turn stopped at iteration limit", "rounds", res.Rounds)
	}
	return res, err
}

// failed logs err and reports it unless it is a cancellation.
func (s *Service) failed(ctx context.Context, log *slog.Logger, res agent.Result, err error) (agent.Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.InfoContext(ctx, "turn cancelled", "error", err)
		return res, err
	}
	log.ErrorContext(ctx, "turn failed", "error", err)
	s.reporter.Report(ctx, relay.Report{Error: err.Error(), Source: "chat", Traceback: string(debug.Stack())})
	return res, err
}

func (s *Service) store(ref relay.SessionRef) (relay.HistoryStore, error) {
	if ref.ID == "" || !ref.Kind.Valid() {
		return nil, fmt.Errorf("session ref %q/%q: %w", ref.Kind, ref.ID, relay.ErrValidation)
	}
	store, ok := s.stores[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("no store for %s sessions: %w", ref.Kind, relay.ErrValidation)
	}
	return store, nil
}

// load returns the stored session or a new one seeded with the kind's
// system prompt.
func (s *Service) load(ctx context.Context, store relay.HistoryStore, ref relay.SessionRef) (relay.Session, error) {
	session, err := store.Load(ctx, ref.ID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, relay.ErrNotFound) {
		return relay.Session{}, fmt.Errorf("load session: %w", err)
	}
	now := s.now()
	session = relay.Session{ID: ref.ID, Kind: ref.Kind, CreatedAt: now, UpdatedAt: now}
	if prompt := s.prompts[ref.Kind]; prompt != "" {
		session.History = []relay.Item{relay.SystemMessage{Content: prompt}}
	}
	return session, nil
}

func (s *Service) selection(kind relay.SessionKind, text string, log *slog.Logger) Selection {
	c := Classify(text)
	sel, err := s.selector.Select(kind, c)
	if err != nil {
		log.Debug("model selection fell back", "complexity", c, "error", err)
		return s.fallback
	}
	return sel
}

func failureText(res agent.Result, err error) string {
	if errors.Is(err, relay.ErrIterationLimit) && res.Text != "" {
		return res.Text
	}
	return Apology
}

func toUpdate(evt relay.Event) (relay.Update, bool) {
	switch e := evt.(type) {
	case relay.EventResponseStarted:
		return relay.Update{Type: relay.UpdateResponseID, Payload: e.ResponseID}, true
	case relay.EventTextDelta:
		return relay.Update{Type: relay.UpdateText, Payload: e.Delta}, true
	case relay.EventToolCallStarted:
		return relay.Update{Type: relay.UpdateToolCallStarted, Payload: relay.ToolCallPayload{CallID: e.CallID, Name: e.Name}}, true
	case relay.EventToolResult:
		return relay.Update{Type: relay.UpdateToolResult, Payload: relay.ToolResultPayload{CallID: e.CallID, Name: e.Name, Output: e.Output, IsError: e.IsError}}, true
	default:
		return relay.Update{}, false
	}
}
