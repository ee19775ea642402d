// Package dispatch executes tool calls against a resolved catalog.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/fwojciec/relay"
)

// Compile-time interface check.
var _ relay.ToolExecutor = (*Dispatcher)(nil)

// Dispatcher maps tool names to handlers. It is built once per catalog
// resolution and is safe for concurrent use.
type Dispatcher struct {
	defs   map[string]relay.ToolDefinition
	order  []string
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher over defs. A later definition with the same name
// replaces an earlier one.
func New(defs []relay.ToolDefinition, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		defs:   make(map[string]relay.ToolDefinition, len(defs)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, def := range defs {
		if _, ok := d.defs[def.Name]; !ok {
			d.order = append(d.order, def.Name)
		}
		d.defs[def.Name] = def
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tools returns the schemas of all dispatchable tools in registration order.
func (d *Dispatcher) Tools() []relay.Tool {
	tools := make([]relay.Tool, 0, len(d.order))
	for _, name := range d.order {
		tools = append(tools, d.defs[name].Tool)
	}
	return tools
}

// Execute runs the named tool. Failures wrap relay.ErrUnknownTool,
// relay.ErrSerialization or relay.ErrToolExecution; a panicking handler is
// recovered as an execution failure.
func (d *Dispatcher) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	def, ok := d.defs[name]
	if !ok || def.Handler == nil {
		return nil, fmt.Errorf("%q: %w", name, relay.ErrUnknownTool)
	}
	clean, err := SanitizeArguments(args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := d.call(ctx, def.Handler, clean)
	d.logger.DebugContext(ctx, "tool executed", "tool", name, "duration", time.Since(start), "error", err)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w: %w", name, relay.ErrToolExecution, err)
	}
	if len(out) == 0 {
		return json.RawMessage(`null`), nil
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("tool %s returned malformed output: %w", name, relay.ErrToolExecution)
	}
	return out, nil
}

func (d *Dispatcher) call(ctx context.Context, h relay.Handler, args json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "tool panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, args)
}

// Typed adapts a function with typed arguments and output to relay.Handler.
// Arguments are decoded into A; unknown fields are ignored.
func Typed[A, R any](fn func(ctx context.Context, args A) (R, error)) relay.Handler {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args A
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode arguments: %w: %w", relay.ErrSerialization, err)
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encode output: %w", err)
		}
		return out, nil
	}
}
