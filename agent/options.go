package agent

import (
	"log/slog"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/history"
)

// DefaultMaxIterations bounds the model round-trips of one turn.
const DefaultMaxIterations = 10

// RetryPolicy controls recovery from context overflow. Each retry multiplies
// the token budget by TokenFactor and drops the continuation token.
type RetryPolicy struct {
	MaxAttempts int
	TokenFactor float64
}

// DefaultRetryPolicy retries once with half the token budget.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1, TokenFactor: 0.5}

// Limits bounds the history sent to the model. Zero values are unlimited.
type Limits struct {
	MaxMessages int
	MaxTokens   int
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations sets the round-trip cap. Values below one are ignored.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(l *Loop) { l.retry = p }
}

// WithParallelism sets how many tool calls of one round run at once.
// One, the default, runs them sequentially.
func WithParallelism(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.parallelism = n
		}
	}
}

// WithEstimator sets the token estimator used for truncation.
func WithEstimator(e history.Estimator) Option {
	return func(l *Loop) {
		if e != nil {
			l.estimator = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent         func(relay.Event)
	model           string
	instructions    string
	executor        relay.ToolExecutor
	tools           []relay.Tool
	limits          Limits
	maxOutputTokens int
}

// WithEventHandler sets a callback that receives each streaming event during
// the run, plus an EventToolResult after every dispatched call. If nil or not
// set, events are silently discarded.
func WithEventHandler(h func(relay.Event)) RunOption {
	return func(c *runConfig) {
		c.onEvent = h
	}
}

// WithModel sets the model ID for provider requests during this run.
// Empty string means the provider uses its default model.
func WithModel(model string) RunOption {
	return func(c *runConfig) {
		c.model = model
	}
}

// WithInstructions sets request-level instructions sent alongside the
// history's system message.
func WithInstructions(s string) RunOption {
	return func(c *runConfig) {
		c.instructions = s
	}
}

// WithTools advertises tools to the model and dispatches its calls through
// executor.
func WithTools(executor relay.ToolExecutor, tools []relay.Tool) RunOption {
	return func(c *runConfig) {
		c.executor = executor
		c.tools = tools
	}
}

// WithLimits bounds the history sent on each round-trip.
func WithLimits(limits Limits) RunOption {
	return func(c *runConfig) {
		c.limits = limits
	}
}

// WithMaxOutputTokens caps the length of each model response.
func WithMaxOutputTokens(n int) RunOption {
	return func(c *runConfig) {
		c.maxOutputTokens = n
	}
}
