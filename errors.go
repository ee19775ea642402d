package relay

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a history or request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a store holds no record for the session.
	ErrNotFound = errors.New("not found")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrContextOverflow indicates the provider rejected the request because
	// the context window was exceeded. The orchestrator retries once with a
	// tighter budget and no continuation token.
	ErrContextOverflow = errors.New("context window exceeded")

	// ErrProvider indicates a non-retriable provider failure.
	ErrProvider = errors.New("provider error")

	// ErrUnknownTool indicates the model requested a tool that is not in the
	// resolved catalog.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolExecution indicates a tool handler failed or returned malformed
	// output.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrSerialization indicates tool arguments could not be parsed even after
	// control-character sanitization.
	ErrSerialization = errors.New("malformed tool arguments")

	// ErrPersistence indicates a History Store write failed.
	ErrPersistence = errors.New("persistence error")

	// ErrIterationLimit indicates the model kept requesting tools after the
	// iteration cap was reached.
	ErrIterationLimit = errors.New("tool iteration limit reached")

	// ErrTurnFailed is returned by the public entry points when a turn ends in
	// the Failed state. The underlying cause is wrapped but is never shown to
	// end users.
	ErrTurnFailed = errors.New("turn failed")
)
