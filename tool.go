package relay

import (
	"context"
	"encoding/json"
	"errors"
)

// Tool is the schema sent to the LLM describing a tool's capabilities.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Handler executes a tool with the model-supplied JSON arguments and returns
// a JSON-serializable output. A returned error is reported back to the model
// and never aborts the turn.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolDefinition pairs a Tool schema with its handler. Published tools are
// visible to guest sessions; authenticated sessions see the full catalog.
type ToolDefinition struct {
	Tool
	Handler   Handler
	Published bool
}

// Catalog resolves the tool definitions visible to a session kind. It is
// consulted once per turn so registry changes apply without a restart.
type Catalog interface {
	Resolve(ctx context.Context, kind SessionKind) ([]ToolDefinition, error)
}

// ToolExecutor runs tools. Execute returns an error wrapping ErrUnknownTool,
// ErrToolExecution or ErrSerialization on failure; the orchestrator converts
// it into an error-marked ToolResult.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// toolErrorPayload is the JSON shape of an error-marked tool result.
type toolErrorPayload struct {
	Error toolErrorDetail `json:"error"`
}

type toolErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ToolErrorOutput encodes a dispatch failure as a ToolResult payload so the
// model can react to it.
func ToolErrorOutput(err error) json.RawMessage {
	typ := "execution_failed"
	switch {
	case errors.Is(err, ErrUnknownTool):
		typ = "unknown_tool"
	case errors.Is(err, ErrSerialization):
		typ = "invalid_arguments"
	case errors.Is(err, ErrIterationLimit):
		typ = "iteration_limit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		typ = "cancelled"
	}
	data, _ := json.Marshal(toolErrorPayload{Error: toolErrorDetail{Type: typ, Message: err.Error()}})
	return data
}
