package relay

import "encoding/json"

// UpdateType names a caller-facing event.
type UpdateType string

const (
	UpdateResponseID      UpdateType = "response_id"
	UpdateText            UpdateType = "text"
	UpdateToolCallStarted UpdateType = "tool_call_started"
	UpdateToolResult      UpdateType = "tool_result"
	UpdateCompleted       UpdateType = "completed"
	UpdateError           UpdateType = "error"
)

// Update is one caller-facing event of a streamed turn. Exactly one
// UpdateCompleted or UpdateError terminates every stream, and the payloads of
// UpdateText, concatenated in order, reconstruct the assistant's reply.
type Update struct {
	Type    UpdateType `json:"type"`
	Payload any        `json:"payload"`
}

// ToolCallPayload is the payload of UpdateToolCallStarted.
type ToolCallPayload struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
}

// ToolResultPayload is the payload of UpdateToolResult.
type ToolResultPayload struct {
	CallID  string          `json:"call_id"`
	Name    string          `json:"name"`
	Output  json.RawMessage `json:"output"`
	IsError bool            `json:"is_error,omitempty"`
}

// CompletedPayload is the payload of UpdateCompleted.
type CompletedPayload struct {
	Text       string `json:"text"`
	ResponseID string `json:"response_id,omitempty"`
}

// ErrorPayload is the payload of UpdateError. Message is always safe to show
// to end users.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Terminal reports whether u ends a stream.
func (u Update) Terminal() bool {
	return u.Type == UpdateCompleted || u.Type == UpdateError
}
