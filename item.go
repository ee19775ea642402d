package relay

import "encoding/json"

// Item is a sealed interface representing one entry of a conversation
// history. The unexported marker method prevents external implementations.
// Kind() returns the item's kind without requiring a type switch.
type Item interface {
	isItem()
	Kind() ItemKind
}

// ItemKind names the variant of an Item.
type ItemKind string

const (
	KindSystem     ItemKind = "system"
	KindUser       ItemKind = "user"
	KindAssistant  ItemKind = "assistant"
	KindToolCall   ItemKind = "tool_call"
	KindToolResult ItemKind = "tool_result"
)

// SystemMessage carries the instruction text that leads every history.
type SystemMessage struct {
	Content string
}

func (SystemMessage) isItem() {}

// Kind returns KindSystem.
func (SystemMessage) Kind() ItemKind { return KindSystem }

// UserMessage represents a message from the user.
type UserMessage struct {
	Content string
}

func (UserMessage) isItem() {}

// Kind returns KindUser.
func (UserMessage) Kind() ItemKind { return KindUser }

// AssistantMessage represents text produced by the model.
type AssistantMessage struct {
	Content string
}

func (AssistantMessage) isItem() {}

// Kind returns KindAssistant.
func (AssistantMessage) Kind() ItemKind { return KindAssistant }

// ToolCall is a model-issued request to invoke a named tool. Arguments are
// frozen once the provider signals the argument stream is done.
//
// Turn records the session turn that produced the call. A call still missing
// its result after the following turn is evicted by the history sanitizer.
//
// Signature is opaque provider data that must be echoed back with the call,
// such as a Gemini thought signature. Other providers ignore it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Turn      int
	Signature string
}

func (ToolCall) isItem() {}

// Kind returns KindToolCall.
func (ToolCall) Kind() ItemKind { return KindToolCall }

// ToolResult carries the JSON output of a tool call. IsError marks payloads
// produced from a dispatch failure (see ToolErrorOutput).
type ToolResult struct {
	CallID  string
	Output  json.RawMessage
	IsError bool
}

func (ToolResult) isItem() {}

// Kind returns KindToolResult.
func (ToolResult) Kind() ItemKind { return KindToolResult }

// Interface compliance checks.
var (
	_ Item = SystemMessage{}
	_ Item = UserMessage{}
	_ Item = AssistantMessage{}
	_ Item = ToolCall{}
	_ Item = ToolResult{}
)
