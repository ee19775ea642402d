package relay

import "fmt"

// ValidateHistory checks the pairing invariant: every ToolResult follows a
// ToolCall with the same id, and no call is answered twice. Unanswered calls
// are allowed; the history sanitizer evicts them after their grace turn.
func ValidateHistory(items []Item) error {
	calls := make(map[string]bool)
	for i, it := range items {
		switch v := it.(type) {
		case SystemMessage, UserMessage, AssistantMessage:
		case ToolCall:
			if v.ID == "" {
				return fmt.Errorf("item %d: tool call without id: %w", i, ErrValidation)
			}
			if _, ok := calls[v.ID]; ok {
				return fmt.Errorf("item %d: duplicate tool call %q: %w", i, v.ID, ErrValidation)
			}
			calls[v.ID] = false
		case ToolResult:
			answered, ok := calls[v.CallID]
			if !ok {
				return fmt.Errorf("item %d: tool result %q has no preceding call: %w", i, v.CallID, ErrValidation)
			}
			if answered {
				return fmt.Errorf("item %d: duplicate tool result %q: %w", i, v.CallID, ErrValidation)
			}
			calls[v.CallID] = true
		default:
			return fmt.Errorf("item %d: unknown item type %T: %w", i, it, ErrValidation)
		}
	}
	return nil
}

// PendingCalls returns the tool calls in items that have no matching result,
// in history order.
func PendingCalls(items []Item) []ToolCall {
	answered := make(map[string]bool)
	for _, it := range items {
		if r, ok := it.(ToolResult); ok {
			answered[r.CallID] = true
		}
	}
	var out []ToolCall
	for _, it := range items {
		if c, ok := it.(ToolCall); ok && !answered[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
