package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/relay"
)

// itemDTO is the JSON representation of an Item with a type discriminator.
type itemDTO struct {
	Type      string          `json:"type"`
	Content   *string         `json:"content,omitempty"`
	ID        *string         `json:"id,omitempty"`
	Name      *string         `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Turn      *int            `json:"turn,omitempty"`
	CallID    *string         `json:"call_id,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
	Signature []byte          `json:"signature,omitempty"`
}

func marshalItems(items []relay.Item) ([]itemDTO, error) {
	dtos := make([]itemDTO, len(items))
	for i, it := range items {
		dto, err := marshalItem(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		dtos[i] = dto
	}
	return dtos, nil
}

func unmarshalItems(dtos []itemDTO) ([]relay.Item, error) {
	items := make([]relay.Item, len(dtos))
	for i, dto := range dtos {
		it, err := unmarshalItem(dto)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = it
	}
	return items, nil
}

func marshalItem(it relay.Item) (itemDTO, error) {
	switch v := it.(type) {
	case relay.SystemMessage:
		return itemDTO{Type: string(relay.KindSystem), Content: &v.Content}, nil
	case relay.UserMessage:
		return itemDTO{Type: string(relay.KindUser), Content: &v.Content}, nil
	case relay.AssistantMessage:
		return itemDTO{Type: string(relay.KindAssistant), Content: &v.Content}, nil
	case relay.ToolCall:
		if len(v.Arguments) > 0 && !json.Valid(v.Arguments) {
			return itemDTO{}, fmt.Errorf("tool call %q has invalid arguments: %w", v.ID, relay.ErrSerialization)
		}
		return itemDTO{Type: string(relay.KindToolCall), ID: &v.ID, Name: &v.Name, Arguments: v.Arguments, Turn: &v.Turn, Signature: []byte(v.Signature)}, nil
	case relay.ToolResult:
		if len(v.Output) > 0 && !json.Valid(v.Output) {
			return itemDTO{}, fmt.Errorf("tool result %q has invalid output: %w", v.CallID, relay.ErrSerialization)
		}
		return itemDTO{Type: string(relay.KindToolResult), CallID: &v.CallID, Output: v.Output, IsError: &v.IsError}, nil
	default:
		return itemDTO{}, fmt.Errorf("unknown item type %T: %w", it, relay.ErrSerialization)
	}
}

func unmarshalItem(dto itemDTO) (relay.Item, error) {
	switch relay.ItemKind(dto.Type) {
	case relay.KindSystem:
		return relay.SystemMessage{Content: deref(dto.Content)}, nil
	case relay.KindUser:
		return relay.UserMessage{Content: deref(dto.Content)}, nil
	case relay.KindAssistant:
		return relay.AssistantMessage{Content: deref(dto.Content)}, nil
	case relay.KindToolCall:
		if dto.ID == nil || *dto.ID == "" {
			return nil, fmt.Errorf("tool call without id: %w", relay.ErrSerialization)
		}
		return relay.ToolCall{
			ID:        *dto.ID,
			Name:      deref(dto.Name),
			Arguments: dto.Arguments,
			Turn:      deref(dto.Turn),
			Signature: string(dto.Signature),
		}, nil
	case relay.KindToolResult:
		if dto.CallID == nil || *dto.CallID == "" {
			return nil, fmt.Errorf("tool result without call id: %w", relay.ErrSerialization)
		}
		return relay.ToolResult{
			CallID:  *dto.CallID,
			Output:  dto.Output,
			IsError: deref(dto.IsError),
		}, nil
	default:
		return nil, fmt.Errorf("unknown item type %q: %w", dto.Type, relay.ErrSerialization)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
