package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolErrorOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		typ  string
	}{
		{"unknown tool", fmt.Errorf("nope: %w", relay.ErrUnknownTool), "unknown_tool"},
		{"bad arguments", fmt.Errorf("parse: %w", relay.ErrSerialization), "invalid_arguments"},
		{"handler failure", fmt.Errorf("boom: %w", relay.ErrToolExecution), "execution_failed"},
		{"plain error", errors.New("boom"), "execution_failed"},
		{"iteration limit", relay.ErrIterationLimit, "iteration_limit"},
		{"cancelled", context.Canceled, "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var payload struct {
				Error struct {
					Type    string `json:"type"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(relay.ToolErrorOutput(tt.err), &payload))
			assert.Equal(t, tt.typ, payload.Error.Type)
			assert.Equal(t, tt.err.Error(), payload.Error.Message)
		})
	}
}

func TestUpdate_Terminal(t *testing.T) {
	t.Parallel()
	assert.True(t, relay.Update{Type: relay.UpdateCompleted}.Terminal())
	assert.True(t, relay.Update{Type: relay.UpdateError}.Terminal())
	assert.False(t, relay.Update{Type: relay.UpdateText}.Terminal())
	assert.False(t, relay.Update{Type: relay.UpdateResponseID}.Terminal())
}

func TestSession_Clone(t *testing.T) {
	t.Parallel()
	s := relay.Session{ID: "s", History: []relay.Item{relay.UserMessage{Content: "a"}}}
	c := s.Clone()
	c.History = append(c.History, relay.UserMessage{Content: "b"})
	c.History[0] = relay.UserMessage{Content: "changed"}
	assert.Len(t, s.History, 1)
	assert.Equal(t, relay.UserMessage{Content: "a"}, s.History[0])
}

func TestSessionKind_Valid(t *testing.T) {
	t.Parallel()
	assert.True(t, relay.Guest.Valid())
	assert.True(t, relay.Authenticated.Valid())
	assert.False(t, relay.SessionKind("admin").Valid())
}
