package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() relay.ToolDefinition {
	return relay.ToolDefinition{
		Tool: relay.Tool{Name: "echo", Parameters: json.RawMessage(`{"type":"object"}`)},
		Handler: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
	}
}

func TestDispatcher_Execute(t *testing.T) {
	t.Parallel()

	t.Run("runs handler", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New([]relay.ToolDefinition{echoTool()})
		out, err := d.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(out))
	})

	t.Run("re-escapes control characters", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New([]relay.ToolDefinition{echoTool()})
		out, err := d.Execute(context.Background(), "echo", json.RawMessage("{\"text\":\"line1\nline2\"}"))
		require.NoError(t, err)
		var got struct{ Text string }
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Equal(t, "line1\nline2", got.Text)
	})

	t.Run("unknown tool", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New(nil)
		_, err := d.Execute(context.Background(), "missing", nil)
		assert.ErrorIs(t, err, relay.ErrUnknownTool)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New([]relay.ToolDefinition{echoTool()})
		_, err := d.Execute(context.Background(), "echo", json.RawMessage(`{"a":`))
		assert.ErrorIs(t, err, relay.ErrSerialization)
	})

	t.Run("handler error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		d := dispatch.New([]relay.ToolDefinition{{
			Tool: relay.Tool{Name: "fail"},
			Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
				return nil, boom
			},
		}})
		_, err := d.Execute(context.Background(), "fail", nil)
		assert.ErrorIs(t, err, relay.ErrToolExecution)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("handler panic", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New([]relay.ToolDefinition{{
			Tool: relay.Tool{Name: "panic"},
			Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
				panic("kaboom")
			},
		}})
		_, err := d.Execute(context.Background(), "panic", nil)
		assert.ErrorIs(t, err, relay.ErrToolExecution)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("malformed output", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New([]relay.ToolDefinition{{
			Tool: relay.Tool{Name: "bad"},
			Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
				return json.RawMessage(`{not json`), nil
			},
		}})
		_, err := d.Execute(context.Background(), "bad", nil)
		assert.ErrorIs(t, err, relay.ErrToolExecution)
	})

	t.Run("empty output becomes null", func(t *testing.T) {
		t.Parallel()
		d := dispatch.New([]relay.ToolDefinition{{
			Tool: relay.Tool{Name: "void"},
			Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
				return nil, nil
			},
		}})
		out, err := d.Execute(context.Background(), "void", nil)
		require.NoError(t, err)
		assert.Equal(t, "null", string(out))
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := dispatch.New([]relay.ToolDefinition{echoTool()})
		_, err := d.Execute(ctx, "echo", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDispatcher_Tools(t *testing.T) {
	t.Parallel()
	a := relay.ToolDefinition{Tool: relay.Tool{Name: "a"}}
	b := relay.ToolDefinition{Tool: relay.Tool{Name: "b"}}
	a2 := relay.ToolDefinition{Tool: relay.Tool{Name: "a", Description: "second"}}

	tools := dispatch.New([]relay.ToolDefinition{a, b, a2}).Tools()

	require.Len(t, tools, 2)
	assert.Equal(t, "a", tools[0].Name)
	assert.Equal(t, "second", tools[0].Description)
	assert.Equal(t, "b", tools[1].Name)
}

func TestSanitizeArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid passes through", `{"a":"b"}`, `{"a":"b"}`},
		{"empty becomes object", "  ", `{}`},
		{"newline in string", "{\"a\":\"x\ny\"}", `{"a":"x\ny"}`},
		{"tab and carriage return", "{\"a\":\"x\t\ry\"}", `{"a":"x\t\ry"}`},
		{"other control byte", "{\"a\":\"x\x01y\"}", `{"a":"x\u0001y"}`},
		{"escaped quote kept", "{\"a\":\"say \\\"hi\\\"\nnow\"}", `{"a":"say \"hi\"\nnow"}`},
		{"whitespace outside strings kept", "{\n\"a\":\"x\ny\"\n}", "{\n\"a\":\"x\\ny\"\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := dispatch.SanitizeArguments(json.RawMessage(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("unrecoverable", func(t *testing.T) {
		t.Parallel()
		_, err := dispatch.SanitizeArguments(json.RawMessage(`[1,`))
		assert.ErrorIs(t, err, relay.ErrSerialization)
	})
}

func TestTyped(t *testing.T) {
	t.Parallel()

	type args struct {
		Name string `json:"name"`
	}
	type out struct {
		Greeting string `json:"greeting"`
	}
	h := dispatch.Typed(func(_ context.Context, a args) (out, error) {
		return out{Greeting: "hello " + a.Name}, nil
	})

	t.Run("decodes and encodes", func(t *testing.T) {
		t.Parallel()
		got, err := h(context.Background(), json.RawMessage(`{"name":"ada","extra":1}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"greeting":"hello ada"}`, string(got))
	})

	t.Run("wrong argument types", func(t *testing.T) {
		t.Parallel()
		_, err := h(context.Background(), json.RawMessage(`{"name":5}`))
		assert.ErrorIs(t, err, relay.ErrSerialization)
	})
}
