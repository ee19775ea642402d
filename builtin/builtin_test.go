package builtin_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/builtin"
	"github.com/fwojciec/relay/dispatch"
	"github.com/fwojciec/relay/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixed }

func TestDefinitions(t *testing.T) {
	t.Parallel()
	defs := builtin.Definitions(clock)
	require.Len(t, defs, 2)
	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.True(t, json.Valid(def.Parameters), def.Name)
		assert.NotNil(t, def.Handler)
	}
}

func TestRegister_Visibility(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := registry.New()
	require.NoError(t, builtin.Register(reg, clock))

	guest, err := reg.Resolve(ctx, relay.Guest)
	require.NoError(t, err)
	require.Len(t, guest, 1)
	assert.Equal(t, "current_time", guest[0].Name)

	auth, err := reg.Resolve(ctx, relay.Authenticated)
	require.NoError(t, err)
	assert.Len(t, auth, 2)
}

func TestCurrentTime(t *testing.T) {
	t.Parallel()
	d := dispatch.New(builtin.Definitions(clock))

	t.Run("defaults to UTC", func(t *testing.T) {
		t.Parallel()
		out, err := d.Execute(context.Background(), "current_time", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"time":"2026-03-02T14:30:00Z","timezone":"UTC","weekday":"Monday"}`, string(out))
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Parallel()
		_, err := d.Execute(context.Background(), "current_time", json.RawMessage(`{"timezone":"Mars/Olympus"}`))
		require.ErrorIs(t, err, relay.ErrToolExecution)
	})
}

func TestWordCount(t *testing.T) {
	t.Parallel()
	d := dispatch.New(builtin.Definitions(clock))
	tests := []struct {
		name string
		args string
		want string
	}{
		{"empty", `{"text":""}`, `{"words":0,"characters":0,"lines":0}`},
		{"sentence", `{"text":"hello big world"}`, `{"words":3,"characters":15,"lines":1}`},
		{"multiline unicode", `{"text":"zażółć\ngęślą jaźń"}`, `{"words":3,"characters":17,"lines":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := d.Execute(context.Background(), "word_count", json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}

	t.Run("bad arguments", func(t *testing.T) {
		t.Parallel()
		_, err := d.Execute(context.Background(), "word_count", json.RawMessage(`{"text":5}`))
		require.ErrorIs(t, err, relay.ErrSerialization)
	})
}
