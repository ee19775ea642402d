package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func def(name string, published bool) relay.ToolDefinition {
	return relay.ToolDefinition{
		Tool:      relay.Tool{Name: name},
		Published: published,
		Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
}

func names(defs []relay.ToolDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("guests see published tools", func(t *testing.T) {
		t.Parallel()
		r := registry.New()
		require.NoError(t, r.Register(def("b", true), def("a", false), def("c", true)))

		guest, err := r.Resolve(context.Background(), relay.Guest)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, names(guest))

		auth, err := r.Resolve(context.Background(), relay.Authenticated)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names(auth))
	})

	t.Run("changes apply to the next resolve", func(t *testing.T) {
		t.Parallel()
		r := registry.New()
		require.NoError(t, r.Register(def("a", true)))
		r.Unregister("a", "unknown")
		require.NoError(t, r.Register(def("b", true)))

		got, err := r.Resolve(context.Background(), relay.Guest)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, names(got))
	})

	t.Run("custom filter", func(t *testing.T) {
		t.Parallel()
		r := registry.New(registry.WithFilter(registry.FilterFunc(
			func(_ context.Context, _ relay.SessionKind, d relay.ToolDefinition) (bool, error) {
				return d.Name == "b", nil
			})))
		require.NoError(t, r.Register(def("a", true), def("b", false)))

		got, err := r.Resolve(context.Background(), relay.Authenticated)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, names(got))
	})

	t.Run("filter error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		r := registry.New(registry.WithFilter(registry.FilterFunc(
			func(context.Context, relay.SessionKind, relay.ToolDefinition) (bool, error) {
				return false, boom
			})))
		require.NoError(t, r.Register(def("a", true)))

		_, err := r.Resolve(context.Background(), relay.Guest)
		assert.ErrorIs(t, err, boom)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("rejects missing name", func(t *testing.T) {
		t.Parallel()
		err := registry.New().Register(def("", true))
		assert.ErrorIs(t, err, relay.ErrValidation)
	})

	t.Run("rejects missing handler", func(t *testing.T) {
		t.Parallel()
		err := registry.New().Register(relay.ToolDefinition{Tool: relay.Tool{Name: "x"}})
		assert.ErrorIs(t, err, relay.ErrValidation)
	})
}
