// Package registry holds the runtime tool catalog.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fwojciec/relay"
)

// Compile-time interface check.
var _ relay.Catalog = (*Registry)(nil)

// Filter decides whether a tool is visible to a session kind.
type Filter interface {
	Visible(ctx context.Context, kind relay.SessionKind, def relay.ToolDefinition) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, kind relay.SessionKind, def relay.ToolDefinition) (bool, error)

// Visible calls f.
func (f FilterFunc) Visible(ctx context.Context, kind relay.SessionKind, def relay.ToolDefinition) (bool, error) {
	return f(ctx, kind, def)
}

// PublishedOnly shows guests only published tools and authenticated sessions
// every tool.
var PublishedOnly Filter = FilterFunc(func(_ context.Context, kind relay.SessionKind, def relay.ToolDefinition) (bool, error) {
	return kind == relay.Authenticated || def.Published, nil
})

// Registry is a concurrency-safe tool catalog. Tools can be registered and
// removed while sessions are running; every Resolve sees the current set.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]relay.ToolDefinition
	filter Filter
}

// Option configures a Registry.
type Option func(*Registry)

// WithFilter replaces the PublishedOnly visibility filter.
func WithFilter(f Filter) Option {
	return func(r *Registry) {
		if f != nil {
			r.filter = f
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		defs:   make(map[string]relay.ToolDefinition),
		filter: PublishedOnly,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces tools by name.
func (r *Registry) Register(defs ...relay.ToolDefinition) error {
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("tool without name: %w", relay.ErrValidation)
		}
		if def.Handler == nil {
			return fmt.Errorf("tool %q has no handler: %w", def.Name, relay.ErrValidation)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range defs {
		r.defs[def.Name] = def
	}
	return nil
}

// Unregister removes tools by name. Unknown names are ignored.
func (r *Registry) Unregister(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		delete(r.defs, name)
	}
}

// Resolve returns the tools visible to kind, sorted by name.
func (r *Registry) Resolve(ctx context.Context, kind relay.SessionKind) ([]relay.ToolDefinition, error) {
	r.mu.RLock()
	all := make([]relay.ToolDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		all = append(all, def)
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	out := all[:0]
	for _, def := range all {
		ok, err := r.filter.Visible(ctx, kind, def)
		if err != nil {
			return nil, fmt.Errorf("filter tool %q: %w", def.Name, err)
		}
		if ok {
			out = append(out, def)
		}
	}
	return out, nil
}
