package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.ToolExecutor = (*ToolExecutor)(nil)
	_ relay.Catalog      = (*Catalog)(nil)
)

// ToolExecutor is a test double for relay.ToolExecutor.
// Set ExecuteFn before calling Execute.
type ToolExecutor struct {
	ExecuteFn func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
}

// Execute delegates to ExecuteFn.
func (e *ToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return e.ExecuteFn(ctx, name, args)
}

// Catalog is a test double for relay.Catalog.
// Set ResolveFn before calling Resolve.
type Catalog struct {
	ResolveFn func(ctx context.Context, kind relay.SessionKind) ([]relay.ToolDefinition, error)
}

// Resolve delegates to ResolveFn.
func (c *Catalog) Resolve(ctx context.Context, kind relay.SessionKind) ([]relay.ToolDefinition, error) {
	return c.ResolveFn(ctx, kind)
}
