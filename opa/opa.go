// Package opa decides tool visibility with a Rego policy.
package opa

import (
	"context"
	"fmt"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/registry"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Compile-time interface check.
var _ registry.Filter = (*Policy)(nil)

// Query is the rule evaluated for every tool. It must produce a boolean.
const Query = "data.relay.catalog.visible"

// DefaultPolicy mirrors registry.PublishedOnly.
const DefaultPolicy = `package relay.catalog

default visible := false

visible if input.kind == "authenticated"

visible if {
	input.kind == "guest"
	input.tool.published
}
`

// Policy is a prepared Rego query.
type Policy struct {
	query rego.PreparedEvalQuery
}

// New compiles module, which must define Query.
func New(ctx context.Context, module string) (*Policy, error) {
	r := rego.New(
		rego.Query(Query),
		rego.Module("catalog.rego", module),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare rego: %w", err)
	}
	return &Policy{query: query}, nil
}

// Visible evaluates the policy with the session kind and tool as input.
// An undefined result hides the tool.
func (p *Policy) Visible(ctx context.Context, kind relay.SessionKind, def relay.ToolDefinition) (bool, error) {
	input := map[string]any{
		"kind": string(kind),
		"tool": map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"published":   def.Published,
		},
	}
	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	visible, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool: %w", results[0].Expressions[0].Value, relay.ErrValidation)
	}
	return visible, nil
}
