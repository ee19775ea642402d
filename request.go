package relay

import "fmt"

// Request carries one model round-trip. The provider uses its own defaults
// when fields are zero.
//
// History is the full (already truncated) context. When ContinuationToken is
// set, providers that keep server-side state send only Input, the items
// appended since the response identified by the token; providers without
// server-side state ignore the token and send History.
type Request struct {
	Model             string // model ID, provider-specific; empty = provider default
	Instructions      string
	History           []Item
	Input             []Item
	Tools             []Tool
	ContinuationToken string
	MaxOutputTokens   int // 0 = provider default
}

// Validate checks universal constraints on Request.
func (r Request) Validate() error {
	if r.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must be non-negative, got %d: %w", r.MaxOutputTokens, ErrValidation)
	}
	if len(r.History) == 0 && len(r.Input) == 0 {
		return fmt.Errorf("request has no history: %w", ErrValidation)
	}
	return nil
}
