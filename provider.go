package relay

import "context"

// Provider is a strategy pattern interface for LLM providers.
//
// Stream opens one streaming request. Errors wrapping ErrContextOverflow,
// whether returned here or from Stream.Next, are retriable by the
// orchestrator; all others are fatal for the turn.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
