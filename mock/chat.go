package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.ChatService = (*ChatService)(nil)

// ChatService is a test double for relay.ChatService.
type ChatService struct {
	SendMessageFn       func(ctx context.Context, ref relay.SessionRef, text string) (string, error)
	StreamMessageFn     func(ctx context.Context, ref relay.SessionRef, text string) <-chan relay.Update
	ResetConversationFn func(ctx context.Context, ref relay.SessionRef) error
}

// SendMessage delegates to SendMessageFn.
func (c *ChatService) SendMessage(ctx context.Context, ref relay.SessionRef, text string) (string, error) {
	return c.SendMessageFn(ctx, ref, text)
}

// StreamMessage delegates to StreamMessageFn.
func (c *ChatService) StreamMessage(ctx context.Context, ref relay.SessionRef, text string) <-chan relay.Update {
	return c.StreamMessageFn(ctx, ref, text)
}

// ResetConversation delegates to ResetConversationFn.
func (c *ChatService) ResetConversation(ctx context.Context, ref relay.SessionRef) error {
	return c.ResetConversationFn(ctx, ref)
}
