package relay

import (
	"context"
	"time"
)

// SessionKind distinguishes anonymous from identified sessions.
type SessionKind string

const (
	Guest         SessionKind = "guest"
	Authenticated SessionKind = "authenticated"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	return k == Guest || k == Authenticated
}

// SessionRef identifies a session from the caller's side.
type SessionRef struct {
	ID   string
	Kind SessionKind
}

// Session represents one logical conversation.
//
// History is the literal context sent to the model, in conversation order.
// Turn counts completed and in-flight turns and is stamped onto tool calls.
type Session struct {
	ID               string
	Kind             SessionKind
	History          []Item
	LatestResponseID string
	Turn             int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a copy of s whose History can be appended to without
// affecting s.
func (s Session) Clone() Session {
	c := s
	c.History = append([]Item(nil), s.History...)
	return c
}

// HistoryStore loads and replaces whole session records. Load returns an
// error wrapping ErrNotFound when no active record exists. Save replaces the
// record; there is no partial update. Reset discards (guest) or deactivates
// (authenticated) the active record.
type HistoryStore interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Reset(ctx context.Context, id string) error
}

// ChatService is the public surface of the session policy.
type ChatService interface {
	// SendMessage runs one turn and returns the final text. On failure the
	// returned text is still safe to show and the error wraps ErrTurnFailed.
	SendMessage(ctx context.Context, ref SessionRef, text string) (string, error)
	// StreamMessage runs one turn and streams caller-facing updates.
	StreamMessage(ctx context.Context, ref SessionRef, text string) <-chan Update
	// ResetConversation starts the session over.
	ResetConversation(ctx context.Context, ref SessionRef) error
}
