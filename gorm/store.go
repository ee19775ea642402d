// Package gorm implements the authenticated HistoryStore on a relational
// database through gorm. Each user has at most one active conversation row
// holding the serialized history and the latest continuation token.
package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/relay"
	relayjson "github.com/fwojciec/relay/json"
	"gorm.io/gorm"
)

var _ relay.HistoryStore = (*Store)(nil)

// Store persists authenticated sessions.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens the database and migrates the conversations table.
func NewStore(driver, dsn string, opts ...Option) (*Store, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&conversationRow{}); err != nil {
		return nil, fmt.Errorf("migrate history store: %w", err)
	}
	return s, nil
}

// Load returns the user's active conversation. The stored history must
// satisfy relay.ValidateHistory.
func (s *Store) Load(ctx context.Context, userID string) (relay.Session, error) {
	row, err := s.active(s.db.WithContext(ctx), userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return relay.Session{}, fmt.Errorf("conversation for user %s: %w", userID, relay.ErrNotFound)
	}
	if err != nil {
		return relay.Session{}, fmt.Errorf("load conversation: %w", err)
	}
	return row.toSession()
}

// Save replaces the active conversation, creating one if the user has none.
func (s *Store) Save(ctx context.Context, session relay.Session) error {
	if session.ID == "" {
		return fmt.Errorf("save conversation without user id: %w", relay.ErrPersistence)
	}
	history, err := relayjson.MarshalHistory(session.History)
	if err != nil {
		return fmt.Errorf("encode history: %w: %w", relay.ErrPersistence, err)
	}
	now := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.active(tx, session.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created := session.CreatedAt
			if created.IsZero() {
				created = now
			}
			return tx.Create(&conversationRow{
				UserID:           session.ID,
				Active:           true,
				History:          string(history),
				LatestResponseID: session.LatestResponseID,
				Turn:             session.Turn,
				CreatedAt:        created,
				UpdatedAt:        now,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&conversationRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"history":            string(history),
			"latest_response_id": session.LatestResponseID,
			"turn":               session.Turn,
			"updated_at":         now,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("save conversation: %w: %w", relay.ErrPersistence, err)
	}
	return nil
}

// Reset deactivates the user's active conversation. The row is kept; the
// next Save starts a new one.
func (s *Store) Reset(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&conversationRow{}).
		Where("user_id = ? AND active = ?", userID, true).
		Updates(map[string]any{"active": false, "updated_at": s.now()}).Error
	if err != nil {
		return fmt.Errorf("reset conversation: %w: %w", relay.ErrPersistence, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) active(db *gorm.DB, userID string) (conversationRow, error) {
	var row conversationRow
	err := db.Where("user_id = ? AND active = ?", userID, true).Order("id DESC").Take(&row).Error
	return row, err
}

type conversationRow struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           string    `gorm:"size:191;not null;index"`
	Active           bool      `gorm:"not null;index"`
	History          string    `gorm:"type:text;not null"`
	LatestResponseID string    `gorm:"size:191"`
	Turn             int       `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (conversationRow) TableName() string {
	return "conversations"
}

func (r conversationRow) toSession() (relay.Session, error) {
	items, err := relayjson.UnmarshalHistory([]byte(r.History))
	if err != nil {
		return relay.Session{}, fmt.Errorf("decode conversation %d: %w", r.ID, err)
	}
	if err := relay.ValidateHistory(items); err != nil {
		return relay.Session{}, fmt.Errorf("conversation %d: %w", r.ID, err)
	}
	return relay.Session{
		ID:               r.UserID,
		Kind:             relay.Authenticated,
		History:          items,
		LatestResponseID: r.LatestResponseID,
		Turn:             r.Turn,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}
