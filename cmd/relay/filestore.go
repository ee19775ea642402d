package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	relayjson "github.com/fwojciec/relay/json"
)

var _ relay.HistoryStore = (*fileStore)(nil)

// fileStore keeps local conversations as JSON files, one per user. Reset
// renames the active file aside instead of deleting it.
type fileStore struct {
	dir string
	now func() time.Time
}

func newFileStore(dir string) *fileStore {
	return &fileStore{dir: dir, now: time.Now}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".relay", "sessions")
}

func (s *fileStore) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid session id %q: %w", id, relay.ErrValidation)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *fileStore) Load(_ context.Context, id string) (relay.Session, error) {
	path, err := s.path(id)
	if err != nil {
		return relay.Session{}, err
	}
	session, err := relayjson.Load(path)
	if err != nil {
		return relay.Session{}, err
	}
	if err := relay.ValidateHistory(session.History); err != nil {
		return relay.Session{}, fmt.Errorf("%s: %w", path, err)
	}
	return session, nil
}

func (s *fileStore) Save(_ context.Context, session relay.Session) error {
	path, err := s.path(session.ID)
	if err != nil {
		return err
	}
	if err := relayjson.Save(path, session); err != nil {
		return fmt.Errorf("%w: %w", relay.ErrPersistence, err)
	}
	return nil
}

func (s *fileStore) Reset(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	archived := filepath.Join(s.dir, fmt.Sprintf("%s.%d.inactive.json", id, s.now().UnixNano()))
	if err := os.Rename(path, archived); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", relay.ErrPersistence, err)
	}
	return nil
}
