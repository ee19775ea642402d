// Package json serializes conversation histories and sessions.
//
// Histories use a versioned envelope whose items carry a type discriminator
// for the sealed relay.Item interface.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
)

const version = 1

// historyEnvelope is the v1 wire format for a persisted history.
type historyEnvelope struct {
	Version int       `json:"version"`
	Items   []itemDTO `json:"items"`
}

// sessionEnvelope is the v1 wire format for a persisted session.
type sessionEnvelope struct {
	Version          int       `json:"version"`
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	LatestResponseID string    `json:"latest_response_id,omitempty"`
	Turn             int       `json:"turn"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Items            []itemDTO `json:"items"`
}

// MarshalHistory serializes items in v1 envelope format.
func MarshalHistory(items []relay.Item) ([]byte, error) {
	dtos, err := marshalItems(items)
	if err != nil {
		return nil, err
	}
	return json.Marshal(historyEnvelope{Version: version, Items: dtos})
}

// UnmarshalHistory deserializes items from v1 envelope format.
func UnmarshalHistory(data []byte) ([]relay.Item, error) {
	var env historyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w: %w", relay.ErrSerialization, err)
	}
	if env.Version != version {
		return nil, fmt.Errorf("unsupported envelope version %d: %w", env.Version, relay.ErrSerialization)
	}
	return unmarshalItems(env.Items)
}

// MarshalSession serializes a Session to JSON in v1 envelope format.
func MarshalSession(s relay.Session) ([]byte, error) {
	dtos, err := marshalItems(s.History)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(sessionEnvelope{
		Version:          version,
		ID:               s.ID,
		Kind:             string(s.Kind),
		LatestResponseID: s.LatestResponseID,
		Turn:             s.Turn,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		Items:            dtos,
	}, "", "  ")
}

// UnmarshalSession deserializes a Session from JSON in v1 envelope format.
func UnmarshalSession(data []byte) (relay.Session, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return relay.Session{}, fmt.Errorf("unmarshal envelope: %w: %w", relay.ErrSerialization, err)
	}
	if env.Version != version {
		return relay.Session{}, fmt.Errorf("unsupported envelope version %d: %w", env.Version, relay.ErrSerialization)
	}
	items, err := unmarshalItems(env.Items)
	if err != nil {
		return relay.Session{}, err
	}
	return relay.Session{
		ID:               env.ID,
		Kind:             relay.SessionKind(env.Kind),
		History:          items,
		LatestResponseID: env.LatestResponseID,
		Turn:             env.Turn,
		CreatedAt:        env.CreatedAt,
		UpdatedAt:        env.UpdatedAt,
	}, nil
}

// Save writes a Session to a JSON file, creating parent directories as needed.
func Save(path string, s relay.Session) error {
	data, err := MarshalSession(s)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Session from a JSON file. A missing file yields an error
// wrapping relay.ErrNotFound.
func Load(path string) (relay.Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return relay.Session{}, fmt.Errorf("read %s: %w", path, relay.ErrNotFound)
	}
	if err != nil {
		return relay.Session{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalSession(data)
}
