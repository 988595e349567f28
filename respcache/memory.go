package respcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// Memory keeps snapshots in a buntdb database. With path ":memory:" (the
// default) nothing touches disk; a file path persists entries across restarts.
type Memory struct {
	db *buntdb.DB
}

// NewMemory opens the database at path.
func NewMemory(path string) (*Memory, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open response cache: %w", err)
	}

	return &Memory{db: db}, nil
}

func (m *Memory) Match(_ context.Context, key string) (Snapshot, error) {
	var raw string
	err := m.db.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get(key)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return Snapshot{}, ErrMiss
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("response cache get: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cached response: %w", err)
	}
	return snap, nil
}

func (m *Memory) Put(_ context.Context, key string, snap Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}

	err = m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(payload), &buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
	if err != nil {
		return fmt.Errorf("response cache set: %w", err)
	}
	return nil
}

func (m *Memory) Close() error {
	return m.db.Close()
}
