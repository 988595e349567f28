package keybackend

import (
	"context"
	"sync"
	"time"

	"github.com/sagarc03/stowfront"
)

type mapEntry struct {
	value     []byte
	expiresAt time.Time
}

// MapStore keeps values in process memory. Nothing survives a restart, so
// every start performs a fresh authorization.
type MapStore struct {
	mu      sync.RWMutex
	entries map[string]mapEntry
	now     func() time.Time
}

// NewMapStore creates an empty in-memory store.
func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[string]mapEntry), now: time.Now}
}

// Get returns a copy of the live value under key.
func (s *MapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, stowfront.ErrNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Put stores a copy of value under key.
func (s *MapStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := mapEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MapStore) Close() error {
	return nil
}
