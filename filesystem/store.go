// Package filesystem stores the credential record as a JSON file in a
// directory. Writes are atomic (temp file, sync, rename) so a crash never
// leaves a half-written record behind.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/stowfront"
)

const fileSuffix = ".json"

// record is the on-disk envelope around a stored value.
type record struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store is a stowfront.CredentialStore on a directory.
type Store struct {
	root *os.Root
	now  func() time.Time
}

// NewFileStore creates a Store on root. The root keeps every file operation
// inside the directory.
func NewFileStore(root *os.Root) *Store {
	return &Store{root: root, now: time.Now}
}

// Open creates dir if needed and returns a Store on it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}

	return NewFileStore(root), nil
}

// Get returns the value under key. Missing and expired records are
// stowfront.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := fileName(key)
	if err != nil {
		return nil, err
	}

	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, stowfront.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open record: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rec record
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	if rec.ExpiresAt != nil && !s.now().Before(*rec.ExpiresAt) {
		return nil, stowfront.ErrNotFound
	}

	return []byte(rec.Value), nil
}

// Put atomically replaces the record under key. A ttl of zero or less
// stores it without expiry.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := fileName(key)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	rec := record{Value: string(value), UpdatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not encode record: %w", err)
	}

	return s.writeAtomic(name, data)
}

// Close releases the directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

func (s *Store) writeAtomic(name string, data []byte) error {
	tmpFile := tmpFileName()
	t, createErr := s.root.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if createErr != nil {
		return fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("could not write record: %w", err)
	}

	if err := t.Sync(); err != nil {
		return fmt.Errorf("could not sync written file: %w", err)
	}

	if err := t.Close(); err != nil {
		return fmt.Errorf("could not close temp file: %w", err)
	}

	if err := s.root.Rename(tmpFile, name); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	success = true
	return nil
}

// fileName maps key to a file directly inside the root. Dot files are
// reserved for temp files.
func fileName(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: invalid store key %q", stowfront.ErrInvalidInput, key)
	}
	return key + fileSuffix, nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
