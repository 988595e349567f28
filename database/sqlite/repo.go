package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sagarc03/stowfront"
)

// timestamps are stored as RFC3339Nano text in UTC
const timeLayout = time.RFC3339Nano

// Repo is a stowfront.CredentialStore on a SQLite table.
type Repo struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

func newRepo(db *sql.DB, tableName string) *Repo {
	return &Repo{db: db, tableName: tableName, now: time.Now}
}

// NewRepo creates a Repo on an already migrated database.
func NewRepo(db *sql.DB, tables stowfront.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}
	return newRepo(db, tables.Credentials), nil
}

// Get returns the value under key. Expired rows are reported as
// stowfront.ErrNotFound and left for the next Put to overwrite.
func (r *Repo) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE key = ?`, quoteIdentifier(r.tableName))

	var value string
	var expiresAt sql.NullString
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stowfront.ErrNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	if expiresAt.Valid {
		exp, err := time.Parse(timeLayout, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("get: parse expires_at: %w", err)
		}
		if !r.now().Before(exp) {
			return nil, stowfront.ErrNotFound
		}
	}

	return []byte(value), nil
}

// Put upserts value under key. A ttl of zero or less stores it without expiry.
func (r *Repo) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now().UTC()

	var expiresAt sql.NullString
	if ttl > 0 {
		expiresAt = sql.NullString{String: now.Add(ttl).Format(timeLayout), Valid: true}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, quoteIdentifier(r.tableName))

	if _, err := r.db.ExecContext(ctx, query, key, string(value), expiresAt, now.Format(timeLayout)); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}
