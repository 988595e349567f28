// Package keybackend builds the credential store selected by configuration
// and loads the backend application key.
package keybackend

import (
	"context"
	"fmt"

	"github.com/sagarc03/stowfront"
	"github.com/sagarc03/stowfront/database"
	"github.com/sagarc03/stowfront/filesystem"
)

// Store is a credential store that holds resources.
type Store interface {
	stowfront.CredentialStore
	Close() error
}

// Config selects and configures the credential store.
type Config struct {
	Type     string           `mapstructure:"type" validate:"required,oneof=sqlite postgres redis file memory"`
	DSN      string           `mapstructure:"dsn" validate:"required_if=Type sqlite,required_if=Type postgres"`
	Path     string           `mapstructure:"path" validate:"required_if=Type file"`
	RedisURL string           `mapstructure:"redis_url" validate:"required_if=Type redis"`
	Prefix   string           `mapstructure:"prefix"`
	Tables   stowfront.Tables `mapstructure:"tables"`
}

// New opens the store named by cfg.Type. SQL stores are migrated and
// validated before they are returned.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMapStore(), nil
	case "file":
		fs, err := filesystem.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		return fs, nil
	case "redis":
		rs, err := NewRedisStore(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "sqlite", "postgres":
		db, err := database.Open(ctx, database.Config{Type: cfg.Type, DSN: cfg.DSN, Tables: cfg.Tables})
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		return &sqlStore{CredentialStore: db.GetRepo(), db: db}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, cfg.Type)
	}
}

// sqlStore ties a repo to the database it has to close.
type sqlStore struct {
	stowfront.CredentialStore
	db database.Database
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
