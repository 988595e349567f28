package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/stowfront"
	"github.com/sagarc03/stowfront/database/postgres"
	"github.com/sagarc03/stowfront/database/sqlite"
)

// Config holds the configuration for connecting to a SQL credential store.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn"`
	// Tables holds the table names
	Tables stowfront.Tables `mapstructure:"tables"`
}

// Database is a connected SQL credential store.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() stowfront.CredentialStore
	Close() error
}

// Connect opens the configured database. It does not migrate; callers run
// Migrate and Validate as needed.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	var (
		db  Database
		err error
	)
	switch cfg.Type {
	case "sqlite":
		db, err = sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.DSN, cfg.Tables)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects, pings, migrates and validates in one step, returning a
// ready-to-use database.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"ping", db.Ping},
		{"migrate", db.Migrate},
		{"validate", db.Validate},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open %s database: %s: %w", cfg.Type, step.name, err)
		}
	}

	return db, nil
}
