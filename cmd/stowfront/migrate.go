package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowfront/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the credential table in the SQL store",
	Long: `Create the credential table for the sqlite or postgres credential store
and validate its schema. serve and refresh migrate on their own; this command
is for provisioning with a privileged database user.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}

	if cfg.Store.Type != "sqlite" && cfg.Store.Type != "postgres" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "store type %q has no schema to migrate\n", cfg.Store.Type)
		return nil
	}

	db, err := database.Connect(ctx, database.Config{
		Type:   cfg.Store.Type,
		DSN:    cfg.Store.DSN,
		Tables: cfg.Store.Tables,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if err := db.Validate(ctx); err != nil {
		return fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("database migration complete", "type", cfg.Store.Type, "table", cfg.Store.Tables.Credentials)
	return nil
}
