package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stowfront/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "stowfront",
	Short:   "Public HTTP front for a private B2 bucket",
	Long: `Stowfront serves directory listings and objects from a private
Backblaze B2 bucket over plain HTTP, keeping the account credential fresh
and caching responses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("store-type", "", "credential store: sqlite, postgres, redis, file, memory (env: STOWFRONT_STORE_TYPE)")
	rootCmd.PersistentFlags().String("store-dsn", "", "credential store connection string (default: stowfront.db, env: STOWFRONT_STORE_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: STOWFRONT_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
