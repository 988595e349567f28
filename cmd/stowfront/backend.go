package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sagarc03/stowfront"
	"github.com/sagarc03/stowfront/b2"
	"github.com/sagarc03/stowfront/config"
	"github.com/sagarc03/stowfront/keybackend"
)

// openManager builds the backend client and the credential manager on top of
// the configured store. The caller closes the returned store.
func openManager(ctx context.Context, cfg *config.Config) (*stowfront.CredentialManager, *b2.Client, keybackend.Store, error) {
	client, err := newBackendClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := keybackend.New(ctx, cfg.Store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	slog.Info("credential store ready", "type", cfg.Store.Type)

	manager := stowfront.NewCredentialManager(store, client, cfg.Credentials.Policy())
	return manager, client, store, nil
}

func newBackendClient(cfg *config.Config) (*b2.Client, error) {
	key, err := keybackend.ResolveKey(keybackend.KeyPair{
		KeyID:          cfg.Backend.KeyID,
		ApplicationKey: cfg.Backend.ApplicationKey,
	}, cfg.Backend.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("resolve application key: %w", err)
	}

	opts := []b2.Option{}
	if cfg.Backend.Timeout > 0 {
		opts = append(opts, b2.WithTimeout(cfg.Backend.Timeout))
	}

	client, err := b2.New(b2.Config{
		KeyID:          key.KeyID,
		ApplicationKey: key.ApplicationKey,
		BucketName:     cfg.Backend.Bucket,
		AuthorizeURL:   cfg.Backend.AuthorizeURL,
		MaxFileCount:   cfg.Backend.MaxFileCount,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
