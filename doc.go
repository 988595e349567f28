// Package stowfront puts a public, read-only HTTP front in front of a private
// object-storage bucket. It hides the storage provider behind obfuscated error
// pages, renders directory listings and proxies object downloads.
//
// # Key Components
//
//   - CredentialManager: owns the backend credential and its staleness tiers
//   - CredentialStore: interface for persisting the credential (SQLite,
//     PostgreSQL, Redis, file, memory)
//   - Authorizer: the upstream authorization handshake (see the b2 package)
//   - BuildListing: turns raw listing records into a render-ready Listing
//
// # Staleness Tiers
//
// A credential is measured from the moment it was installed in the process:
//
//   - TierFresh: served with no I/O
//   - TierStale: served as is while one background reload from the store runs
//   - TierInvalid: callers block on a synchronous reload, falling back to the
//     upstream handshake when the store is empty
//
// # Example Usage
//
//	manager := stowfront.NewCredentialManager(store, client, stowfront.DefaultCredentialPolicy())
//	defer manager.Wait()
//
//	cred, err := manager.EnsureFresh(ctx)
//	if err != nil {
//	    return err
//	}
//
// See the http package for the request pipeline and the b2 package for the
// backend client.
package stowfront
