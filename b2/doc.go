// Package b2 is a small client for the parts of the B2 native API the front
// needs: account authorization, bucket lookup, delimiter listings and
// authenticated downloads by name.
//
// Client implements stowfront.Authorizer, so it can be handed straight to
// stowfront.NewCredentialManager:
//
//	client, err := b2.New(b2.Config{
//	    KeyID:          keyID,
//	    ApplicationKey: appKey,
//	    BucketName:     "my-bucket",
//	})
//	if err != nil {
//	    return err
//	}
//	manager := stowfront.NewCredentialManager(store, client, stowfront.DefaultCredentialPolicy())
//
// Transport failures and timeouts are reported as stowfront.ErrUpstreamUnavailable,
// unexpected payloads as stowfront.ErrUpstreamProtocol. Non-2xx answers from
// the listing and download endpoints are *stowfront.BackendError values that
// carry the status code.
package b2
