package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Authorize against the backend and store the new credential",
	Long: `Run the account authorization handshake once and write the result to the
credential store. Running servers pick it up on their next reload.

Meant for cron jobs or for seeding the store before the first request.
The authorization token itself is never printed.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().String("bucket", "", "bucket to authorize for (env: STOWFRONT_BACKEND_BUCKET)")
	refreshCmd.Flags().String("key-file", "", "JSON file holding key_id and application_key")

	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}

	manager, _, store, err := openManager(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cred, err := manager.ForceRefresh(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "bucket id:    %s\n", cred.BucketID)
	_, _ = fmt.Fprintf(out, "api url:      %s\n", cred.APIURL)
	_, _ = fmt.Fprintf(out, "download url: %s\n", cred.DownloadURL)
	_, _ = fmt.Fprintf(out, "issued at:    %s\n", cred.IssuedAt.UTC().Format(time.RFC3339))
	return nil
}
