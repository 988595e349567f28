package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/stowfront/b2"
	"github.com/sagarc03/stowfront/keybackend"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a config file interactively",
	Long: `Write a config file interactively.

You will be prompted for:
  - Bucket name
  - Application key id and key
  - Credential store type and location
  - Listen port

The application key is written to a separate key file (mode 0600) that the
config file points to with backend.key_file. The key is tested against the
backend before saving.`,
	RunE: runConfigure,
}

var (
	configureOutput  string
	configureKeyFile string
)

func init() {
	configureCmd.Flags().StringVarP(&configureOutput, "output", "o", "config.yaml", "config file to write")
	configureCmd.Flags().StringVar(&configureKeyFile, "key-output", "", "key file to write (default: b2key.json next to the config file)")

	rootCmd.AddCommand(configureCmd)
}

// fileConfig is the subset of the configuration written by configure.
type fileConfig struct {
	Server  fileServer  `yaml:"server"`
	Backend fileBackend `yaml:"backend"`
	Store   fileStore   `yaml:"store"`
}

type fileServer struct {
	Port int `yaml:"port"`
}

type fileBackend struct {
	Bucket  string `yaml:"bucket"`
	KeyFile string `yaml:"key_file"`
}

type fileStore struct {
	Type     string `yaml:"type"`
	DSN      string `yaml:"dsn,omitempty"`
	Path     string `yaml:"path,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
}

var storeTypes = []string{"sqlite", "postgres", "redis", "file", "memory"}

func runConfigure(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(configureOutput); err == nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", configureOutput),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	bucket, err := (&promptui.Prompt{Label: "Bucket name", Validate: required("bucket name")}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	keyID, err := (&promptui.Prompt{Label: "Application key ID", Validate: required("key id")}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	appKey, err := (&promptui.Prompt{Label: "Application key", Mask: '*', Validate: required("application key")}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	storeSelect := promptui.Select{
		Label: "Credential store",
		Items: storeTypes,
	}
	_, storeType, err := storeSelect.Run()
	if err != nil {
		return handlePromptError(err)
	}

	store := fileStore{Type: storeType}
	switch storeType {
	case "sqlite":
		store.DSN, err = (&promptui.Prompt{Label: "SQLite file", Default: "stowfront.db"}).Run()
	case "postgres":
		store.DSN, err = (&promptui.Prompt{Label: "Postgres DSN", Validate: required("dsn")}).Run()
	case "redis":
		store.RedisURL, err = (&promptui.Prompt{Label: "Redis URL", Default: "redis://localhost:6379/0"}).Run()
	case "file":
		store.Path, err = (&promptui.Prompt{Label: "Credential directory", Default: "./credentials"}).Run()
	}
	if err != nil {
		return handlePromptError(err)
	}

	portStr, err := (&promptui.Prompt{
		Label:   "Listen port",
		Default: "8787",
		Validate: func(input string) error {
			p, convErr := strconv.Atoi(input)
			if convErr != nil || p < 1 || p > 65535 {
				return errors.New("port must be between 1 and 65535")
			}
			return nil
		},
	}).Run()
	if err != nil {
		return handlePromptError(err)
	}
	port, _ := strconv.Atoi(portStr)

	pair := keybackend.KeyPair{KeyID: keyID, ApplicationKey: appKey}

	fmt.Print("Testing application key... ")
	if authErr := testAuthorization(pair, bucket); authErr != nil {
		fmt.Println("FAILED")
		fmt.Printf("Warning: %v\n", authErr)

		continuePrompt := promptui.Prompt{
			Label:     "Save anyway",
			IsConfirm: true,
		}
		if _, promptErr := continuePrompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	} else {
		fmt.Println("OK")
	}

	keyPath := configureKeyFile
	if keyPath == "" {
		keyPath = filepath.Join(filepath.Dir(configureOutput), "b2key.json")
	}

	if err := writeKeyFile(keyPath, pair); err != nil {
		return err
	}

	cfg := fileConfig{
		Server:  fileServer{Port: port},
		Backend: fileBackend{Bucket: bucket, KeyFile: keyPath},
		Store:   store,
	}
	if err := writeConfigFile(configureOutput, cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote %s and %s.\n", configureOutput, keyPath)
	return nil
}

func writeConfigFile(path string, cfg fileConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // Config holds no secrets
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func writeKeyFile(path string, pair keybackend.KeyPair) error {
	data, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// testAuthorization runs the authorization handshake once without storing
// the result.
func testAuthorization(pair keybackend.KeyPair, bucket string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := b2.New(b2.Config{
		KeyID:          pair.KeyID,
		ApplicationKey: pair.ApplicationKey,
		BucketName:     bucket,
	}, b2.WithTimeout(15*time.Second))
	if err != nil {
		return err
	}

	_, err = client.Authorize(ctx)
	return err
}

func required(field string) promptui.ValidateFunc {
	return func(input string) error {
		if input == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
