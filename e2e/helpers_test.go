package e2e_test

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	// Create shared temp directory for the binary
	var err error
	sharedTempDir, err = os.MkdirTemp("", "stowfront-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	terminateSharedPostgres()

	// Cleanup shared temp directory
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

const (
	fakeBucketName = "e2e-bucket"
	fakeBucketID   = "bucket-e2e"
	fakeKeyID      = "0012ab"
	fakeAppKey     = "K001secret"
	fakeToken      = "4_token_e2e"
)

// fakeFile is one object held by fakeBackend.
type fakeFile struct {
	Body       string
	SHA1       string
	UploadedMs int64
}

// fakeBackend is a minimal stand-in for the B2 native API: account
// authorization, b2_list_file_names with a delimiter, and downloads by name.
type fakeBackend struct {
	*httptest.Server

	files          map[string]fakeFile
	authorizations atomic.Int32
	downloads      atomic.Int32
}

func newFakeBackend(t *testing.T, files map[string]fakeFile) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{files: files}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /b2api/v2/b2_authorize_account", fb.authorize)
	mux.HandleFunc("POST /b2api/v2/b2_list_file_names", fb.listFileNames)
	mux.HandleFunc("GET /file/{bucket}/{key...}", fb.download)

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)

	return fb
}

func (fb *fakeBackend) authorize(w http.ResponseWriter, r *http.Request) {
	id, key, ok := r.BasicAuth()
	if !ok || id != fakeKeyID || key != fakeAppKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "code": "unauthorized"})
		return
	}
	fb.authorizations.Add(1)

	bucketID := fakeBucketID
	writeJSON(w, http.StatusOK, map[string]any{
		"accountId":          "account-e2e",
		"authorizationToken": fakeToken,
		"apiUrl":             fb.URL,
		"downloadUrl":        fb.URL,
		"allowed":            map[string]any{"bucketId": &bucketID},
	})
}

func (fb *fakeBackend) listFileNames(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != fakeToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "code": "bad_auth_token"})
		return
	}

	var req struct {
		BucketID  string `json:"bucketId"`
		Prefix    string `json:"prefix"`
		Delimiter string `json:"delimiter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BucketID != fakeBucketID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": 400, "code": "bad_request"})
		return
	}

	seen := map[string]bool{}
	files := []map[string]any{}
	for name, f := range fb.files {
		if !strings.HasPrefix(name, req.Prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, req.Prefix)
		if i := strings.Index(rest, req.Delimiter); req.Delimiter != "" && i >= 0 {
			folder := req.Prefix + rest[:i+1]
			if !seen[folder] {
				seen[folder] = true
				files = append(files, map[string]any{"fileName": folder, "action": "folder"})
			}
			continue
		}
		files = append(files, map[string]any{
			"fileName":        name,
			"action":          "upload",
			"contentLength":   len(f.Body),
			"uploadTimestamp": f.UploadedMs,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (fb *fakeBackend) download(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != fakeToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "code": "bad_auth_token"})
		return
	}
	fb.downloads.Add(1)

	f, ok := fb.files[r.PathValue("key")]
	if r.PathValue("bucket") != fakeBucketName || !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"status": 404, "code": "not_found"})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(f.Body)))
	h.Set("X-Bz-Content-Sha1", f.SHA1)
	h.Set("X-Bz-Upload-Timestamp", strconv.FormatInt(f.UploadedMs, 10))
	h.Set("X-Bz-File-Name", r.PathValue("key"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(f.Body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ServerConfig holds configuration for starting the stowfront server.
type ServerConfig struct {
	Port         int
	AuthorizeURL string
	StoreType    string // sqlite, postgres, file, memory
	StoreDSN     string
	StorePath    string
	CacheType    string // none, memory
}

// buildBinary compiles the stowfront binary once per test run.
// Returns the path to the compiled binary.
func buildBinary(t *testing.T) string {
	t.Helper()

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "stowfront")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/stowfront")
		cmd.Dir = getProjectRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			binaryBuildErr = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
			return
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binary: %v", binaryBuildErr)
	}

	return binaryPath
}

// getProjectRoot returns the root directory of the stowfront project.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	// Find the go.mod file to determine project root
	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile creates a temporary config file for the server.
// Returns the path to the config file.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	if cfg.CacheType == "" {
		cfg.CacheType = "memory"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `server:
  port: %d
  shutdown_timeout: 5s

backend:
  key_id: %s
  application_key: %s
  bucket: %s
  authorize_url: %s/b2api/v2/b2_authorize_account
  timeout: 5s

store:
  type: %s
  dsn: "%s"
  path: "%s"

cache:
  type: %s

log:
  level: error
`,
		cfg.Port,
		fakeKeyID,
		fakeAppKey,
		fakeBucketName,
		cfg.AuthorizeURL,
		cfg.StoreType,
		cfg.StoreDSN,
		cfg.StorePath,
		cfg.CacheType,
	)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(sb.String()), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// runCommand runs a one-shot stowfront subcommand and returns its output.
func runCommand(t *testing.T, cfg ServerConfig, args ...string) string {
	t.Helper()

	binary := buildBinary(t)
	configPath := createConfigFile(t, cfg)

	cmd := exec.Command(binary, append(args, "--config", configPath)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s: %s", strings.Join(args, " "), output)

	return string(output)
}

// startServer starts the stowfront binary with the given configuration.
// Returns the base URL and a cleanup function that must be called to stop the server.
func startServer(t *testing.T, cfg ServerConfig) (string, func()) {
	t.Helper()

	binary := buildBinary(t)

	// Create config file
	configPath := createConfigFile(t, cfg)

	cmd := exec.Command(binary, "serve", "--config", configPath)

	// Capture output for debugging
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Start()
	require.NoError(t, err, "start server")

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)

	cleanup := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	}

	// Wait for server to be ready
	if !waitForServer(baseURL, 10*time.Second) {
		cleanup()
		t.Fatalf("server failed to start within %v", 10*time.Second)
	}

	return baseURL, cleanup
}

// waitForServer polls the server until it answers. The probe path is
// rejected before any credential work, so probing never talks to the backend.
func waitForServer(baseURL string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Post(baseURL+"/", "text/plain", http.NoBody)
		if err == nil {
			_ = resp.Body.Close()
			return true // Server is ready
		}
		time.Sleep(100 * time.Millisecond)
	}

	return false
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	addr := l.Addr().(*net.TCPAddr)
	port := addr.Port

	err = l.Close()
	require.NoError(t, err, "close port")

	return port
}
