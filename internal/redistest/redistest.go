// Package redistest starts a throwaway redis container shared by the tests of
// one package.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const image = "redis:7-alpine"

var (
	once      sync.Once
	sharedURL string
	startErr  error
)

// URL returns a redis:// URL for a shared container, skipping the test under
// -short or when no container runtime is available.
func URL(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	once.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        image,
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		if err != nil {
			startErr = fmt.Errorf("start redis container: %w", err)
			return
		}

		endpoint, err := container.Endpoint(ctx, "")
		if err != nil {
			startErr = fmt.Errorf("redis endpoint: %w", err)
			return
		}

		sharedURL = "redis://" + endpoint + "/0"
	})

	if startErr != nil {
		t.Skipf("redis unavailable: %v", startErr)
	}

	return sharedURL
}
