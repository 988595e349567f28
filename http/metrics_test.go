package http_test

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sagarc03/stowfront"
	stowhttp "github.com/sagarc03/stowfront/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, nil, stowhttp.WithMetrics(stowhttp.NewMetrics(reg)))
	f.creds.On("EnsureFresh", mock.Anything).Return(testCred, nil)
	f.backend.On("DownloadFile", mock.Anything, testCred, "a.txt").Return(newObject("a", nil), nil).Once()
	f.backend.On("DownloadFile", mock.Anything, testCred, "gone.txt").
		Return(nil, &stowfront.BackendError{StatusCode: http.StatusNotFound}).Once()

	f.do(http.MethodGet, "/a.txt", nil)
	f.do(http.MethodGet, "/a.txt", nil)
	f.do(http.MethodGet, "/gone.txt", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "stowfront_http_requests_total")
	assert.Contains(t, names, "stowfront_response_cache_lookups_total")
	assert.Contains(t, names, "stowfront_backend_request_duration_seconds")

	for _, name := range []string{
		"stowfront_http_requests_total",
		"stowfront_response_cache_lookups_total",
		"stowfront_backend_request_duration_seconds",
	} {
		count, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, 2, count, name)
	}
}

func TestMetrics_CredentialFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, nil, stowhttp.WithMetrics(stowhttp.NewMetrics(reg)))
	f.creds.On("EnsureFresh", mock.Anything).Return(stowfront.Credential{}, stowfront.ErrUpstreamUnavailable)

	f.do(http.MethodGet, "/a.txt", nil)
	f.do(http.MethodGet, "/b.txt", nil)

	assert.InDelta(t, 2, counterValue(t, reg, "stowfront_credential_failures_total"), 0)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	f := newFixture(t, nil)
	f.creds.On("EnsureFresh", mock.Anything).Return(testCred, nil)

	assert.NotPanics(t, func() {
		f.do(http.MethodGet, "/faces", nil)
	})
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
