package stowfront_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/stowfront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type SpyCredentialStore struct {
	mock.Mock
}

func (s *SpyCredentialStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := s.Called(ctx, key)
	return args.Get(0).([]byte), args.Error(1)
}

func (s *SpyCredentialStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := s.Called(ctx, key, value, ttl)
	return args.Error(0)
}

type SpyAuthorizer struct {
	mock.Mock
}

func (s *SpyAuthorizer) Authorize(ctx context.Context) (stowfront.Credential, error) {
	args := s.Called(ctx)
	return args.Get(0).(stowfront.Credential), args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testCredential(issued time.Time, token string) stowfront.Credential {
	return stowfront.Credential{
		APIURL:             "https://api.example.test",
		DownloadURL:        "https://f000.example.test",
		AuthorizationToken: token,
		BucketID:           "bucket-123",
		IssuedAt:           issued,
	}
}

func encodeCredential(t *testing.T, cred stowfront.Credential) []byte {
	t.Helper()
	data, err := json.Marshal(cred)
	require.NoError(t, err)
	return data
}

func newTestManager(t *testing.T) (*stowfront.CredentialManager, *SpyCredentialStore, *SpyAuthorizer, *fakeClock) {
	t.Helper()
	store := new(SpyCredentialStore)
	auth := new(SpyAuthorizer)
	clock := newFakeClock()
	m := stowfront.NewCredentialManager(store, auth, stowfront.DefaultCredentialPolicy(), stowfront.WithClock(clock.Now))
	return m, store, auth, clock
}

func TestCredentialManager_EnsureFresh_FirstRunAuthorizesAndPersists(t *testing.T) {
	m, store, auth, clock := newTestManager(t)
	ctx := context.Background()
	cred := testCredential(clock.Now(), "token-1")

	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), stowfront.ErrNotFound)
	auth.On("Authorize", mock.Anything).Return(cred, nil)
	store.On("Put", mock.Anything, "b2auth", mock.MatchedBy(func(v []byte) bool {
		var got stowfront.Credential
		return json.Unmarshal(v, &got) == nil && got.AuthorizationToken == "token-1"
	}), 24*time.Hour).Return(nil)

	got, err := m.EnsureFresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, "token-1", got.AuthorizationToken)
	assert.Equal(t, uint64(1), m.Generation())
	assert.Equal(t, stowfront.TierFresh, m.Tier())
	store.AssertExpectations(t)
	auth.AssertExpectations(t)
}

func TestCredentialManager_EnsureFresh_LoadsFromStore(t *testing.T) {
	m, store, auth, clock := newTestManager(t)
	cred := testCredential(clock.Now(), "stored")

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, cred), nil)

	got, err := m.EnsureFresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "stored", got.AuthorizationToken)
	auth.AssertNotCalled(t, "Authorize", mock.Anything)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialManager_EnsureFresh_FreshTierDoesNoIO(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(clock.Now(), "stored")), nil).Once()

	_, err := m.EnsureFresh(ctx)
	require.NoError(t, err)

	for _, d := range []time.Duration{0, time.Minute, 4 * time.Minute, time.Minute} {
		clock.Advance(d)
		got, err := m.EnsureFresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "stored", got.AuthorizationToken)
	}

	m.Wait()
	store.AssertNumberOfCalls(t, "Get", 1)
	assert.Equal(t, uint64(1), m.Generation())
}

func TestCredentialManager_EnsureFresh_StaleTierSchedulesOneBackgroundReload(t *testing.T) {
	m, store, auth, clock := newTestManager(t)
	ctx := context.Background()

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(clock.Now(), "old")), nil).Once()
	_, err := m.EnsureFresh(ctx)
	require.NoError(t, err)

	release := make(chan struct{})
	store.On("Get", mock.Anything, "b2auth").
		Run(func(mock.Arguments) { <-release }).
		Return(encodeCredential(t, testCredential(clock.Now(), "new")), nil).Once()

	clock.Advance(10 * time.Minute)

	for range 5 {
		got, err := m.EnsureFresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "old", got.AuthorizationToken, "stale tier serves the cached credential")
	}

	close(release)
	m.Wait()

	store.AssertNumberOfCalls(t, "Get", 2)
	auth.AssertNotCalled(t, "Authorize", mock.Anything)
	assert.Equal(t, uint64(2), m.Generation())

	got, err := m.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AuthorizationToken)
	assert.Equal(t, stowfront.TierFresh, m.Tier())
}

func TestCredentialManager_EnsureFresh_StaleTierSurvivesStoreFailure(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(clock.Now(), "old")), nil).Once()
	_, err := m.EnsureFresh(ctx)
	require.NoError(t, err)

	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), errors.New("connection refused")).Once()
	clock.Advance(time.Hour)

	got, err := m.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", got.AuthorizationToken)

	m.Wait()
	assert.Equal(t, uint64(1), m.Generation())
	assert.Equal(t, stowfront.TierStale, m.Tier())
}

func TestCredentialManager_EnsureFresh_InvalidTierReloadsSynchronously(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()
	issued := clock.Now()

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(issued, "first")), nil).Once()
	_, err := m.EnsureFresh(ctx)
	require.NoError(t, err)

	clock.Advance(13 * time.Hour)
	assert.Equal(t, stowfront.TierInvalid, m.Tier())

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(clock.Now(), "second")), nil).Once()

	got, err := m.EnsureFresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, "second", got.AuthorizationToken, "returned only after the reload completed")
	assert.Equal(t, uint64(2), m.Generation())
	assert.Equal(t, stowfront.TierFresh, m.Tier())
}

func TestCredentialManager_EnsureFresh_ConcurrentInvalidCallersShareOneAuthorization(t *testing.T) {
	m, store, auth, clock := newTestManager(t)

	release := make(chan struct{})
	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), stowfront.ErrNotFound)
	store.On("Put", mock.Anything, "b2auth", mock.Anything, mock.Anything).Return(nil)
	auth.On("Authorize", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(testCredential(clock.Now(), "shared"), nil)

	const callers = 20
	var wg sync.WaitGroup
	results := make(chan stowfront.Credential, callers)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := m.EnsureFresh(context.Background())
			assert.NoError(t, err)
			results <- cred
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for cred := range results {
		assert.Equal(t, "shared", cred.AuthorizationToken)
	}
	auth.AssertNumberOfCalls(t, "Authorize", 1)
	assert.Equal(t, uint64(1), m.Generation())
}

func TestCredentialManager_EnsureFresh_AuthorizationFailureInstallsNothing(t *testing.T) {
	m, store, auth, _ := newTestManager(t)

	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), stowfront.ErrNotFound)
	auth.On("Authorize", mock.Anything).Return(stowfront.Credential{}, stowfront.ErrUpstreamUnavailable)

	_, err := m.EnsureFresh(context.Background())

	require.ErrorIs(t, err, stowfront.ErrUpstreamUnavailable)
	assert.Equal(t, uint64(0), m.Generation())
	assert.Equal(t, stowfront.TierInvalid, m.Tier())
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCredentialManager_EnsureFresh_IncompleteCredentialIsProtocolError(t *testing.T) {
	m, store, auth, _ := newTestManager(t)

	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), stowfront.ErrNotFound)
	auth.On("Authorize", mock.Anything).Return(stowfront.Credential{APIURL: "https://api.example.test"}, nil)

	_, err := m.EnsureFresh(context.Background())

	require.ErrorIs(t, err, stowfront.ErrUpstreamProtocol)
	assert.Equal(t, uint64(0), m.Generation())
}

func TestCredentialManager_EnsureFresh_StoreReadFailurePropagates(t *testing.T) {
	m, store, auth, _ := newTestManager(t)

	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), errors.New("disk on fire"))

	_, err := m.EnsureFresh(context.Background())

	require.ErrorIs(t, err, stowfront.ErrPersistence)
	auth.AssertNotCalled(t, "Authorize", mock.Anything)
}

func TestCredentialManager_EnsureFresh_CorruptRecordIsPersistenceError(t *testing.T) {
	m, store, _, _ := newTestManager(t)

	store.On("Get", mock.Anything, "b2auth").Return([]byte("{not json"), nil)

	_, err := m.EnsureFresh(context.Background())

	require.ErrorIs(t, err, stowfront.ErrPersistence)
}

func TestCredentialManager_EnsureFresh_ExpiredRecordTreatedAsAbsent(t *testing.T) {
	m, store, auth, clock := newTestManager(t)
	expired := testCredential(clock.Now().Add(-25*time.Hour), "expired")

	store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, expired), nil)
	store.On("Put", mock.Anything, "b2auth", mock.Anything, mock.Anything).Return(nil)
	auth.On("Authorize", mock.Anything).Return(testCredential(clock.Now(), "renewed"), nil)

	got, err := m.EnsureFresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "renewed", got.AuthorizationToken)
	auth.AssertNumberOfCalls(t, "Authorize", 1)
}

func TestCredentialManager_EnsureFresh_PersistFailureStillInstalls(t *testing.T) {
	m, store, auth, clock := newTestManager(t)

	store.On("Get", mock.Anything, "b2auth").Return([]byte(nil), stowfront.ErrNotFound)
	store.On("Put", mock.Anything, "b2auth", mock.Anything, mock.Anything).Return(errors.New("read-only"))
	auth.On("Authorize", mock.Anything).Return(testCredential(clock.Now(), "unsaved"), nil)

	got, err := m.EnsureFresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "unsaved", got.AuthorizationToken)
	assert.Equal(t, uint64(1), m.Generation())
}

func TestCredentialManager_EnsureFresh_CallerCancellationDoesNotAbortReload(t *testing.T) {
	m, store, auth, clock := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store.On("Get", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "b2auth").
		Return([]byte(nil), stowfront.ErrNotFound)
	store.On("Put", mock.Anything, "b2auth", mock.Anything, mock.Anything).Return(nil)
	auth.On("Authorize", mock.Anything).Return(testCredential(clock.Now(), "detached"), nil)

	got, err := m.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "detached", got.AuthorizationToken)
}

func TestCredentialManager_ForceRefresh(t *testing.T) {
	t.Run("authorizes even when fresh", func(t *testing.T) {
		m, store, auth, clock := newTestManager(t)
		ctx := context.Background()

		store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(clock.Now(), "stored")), nil)
		store.On("Put", mock.Anything, "b2auth", mock.Anything, 24*time.Hour).Return(nil)
		auth.On("Authorize", mock.Anything).Return(testCredential(clock.Now(), "forced"), nil)

		_, err := m.EnsureFresh(ctx)
		require.NoError(t, err)

		got, err := m.ForceRefresh(ctx)
		require.NoError(t, err)

		assert.Equal(t, "forced", got.AuthorizationToken)
		assert.Equal(t, uint64(2), m.Generation())
		store.AssertNumberOfCalls(t, "Put", 1)

		current, err := m.EnsureFresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "forced", current.AuthorizationToken)
	})

	t.Run("persist failure is returned after install", func(t *testing.T) {
		m, store, auth, clock := newTestManager(t)

		store.On("Put", mock.Anything, "b2auth", mock.Anything, mock.Anything).Return(errors.New("timeout"))
		auth.On("Authorize", mock.Anything).Return(testCredential(clock.Now(), "forced"), nil)

		got, err := m.ForceRefresh(context.Background())

		require.ErrorIs(t, err, stowfront.ErrPersistence)
		assert.Equal(t, "forced", got.AuthorizationToken)
		assert.Equal(t, uint64(1), m.Generation())
	})

	t.Run("authorization failure keeps current credential", func(t *testing.T) {
		m, store, auth, clock := newTestManager(t)
		ctx := context.Background()

		store.On("Get", mock.Anything, "b2auth").Return(encodeCredential(t, testCredential(clock.Now(), "stored")), nil)
		auth.On("Authorize", mock.Anything).Return(stowfront.Credential{}, stowfront.ErrUpstreamUnavailable)

		_, err := m.EnsureFresh(ctx)
		require.NoError(t, err)

		_, err = m.ForceRefresh(ctx)
		require.ErrorIs(t, err, stowfront.ErrUpstreamUnavailable)

		current, err := m.EnsureFresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, "stored", current.AuthorizationToken)
		assert.Equal(t, uint64(1), m.Generation())
	})
}

func TestCredentialManager_RunRefresher(t *testing.T) {
	m, store, auth, clock := newTestManager(t)

	refreshed := make(chan struct{}, 10)
	store.On("Put", mock.Anything, "b2auth", mock.Anything, mock.Anything).Return(nil)
	auth.On("Authorize", mock.Anything).
		Run(func(mock.Arguments) { refreshed <- struct{}{} }).
		Return(testCredential(clock.Now(), "ticked"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunRefresher(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher never called Authorize")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop on cancel")
	}

	assert.GreaterOrEqual(t, m.Generation(), uint64(1))
}

func TestCredentialManager_RunRefresherDisabled(t *testing.T) {
	m, _, auth, _ := newTestManager(t)

	m.RunRefresher(context.Background(), 0)

	auth.AssertNotCalled(t, "Authorize", mock.Anything)
}

func TestCredentialPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *stowfront.CredentialPolicy)
		wantErr bool
	}{
		{"defaults", func(*stowfront.CredentialPolicy) {}, false},
		{"empty key", func(p *stowfront.CredentialPolicy) { p.StoreKey = "" }, true},
		{"stale equals invalid", func(p *stowfront.CredentialPolicy) { p.StaleAfter = p.InvalidAfter }, true},
		{"zero stale", func(p *stowfront.CredentialPolicy) { p.StaleAfter = 0 }, true},
		{"invalid beyond ttl", func(p *stowfront.CredentialPolicy) { p.InvalidAfter = 25 * time.Hour }, true},
		{"no ttl", func(p *stowfront.CredentialPolicy) { p.StoreTTL = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stowfront.DefaultCredentialPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, stowfront.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
