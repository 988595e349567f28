package stowfront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// CredentialStore persists the serialized credential across process restarts.
// Implementations must be safe for concurrent use.
type CredentialStore interface {
	// Get returns the value stored under key, or ErrNotFound when nothing
	// (or only an expired record) is stored.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value. A positive
	// ttl lets the store expire the record on its own.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Authorizer performs the upstream authorization handshake.
type Authorizer interface {
	Authorize(ctx context.Context) (Credential, error)
}

// CredentialPolicy holds the staleness thresholds and persistence settings
// used by CredentialManager.
type CredentialPolicy struct {
	StaleAfter   time.Duration
	InvalidAfter time.Duration
	StoreKey     string
	StoreTTL     time.Duration
}

// DefaultCredentialPolicy returns a policy with the standard thresholds:
// fresh for 5 minutes, usable for 12 hours, backend validity of 24 hours.
func DefaultCredentialPolicy() CredentialPolicy {
	return CredentialPolicy{
		StaleAfter:   5 * time.Minute,
		InvalidAfter: 12 * time.Hour,
		StoreKey:     "b2auth",
		StoreTTL:     24 * time.Hour,
	}
}

// Validate checks that the thresholds are ordered.
func (p CredentialPolicy) Validate() error {
	if p.StoreKey == "" {
		return fmt.Errorf("validate credential policy: %w: store key cannot be empty", ErrInvalidInput)
	}
	if p.StaleAfter <= 0 || p.StaleAfter >= p.InvalidAfter {
		return fmt.Errorf("validate credential policy: %w: stale_after must be positive and below invalid_after", ErrInvalidInput)
	}
	if p.StoreTTL > 0 && p.InvalidAfter >= p.StoreTTL {
		return fmt.Errorf("validate credential policy: %w: invalid_after must be below store_ttl", ErrInvalidInput)
	}
	return nil
}

const defaultReloadTimeout = 30 * time.Second

type credentialState struct {
	cred        Credential
	installedAt time.Time
	generation  uint64
}

// CredentialManager owns the process-wide credential. Readers get copies of
// an immutable snapshot; a refresh replaces the snapshot as a whole.
type CredentialManager struct {
	store  CredentialStore
	auth   Authorizer
	policy CredentialPolicy

	now           func() time.Time
	reloadTimeout time.Duration

	state     atomic.Pointer[credentialState]
	installMu sync.Mutex

	group     singleflight.Group
	reloading atomic.Bool
	wg        sync.WaitGroup
}

// ManagerOption configures a CredentialManager.
type ManagerOption func(*CredentialManager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *CredentialManager) {
		m.now = now
	}
}

// WithReloadTimeout bounds each reload started by the manager.
func WithReloadTimeout(d time.Duration) ManagerOption {
	return func(m *CredentialManager) {
		m.reloadTimeout = d
	}
}

// NewCredentialManager creates a manager with nothing loaded. The first
// EnsureFresh call performs a synchronous reload.
func NewCredentialManager(store CredentialStore, auth Authorizer, policy CredentialPolicy, opts ...ManagerOption) *CredentialManager {
	m := &CredentialManager{
		store:         store,
		auth:          auth,
		policy:        policy,
		now:           time.Now,
		reloadTimeout: defaultReloadTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tier classifies the current snapshot. TierInvalid is returned when nothing
// is loaded.
func (m *CredentialManager) Tier() Tier {
	st := m.state.Load()
	if st == nil {
		return TierInvalid
	}
	return m.tierOf(st)
}

// Generation returns the number of installs so far.
func (m *CredentialManager) Generation() uint64 {
	st := m.state.Load()
	if st == nil {
		return 0
	}
	return st.generation
}

func (m *CredentialManager) tierOf(st *credentialState) Tier {
	age := m.now().Sub(st.installedAt)
	switch {
	case age <= m.policy.StaleAfter:
		return TierFresh
	case age <= m.policy.InvalidAfter:
		return TierStale
	default:
		return TierInvalid
	}
}

// EnsureFresh returns a credential that is fresh or acceptably stale.
// Fresh credentials are returned without I/O. Stale ones are returned at once
// while a single background reload from the store is scheduled. Invalid or
// missing ones block on a synchronous reload shared by all concurrent callers.
func (m *CredentialManager) EnsureFresh(ctx context.Context) (Credential, error) {
	if st := m.state.Load(); st != nil {
		switch m.tierOf(st) {
		case TierFresh:
			return st.cred, nil
		case TierStale:
			m.scheduleReload(ctx)
			return st.cred, nil
		}
	}

	v, err, _ := m.group.Do("reload", func() (any, error) {
		// a caller ahead of us may have installed one already
		if st := m.state.Load(); st != nil && m.tierOf(st) != TierInvalid {
			return st.cred, nil
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.reloadTimeout)
		defer cancel()

		return m.reload(rctx)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (m *CredentialManager) reload(ctx context.Context) (Credential, error) {
	cred, err := m.loadStored(ctx)
	if err == nil {
		m.install(cred)
		slog.Debug("credential loaded from store", "bucket_id", cred.BucketID, "issued_at", cred.IssuedAt)
		return cred, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Credential{}, err
	}

	cred, err = m.authorize(ctx)
	if err != nil {
		return Credential{}, err
	}

	if err := m.persist(ctx, cred); err != nil {
		slog.Warn("credential not persisted", "err", err)
	}
	m.install(cred)
	slog.Info("credential authorized", "bucket_id", cred.BucketID)

	return cred, nil
}

// ForceRefresh performs the upstream handshake unconditionally, installs the
// result and persists it. A persistence failure is returned after the new
// credential has been installed.
func (m *CredentialManager) ForceRefresh(ctx context.Context) (Credential, error) {
	v, err, _ := m.group.Do("force", func() (any, error) {
		cred, err := m.authorize(ctx)
		if err != nil {
			return Credential{}, err
		}
		m.install(cred)

		if err := m.persist(ctx, cred); err != nil {
			return cred, err
		}
		return cred, nil
	})
	cred, _ := v.(Credential)
	if err != nil {
		return cred, fmt.Errorf("force refresh: %w", err)
	}
	return cred, nil
}

// RunRefresher calls ForceRefresh every interval until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (m *CredentialManager) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cred, err := m.ForceRefresh(ctx)
			if err != nil {
				slog.Error("scheduled credential refresh failed", "err", err)
				continue
			}
			slog.Info("scheduled credential refresh", "bucket_id", cred.BucketID, "generation", m.Generation())
		}
	}
}

// Wait blocks until background reloads have finished.
func (m *CredentialManager) Wait() {
	m.wg.Wait()
}

func (m *CredentialManager) scheduleReload(ctx context.Context) {
	if !m.reloading.CompareAndSwap(false, true) {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.reloading.Store(false)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.reloadTimeout)
		defer cancel()

		cred, err := m.loadStored(rctx)
		if err != nil {
			slog.Warn("background credential reload failed, serving cached credential", "err", err)
			return
		}
		m.install(cred)
		slog.Debug("credential reloaded in background", "bucket_id", cred.BucketID, "generation", m.Generation())
	}()
}

func (m *CredentialManager) authorize(ctx context.Context) (Credential, error) {
	cred, err := m.auth.Authorize(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("authorize: %w", err)
	}
	if cred.IsZero() {
		return Credential{}, fmt.Errorf("authorize: %w: incomplete credential", ErrUpstreamProtocol)
	}
	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = m.now()
	}
	return cred, nil
}

func (m *CredentialManager) loadStored(ctx context.Context) (Credential, error) {
	data, err := m.store.Get(ctx, m.policy.StoreKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("load credential: %w: %w", ErrPersistence, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("load credential: %w: %w", ErrPersistence, err)
	}
	if cred.IsZero() {
		return Credential{}, ErrNotFound
	}
	if m.policy.StoreTTL > 0 && m.now().Sub(cred.IssuedAt) > m.policy.StoreTTL {
		return Credential{}, ErrNotFound
	}

	return cred, nil
}

func (m *CredentialManager) persist(ctx context.Context, cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("persist credential: %w: %w", ErrPersistence, err)
	}

	if err := m.store.Put(ctx, m.policy.StoreKey, data, m.policy.StoreTTL); err != nil {
		return fmt.Errorf("persist credential: %w: %w", ErrPersistence, err)
	}
	return nil
}

func (m *CredentialManager) install(cred Credential) {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	var gen uint64 = 1
	if prev := m.state.Load(); prev != nil {
		gen = prev.generation + 1
	}
	m.state.Store(&credentialState{cred: cred, installedAt: m.now(), generation: gen})
}
