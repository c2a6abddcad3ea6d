// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/pkg/errutil"
)

// DefaultRevocationRetention covers the longest plausible token lifetime.
const DefaultRevocationRetention = 24 * time.Hour

// Revocation reasons used for metrics.
const (
	ReasonLogout   = "logout"
	ReasonRotation = "rotation"
)

// RevocationStore persists revoked token keys with an expiry. Entries whose
// expiry is not after now must be treated as absent.
type RevocationStore interface {
	// Add records key until expiresAt and reports whether it was newly added.
	// An existing live entry is left untouched and reports false.
	Add(ctx context.Context, key string, now, expiresAt time.Time) (bool, error)

	// Contains reports whether key has a live entry at now.
	Contains(ctx context.Context, key string, now time.Time) (bool, error)

	// Prune deletes entries that have expired at now and returns how many.
	Prune(ctx context.Context, now time.Time) (int, error)
}

// MemoryRevocationStore is a process-local RevocationStore. Revocations are
// lost on restart and not shared between instances.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryRevocationStore creates an empty in-memory store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time)}
}

// Add implements RevocationStore.
func (s *MemoryRevocationStore) Add(_ context.Context, key string, now, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.entries[key]; ok && exp.After(now) {
		return false, nil
	}
	s.entries[key] = expiresAt
	return true, nil
}

// Contains implements RevocationStore.
func (s *MemoryRevocationStore) Contains(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !exp.After(now) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

// Prune implements RevocationStore.
func (s *MemoryRevocationStore) Prune(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, live or not yet pruned.
func (s *MemoryRevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RevocationRegistry tracks revoked tokens for a fixed retention window.
// Tokens are keyed by their SHA-256 digest.
//
// StartSweeper runs a background goroutine that prunes expired entries. Call
// Close to stop it.
type RevocationRegistry struct {
	store     RevocationStore
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger

	sweepOnce sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// RegistryOption configures a RevocationRegistry.
type RegistryOption func(*RevocationRegistry)

// WithRetention overrides DefaultRevocationRetention.
func WithRetention(d time.Duration) RegistryOption {
	return func(r *RevocationRegistry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithRegistryClock overrides the registry's time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *RevocationRegistry) {
		r.now = now
	}
}

// WithRegistryLogger sets the logger used by the sweeper.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *RevocationRegistry) {
		r.logger = logger
	}
}

// NewRevocationRegistry creates a registry over store.
func NewRevocationRegistry(store RevocationStore, opts ...RegistryOption) *RevocationRegistry {
	r := &RevocationRegistry{
		store:     store,
		retention: DefaultRevocationRetention,
		now:       time.Now,
		logger:    slog.Default(),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke marks token as revoked for the retention window. Revoking an already
// revoked token is a no-op.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string) error {
	now := r.now()
	if _, err := r.store.Add(ctx, tokenKey(token), now, now.Add(r.retention)); err != nil {
		return oops.Code("REVOCATION_WRITE_FAILED").With("token", Fingerprint(token)).Wrap(err)
	}
	return nil
}

// Claim revokes token and reports whether this call was the one that revoked
// it. Of several concurrent claims on the same token exactly one wins.
func (r *RevocationRegistry) Claim(ctx context.Context, token string) (bool, error) {
	now := r.now()
	added, err := r.store.Add(ctx, tokenKey(token), now, now.Add(r.retention))
	if err != nil {
		return false, oops.Code("REVOCATION_WRITE_FAILED").With("token", Fingerprint(token)).Wrap(err)
	}
	return added, nil
}

// IsRevoked reports whether token is currently revoked.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := r.store.Contains(ctx, tokenKey(token), r.now())
	if err != nil {
		return false, oops.Code("REVOCATION_READ_FAILED").With("token", Fingerprint(token)).Wrap(err)
	}
	return revoked, nil
}

// Sweep prunes expired entries once.
func (r *RevocationRegistry) Sweep(ctx context.Context) (int, error) {
	removed, err := r.store.Prune(ctx, r.now())
	if err != nil {
		return 0, oops.Code("REVOCATION_PRUNE_FAILED").Wrap(err)
	}
	return removed, nil
}

// StartSweeper prunes expired entries every interval until Close is called.
// Subsequent calls are no-ops.
func (r *RevocationRegistry) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.sweepOnce.Do(func() {
		r.wg.Add(1)
		go r.sweepLoop(interval)
	})
}

func (r *RevocationRegistry) sweepLoop(interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			removed, err := r.Sweep(ctx)
			cancel()
			if err != nil {
				errutil.LogError(r.logger, "revocation sweep failed", err)
				continue
			}
			if removed > 0 {
				r.logger.Debug("revocation sweep", "removed", removed)
			}
		case <-r.stopChan:
			return
		}
	}
}

// Close stops the sweeper and waits for it to exit.
func (r *RevocationRegistry) Close() {
	r.closeOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}
