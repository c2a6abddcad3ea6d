// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Window is the state of one fixed rate-limit window.
type Window struct {
	Count   int
	ResetAt time.Time
}

// WindowStore holds windows by key. The RateLimiter serializes all access, so
// implementations need no locking of their own.
type WindowStore interface {
	Get(key string) (Window, bool)
	Set(key string, w Window)
	Delete(key string)
	// Keys returns a snapshot of the stored keys.
	Keys() []string
	Len() int
}

// MemoryWindowStore is a map-backed WindowStore.
type MemoryWindowStore struct {
	windows map[string]Window
}

// NewMemoryWindowStore creates an empty store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]Window)}
}

// Get implements WindowStore.
func (s *MemoryWindowStore) Get(key string) (Window, bool) {
	w, ok := s.windows[key]
	return w, ok
}

// Set implements WindowStore.
func (s *MemoryWindowStore) Set(key string, w Window) { s.windows[key] = w }

// Delete implements WindowStore.
func (s *MemoryWindowStore) Delete(key string) { delete(s.windows, key) }

// Keys implements WindowStore.
func (s *MemoryWindowStore) Keys() []string {
	keys := make([]string, 0, len(s.windows))
	for k := range s.windows {
		keys = append(keys, k)
	}
	return keys
}

// Len implements WindowStore.
func (s *MemoryWindowStore) Len() int { return len(s.windows) }

// RateLimitResult is the outcome of a single Check.
type RateLimitResult struct {
	Allowed bool
	// Count is the number of requests admitted in the current window.
	Count   int
	ResetAt time.Time
	// RetryAfterSeconds is set when Allowed is false.
	RetryAfterSeconds int
}

// RateLimiter is a fixed-window counter. A key may see up to twice its limit
// in a burst straddling a window boundary.
//
// Expired windows are pruned on every Check rather than by a timer, so the
// store is bounded by the keys active within one window. It is safe for
// concurrent use.
type RateLimiter struct {
	mu    sync.Mutex
	store WindowStore
	now   func() time.Time

	windowGauge prometheus.Gauge
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithWindowStore replaces the default in-memory store.
func WithWindowStore(store WindowStore) LimiterOption {
	return func(l *RateLimiter) {
		l.store = store
	}
}

// WithLimiterClock overrides the limiter's time source.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// WithLimiterRegistry registers a gauge of tracked windows under name.
func WithLimiterRegistry(reg prometheus.Registerer, name string) LimiterOption {
	return func(l *RateLimiter) {
		l.windowGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "lfa_ratelimiter_windows",
			Help:        "Current number of tracked rate limit windows",
			ConstLabels: prometheus.Labels{"limiter": name},
		})
		reg.MustRegister(l.windowGauge)
	}
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(opts ...LimiterOption) *RateLimiter {
	l := &RateLimiter{
		store: NewMemoryWindowStore(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request against key and reports whether it is admitted
// under a budget of limit requests per window.
//
// A window starts on the first request for a key, or on the first request
// after the previous window's reset time has passed.
func (l *RateLimiter) Check(key string, limit int, window time.Duration) RateLimitResult {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	w, ok := l.store.Get(key)
	if !ok || now.After(w.ResetAt) {
		w = Window{Count: 1, ResetAt: now.Add(window)}
		l.store.Set(key, w)
		l.updateGaugeLocked()
		return RateLimitResult{Allowed: true, Count: w.Count, ResetAt: w.ResetAt}
	}

	if w.Count >= limit {
		return RateLimitResult{
			Allowed:           false,
			Count:             w.Count,
			ResetAt:           w.ResetAt,
			RetryAfterSeconds: retryAfterSeconds(w.ResetAt.Sub(now)),
		}
	}

	w.Count++
	l.store.Set(key, w)
	return RateLimitResult{Allowed: true, Count: w.Count, ResetAt: w.ResetAt}
}

// Reset forgets key's window.
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Delete(key)
	l.updateGaugeLocked()
}

// Len returns the number of tracked windows.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Len()
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	for _, key := range l.store.Keys() {
		if w, ok := l.store.Get(key); ok && now.After(w.ResetAt) {
			l.store.Delete(key)
		}
	}
	l.updateGaugeLocked()
}

func (l *RateLimiter) updateGaugeLocked() {
	if l.windowGauge != nil {
		l.windowGauge.Set(float64(l.store.Len()))
	}
}

// retryAfterSeconds rounds d up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
