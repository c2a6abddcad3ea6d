// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package httpapi exposes the session and access-control core over HTTP.
//
// Every request passes through request id, access log, panic recovery,
// security headers, CORS and the global rate limit before routing. Routes
// then add their own limits, authentication and authorization.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/access"
	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/config"
	"github.com/lfa-academy/lfa-server/internal/observability"
	"github.com/lfa-academy/lfa-server/internal/schema"
)

// Limit is a fixed-window allowance.
type Limit struct {
	Max    int
	Window time.Duration
}

// Config holds the HTTP-facing settings.
type Config struct {
	// Production marks the refresh cookie Secure.
	Production     bool
	AllowedOrigins []string
	MaxBodyBytes   int64
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool

	API     Limit
	Login   Limit
	Refresh Limit
}

// ConfigFrom extracts the HTTP settings from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		TrustProxy:     cfg.HTTP.TrustProxy,
		API:            Limit{Max: cfg.RateLimit.API.Max, Window: cfg.RateLimit.API.WindowDuration},
		Login:          Limit{Max: cfg.RateLimit.Login.Max, Window: cfg.RateLimit.Login.WindowDuration},
		Refresh:        Limit{Max: cfg.RateLimit.Refresh.Max, Window: cfg.RateLimit.Refresh.WindowDuration},
	}
}

const defaultMaxBodyBytes = 1 << 20

// API serves the authentication routes and resource guards.
type API struct {
	cfg         Config
	sessions    *auth.SessionManager
	evaluator   *access.Evaluator
	permissions *access.Permissions
	limiter     *auth.RateLimiter
	metrics     *observability.Metrics
	logger      *slog.Logger

	loginSchema   *schema.Validator
	refreshSchema *schema.Validator
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the access and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithMetrics records per-route request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithRateLimiter replaces the default in-memory limiter.
func WithRateLimiter(l *auth.RateLimiter) Option {
	return func(a *API) {
		a.limiter = l
	}
}

// WithPermissions replaces the default role permission groups.
func WithPermissions(p *access.Permissions) Option {
	return func(a *API) {
		a.permissions = p
	}
}

// New creates the API. sessions and evaluator are required.
func New(sessions *auth.SessionManager, evaluator *access.Evaluator, cfg Config, opts ...Option) (*API, error) {
	if sessions == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("session manager is required")
	}
	if evaluator == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("access evaluator is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	a := &API{
		cfg:           cfg,
		sessions:      sessions,
		evaluator:     evaluator,
		logger:        slog.Default(),
		loginSchema:   schema.New(&loginRequest{}, schema.WithTitle("Login request", "")),
		refreshSchema: schema.New(&refreshRequest{}, schema.WithTitle("Refresh request", "")),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.permissions == nil {
		a.permissions = access.DefaultPermissions()
	}
	if a.limiter == nil {
		a.limiter = auth.NewRateLimiter()
	}
	return a, nil
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.Handle("POST /api/auth/refresh-token",
		a.rateLimit(scopeRefresh, a.cfg.Refresh, a.clientIP)(http.HandlerFunc(a.handleRefresh)))
	mux.Handle("GET /api/auth/verify-token", a.Authenticate(http.HandlerFunc(a.handleVerify)))
	mux.Handle("GET /api/auth/me/permissions",
		a.Authenticate(a.RequireMinimumRole(auth.RoleParent)(http.HandlerFunc(a.handlePermissions))))

	for _, kind := range []access.ResourceKind{access.ResourcePlayer, access.ResourceTeam, access.ResourceMessage} {
		pattern := "GET /api/access/" + string(kind) + "s/{id}"
		mux.Handle(pattern, a.Authenticate(a.Authorize(kind, "id")(a.handleGuard(string(kind), "id"))))
	}
	mux.Handle("GET /api/access/users/{userId}",
		a.Authenticate(a.RequireOwnership("userId")(a.handleGuard("user", "userId"))))
	mux.Handle("GET /api/access/staff",
		a.Authenticate(a.RequireRoles(true, auth.RoleCoach)(a.handleGuard("staff", ""))))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   a.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})

	var h http.Handler = routed(mux)
	h = a.rateLimit(scopeAPI, a.cfg.API, a.clientIP)(h)
	h = corsHandler.Handler(h)
	h = securityHeaders(h)
	h = a.recoverPanics(h)
	h = a.accessLog(h)
	h = requestID(h)
	return h
}
