// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for session metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// SessionOperations counts session operations by operation and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lfa_auth_session_operations_total",
		Help: "Total number of session operations by operation, outcome and error code",
	},
	[]string{"operation", "outcome", "code"},
)

// TokensRevoked counts tokens added to the revocation registry.
var TokensRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lfa_auth_tokens_revoked_total",
		Help: "Total number of tokens revoked by reason",
	},
	[]string{"reason"},
)

// RateLimitRejections counts requests rejected by a rate limiter.
var RateLimitRejections = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lfa_auth_rate_limit_rejections_total",
		Help: "Total number of requests rejected by rate limiting by scope",
	},
	[]string{"scope"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SessionOperations)
	reg.MustRegister(TokensRevoked)
	reg.MustRegister(RateLimitRejections)
}

// RecordSessionOperation increments the session operation counter.
func RecordSessionOperation(operation, outcome, code string) {
	SessionOperations.WithLabelValues(operation, outcome, code).Inc()
}

// RecordRevocation increments the revocation counter.
func RecordRevocation(reason string) {
	TokensRevoked.WithLabelValues(reason).Inc()
}

// RecordRateLimitRejection increments the rate limit rejection counter.
func RecordRateLimitRejection(scope string) {
	RateLimitRejections.WithLabelValues(scope).Inc()
}
