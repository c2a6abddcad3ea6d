// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package access

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Effect labels for decision metrics.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
	EffectError = "error"
)

var (
	// Decisions counts resource checks by resource type, effect and reason.
	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lfa_access_decisions_total",
		Help: "Total number of resource access decisions",
	}, []string{"resource", "effect", "reason"})

	// CheckDuration tracks resource check latency including store lookups.
	CheckDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lfa_access_check_duration_seconds",
		Help:    "Histogram of resource access check latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
)

// RegisterMetrics registers access metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Decisions, CheckDuration)
}

// RecordDecision records the outcome of one resource check.
func RecordDecision(kind ResourceKind, d Decision, err error, elapsed time.Duration) {
	effect := EffectDeny
	switch {
	case err != nil:
		effect = EffectError
	case d.Allowed:
		effect = EffectAllow
	}
	Decisions.WithLabelValues(string(kind), effect, d.Reason).Inc()
	CheckDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
