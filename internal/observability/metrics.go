// Package observability wires the Prometheus metrics and OpenTelemetry
// tracing this core uses for the Execution Tracker (§2) and for the
// suspension points named in §5, following the same promauto/CounterVec
// idiom as the teacher's internal/adapter/inbound/http/metrics.go.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics backing the Execution Tracker.
type Metrics struct {
	PolicyExecutionsTotal   *prometheus.CounterVec
	PolicyAllowsTotal       *prometheus.CounterVec
	ClassCacheMissesTotal   prometheus.Counter
	TargetResolveErrsTotal  prometheus.Counter
	PolicyQueryTimeoutTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		PolicyExecutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "policycore",
				Name:      "policy_executions_total",
				Help:      "Total per-policy evaluations during enforcement.",
			},
			[]string{"policy_id"},
		),
		PolicyAllowsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "policycore",
				Name:      "policy_allows_total",
				Help:      "Total per-policy allow decisions during enforcement.",
			},
			[]string{"policy_id"},
		),
		ClassCacheMissesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "policycore",
				Name:      "class_membership_cache_misses_total",
				Help:      "Total MembershipCache misses requiring a storage class_ids call.",
			},
		),
		TargetResolveErrsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "policycore",
				Name:      "target_resolve_errors_total",
				Help:      "Total target-resolver subquery failures.",
			},
		),
		PolicyQueryTimeoutTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "policycore",
				Name:      "policy_query_timeouts_total",
				Help:      "Total policy-query evaluations that exceeded the configured timeout.",
			},
		),
	}
}
