package service

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
)

// counterPair holds the atomic execution/allow counters for one policy
// ID, matching §2 "Trackers use atomic counters" and §5 "Shared
// resources: Trackers use atomic counters."
type counterPair struct {
	executions atomic.Int64
	allows     atomic.Int64
}

// RequestTracker implements policy.Tracker for a single request or
// transaction batch. It is cheap to create (one per enforcement
// context) and safe for concurrent use by the flake stream it is
// attached to.
type RequestTracker struct {
	// RequestID correlates this tracker's counts in logs/traces; it is
	// not part of any policy decision, purely observability — grounded
	// on google/uuid the way the teacher correlates API requests.
	RequestID string

	mu       sync.Mutex
	counters map[string]*counterPair

	metrics *observability.Metrics
}

// NewRequestTracker creates a tracker for one enforcement context.
// metrics may be nil, in which case only the in-memory counters are
// kept (e.g. in unit tests that don't need a Prometheus registry).
func NewRequestTracker(metrics *observability.Metrics) *RequestTracker {
	return &RequestTracker{
		RequestID: uuid.NewString(),
		counters:  make(map[string]*counterPair),
		metrics:   metrics,
	}
}

func (t *RequestTracker) counterFor(policyID string) *counterPair {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[policyID]
	if !ok {
		c = &counterPair{}
		t.counters[policyID] = c
	}
	return c
}

// RecordExecution implements policy.Tracker.
func (t *RequestTracker) RecordExecution(policyID string) {
	t.counterFor(policyID).executions.Add(1)
	if t.metrics != nil {
		t.metrics.PolicyExecutionsTotal.WithLabelValues(policyID).Inc()
	}
}

// RecordAllow implements policy.Tracker.
func (t *RequestTracker) RecordAllow(policyID string) {
	t.counterFor(policyID).allows.Add(1)
	if t.metrics != nil {
		t.metrics.PolicyAllowsTotal.WithLabelValues(policyID).Inc()
	}
}

// Snapshot returns the current (executions, allows) counts per policy ID
// observed by this tracker, for tests and end-of-request audit logging.
func (t *RequestTracker) Snapshot() map[string][2]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][2]int64, len(t.counters))
	for id, c := range t.counters {
		out[id] = [2]int64{c.executions.Load(), c.allows.Load()}
	}
	return out
}

var _ policy.Tracker = (*RequestTracker)(nil)
