package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
)

// QueryExecutor implements policy.QueryExecutor (§4.5). It clones the
// caller's policy values, injects a single-row ?$this binding for the
// candidate subject, and runs the query against the root (policy-
// unwrapped) view of the database to avoid recursion.
type QueryExecutor struct {
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewQueryExecutor creates an executor honoring the given per-evaluation
// timeout (§5 "Timeouts").
func NewQueryExecutor(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *QueryExecutor {
	return &QueryExecutor{timeout: timeout, logger: logger, metrics: metrics}
}

// Execute implements policy.QueryExecutor. A storage-layer error
// propagates unchanged (§4.5 "Any storage-layer exception propagates
// unchanged"); a timeout is the one case turned into a deny, per §5.
func (e *QueryExecutor) Execute(ctx context.Context, root policy.Storage, q policy.ParsedQuery, values policy.PolicyValues, subjectIRI string) (bool, error) {
	ctx, span := observability.Tracer().Start(ctx, "policy.query_executor.execute")
	defer span.End()

	grounded, err := policy.EnsureGroundIdentity(values)
	if err != nil {
		return false, fmt.Errorf("query executor: ground identity: %w", err)
	}
	bound := grounded.WithThisBinding(subjectIRI)

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := root.Query(runCtx, q, bound)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			if e.metrics != nil {
				e.metrics.PolicyQueryTimeoutTotal.Inc()
			}
			if e.logger != nil {
				e.logger.Warn("policy query timed out", "subject", subjectIRI)
			}
			return false, nil
		}
		return false, err
	}

	return len(rows) > 0, nil
}

var _ policy.QueryExecutor = (*QueryExecutor)(nil)
