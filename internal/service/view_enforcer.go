package service

import (
	"context"

	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
)

// ViewEnforcer implements policy.ViewEnforcer (§4.4, view path).
type ViewEnforcer struct {
	storage       policy.Storage
	queryExecutor policy.QueryExecutor
	metrics       *observability.Metrics
}

// NewViewEnforcer creates a ViewEnforcer backed by storage and the given
// query executor for Kind == KindQuery entries (§4.5). metrics may be nil.
func NewViewEnforcer(storage policy.Storage, queryExecutor policy.QueryExecutor, metrics *observability.Metrics) *ViewEnforcer {
	return &ViewEnforcer{storage: storage, queryExecutor: queryExecutor, metrics: metrics}
}

// AllowFlake implements policy.ViewEnforcer.
func (e *ViewEnforcer) AllowFlake(ctx context.Context, w *policy.PolicyWrapper, cache *policy.MembershipCache, f policy.Flake) (bool, error) {
	if w.View.Root {
		return true, nil
	}

	candidates := gatherCandidates(w.View, f.Subject, f.Predicate)
	applicable, err := filterApplicable(ctx, e.storage, cache, e.metrics, candidates, f.Subject, f.Predicate)
	if err != nil {
		return false, err
	}
	if len(applicable) == 0 {
		return w.DefaultAllow, nil
	}

	subjectIRI, err := e.storage.SidToIri(f.Subject)
	if err != nil {
		return false, &policy.InfraError{Op: "decode subject IRI for view evaluation", Cause: err}
	}

	evals, err := evaluateAll(ctx, e.storage, e.queryExecutor, w.Tracker, subjectIRI, applicable, w.PolicyValues)
	if err != nil {
		return false, err
	}

	allowed, _ := reduce(evals)
	return allowed, nil
}

// AllowIRI implements policy.ViewEnforcer by synthesising an @id flake for
// sid and evaluating it exactly as AllowFlake would (§4.4 "IRI visibility").
func (e *ViewEnforcer) AllowIRI(ctx context.Context, w *policy.PolicyWrapper, cache *policy.MembershipCache, sid policy.SID) (bool, error) {
	return e.AllowFlake(ctx, w, cache, policy.IDFlake(sid))
}

var _ policy.ViewEnforcer = (*ViewEnforcer)(nil)
