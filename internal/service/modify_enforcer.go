package service

import (
	"context"

	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
)

// ModifyEnforcer implements policy.ModifyEnforcer (§4.4, §4.7 modify path).
// Callers MUST pass a MembershipCache scoped to the enclosing transaction
// batch, never the view cache shared across unrelated requests (§5
// "Shared resources").
type ModifyEnforcer struct {
	storage       policy.Storage
	queryExecutor policy.QueryExecutor
	metrics       *observability.Metrics
}

// NewModifyEnforcer creates a ModifyEnforcer. metrics may be nil.
func NewModifyEnforcer(storage policy.Storage, queryExecutor policy.QueryExecutor, metrics *observability.Metrics) *ModifyEnforcer {
	return &ModifyEnforcer{storage: storage, queryExecutor: queryExecutor, metrics: metrics}
}

// AllowFlake implements policy.ModifyEnforcer, returning a *policy.DeniedError
// when the applicable policies deny (§4.4 step 9), or when none applies and
// w.DefaultAllow is false.
func (e *ModifyEnforcer) AllowFlake(ctx context.Context, w *policy.PolicyWrapper, cache *policy.MembershipCache, f policy.Flake) error {
	if w.Modify.Root {
		return nil
	}

	candidates := gatherCandidates(w.Modify, f.Subject, f.Predicate)
	applicable, err := filterApplicable(ctx, e.storage, cache, e.metrics, candidates, f.Subject, f.Predicate)
	if err != nil {
		return err
	}
	if len(applicable) == 0 {
		if w.DefaultAllow {
			return nil
		}
		return policy.NewDeniedError("", "")
	}

	subjectIRI, err := e.storage.SidToIri(f.Subject)
	if err != nil {
		return &policy.InfraError{Op: "decode subject IRI for modify evaluation", Cause: err}
	}

	evals, err := evaluateAll(ctx, e.storage, e.queryExecutor, w.Tracker, subjectIRI, applicable, w.PolicyValues)
	if err != nil {
		return err
	}

	allowed, denier := reduce(evals)
	if allowed {
		return nil
	}

	if denier == nil {
		return policy.NewDeniedError("", "")
	}
	msg := denier.ExMessage
	if msg == "" {
		for _, ev := range evals {
			if !ev.allow && ev.ExMessage != "" {
				msg = ev.ExMessage
				break
			}
		}
	}
	return policy.NewDeniedError(denier.ID, msg)
}

var _ policy.ModifyEnforcer = (*ModifyEnforcer)(nil)
