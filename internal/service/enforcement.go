package service

import (
	"context"

	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
)

// gatherCandidates collects every CompiledPolicy entry that could apply to
// flake (s, p): the property-indexed bucket, the subject-indexed bucket,
// and the default bucket (§4.4 "candidate gathering" — property ∪ subject
// ∪ default).
func gatherCandidates(t *policy.Tree, s policy.SID, p policy.PID) []policy.CompiledPolicy {
	var out []policy.CompiledPolicy
	out = append(out, t.Property[p]...)
	out = append(out, t.Subject[s]...)
	out = append(out, t.Default...)
	return out
}

// filterApplicable narrows candidates to those whose coordinate and class
// restrictions actually match this flake (§4.4 step 7). Class-scoped
// entries consult cache, lazily resolving the subject's class membership
// through storage only once per subject per cache lifetime. metrics may be
// nil; a miss is only counted when the loader actually runs.
func filterApplicable(ctx context.Context, storage policy.Storage, cache *policy.MembershipCache, metrics *observability.Metrics, candidates []policy.CompiledPolicy, s policy.SID, p policy.PID) ([]policy.CompiledPolicy, error) {
	out := make([]policy.CompiledPolicy, 0, len(candidates))
	for _, c := range candidates {
		if !c.AppliesToFlake(s, p) {
			continue
		}
		if c.ClassPolicy && c.ClassCheckNeeded {
			classes, err := cache.GetOrFill(s, func() (map[policy.ClassSID]struct{}, error) {
				if metrics != nil {
					metrics.ClassCacheMissesTotal.Inc()
				}
				return storage.ClassIDs(ctx, s)
			})
			if err != nil {
				return nil, &policy.InfraError{Op: "resolve subject class membership", Cause: err}
			}
			if !c.AppliesToClasses(classes) {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// evaluated is the outcome of running one CompiledPolicy's decision method.
type evaluated struct {
	policy.CompiledPolicy
	allow bool
}

// evaluateAll runs every candidate's decision method, recording execution
// and allow counts on the tracker as it goes (§2 "Execution Tracker"; §5
// "Trackers use atomic counters").
func evaluateAll(ctx context.Context, storage policy.Storage, queryExecutor policy.QueryExecutor, tracker policy.Tracker, subjectIRI string, candidates []policy.CompiledPolicy, values policy.PolicyValues) ([]evaluated, error) {
	out := make([]evaluated, 0, len(candidates))
	for _, c := range candidates {
		if tracker != nil {
			tracker.RecordExecution(c.ID)
		}

		var allow bool
		switch c.Kind {
		case policy.KindAllow:
			allow = c.AllowValue
		case policy.KindQuery:
			var err error
			allow, err = queryExecutor.Execute(ctx, storage, *c.Query, values, subjectIRI)
			if err != nil {
				return nil, err
			}
		case policy.KindDefaultDeny:
			allow = false
		}

		if allow && tracker != nil {
			tracker.RecordAllow(c.ID)
		}
		out = append(out, evaluated{CompiledPolicy: c, allow: allow})
	}
	return out, nil
}

// reduce implements §4.4's allow/deny reduction: every Required entry must
// allow, and at least one entry (required or permissive) must allow for the
// overall candidate list to permit the flake. firstDenier names the
// entry responsible for a denial, preferring a required one, for use in
// DeniedError (§4.4 step 9).
func reduce(evals []evaluated) (allowed bool, firstDenier *policy.CompiledPolicy) {
	anyAllow := false
	requiredFailed := false
	var requiredDenier, anyDenier *policy.CompiledPolicy

	for i := range evals {
		e := &evals[i]
		if e.allow {
			anyAllow = true
			continue
		}
		if anyDenier == nil {
			anyDenier = &e.CompiledPolicy
		}
		if e.Required {
			requiredFailed = true
			if requiredDenier == nil {
				requiredDenier = &e.CompiledPolicy
			}
		}
	}

	if requiredFailed {
		return false, requiredDenier
	}
	if !anyAllow {
		return false, anyDenier
	}
	return true, nil
}
