package service

import (
	"context"
	"log/slog"

	"github.com/graphguard/policycore/internal/domain/policy"
)

// Refresher implements policy.Refresher (§4.6 "refresh_modify_policies").
// It re-resolves the raw target expressions of query-backed CompiledPolicy
// entries against the post-stage database immediately before a transaction
// batch is evaluated, since a subquery's result may have changed since
// compile time.
type Refresher struct {
	concurrency int
	logger      *slog.Logger
}

// NewRefresher creates a Refresher. concurrency is forwarded to the
// per-refresh TargetResolver it builds against dbAfter (§5 "bounded
// concurrency ≥ 2").
func NewRefresher(concurrency int, logger *slog.Logger) *Refresher {
	return &Refresher{concurrency: concurrency, logger: logger}
}

// Refresh implements policy.Refresher. Only the Modify tree is refreshed;
// the View tree's query-backed target sets stay as resolved at compile
// time (a KindQuery decision query still runs live on each evaluation,
// §4.5). Modify decisions are pinned to the state immediately preceding
// the transaction batch they gate.
func (r *Refresher) Refresh(ctx context.Context, w *policy.PolicyWrapper, dbAfter policy.Storage, values policy.PolicyValues) error {
	resolver := NewTargetResolver(dbAfter, r.concurrency, r.logger)
	return refreshTree(ctx, w.Modify, resolver, values)
}

func refreshTree(ctx context.Context, t *policy.Tree, resolver policy.TargetResolver, values policy.PolicyValues) error {
	for pid, entries := range t.Property {
		for i := range entries {
			if err := refreshEntry(ctx, &entries[i], resolver, values); err != nil {
				return err
			}
		}
		t.Property[pid] = entries
	}
	for sid, entries := range t.Subject {
		for i := range entries {
			if err := refreshEntry(ctx, &entries[i], resolver, values); err != nil {
				return err
			}
		}
		t.Subject[sid] = entries
	}
	for i := range t.Default {
		if err := refreshEntry(ctx, &t.Default[i], resolver, values); err != nil {
			return err
		}
	}
	return nil
}

// refreshEntry re-resolves one CompiledPolicy's raw target expressions and
// merges any newly-found SIDs into its existing restriction sets. Union,
// never replace: a target resolved once must stay resolved even if a
// concurrent write momentarily makes it unreachable again, which is what
// keeps refresh idempotent (§8.5).
func refreshEntry(ctx context.Context, c *policy.CompiledPolicy, resolver policy.TargetResolver, values policy.PolicyValues) error {
	if !c.HasQueryTargets() {
		return nil
	}

	if subjectSpecs := c.RawSubjectSpecs(); len(subjectSpecs) > 0 {
		resolved, err := resolver.Resolve(ctx, subjectSpecs, values)
		if err != nil {
			return &policy.InfraError{Op: "refresh: re-resolve subject targets", Cause: err}
		}
		c.SubjectTargets = unionSIDs(c.SubjectTargets, resolved)
	}
	if propertySpecs := c.RawPropertySpecs(); len(propertySpecs) > 0 {
		resolved, err := resolver.Resolve(ctx, propertySpecs, values)
		if err != nil {
			return &policy.InfraError{Op: "refresh: re-resolve property targets", Cause: err}
		}
		c.PropertyTargets = unionPIDs(c.PropertyTargets, resolved)
	}
	return nil
}

func unionSIDs(existing, add map[policy.SID]struct{}) map[policy.SID]struct{} {
	if existing == nil {
		existing = make(map[policy.SID]struct{}, len(add))
	}
	for sid := range add {
		existing[sid] = struct{}{}
	}
	return existing
}

func unionPIDs(existing, add map[policy.PID]struct{}) map[policy.PID]struct{} {
	if existing == nil {
		existing = make(map[policy.PID]struct{}, len(add))
	}
	for pid := range add {
		existing[pid] = struct{}{}
	}
	return existing
}

var _ policy.Refresher = (*Refresher)(nil)
