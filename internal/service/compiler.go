package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
)

// Compiler implements policy.Compiler (§4.1 "wrap_policy"). It is
// side-effect-free apart from reading from the database for subqueries,
// as required by §4.1's closing sentence.
type Compiler struct {
	storage  policy.Storage
	resolver policy.TargetResolver
	tracker  policy.Tracker
	logger   *slog.Logger
}

// NewCompiler creates a Compiler. tracker is attached to every wrapper
// produced by Wrap, matching §2's "Execution Tracker" living alongside
// the compiled policies it will later count against.
func NewCompiler(storage policy.Storage, resolver policy.TargetResolver, tracker policy.Tracker, logger *slog.Logger) *Compiler {
	return &Compiler{storage: storage, resolver: resolver, tracker: tracker, logger: logger}
}

// Wrap implements policy.Compiler.
func (c *Compiler) Wrap(ctx context.Context, docs []policy.PolicyDocument, values policy.PolicyValues, defaultAllow bool) (*policy.PolicyWrapper, error) {
	ctx, span := observability.Tracer().Start(ctx, "policy.compiler.wrap")
	defer span.End()

	grounded, err := policy.EnsureGroundIdentity(values)
	if err != nil {
		return nil, fmt.Errorf("wrap_policy: ground identity: %w", err)
	}

	w := policy.NewPolicyWrapper(grounded, defaultAllow, c.tracker)

	for _, doc := range docs {
		if err := c.compileOne(ctx, w, doc); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// compileOne implements the per-document steps of §4.1.
func (c *Compiler) compileOne(ctx context.Context, w *policy.PolicyWrapper, doc policy.PolicyDocument) error {
	if err := ValidatePolicyDocument(doc); err != nil {
		return err
	}

	action := doc.ResolvedAction()

	tmpl := CompiledPolicyTemplate{
		ID:        doc.ID,
		Required:  doc.Required,
		ExMessage: doc.ExMessage,
		View:      action.View,
		Modify:    action.Modify,
	}
	switch {
	case doc.Allow != nil:
		tmpl.Kind = policy.KindAllow
		tmpl.AllowValue = *doc.Allow
	case doc.Query != nil:
		tmpl.Kind = policy.KindQuery
		q := coercePolicyQuery(doc.Query)
		tmpl.Query = &q
	default:
		tmpl.Kind = policy.KindDefaultDeny
	}

	subjectRaw, err := decodeTargetList(combineTargetLists(doc.OnSubject, doc.TargetSubject))
	if err != nil {
		return &policy.InvalidPolicyError{DocID: doc.ID, Reason: err.Error(), Cause: err}
	}
	propertyRaw, err := decodeTargetList(combineTargetLists(doc.OnProperty, doc.TargetProperty))
	if err != nil {
		return &policy.InvalidPolicyError{DocID: doc.ID, Reason: err.Error(), Cause: err}
	}

	hasSubjectTargeting := len(subjectRaw) > 0
	hasPropertyTargeting := len(propertyRaw) > 0

	var subjectSIDs, propertySIDs map[policy.SID]struct{}
	if hasSubjectTargeting {
		subjectSIDs, err = c.resolver.Resolve(ctx, subjectRaw, w.PolicyValues)
		if err != nil {
			return &policy.InfraError{Op: fmt.Sprintf("resolve onSubject for policy %s", doc.ID), Cause: err}
		}
	}
	if hasPropertyTargeting {
		propertySIDs, err = c.resolver.Resolve(ctx, propertyRaw, w.PolicyValues)
		if err != nil {
			return &policy.InfraError{Op: fmt.Sprintf("resolve onProperty for policy %s", doc.ID), Cause: err}
		}
	}

	// Classification is driven by whether a coordinate was *targeted*, not
	// by whether it currently resolved to anything: a query-backed target
	// with zero matches right now must still be kept (and re-resolved on
	// refresh, §4.6) rather than silently dropped (§8 scenario 6).
	switch {
	case hasPropertyTargeting && !hasSubjectTargeting:
		if hasAnyQuery(propertyRaw) {
			c.storeDefaultBucket(w, tmpl, nil, propertySIDs, subjectRaw, propertyRaw)
		} else {
			c.storePropertyRestriction(w, tmpl, propertySIDs)
		}
	case hasSubjectTargeting && !hasPropertyTargeting:
		if hasAnyQuery(subjectRaw) {
			c.storeDefaultBucket(w, tmpl, subjectSIDs, nil, subjectRaw, propertyRaw)
		} else {
			c.storeSubjectRestriction(w, tmpl, subjectSIDs)
		}
	case hasSubjectTargeting && hasPropertyTargeting:
		c.storeDefaultBucket(w, tmpl, subjectSIDs, propertySIDs, subjectRaw, propertyRaw)
	case len(doc.OnClass) > 0:
		if err := c.storeClassRestriction(ctx, w, tmpl, doc.OnClass); err != nil {
			return err
		}
	case doc.Default:
		c.storeDefaultMatchAll(w, tmpl)
	default:
		// No targeting and no `f:default` — already validated that the
		// document has a decision method (§4.1 step 5); such a policy
		// is inert and is simply not indexed anywhere.
		if c.logger != nil {
			c.logger.Debug("policy has decision but no effective targeting, not indexed", "policy_id", doc.ID)
		}
	}
	return nil
}

// coercePolicyQuery implements §4.1 step 2: "coerce it by adding
// `select ?$this` and `limit 1`".
func coercePolicyQuery(raw map[string]any) policy.ParsedQuery {
	out := make(map[string]any, len(raw)+2)
	for k, v := range raw {
		out[k] = v
	}
	out["select"] = []string{policy.ThisVar}
	out["limit"] = 1
	return policy.ParsedQuery{Raw: out}
}

// storePropertyRestriction indexes an entry per resolved property SID.
// Only used for purely static (IRI-only) property targeting: every pid
// here is fixed for the wrapper's lifetime, so there is nothing for
// refresh to extend and the property index gives O(1) lookup.
func (c *Compiler) storePropertyRestriction(w *policy.PolicyWrapper, tmpl CompiledPolicyTemplate, pids map[policy.PID]struct{}) {
	for pid := range pids {
		entry := tmpl.ToCompiledPolicy()
		appendToTrees(w, entry, func(t *policy.Tree) {
			t.Property[pid] = append(t.Property[pid], entry)
		})
	}
}

// storeSubjectRestriction indexes an entry per resolved subject SID. Only
// used for purely static (IRI-only) subject targeting; see
// storePropertyRestriction.
func (c *Compiler) storeSubjectRestriction(w *policy.PolicyWrapper, tmpl CompiledPolicyTemplate, sids map[policy.SID]struct{}) {
	for sid := range sids {
		entry := tmpl.ToCompiledPolicy()
		appendToTrees(w, entry, func(t *policy.Tree) {
			t.Subject[sid] = append(t.Subject[sid], entry)
		})
	}
}

// storeDefaultBucket stores a single entry in the default bucket, carrying
// whichever of sids/pids were targeted (nil means "unrestricted" on that
// coordinate; AppliesToFlake ANDs the two). Used whenever either
// coordinate is query-backed, since the default bucket's entries are
// found by a linear AppliesToFlake scan rather than a map key — the only
// shape that lets refresh (§4.6) extend SubjectTargets/PropertyTargets
// with SIDs that didn't exist at compile time, including growing a
// target set that started out empty (§8 scenario 6).
func (c *Compiler) storeDefaultBucket(w *policy.PolicyWrapper, tmpl CompiledPolicyTemplate, sids map[policy.SID]struct{}, pids map[policy.PID]struct{}, subjectRaw, propertyRaw []policy.TargetExpr) {
	entry := tmpl.ToCompiledPolicy()
	entry.SubjectTargets = sids
	entry.PropertyTargets = pids
	entry.SetRawTargets(subjectRaw, propertyRaw)
	appendToTrees(w, entry, func(t *policy.Tree) {
		t.Default = append(t.Default, entry)
	})
}

func (c *Compiler) storeDefaultMatchAll(w *policy.PolicyWrapper, tmpl CompiledPolicyTemplate) {
	entry := tmpl.ToCompiledPolicy()
	entry.IsDefaultMatchAll = true
	appendToTrees(w, entry, func(t *policy.Tree) {
		t.Default = append(t.Default, entry)
	})
}

func (c *Compiler) storeClassRestriction(ctx context.Context, w *policy.PolicyWrapper, tmpl CompiledPolicyTemplate, classIRIs []string) error {
	byPID, err := expandClassPolicy(ctx, c.storage, classIRIs, tmpl)
	if err != nil {
		return err
	}
	for pid, entry := range byPID {
		entry := entry
		appendToTrees(w, entry, func(t *policy.Tree) {
			t.Property[pid] = append(t.Property[pid], entry)
		})
	}
	return nil
}

// appendToTrees copies entry into w.View and/or w.Modify according to
// its View/Modify flags, using add to perform the tree-specific insert
// (§4.1 step 4: "stored under {view|modify}.property[pid]" etc).
func appendToTrees(w *policy.PolicyWrapper, entry policy.CompiledPolicy, add func(t *policy.Tree)) {
	if entry.View {
		add(w.View)
	}
	if entry.Modify {
		add(w.Modify)
	}
}

func hasAnyQuery(targets []policy.TargetExpr) bool {
	for _, t := range targets {
		if t.IsQuery() {
			return true
		}
	}
	return false
}

var _ policy.Compiler = (*Compiler)(nil)
