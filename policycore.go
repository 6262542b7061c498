// Package policycore is the public entry point for the policy compilation
// and enforcement core: given a storage backend implementing
// policy.Storage, it wires the compiler, target resolver, query executor,
// view/modify enforcers, and refresher together the way a host database
// embeds this core per session (§2 "Core components").
package policycore

import (
	"context"
	"log/slog"

	"github.com/graphguard/policycore/internal/config"
	"github.com/graphguard/policycore/internal/domain/policy"
	"github.com/graphguard/policycore/internal/observability"
	"github.com/graphguard/policycore/internal/service"
)

// Session bundles one configured instance of this core against a single
// storage backend. It is safe for concurrent use: enforcement never
// mutates a compiled PolicyWrapper, and every enforcement call takes its
// own MembershipCache. RefreshModifyPolicies does update a wrapper's
// modify target sets in place.
type Session struct {
	storage  policy.Storage
	cfg      config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	compiler *service.Compiler
	resolver *service.TargetResolver
	executor *service.QueryExecutor
	view     *service.ViewEnforcer
	modify   *service.ModifyEnforcer
	refresh  *service.Refresher
}

// NewSession wires a Session from storage and cfg. logger may be nil, in
// which case slog.Default() is used. metrics may be nil to skip
// Prometheus registration entirely (e.g. in unit tests).
func NewSession(storage policy.Storage, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	resolver := service.NewTargetResolver(storage, cfg.TargetResolverConcurrency, logger)
	executor := service.NewQueryExecutor(cfg.PolicyQueryTimeout, logger, metrics)

	return &Session{
		storage:  storage,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		compiler: service.NewCompiler(storage, resolver, nil, logger),
		resolver: resolver,
		executor: executor,
		view:     service.NewViewEnforcer(storage, executor, metrics),
		modify:   service.NewModifyEnforcer(storage, executor, metrics),
		refresh:  service.NewRefresher(cfg.TargetResolverConcurrency, logger),
	}
}

// Compile wraps docs into an immutable PolicyWrapper, attaching a fresh
// RequestTracker scoped to this compilation (§4.1 "wrap_policy"). If ctx
// carries a caller identity set via policy.WithIdentity and values does
// not already bind ?$identity, that identity is used instead of an
// unmatchable placeholder.
func (s *Session) Compile(ctx context.Context, docs []policy.PolicyDocument, values policy.PolicyValues) (*policy.PolicyWrapper, error) {
	if identityIRI := policy.IdentityFromContext(ctx); identityIRI != "" {
		values = values.WithIdentityBinding(identityIRI)
	}
	tracker := service.NewRequestTracker(s.metrics)
	compiler := service.NewCompiler(s.storage, s.resolver, tracker, s.logger)
	return compiler.Wrap(ctx, docs, values, s.cfg.DefaultAllow)
}

// NewMembershipCache returns an empty cache honoring the session's
// configured bound, scoped to exactly one enforcement context (§5
// "Shared resources").
func (s *Session) NewMembershipCache() *policy.MembershipCache {
	return policy.NewMembershipCache(s.cfg.MembershipCacheMaxSize)
}

// AllowView reports whether flake f may appear in a query result under w.
func (s *Session) AllowView(ctx context.Context, w *policy.PolicyWrapper, cache *policy.MembershipCache, f policy.Flake) (bool, error) {
	return s.view.AllowFlake(ctx, w, cache, f)
}

// AllowViewIRI reports whether an IRI's mere visibility is permitted.
func (s *Session) AllowViewIRI(ctx context.Context, w *policy.PolicyWrapper, cache *policy.MembershipCache, sid policy.SID) (bool, error) {
	return s.view.AllowIRI(ctx, w, cache, sid)
}

// AllowModify returns nil if f may be asserted/retracted under w, or a
// *policy.DeniedError describing why not.
func (s *Session) AllowModify(ctx context.Context, w *policy.PolicyWrapper, cache *policy.MembershipCache, f policy.Flake) error {
	return s.modify.AllowFlake(ctx, w, cache, f)
}

// RefreshModifyPolicies re-resolves w's query-backed modify targets
// against dbAfter immediately before a transaction batch is evaluated
// (§4.6 "refresh_modify_policies").
func (s *Session) RefreshModifyPolicies(ctx context.Context, w *policy.PolicyWrapper, dbAfter policy.Storage, values policy.PolicyValues) error {
	return s.refresh.Refresh(ctx, w, dbAfter, values)
}

// RootWrapper returns the unrestricted wrapper, under which every view and
// modify check allows without consulting any policy.
func RootWrapper(tracker policy.Tracker) *policy.PolicyWrapper {
	return policy.RootWrapper(tracker)
}
