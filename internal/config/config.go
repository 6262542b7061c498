// Package config provides session configuration for the policy core.
//
// Compilation is stateless and per-session (spec §6 "Persisted state:
// None"), but the session still needs a handful of ambient knobs: how
// permissive an empty candidate list is, how much parallelism the target
// resolver is allowed, and how long a policy query may run before it is
// treated as a timeout-deny (§5). Config gathers those knobs the way the
// teacher's OSSConfig gathers its server/upstream/audit settings.
package config

import (
	"time"
)

// Config is the top-level session configuration for the policy core.
type Config struct {
	// DefaultAllow is returned when a candidate list is empty (§4.4 step
	// 5, §8 "Boundary behaviours"). Defaults to false (default-deny).
	DefaultAllow bool `yaml:"default_allow" mapstructure:"default_allow"`

	// TargetResolverConcurrency bounds how many target subqueries run
	// concurrently during compile and refresh (§4.3, §5 "bounded
	// concurrency ≥ 2").
	TargetResolverConcurrency int `yaml:"target_resolver_concurrency" mapstructure:"target_resolver_concurrency" validate:"min=2"`

	// PolicyQueryTimeout bounds a single policy-query evaluation; a
	// timeout surfaces as deny with a diagnostic (§5 "Timeouts").
	PolicyQueryTimeout time.Duration `yaml:"policy_query_timeout" mapstructure:"policy_query_timeout" validate:"min=1"`

	// MembershipCacheMaxSize bounds the per-request class-membership
	// cache; 0 means unbounded, matching §3's stated contract (see
	// SPEC_FULL.md "LRU-shaped membership cache bound").
	MembershipCacheMaxSize int `yaml:"membership_cache_max_size" mapstructure:"membership_cache_max_size" validate:"min=0"`

	// DevMode enables verbose structured logging of compile and
	// enforcement decisions, mirroring the teacher's DevMode flag.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// Default returns the configuration a session gets when no config file
// or environment overrides are present.
func Default() Config {
	return Config{
		DefaultAllow:              false,
		TargetResolverConcurrency: 4,
		PolicyQueryTimeout:        5 * time.Second,
		MembershipCacheMaxSize:    0,
		DevMode:                   false,
	}
}
