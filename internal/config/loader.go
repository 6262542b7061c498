package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix mirrors the teacher's SENTINEL_GATE_ prefix convention for
// nested key overrides (e.g. POLICYCORE_TARGET_RESOLVER_CONCURRENCY).
const envPrefix = "POLICYCORE"

// Load reads configuration from defaults, configFile (if non-empty), and
// environment variables, in that ascending precedence, returning a
// validated Config. An empty configFile means "defaults + environment
// only" — there is no required on-disk config for this core.
func Load(configFile string) (Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("default_allow", defaults.DefaultAllow)
	v.SetDefault("target_resolver_concurrency", defaults.TargetResolverConcurrency)
	v.SetDefault("policy_query_timeout", defaults.PolicyQueryTimeout)
	v.SetDefault("membership_cache_max_size", defaults.MembershipCacheMaxSize)
	v.SetDefault("dev_mode", defaults.DevMode)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
