package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate validates cfg using struct tags plus a cross-field rule,
// mirroring the teacher's RegisterCustomValidators + Validate() pattern
// in internal/config/validator.go.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(cfg); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field: a policy-query timeout longer than a minute is almost
	// certainly a misconfigured unit (seconds written where a duration
	// string was expected), not a real intent — catch it before it
	// turns into an enforcement-path hang bounded only by the storage
	// engine's own timeout.
	if cfg.PolicyQueryTimeout > 0 && cfg.PolicyQueryTimeout.Minutes() > 1 {
		return errors.New("policy_query_timeout: exceeds 1 minute, check units (expected a duration like \"5s\")")
	}

	return nil
}

// formatValidationErrors turns validator field errors into a single
// actionable message.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config validation failed: %v", msgs)
}
