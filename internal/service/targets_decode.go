package service

import (
	"fmt"

	"github.com/graphguard/policycore/internal/domain/policy"
)

// decodeTargetList turns a raw `f:onSubject`/`f:onProperty`-shaped list
// (IRI strings or subquery maps) into TargetExpr values (§3
// "TargetExpr").
func decodeTargetList(raw []any) ([]policy.TargetExpr, error) {
	out := make([]policy.TargetExpr, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, policy.TargetExpr{Iri: t})
		case map[string]any:
			out = append(out, policy.TargetExpr{Query: t})
		default:
			return nil, fmt.Errorf("target entry must be an IRI string or a query map, got %T", v)
		}
	}
	return out, nil
}

// combineTargetLists merges a preferred list with its legacy alias,
// de-duplicating nothing (callers resolve to a set downstream) — the
// compiler's "subject_specs = onSubject ∪ targetSubject" (§4.1 step 3).
func combineTargetLists(preferred, legacy []any) []any {
	if len(legacy) == 0 {
		return preferred
	}
	if len(preferred) == 0 {
		return legacy
	}
	out := make([]any, 0, len(preferred)+len(legacy))
	out = append(out, preferred...)
	out = append(out, legacy...)
	return out
}
