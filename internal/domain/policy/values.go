package policy

import (
	"crypto/rand"
	"encoding/hex"
)

// IdentityVar is the well-known query variable bound to the caller's
// identity IRI (GLOSSARY "Policy values"; §6 "Well-known variables").
const IdentityVar = "?$identity"

// ThisVar is the well-known query variable bound to the candidate subject
// at enforcement time. LegacyTargetVar is accepted wherever ThisVar is,
// but only in target-resolver subqueries (§6, §9 Open questions).
const (
	ThisVar         = "?$this"
	LegacyTargetVar = "?$target"
)

// PolicyValues holds pre-bound query variables supplied by the caller —
// notably ?$identity — embedded into every policy query run for a session
// (§3 "PolicyValues").
type PolicyValues struct {
	// Vars names the bound variables, in column order.
	Vars []string
	// Rows holds one binding row per Vars column; each row is a
	// map from variable name to its bound value.
	Rows []map[string]any
}

// unmatchableBytes is the byte width of the random identity placeholder;
// wide enough that collision with a real IRI is not a practical concern.
const unmatchableBytes = 16

// ensureGroundIdentity returns the random, unmatchable string bound to
// ?$identity when the caller supplied none. This is never a database IRI:
// policies MUST NOT treat an unbound ?$identity as a wildcard (§3, §6).
func ensureGroundIdentity() (string, error) {
	buf := make([]byte, unmatchableBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "urn:policycore:unmatchable:" + hex.EncodeToString(buf), nil
}

// EnsureGroundIdentity returns pv unchanged if ?$identity is already
// bound in some row, or a copy with a fresh unmatchable binding appended
// otherwise. This is the invariant checked by §8.3: the policy query
// executor is never invoked with an unground ?$identity.
func EnsureGroundIdentity(pv PolicyValues) (PolicyValues, error) {
	for _, name := range pv.Vars {
		if name != IdentityVar {
			continue
		}
		for _, row := range pv.Rows {
			if v, ok := row[IdentityVar]; ok && v != nil {
				return pv, nil
			}
		}
	}

	ground, err := ensureGroundIdentity()
	if err != nil {
		return PolicyValues{}, err
	}

	out := PolicyValues{
		Vars: append(append([]string{}, pv.Vars...)),
		Rows: make([]map[string]any, len(pv.Rows)),
	}
	hasIdentityCol := false
	for _, name := range out.Vars {
		if name == IdentityVar {
			hasIdentityCol = true
		}
	}
	if !hasIdentityCol {
		out.Vars = append(out.Vars, IdentityVar)
	}
	for i, row := range pv.Rows {
		r := make(map[string]any, len(row)+1)
		for k, v := range row {
			r[k] = v
		}
		r[IdentityVar] = ground
		out.Rows[i] = r
	}
	if len(out.Rows) == 0 {
		out.Rows = []map[string]any{{IdentityVar: ground}}
	}
	return out, nil
}

// WithIdentityBinding clones pv and binds ?$identity to identityIRI in
// every row, unless a row already carries a non-nil binding for it. Used
// to thread a caller identity stored via WithIdentity into the values
// passed to Compile, rather than falling through to an unmatchable
// ground placeholder (§3 "PolicyValues").
func (pv PolicyValues) WithIdentityBinding(identityIRI string) PolicyValues {
	out := PolicyValues{
		Vars: append([]string{}, pv.Vars...),
		Rows: make([]map[string]any, len(pv.Rows)),
	}
	hasIdentityCol := false
	for _, name := range out.Vars {
		if name == IdentityVar {
			hasIdentityCol = true
		}
	}
	if !hasIdentityCol {
		out.Vars = append(out.Vars, IdentityVar)
	}
	for i, row := range pv.Rows {
		r := make(map[string]any, len(row)+1)
		for k, v := range row {
			r[k] = v
		}
		if v, ok := r[IdentityVar]; !ok || v == nil {
			r[IdentityVar] = identityIRI
		}
		out.Rows[i] = r
	}
	if len(out.Rows) == 0 {
		out.Rows = []map[string]any{{IdentityVar: identityIRI}}
	}
	return out
}

// WithThisBinding clones pv and binds ThisVar to the given IRI in every
// row (a single row when pv has none) — the substitution the Policy-Query
// Executor performs per §4.5. LegacyTargetVar is not bound here.
func (pv PolicyValues) WithThisBinding(thisIRI string) PolicyValues {
	out := PolicyValues{
		Vars: append(append([]string{}, pv.Vars...), ThisVar),
		Rows: make([]map[string]any, len(pv.Rows)),
	}
	for i, row := range pv.Rows {
		r := make(map[string]any, len(row)+1)
		for k, v := range row {
			r[k] = v
		}
		r[ThisVar] = map[string]any{"value": thisIRI, "type": "@id"}
		out.Rows[i] = r
	}
	if len(out.Rows) == 0 {
		out.Rows = []map[string]any{{ThisVar: map[string]any{"value": thisIRI, "type": "@id"}}}
	}
	return out
}
