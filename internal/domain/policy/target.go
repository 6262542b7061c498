package policy

// TargetExpr is a single target expression: either a literal IRI or a
// subquery map evaluated at compile time (and again at refresh) to
// produce a set of SIDs (§3 "TargetExpr").
type TargetExpr struct {
	// Iri holds the literal IRI when this expression is static.
	Iri string
	// Query holds the raw subquery map when this expression is dynamic.
	// Nil when Iri is set.
	Query map[string]any
}

// IsQuery reports whether this target expression must be resolved
// against the database rather than passed straight through the IRI codec.
func (t TargetExpr) IsQuery() bool {
	return t.Query != nil
}

// Action is the set of enforcement paths a policy applies to.
type Action struct {
	View   bool
	Modify bool
}

// PolicyDocument is the raw JSON-LD policy document as received from the
// caller, keyed by the `f:` vocabulary (§6 "Policy vocabulary"). It is
// validated structurally (see internal/service/policydoc.go) before the
// compiler ever normalizes its targeting.
type PolicyDocument struct {
	// ID is the policy's `@id`.
	ID string `json:"@id" validate:"required"`

	// OnSubject is the preferred subject-targeting key; TargetSubject is
	// accepted as a legacy alias. Each entry is either an IRI string or a
	// subquery map; the compiler decodes each list into TargetExpr values
	// (decodeTargetList in internal/service/targets_decode.go).
	OnSubject     []any `json:"f:onSubject,omitempty"`
	TargetSubject []any `json:"f:targetSubject,omitempty"`

	OnProperty     []any `json:"f:onProperty,omitempty"`
	TargetProperty []any `json:"f:targetProperty,omitempty"`

	// OnClass lists class IRIs verbatim; SIDs are computed at expansion.
	OnClass []string `json:"f:onClass,omitempty"`

	// Allow is the literal decision. Nil means "no literal decision";
	// distinguishing "false" from "absent" requires a pointer.
	Allow *bool `json:"f:allow,omitempty"`

	// Query is the policy body, coerced to `select ?$this limit 1` by
	// the compiler (§4.1 step 2).
	Query map[string]any `json:"f:query,omitempty"`

	// Required marks this policy as required: all required policies in
	// a candidate list must pass (§4.4 step 6).
	Required bool `json:"f:required,omitempty"`

	// ExMessage is surfaced verbatim on modify denial.
	ExMessage string `json:"f:exMessage,omitempty"`

	// ActionKeys holds the raw `f:action` set; empty means both view and
	// modify. Recognized values are "f:view" and "f:modify".
	ActionKeys []string `json:"f:action,omitempty" validate:"omitempty,dive,oneof=f:view f:modify"`

	// Default, when true and the document has no subject, property or
	// class targeting, makes this a default policy matching every flake
	// (§4.1 step 4 last case). When any such targeting is present, that
	// targeting is used and Default has no effect.
	Default bool `json:"f:default,omitempty"`
}

// ResolvedAction parses ActionKeys into an Action; an empty set means both.
func (d PolicyDocument) ResolvedAction() Action {
	if len(d.ActionKeys) == 0 {
		return Action{View: true, Modify: true}
	}
	var a Action
	for _, k := range d.ActionKeys {
		switch k {
		case "f:view":
			a.View = true
		case "f:modify":
			a.Modify = true
		}
	}
	return a
}
