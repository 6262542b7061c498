package policy

// Kind discriminates a CompiledPolicy's decision method. Exactly one
// variant is effective per policy (§3 "kind").
type Kind int

const (
	// KindAllow is a literal allow/deny decision.
	KindAllow Kind = iota
	// KindQuery is an embedded graph query; a non-empty result allows.
	KindQuery
	// KindDefaultDeny denies whenever reached with no other decision.
	KindDefaultDeny
)

// ParsedQuery is the policy-query body after the compiler has coerced it
// to `select ?$this limit 1` (§4.1 step 2).
type ParsedQuery struct {
	// Raw is the normalized query map, ready for `values` injection and
	// execution by the Policy-Query Executor (§4.5).
	Raw map[string]any
}

// CompiledPolicy is one immutable, indexed entry produced by the Policy
// Compiler. A class-targeting document fans out into one CompiledPolicy
// per (property, class-subset) pair (§4.2); purely static property or
// subject targeting produces one CompiledPolicy per resolved property or
// subject SID; every other targeting shape produces exactly one
// CompiledPolicy (§3 "CompiledPolicy").
type CompiledPolicy struct {
	// ID is the originating policy document's identifier.
	ID string
	// Kind selects which of AllowValue / Query is effective.
	Kind Kind
	// AllowValue is the literal decision when Kind == KindAllow.
	AllowValue bool
	// Query is the parsed embedded query when Kind == KindQuery.
	Query *ParsedQuery

	// Required marks this entry as a required policy (§4.4 step 6).
	Required bool
	// ExMessage is surfaced on modify denial (§4.4 step 9, §7).
	ExMessage string

	// View and Modify select which enforcement trees this entry is
	// stored under; at least one must be true (§3 invariant).
	View   bool
	Modify bool

	// ClassPolicy is true iff this entry was generated by expanding an
	// onClass rule against a specific property (§4.2).
	ClassPolicy bool
	// ClassCheckNeeded is true iff runtime must verify the candidate
	// subject is an instance of one of ForClasses (§4.2).
	ClassCheckNeeded bool
	// ForClasses is the set of class SIDs this entry was fanned out for.
	// Non-empty iff ClassPolicy is true (§3 invariant).
	ForClasses map[ClassSID]struct{}

	// SubjectTargets and PropertyTargets are the resolved SID sets used
	// by default policies that match by explicit triple coordinates
	// (§3 "s_targets, p_targets"). Nil means "unrestricted" (matches any).
	SubjectTargets  map[SID]struct{}
	PropertyTargets map[PID]struct{}

	// IsDefaultMatchAll is true for a policy with no targeting at all
	// that opted in via `f:default` (§4.1 step 4, last case).
	IsDefaultMatchAll bool

	// raw* fields are retained only when any contained target was a
	// query, so refresh can re-resolve them against the post-stage
	// database (§3 "Raw subject_specs..."; §4.6).
	rawSubjectSpecs  []TargetExpr
	rawPropertySpecs []TargetExpr
}

// HasQueryTargets reports whether this entry carries raw target
// expressions that must be re-resolved on refresh (§4.6).
func (c *CompiledPolicy) HasQueryTargets() bool {
	for _, t := range c.rawSubjectSpecs {
		if t.IsQuery() {
			return true
		}
	}
	for _, t := range c.rawPropertySpecs {
		if t.IsQuery() {
			return true
		}
	}
	return false
}

// RawSubjectSpecs returns the raw subject target expressions retained for
// refresh. Exposed read-only; callers must not mutate the result.
func (c *CompiledPolicy) RawSubjectSpecs() []TargetExpr { return c.rawSubjectSpecs }

// RawPropertySpecs returns the raw property target expressions retained
// for refresh.
func (c *CompiledPolicy) RawPropertySpecs() []TargetExpr { return c.rawPropertySpecs }

// SetRawTargets installs the raw target expressions a compiled policy
// must re-resolve on refresh. Called only by the compiler.
func (c *CompiledPolicy) SetRawTargets(subjects, properties []TargetExpr) {
	c.rawSubjectSpecs = subjects
	c.rawPropertySpecs = properties
}

// MatchesSubject reports whether sid is in SubjectTargets, treating a nil
// set as "matches anything" (§4.4 "applies_to_flake").
func (c *CompiledPolicy) MatchesSubject(sid SID) bool {
	if c.SubjectTargets == nil {
		return true
	}
	_, ok := c.SubjectTargets[sid]
	return ok
}

// MatchesProperty reports whether pid is in PropertyTargets, treating a
// nil set as "matches anything".
func (c *CompiledPolicy) MatchesProperty(pid PID) bool {
	if c.PropertyTargets == nil {
		return true
	}
	_, ok := c.PropertyTargets[pid]
	return ok
}

// AppliesToFlake implements §4.4's `applies_to_flake` predicate for
// default policies: matches by explicit s/p coordinates, or
// unconditionally when IsDefaultMatchAll.
func (c *CompiledPolicy) AppliesToFlake(s SID, p PID) bool {
	if c.IsDefaultMatchAll {
		return true
	}
	return c.MatchesSubject(s) && c.MatchesProperty(p)
}

// AppliesToClasses reports whether a class-scoped entry applies given the
// subject's resolved class membership (§4.2, §4.4 step 7).
func (c *CompiledPolicy) AppliesToClasses(subjectClasses map[ClassSID]struct{}) bool {
	if !c.ClassCheckNeeded {
		return true
	}
	for cls := range c.ForClasses {
		if _, ok := subjectClasses[cls]; ok {
			return true
		}
	}
	return false
}
