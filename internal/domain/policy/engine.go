package policy

import "context"

// Storage is the set of storage-engine operations this core consumes
// (§6 "Storage / DB contract"). Implementations own the real index/query
// layer; internal/adapter/outbound/memory provides an in-memory double
// for tests.
type Storage interface {
	// ClassIDs returns the class SIDs subject sid is an instance of.
	ClassIDs(ctx context.Context, sid SID) (map[ClassSID]struct{}, error)
	// Query executes a parsed query against db and returns result rows
	// keyed by the query's selected variables.
	Query(ctx context.Context, q ParsedQuery, values PolicyValues) ([]map[string]any, error)
	// IriToSID encodes an IRI to its compact SID via the database's
	// IRI codec.
	IriToSID(iri string) (SID, error)
	// SidToIri decodes a SID back to its IRI.
	SidToIri(sid SID) (string, error)
	// IndexRange locates flakes matching predicate/args in the named
	// index (§6, §5 "Suspension points"). Refresh does not call it: it
	// re-resolves query-backed targets through Query only.
	IndexRange(ctx context.Context, indexName string, predicate PID, args []any) ([]Flake, error)
	// ClassProperties returns, for each class SID, the set of property
	// SIDs observed on its instances (§6 "stats(db).classes"). Only
	// required when any policy uses onClass; implementations may return
	// an error if class statistics are unavailable.
	ClassProperties(ctx context.Context, classes []ClassSID) (map[ClassSID]map[PID]struct{}, error)
}

// Tracker records per-policy execution and allow counts for a request
// (§2 "Execution Tracker"; §5 "Trackers use atomic counters").
type Tracker interface {
	// RecordExecution is called once per evaluated CompiledPolicy,
	// regardless of outcome.
	RecordExecution(policyID string)
	// RecordAllow is called once when a CompiledPolicy's evaluation
	// allows.
	RecordAllow(policyID string)
}

// Compiler parses policy documents against a database and caller values
// into an immutable PolicyWrapper (§4.1 "wrap_policy").
type Compiler interface {
	// Wrap compiles docs into a PolicyWrapper. defaultAllow governs the
	// empty-candidate-list outcome (§4.4 step 5). Returns
	// *InvalidPolicyError for a rejected document and *InfraError for a
	// class-statistics or subquery failure (§7).
	Wrap(ctx context.Context, docs []PolicyDocument, values PolicyValues, defaultAllow bool) (*PolicyWrapper, error)
}

// TargetResolver resolves a sequence of target expressions to a set of
// SIDs, executing query expressions as subqueries with bounded
// concurrency (§4.3).
type TargetResolver interface {
	Resolve(ctx context.Context, targets []TargetExpr, values PolicyValues) (map[SID]struct{}, error)
}

// ViewEnforcer decides whether a candidate triple may be viewed (§4.4).
type ViewEnforcer interface {
	// AllowFlake reports whether flake f may be included in a query
	// result under wrapper w.
	AllowFlake(ctx context.Context, w *PolicyWrapper, cache *MembershipCache, f Flake) (bool, error)
	// AllowIRI reports whether an IRI's mere visibility (e.g. as a
	// result @id) is permitted, by synthesising an @id flake (§4.4 "IRI
	// visibility").
	AllowIRI(ctx context.Context, w *PolicyWrapper, cache *MembershipCache, sid SID) (bool, error)
}

// ModifyEnforcer decides whether a transaction may assert/retract a
// candidate triple, raising DeniedError on denial (§4.4, §4.7).
type ModifyEnforcer interface {
	// AllowFlake returns nil if the modification is permitted, or a
	// *DeniedError if the evaluated policies deny it (a required policy
	// denies, or none allows) or no policy applies and the wrapper does
	// not default-allow.
	AllowFlake(ctx context.Context, w *PolicyWrapper, cache *MembershipCache, f Flake) error
}

// QueryExecutor runs a policy's embedded query against the root view of
// the database, substituting ?$this for the candidate subject (§4.5).
type QueryExecutor interface {
	Execute(ctx context.Context, root Storage, q ParsedQuery, values PolicyValues, subjectIRI string) (bool, error)
}

// Refresher re-resolves query-backed targets against the post-stage
// database before a transaction batch is evaluated (§4.6
// "refresh_modify_policies").
type Refresher interface {
	Refresh(ctx context.Context, w *PolicyWrapper, dbAfter Storage, values PolicyValues) error
}
