package policy

// Decision is the outcome of evaluating a candidate list against a
// single flake. View enforcement only ever returns Allowed; Modify
// enforcement turns a non-allow into a *DeniedError (§4.4 step 9).
type Decision struct {
	Allowed bool
	// PolicyID is the CompiledPolicy.ID that produced this decision, or
	// empty when no candidate applied (default-allow path).
	PolicyID string
	// Reason is a short machine-oriented explanation.
	Reason string
}
