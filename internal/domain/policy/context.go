package policy

import "context"

// requestIdentityKey is the context key type for the caller identity IRI
// bound to ?$identity for the enclosing request or transaction.
type requestIdentityKey struct{}

// WithIdentity stores the caller's identity IRI in the context so
// compilation (policycore's Session.Compile) can bind it to ?$identity
// without the caller re-threading it through PolicyValues.
func WithIdentity(ctx context.Context, identityIRI string) context.Context {
	return context.WithValue(ctx, requestIdentityKey{}, identityIRI)
}

// IdentityFromContext retrieves the caller identity IRI stored by
// WithIdentity, or "" if none was stored.
func IdentityFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIdentityKey{}).(string)
	return v
}

// decisionKey is the context key type for the last enforcement decision.
type decisionKey struct{}

// WithDecision stores a policy decision in the context so a caller
// composing multiple enforcement calls (e.g. a transaction applying many
// flakes) can inspect the most recent one without re-plumbing it.
func WithDecision(ctx context.Context, d *Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext retrieves a policy decision from the context.
// Returns nil if no decision is stored.
func DecisionFromContext(ctx context.Context) *Decision {
	d, _ := ctx.Value(decisionKey{}).(*Decision)
	return d
}
