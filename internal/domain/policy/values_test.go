package policy

import "testing"

func TestEnsureGroundIdentity_BindsWhenAbsent(t *testing.T) {
	pv := PolicyValues{}
	out, err := EnsureGroundIdentity(pv)
	if err != nil {
		t.Fatalf("EnsureGroundIdentity() error = %v", err)
	}
	if len(out.Rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(out.Rows))
	}
	v, ok := out.Rows[0][IdentityVar]
	if !ok || v == nil {
		t.Fatal("expected a ground ?$identity binding to be present")
	}
}

func TestEnsureGroundIdentity_PreservesExisting(t *testing.T) {
	pv := PolicyValues{
		Vars: []string{IdentityVar},
		Rows: []map[string]any{{IdentityVar: "urn:user:alice"}},
	}
	out, err := EnsureGroundIdentity(pv)
	if err != nil {
		t.Fatalf("EnsureGroundIdentity() error = %v", err)
	}
	if out.Rows[0][IdentityVar] != "urn:user:alice" {
		t.Errorf("expected existing identity to be preserved, got %v", out.Rows[0][IdentityVar])
	}
}

func TestEnsureGroundIdentity_NeverProducesSameValueTwice(t *testing.T) {
	first, err := EnsureGroundIdentity(PolicyValues{})
	if err != nil {
		t.Fatalf("EnsureGroundIdentity() error = %v", err)
	}
	second, err := EnsureGroundIdentity(PolicyValues{})
	if err != nil {
		t.Fatalf("EnsureGroundIdentity() error = %v", err)
	}
	if first.Rows[0][IdentityVar] == second.Rows[0][IdentityVar] {
		t.Error("two independently-ground identities must not collide")
	}
}

func TestPolicyValues_WithIdentityBinding(t *testing.T) {
	pv := PolicyValues{}
	bound := pv.WithIdentityBinding("urn:user:alice")

	if len(bound.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(bound.Rows))
	}
	if bound.Rows[0][IdentityVar] != "urn:user:alice" {
		t.Errorf("expected ?$identity bound to urn:user:alice, got %v", bound.Rows[0][IdentityVar])
	}
	if len(pv.Rows) != 0 {
		t.Error("WithIdentityBinding must not mutate the receiver")
	}
}

func TestPolicyValues_WithIdentityBinding_PreservesExisting(t *testing.T) {
	pv := PolicyValues{
		Vars: []string{IdentityVar},
		Rows: []map[string]any{{IdentityVar: "urn:user:alice"}},
	}
	bound := pv.WithIdentityBinding("urn:user:mallory")

	if bound.Rows[0][IdentityVar] != "urn:user:alice" {
		t.Errorf("an already-bound ?$identity must not be overwritten, got %v", bound.Rows[0][IdentityVar])
	}
}

func TestPolicyValues_WithThisBinding(t *testing.T) {
	pv := PolicyValues{
		Vars: []string{IdentityVar},
		Rows: []map[string]any{{IdentityVar: "urn:user:alice"}},
	}
	bound := pv.WithThisBinding("urn:doc:report-1")

	if len(bound.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(bound.Rows))
	}
	if bound.Rows[0][IdentityVar] != "urn:user:alice" {
		t.Error("expected the original identity binding to survive")
	}
	thisVal, ok := bound.Rows[0][ThisVar].(map[string]any)
	if !ok {
		t.Fatalf("expected ?$this binding to be a map, got %T", bound.Rows[0][ThisVar])
	}
	if thisVal["value"] != "urn:doc:report-1" {
		t.Errorf("expected ?$this value urn:doc:report-1, got %v", thisVal["value"])
	}

	// The original pv must be untouched (WithThisBinding clones).
	if _, ok := pv.Rows[0][ThisVar]; ok {
		t.Error("WithThisBinding must not mutate the receiver")
	}
}
