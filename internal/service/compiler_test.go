package service

import (
	"context"
	"testing"

	"github.com/graphguard/policycore/internal/adapter/outbound/memory"
	"github.com/graphguard/policycore/internal/domain/policy"
)

func boolPtr(b bool) *bool { return &b }

func TestCompiler_PropertyIndexedAllow(t *testing.T) {
	storage := memory.New()
	resolver := NewTargetResolver(storage, 2, nil)
	tracker := NewRequestTracker(nil)
	compiler := NewCompiler(storage, resolver, tracker, nil)

	doc := policy.PolicyDocument{
		ID:        "deny-salary",
		OnProperty: []any{"urn:prop:salary"},
		Allow:      boolPtr(false),
	}

	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, true)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	salaryPID, _ := storage.IriToSID("urn:prop:salary")
	entries := w.View.Property[salaryPID]
	if len(entries) != 1 {
		t.Fatalf("expected 1 view-indexed entry for salary, got %d", len(entries))
	}
	if entries[0].Kind != policy.KindAllow || entries[0].AllowValue {
		t.Errorf("expected a literal deny entry, got %+v", entries[0])
	}

	modifyEntries := w.Modify.Property[salaryPID]
	if len(modifyEntries) != 1 {
		t.Fatalf("expected 1 modify-indexed entry for salary, got %d", len(modifyEntries))
	}
}

func TestCompiler_SubjectIndexedAllow(t *testing.T) {
	storage := memory.New()
	resolver := NewTargetResolver(storage, 2, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{
		ID:         "own-profile",
		OnSubject:  []any{"urn:user:alice"},
		Allow:      boolPtr(true),
		ActionKeys: []string{"f:view"},
	}

	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, false)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	aliceSID, _ := storage.IriToSID("urn:user:alice")
	if len(w.View.Subject[aliceSID]) != 1 {
		t.Fatalf("expected 1 subject-indexed view entry, got %d", len(w.View.Subject[aliceSID]))
	}
	if len(w.Modify.Subject[aliceSID]) != 0 {
		t.Errorf("f:view-only action must not populate the modify tree")
	}
}

func TestCompiler_DefaultMatchAll(t *testing.T) {
	storage := memory.New()
	resolver := NewTargetResolver(storage, 2, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{ID: "catch-all", Allow: boolPtr(true), Default: true}
	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, false)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if len(w.View.Default) != 1 || !w.View.Default[0].IsDefaultMatchAll {
		t.Fatalf("expected one default-match-all view entry, got %+v", w.View.Default)
	}
}

func TestCompiler_RejectsInvalidDocument(t *testing.T) {
	storage := memory.New()
	resolver := NewTargetResolver(storage, 2, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{ID: "inert"}
	_, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, false)
	if err == nil {
		t.Fatal("expected an error for a policy with neither a decision method nor any targeting")
	}
	var invalid *policy.InvalidPolicyError
	if !asInvalidPolicyError(err, &invalid) {
		t.Fatalf("expected *policy.InvalidPolicyError, got %T: %v", err, err)
	}
}

func asInvalidPolicyError(err error, target **policy.InvalidPolicyError) bool {
	if e, ok := err.(*policy.InvalidPolicyError); ok {
		*target = e
		return true
	}
	return false
}

func TestCompiler_QueryBackedSubjectRoutesToDefaultBucket(t *testing.T) {
	storage := memory.New()
	bobSID, _ := storage.IriToSID("urn:user:bob")
	storage.SetQueryFunc(func(_ context.Context, _ policy.ParsedQuery, _ policy.PolicyValues) ([]map[string]any, error) {
		return []map[string]any{{policy.ThisVar: bobSID}}, nil
	})

	resolver := NewTargetResolver(storage, 2, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{
		ID:        "role-x-members",
		OnSubject: []any{map[string]any{"select": "role-x-members"}},
		Allow:     boolPtr(true),
	}
	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, false)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	if len(w.View.Subject) != 0 {
		t.Error("a query-backed onSubject target must not be indexed under Subject — refresh can't add new keys there")
	}
	if len(w.View.Default) != 1 {
		t.Fatalf("expected the query-backed subject policy in the default bucket, got %d entries", len(w.View.Default))
	}
	entry := w.View.Default[0]
	if !entry.HasQueryTargets() {
		t.Error("expected the default-bucket entry to retain its raw subject spec for refresh")
	}
	if _, ok := entry.SubjectTargets[bobSID]; !ok {
		t.Error("expected bob, resolved at compile time, to already be in SubjectTargets")
	}
	if entry.PropertyTargets != nil {
		t.Error("a subject-only policy must leave PropertyTargets nil (unrestricted)")
	}
}

func TestCompiler_QueryBackedSubjectEmptyResultIsKeptNotDropped(t *testing.T) {
	storage := memory.New()
	storage.SetQueryFunc(func(_ context.Context, _ policy.ParsedQuery, _ policy.PolicyValues) ([]map[string]any, error) {
		return nil, nil
	})

	resolver := NewTargetResolver(storage, 2, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{
		ID:        "role-x-members",
		OnSubject: []any{map[string]any{"select": "role-x-members"}},
		Allow:     boolPtr(true),
	}
	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, false)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	if len(w.View.Default) != 1 {
		t.Fatalf("a policy targeting an empty-right-now role must still be kept for later refresh, got %d default entries", len(w.View.Default))
	}
	entry := w.View.Default[0]
	if entry.SubjectTargets == nil {
		t.Error("SubjectTargets must be a non-nil empty set, not nil (nil would mean unrestricted)")
	}
	if len(entry.SubjectTargets) != 0 {
		t.Errorf("expected zero current subjects, got %d", len(entry.SubjectTargets))
	}
	if !entry.HasQueryTargets() {
		t.Error("expected the raw query spec to be retained so refresh can later populate SubjectTargets")
	}
}

func TestCompiler_ClassExpansion(t *testing.T) {
	storage := memory.New()
	storage.AssertType("urn:user:alice", "urn:class:Employee")
	storage.AssertTriple("urn:user:alice", "urn:prop:salary", "urn:lit:100000")
	storage.AssertTriple("urn:user:alice", "urn:prop:nickname", "urn:lit:al")
	storage.AssertType("urn:user:bob", "urn:class:Guest")
	storage.AssertTriple("urn:user:bob", "urn:prop:nickname", "urn:lit:bobby")

	resolver := NewTargetResolver(storage, 2, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{
		ID:      "employee-fields",
		OnClass: []string{"urn:class:Employee"},
		Allow:   boolPtr(true),
	}
	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, false)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	salaryPID, _ := storage.IriToSID("urn:prop:salary")
	nicknamePID, _ := storage.IriToSID("urn:prop:nickname")

	salaryEntries := w.View.Property[salaryPID]
	if len(salaryEntries) != 1 {
		t.Fatalf("expected 1 entry for salary (exclusive to Employee), got %d", len(salaryEntries))
	}
	if salaryEntries[0].ClassCheckNeeded {
		t.Error("salary is exclusive to Employee in this database, so no class check should be needed")
	}

	nicknameEntries := w.View.Property[nicknamePID]
	if len(nicknameEntries) != 1 {
		t.Fatalf("expected 1 entry for nickname, got %d", len(nicknameEntries))
	}
	if !nicknameEntries[0].ClassCheckNeeded {
		t.Error("nickname is shared with Guest, so class membership must be checked at runtime")
	}
}
