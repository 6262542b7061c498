package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graphguard/policycore/internal/adapter/outbound/memory"
	"github.com/graphguard/policycore/internal/domain/policy"
)

func TestModifyEnforcer_DenyReturnsDeniedError(t *testing.T) {
	storage := memory.New()
	resolver := NewTargetResolver(storage, 2, nil)
	exec := NewQueryExecutor(time.Second, nil, nil)
	enforcer := NewModifyEnforcer(storage, exec, nil)
	compiler := NewCompiler(storage, resolver, nil, nil)

	doc := policy.PolicyDocument{
		ID:         "no-salary-writes",
		OnProperty: []any{"urn:prop:salary"},
		Allow:      boolPtr(false),
		ExMessage:  "salary is read-only",
	}
	w, err := compiler.Wrap(context.Background(), []policy.PolicyDocument{doc}, policy.PolicyValues{}, true)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	salarySID, _ := storage.IriToSID("urn:prop:salary")
	subj, _ := storage.IriToSID("urn:user:alice")
	cache := policy.NewMembershipCache(0)

	err = enforcer.AllowFlake(context.Background(), w, cache, policy.Flake{Subject: subj, Predicate: salarySID})
	if err == nil {
		t.Fatal("expected AllowFlake to deny the write")
	}
	if !errors.Is(err, policy.ErrPolicyDenied) {
		t.Fatalf("expected errors.Is(err, policy.ErrPolicyDenied), got %v", err)
	}
	var denied *policy.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *policy.DeniedError, got %T", err)
	}
	if denied.Message != "salary is read-only" {
		t.Errorf("expected the policy's ExMessage to surface, got %q", denied.Message)
	}
}

func TestModifyEnforcer_EmptyCandidateListUsesDefaultAllow(t *testing.T) {
	storage := memory.New()
	exec := NewQueryExecutor(time.Second, nil, nil)
	enforcer := NewModifyEnforcer(storage, exec, nil)

	w := policy.NewPolicyWrapper(policy.PolicyValues{}, false, nil)
	subj, _ := storage.IriToSID("urn:user:alice")
	pred, _ := storage.IriToSID("urn:prop:anything")
	cache := policy.NewMembershipCache(0)

	err := enforcer.AllowFlake(context.Background(), w, cache, policy.Flake{Subject: subj, Predicate: pred})
	if !errors.Is(err, policy.ErrPolicyDenied) {
		t.Fatalf("expected default-deny for an empty candidate list with DefaultAllow=false, got %v", err)
	}

	w.DefaultAllow = true
	if err := enforcer.AllowFlake(context.Background(), w, cache, policy.Flake{Subject: subj, Predicate: pred}); err != nil {
		t.Errorf("expected default-allow for an empty candidate list with DefaultAllow=true, got %v", err)
	}
}

func TestModifyEnforcer_RootBypassesEverything(t *testing.T) {
	storage := memory.New()
	exec := NewQueryExecutor(time.Second, nil, nil)
	enforcer := NewModifyEnforcer(storage, exec, nil)

	w := policy.RootWrapper(nil)
	cache := policy.NewMembershipCache(0)
	subj, _ := storage.IriToSID("urn:user:alice")
	pred, _ := storage.IriToSID("urn:prop:anything")

	if err := enforcer.AllowFlake(context.Background(), w, cache, policy.Flake{Subject: subj, Predicate: pred}); err != nil {
		t.Errorf("a root wrapper must allow every modification unconditionally, got %v", err)
	}
}
