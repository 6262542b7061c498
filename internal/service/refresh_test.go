package service

import (
	"context"
	"testing"

	"github.com/graphguard/policycore/internal/adapter/outbound/memory"
	"github.com/graphguard/policycore/internal/domain/policy"
)

func TestRefresher_ReResolvesQueryBackedTargetsAndUnions(t *testing.T) {
	storage := memory.New()
	aliceSID, _ := storage.IriToSID("urn:user:alice")
	bobSID, _ := storage.IriToSID("urn:user:bob")

	storage.SetQueryFunc(func(_ context.Context, _ policy.ParsedQuery, _ policy.PolicyValues) ([]map[string]any, error) {
		return []map[string]any{{policy.ThisVar: bobSID}}, nil
	})

	w := policy.NewPolicyWrapper(policy.PolicyValues{}, false, nil)
	entry := policy.CompiledPolicy{
		ID:             "approved-reviewers",
		Kind:           policy.KindAllow,
		AllowValue:     true,
		Modify:         true,
		SubjectTargets: map[policy.SID]struct{}{aliceSID: {}},
	}
	entry.SetRawTargets([]policy.TargetExpr{{Query: map[string]any{"select": "reviewers"}}}, nil)

	sid := policy.SID{Namespace: 99, Name: "fixed-index-key"}
	w.Modify.Subject[sid] = []policy.CompiledPolicy{entry}

	refresher := NewRefresher(2, nil)
	if err := refresher.Refresh(context.Background(), w, storage, policy.PolicyValues{}); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	refreshed := w.Modify.Subject[sid][0]
	if _, ok := refreshed.SubjectTargets[aliceSID]; !ok {
		t.Error("refresh must preserve the previously-resolved subject")
	}
	if _, ok := refreshed.SubjectTargets[bobSID]; !ok {
		t.Error("refresh must add the newly-resolved subject")
	}
}

func TestRefresher_SkipsEntriesWithoutQueryTargets(t *testing.T) {
	storage := memory.New()
	w := policy.NewPolicyWrapper(policy.PolicyValues{}, false, nil)

	entry := policy.CompiledPolicy{ID: "static-only", Kind: policy.KindAllow, AllowValue: true, Modify: true}
	entry.SetRawTargets([]policy.TargetExpr{{Iri: "urn:user:alice"}}, nil)
	w.Modify.Default = append(w.Modify.Default, entry)

	refresher := NewRefresher(2, nil)
	if err := refresher.Refresh(context.Background(), w, storage, policy.PolicyValues{}); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if w.Modify.Default[0].SubjectTargets != nil {
		t.Error("an entry with no query-backed targets must be left untouched by refresh")
	}
}
