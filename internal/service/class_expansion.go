package service

import (
	"context"

	"github.com/graphguard/policycore/internal/domain/policy"
)

// expandClassPolicy implements §4.2 "Class Expansion". For every
// property observed across the policy's target classes (plus the
// implicit @id/@type), it emits one CompiledPolicy template — the
// property-to-class-subset mapping — leaving the caller to copy it into
// both the property index and, per action, the view/modify trees.
func expandClassPolicy(ctx context.Context, storage policy.Storage, classIRIs []string, base CompiledPolicyTemplate) (map[policy.PID]policy.CompiledPolicy, error) {
	classSIDs := make([]policy.ClassSID, 0, len(classIRIs))
	classByIRI := make(map[string]policy.ClassSID, len(classIRIs))
	for _, iri := range classIRIs {
		sid, err := storage.IriToSID(iri)
		if err != nil {
			return nil, &policy.InfraError{Op: "class expansion: encode class IRI", Cause: err}
		}
		classSIDs = append(classSIDs, sid)
		classByIRI[iri] = sid
	}
	targetClasses := make(map[policy.ClassSID]struct{}, len(classSIDs))
	for _, c := range classSIDs {
		targetClasses[c] = struct{}{}
	}

	// classes[C].properties for the target classes only; the
	// database-wide statistics needed to tell whether a property is
	// EXCLUSIVE to the target classes or shared with some other class
	// (§4.2 "class_check_needed?") are fetched further below by
	// allClassesUsingEveryProperty.
	allClasses, err := storage.ClassProperties(ctx, classSIDs)
	if err != nil {
		return nil, &policy.InfraError{Op: "class expansion: fetch class statistics", Cause: err}
	}

	// propertyToClasses: Map<PID, Set<ClassSID>>, restricted to on_class
	// (§4.2 "Builds property_to_classes ... restricted to on_class").
	propertyToClasses := make(map[policy.PID]map[policy.ClassSID]struct{})
	for class, props := range allClasses {
		if _, wanted := targetClasses[class]; !wanted {
			continue
		}
		for p := range props {
			if propertyToClasses[p] == nil {
				propertyToClasses[p] = make(map[policy.ClassSID]struct{})
			}
			propertyToClasses[p][class] = struct{}{}
		}
	}

	// Unconditionally add @id and @type — every subject carries them.
	for _, implicit := range []policy.PID{policy.IDProperty, policy.TypeProperty} {
		if propertyToClasses[implicit] == nil {
			propertyToClasses[implicit] = make(map[policy.ClassSID]struct{})
		}
		for c := range targetClasses {
			propertyToClasses[implicit][c] = struct{}{}
		}
	}

	// all_classes_using(pid) across the WHOLE database (not just
	// on_class), needed to test disjointness for class_check_needed?.
	allClassesUsing, err := allClassesUsingEveryProperty(ctx, storage, propertyToClasses)
	if err != nil {
		return nil, err
	}

	out := make(map[policy.PID]policy.CompiledPolicy, len(propertyToClasses))
	for pid, classesHere := range propertyToClasses {
		entry := base.ToCompiledPolicy()
		entry.ClassPolicy = true
		entry.ForClasses = copyClassSet(classesHere)

		needsCheck := policy.IsImplicit(pid)
		if !needsCheck {
			allUsing := allClassesUsing[pid]
			needsCheck = len(classesHere) < len(allUsing)
		}
		entry.ClassCheckNeeded = needsCheck

		out[pid] = entry
	}
	return out, nil
}

// allClassesUsingEveryProperty fetches, for every property appearing in
// propertyToClasses, the full set of classes (database-wide) that use
// it — §4.2's "classes_using_property_in_this_policy ⊊
// all_classes_using(pid)" disjointness test requires the database-wide
// set, not just the on_class-restricted one.
func allClassesUsingEveryProperty(ctx context.Context, storage policy.Storage, propertyToClasses map[policy.PID]map[policy.ClassSID]struct{}) (map[policy.PID]map[policy.ClassSID]struct{}, error) {
	// A real storage engine would expose a direct "classes using this
	// property" statistic; this core asks for ClassProperties over
	// nil (meaning "all classes") and inverts, which the in-memory
	// test double and any conforming Storage implementation support.
	allStats, err := storage.ClassProperties(ctx, nil)
	if err != nil {
		return nil, &policy.InfraError{Op: "class expansion: fetch database-wide class statistics", Cause: err}
	}

	out := make(map[policy.PID]map[policy.ClassSID]struct{}, len(propertyToClasses))
	for pid := range propertyToClasses {
		out[pid] = make(map[policy.ClassSID]struct{})
	}
	for class, props := range allStats {
		for p := range props {
			if set, ok := out[p]; ok {
				set[class] = struct{}{}
			}
		}
	}
	return out, nil
}

func copyClassSet(in map[policy.ClassSID]struct{}) map[policy.ClassSID]struct{} {
	out := make(map[policy.ClassSID]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// CompiledPolicyTemplate carries the fields copied verbatim into every
// fanned-out entry (§4.2 "Copies of required?, ex_message, view?,
// modify?, decision method").
type CompiledPolicyTemplate struct {
	ID         string
	Kind       policy.Kind
	AllowValue bool
	Query      *policy.ParsedQuery
	Required   bool
	ExMessage  string
	View       bool
	Modify     bool
}

// ToCompiledPolicy materializes the template into a fresh CompiledPolicy.
func (t CompiledPolicyTemplate) ToCompiledPolicy() policy.CompiledPolicy {
	return policy.CompiledPolicy{
		ID:         t.ID,
		Kind:       t.Kind,
		AllowValue: t.AllowValue,
		Query:      t.Query,
		Required:   t.Required,
		ExMessage:  t.ExMessage,
		View:       t.View,
		Modify:     t.Modify,
	}
}
