// Package memory provides in-memory test doubles for the outbound ports
// this core consumes, mirroring the teacher's MemoryPolicyStore
// copy-on-read/write discipline (development/testing only — a real
// deployment wires a genuine graph engine behind policy.Storage).
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/graphguard/policycore/internal/domain/policy"
)

// ErrSubjectNotFound is returned by SidToIri when the SID has no known
// mapping in this store. IriToSID never returns it: an unknown IRI is
// assigned a fresh SID.
var ErrSubjectNotFound = errors.New("subject not found")

// triple is a minimal in-memory fact: (subject, predicate, object-SID).
// Object values that are not refs are not needed by any policy-core
// operation, so this double only models ref-shaped triples plus class
// membership, which is all §6's Storage contract actually reads.
type triple struct {
	s, p, o policy.SID
}

// Storage is an in-memory implementation of policy.Storage. Namespaces
// are assigned by first-use order, mirroring a real IRI codec's compact
// encoding without requiring one.
type Storage struct {
	mu sync.RWMutex

	iriToSID map[string]policy.SID
	sidToIri map[policy.SID]string
	nextNS   int

	// classOf maps subject SID to its asserted class SIDs (the `@type`
	// edges), backing ClassIDs.
	classOf map[policy.SID]map[policy.ClassSID]struct{}
	// propertiesOf tracks, for each subject, which properties it
	// carries — used to derive ClassProperties without a real index.
	propertiesOf map[policy.SID]map[policy.PID]struct{}
	// triples backs IndexRange lookups.
	triples []triple

	// queryFn, when set, backs Query; tests install a stub that
	// inspects the parsed query map and returns rows. A real storage
	// engine would instead run its SPARQL/FQL executor here.
	queryFn func(ctx context.Context, q policy.ParsedQuery, values policy.PolicyValues) ([]map[string]any, error)
}

// New creates an empty in-memory Storage double.
func New() *Storage {
	return &Storage{
		iriToSID:     make(map[string]policy.SID),
		sidToIri:     make(map[policy.SID]string),
		classOf:      make(map[policy.SID]map[policy.ClassSID]struct{}),
		propertiesOf: make(map[policy.SID]map[policy.PID]struct{}),
	}
}

// SetQueryFunc installs the stub backing Query, for tests exercising the
// Target Resolver and Policy-Query Executor against canned results.
func (s *Storage) SetQueryFunc(fn func(ctx context.Context, q policy.ParsedQuery, values policy.PolicyValues) ([]map[string]any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryFn = fn
}

// sidLocked encodes iri to a SID, assigning a fresh namespace on first
// use. Must be called with s.mu held for writing.
func (s *Storage) sidLocked(iri string) policy.SID {
	if sid, ok := s.iriToSID[iri]; ok {
		return sid
	}
	ns := s.nextNS
	s.nextNS++
	sid := policy.SID{Namespace: ns, Name: iri}
	s.iriToSID[iri] = sid
	s.sidToIri[sid] = iri
	return sid
}

// AssertType records that subject is an instance of class, and that it
// carries the @type property (for ClassProperties bookkeeping).
func (s *Storage) AssertType(subjectIRI, classIRI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj := s.sidLocked(subjectIRI)
	class := s.sidLocked(classIRI)
	if s.classOf[subj] == nil {
		s.classOf[subj] = make(map[policy.ClassSID]struct{})
	}
	s.classOf[subj][class] = struct{}{}
	s.notePropertyLocked(subj, policy.TypeProperty)
}

// AssertTriple records a ref-shaped fact (subject, predicate, object),
// updating the per-subject property set used by ClassProperties.
func (s *Storage) AssertTriple(subjectIRI, predicateIRI, objectIRI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj := s.sidLocked(subjectIRI)
	pred := s.sidLocked(predicateIRI)
	obj := s.sidLocked(objectIRI)
	s.triples = append(s.triples, triple{s: subj, p: pred, o: obj})
	s.notePropertyLocked(subj, pred)
}

func (s *Storage) notePropertyLocked(subj policy.SID, pred policy.PID) {
	if s.propertiesOf[subj] == nil {
		s.propertiesOf[subj] = make(map[policy.PID]struct{})
	}
	s.propertiesOf[subj][pred] = struct{}{}
}

// ClassIDs implements policy.Storage.
func (s *Storage) ClassIDs(_ context.Context, sid policy.SID) (map[policy.ClassSID]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	classes := s.classOf[sid]
	out := make(map[policy.ClassSID]struct{}, len(classes))
	for c := range classes {
		out[c] = struct{}{}
	}
	return out, nil
}

// Query implements policy.Storage by delegating to the installed stub.
func (s *Storage) Query(ctx context.Context, q policy.ParsedQuery, values policy.PolicyValues) ([]map[string]any, error) {
	s.mu.RLock()
	fn := s.queryFn
	s.mu.RUnlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, q, values)
}

// IriToSID implements policy.Storage.
func (s *Storage) IriToSID(iri string) (policy.SID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sid, ok := s.iriToSID[iri]; ok {
		return sid, nil
	}
	return s.sidLocked(iri), nil
}

// SidToIri implements policy.Storage.
func (s *Storage) SidToIri(sid policy.SID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iri, ok := s.sidToIri[sid]
	if !ok {
		return "", fmt.Errorf("sid %s: %w", sid, ErrSubjectNotFound)
	}
	return iri, nil
}

// IndexRange implements policy.Storage with a linear scan — adequate for
// an in-memory test double; a real storage engine uses its actual index.
func (s *Storage) IndexRange(_ context.Context, indexName string, predicate policy.PID, args []any) ([]policy.Flake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []policy.Flake
	for _, t := range s.triples {
		if t.p != predicate {
			continue
		}
		if len(args) > 0 {
			if want, ok := args[0].(policy.SID); ok && t.s != want {
				continue
			}
		}
		out = append(out, policy.Flake{Subject: t.s, Predicate: t.p, Object: t.o, Op: true})
	}
	_ = indexName
	return out, nil
}

// ClassProperties implements policy.Storage by inverting the recorded
// per-subject property sets restricted to instances of the requested
// classes — the same statistic §4.2 needs, computed without a real
// index-layer stats cache. A nil classes slice means "every class in the
// database", the convention class expansion's disjointness check relies on
// to get database-wide usage statistics.
func (s *Storage) ClassProperties(_ context.Context, classes []policy.ClassSID) (map[policy.ClassSID]map[policy.PID]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var want map[policy.ClassSID]struct{}
	if classes != nil {
		want = make(map[policy.ClassSID]struct{}, len(classes))
		for _, c := range classes {
			want[c] = struct{}{}
		}
	}

	out := make(map[policy.ClassSID]map[policy.PID]struct{}, len(classes))
	for _, c := range classes {
		out[c] = make(map[policy.PID]struct{})
	}

	for subj, memberOf := range s.classOf {
		for class := range memberOf {
			if want != nil {
				if _, ok := want[class]; !ok {
					continue
				}
			}
			if out[class] == nil {
				out[class] = make(map[policy.PID]struct{})
			}
			for p := range s.propertiesOf[subj] {
				out[class][p] = struct{}{}
			}
		}
	}
	return out, nil
}

// Dump renders all known triples as a deterministic string, for test
// assertions and debugging.
func (s *Storage) Dump() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]string, 0, len(s.triples))
	for _, t := range s.triples {
		lines = append(lines, fmt.Sprintf("%s %s %s", s.sidToIri[t.s], s.sidToIri[t.p], s.sidToIri[t.o]))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

var _ policy.Storage = (*Storage)(nil)
