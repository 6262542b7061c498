package policy

import "sync"

// Tree is one side (view or modify) of a PolicyWrapper's indexed store:
// property-indexed, subject-indexed, and default-bucket CompiledPolicy
// lists, plus the unrestricted fast path (§3 "PolicyWrapper").
type Tree struct {
	Property map[PID][]CompiledPolicy
	Subject  map[SID][]CompiledPolicy
	Default  []CompiledPolicy
	// Root, when true, allows every flake without consulting Property,
	// Subject, or Default (§4.4 "Unrestricted fast path").
	Root bool
}

// IsEmpty reports whether this tree has no capability to deny or evaluate
// anything — the check a "deny-all?" guard (§9 Open Questions) needs,
// since `deny-all?` depends on `modify` being genuinely empty whenever no
// modify-capable policy exists. Nothing in this core calls it.
func (t *Tree) IsEmpty() bool {
	return !t.Root && len(t.Property) == 0 && len(t.Subject) == 0 && len(t.Default) == 0
}

func newTree() *Tree {
	return &Tree{
		Property: make(map[PID][]CompiledPolicy),
		Subject:  make(map[SID][]CompiledPolicy),
	}
}

// MembershipCache maps subject SID to its resolved class SIDs. One
// instance is scoped to a single view request or a single transaction
// batch (§3 "MembershipCache"; §5 "Shared resources" — modify operations
// MUST receive a distinct cache per transaction batch, never the view
// cache).
type MembershipCache struct {
	mu      sync.Mutex
	entries map[SID]map[ClassSID]struct{}
	maxSize int // 0 means unbounded, matching §3's stated contract.
}

// NewMembershipCache creates an empty cache. maxSize <= 0 means
// unbounded; a positive bound evicts an arbitrary entry once full — see
// SPEC_FULL.md's "LRU-shaped membership cache bound" (a soft memory
// bound, not an LRU correctness guarantee).
func NewMembershipCache(maxSize int) *MembershipCache {
	return &MembershipCache{
		entries: make(map[SID]map[ClassSID]struct{}),
		maxSize: maxSize,
	}
}

// GetOrFill returns the cached class set for sid, calling loader on a
// miss and caching the (possibly empty) result. loader is invoked with
// the cache's internal lock released, so a slow storage read for one
// subject does not block lookups for others.
func (c *MembershipCache) GetOrFill(sid SID, loader func() (map[ClassSID]struct{}, error)) (map[ClassSID]struct{}, error) {
	c.mu.Lock()
	if classes, ok := c.entries[sid]; ok {
		c.mu.Unlock()
		return classes, nil
	}
	c.mu.Unlock()

	classes, err := loader()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[sid]; ok {
		return existing, nil
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		// Evict an arbitrary entry; Go map iteration order is
		// randomized, which is sufficient since this is a soft memory
		// bound, not an LRU correctness guarantee (see SPEC_FULL.md).
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[sid] = classes
	return classes, nil
}

// Len returns the number of cached subjects.
func (c *MembershipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// PolicyWrapper is the immutable, indexed, compiled policy store attached
// to a database handle by wrap_policy (§3 "PolicyWrapper"). Enforcement
// does not mutate it (MembershipCaches are passed in per enforcement
// context, not held here; only the Tracker's counters change). The one
// exception is Refresher.Refresh, which unions newly resolved SIDs into
// the Modify tree's SubjectTargets/PropertyTargets in place.
type PolicyWrapper struct {
	View   *Tree
	Modify *Tree

	// PolicyValues are the caller's pre-bound query variables, ground
	// per EnsureGroundIdentity before compilation completes.
	PolicyValues PolicyValues
	// DefaultAllow is returned when a candidate list is empty (§4.4
	// step 5; §8 "Boundary behaviours").
	DefaultAllow bool

	Tracker Tracker
}

// NewPolicyWrapper assembles an empty, writable-during-compile wrapper.
// Callers finish populating View/Modify and must not mutate the result
// once handed to enforcement.
func NewPolicyWrapper(values PolicyValues, defaultAllow bool, tracker Tracker) *PolicyWrapper {
	return &PolicyWrapper{
		View:         newTree(),
		Modify:       newTree(),
		PolicyValues: values,
		DefaultAllow: defaultAllow,
		Tracker:      tracker,
	}
}

// IsRoot reports whether both trees are root (unrestricted), as in the
// wrapper RootWrapper produces.
func (w *PolicyWrapper) IsRoot() bool {
	return w.View.Root && w.Modify.Root
}

// RootWrapper produces the `root? = true` unrestricted wrapper, under
// which both enforcers allow every flake without consulting any policy,
// analogous to the teacher's DefaultPolicy bootstrap (SPEC_FULL.md
// "Supplemented features"). The Policy-Query Executor does not use it: it
// runs embedded queries directly against the policy.Storage it is given.
func RootWrapper(tracker Tracker) *PolicyWrapper {
	w := NewPolicyWrapper(PolicyValues{}, true, tracker)
	w.View.Root = true
	w.Modify.Root = true
	return w
}
