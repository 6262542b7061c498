package policy

import (
	"errors"
	"testing"
)

func TestMembershipCache_GetOrFillCachesResult(t *testing.T) {
	sid := SID{Namespace: 0, Name: "alice"}
	class := ClassSID{Namespace: 0, Name: "Employee"}

	calls := 0
	loader := func() (map[ClassSID]struct{}, error) {
		calls++
		return map[ClassSID]struct{}{class: {}}, nil
	}

	cache := NewMembershipCache(0)
	first, err := cache.GetOrFill(sid, loader)
	if err != nil {
		t.Fatalf("GetOrFill() error = %v", err)
	}
	second, err := cache.GetOrFill(sid, loader)
	if err != nil {
		t.Fatalf("GetOrFill() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("expected loader to run once, ran %d times", calls)
	}
	if _, ok := first[class]; !ok {
		t.Error("expected first result to contain the class")
	}
	if _, ok := second[class]; !ok {
		t.Error("expected cached result to contain the class")
	}
}

func TestMembershipCache_GetOrFillPropagatesLoaderError(t *testing.T) {
	sid := SID{Namespace: 0, Name: "alice"}
	wantErr := errors.New("storage unavailable")
	cache := NewMembershipCache(0)

	_, err := cache.GetOrFill(sid, func() (map[ClassSID]struct{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error to propagate, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("expected a failed load not to be cached, cache has %d entries", cache.Len())
	}
}

func TestMembershipCache_BoundedEviction(t *testing.T) {
	cache := NewMembershipCache(1)
	loader := func(class ClassSID) func() (map[ClassSID]struct{}, error) {
		return func() (map[ClassSID]struct{}, error) {
			return map[ClassSID]struct{}{class: {}}, nil
		}
	}

	a := SID{Namespace: 0, Name: "a"}
	b := SID{Namespace: 0, Name: "b"}
	classA := ClassSID{Namespace: 0, Name: "A"}
	classB := ClassSID{Namespace: 0, Name: "B"}

	if _, err := cache.GetOrFill(a, loader(classA)); err != nil {
		t.Fatalf("GetOrFill(a) error = %v", err)
	}
	if _, err := cache.GetOrFill(b, loader(classB)); err != nil {
		t.Fatalf("GetOrFill(b) error = %v", err)
	}

	if cache.Len() > 1 {
		t.Errorf("bounded cache with maxSize=1 should hold at most 1 entry, has %d", cache.Len())
	}
}

func TestRootWrapper_BothTreesAreRoot(t *testing.T) {
	w := RootWrapper(nil)
	if !w.IsRoot() {
		t.Error("RootWrapper() should produce a wrapper where IsRoot() is true")
	}
	if !w.View.Root || !w.Modify.Root {
		t.Error("RootWrapper() must mark both View and Modify trees as Root")
	}
	if !w.DefaultAllow {
		t.Error("RootWrapper() must default-allow, since it bypasses all indexing")
	}
}

func TestTree_IsEmpty(t *testing.T) {
	empty := newTree()
	if !empty.IsEmpty() {
		t.Error("a freshly constructed tree should be empty")
	}

	withDefault := newTree()
	withDefault.Default = append(withDefault.Default, CompiledPolicy{ID: "p1"})
	if withDefault.IsEmpty() {
		t.Error("a tree with a default-bucket entry should not be empty")
	}

	root := &Tree{Root: true}
	if root.IsEmpty() {
		t.Error("a root tree should never report empty")
	}
}
