package weave

import (
	"testing"

	"github.com/dscherger/monotone-core/pkg/comparison"
	"github.com/dscherger/monotone-core/pkg/identity"
)

func rev(label string) identity.Identifier {
	return identity.Hash([]byte(label))
}

func TestNewFileStateCurrentMatchesInitial(t *testing.T) {
	lines := []string{"one", "two", "three"}
	fs := NewFileState(lines, rev("r0"))
	if !comparison.StringSlicesEqual(fs.Current(), lines) {
		t.Fatalf("Current() = %v, want %v", fs.Current(), lines)
	}
}

func TestResolveInsertAndDelete(t *testing.T) {
	r0 := rev("r0")
	r1 := rev("r1")
	fs0 := NewFileState([]string{"one", "two", "three"}, r0)
	fs1 := fs0.Resolve([]string{"one", "INSERTED", "three"}, r1)
	if !comparison.StringSlicesEqual(fs1.Current(), []string{"one", "INSERTED", "three"}) {
		t.Fatalf("Current() after resolve = %v", fs1.Current())
	}
	// "two" should be recorded as dead at r1, not deleted from the weave.
	found := false
	for _, l := range fs0.Weave.Lines() {
		if l.Content == "two" {
			found = true
			if fs1.States[l.ID].IsLiving() {
				t.Fatalf("line %q should be dead in fs1", l.Content)
			}
		}
	}
	if !found {
		t.Fatalf("line %q missing from weave after resolve", "two")
	}
}

func TestResolveInsertsRunInOrder(t *testing.T) {
	r0 := rev("r0")
	r1 := rev("r1")
	fs0 := NewFileState([]string{"top", "bottom"}, r0)
	fs1 := fs0.Resolve([]string{"top", "m1", "m2", "m3", "bottom"}, r1)
	want := []string{"top", "m1", "m2", "m3", "bottom"}
	if !comparison.StringSlicesEqual(fs1.Current(), want) {
		t.Fatalf("Current() = %v, want %v", fs1.Current(), want)
	}
}

func TestResolveFromEmptyState(t *testing.T) {
	r0 := rev("r0")
	r1 := rev("r1")
	fs0 := NewFileState(nil, r0)
	fs1 := fs0.Resolve([]string{"a", "b", "c"}, r1)
	if !comparison.StringSlicesEqual(fs1.Current(), []string{"a", "b", "c"}) {
		t.Fatalf("Current() = %v", fs1.Current())
	}
}

func TestResolveIdempotent(t *testing.T) {
	r0 := rev("r0")
	r1 := rev("r1")
	fs0 := NewFileState([]string{"a", "b", "c"}, r0)
	fs1 := fs0.Resolve([]string{"a", "b", "c"}, r1)
	if !comparison.StringSlicesEqual(fs1.Current(), []string{"a", "b", "c"}) {
		t.Fatalf("resolving to identical content changed Current(): %v", fs1.Current())
	}
}

func TestMashThenConflictNoDisagreement(t *testing.T) {
	r0 := rev("r0")
	fs0 := NewFileState([]string{"a", "b"}, r0)
	sections := fs0.Conflict(fs0)
	if len(sections) != 1 || sections[0].Conflict {
		t.Fatalf("merging a state with itself produced conflicts: %+v", sections)
	}
	if !comparison.StringSlicesEqual(sections[0].Left, []string{"a", "b"}) {
		t.Fatalf("clean section content = %v", sections[0].Left)
	}
}

func TestConflictOnDivergentEdits(t *testing.T) {
	r0 := rev("r0")
	rLeft := rev("left")
	rRight := rev("right")
	base := NewFileState([]string{"shared", "line"}, r0)
	left := base.Resolve([]string{"shared", "LEFT"}, rLeft)
	right := base.Resolve([]string{"shared", "RIGHT"}, rRight)

	sections := left.Conflict(right)
	var sawConflict bool
	for _, s := range sections {
		if s.Conflict {
			sawConflict = true
		}
	}
	if !sawConflict {
		t.Fatalf("expected a conflict section, got %+v", sections)
	}
}

func TestDeletedOnOneBranchUntouchedOnOtherMergesToDeleted(t *testing.T) {
	// Testable property 12: a line deleted on one branch and untouched on
	// the other merges to deleted.
	r0 := rev("r0")
	rLeft := rev("left")
	base := NewFileState([]string{"keep", "gone"}, r0)
	left := base.Resolve([]string{"keep"}, rLeft)
	right := base // untouched

	sections := left.Conflict(right)
	for _, s := range sections {
		if s.Conflict {
			t.Fatalf("clean delete-vs-untouched should not conflict: %+v", sections)
		}
	}
	mashed := left.Mash(right)
	for _, l := range base.Weave.Lines() {
		if l.Content == "gone" {
			if mashed.States[l.ID].IsLiving() {
				t.Fatalf("deleted line should be dead after mash with untouched branch")
			}
		}
	}
}
