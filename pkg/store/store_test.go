package store

import (
	"testing"

	"github.com/dscherger/monotone-core/pkg/ancestry"
	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/manifest"
	"github.com/dscherger/monotone-core/pkg/revision"
)

func TestAdapterParentsAndHeight(t *testing.T) {
	backing := NewMemoryRevisionStore()

	mRoot := manifest.Manifest{"a": identity.Hash([]byte("a1"))}
	backing.PutManifest(mRoot)
	rootRev := &revision.Revision{
		NewManifest: mRoot.Identifier(),
		Edges: []revision.Edge{{
			OldRevision: identity.Null,
			OldManifest: identity.Null,
			ChangeSet:   mustPureAddition(t, mRoot),
		}},
	}
	rootID := mustIdentifier(t, rootRev)
	if err := backing.PutRevision(rootID, rootRev); err != nil {
		t.Fatalf("PutRevision: %v", err)
	}

	mChild := manifest.Manifest{"a": identity.Hash([]byte("a1")), "b": identity.Hash([]byte("b1"))}
	backing.PutManifest(mChild)
	cs, err := revision.ManifestDiff(mRoot, mChild)
	if err != nil {
		t.Fatalf("ManifestDiff: %v", err)
	}
	childRev := &revision.Revision{
		NewManifest: mChild.Identifier(),
		Edges:       []revision.Edge{{OldRevision: rootID, OldManifest: mRoot.Identifier(), ChangeSet: cs}},
	}
	childID := mustIdentifier(t, childRev)
	if err := backing.PutRevision(childID, childRev); err != nil {
		t.Fatalf("PutRevision: %v", err)
	}

	adapter := NewAdapter(backing)

	parents, err := adapter.Parents(childID)
	if err != nil {
		t.Fatalf("Parents: %v", err)
	}
	if len(parents) != 1 || parents[0] != rootID {
		t.Fatalf("expected parents [%s], got %v", rootID, parents)
	}

	rootHeight, err := adapter.Height(rootID)
	if err != nil {
		t.Fatalf("Height(root): %v", err)
	}
	childHeight, err := adapter.Height(childID)
	if err != nil {
		t.Fatalf("Height(child): %v", err)
	}
	if !ancestry.Less(rootHeight, childHeight) {
		t.Fatalf("expected root height %v < child height %v", rootHeight, childHeight)
	}

	exists, err := adapter.RevisionExists(childID)
	if err != nil {
		t.Fatalf("RevisionExists: %v", err)
	}
	if !exists {
		t.Fatalf("expected child revision to exist")
	}

	gotManifest, err := adapter.GetManifest(mChild.Identifier())
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if gotManifest.Identifier() != mChild.Identifier() {
		t.Fatalf("manifest identity mismatch")
	}
}

func mustPureAddition(t *testing.T, m manifest.Manifest) *changeset.ChangeSet {
	t.Helper()
	cs, err := manifest.BuildPureAdditionChangeSet(m)
	if err != nil {
		t.Fatalf("BuildPureAdditionChangeSet: %v", err)
	}
	return cs
}

func mustIdentifier(t *testing.T, r *revision.Revision) identity.Identifier {
	t.Helper()
	id, err := revision.Identifier(r)
	if err != nil {
		t.Fatalf("revision.Identifier: %v", err)
	}
	return id
}
