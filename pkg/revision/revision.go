// Package revision implements revision composition (§4.8): a revision is a
// new manifest plus one edge per parent, each edge carrying the change-set
// from that parent's manifest to this revision's, and the whole thing
// canonically serialized and hashed to produce a content-addressed
// revision_id exactly as a manifest's serialization produces a manifest_id
// (pkg/manifest).
package revision

import (
	"sort"

	"github.com/dscherger/monotone-core/pkg/ancestry"
	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/manifest"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

// Edge is one parent relationship of a revision: the parent's revision and
// manifest identifiers, plus the change-set from that parent's manifest to
// this revision's.
type Edge struct {
	OldRevision identity.Identifier
	OldManifest identity.Identifier
	ChangeSet   *changeset.ChangeSet
}

// Revision is a node in the revision graph: a manifest identifier plus the
// edges connecting it to its parents (zero for a root, one for an ordinary
// commit, two for a merge).
type Revision struct {
	NewManifest identity.Identifier
	Edges       []Edge
}

// Node is the minimal description construct_revision_from_ancestry needs of
// a revision graph node: its own manifest and the revisions of its parents,
// in no particular order (0, 1, or 2 of them).
type Node struct {
	Manifest identity.Identifier
	Parents  []identity.Identifier
}

// ManifestSource answers get_manifest (§6).
type ManifestSource interface {
	GetManifest(id identity.Identifier) (manifest.Manifest, error)
}

// RevisionManifestSource answers get_revision_manifest (§6): the manifest
// identifier a given revision recorded, needed because Node carries parent
// revision ids, not parent manifest ids.
type RevisionManifestSource interface {
	GetRevisionManifest(rev identity.Identifier) (identity.Identifier, error)
}

// Source is everything construct_revision_from_ancestry needs from the
// revision store: manifest lookups by id and by owning revision, plus the
// ancestry graph queries (§4.5) needed to locate the common merge ancestor
// of a two-parent node.
type Source interface {
	ancestry.ParentSource
	ancestry.HeightSource
	ManifestSource
	RevisionManifestSource
}

// ConstructRevisionFromAncestry builds the revision record for node
// (§4.8). A node with no parents gets one edge from the null revision with
// a full pure-addition change-set; one parent gets a single edge whose
// change-set is obtained by diffing the two manifests directly; two parents
// (a merge) get one edge per parent, each additionally splicing
// delete-then-add pairs for files the *other* parent's path back to the
// common merge ancestor has killed and this parent's has not, preserving
// path identity across the merge as the original C++ source's
// construct_revision_from_ancestry does via its need_killing_files set.
func ConstructRevisionFromAncestry(src Source, node Node) (*Revision, error) {
	mNew, err := src.GetManifest(node.Manifest)
	if err != nil {
		return nil, err
	}

	switch len(node.Parents) {
	case 0:
		cs, err := manifest.BuildPureAdditionChangeSet(mNew)
		if err != nil {
			return nil, err
		}
		return &Revision{
			NewManifest: node.Manifest,
			Edges: []Edge{{
				OldRevision: identity.Null,
				OldManifest: identity.Null,
				ChangeSet:   cs,
			}},
		}, nil

	case 1:
		edge, err := buildEdge(src, node.Parents[0], mNew, nil)
		if err != nil {
			return nil, err
		}
		return &Revision{NewManifest: node.Manifest, Edges: []Edge{edge}}, nil

	case 2:
		left, right := node.Parents[0], node.Parents[1]
		ancestorID, found, err := ancestry.CommonMergeAncestor(src, src, left, right)
		if err != nil {
			return nil, err
		}

		var leftKilled, rightKilled map[string]struct{}
		if found {
			leftKilled, err = killedSince(src, ancestorID, left)
			if err != nil {
				return nil, err
			}
			rightKilled, err = killedSince(src, ancestorID, right)
			if err != nil {
				return nil, err
			}
		}

		leftEdge, err := buildEdge(src, left, mNew, onlyInA(rightKilled, leftKilled))
		if err != nil {
			return nil, err
		}
		rightEdge, err := buildEdge(src, right, mNew, onlyInA(leftKilled, rightKilled))
		if err != nil {
			return nil, err
		}
		return &Revision{NewManifest: node.Manifest, Edges: []Edge{leftEdge, rightEdge}}, nil

	default:
		return nil, vcserr.ErrInvariantViolation
	}
}

// buildEdge constructs the edge from parent to mNew, diffing their
// manifests and splicing a delete-then-add pair for every path in
// needKilling (present in both parent's manifest and mNew, §4.8).
func buildEdge(src Source, parent identity.Identifier, mNew manifest.Manifest, needKilling map[string]struct{}) (Edge, error) {
	parentManifestID, err := src.GetRevisionManifest(parent)
	if err != nil {
		return Edge{}, err
	}
	parentManifest, err := src.GetManifest(parentManifestID)
	if err != nil {
		return Edge{}, err
	}
	cs, err := ManifestDiff(parentManifest, mNew)
	if err != nil {
		return Edge{}, err
	}
	inNew := make(map[string]struct{}, len(needKilling))
	for path := range needKilling {
		if _, ok := mNew[path]; ok {
			inNew[path] = struct{}{}
		}
	}
	if err := spliceKilled(cs, parentManifest, inNew); err != nil {
		return Edge{}, err
	}
	return Edge{OldRevision: parent, OldManifest: parentManifestID, ChangeSet: cs}, nil
}

// ManifestDiff derives the change-set taking mOld to mNew purely by
// comparing path sets and content identifiers, with no rename detection
// (§4.8: "the change-set obtained by analyzing manifest differences"): a
// path present only in mOld is a delete, present only in mNew is an add,
// and present in both with differing identifiers is an in-place delta.
func ManifestDiff(mOld, mNew manifest.Manifest) (*changeset.ChangeSet, error) {
	cs := changeset.New()
	for path := range mOld {
		if _, ok := mNew[path]; !ok {
			if err := cs.DeleteFile(path); err != nil {
				return nil, err
			}
		}
	}
	paths := make([]string, 0, len(mNew))
	for path := range mNew {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		newID := mNew[path]
		oldID, ok := mOld[path]
		if !ok {
			if err := cs.AddFileWithID(path, newID); err != nil {
				return nil, err
			}
			continue
		}
		if oldID != newID {
			if err := cs.ApplyDelta(path, oldID, newID); err != nil {
				return nil, err
			}
		}
	}
	return cs, nil
}

// spliceKilled inserts a delete_file/add_file pair for every path in
// needKilling that parentManifest still carries; the add re-registers the
// parent's content identifier, recorded as a delta from the null
// identifier. This makes the edge record the
// file's identity as re-established at the merge rather than continuous
// through a parent that never touched it (§4.8).
func spliceKilled(cs *changeset.ChangeSet, parentManifest manifest.Manifest, needKilling map[string]struct{}) error {
	paths := make([]string, 0, len(needKilling))
	for path := range needKilling {
		if _, stillAlive := parentManifest[path]; stillAlive {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		id := parentManifest[path]
		if err := cs.DeleteFile(path); err != nil {
			return err
		}
		if err := cs.AddFileWithID(path, id); err != nil {
			return err
		}
	}
	return nil
}

// killedSince returns the set of paths present in ancestor's manifest but
// absent from descendant's: the files descendant's path back to ancestor
// has killed, read directly off the two manifest snapshots rather than by
// walking intermediate edges (sufficient for the manifest-diff model this
// package uses throughout).
func killedSince(src Source, ancestorRev, descendantRev identity.Identifier) (map[string]struct{}, error) {
	ancestorManifestID, err := src.GetRevisionManifest(ancestorRev)
	if err != nil {
		return nil, err
	}
	ancestorManifest, err := src.GetManifest(ancestorManifestID)
	if err != nil {
		return nil, err
	}
	descendantManifestID, err := src.GetRevisionManifest(descendantRev)
	if err != nil {
		return nil, err
	}
	descendantManifest, err := src.GetManifest(descendantManifestID)
	if err != nil {
		return nil, err
	}
	killed := map[string]struct{}{}
	for path := range ancestorManifest {
		if _, ok := descendantManifest[path]; !ok {
			killed[path] = struct{}{}
		}
	}
	return killed, nil
}

// onlyInA is std::set_difference(a, b) (§4.8's need_killing_files): the
// paths killed along one parent's path but not the other's.
func onlyInA(a, b map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for path := range a {
		if _, inB := b[path]; !inB {
			out[path] = struct{}{}
		}
	}
	return out
}
