// Package store defines the external interfaces of §6: the revision
// store, the content store, and the merge oracle the core engine consumes
// but never implements itself, plus an Adapter that exposes a
// RevisionStore through the narrower lookup interfaces pkg/ancestry and
// pkg/revision actually need, wrapping every call with
// github.com/pkg/errors per §A.2's store-boundary error policy.
package store

import (
	"github.com/dscherger/monotone-core/pkg/ancestry"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/manifest"
	"github.com/dscherger/monotone-core/pkg/revision"
	"github.com/pkg/errors"
)

// RevisionStore is the revision store's consumed interface (§6).
type RevisionStore interface {
	GetRevision(id identity.Identifier) (*revision.Revision, error)
	GetRevisionManifest(id identity.Identifier) (identity.Identifier, error)
	GetManifest(id identity.Identifier) (manifest.Manifest, error)
	GetRevisionParents(id identity.Identifier) ([]identity.Identifier, error)
	// GetRevisionAncestry returns the full parent->child multimap (§6);
	// callers that only need one revision's parents should prefer
	// GetRevisionParents, which a real store can usually answer far more
	// cheaply than materializing the whole graph.
	GetRevisionAncestry() (map[identity.Identifier][]identity.Identifier, error)
	PutRevision(id identity.Identifier, rec *revision.Revision) error
	RevisionExists(id identity.Identifier) (bool, error)
}

// ContentStore is the content store's consumed interface (§6). Store is
// idempotent under content equality: storing the same bytes twice returns
// the same file_id both times.
type ContentStore interface {
	Store(content []byte) (identity.Identifier, error)
	Load(id identity.Identifier) ([]byte, error)
	// StoreDelta stores targetContent as a delta against baseID, returning
	// the new content's identifier and the bytes actually written (the
	// encoded delta, not targetContent itself, when the store supports
	// delta compression; a store with no delta support may simply store
	// targetContent whole and return it unchanged).
	StoreDelta(baseID identity.Identifier, targetContent []byte) (identity.Identifier, []byte, error)
}

// MergeOracle is the merge oracle's consumed interface (§6): an attempt at
// a content-level three-way merge for one file, consulted when a tree
// merge converges on a single path but both branches modified the file's
// content. A failed attempt leaves the file as a conflict rather than
// propagating an error.
type MergeOracle interface {
	TryThreeWay(basePath string, baseID identity.Identifier, leftPath string, leftID identity.Identifier, rightPath string, rightID identity.Identifier) (identity.Identifier, bool, error)
}

// Adapter exposes a RevisionStore as the narrower ancestry.ParentSource,
// ancestry.HeightSource, revision.Source, and revision.RevisionSource
// interfaces those packages actually depend on, so neither has to import
// this package or know a concrete store exists. Every call wraps the
// backing store's error with the operation and identifier involved.
type Adapter struct {
	Revisions   RevisionStore
	heights     map[identity.Identifier]ancestry.Height
	childCounts map[identity.Identifier]int
}

// NewAdapter wraps store, deriving heights lazily as revisions are looked
// up (§4.5/§C.3: a root gets ancestry.RootHeight, and every other revision
// is given its first parent's height incremented by its index among that
// parent's already-seen children, matching rev_height.cc's
// increment-last-word-vs-append rule closely enough for a total order that
// agrees with ancestry for any graph this adapter itself discovers).
func NewAdapter(revisions RevisionStore) *Adapter {
	return &Adapter{
		Revisions:   revisions,
		heights:     map[identity.Identifier]ancestry.Height{},
		childCounts: map[identity.Identifier]int{},
	}
}

// Parents implements ancestry.ParentSource.
func (a *Adapter) Parents(id identity.Identifier) ([]identity.Identifier, error) {
	parents, err := a.Revisions.GetRevisionParents(id)
	if err != nil {
		return nil, errors.Wrapf(err, "store: get_revision_parents(%s)", id)
	}
	return parents, nil
}

// Height implements ancestry.HeightSource, computing and caching a height
// for id on first use if one isn't already known. The first-parent chain is
// walked with an explicit worklist, not recursion, since its depth is the
// length of the revision's history (§4.5).
func (a *Adapter) Height(id identity.Identifier) (ancestry.Height, error) {
	if h, ok := a.heights[id]; ok {
		return h, nil
	}

	// Walk up the first-parent chain until a known height or a root, then
	// assign heights back down the chain.
	var chain []identity.Identifier
	cur := id
	for {
		if _, ok := a.heights[cur]; ok {
			break
		}
		chain = append(chain, cur)
		parents, err := a.Parents(cur)
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 {
			a.heights[cur] = ancestry.RootHeight()
			break
		}
		cur = parents[0]
	}

	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if _, ok := a.heights[n]; ok {
			continue // the root found above
		}
		parents, err := a.Parents(n)
		if err != nil {
			return nil, err
		}
		index := a.childCounts[parents[0]]
		a.childCounts[parents[0]] = index + 1
		a.heights[n] = ancestry.ChildHeight(a.heights[parents[0]], index)
	}
	return a.heights[id], nil
}

// GetManifest implements revision.ManifestSource.
func (a *Adapter) GetManifest(id identity.Identifier) (manifest.Manifest, error) {
	m, err := a.Revisions.GetManifest(id)
	if err != nil {
		return nil, errors.Wrapf(err, "store: get_manifest(%s)", id)
	}
	return m, nil
}

// GetRevisionManifest implements revision.RevisionManifestSource.
func (a *Adapter) GetRevisionManifest(id identity.Identifier) (identity.Identifier, error) {
	m, err := a.Revisions.GetRevisionManifest(id)
	if err != nil {
		return identity.Identifier{}, errors.Wrapf(err, "store: get_revision_manifest(%s)", id)
	}
	return m, nil
}

// GetRevision implements revision.RevisionSource.
func (a *Adapter) GetRevision(id identity.Identifier) (*revision.Revision, error) {
	rec, err := a.Revisions.GetRevision(id)
	if err != nil {
		return nil, errors.Wrapf(err, "store: get_revision(%s)", id)
	}
	return rec, nil
}

// PutRevision passes rec to the underlying RevisionStore under id,
// wrapping any error it returns; whether a different record already stored
// under id is replaced or rejected is up to that store.
func (a *Adapter) PutRevision(id identity.Identifier, rec *revision.Revision) error {
	if err := a.Revisions.PutRevision(id, rec); err != nil {
		return errors.Wrapf(err, "store: put_revision(%s)", id)
	}
	return nil
}

// RevisionExists implements the revision_exists query (§6).
func (a *Adapter) RevisionExists(id identity.Identifier) (bool, error) {
	ok, err := a.Revisions.RevisionExists(id)
	if err != nil {
		return false, errors.Wrapf(err, "store: revision_exists(%s)", id)
	}
	return ok, nil
}
