package revision

import (
	"fmt"

	"github.com/dscherger/monotone-core/pkg/ancestry"
	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/logging"
	"github.com/dscherger/monotone-core/pkg/manifest"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

// log is this package's sublogger.
var log = logging.RootLogger.Sublogger("revision")

// RevisionSource answers get_revision (§6): the full record for a
// revision, needed to walk the history when recomputing a merge's two
// edges back to their common ancestor.
type RevisionSource interface {
	GetRevision(rev identity.Identifier) (*Revision, error)
}

// VerifySanity checks r against the store per §4.8: for each edge, applying
// the change-set to the stored parent manifest must exactly reproduce r's
// new manifest; for a merge node, the two edges' change-sets, recomposed
// back to their common merge ancestor via concatenation, must agree.
func VerifySanity(src Source, hist RevisionSource, r *Revision) error {
	for _, e := range r.Edges {
		oldManifest, err := oldManifestOf(src, e)
		if err != nil {
			return err
		}
		got, err := manifest.ApplyChangeSet(oldManifest, e.ChangeSet)
		if err != nil {
			return fmt.Errorf("revision: verify_sanity: apply edge from %s: %w", e.OldRevision, err)
		}
		if got.Identifier() != r.NewManifest {
			return fmt.Errorf("revision: verify_sanity: edge from %s produces manifest %s, want %s: %w",
				e.OldRevision, got.Identifier(), r.NewManifest, vcserr.ErrInvariantViolation)
		}
	}

	if len(r.Edges) != 2 {
		return nil
	}

	left, right := r.Edges[0], r.Edges[1]
	ancestorID, found, err := ancestry.CommonMergeAncestor(src, src, left.OldRevision, right.OldRevision)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	leftFull, err := fullPath(src, hist, ancestorID, left)
	if err != nil {
		return err
	}
	rightFull, err := fullPath(src, hist, ancestorID, right)
	if err != nil {
		return err
	}
	equal, err := changeset.Equal(leftFull, rightFull)
	if err != nil {
		return err
	}
	if !equal {
		return fmt.Errorf("revision: verify_sanity: edges disagree when recomposed to common ancestor %s: %w", ancestorID, vcserr.ErrInvariantViolation)
	}
	log.Debugf("verify_sanity: merge edges from %s and %s agree at common ancestor %s",
		logging.ShortID(left.OldRevision), logging.ShortID(right.OldRevision), logging.ShortID(ancestorID))
	return nil
}

func oldManifestOf(src Source, e Edge) (manifest.Manifest, error) {
	if e.OldManifest.IsNull() {
		return manifest.Manifest{}, nil
	}
	return src.GetManifest(e.OldManifest)
}

// fullPath concatenates the composite change-set from ancestor to e's
// parent with e's own change-set, giving the full ancestor-to-child edge.
func fullPath(src Source, hist RevisionSource, ancestor identity.Identifier, e Edge) (*changeset.ChangeSet, error) {
	prefix, err := compositeChangeSet(src, hist, ancestor, e.OldRevision)
	if err != nil {
		return nil, err
	}
	return changeset.Concatenate(prefix, e.ChangeSet)
}

// compositeChangeSet composes the change-sets along a path from ancestor to
// descendant (§4.8's calculate_composite_change_set), walking back through
// whichever parent edge remains on ancestor's side of the graph at each
// merge encountered. A fully general multi-merge range could have more than
// one such edge; this picks the first it finds, which is exact whenever the
// range between ancestor and descendant contains no merge of its own — the
// case construct_revision_from_ancestry's own common-ancestor recomposition
// always produces.
func compositeChangeSet(src Source, hist RevisionSource, ancestor, descendant identity.Identifier) (*changeset.ChangeSet, error) {
	if ancestor == descendant {
		return changeset.New(), nil
	}
	rev, err := hist.GetRevision(descendant)
	if err != nil {
		return nil, err
	}
	for _, e := range rev.Edges {
		if e.OldRevision == ancestor {
			return e.ChangeSet, nil
		}
	}
	for _, e := range rev.Edges {
		if e.OldRevision.IsNull() {
			continue
		}
		ancestors, err := ancestry.Ancestors(src, e.OldRevision)
		if err != nil {
			return nil, err
		}
		if _, ok := ancestors[ancestor]; ok {
			prefix, err := compositeChangeSet(src, hist, ancestor, e.OldRevision)
			if err != nil {
				return nil, err
			}
			return changeset.Concatenate(prefix, e.ChangeSet)
		}
	}
	return nil, fmt.Errorf("revision: verify_sanity: no path from %s to %s: %w", ancestor, descendant, vcserr.ErrInvariantViolation)
}
