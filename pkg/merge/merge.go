// Package merge implements the history-aware three-way merge engine §1
// names as one of this module's three core subsystems: given two
// revisions, it locates their common-merge-ancestor (pkg/ancestry), merges
// their tree rearrangements (pkg/tree), resolves the content of every file
// whose path converges through the per-line weave (pkg/weave), falling
// back to the merge oracle (pkg/store) for files both branches edited
// differently, and produces either a merged revision or the structured
// conflicts blocking one. Named and shaped after original_source's
// merge_roster.cc, whose roster_merge_result carries exactly this pairing
// of a (possibly incomplete) merged tree alongside its conflict lists.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/ancestry"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/logging"
	"github.com/dscherger/monotone-core/pkg/manifest"
	"github.com/dscherger/monotone-core/pkg/revision"
	"github.com/dscherger/monotone-core/pkg/store"
	"github.com/dscherger/monotone-core/pkg/tree"
	"github.com/dscherger/monotone-core/pkg/weave"
)

// log is this package's sublogger.
var log = logging.RootLogger.Sublogger("merge")

// Source is everything ThreeWay needs from the revision store: the
// ancestry queries to locate the common-merge-ancestor, plus manifest
// lookups by id and by owning revision. revision.Source already names
// exactly this set, since ConstructRevisionFromAncestry needs the same
// queries to recompose a merge's edges.
type Source interface {
	revision.Source
}

// FileContentConflict is one file whose content diverged on both branches
// and which neither the weave resolve nor the merge oracle could
// reconcile automatically, named after merge_roster.cc's
// file_content_conflict.
type FileContentConflict struct {
	Path       string
	AncestorID identity.Identifier
	LeftID     identity.Identifier
	RightID    identity.Identifier
	Sections   []weave.Section
}

// Result is the outcome of ThreeWay, mirroring merge_roster.cc's
// roster_merge_result: a best-effort merged revision plus whatever
// conflicts still block treating it as final. Callers must check Clean
// before persisting Revision.
type Result struct {
	Revision         *revision.Revision
	MergedManifest   manifest.Manifest
	TreeConflicts    []tree.Conflict
	ContentConflicts []FileContentConflict
}

// Clean reports whether the merge needs no external resolution before its
// Revision can be committed as-is.
func (r *Result) Clean() bool {
	return len(r.TreeConflicts) == 0 && len(r.ContentConflicts) == 0
}

// ThreeWay performs the merge. left and right are the two revisions being
// merged; their common-merge-ancestor is computed internally. A pair with
// no common ancestor (Scenario 6: two independently rooted histories) is
// handled by building each side's tree from its own empty baseline rather
// than a shared one, so that any path added by both sides surfaces as a
// collision conflict (two distinct items resolved to the same location)
// instead of silently picking one side's content.
func ThreeWay(src Source, content store.ContentStore, oracle store.MergeOracle, left, right identity.Identifier) (*Result, error) {
	leftManifestID, err := src.GetRevisionManifest(left)
	if err != nil {
		return nil, fmt.Errorf("merge: three_way: get_revision_manifest(%s): %w", left, err)
	}
	leftManifest, err := src.GetManifest(leftManifestID)
	if err != nil {
		return nil, err
	}
	rightManifestID, err := src.GetRevisionManifest(right)
	if err != nil {
		return nil, fmt.Errorf("merge: three_way: get_revision_manifest(%s): %w", right, err)
	}
	rightManifest, err := src.GetManifest(rightManifestID)
	if err != nil {
		return nil, err
	}

	ancestorID, found, err := ancestry.CommonMergeAncestor(src, src, left, right)
	if err != nil {
		return nil, err
	}

	var ancestorManifest manifest.Manifest
	var ancestorTree, leftTree, rightTree *tree.TreeState

	if found {
		ancestorManifestID, err := src.GetRevisionManifest(ancestorID)
		if err != nil {
			return nil, fmt.Errorf("merge: three_way: get_revision_manifest(%s): %w", ancestorID, err)
		}
		ancestorManifest, err = src.GetManifest(ancestorManifestID)
		if err != nil {
			return nil, err
		}
		log.Debugf("three_way: common merge ancestor of %s and %s is %s",
			logging.ShortID(left), logging.ShortID(right), logging.ShortID(ancestorID))

		ancestorTree, err = seedTree(ancestorManifest, ancestorID)
		if err != nil {
			return nil, err
		}
		leftDiff, err := revision.ManifestDiff(ancestorManifest, leftManifest)
		if err != nil {
			return nil, err
		}
		rightDiff, err := revision.ManifestDiff(ancestorManifest, rightManifest)
		if err != nil {
			return nil, err
		}
		leftTree, err = tree.BuildFromRearrangement(ancestorTree, leftDiff.Rearrangement, left)
		if err != nil {
			return nil, err
		}
		rightTree, err = tree.BuildFromRearrangement(ancestorTree, rightDiff.Rearrangement, right)
		if err != nil {
			return nil, err
		}
	} else {
		log.Debugf("three_way: no common merge ancestor between %s and %s", logging.ShortID(left), logging.ShortID(right))
		ancestorManifest = manifest.Manifest{}
		leftTree, err = seedTree(leftManifest, left)
		if err != nil {
			return nil, err
		}
		rightTree, err = seedTree(rightManifest, right)
		if err != nil {
			return nil, err
		}
	}

	mergedTree, treeConflicts, err := tree.MergeWithRearrangement(
		[]*tree.TreeState{leftTree, rightTree},
		[]*analysis.Rearrangement{analysis.NewRearrangement(), analysis.NewRearrangement()},
		identity.Null,
	)
	if err != nil {
		return nil, err
	}

	reverseLeft := reverseIndex(leftTree)
	reverseRight := reverseIndex(rightTree)
	reverseAncestor := map[tree.ItemID]string{}
	if found {
		// The ancestor index must share item ids with the trees built on
		// top of it, so it is read off the same seeded base, not a fresh
		// seeding.
		reverseAncestor = reverseIndex(ancestorTree)
	}

	mergedManifest := manifest.Manifest{}
	var contentConflicts []FileContentConflict

	paths := make([]string, 0, len(mergedTree.Paths))
	for p := range mergedTree.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		id := mergedTree.Paths[path]
		st := mergedTree.Items[id]
		if st == nil || st.IsDir {
			continue
		}

		leftPath, onLeft := reverseLeft[id]
		rightPath, onRight := reverseRight[id]
		ancestorPath, onAncestor := reverseAncestor[id]

		var leftID, rightID, ancestorFileID identity.Identifier
		if onLeft {
			leftID = leftManifest[leftPath]
		}
		if onRight {
			rightID = rightManifest[rightPath]
		}
		if onAncestor {
			ancestorFileID = ancestorManifest[ancestorPath]
		}

		switch {
		case onLeft && !onRight:
			mergedManifest[path] = leftID
			continue
		case onRight && !onLeft:
			mergedManifest[path] = rightID
			continue
		case leftID == rightID:
			mergedManifest[path] = leftID
			continue
		case leftID == ancestorFileID:
			mergedManifest[path] = rightID
			continue
		case rightID == ancestorFileID:
			mergedManifest[path] = leftID
			continue
		}

		// Both branches changed this file's content differently: try a
		// per-line weave resolve first, falling back to the merge oracle,
		// per §6.
		resolvedID, sections, ok, err := resolveContent(content, ancestorFileID, leftID, rightID)
		if err != nil {
			return nil, err
		}
		if ok {
			mergedManifest[path] = resolvedID
			continue
		}

		basePath := ancestorPath
		if !onAncestor {
			basePath = leftPath
		}
		oracleID, ok, err := oracle.TryThreeWay(basePath, ancestorFileID, leftPath, leftID, rightPath, rightID)
		if err != nil {
			return nil, fmt.Errorf("merge: three_way: merge oracle for %q: %w", path, err)
		}
		if ok {
			mergedManifest[path] = oracleID
			continue
		}

		contentConflicts = append(contentConflicts, FileContentConflict{
			Path:       path,
			AncestorID: ancestorFileID,
			LeftID:     leftID,
			RightID:    rightID,
			Sections:   sections,
		})
	}

	mergedManifestID := mergedManifest.Identifier()
	leftEdgeCS, err := revision.ManifestDiff(leftManifest, mergedManifest)
	if err != nil {
		return nil, err
	}
	rightEdgeCS, err := revision.ManifestDiff(rightManifest, mergedManifest)
	if err != nil {
		return nil, err
	}

	rec := &revision.Revision{
		NewManifest: mergedManifestID,
		Edges: []revision.Edge{
			{OldRevision: left, OldManifest: leftManifestID, ChangeSet: leftEdgeCS},
			{OldRevision: right, OldManifest: rightManifestID, ChangeSet: rightEdgeCS},
		},
	}

	result := &Result{
		Revision:         rec,
		MergedManifest:   mergedManifest,
		TreeConflicts:    treeConflicts,
		ContentConflicts: contentConflicts,
	}
	if !result.Clean() {
		log.Debugf("three_way: merge of %s and %s left %d tree conflict(s) and %d content conflict(s)",
			logging.ShortID(left), logging.ShortID(right), len(treeConflicts), len(contentConflicts))
	}
	return result, nil
}

// seedTree builds a tree-state in which every path of m is a freshly
// identified item, used both to establish the shared baseline identity
// that a found common-merge-ancestor gives both branches and, when no
// ancestor exists, to give each side its own independent identity space so
// that overlapping paths collide rather than merge silently.
func seedTree(m manifest.Manifest, rev identity.Identifier) (*tree.TreeState, error) {
	cs, err := manifest.BuildPureAdditionChangeSet(m)
	if err != nil {
		return nil, err
	}
	return tree.BuildFromRearrangement(tree.NewTreeState(), cs.Rearrangement, rev)
}

// reverseIndex inverts a tree-state's Paths index.
func reverseIndex(ts *tree.TreeState) map[tree.ItemID]string {
	out := make(map[tree.ItemID]string, len(ts.Paths))
	for p, id := range ts.Paths {
		out[id] = p
	}
	return out
}

// resolveContent attempts a per-line weave merge of a file both branches
// modified, per §4.6: the ancestor's content (empty if there is none) is
// aligned against each branch's content, and the two resolved file-states
// are walked for conflicting runs. ok is false, with the conflicting
// sections returned for the caller's oracle fallback or conflict report,
// whenever any run disagrees on both sides (FileState.Conflict).
func resolveContent(content store.ContentStore, ancestorID, leftID, rightID identity.Identifier) (identity.Identifier, []weave.Section, bool, error) {
	ancestorLines, err := loadLines(content, ancestorID)
	if err != nil {
		return identity.Identifier{}, nil, false, err
	}
	leftLines, err := loadLines(content, leftID)
	if err != nil {
		return identity.Identifier{}, nil, false, err
	}
	rightLines, err := loadLines(content, rightID)
	if err != nil {
		return identity.Identifier{}, nil, false, err
	}

	base := weave.NewFileState(ancestorLines, ancestorID)
	left := base.Resolve(leftLines, leftID)
	right := base.Resolve(rightLines, rightID)

	sections := left.Conflict(right)
	for _, s := range sections {
		if s.Conflict {
			return identity.Identifier{}, sections, false, nil
		}
	}

	var merged []string
	for _, s := range sections {
		merged = append(merged, s.Left...)
	}
	mergedID, _, err := content.StoreDelta(leftID, []byte(strings.Join(merged, "\n")))
	if err != nil {
		return identity.Identifier{}, nil, false, err
	}
	return mergedID, nil, true, nil
}

// loadLines returns id's content split into lines, or no lines at all for
// the null identifier (a file with no ancestor version).
func loadLines(content store.ContentStore, id identity.Identifier) ([]string, error) {
	if id.IsNull() {
		return nil, nil
	}
	data, err := content.Load(id)
	if err != nil {
		return nil, fmt.Errorf("merge: load content %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return strings.Split(string(data), "\n"), nil
}
