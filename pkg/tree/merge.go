package tree

import (
	"fmt"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// mashAll unions every input tree's items (§4.7: "mashes all input trees"):
// an item id present in more than one tree has its statuses combined with
// Merge; one present in only one tree is carried over unchanged.
func mashAll(trees []*TreeState) *TreeState {
	out := NewTreeState()
	for _, t := range trees {
		for id, st := range t.Items {
			if existing, ok := out.Items[id]; ok {
				out.Items[id] = Merge(existing, st)
			} else {
				out.Items[id] = st
			}
		}
	}
	out.reindex()
	return out
}

// MergeWithRearrangement mashes trees and then applies their
// rearrangements one after another in input order, each one's operations
// sorted as §4.7 step 1 orders a single rearrangement; operations of
// different rearrangements are not interleaved into one sorted sequence. It
// produces one post-merge tree-state plus every split or collision conflict
// the walk (or the mash itself) surfaces (§4.7).
// Destination collisions between operations from different branches are
// recorded as collision conflicts rather than failing outright, since two
// branches renaming different items to the same destination is exactly the
// case this entry point exists to surface rather than reject.
func MergeWithRearrangement(trees []*TreeState, changes []*analysis.Rearrangement, rev identity.Identifier) (*TreeState, []Conflict, error) {
	if len(trees) != len(changes) {
		return nil, nil, fmt.Errorf("tree: merge_with_rearrangement: %d trees but %d rearrangements: %w", len(trees), len(changes), vcserr.ErrInvariantViolation)
	}
	merged := mashAll(trees)
	var conflicts []Conflict
	for _, change := range changes {
		var stepConflicts []Conflict
		var err error
		merged, stepConflicts, err = applyRearrangement(merged, change, rev, true)
		if err != nil {
			return nil, nil, err
		}
		conflicts = append(conflicts, stepConflicts...)
	}
	conflicts = append(conflicts, merged.Conflict()...)
	return merged, conflicts, nil
}

// Resolution pins one item to a final path, resolving a split or collision
// conflict (§4.7: "resolution is supplied externally").
type Resolution struct {
	ItemID ItemID
	Path   string
}

// MergeWithResolution applies resolutions to a merged (possibly
// conflicted) tree-state: each resolution wins its item's location outright,
// honoring the same depth-first ordering BuildFromRearrangement uses and
// creating ancestor directories as needed, and fails if an item already
// pinned by an earlier resolution in this batch is pinned to a second,
// different location.
func MergeWithResolution(ts *TreeState, resolutions []Resolution, rev identity.Identifier) (*TreeState, error) {
	out := ts.Clone()
	forced := map[ItemID]string{}

	sortedResolutions := append([]Resolution{}, resolutions...)
	sortByDepthDesc(sortedResolutions)

	var ensureDir func(path string) (ItemID, error)
	ensureDir = func(path string) (ItemID, error) {
		if path == "" {
			return Root, nil
		}
		if id, ok := out.Paths[path]; ok {
			return id, nil
		}
		parentID, err := ensureDir(vpath.Dir(path))
		if err != nil {
			return ItemID{}, err
		}
		id := newIntermediateDir(out, parentID, vpath.Base(path), rev)
		out.Paths[path] = id
		return id, nil
	}

	for _, r := range sortedResolutions {
		if prior, ok := forced[r.ItemID]; ok && prior != r.Path {
			return nil, fmt.Errorf("tree: merge_with_resolution: item already forced to %q, cannot also force to %q: %w", prior, r.Path, vcserr.ErrInvariantViolation)
		}
		forced[r.ItemID] = r.Path

		st, ok := out.Items[r.ItemID]
		if !ok {
			return nil, fmt.Errorf("tree: merge_with_resolution: unknown item: %w", vcserr.ErrInvariantViolation)
		}
		parentID, err := ensureDir(vpath.Dir(r.Path))
		if err != nil {
			return nil, err
		}
		loc := Location{Parent: parentID, Name: vpath.Base(r.Path)}
		out.Items[r.ItemID] = st.Rename(rev, loc)
	}

	out.reindex()
	return out, nil
}

func newIntermediateDir(ts *TreeState, parent ItemID, name string, rev identity.Identifier) ItemID {
	for id, st := range ts.Items {
		for _, loc := range st.Locations() {
			if loc.Parent == parent && loc.Name == name && st.IsDir {
				return id
			}
		}
	}
	id := newItemID()
	ts.Items[id] = NewItemStatus(id, true, rev, Location{Parent: parent, Name: name})
	return id
}

func sortByDepthDesc(rs []Resolution) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && depth(rs[j].Path) > depth(rs[j-1].Path); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}
