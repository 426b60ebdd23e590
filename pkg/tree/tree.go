package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// TreeState is a tree-merge-engine's view of a filesystem tree at one
// revision: every known item's status plus a materialized path index for
// items whose current leaf set resolves to a single, unambiguous location.
// Items with more than one resolved location are left out of Paths; they
// surface instead as split conflicts (§4.7's Conflict).
type TreeState struct {
	Items map[ItemID]*ItemStatus
	Paths map[string]ItemID
}

// NewTreeState returns an empty tree rooted at Root.
func NewTreeState() *TreeState {
	return &TreeState{Items: map[ItemID]*ItemStatus{}, Paths: map[string]ItemID{}}
}

// Clone produces a shallow-independent copy: the Items/Paths maps are new,
// but ItemStatus values are shared (they are themselves never mutated in
// place; Rename/Merge/Suture all return new values), matching §5's "shared
// versions table" discipline.
func (ts *TreeState) Clone() *TreeState {
	out := NewTreeState()
	for k, v := range ts.Items {
		out.Items[k] = v
	}
	for k, v := range ts.Paths {
		out.Paths[k] = v
	}
	return out
}

func (ts *TreeState) resolvedPath(id ItemID) (string, bool) {
	var components []string
	cur := id
	visited := map[ItemID]struct{}{}
	for cur != Root {
		if _, seen := visited[cur]; seen {
			return "", false
		}
		visited[cur] = struct{}{}
		st, ok := ts.Items[cur]
		if !ok {
			return "", false
		}
		locs := st.Locations()
		if len(locs) != 1 {
			return "", false
		}
		components = append([]string{locs[0].Name}, components...)
		cur = locs[0].Parent
	}
	path, err := vpath.ComposePath(components)
	if err != nil {
		return "", false
	}
	return path, true
}

// reindex recomputes Paths from scratch by resolving every item's current
// location chain back to the root. Items whose chain is ambiguous (a split
// somewhere above them, or in themselves) are omitted.
func (ts *TreeState) reindex() {
	ts.Paths = make(map[string]ItemID, len(ts.Items))
	for id := range ts.Items {
		if p, ok := ts.resolvedPath(id); ok {
			ts.Paths[p] = id
		}
	}
}

// op is one sorted rearrangement operation, sequenced per §4.7 step 1:
// delete_dir < delete_file < rename_dir < rename_file < add_file, within
// each class ordered by descending path depth so that deep-and-destructive
// operations run before shallow ones (freeing destination names before
// anyone renames into them).
type opClass int

const (
	classDeleteDir opClass = iota
	classDeleteFile
	classRenameDir
	classRenameFile
	classAddFile
)

type op struct {
	class opClass
	src   string // empty for add
	dst   string // empty for delete
	isDir bool
}

func depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

func sortedOps(r *analysis.Rearrangement) []op {
	var ops []op
	for p := range r.DeletedDirs {
		ops = append(ops, op{class: classDeleteDir, src: p, isDir: true})
	}
	for p := range r.DeletedFiles {
		ops = append(ops, op{class: classDeleteFile, src: p})
	}
	for src, dst := range r.RenamedDirs {
		ops = append(ops, op{class: classRenameDir, src: src, dst: dst, isDir: true})
	}
	for src, dst := range r.RenamedFiles {
		ops = append(ops, op{class: classRenameFile, src: src, dst: dst})
	}
	for p := range r.AddedFiles {
		ops = append(ops, op{class: classAddFile, dst: p})
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].class != ops[j].class {
			return ops[i].class < ops[j].class
		}
		pi, pj := ops[i].src, ops[j].src
		if pi == "" {
			pi = ops[i].dst
		}
		if pj == "" {
			pj = ops[j].dst
		}
		if depth(pi) != depth(pj) {
			return depth(pi) > depth(pj)
		}
		return vpath.Less(pi, pj)
	})
	return ops
}

// BuildFromRearrangement processes a rearrangement into a new tree-state
// reachable from base (§4.7): operations are sorted per sortedOps, every
// path untouched by the rearrangement is carried over unchanged, and each
// operation resolves or allocates the moved item's id, computes the
// destination's parent id (allocating intermediate directories as needed),
// and renames it — a delete is a rename to (Root, null component). A
// destination collision (two operations resolving to the same final
// location) is recorded as a suture and applied once all operations have
// run, per step 4.
func BuildFromRearrangement(base *TreeState, r *analysis.Rearrangement, rev identity.Identifier) (*TreeState, error) {
	out, _, err := applyRearrangement(base, r, rev, false)
	return out, err
}

// applyRearrangement is the shared engine behind BuildFromRearrangement and
// MergeWithRearrangement. In strict mode (tolerateCollisions=false) a
// destination collision whose two items genuinely disagree (Suture fails)
// is a hard error, appropriate for a single validated change-set where such
// a collision should never arise. In merge mode it is instead recorded as a
// collision Conflict and left for external resolution (§4.7's
// "resolution is supplied externally").
func applyRearrangement(base *TreeState, r *analysis.Rearrangement, rev identity.Identifier, tolerateCollisions bool) (*TreeState, []Conflict, error) {
	out := base.Clone()
	ops := sortedOps(r)
	var conflicts []Conflict

	// ensureDir walks up from path, creating any missing intermediate
	// directory entries (§4.7 step 3), and returns path's item id.
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
		id := newItemID()
		loc := Location{Parent: parentID, Name: vpath.Base(path)}
		out.Items[id] = NewItemStatus(id, true, rev, loc)
		out.Paths[path] = id
		return id, nil
	}

	// resolveItem returns the item id currently at path, allocating a fresh
	// one (rooted in its existing parent chain) if the tree was built
	// directly from this rearrangement with no richer base to inherit from.
	resolveItem := func(path string, isDir bool) (ItemID, error) {
		if id, ok := out.Paths[path]; ok {
			return id, nil
		}
		parentID, err := ensureDir(vpath.Dir(path))
		if err != nil {
			return ItemID{}, err
		}
		id := newItemID()
		loc := Location{Parent: parentID, Name: vpath.Base(path)}
		out.Items[id] = NewItemStatus(id, isDir, rev, loc)
		out.Paths[path] = id
		return id, nil
	}

	sutures := map[ItemID]ItemID{}

	for _, o := range ops {
		switch o.class {
		case classDeleteDir, classDeleteFile:
			id, err := resolveItem(o.src, o.isDir)
			if err != nil {
				return nil, nil, err
			}
			st := out.Items[id]
			out.Items[id] = st.Rename(rev, Location{Parent: Root, Name: vpath.NullComponent})
			delete(out.Paths, o.src)
		case classRenameDir, classRenameFile:
			id, err := resolveItem(o.src, o.isDir)
			if err != nil {
				return nil, nil, err
			}
			parentID, err := ensureDir(vpath.Dir(o.dst))
			if err != nil {
				return nil, nil, err
			}
			loc := Location{Parent: parentID, Name: vpath.Base(o.dst)}
			if existing, ok := out.Paths[o.dst]; ok && existing != id {
				sutures[existing] = id
			}
			st := out.Items[id]
			out.Items[id] = st.Rename(rev, loc)
			delete(out.Paths, o.src)
			out.Paths[o.dst] = id
		case classAddFile:
			parentID, err := ensureDir(vpath.Dir(o.dst))
			if err != nil {
				return nil, nil, err
			}
			loc := Location{Parent: parentID, Name: vpath.Base(o.dst)}
			if existing, ok := out.Paths[o.dst]; ok {
				id := newItemID()
				out.Items[id] = NewItemStatus(id, false, rev, loc)
				sutures[existing] = id
				out.Paths[o.dst] = id
				continue
			}
			id := newItemID()
			out.Items[id] = NewItemStatus(id, false, rev, loc)
			out.Paths[o.dst] = id
		}
	}

	for a, b := range sutures {
		sa, sb := out.Items[a], out.Items[b]
		if sa == nil || sb == nil {
			continue
		}
		merged, err := Suture(sa, sb)
		if err != nil {
			if !tolerateCollisions {
				return nil, nil, fmt.Errorf("tree: build_from_rearrangement: %w", err)
			}
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictCollision,
				ItemIDs: []ItemID{a, b},
				Reason:  err.Error(),
			})
			continue
		}
		out.Items[a] = merged
		delete(out.Items, b)
		for p, id := range out.Paths {
			if id == b {
				out.Paths[p] = a
			}
		}
	}

	out.reindex()
	return out, conflicts, nil
}
