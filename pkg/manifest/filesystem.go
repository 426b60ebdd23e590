package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

// ApplyRearrangementToFilesystem stages a rearrangement's structural effect
// (renames, moves, deletes) onto a real directory tree, tolerating renames
// that cross each other (§4.4, §5's two-phase requirement). tmpRoot is a
// caller-owned scratch directory; the caller is responsible for its
// creation and cleanup on every exit path (§5: "scoped acquisition of the
// temp directory with guaranteed cleanup").
func ApplyRearrangementToFilesystem(r *analysis.Rearrangement, root, tmpRoot string) error {
	a, err := analysis.Analyze(r)
	if err != nil {
		return err
	}

	// Phase 1 (bottom-up): move every entity that has a pre-state name to
	// tmp_root/<tid>, deepest first so a parent directory is never moved
	// out from under a child still awaiting its own move.
	order := depthOrderedTIDs(a.Pre, true)
	for _, t := range order {
		pre := a.Pre[t]
		if pre.Name == "" {
			continue // add: no pre-state name to move
		}
		if post := a.Post[t]; post.Name != "" && pre.Parent == post.Parent && pre.Name == post.Name {
			continue // entity never moves; left alone in place
		}
		srcPath, err := analysis.Path(a.Pre, t)
		if err != nil {
			return err
		}
		dst := tidScratchPath(tmpRoot, t)
		if err := os.Rename(filepath.Join(root, filepath.FromSlash(srcPath)), dst); err != nil {
			return fmt.Errorf("manifest: apply_rearrangement_to_filesystem: staging %q: %w", srcPath, err)
		}
	}

	// Phase 2 (top-down): walk the post-state shallowest first and move
	// each tid from its scratch location to its final path, creating
	// parent directories as needed.
	order = depthOrderedTIDs(a.Post, false)
	for _, t := range order {
		post := a.Post[t]
		pre := a.Pre[t]
		if post.Name == "" {
			continue // delete: nothing to place
		}
		if pre.Name != "" && pre.Parent == post.Parent && pre.Name == post.Name {
			continue // entity never moved
		}
		dstPath, err := analysis.Path(a.Post, t)
		if err != nil {
			return err
		}
		full := filepath.Join(root, filepath.FromSlash(dstPath))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("manifest: apply_rearrangement_to_filesystem: creating parent of %q: %w", dstPath, err)
		}
		if err := os.Rename(tidScratchPath(tmpRoot, t), full); err != nil {
			return fmt.Errorf("manifest: apply_rearrangement_to_filesystem: placing %q: %w", dstPath, err)
		}
	}
	return nil
}

func tidScratchPath(tmpRoot string, t analysis.TID) string {
	return filepath.Join(tmpRoot, fmt.Sprintf("%d", t))
}

// depthOrderedTIDs returns the tids of ps ordered by path depth, deepest
// first when deepestFirst is true, so phase 1 can move children before
// their parents and phase 2 can create parents before their children.
func depthOrderedTIDs(ps analysis.PathState, deepestFirst bool) []analysis.TID {
	type entry struct {
		t     analysis.TID
		depth int
	}
	var entries []entry
	for t := range ps {
		if t == analysis.RootTID {
			continue
		}
		entries = append(entries, entry{t: t, depth: depthOf(ps, t)})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			less := entries[j-1].depth < entries[j].depth
			if deepestFirst {
				less = entries[j-1].depth > entries[j].depth
			}
			if less {
				break
			}
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	out := make([]analysis.TID, len(entries))
	for i, e := range entries {
		out[i] = e.t
	}
	return out
}

func depthOf(ps analysis.PathState, t analysis.TID) int {
	depth := 0
	for t != analysis.RootTID {
		e, ok := ps[t]
		if !ok {
			break
		}
		t = e.Parent
		depth++
	}
	return depth
}

// StageContent writes id's bytes to root/path. If lookup already has a path
// with identical content on disk, the bytes are copied locally from there
// instead of invoking fetch, avoiding a round trip to the content store for
// content that has already been staged once under another path in this
// same working copy (the supplemented feature described in DESIGN.md for
// merge_roster.cc-style rearrangement application).
func StageContent(root string, path string, id identity.Identifier, lookup *identity.ReverseLookupMap, fetch func(identity.Identifier) ([]byte, error)) error {
	full := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("manifest: stage_content: %w", err)
	}
	if existingPath, ok := lookup.Lookup(id); ok {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(existingPath)))
		if err == nil {
			return os.WriteFile(full, data, 0o644)
		}
	}
	data, err := fetch(id)
	if err != nil {
		return fmt.Errorf("manifest: stage_content: fetching %q: %v: %w", path, err, vcserr.ErrStoreUnavailable)
	}
	return os.WriteFile(full, data, 0o644)
}
