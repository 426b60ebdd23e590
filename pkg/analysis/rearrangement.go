// Package analysis implements the path-analysis engine of §4.3: a
// transient-identifier-based representation that mirrors a path
// rearrangement as a pair of directory-tree states, used to verify
// invariants, reconstruct paths across a change, and drive composition.
//
// It sits below the change-set model in this repository's import graph even
// though §2 lists the change-set model first: the change-set's own sanity
// check runs the path-analysis once (§4.2), so the structural rearrangement
// type lives here and changeset.ChangeSet embeds it, rather than the other
// way around.
package analysis

import (
	"sort"

	"github.com/dscherger/monotone-core/pkg/vpath"
)

// EntryKind distinguishes files from directories within a path-state.
type EntryKind uint8

const (
	// KindFile marks a path-state entry as a file.
	KindFile EntryKind = iota
	// KindDirectory marks a path-state entry as a directory.
	KindDirectory
)

func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Rearrangement is the purely structural part of a change-set (§3): five
// disjoint sets/maps describing adds, deletes, and renames. It carries no
// file content identifiers; those live in changeset.Delta.
type Rearrangement struct {
	DeletedFiles map[string]struct{}
	DeletedDirs  map[string]struct{}
	RenamedFiles map[string]string
	RenamedDirs  map[string]string
	AddedFiles   map[string]struct{}
}

// NewRearrangement builds an empty rearrangement.
func NewRearrangement() *Rearrangement {
	return &Rearrangement{
		DeletedFiles: make(map[string]struct{}),
		DeletedDirs:  make(map[string]struct{}),
		RenamedFiles: make(map[string]string),
		RenamedDirs:  make(map[string]string),
		AddedFiles:   make(map[string]struct{}),
	}
}

// IsEmpty reports whether the rearrangement carries no operations at all.
func (r *Rearrangement) IsEmpty() bool {
	return len(r.DeletedFiles) == 0 && len(r.DeletedDirs) == 0 &&
		len(r.RenamedFiles) == 0 && len(r.RenamedDirs) == 0 &&
		len(r.AddedFiles) == 0
}

// Clone produces a deep copy, since Rearrangement values are otherwise
// shared-by-reference maps and the change-set algebra (§4.2) is required to
// be purely functional: concatenation, inversion, and normalization must not
// mutate their inputs.
func (r *Rearrangement) Clone() *Rearrangement {
	out := NewRearrangement()
	for k := range r.DeletedFiles {
		out.DeletedFiles[k] = struct{}{}
	}
	for k := range r.DeletedDirs {
		out.DeletedDirs[k] = struct{}{}
	}
	for k, v := range r.RenamedFiles {
		out.RenamedFiles[k] = v
	}
	for k, v := range r.RenamedDirs {
		out.RenamedDirs[k] = v
	}
	for k := range r.AddedFiles {
		out.AddedFiles[k] = struct{}{}
	}
	return out
}

// sortedKeys returns the keys of a string-set map in vpath.Less order, used
// throughout for deterministic iteration (serialization, test fixtures).
func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return vpath.Less(out[i], out[j]) })
	return out
}

func sortedMapKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return vpath.Less(out[i], out[j]) })
	return out
}
