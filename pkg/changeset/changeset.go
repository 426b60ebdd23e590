// Package changeset implements the change-set model of §4.2: the path
// rearrangement plus per-file delta map that together describe how one
// filesystem tree differs from another, and the algebra over it
// (concatenation, inversion, normalization, canonical serialization).
//
// The structural half (analysis.Rearrangement) is defined in the analysis
// package, which this package imports; ChangeSet composes it with the
// content-identifier delta map and is the type every primitive builder and
// algebra operation here actually operates on.
package changeset

import (
	"fmt"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// Delta is a per-path content identifier transition.
type Delta struct {
	Src identity.Identifier
	Dst identity.Identifier
}

// ChangeSet is a labeled edge between two revisions (the glossary's
// "Change-set"): a rearrangement plus per-file deltas.
type ChangeSet struct {
	Rearrangement *analysis.Rearrangement
	Deltas        map[string]Delta
}

// New builds an empty change-set.
func New() *ChangeSet {
	return &ChangeSet{
		Rearrangement: analysis.NewRearrangement(),
		Deltas:        make(map[string]Delta),
	}
}

// Clone produces a deep, independent copy; the algebra (concatenation,
// inversion, normalization) is purely functional per §5 and must never
// mutate its inputs.
func (cs *ChangeSet) Clone() *ChangeSet {
	out := &ChangeSet{
		Rearrangement: cs.Rearrangement.Clone(),
		Deltas:        make(map[string]Delta, len(cs.Deltas)),
	}
	for k, v := range cs.Deltas {
		out.Deltas[k] = v
	}
	return out
}

func invariant(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, vcserr.ErrInvariantViolation)...)
}

// --- primitive builders (§4.2) ---

// AddFile registers path as a new file with no content identifier yet; a
// subsequent ApplyDelta must supply the destination identifier before the
// change-set is valid (invariant 7).
func (cs *ChangeSet) AddFile(path string) error {
	if _, err := vpath.SplitPath(path); err != nil {
		return err
	}
	if _, ok := cs.renameDestinations()[path]; ok {
		return invariant("add_file %q: already a rename destination", path)
	}
	cs.Rearrangement.AddedFiles[path] = struct{}{}
	return nil
}

// AddFileWithID is the two-argument add_file overload: it registers the add
// and immediately records its delta.
func (cs *ChangeSet) AddFileWithID(path string, dst identity.Identifier) error {
	if err := cs.AddFile(path); err != nil {
		return err
	}
	return cs.ApplyDelta(path, identity.Null, dst)
}

// DeleteFile registers path as a deleted file.
func (cs *ChangeSet) DeleteFile(path string) error {
	if _, err := vpath.SplitPath(path); err != nil {
		return err
	}
	if _, ok := cs.Rearrangement.DeletedDirs[path]; ok {
		return invariant("delete_file %q: already in deleted_dirs", path)
	}
	if _, ok := cs.renameSources()[path]; ok {
		return invariant("delete_file %q: is the source of a rename", path)
	}
	cs.Rearrangement.DeletedFiles[path] = struct{}{}
	return nil
}

// DeleteDir registers path as a deleted directory.
func (cs *ChangeSet) DeleteDir(path string) error {
	if _, err := vpath.SplitPath(path); err != nil {
		return err
	}
	if _, ok := cs.Rearrangement.DeletedFiles[path]; ok {
		return invariant("delete_dir %q: already in deleted_files", path)
	}
	if _, ok := cs.renameSources()[path]; ok {
		return invariant("delete_dir %q: is the source of a rename", path)
	}
	cs.Rearrangement.DeletedDirs[path] = struct{}{}
	return nil
}

// RenameFile registers a file rename from src to dst.
func (cs *ChangeSet) RenameFile(src, dst string) error {
	return cs.rename(src, dst, false)
}

// RenameDir registers a directory rename from src to dst.
func (cs *ChangeSet) RenameDir(src, dst string) error {
	return cs.rename(src, dst, true)
}

func (cs *ChangeSet) rename(src, dst string, dir bool) error {
	if _, err := vpath.SplitPath(src); err != nil {
		return err
	}
	if _, err := vpath.SplitPath(dst); err != nil {
		return err
	}
	if src == dst {
		return invariant("rename %q: source equals destination", src)
	}
	if _, ok := cs.Rearrangement.DeletedFiles[src]; ok {
		return invariant("rename source %q: already in deleted_files", src)
	}
	if _, ok := cs.Rearrangement.DeletedDirs[src]; ok {
		return invariant("rename source %q: already in deleted_dirs", src)
	}
	if _, ok := cs.Rearrangement.AddedFiles[dst]; ok {
		return invariant("rename destination %q: already in added_files", dst)
	}
	dests := cs.renameDestinations()
	if _, ok := dests[dst]; ok {
		return invariant("rename destination %q: already used by another rename", dst)
	}
	if dir {
		cs.Rearrangement.RenamedDirs[src] = dst
	} else {
		cs.Rearrangement.RenamedFiles[src] = dst
	}
	return nil
}

// ApplyDelta registers the content-identifier transition for path.
// Invariant 7: src is null exactly for added files, dst is always non-null
// and differs from src.
func (cs *ChangeSet) ApplyDelta(path string, src, dst identity.Identifier) error {
	if _, err := vpath.SplitPath(path); err != nil {
		return err
	}
	if dst.IsNull() {
		return invariant("delta %q: destination identifier must not be null", path)
	}
	if src == dst {
		return invariant("delta %q: source and destination identifiers are equal", path)
	}
	_, isAdded := cs.Rearrangement.AddedFiles[path]
	if isAdded && !src.IsNull() {
		return invariant("delta %q: added file must have a null source", path)
	}
	if !isAdded && src.IsNull() {
		return invariant("delta %q: non-added file must have a non-null source", path)
	}
	cs.Deltas[path] = Delta{Src: src, Dst: dst}
	return nil
}

func (cs *ChangeSet) renameSources() map[string]struct{} {
	out := make(map[string]struct{}, len(cs.Rearrangement.RenamedFiles)+len(cs.Rearrangement.RenamedDirs))
	for src := range cs.Rearrangement.RenamedFiles {
		out[src] = struct{}{}
	}
	for src := range cs.Rearrangement.RenamedDirs {
		out[src] = struct{}{}
	}
	return out
}

func (cs *ChangeSet) renameDestinations() map[string]struct{} {
	out := make(map[string]struct{}, len(cs.Rearrangement.RenamedFiles)+len(cs.Rearrangement.RenamedDirs))
	for _, dst := range cs.Rearrangement.RenamedFiles {
		out[dst] = struct{}{}
	}
	for _, dst := range cs.Rearrangement.RenamedDirs {
		out[dst] = struct{}{}
	}
	return out
}
