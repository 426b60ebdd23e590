// Package manifest implements the manifest layer of §4.4: a manifest is a
// mapping from file-path to file-identifier, and this package builds,
// completes, and applies change-sets against it, and stages a
// rearrangement's effect onto a real filesystem.
package manifest

import (
	"fmt"
	"sort"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/changeset"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// Manifest maps every tracked file-path to its content identifier, with all
// path entries unique by construction (it is a Go map). The manifest
// identifier, when one is needed, is the digest of its canonical
// serialization (Serialize).
type Manifest map[string]identity.Identifier

// Clone returns an independent copy.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Serialize produces the canonical textual form used to compute a manifest
// identifier: one line per entry, sorted by path, "<hex id>  <path>".
func (m Manifest) Serialize() string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return vpath.Less(paths[i], paths[j]) })
	out := ""
	for _, p := range paths {
		out += fmt.Sprintf("%s  %s\n", m[p].String(), p)
	}
	return out
}

// Identifier computes the manifest identifier: the digest of its canonical
// serialization.
func (m Manifest) Identifier() identity.Identifier {
	return identity.Hash([]byte(m.Serialize()))
}

// BuildPureAdditionChangeSet emits a change-set containing one add_file per
// manifest entry, with a delta whose source is null (§4.4). Applying it to
// the empty manifest yields m exactly (testable property 8).
func BuildPureAdditionChangeSet(m Manifest) (*changeset.ChangeSet, error) {
	cs := changeset.New()
	for path, fileID := range m {
		if err := cs.AddFileWithID(path, fileID); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// CompleteChangeSet fills in the deltas of cs given only its rearrangement,
// by reconstructing each entry of mNew's pre-image through the
// rearrangement and comparing content hashes against mOld (§4.4).
func CompleteChangeSet(mOld, mNew Manifest, cs *changeset.ChangeSet) error {
	a, err := analysis.Analyze(cs.Rearrangement)
	if err != nil {
		return err
	}
	for path, dstID := range mNew {
		if _, added := cs.Rearrangement.AddedFiles[path]; added {
			if err := cs.ApplyDelta(path, identity.Null, dstID); err != nil {
				return err
			}
			continue
		}
		preImage, err := analysis.ReconstructPath(a, path, false)
		if err != nil {
			return err
		}
		srcID, ok := mOld[preImage]
		if !ok {
			return fmt.Errorf("manifest: complete_change_set: no pre-image for %q (reconstructed %q): %w", path, preImage, vcserr.ErrInvariantViolation)
		}
		if srcID != dstID {
			if err := cs.ApplyDelta(path, srcID, dstID); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyChangeSet applies cs to mOld, producing mNew, expressed as the
// concatenation pure_addition_of(mOld) ∘ cs read out as a manifest (§4.2
// "Application to a manifest"). A fast path is used when cs contains no
// renames and no directory deletions: in-place deletion of deleted-file
// entries and direct replacement of delta targets.
func ApplyChangeSet(mOld Manifest, cs *changeset.ChangeSet) (Manifest, error) {
	if len(cs.Rearrangement.RenamedFiles) == 0 && len(cs.Rearrangement.RenamedDirs) == 0 && len(cs.Rearrangement.DeletedDirs) == 0 {
		return applyFastPath(mOld, cs)
	}

	addition, err := BuildPureAdditionChangeSet(mOld)
	if err != nil {
		return nil, err
	}
	composed, err := changeset.Concatenate(addition, cs)
	if err != nil {
		return nil, err
	}
	out := make(Manifest, len(composed.Rearrangement.AddedFiles))
	for path := range composed.Rearrangement.AddedFiles {
		d, ok := composed.Deltas[path]
		if !ok {
			return nil, fmt.Errorf("manifest: apply_change_set: no delta for added path %q: %w", path, vcserr.ErrInvariantViolation)
		}
		out[path] = d.Dst
	}
	return out, nil
}

func applyFastPath(mOld Manifest, cs *changeset.ChangeSet) (Manifest, error) {
	out := mOld.Clone()
	for path := range cs.Rearrangement.DeletedFiles {
		delete(out, path)
	}
	for path := range cs.Rearrangement.AddedFiles {
		d, ok := cs.Deltas[path]
		if !ok {
			return nil, fmt.Errorf("manifest: apply_change_set: no delta for added path %q: %w", path, vcserr.ErrInvariantViolation)
		}
		out[path] = d.Dst
	}
	for path, d := range cs.Deltas {
		if _, added := cs.Rearrangement.AddedFiles[path]; added {
			continue
		}
		if _, ok := out[path]; !ok {
			return nil, fmt.Errorf("manifest: apply_change_set: delta target %q not present: %w", path, vcserr.ErrInvariantViolation)
		}
		out[path] = d.Dst
	}
	return out, nil
}
