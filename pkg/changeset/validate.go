package changeset

import (
	"github.com/dscherger/monotone-core/pkg/analysis"
)

// Validate runs the full sanity check described in §4.2: it builds the
// path-analysis once to confirm the rearrangement is realizable as a tree
// transformation (which also covers invariants 1-4, since Analyze and
// analysis.EnsureValid reject anything that wouldn't be), then checks
// delta-vs-kill and delta-vs-directory disjointness (invariants 5-6).
// Invariant 7 is enforced incrementally by ApplyDelta and re-checked here
// for every delta, including those Parse records without ApplyDelta.
func (cs *ChangeSet) Validate() error {
	a, err := analysis.Analyze(cs.Rearrangement)
	if err != nil {
		return err
	}
	return cs.validateDeltasAgainst(a)
}

func (cs *ChangeSet) validateDeltasAgainst(a *analysis.Analysis) error {
	post, err := analysis.Paths(a, false)
	if err != nil {
		return err
	}
	killed, err := analysis.Killed(a)
	if err != nil {
		return err
	}
	for path, d := range cs.Deltas {
		_, isAdded := cs.Rearrangement.AddedFiles[path]
		if d.Dst.IsNull() || d.Src == d.Dst || isAdded != d.Src.IsNull() {
			return invariant("delta %q: source/destination identifiers break invariant 7", path)
		}
		if kind, ok := post[path]; ok && kind == analysis.KindDirectory {
			return invariant("delta %q: targets a directory in the post-state", path)
		}
		if _, ok := killed[path]; ok {
			return invariant("delta %q: targets a path the rearrangement kills", path)
		}
	}
	for path := range cs.Rearrangement.AddedFiles {
		if _, ok := cs.Deltas[path]; !ok {
			return invariant("add_file %q: no delta recorded", path)
		}
	}
	return nil
}
