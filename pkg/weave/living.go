// Package weave implements the PCDV per-file line-identity weave of §4.6: an
// append-only sequence of weave lines shared by every file-state descended
// from the same root, each line carrying a small CRDT-like living-status
// that determines whether it is visible (live) from any given set of
// leaves.
package weave

import (
	"sort"

	"github.com/dscherger/monotone-core/pkg/identity"
)

// LivingStatus is the per-line CRDT of §4.6: a map from revision id to the
// list of "override" parents recorded when the line's liveness was toggled
// at that revision, plus the set of leaf revisions the status is currently
// viewed from. identity.Null plays the role of the original's root marker
// (revid(-1)): every override chain terminates there, and a line is dead
// exactly when the root remains reachable after the cancellation walk
// described below.
//
// Grounded on original_source/pcdv.cc's living_status (merge/is_living/
// set_living/_makes_living); the algorithm is ported to Go idiom rather than
// transliterated, and revid(-1) is mapped onto identity.Null since this
// module already uses the null identifier as its "no such revision"
// sentinel (§3).
type LivingStatus struct {
	Overrides map[identity.Identifier][]identity.Identifier
	Leaves    []identity.Identifier
}

// NewLivingStatus returns the status of a line that has never been born: a
// single leaf at the root marker, which IsLiving reports as dead.
func NewLivingStatus() LivingStatus {
	return LivingStatus{
		Overrides: map[identity.Identifier][]identity.Identifier{},
		Leaves:    []identity.Identifier{identity.Null},
	}
}

func cloneOverrides(o map[identity.Identifier][]identity.Identifier) map[identity.Identifier][]identity.Identifier {
	out := make(map[identity.Identifier][]identity.Identifier, len(o))
	for k, v := range o {
		cp := make([]identity.Identifier, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// IsLiving decides liveness (§4.6): repeatedly replacing each member of a
// working set with the override targets of the *previous* round's working
// set, starting from the full override-closure of the leaves, until the
// working set stops changing; the line is live iff the root marker has been
// cancelled out of the fixed point.
func (s LivingStatus) IsLiving() bool {
	ref := map[identity.Identifier]struct{}{}
	queue := append([]identity.Identifier{}, s.Leaves...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, seen := ref[n]; seen {
			continue
		}
		ref[n] = struct{}{}
		queue = append(queue, s.Overrides[n]...)
	}

	snapshot := func() map[identity.Identifier]struct{} {
		out := make(map[identity.Identifier]struct{}, len(ref))
		for k := range ref {
			out[k] = struct{}{}
		}
		return out
	}
	equal := func(a, b map[identity.Identifier]struct{}) bool {
		if len(a) != len(b) {
			return false
		}
		for k := range a {
			if _, ok := b[k]; !ok {
				return false
			}
		}
		return true
	}

	working := snapshot()
	for {
		next := snapshot()
		for k := range working {
			for _, t := range s.Overrides[k] {
				delete(next, t)
			}
		}
		if equal(next, working) {
			working = next
			break
		}
		working = next
	}
	_, rootPresent := working[identity.Null]
	return !rootPresent
}

// makesLiving walks the single override chain rooted at key (following only
// the first override target recorded at each step, as the original does)
// and reports the toggle parity reached before the chain terminates at the
// root marker. It is the fast single-ancestor check SetLiving uses to avoid
// recomputing the full IsLiving closure for every existing leaf.
func makesLiving(overrides map[identity.Identifier][]identity.Identifier, key identity.Identifier) bool {
	result := false
	for key != identity.Null {
		result = !result
		targets, ok := overrides[key]
		if !ok || len(targets) == 0 {
			break
		}
		key = targets[0]
	}
	return result
}

// SetLiving returns the status produced by toggling liveness to newStatus at
// rev. rev becomes a new leaf; it records, as its overrides, exactly those
// prior leaves whose own single-chain status disagrees with newStatus (they
// must be overridden to reach the new value), while leaves that already
// agree are retained unmodified as co-leaves (no-op if already newStatus).
func (s LivingStatus) SetLiving(rev identity.Identifier, newStatus bool) LivingStatus {
	if s.IsLiving() == newStatus {
		return s
	}
	overrides := cloneOverrides(s.Overrides)
	var revOverrides []identity.Identifier
	var newLeaves []identity.Identifier
	inserted := false
	for _, leaf := range s.Leaves {
		if !inserted && identity.Less(rev, leaf) {
			inserted = true
			newLeaves = append(newLeaves, rev)
		}
		if makesLiving(overrides, leaf) != newStatus {
			revOverrides = append(revOverrides, leaf)
		} else {
			newLeaves = append(newLeaves, leaf)
		}
	}
	if !inserted {
		newLeaves = append(newLeaves, rev)
	}
	overrides[rev] = revOverrides
	return LivingStatus{Overrides: overrides, Leaves: newLeaves}
}

// Merge unions two statuses' leaves and collapses any leaf that turns out to
// be reachable, via the override chains rooted at the other leaves, from
// another member of the union (§4.6: "merging two statuses unions their
// leaves and then collapses"). The two statuses describe the same weave
// line; their overrides tables are unioned (mergedOverrides).
func (s LivingStatus) Merge(other LivingStatus) LivingStatus {
	leafSet := map[identity.Identifier]struct{}{}
	for _, l := range s.Leaves {
		leafSet[l] = struct{}{}
	}
	for _, l := range other.Leaves {
		leafSet[l] = struct{}{}
	}
	done := map[identity.Identifier]struct{}{}
	queue := make([]identity.Identifier, 0, len(leafSet))
	for l := range leafSet {
		queue = append(queue, l)
	}
	merged := mergedOverrides(s.Overrides, other.Overrides)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range merged[cur] {
			if _, seen := done[t]; seen {
				continue
			}
			if _, isLeaf := leafSet[t]; isLeaf {
				delete(leafSet, t)
				continue
			}
			done[t] = struct{}{}
			queue = append(queue, t)
		}
	}
	newLeaves := make([]identity.Identifier, 0, len(leafSet))
	for l := range leafSet {
		newLeaves = append(newLeaves, l)
	}
	sort.Slice(newLeaves, func(i, j int) bool { return identity.Less(newLeaves[i], newLeaves[j]) })
	return LivingStatus{Overrides: merged, Leaves: newLeaves}
}

// mergedOverrides unions two overrides tables, which is safe because a given
// revision's override list, once written by SetLiving, never changes.
func mergedOverrides(a, b map[identity.Identifier][]identity.Identifier) map[identity.Identifier][]identity.Identifier {
	out := cloneOverrides(a)
	for k, v := range b {
		if _, ok := out[k]; !ok {
			cp := make([]identity.Identifier, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out
}
