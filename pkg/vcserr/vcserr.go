// Package vcserr collects the error taxonomy of §7: a small set of
// sentinel kinds that every other package wraps with operation-specific
// context via fmt.Errorf's %w, matching the teacher's EnsureValid style in
// synchronization/core/entry.go of returning a small fixed vocabulary of
// plain errors rather than a hierarchy of exception types.
package vcserr

import (
	"errors"

	"github.com/dscherger/monotone-core/pkg/vpath"
)

// ErrInvariantViolation is the generic kind for any construction or
// operation whose inputs or intermediate state break §3's invariants. It is
// fatal to the operation and is never silently recovered from, except under
// the one-shot relaxed-sanity knob of ingest.SanityContext.
var ErrInvariantViolation = errors.New("invariant violation")

// ErrInvalidPath is the same error as vpath.ErrInvalidPath; it is re-exported
// here so that packages needing the full §7 taxonomy can import vcserr
// alone and still match it with errors.Is against whatever vpath returned.
var ErrInvalidPath = vpath.ErrInvalidPath

// ErrIncompatibleConcatenation indicates that two change-sets cannot be
// composed: a type mismatch across the join boundary, a kill-vs-use
// conflict, or a broken delta chain.
var ErrIncompatibleConcatenation = errors.New("incompatible concatenation")

// ErrDecoding indicates that a serialized change-set, revision, or
// identifier is malformed.
var ErrDecoding = errors.New("decoding error")

// ErrStoreUnavailable indicates that an external store call failed.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrStructuralCycle indicates a path-analysis or tree-state parent relation
// contains a cycle.
var ErrStructuralCycle = errors.New("structural cycle")

// ErrNameCollision indicates two siblings under the same parent share a
// non-null name.
var ErrNameCollision = errors.New("name collision")

// ErrTypeMismatch indicates the same tid or item_id is named as a file on
// one side of an analysis and a directory on the other.
var ErrTypeMismatch = errors.New("type mismatch")

// Conflict is returned as data, not raised, by the merge engine's entry
// points (§7: "conflict ... returned as data, not as an exception"). It
// implements error only so call sites that want to treat "merge produced
// conflicts" uniformly with other failure paths can do so with errors.As.
type Conflict struct {
	// Count is the number of structured conflict sections produced.
	Count int
}

func (c *Conflict) Error() string {
	if c.Count == 1 {
		return "merge produced 1 conflict"
	}
	return "merge produced conflicts"
}
