// Package ancestry implements the ancestry graph operations of §4.5:
// common-merge-ancestor, toposort, uncommon-ancestors, erase-ancestors,
// ancestry-difference, and the revision-height accelerator that backs them.
//
// Every operation here is synchronous and driven entirely by repeated calls
// to a caller-supplied ParentSource, fetched from the external revision
// store (§6); nothing in this package touches storage directly. All walks
// are iterative (explicit worklists), never native recursion, per §4.5's
// "graphs whose depth may exceed reasonable stack limits" requirement.
package ancestry

import (
	"fmt"
	"strconv"
	"strings"
)

// Height is a variable-length big-endian sequence of unsigned words
// identifying a revision's position in the ancestry graph (§4.5). Heights
// are totally ordered lexicographically and are consistent with ancestry:
// if x is an ancestor of y, height(x) < height(y). A nil/empty Height is
// never valid; RootHeight is the shortest legal value.
type Height []uint32

// RootHeight is the height of a revision with no parents: a single zero
// word.
func RootHeight() Height {
	return Height{0}
}

// ChildHeight computes the height of a child at the given sibling index
// (0-based) of parent, per §4.5: a single-parent child with sibling index n
// has height parent++[n] if n>0, or parent with its last word incremented
// if n==0. A revision with multiple parents uses the height of whichever
// parent edge it is being placed under for purposes of this accelerator
// (§4.5 defines height per edge, not per node identity); callers needing a
// node's canonical height pick its first parent's edge.
func ChildHeight(parent Height, siblingIndex int) Height {
	if siblingIndex < 0 {
		panic("ancestry: negative sibling index")
	}
	if siblingIndex == 0 {
		out := make(Height, len(parent))
		copy(out, parent)
		out[len(out)-1]++
		return out
	}
	out := make(Height, len(parent)+1)
	copy(out, parent)
	out[len(out)-1] = uint32(siblingIndex)
	return out
}

// Less reports whether a sorts before b under the lexicographic order of
// §4.5: words are compared pairwise, and if one height is a prefix of the
// other, the shorter one sorts first.
func Less(a, b Height) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// String renders the height in the same dotted form as the original's
// operator<< for rev_height, e.g. "0.1.0".
func (h Height) String() string {
	parts := make([]string, len(h))
	for i, w := range h {
		parts[i] = strconv.FormatUint(uint64(w), 10)
	}
	return strings.Join(parts, ".")
}

// Equal reports whether h and other denote the same height.
func (h Height) Equal(other Height) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

func validateHeight(h Height) error {
	if len(h) == 0 {
		return fmt.Errorf("ancestry: height must have at least one word")
	}
	return nil
}
