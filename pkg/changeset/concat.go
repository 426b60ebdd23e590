package changeset

import (
	"fmt"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/vcserr"
	"github.com/dscherger/monotone-core/pkg/vpath"
)

// Concatenate composes A: R0→R1 and B: R1→R2 into A∘B: R0→R2, following the
// eight-step algorithm of §4.2.
func Concatenate(a, b *ChangeSet) (*ChangeSet, error) {
	analysisA, err := analysis.Analyze(a.Rearrangement)
	if err != nil {
		return nil, err
	}
	analysisB, err := analysis.Analyze(b.Rearrangement)
	if err != nil {
		return nil, err
	}

	// Step 1: disjoint tid ranges. Offsetting B past A's highest
	// allocation is sufficient and cheap; tids never escape one
	// concatenation call.
	offset := analysis.TID(len(analysisA.Pre) + 1)
	analysisB = analysis.Offset(analysisB, offset)

	// Step 2: A's killed set.
	killedA, err := analysis.Killed(analysisA)
	if err != nil {
		return nil, err
	}

	postA, err := analysis.Paths(analysisA, false)
	if err != nil {
		return nil, err
	}
	preB, err := analysis.Paths(analysisB, true)
	if err != nil {
		return nil, err
	}

	// Step 3: type consistency across the A.post = B.pre boundary, and no
	// use of a name A already killed.
	for path, kind := range preB {
		if _, ok := killedA[path]; ok {
			return nil, fmt.Errorf("changeset: concatenate: %q was deleted by the first change-set and reused by the second: %w", path, vcserr.ErrIncompatibleConcatenation)
		}
		if akind, ok := postA[path]; ok && akind != kind {
			return nil, fmt.Errorf("changeset: concatenate: %q changes type across the join: %w", path, vcserr.ErrIncompatibleConcatenation)
		}
	}

	postAIdx, err := analysis.PathIndex(analysisA, false)
	if err != nil {
		return nil, err
	}
	preBIdx, err := analysis.PathIndex(analysisB, true)
	if err != nil {
		return nil, err
	}

	// Step 4: unify. Every path named on both sides of the join denotes the
	// same entity; renumber B's tid onto A's.
	remap := make(map[analysis.TID]analysis.TID)
	sharedA := make(map[analysis.TID]struct{})
	sharedB := make(map[analysis.TID]struct{})
	for path, tA := range postAIdx {
		tB, ok := preBIdx[path]
		if !ok {
			continue
		}
		remap[tB] = tA
		sharedA[tA] = struct{}{}
		sharedB[tB] = struct{}{}
	}
	canon := func(t analysis.TID) analysis.TID {
		if t == analysis.RootTID {
			return analysis.RootTID
		}
		if r, ok := remap[t]; ok {
			return r
		}
		return t
	}

	// Step 5: glue. result.Pre = A.Pre ∪ (B.Pre minus shared); result.Post
	// = B.Post ∪ (A.Post minus shared).
	gluedPre := make(analysis.PathState, len(analysisA.Pre)+len(analysisB.Pre))
	for t, e := range analysisA.Pre {
		gluedPre[t] = e
	}
	for t, e := range analysisB.Pre {
		if _, ok := sharedB[t]; ok {
			continue
		}
		gluedPre[t] = analysis.Entry{Parent: canon(e.Parent), Kind: e.Kind, Name: e.Name}
	}

	gluedPost := make(analysis.PathState, len(analysisA.Post)+len(analysisB.Post))
	for t, e := range analysisB.Post {
		gluedPost[canon(t)] = analysis.Entry{Parent: canon(e.Parent), Kind: e.Kind, Name: e.Name}
	}
	for t, e := range analysisA.Post {
		if _, ok := sharedA[t]; ok {
			continue
		}
		gluedPost[t] = e
	}

	glued := &analysis.Analysis{Pre: gluedPre, Post: gluedPost}
	if err := analysis.EnsureValid(glued); err != nil {
		return nil, fmt.Errorf("changeset: concatenate: %v: %w", err, vcserr.ErrIncompatibleConcatenation)
	}

	// Step 6: compose the glued analysis into a normalized rearrangement.
	rearr, err := analysis.Compose(glued)
	if err != nil {
		return nil, err
	}

	// Step 7: carry deltas across the join. A delta in A follows its
	// entity: renamed through B's rearrangement when the entity survives,
	// dropped when B deletes it. A path merely vacated by a rename is not
	// a kill, and a path B deletes and re-adds carries the re-add's own
	// delta instead. For each delta in B, fuse with any delta already
	// present on the same path from A (requiring the predecessor's target
	// to equal the successor's source) else append.
	deltas := make(map[string]Delta)
	for path, d := range a.Deltas {
		if t, ok := preBIdx[path]; ok {
			e, live := analysisB.Post[t]
			if !live || vpath.IsNullComponent(e.Name) {
				continue
			}
		}
		newPath, err := analysis.ReconstructPath(analysisB, path, true)
		if err != nil {
			return nil, err
		}
		deltas[newPath] = d
	}
	for path, d := range b.Deltas {
		if existing, ok := deltas[path]; ok {
			if existing.Dst != d.Src {
				return nil, fmt.Errorf("changeset: concatenate: delta chain break at %q (%s != %s): %w", path, existing.Dst, d.Src, vcserr.ErrIncompatibleConcatenation)
			}
			deltas[path] = Delta{Src: existing.Src, Dst: d.Dst}
			continue
		}
		deltas[path] = d
	}

	result := &ChangeSet{Rearrangement: rearr, Deltas: deltas}

	// Step 8: normalize and re-check.
	result, err = Normalize(result)
	if err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}
