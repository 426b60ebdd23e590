package changeset

import (
	"fmt"

	"github.com/dscherger/monotone-core/pkg/analysis"
	"github.com/dscherger/monotone-core/pkg/identity"
	"github.com/dscherger/monotone-core/pkg/vcserr"
)

// PreManifest is the minimal lookup a manifest must provide for Invert: the
// content identifier of a path in the manifest at A's source revision. A
// manifest.Manifest satisfies this directly, since it is defined as
// map[string]identity.Identifier.
type PreManifest map[string]identity.Identifier

// Invert produces A⁻¹: R1→R0 given A: R0→R1 and the manifest at R0 (§4.2
// "Inversion"). It swaps the two halves of the path-analysis and recomposes
// the rearrangement, then walks the tids directly to invert every delta: an
// add becomes a delete (dropping its content, since deletes carry none), a
// delete becomes an add whose content comes from preManifest, and a patch
// swaps source and target.
func Invert(cs *ChangeSet, preManifest PreManifest) (*ChangeSet, error) {
	a, err := analysis.Analyze(cs.Rearrangement)
	if err != nil {
		return nil, err
	}
	swapped := &analysis.Analysis{Pre: a.Post, Post: a.Pre}
	rearrInv, err := analysis.Compose(swapped)
	if err != nil {
		return nil, err
	}

	postIdx, err := analysis.PathIndex(a, false)
	if err != nil {
		return nil, err
	}

	deltas := make(map[string]Delta)

	// Deltas on paths the rearrangement never touches have no tid; they
	// invert in place.
	for path, d := range cs.Deltas {
		if _, ok := postIdx[path]; ok {
			continue
		}
		deltas[path] = Delta{Src: d.Dst, Dst: d.Src}
	}

	for t, pre := range a.Pre {
		if t == analysis.RootTID {
			continue
		}
		post := a.Post[t]
		prePresent, postPresent := pre.Name != "", post.Name != ""

		switch {
		case !prePresent && postPresent:
			// Originally added: inverts to a delete, no content carried.
			continue
		case prePresent && !postPresent:
			// Originally deleted: inverts to an add whose content is
			// recovered from the supplied R0 manifest.
			origPath, err := analysis.Path(a.Pre, t)
			if err != nil {
				return nil, err
			}
			dst, ok := preManifest[origPath]
			if !ok {
				return nil, fmt.Errorf("changeset: invert: no content for deleted path %q in supplied manifest: %w", origPath, vcserr.ErrInvariantViolation)
			}
			deltas[origPath] = Delta{Src: identity.Null, Dst: dst}
		case prePresent && postPresent:
			postPath, err := analysis.Path(a.Post, t)
			if err != nil {
				return nil, err
			}
			d, ok := cs.Deltas[postPath]
			if !ok {
				continue
			}
			prePath, err := analysis.Path(a.Pre, t)
			if err != nil {
				return nil, err
			}
			deltas[prePath] = Delta{Src: d.Dst, Dst: d.Src}
		}
	}

	return &ChangeSet{Rearrangement: rearrInv, Deltas: deltas}, nil
}
