package changeset

import "github.com/dscherger/monotone-core/pkg/analysis"

// Normalize reduces cs to canonical form (§4.2): erase any delta whose
// source equals its target, and re-derive the rearrangement from its
// path-analysis so that self-cancelling operations (a rename followed by
// its inverse, etc.) collapse away. Testable property 6 states this
// precisely: compose(analyze(R)) = normalize(R).
func Normalize(cs *ChangeSet) (*ChangeSet, error) {
	a, err := analysis.Analyze(cs.Rearrangement)
	if err != nil {
		return nil, err
	}
	rearr, err := analysis.Compose(a)
	if err != nil {
		return nil, err
	}
	deltas := make(map[string]Delta, len(cs.Deltas))
	for path, d := range cs.Deltas {
		if d.Src == d.Dst {
			continue
		}
		deltas[path] = d
	}
	return &ChangeSet{Rearrangement: rearr, Deltas: deltas}, nil
}

// Equal reports whether two change-sets have equal canonical
// serializations, which §4.2 defines as change-set equality.
func Equal(a, b *ChangeSet) (bool, error) {
	na, err := Normalize(a)
	if err != nil {
		return false, err
	}
	nb, err := Normalize(b)
	if err != nil {
		return false, err
	}
	sa, err := Serialize(na)
	if err != nil {
		return false, err
	}
	sb, err := Serialize(nb)
	if err != nil {
		return false, err
	}
	return sa == sb, nil
}
