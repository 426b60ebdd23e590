// Package comparison provides the equality helpers the engine's tests lean
// on most: ordered line-content comparison (weave projections) and
// path-to-path map comparison (rename sets).
package comparison

// StringSlicesEqual reports whether two string slices hold the same elements
// in the same order. Zero-length slices compare equal regardless of nilness,
// so a projection that legitimately produces no lines matches an expected
// nil slice.
func StringSlicesEqual(first, second []string) bool {
	if len(first) != len(second) {
		return false
	}
	for i, line := range second {
		if first[i] != line {
			return false
		}
	}
	return true
}

// StringMapsEqual reports whether two string-keyed string maps hold the same
// entries, the shape of a change-set's rename maps. Zero-length maps compare
// equal regardless of nilness.
func StringMapsEqual(first, second map[string]string) bool {
	if len(first) != len(second) {
		return false
	}
	for key, value := range second {
		other, ok := first[key]
		if !ok {
			return false
		}
		if other != value {
			return false
		}
	}
	return true
}
